package realtime

import (
	"log/slog"
	"sync"

	"github.com/Time-Craft/time-crafting-hub/internal/cache"
	"github.com/Time-Craft/time-crafting-hub/internal/models"
)

// Synchronizer reconciles local cached views with the server-side change
// feed. Server-confirmed state is authoritative: events overwrite whatever
// optimistic guesses the caches hold, and balance changes invalidate the
// balance store so the next read refetches.
//
// Each consuming view owns its own Synchronizer; Stop must be called on
// teardown so no subscription leaks.
type Synchronizer struct {
	offers   *cache.OfferCache
	balances *cache.BalanceStore
	logger   *slog.Logger

	mu     sync.Mutex
	broker *Broker
	sub    *Subscription
	done   chan struct{}
}

// NewSynchronizer wires the caches a view reads from. Start attaches it to
// a broker.
func NewSynchronizer(offers *cache.OfferCache, balances *cache.BalanceStore, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		offers:   offers,
		balances: balances,
		logger:   logger,
	}
}

// Start subscribes to the broker and applies events until Stop.
func (s *Synchronizer) Start(broker *Broker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		return
	}

	s.broker = broker
	s.sub = broker.Subscribe(nil)
	s.done = make(chan struct{})

	go s.loop(s.sub, s.done)
}

func (s *Synchronizer) loop(sub *Subscription, done chan struct{}) {
	defer close(done)
	for ev := range sub.C {
		s.Apply(ev)
	}
}

// Stop unsubscribes and waits for the event loop to drain. In-flight writes
// elsewhere are unaffected; only the listening stops.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	broker, sub, done := s.broker, s.sub, s.done
	s.broker, s.sub, s.done = nil, nil, nil
	s.mu.Unlock()

	if sub == nil {
		return
	}

	broker.Unsubscribe(sub)
	<-done
}

// Apply folds one confirmed change event into the cached views.
func (s *Synchronizer) Apply(ev models.ChangeEvent) {
	switch ev.Table {
	case models.TableTransactions:
		s.applyTransaction(ev)
	case models.TableBalances:
		s.applyBalance(ev)
	default:
		s.logger.Warn("change event for unknown table", "table", ev.Table)
	}
}

func (s *Synchronizer) applyTransaction(ev models.ChangeEvent) {
	switch ev.Op {
	case models.OpDelete:
		// Remove directly rather than refetching the whole list.
		if ev.OldTransaction != nil {
			s.offers.RemoveByID(ev.OldTransaction.ID)
		}

	case models.OpInsert, models.OpUpdate:
		if ev.Transaction == nil {
			return
		}
		if ev.Op == models.OpUpdate && ev.Transaction.Status == models.StatusInProgress {
			// Someone's accept landed; reflect it in the overlay even before
			// the list itself is repatched.
			s.offers.MarkPending(ev.Transaction.ID)
		}
		s.offers.Patch(*ev.Transaction)
	}
}

func (s *Synchronizer) applyBalance(ev models.ChangeEvent) {
	switch {
	case ev.Balance != nil:
		s.balances.Invalidate(ev.Balance.ID)
	case ev.OldBalance != nil:
		s.balances.Invalidate(ev.OldBalance.ID)
	}
}
