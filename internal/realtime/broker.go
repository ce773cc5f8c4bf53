package realtime

import (
	"sync"

	"github.com/Time-Craft/time-crafting-hub/internal/models"
)

// subscriptionBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind starts losing events; consumers treat events as
// invalidation hints and refetch, so a dropped event costs latency, not
// correctness.
const subscriptionBuffer = 64

// Filter selects which change events a subscription receives.
// A nil filter receives everything.
type Filter func(models.ChangeEvent) bool

// FilterTable keeps events for a single table.
func FilterTable(table string) Filter {
	return func(ev models.ChangeEvent) bool {
		return ev.Table == table
	}
}

// FilterUser keeps events that involve the given user, either as a party to
// the transaction or as the balance owner.
func FilterUser(userID string) Filter {
	return func(ev models.ChangeEvent) bool {
		return ev.Involves(userID)
	}
}

// Subscription is one consumer's handle on the change feed. Events arrive on
// C until Unsubscribe closes it.
type Subscription struct {
	id     uint64
	C      chan models.ChangeEvent
	filter Filter
}

// Broker fans change events out to any number of independent subscribers.
// Views subscribe on setup and unsubscribe on teardown; the broker never
// assumes a single global consumer.
type Broker struct {
	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextID  uint64
	dropped uint64
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[uint64]*Subscription),
	}
}

// Subscribe registers a consumer. filter may be nil to receive all events.
func (b *Broker) Subscribe(filter Filter) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		id:     b.nextID,
		C:      make(chan models.ChangeEvent, subscriptionBuffer),
		filter: filter,
	}
	b.subs[sub.id] = sub
	b.nextID++

	return sub
}

// Unsubscribe removes the subscription and closes its channel. Safe to call
// more than once.
func (b *Broker) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub.id]; !ok {
		return
	}
	delete(b.subs, sub.id)
	close(sub.C)
}

// Publish delivers the event to every matching subscriber without blocking.
// A full subscriber simply misses the event.
func (b *Broker) Publish(ev models.ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if sub.filter != nil && !sub.filter(ev) {
			continue
		}
		select {
		case sub.C <- ev:
		default:
			b.dropped++
		}
	}
}

// Dropped reports how many events were lost to slow subscribers.
func (b *Broker) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
