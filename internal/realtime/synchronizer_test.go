package realtime

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Time-Craft/time-crafting-hub/internal/cache"
	"github.com/Time-Craft/time-crafting-hub/internal/models"
)

func newTestSynchronizer() (*Synchronizer, *cache.OfferCache, *cache.BalanceStore) {
	offers := cache.NewOfferCache()
	balances := cache.NewBalanceStore(time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSynchronizer(offers, balances, logger), offers, balances
}

func openRow(id string) models.TimeTransaction {
	return models.TimeTransaction{
		ID:          id,
		UserID:      "creator",
		Type:        models.TypeEarned,
		Amount:      decimal.NewFromInt(2),
		ServiceType: "tutoring",
		Description: "test",
		Status:      models.StatusOpen,
		CreatedAt:   time.Now(),
	}
}

func TestSynchronizerApplyInsert(t *testing.T) {
	s, offers, _ := newTestSynchronizer()
	offers.SetAll(nil)

	row := openRow("a")
	s.Apply(models.ChangeEvent{
		Op:          models.OpInsert,
		Table:       models.TableTransactions,
		Transaction: &row,
	})

	views := offers.Projection()
	require.Len(t, views, 1)
	assert.Equal(t, "a", views[0].ID)
}

func TestSynchronizerApplyDelete(t *testing.T) {
	s, offers, _ := newTestSynchronizer()
	row := openRow("a")
	offers.SetAll([]models.TimeTransaction{row})

	s.Apply(models.ChangeEvent{
		Op:             models.OpDelete,
		Table:          models.TableTransactions,
		OldTransaction: &row,
	})

	assert.Empty(t, offers.Projection())
	assert.True(t, offers.Primed(), "a targeted delete must not force a refetch")
}

// An accept observed on the feed marks the row pending and drops it from the
// open list in the same application.
func TestSynchronizerApplyAcceptUpdate(t *testing.T) {
	s, offers, _ := newTestSynchronizer()
	row := openRow("a")
	offers.SetAll([]models.TimeTransaction{row})

	recipient := "bob"
	claimed := row
	claimed.Status = models.StatusInProgress
	claimed.RecipientID = &recipient

	s.Apply(models.ChangeEvent{
		Op:             models.OpUpdate,
		Table:          models.TableTransactions,
		Transaction:    &claimed,
		OldTransaction: &row,
	})

	assert.Empty(t, offers.Projection())
	assert.False(t, offers.IsPending("a"), "resolved rows carry no overlay marker")
}

func TestSynchronizerApplyBalanceInvalidates(t *testing.T) {
	s, _, balances := newTestSynchronizer()
	balances.Set("alice", decimal.NewFromInt(5))

	oldBalance := models.TimeBalance{ID: "alice", Balance: decimal.NewFromInt(5)}
	newBalance := models.TimeBalance{ID: "alice", Balance: decimal.NewFromInt(7)}
	s.Apply(models.ChangeEvent{
		Op:         models.OpUpdate,
		Table:      models.TableBalances,
		Balance:    &newBalance,
		OldBalance: &oldBalance,
	})

	_, fresh := balances.Get("alice")
	assert.False(t, fresh, "balance change must invalidate the cached value")
}

func TestSynchronizerStartStop(t *testing.T) {
	s, offers, _ := newTestSynchronizer()
	offers.SetAll(nil)

	broker := NewBroker()
	s.Start(broker)

	row := openRow("a")
	broker.Publish(models.ChangeEvent{
		Op:          models.OpInsert,
		Table:       models.TableTransactions,
		Transaction: &row,
	})

	assert.Eventually(t, func() bool {
		return len(offers.Projection()) == 1
	}, time.Second, 5*time.Millisecond)

	s.Stop()

	// Events after Stop are not applied
	other := openRow("b")
	broker.Publish(models.ChangeEvent{
		Op:          models.OpInsert,
		Table:       models.TableTransactions,
		Transaction: &other,
	})
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, offers.Projection(), 1)

	// Stop twice is safe
	s.Stop()
}
