package realtime

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Time-Craft/time-crafting-hub/internal/models"
)

func txEvent(op models.ChangeOp, userID string, recipientID *string) models.ChangeEvent {
	tx := &models.TimeTransaction{
		ID:          "tx-1",
		UserID:      userID,
		RecipientID: recipientID,
		Type:        models.TypeEarned,
		Amount:      decimal.NewFromInt(1),
		ServiceType: "tutoring",
		Status:      models.StatusOpen,
	}
	ev := models.ChangeEvent{Op: op, Table: models.TableTransactions}
	if op == models.OpDelete {
		ev.OldTransaction = tx
	} else {
		ev.Transaction = tx
	}
	return ev
}

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker()

	first := b.Subscribe(nil)
	second := b.Subscribe(nil)
	defer b.Unsubscribe(first)
	defer b.Unsubscribe(second)

	b.Publish(txEvent(models.OpInsert, "alice", nil))

	for _, sub := range []*Subscription{first, second} {
		select {
		case ev := <-sub.C:
			assert.Equal(t, models.OpInsert, ev.Op)
		default:
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestBrokerFilters(t *testing.T) {
	b := NewBroker()

	tables := b.Subscribe(FilterTable(models.TableBalances))
	users := b.Subscribe(FilterUser("bob"))
	defer b.Unsubscribe(tables)
	defer b.Unsubscribe(users)

	b.Publish(txEvent(models.OpInsert, "alice", nil))

	assert.Empty(t, tables.C, "transaction event must not pass a balance-table filter")
	assert.Empty(t, users.C, "event not involving the user must be filtered out")

	recipient := "bob"
	b.Publish(txEvent(models.OpUpdate, "alice", &recipient))

	require.Len(t, users.C, 1)
	ev := <-users.C
	assert.True(t, ev.Involves("bob"))
}

func TestBrokerUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()

	sub := b.Subscribe(nil)
	b.Unsubscribe(sub)

	_, open := <-sub.C
	assert.False(t, open)

	// Idempotent, and publishing afterwards must not panic on the closed
	// channel.
	b.Unsubscribe(sub)
	b.Publish(txEvent(models.OpInsert, "alice", nil))
}

func TestBrokerPublishNeverBlocks(t *testing.T) {
	b := NewBroker()

	sub := b.Subscribe(nil)
	defer b.Unsubscribe(sub)

	// Overfill the subscriber; every extra publish is dropped, not queued.
	for i := 0; i < subscriptionBuffer+10; i++ {
		b.Publish(txEvent(models.OpInsert, "alice", nil))
	}

	assert.Len(t, sub.C, subscriptionBuffer)
	assert.Equal(t, uint64(10), b.Dropped())
}
