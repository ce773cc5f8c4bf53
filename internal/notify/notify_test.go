package notify

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Time-Craft/time-crafting-hub/internal/models"
)

func statusChange(from, to models.TransactionStatus, creator, recipient string) models.ChangeEvent {
	oldTx := models.TimeTransaction{
		ID:          "tx-1",
		UserID:      creator,
		Type:        models.TypeEarned,
		Amount:      decimal.NewFromInt(2),
		ServiceType: "tutoring",
		Status:      from,
	}
	newTx := oldTx
	newTx.Status = to
	if recipient != "" {
		newTx.RecipientID = &recipient
		if from != models.StatusOpen {
			oldTx.RecipientID = &recipient
		}
	}
	return models.ChangeEvent{
		Op:             models.OpUpdate,
		Table:          models.TableTransactions,
		Transaction:    &newTx,
		OldTransaction: &oldTx,
	}
}

func TestForUserAcceptRequestNotifiesCreator(t *testing.T) {
	ev := statusChange(models.StatusOpen, models.StatusInProgress, "alice", "bob")

	n, ok := ForUser("alice", ev)
	require.True(t, ok)
	assert.Equal(t, KindSuccess, n.Kind)
	assert.Equal(t, "New Offer Request", n.Title)
	assert.Equal(t, "Someone wants to accept your tutoring offer for 2 hours", n.Message)

	// The accepter triggered it themselves; no message for them
	_, ok = ForUser("bob", ev)
	assert.False(t, ok)
}

func TestForUserConfirmNotifiesRecipient(t *testing.T) {
	ev := statusChange(models.StatusInProgress, models.StatusAccepted, "alice", "bob")

	n, ok := ForUser("bob", ev)
	require.True(t, ok)
	assert.Equal(t, KindSuccess, n.Kind)
	assert.Equal(t, "Offer Accepted", n.Title)
	assert.Equal(t, "Your tutoring request was accepted", n.Message)

	_, ok = ForUser("alice", ev)
	assert.False(t, ok)
}

func TestForUserDeclineNotifiesRecipient(t *testing.T) {
	ev := statusChange(models.StatusInProgress, models.StatusDeclined, "alice", "bob")

	n, ok := ForUser("bob", ev)
	require.True(t, ok)
	assert.Equal(t, KindError, n.Kind)
	assert.Equal(t, "Offer Declined", n.Title)
	assert.Equal(t, "Your tutoring request was declined", n.Message)
}

func TestForUserIgnoresNonStatusChanges(t *testing.T) {
	ev := statusChange(models.StatusOpen, models.StatusOpen, "alice", "")
	_, ok := ForUser("alice", ev)
	assert.False(t, ok)

	// Inserts carry no old row and produce nothing
	insert := models.ChangeEvent{
		Op:          models.OpInsert,
		Table:       models.TableTransactions,
		Transaction: &models.TimeTransaction{ID: "tx-1", UserID: "alice"},
	}
	_, ok = ForUser("alice", insert)
	assert.False(t, ok)
}

func TestForUserBalanceChange(t *testing.T) {
	ev := models.ChangeEvent{
		Op:         models.OpUpdate,
		Table:      models.TableBalances,
		Balance:    &models.TimeBalance{ID: "alice", Balance: decimal.NewFromInt(7)},
		OldBalance: &models.TimeBalance{ID: "alice", Balance: decimal.NewFromInt(5)},
	}

	n, ok := ForUser("alice", ev)
	require.True(t, ok)
	assert.Equal(t, "Balance Updated", n.Title)
	assert.Equal(t, "Your time balance has increased by 2 hours", n.Message)

	// The other direction
	ev.Balance = &models.TimeBalance{ID: "alice", Balance: decimal.NewFromInt(3)}
	n, ok = ForUser("alice", ev)
	require.True(t, ok)
	assert.Equal(t, "Your time balance has decreased by 2 hours", n.Message)

	// Someone else's balance is not our notification
	_, ok = ForUser("bob", ev)
	assert.False(t, ok)

	// No change, no message
	ev.Balance = &models.TimeBalance{ID: "alice", Balance: decimal.NewFromInt(5)}
	_, ok = ForUser("alice", ev)
	assert.False(t, ok)
}
