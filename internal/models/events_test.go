package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChangeEventTransactionInsert(t *testing.T) {
	payload := []byte(`{
		"op": "INSERT",
		"table": "time_transactions",
		"new": {
			"id": "tx-1",
			"user_id": "alice",
			"recipient_id": null,
			"type": "earned",
			"amount": 2.5,
			"service_type": "tutoring",
			"description": "math help",
			"status": "open",
			"created_at": "2025-06-01T10:00:00Z",
			"completed_at": null
		}
	}`)

	ev, err := ParseChangeEvent(payload)
	require.NoError(t, err)

	assert.Equal(t, OpInsert, ev.Op)
	assert.Equal(t, TableTransactions, ev.Table)
	require.NotNil(t, ev.Transaction)
	assert.Nil(t, ev.OldTransaction)
	assert.Equal(t, "tx-1", ev.Transaction.ID)
	assert.Equal(t, StatusOpen, ev.Transaction.Status)
	assert.True(t, ev.Transaction.Amount.Equal(decimal.NewFromFloat(2.5)))
	assert.Nil(t, ev.Transaction.RecipientID)
}

func TestParseChangeEventTransactionUpdateCarriesBothRows(t *testing.T) {
	payload := []byte(`{
		"op": "UPDATE",
		"table": "time_transactions",
		"new": {"id": "tx-1", "user_id": "alice", "recipient_id": "bob", "type": "earned", "amount": 1, "service_type": "tutoring", "description": "d", "status": "in_progress", "created_at": "2025-06-01T10:00:00Z"},
		"old": {"id": "tx-1", "user_id": "alice", "recipient_id": null, "type": "earned", "amount": 1, "service_type": "tutoring", "description": "d", "status": "open", "created_at": "2025-06-01T10:00:00Z"}
	}`)

	ev, err := ParseChangeEvent(payload)
	require.NoError(t, err)

	require.NotNil(t, ev.Transaction)
	require.NotNil(t, ev.OldTransaction)
	assert.Equal(t, StatusInProgress, ev.Transaction.Status)
	assert.Equal(t, StatusOpen, ev.OldTransaction.Status)
	require.NotNil(t, ev.Transaction.RecipientID)
	assert.Equal(t, "bob", *ev.Transaction.RecipientID)
}

func TestParseChangeEventBalanceUpdate(t *testing.T) {
	payload := []byte(`{
		"op": "UPDATE",
		"table": "time_balances",
		"new": {"id": "alice", "balance": 7, "updated_at": "2025-06-01T10:00:00Z"},
		"old": {"id": "alice", "balance": 5, "updated_at": "2025-06-01T09:00:00Z"}
	}`)

	ev, err := ParseChangeEvent(payload)
	require.NoError(t, err)

	require.NotNil(t, ev.Balance)
	require.NotNil(t, ev.OldBalance)
	assert.True(t, ev.Balance.Balance.Equal(decimal.NewFromInt(7)))
	assert.True(t, ev.OldBalance.Balance.Equal(decimal.NewFromInt(5)))
	assert.Nil(t, ev.Transaction)
}

func TestParseChangeEventRejectsBadPayloads(t *testing.T) {
	row := `{"id": "tx-1", "user_id": "alice", "type": "earned", "amount": 1, "service_type": "t", "description": "d", "status": "open", "created_at": "2025-06-01T10:00:00Z"}`

	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{{{`},
		{"unknown op", `{"op": "TRUNCATE", "table": "time_transactions", "new": ` + row + `}`},
		{"unknown table", `{"op": "INSERT", "table": "users", "new": ` + row + `}`},
		{"insert without new row", `{"op": "INSERT", "table": "time_transactions"}`},
		{"delete without old row", `{"op": "DELETE", "table": "time_transactions"}`},
		{"row of the wrong shape", `{"op": "INSERT", "table": "time_transactions", "new": {"amount": "not-a-number"}}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseChangeEvent([]byte(tc.payload))
			assert.Error(t, err)
		})
	}
}

func TestChangeEventInvolves(t *testing.T) {
	recipient := "bob"
	txEv := ChangeEvent{
		Op:    OpUpdate,
		Table: TableTransactions,
		Transaction: &TimeTransaction{
			ID:          "tx-1",
			UserID:      "alice",
			RecipientID: &recipient,
		},
	}

	assert.True(t, txEv.Involves("alice"))
	assert.True(t, txEv.Involves("bob"))
	assert.False(t, txEv.Involves("carol"))

	balanceEv := ChangeEvent{
		Op:      OpUpdate,
		Table:   TableBalances,
		Balance: &TimeBalance{ID: "alice"},
	}
	assert.True(t, balanceEv.Involves("alice"))
	assert.False(t, balanceEv.Involves("bob"))

	// Deletes only carry the old row; involvement still holds
	deleteEv := ChangeEvent{
		Op:             OpDelete,
		Table:          TableTransactions,
		OldTransaction: &TimeTransaction{ID: "tx-1", UserID: "alice"},
	}
	assert.True(t, deleteEv.Involves("alice"))
	assert.False(t, deleteEv.Involves("bob"))
}
