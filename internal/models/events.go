package models

import (
	"encoding/json"
	"fmt"
)

// ChangeOp tags the kind of row change a gateway event describes.
// Values match Postgres TG_OP so trigger payloads decode directly.
type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
)

// Tables the change feed covers.
const (
	TableTransactions = "time_transactions"
	TableBalances     = "time_balances"
)

// ChangeEvent is a validated change notification from the persistence
// gateway. Exactly one pair of row fields is populated, matching Table:
// Transaction/OldTransaction for time_transactions, Balance/OldBalance for
// time_balances. Inserts carry only the new row, deletes only the old one.
type ChangeEvent struct {
	Op    ChangeOp `json:"op"`
	Table string   `json:"table"`

	Transaction    *TimeTransaction `json:"transaction,omitempty"`
	OldTransaction *TimeTransaction `json:"old_transaction,omitempty"`
	Balance        *TimeBalance     `json:"balance,omitempty"`
	OldBalance     *TimeBalance     `json:"old_balance,omitempty"`
}

// wireChangeEvent is the loosely-typed shape emitted by the notify trigger:
// {"op": ..., "table": ..., "new": {...}, "old": {...}}.
type wireChangeEvent struct {
	Op    ChangeOp        `json:"op"`
	Table string          `json:"table"`
	New   json.RawMessage `json:"new"`
	Old   json.RawMessage `json:"old"`
}

// ParseChangeEvent validates a raw gateway payload and lifts it into the
// typed event union. Unknown tables and operations are rejected here so the
// rest of the system only ever sees well-formed events.
func ParseChangeEvent(payload []byte) (*ChangeEvent, error) {
	var wire wireChangeEvent
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("malformed change payload: %w", err)
	}

	switch wire.Op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return nil, fmt.Errorf("unknown change op %q", wire.Op)
	}

	if wire.Op != OpDelete && wire.New == nil {
		return nil, fmt.Errorf("%s event missing new row", wire.Op)
	}
	if wire.Op == OpDelete && wire.Old == nil {
		return nil, fmt.Errorf("DELETE event missing old row")
	}

	ev := &ChangeEvent{Op: wire.Op, Table: wire.Table}

	switch wire.Table {
	case TableTransactions:
		if wire.New != nil {
			ev.Transaction = &TimeTransaction{}
			if err := json.Unmarshal(wire.New, ev.Transaction); err != nil {
				return nil, fmt.Errorf("decoding transaction row: %w", err)
			}
		}
		if wire.Old != nil {
			ev.OldTransaction = &TimeTransaction{}
			if err := json.Unmarshal(wire.Old, ev.OldTransaction); err != nil {
				return nil, fmt.Errorf("decoding old transaction row: %w", err)
			}
		}
	case TableBalances:
		if wire.New != nil {
			ev.Balance = &TimeBalance{}
			if err := json.Unmarshal(wire.New, ev.Balance); err != nil {
				return nil, fmt.Errorf("decoding balance row: %w", err)
			}
		}
		if wire.Old != nil {
			ev.OldBalance = &TimeBalance{}
			if err := json.Unmarshal(wire.Old, ev.OldBalance); err != nil {
				return nil, fmt.Errorf("decoding old balance row: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("unknown change table %q", wire.Table)
	}

	return ev, nil
}

// Involves reports whether the event touches the given user, either as a
// party to the transaction or as the balance owner.
func (ev *ChangeEvent) Involves(userID string) bool {
	touches := func(tx *TimeTransaction) bool {
		if tx == nil {
			return false
		}
		if tx.UserID == userID {
			return true
		}
		return tx.RecipientID != nil && *tx.RecipientID == userID
	}

	switch ev.Table {
	case TableTransactions:
		return touches(ev.Transaction) || touches(ev.OldTransaction)
	case TableBalances:
		if ev.Balance != nil && ev.Balance.ID == userID {
			return true
		}
		return ev.OldBalance != nil && ev.OldBalance.ID == userID
	}
	return false
}
