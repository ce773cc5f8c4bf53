// Package notify is the notification sink boundary: the lifecycle engine
// returns plain result values, and this package turns confirmed change
// events into the user-facing messages a client surfaces.
package notify

import (
	"fmt"
	"log/slog"

	"github.com/Time-Craft/time-crafting-hub/internal/models"
)

// Kind classifies a notification for presentation.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is one user-visible message.
type Notification struct {
	Kind    Kind   `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Sink receives notifications, fire-and-forget.
type Sink interface {
	Notify(kind Kind, title, message string)
}

// SlogSink writes notifications to a structured logger. It stands in for
// any real delivery channel during development and in tests.
type SlogSink struct {
	Logger *slog.Logger
}

func (s *SlogSink) Notify(kind Kind, title, message string) {
	s.Logger.Info("notification", "kind", kind, "title", title, "message", message)
}

// ForUser maps a confirmed change event to the notification the given user
// should see, if any. It is pure: no I/O, no state.
func ForUser(userID string, ev models.ChangeEvent) (*Notification, bool) {
	switch ev.Table {
	case models.TableTransactions:
		return forTransaction(userID, ev)
	case models.TableBalances:
		return forBalance(userID, ev)
	}
	return nil, false
}

func forTransaction(userID string, ev models.ChangeEvent) (*Notification, bool) {
	if ev.Op != models.OpUpdate || ev.Transaction == nil || ev.OldTransaction == nil {
		return nil, false
	}

	newTx, oldTx := ev.Transaction, ev.OldTransaction
	if newTx.Status == oldTx.Status {
		return nil, false
	}

	switch newTx.Status {
	case models.StatusInProgress:
		if newTx.UserID == userID {
			return &Notification{
				Kind:    KindSuccess,
				Title:   "New Offer Request",
				Message: fmt.Sprintf("Someone wants to accept your %s offer for %s hours", newTx.ServiceType, newTx.Amount.String()),
			}, true
		}
	case models.StatusAccepted:
		if newTx.RecipientID != nil && *newTx.RecipientID == userID {
			return &Notification{
				Kind:    KindSuccess,
				Title:   "Offer Accepted",
				Message: fmt.Sprintf("Your %s request was accepted", newTx.ServiceType),
			}, true
		}
	case models.StatusDeclined:
		if newTx.RecipientID != nil && *newTx.RecipientID == userID {
			return &Notification{
				Kind:    KindError,
				Title:   "Offer Declined",
				Message: fmt.Sprintf("Your %s request was declined", newTx.ServiceType),
			}, true
		}
	}
	return nil, false
}

func forBalance(userID string, ev models.ChangeEvent) (*Notification, bool) {
	if ev.Op != models.OpUpdate || ev.Balance == nil || ev.OldBalance == nil {
		return nil, false
	}
	if ev.Balance.ID != userID || ev.Balance.Balance.Equal(ev.OldBalance.Balance) {
		return nil, false
	}

	diff := ev.Balance.Balance.Sub(ev.OldBalance.Balance)
	direction := "increased"
	if diff.IsNegative() {
		direction = "decreased"
	}
	return &Notification{
		Kind:    KindSuccess,
		Title:   "Balance Updated",
		Message: fmt.Sprintf("Your time balance has %s by %s hours", direction, diff.Abs().String()),
	}, true
}
