package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// TransactionType distinguishes the two sides of an exchange: the creator's
// offer record ("earned") and the accepter's mirrored debit record ("spent").
type TransactionType string

const (
	TypeEarned TransactionType = "earned"
	TypeSpent  TransactionType = "spent"
)

// TransactionStatus is the lifecycle state of a transaction.
// Valid transitions: open -> in_progress -> accepted | declined.
// An open offer may also be deleted by its creator.
type TransactionStatus string

const (
	StatusOpen       TransactionStatus = "open"
	StatusInProgress TransactionStatus = "in_progress"
	StatusAccepted   TransactionStatus = "accepted"
	StatusDeclined   TransactionStatus = "declined"
)

// Terminal reports whether no further transitions are possible.
func (s TransactionStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusDeclined
}

// User represents an account holder
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Password  string    `db:"password" json:"-"` // Password hash, not returned in JSON
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TimeTransaction is the central entity: an offer as posted, or the
// corresponding spend record created when the offer is accepted.
// RecipientID is null exactly while the status is open. OfferID is set only
// on spent records and names the earned offer they mirror.
type TimeTransaction struct {
	ID          string            `db:"id" json:"id"`
	UserID      string            `db:"user_id" json:"user_id"`
	RecipientID *string           `db:"recipient_id" json:"recipient_id"`
	OfferID     *string           `db:"offer_id" json:"offer_id"`
	Type        TransactionType   `db:"type" json:"type"`
	Amount      decimal.Decimal   `db:"amount" json:"amount"`
	ServiceType string            `db:"service_type" json:"service_type"`
	Description string            `db:"description" json:"description"`
	Status      TransactionStatus `db:"status" json:"status"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	CompletedAt *time.Time        `db:"completed_at" json:"completed_at"`
}

// TimeBalance is a user's spendable hour credit, one row per user.
type TimeBalance struct {
	ID        string          `db:"id" json:"id"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Profile holds the public-facing user data. Read-only from the
// marketplace core; profile editing lives elsewhere.
type Profile struct {
	ID        string         `db:"id" json:"id"`
	Username  *string        `db:"username" json:"username"`
	Services  pq.StringArray `db:"services" json:"services"`
	AvatarURL *string        `db:"avatar_url" json:"avatar_url"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// OfferView is an offer as presented to a viewer: the server-confirmed row
// overlaid with the local pending-accept marker, so an offer whose accept is
// still in flight already reads as claimed.
type OfferView struct {
	TimeTransaction
	Pending bool `json:"pending"`
}

// TransactionStats aggregates a user's exchange history.
type TransactionStats struct {
	ActiveServices     int             `json:"activeServices"`
	CompletedExchanges int             `json:"completedExchanges"`
	EarnedHours        decimal.Decimal `json:"earnedHours"`
	SpentHours         decimal.Decimal `json:"spentHours"`
}
