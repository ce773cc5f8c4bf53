package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Time-Craft/time-crafting-hub/internal/models"
)

// Repository interface defines the methods that any persistence gateway
// implementation must satisfy.
//
// Every mutating offer operation takes its preconditions (expected status,
// owning user) as part of the write itself, not as a separate read. The
// boolean result reports whether the conditional write matched a row; false
// means the state changed underneath the caller and is never an error.
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Profile operations
	CreateProfile(ctx context.Context, profile *models.Profile) error
	GetProfile(ctx context.Context, id string) (*models.Profile, error)

	// Transaction operations
	CreateTransaction(ctx context.Context, tx *models.TimeTransaction) error
	GetTransaction(ctx context.Context, id string) (*models.TimeTransaction, error)
	ListOpenOffers(ctx context.Context, excludeUserID string) ([]models.TimeTransaction, error)
	ListPendingOffers(ctx context.Context, creatorID string) ([]models.TimeTransaction, error)
	ListUserTransactions(ctx context.Context, userID string) ([]models.TimeTransaction, error)

	// AcceptOffer claims an open offer for recipientID. The write requires
	// status = open and creator <> recipientID; at most one of any number of
	// concurrent calls can succeed.
	AcceptOffer(ctx context.Context, offerID, recipientID string) (bool, error)

	// ResolveOffer finalizes an in-progress exchange as accepted or declined.
	// The write requires status = in_progress and user_id = ownerID. On
	// accept, the hour transfer (credit creator, debit recipient) and the
	// mirrored spend record's resolution commit in the same transaction.
	ResolveOffer(ctx context.Context, offerID, ownerID string, outcome models.TransactionStatus, completedAt time.Time) (bool, error)

	// DeleteOffer removes an offer. The delete requires status = open and
	// user_id = ownerID, so it cannot race a concurrent accept.
	DeleteOffer(ctx context.Context, offerID, ownerID string) (bool, error)

	// Balance operations
	CreateBalance(ctx context.Context, userID string, initial decimal.Decimal) error
	GetBalance(ctx context.Context, userID string) (*models.TimeBalance, error)
}
