package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/Time-Craft/time-crafting-hub/internal/models"
)

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// User repository methods
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, name, password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.Password, user.CreatedAt, user.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT * FROM users WHERE email = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

// Profile repository methods
func (r *PostgresRepository) CreateProfile(ctx context.Context, profile *models.Profile) error {
	query := `
		INSERT INTO profiles (id, username, services, avatar_url, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		profile.ID, profile.Username, profile.Services, profile.AvatarURL, profile.CreatedAt)

	return err
}

func (r *PostgresRepository) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	query := `SELECT * FROM profiles WHERE id = $1`

	var profile models.Profile
	err := r.db.GetContext(ctx, &profile, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Profile not found
		}
		return nil, err
	}

	return &profile, nil
}

// Transaction repository methods
func (r *PostgresRepository) CreateTransaction(ctx context.Context, tx *models.TimeTransaction) error {
	query := `
		INSERT INTO time_transactions
			(id, user_id, recipient_id, offer_id, type, amount, service_type, description, status, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.UserID, tx.RecipientID, tx.OfferID, tx.Type, tx.Amount,
		tx.ServiceType, tx.Description, tx.Status, tx.CreatedAt, tx.CompletedAt)

	return err
}

func (r *PostgresRepository) GetTransaction(ctx context.Context, id string) (*models.TimeTransaction, error) {
	query := `SELECT * FROM time_transactions WHERE id = $1`

	var tx models.TimeTransaction
	err := r.db.GetContext(ctx, &tx, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Transaction not found
		}
		return nil, err
	}

	return &tx, nil
}

func (r *PostgresRepository) ListOpenOffers(ctx context.Context, excludeUserID string) ([]models.TimeTransaction, error) {
	query := `
		SELECT * FROM time_transactions
		WHERE type = 'earned' AND status = 'open'
	`

	args := []interface{}{}
	if excludeUserID != "" {
		query += ` AND user_id <> $1`
		args = append(args, excludeUserID)
	}

	query += ` ORDER BY created_at DESC`

	var offers []models.TimeTransaction
	err := r.db.SelectContext(ctx, &offers, query, args...)
	if err != nil {
		return nil, err
	}

	return offers, nil
}

func (r *PostgresRepository) ListPendingOffers(ctx context.Context, creatorID string) ([]models.TimeTransaction, error) {
	query := `
		SELECT * FROM time_transactions
		WHERE user_id = $1 AND type = 'earned' AND status = 'in_progress'
		ORDER BY created_at DESC
	`

	var offers []models.TimeTransaction
	err := r.db.SelectContext(ctx, &offers, query, creatorID)
	if err != nil {
		return nil, err
	}

	return offers, nil
}

func (r *PostgresRepository) ListUserTransactions(ctx context.Context, userID string) ([]models.TimeTransaction, error) {
	query := `
		SELECT * FROM time_transactions
		WHERE user_id = $1 OR recipient_id = $1
		ORDER BY created_at DESC
	`

	var txs []models.TimeTransaction
	err := r.db.SelectContext(ctx, &txs, query, userID)
	if err != nil {
		return nil, err
	}

	return txs, nil
}

// AcceptOffer performs the conditional claim. The status and creator checks
// live in the WHERE clause, so two concurrent accepts can never both match.
func (r *PostgresRepository) AcceptOffer(ctx context.Context, offerID, recipientID string) (bool, error) {
	query := `
		UPDATE time_transactions
		SET status = 'in_progress', recipient_id = $2
		WHERE id = $1 AND status = 'open' AND user_id <> $2
	`

	result, err := r.db.ExecContext(ctx, query, offerID, recipientID)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

// ResolveOffer finalizes an exchange. Declines only flip the status; accepts
// additionally move the hours and resolve the accepter's mirrored spend
// record, all inside one database transaction.
func (r *PostgresRepository) ResolveOffer(
	ctx context.Context,
	offerID string,
	ownerID string,
	outcome models.TransactionStatus,
	completedAt time.Time,
) (bool, error) {
	if !outcome.Terminal() {
		return false, fmt.Errorf("outcome %q is not a terminal status", outcome)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	var (
		recipientID string
		amount      decimal.Decimal
	)
	err = tx.QueryRowContext(ctx,
		`UPDATE time_transactions
		SET status = $3, completed_at = $4
		WHERE id = $1 AND user_id = $2 AND type = 'earned' AND status = 'in_progress'
		RETURNING recipient_id, amount`,
		offerID, ownerID, outcome, completedAt).Scan(&recipientID, &amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
			tx.Rollback()
			return false, nil // State changed underneath the caller
		}
		return false, err
	}

	// Resolve the accepter's mirrored spend record alongside the offer.
	// offer_id pins the mirror to exactly this exchange.
	_, err = tx.ExecContext(ctx,
		`UPDATE time_transactions
		SET status = $2, completed_at = $3
		WHERE type = 'spent' AND offer_id = $1 AND status = 'in_progress'`,
		offerID, outcome, completedAt)
	if err != nil {
		return false, err
	}

	if outcome == models.StatusAccepted {
		// The hour transfer is realized at confirmation, never at accept, so
		// a declined exchange cannot strand hours.
		_, err = tx.ExecContext(ctx,
			`UPDATE time_balances SET balance = balance - $2, updated_at = $3 WHERE id = $1`,
			recipientID, amount, completedAt)
		if err != nil {
			return false, err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE time_balances SET balance = balance + $2, updated_at = $3 WHERE id = $1`,
			ownerID, amount, completedAt)
		if err != nil {
			return false, err
		}
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}

	return true, nil
}

func (r *PostgresRepository) DeleteOffer(ctx context.Context, offerID, ownerID string) (bool, error) {
	query := `
		DELETE FROM time_transactions
		WHERE id = $1 AND user_id = $2 AND status = 'open'
	`

	result, err := r.db.ExecContext(ctx, query, offerID, ownerID)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

// Balance repository methods
func (r *PostgresRepository) CreateBalance(ctx context.Context, userID string, initial decimal.Decimal) error {
	query := `
		INSERT INTO time_balances (id, balance, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, userID, initial, time.Now().UTC())
	return err
}

func (r *PostgresRepository) GetBalance(ctx context.Context, userID string) (*models.TimeBalance, error) {
	query := `SELECT * FROM time_balances WHERE id = $1`

	var balance models.TimeBalance
	err := r.db.GetContext(ctx, &balance, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No balance row yet
		}
		return nil, err
	}

	return &balance, nil
}
