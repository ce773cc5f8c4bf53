package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Time-Craft/time-crafting-hub/internal/models"
	"github.com/Time-Craft/time-crafting-hub/internal/realtime"
)

// MemoryRepository is an in-memory Repository used by tests. It keeps the
// exact conditional-write semantics of the Postgres implementation: every
// precondition is checked and applied under one lock acquisition, so at most
// one of any number of concurrent accepts can win. It also publishes the
// same change events the database triggers would.
type MemoryRepository struct {
	mu           sync.Mutex
	users        map[string]models.User
	profiles     map[string]models.Profile
	transactions map[string]models.TimeTransaction
	balances     map[string]models.TimeBalance
	broker       *realtime.Broker
}

// NewMemoryRepository creates an empty store. broker may be nil when no
// change feed is needed.
func NewMemoryRepository(broker *realtime.Broker) *MemoryRepository {
	return &MemoryRepository{
		users:        make(map[string]models.User),
		profiles:     make(map[string]models.Profile),
		transactions: make(map[string]models.TimeTransaction),
		balances:     make(map[string]models.TimeBalance),
		broker:       broker,
	}
}

func (r *MemoryRepository) publish(ev models.ChangeEvent) {
	if r.broker != nil {
		r.broker.Publish(ev)
	}
}

// User repository methods
func (r *MemoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.users[user.ID] = *user
	return nil
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	u := user
	return &u, nil
}

// Profile repository methods
func (r *MemoryRepository) CreateProfile(ctx context.Context, profile *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	r.profiles[profile.ID] = *profile
	return nil
}

func (r *MemoryRepository) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, ok := r.profiles[id]
	if !ok {
		return nil, nil
	}
	p := profile
	return &p, nil
}

// Transaction repository methods
func (r *MemoryRepository) CreateTransaction(ctx context.Context, tx *models.TimeTransaction) error {
	r.mu.Lock()

	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	stored := *tx
	r.transactions[stored.ID] = stored
	r.mu.Unlock()

	r.publish(models.ChangeEvent{
		Op:          models.OpInsert,
		Table:       models.TableTransactions,
		Transaction: &stored,
	})
	return nil
}

func (r *MemoryRepository) GetTransaction(ctx context.Context, id string) (*models.TimeTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.transactions[id]
	if !ok {
		return nil, nil
	}
	t := tx
	return &t, nil
}

func (r *MemoryRepository) ListOpenOffers(ctx context.Context, excludeUserID string) ([]models.TimeTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var offers []models.TimeTransaction
	for _, tx := range r.transactions {
		if tx.Type != models.TypeEarned || tx.Status != models.StatusOpen {
			continue
		}
		if excludeUserID != "" && tx.UserID == excludeUserID {
			continue
		}
		offers = append(offers, tx)
	}
	sortNewestFirst(offers)
	return offers, nil
}

func (r *MemoryRepository) ListPendingOffers(ctx context.Context, creatorID string) ([]models.TimeTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var offers []models.TimeTransaction
	for _, tx := range r.transactions {
		if tx.UserID == creatorID && tx.Type == models.TypeEarned && tx.Status == models.StatusInProgress {
			offers = append(offers, tx)
		}
	}
	sortNewestFirst(offers)
	return offers, nil
}

func (r *MemoryRepository) ListUserTransactions(ctx context.Context, userID string) ([]models.TimeTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var txs []models.TimeTransaction
	for _, tx := range r.transactions {
		if tx.UserID == userID || (tx.RecipientID != nil && *tx.RecipientID == userID) {
			txs = append(txs, tx)
		}
	}
	sortNewestFirst(txs)
	return txs, nil
}

func (r *MemoryRepository) AcceptOffer(ctx context.Context, offerID, recipientID string) (bool, error) {
	r.mu.Lock()

	tx, ok := r.transactions[offerID]
	if !ok || tx.Status != models.StatusOpen || tx.UserID == recipientID {
		r.mu.Unlock()
		return false, nil
	}

	old := tx
	tx.Status = models.StatusInProgress
	tx.RecipientID = &recipientID
	r.transactions[offerID] = tx
	r.mu.Unlock()

	r.publish(models.ChangeEvent{
		Op:             models.OpUpdate,
		Table:          models.TableTransactions,
		Transaction:    &tx,
		OldTransaction: &old,
	})
	return true, nil
}

func (r *MemoryRepository) ResolveOffer(
	ctx context.Context,
	offerID string,
	ownerID string,
	outcome models.TransactionStatus,
	completedAt time.Time,
) (bool, error) {
	r.mu.Lock()

	tx, ok := r.transactions[offerID]
	if !ok || tx.UserID != ownerID || tx.Type != models.TypeEarned || tx.Status != models.StatusInProgress {
		r.mu.Unlock()
		return false, nil
	}

	oldTx := tx
	tx.Status = outcome
	tx.CompletedAt = &completedAt
	r.transactions[offerID] = tx

	events := []models.ChangeEvent{{
		Op:             models.OpUpdate,
		Table:          models.TableTransactions,
		Transaction:    &tx,
		OldTransaction: &oldTx,
	}}

	// Resolve the accepter's mirrored spend record alongside the offer.
	// offer_id pins the mirror to exactly this exchange.
	recipientID := ""
	if tx.RecipientID != nil {
		recipientID = *tx.RecipientID
	}
	for id, mirror := range r.transactions {
		if mirror.Type != models.TypeSpent || mirror.Status != models.StatusInProgress {
			continue
		}
		if mirror.OfferID == nil || *mirror.OfferID != offerID {
			continue
		}
		oldMirror := mirror
		mirror.Status = outcome
		mirror.CompletedAt = &completedAt
		r.transactions[id] = mirror
		updated := mirror
		events = append(events, models.ChangeEvent{
			Op:             models.OpUpdate,
			Table:          models.TableTransactions,
			Transaction:    &updated,
			OldTransaction: &oldMirror,
		})
	}

	if outcome == models.StatusAccepted {
		events = append(events,
			r.adjustBalanceLocked(recipientID, tx.Amount.Neg(), completedAt),
			r.adjustBalanceLocked(ownerID, tx.Amount, completedAt))
	}

	r.mu.Unlock()

	for _, ev := range events {
		r.publish(ev)
	}
	return true, nil
}

// adjustBalanceLocked applies a delta to a balance row and returns the
// matching change event. Caller holds the lock.
func (r *MemoryRepository) adjustBalanceLocked(userID string, delta decimal.Decimal, at time.Time) models.ChangeEvent {
	old := r.balances[userID]
	updated := models.TimeBalance{
		ID:        userID,
		Balance:   old.Balance.Add(delta),
		UpdatedAt: at,
	}
	r.balances[userID] = updated

	oldCopy := old
	oldCopy.ID = userID
	return models.ChangeEvent{
		Op:         models.OpUpdate,
		Table:      models.TableBalances,
		Balance:    &updated,
		OldBalance: &oldCopy,
	}
}

func (r *MemoryRepository) DeleteOffer(ctx context.Context, offerID, ownerID string) (bool, error) {
	r.mu.Lock()

	tx, ok := r.transactions[offerID]
	if !ok || tx.UserID != ownerID || tx.Status != models.StatusOpen {
		r.mu.Unlock()
		return false, nil
	}

	delete(r.transactions, offerID)
	r.mu.Unlock()

	r.publish(models.ChangeEvent{
		Op:             models.OpDelete,
		Table:          models.TableTransactions,
		OldTransaction: &tx,
	})
	return true, nil
}

// Balance repository methods
func (r *MemoryRepository) CreateBalance(ctx context.Context, userID string, initial decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.balances[userID]; ok {
		return nil
	}
	r.balances[userID] = models.TimeBalance{
		ID:        userID,
		Balance:   initial,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

func (r *MemoryRepository) GetBalance(ctx context.Context, userID string) (*models.TimeBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	balance, ok := r.balances[userID]
	if !ok {
		return nil, nil
	}
	b := balance
	return &b, nil
}

func sortNewestFirst(txs []models.TimeTransaction) {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].ID < txs[j].ID
		}
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
}
