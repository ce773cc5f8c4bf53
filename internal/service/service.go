package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/Time-Craft/time-crafting-hub/internal/cache"
	"github.com/Time-Craft/time-crafting-hub/internal/models"
	"github.com/Time-Craft/time-crafting-hub/internal/repository"
)

// signupGrant is the hour balance a new account starts with, so new members
// can take part before their first offer is confirmed.
var signupGrant = decimal.NewFromInt(5)

// Service defines all the business logic operations
type Service interface {
	// Authentication
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)

	// Offer lifecycle
	CreateOffer(ctx context.Context, userID string, req models.CreateOfferRequest) (*models.TimeTransaction, error)
	AcceptOffer(ctx context.Context, offerID, accepterID string) (*models.TimeTransaction, error)
	ConfirmOffer(ctx context.Context, offerID, ownerID string) error
	DeclineOffer(ctx context.Context, offerID, ownerID string) error
	DeleteOffer(ctx context.Context, offerID, ownerID string) error

	// Read models
	ListOpenOffers(ctx context.Context, userID string) ([]models.OfferView, error)
	ListPendingOffers(ctx context.Context, ownerID string) ([]models.TimeTransaction, error)
	ListUserTransactions(ctx context.Context, userID string) ([]models.TimeTransaction, error)
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)
	GetStats(ctx context.Context, userID string) (*models.TransactionStats, error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
}

// DefaultService implements the Service interface. It is the offer lifecycle
// engine: every state transition goes through here, and every mutating call
// carries its preconditions into the repository's conditional write. The
// engine never reports success before the primary write is committed.
type DefaultService struct {
	repo          repository.Repository
	offers        *cache.OfferCache
	balances      *cache.BalanceStore
	logger        *slog.Logger
	jwtSecret     []byte
	tokenDuration time.Duration
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(
	repo repository.Repository,
	offers *cache.OfferCache,
	balances *cache.BalanceStore,
	jwtSecret string,
	logger *slog.Logger,
) Service {
	return &DefaultService{
		repo:          repo,
		offers:        offers,
		balances:      balances,
		logger:        logger,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 24 * time.Hour, // 24 hours token validity
	}
}

// Authentication methods
func (s *DefaultService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error) {
	existingUser, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}
	if existingUser != nil {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		ID:       uuid.New().String(),
		Email:    req.Email,
		Name:     req.Name,
		Password: string(hashedPassword),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	username := user.Name
	profile := &models.Profile{
		ID:       user.ID,
		Username: &username,
		Services: pq.StringArray{},
	}
	if err := s.repo.CreateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("error creating profile: %w", err)
	}

	if err := s.repo.CreateBalance(ctx, user.ID, signupGrant); err != nil {
		return nil, fmt.Errorf("error creating balance: %w", err)
	}

	// Sign the new account in right away
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		UserID:    user.ID,
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

// CreateOffer validates and inserts a new open offer. Validation failures
// never reach the gateway, so there is no partial insert to clean up.
func (s *DefaultService) CreateOffer(ctx context.Context, userID string, req models.CreateOfferRequest) (*models.TimeTransaction, error) {
	if userID == "" {
		return nil, ErrAuthenticationRequired
	}
	if !req.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if strings.TrimSpace(req.ServiceType) == "" {
		return nil, &ValidationError{Field: "serviceType", Reason: "must not be empty"}
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, &ValidationError{Field: "description", Reason: "must not be empty"}
	}

	offer := &models.TimeTransaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        models.TypeEarned,
		Amount:      req.Amount,
		ServiceType: strings.TrimSpace(req.ServiceType),
		Description: strings.TrimSpace(req.Description),
		Status:      models.StatusOpen,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.CreateTransaction(ctx, offer); err != nil {
		return nil, fmt.Errorf("error creating offer: %w", err)
	}

	s.logger.Info("offer created",
		"offer_id", offer.ID,
		"user_id", userID,
		"service_type", offer.ServiceType,
		"amount", offer.Amount,
	)
	return offer, nil
}

// AcceptOffer claims an open offer for accepterID. Preconditions are checked
// in order and fail fast: identity, not the creator, sufficient balance (read
// fresh, never from the cache), and finally the conditional write itself. The
// offer stays marked pending locally while the write is in flight; the marker
// is reverted if the operation fails.
//
// Duplicate concurrent invocations for the same offer are safe: the
// conditional write lets at most one succeed, and the rest surface
// ErrOfferNoLongerAvailable.
func (s *DefaultService) AcceptOffer(ctx context.Context, offerID, accepterID string) (*models.TimeTransaction, error) {
	if accepterID == "" {
		acceptOutcomes.WithLabelValues("unauthenticated").Inc()
		return nil, ErrAuthenticationRequired
	}

	offer, err := s.repo.GetTransaction(ctx, offerID)
	if err != nil {
		acceptOutcomes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("error fetching offer: %w", err)
	}
	if offer == nil || offer.Status != models.StatusOpen {
		acceptOutcomes.WithLabelValues("unavailable").Inc()
		s.offers.Invalidate()
		return nil, ErrOfferNoLongerAvailable
	}

	if offer.UserID == accepterID {
		acceptOutcomes.WithLabelValues("self_accept").Inc()
		return nil, ErrSelfAcceptForbidden
	}

	// Re-validate the balance from a fresh gateway read immediately before
	// the write; a cached value may be up to a minute old.
	available := decimal.Zero
	balance, err := s.repo.GetBalance(ctx, accepterID)
	if err != nil {
		acceptOutcomes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("error fetching balance: %w", err)
	}
	if balance != nil {
		available = balance.Balance
		s.balances.Set(accepterID, balance.Balance)
	}
	if available.LessThan(offer.Amount) {
		acceptOutcomes.WithLabelValues("insufficient_balance").Inc()
		return nil, &InsufficientBalanceError{Required: offer.Amount, Available: available}
	}

	// Optimistic overlay: show the offer as claimed before the round trip
	// completes, and revert if it fails.
	s.offers.MarkPending(offerID)

	ok, err := s.repo.AcceptOffer(ctx, offerID, accepterID)
	if err != nil {
		s.offers.ClearPending(offerID)
		acceptOutcomes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("error accepting offer: %w", err)
	}
	if !ok {
		// Someone else won the race, or the offer was deleted. Refetch so the
		// local view reflects current truth.
		s.offers.ClearPending(offerID)
		s.offers.Invalidate()
		acceptOutcomes.WithLabelValues("conflict").Inc()
		return nil, ErrOfferNoLongerAvailable
	}

	accepted := *offer
	accepted.Status = models.StatusInProgress
	accepted.RecipientID = &accepterID

	// The mirrored spend record lets the accepter list the exchange from
	// their side. Its failure is secondary: the primary update is already
	// committed, so it is reported and logged but never rolled back.
	mirror := &models.TimeTransaction{
		ID:          uuid.New().String(),
		UserID:      accepterID,
		RecipientID: &offer.UserID,
		OfferID:     &offerID,
		Type:        models.TypeSpent,
		Amount:      offer.Amount,
		ServiceType: offer.ServiceType,
		Description: offer.Description,
		Status:      models.StatusInProgress,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.CreateTransaction(ctx, mirror); err != nil {
		s.logger.Warn("mirrored spend record creation failed after accept",
			"offer_id", offerID,
			"accepter_id", accepterID,
			"error", err,
		)
	}

	acceptOutcomes.WithLabelValues("success").Inc()
	s.logger.Info("offer accepted",
		"offer_id", offerID,
		"creator_id", offer.UserID,
		"accepter_id", accepterID,
	)
	return &accepted, nil
}

// ConfirmOffer finalizes an exchange: in_progress -> accepted. Only the
// creator can confirm, and the hour transfer commits atomically with the
// status write.
func (s *DefaultService) ConfirmOffer(ctx context.Context, offerID, ownerID string) error {
	return s.resolveOffer(ctx, offerID, ownerID, models.StatusAccepted)
}

// DeclineOffer rejects an exchange: in_progress -> declined. No hours move.
func (s *DefaultService) DeclineOffer(ctx context.Context, offerID, ownerID string) error {
	return s.resolveOffer(ctx, offerID, ownerID, models.StatusDeclined)
}

func (s *DefaultService) resolveOffer(ctx context.Context, offerID, ownerID string, outcome models.TransactionStatus) error {
	if ownerID == "" {
		return ErrAuthenticationRequired
	}

	ok, err := s.repo.ResolveOffer(ctx, offerID, ownerID, outcome, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("error resolving offer: %w", err)
	}
	if !ok {
		s.offers.Invalidate()
		return ErrOfferNoLongerAvailable
	}

	if outcome == models.StatusAccepted {
		// Balances moved; drop any cached values for both parties.
		s.balances.Invalidate(ownerID)
		offer, err := s.repo.GetTransaction(ctx, offerID)
		if err == nil && offer != nil && offer.RecipientID != nil {
			s.balances.Invalidate(*offer.RecipientID)
		}
	}

	s.logger.Info("offer resolved",
		"offer_id", offerID,
		"owner_id", ownerID,
		"outcome", outcome,
	)
	return nil
}

// DeleteOffer removes an open offer. The status check rides inside the
// delete predicate, so deleting cannot race a concurrent accept.
func (s *DefaultService) DeleteOffer(ctx context.Context, offerID, ownerID string) error {
	if ownerID == "" {
		return ErrAuthenticationRequired
	}

	ok, err := s.repo.DeleteOffer(ctx, offerID, ownerID)
	if err != nil {
		return fmt.Errorf("error deleting offer: %w", err)
	}
	if !ok {
		s.offers.Invalidate()
		return ErrOfferNoLongerAvailable
	}

	s.offers.RemoveByID(offerID)
	s.logger.Info("offer deleted", "offer_id", offerID, "owner_id", ownerID)
	return nil
}

// ListOpenOffers returns the explore view for a user: every open offer from
// other members, with the pending-accept overlay applied. Serves from the
// realtime-maintained cache when primed, refetching otherwise.
func (s *DefaultService) ListOpenOffers(ctx context.Context, userID string) ([]models.OfferView, error) {
	if !s.offers.Primed() {
		rows, err := s.repo.ListOpenOffers(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("error listing offers: %w", err)
		}
		s.offers.SetAll(rows)
	}

	views := s.offers.Projection()
	filtered := make([]models.OfferView, 0, len(views))
	for _, view := range views {
		if view.UserID == userID {
			continue
		}
		filtered = append(filtered, view)
	}
	return filtered, nil
}

// ListPendingOffers returns the creator's offers awaiting confirmation.
func (s *DefaultService) ListPendingOffers(ctx context.Context, ownerID string) ([]models.TimeTransaction, error) {
	offers, err := s.repo.ListPendingOffers(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error listing pending offers: %w", err)
	}
	return offers, nil
}

// ListUserTransactions returns every exchange the user is a party to, from
// either side.
func (s *DefaultService) ListUserTransactions(ctx context.Context, userID string) ([]models.TimeTransaction, error) {
	txs, err := s.repo.ListUserTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}
	return txs, nil
}

// GetBalance returns the user's spendable hours. Reads may come from the
// short-TTL cache and be slightly stale; the accept path never uses this.
func (s *DefaultService) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	if value, ok := s.balances.Get(userID); ok {
		return value, nil
	}

	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("error fetching balance: %w", err)
	}
	if balance == nil {
		return decimal.Zero, nil
	}

	s.balances.Set(userID, balance.Balance)
	return balance.Balance, nil
}

// GetStats aggregates the user's exchange history.
func (s *DefaultService) GetStats(ctx context.Context, userID string) (*models.TransactionStats, error) {
	txs, err := s.repo.ListUserTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}

	stats := &models.TransactionStats{
		EarnedHours: decimal.Zero,
		SpentHours:  decimal.Zero,
	}
	for _, tx := range txs {
		// Each exchange shows up twice in the history (once per side); only
		// the user's own row counts toward their stats.
		if tx.UserID != userID {
			continue
		}
		switch tx.Status {
		case models.StatusInProgress:
			stats.ActiveServices++
		case models.StatusAccepted:
			stats.CompletedExchanges++
			switch tx.Type {
			case models.TypeEarned:
				stats.EarnedHours = stats.EarnedHours.Add(tx.Amount)
			case models.TypeSpent:
				stats.SpentHours = stats.SpentHours.Add(tx.Amount)
			}
		}
	}
	return stats, nil
}

// GetProfile returns the public profile for a user.
func (s *DefaultService) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	profile, err := s.repo.GetProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error fetching profile: %w", err)
	}
	return profile, nil
}

// Helper methods
func (s *DefaultService) generateJWT(user *models.User) (string, error) {
	expirationTime := time.Now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub": user.ID, // subject
		"exp": expirationTime.Unix(),
		"iat": time.Now().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
