package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Time-Craft/time-crafting-hub/internal/api"
	"github.com/Time-Craft/time-crafting-hub/internal/cache"
	"github.com/Time-Craft/time-crafting-hub/internal/models"
	"github.com/Time-Craft/time-crafting-hub/internal/realtime"
	"github.com/Time-Craft/time-crafting-hub/internal/repository"
	"github.com/Time-Craft/time-crafting-hub/internal/service"
)

const testJWTSecret = "test-secret-key"

// TestContext holds all dependencies for tests. The repository is the
// in-memory implementation, which carries the same conditional-write
// semantics as the Postgres one and feeds the same change events into the
// broker, so the full stack runs without a database.
type TestContext struct {
	Router       *gin.Engine
	Repository   *repository.MemoryRepository
	Service      service.Service
	Broker       *realtime.Broker
	Offers       *cache.OfferCache
	Balances     *cache.BalanceStore
	Synchronizer *realtime.Synchronizer
	JWTSecret    []byte
}

// SetupTestContext creates a new test context with initialized dependencies
func SetupTestContext(t *testing.T) *TestContext {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	broker := realtime.NewBroker()
	repo := repository.NewMemoryRepository(broker)

	offers := cache.NewOfferCache()
	balances := cache.NewBalanceStore(cache.DefaultBalanceTTL)
	synchronizer := realtime.NewSynchronizer(offers, balances, logger)
	synchronizer.Start(broker)
	t.Cleanup(synchronizer.Stop)

	svc := service.NewDefaultService(repo, offers, balances, testJWTSecret, logger)
	handler := api.NewHandler(svc, broker, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(testJWTSecret))
		c.Next()
	})

	handler.SetupRoutes(router)

	return &TestContext{
		Router:       router,
		Repository:   repo,
		Service:      svc,
		Broker:       broker,
		Offers:       offers,
		Balances:     balances,
		Synchronizer: synchronizer,
		JWTSecret:    []byte(testJWTSecret),
	}
}

// CreateUser seeds a user with the given starting balance and returns the
// user ID along with a valid bearer token.
func (tc *TestContext) CreateUser(t *testing.T, name string, balance int64) (string, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("testpassword"), bcrypt.DefaultCost)
	require.NoError(t, err)

	user := &models.User{
		ID:       uuid.New().String(),
		Email:    fmt.Sprintf("%s@example.com", uuid.New().String()[:8]),
		Name:     name,
		Password: string(hashedPassword),
	}
	require.NoError(t, tc.Repository.CreateUser(context.Background(), user))
	require.NoError(t, tc.Repository.CreateBalance(context.Background(), user.ID, decimal.NewFromInt(balance)))

	return user.ID, tc.TokenFor(t, user.ID, 24*time.Hour)
}

// TokenFor signs a token for the user; a negative ttl produces an expired one.
func (tc *TestContext) TokenFor(t *testing.T, userID string, ttl time.Duration) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	})
	tokenString, err := token.SignedString(tc.JWTSecret)
	require.NoError(t, err)
	return tokenString
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
