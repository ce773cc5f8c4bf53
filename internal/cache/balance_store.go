package cache

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBalanceTTL is the freshness window for cached balances. Reads
// inside the window may be stale by up to this much; the accept path never
// uses the cache and always re-reads the gateway.
const DefaultBalanceTTL = time.Minute

type balanceEntry struct {
	value     decimal.Decimal
	fetchedAt time.Time
}

// BalanceStore caches per-user hour balances with a short TTL. Realtime
// balance events invalidate entries so the next read refetches.
type BalanceStore struct {
	mu      sync.RWMutex
	entries map[string]balanceEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewBalanceStore creates a store with the given freshness window.
func NewBalanceStore(ttl time.Duration) *BalanceStore {
	return &BalanceStore{
		entries: make(map[string]balanceEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached balance and whether it is still fresh.
func (s *BalanceStore) Get(userID string) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[userID]
	if !ok || s.now().Sub(entry.fetchedAt) > s.ttl {
		return decimal.Zero, false
	}
	return entry.value, true
}

// Set records a freshly fetched balance.
func (s *BalanceStore) Set(userID string, value decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = balanceEntry{value: value, fetchedAt: s.now()}
}

// Invalidate drops one user's entry.
func (s *BalanceStore) Invalidate(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
}
