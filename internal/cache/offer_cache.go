package cache

import (
	"sort"
	"sync"

	"github.com/Time-Craft/time-crafting-hub/internal/models"
)

// OfferCache is the local view of the open-offer list, kept consistent by
// the realtime synchronizer. Server-confirmed rows live in the primary map;
// the pending set is the optimistic overlay for accepts still in flight.
// Confirmed state always wins over the overlay.
type OfferCache struct {
	mu      sync.RWMutex
	offers  map[string]models.TimeTransaction
	pending map[string]struct{}
	primed  bool
}

// NewOfferCache creates an empty, unprimed cache. Reads miss until the first
// SetAll.
func NewOfferCache() *OfferCache {
	return &OfferCache{
		offers:  make(map[string]models.TimeTransaction),
		pending: make(map[string]struct{}),
	}
}

// Primed reports whether the cache holds an authoritative snapshot.
func (c *OfferCache) Primed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.primed
}

// SetAll replaces the cached list with a fresh fetch and primes the cache.
// Pending markers for offers that the snapshot shows resolved are dropped.
func (c *OfferCache) SetAll(offers []models.TimeTransaction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.offers = make(map[string]models.TimeTransaction, len(offers))
	for _, offer := range offers {
		c.offers[offer.ID] = offer
	}

	for id := range c.pending {
		if _, ok := c.offers[id]; !ok {
			delete(c.pending, id)
		}
	}

	c.primed = true
}

// Patch merges one server-confirmed row. Open offers are upserted; anything
// else leaves the open list, and its pending marker goes with it.
func (c *OfferCache) Patch(tx models.TimeTransaction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tx.Status == models.StatusOpen && tx.Type == models.TypeEarned {
		c.offers[tx.ID] = tx
		return
	}

	delete(c.offers, tx.ID)
	delete(c.pending, tx.ID)
}

// RemoveByID drops a row directly, without waiting for a refetch.
func (c *OfferCache) RemoveByID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.offers, id)
	delete(c.pending, id)
}

// MarkPending records an optimistic in-flight accept for the offer.
func (c *OfferCache) MarkPending(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[id] = struct{}{}
}

// ClearPending reverts an optimistic marker after a failed operation.
func (c *OfferCache) ClearPending(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// IsPending reports whether an accept for the offer is in flight.
func (c *OfferCache) IsPending(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.pending[id]
	return ok
}

// Invalidate empties the cache so the next read refetches.
func (c *OfferCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.offers = make(map[string]models.TimeTransaction)
	c.pending = make(map[string]struct{})
	c.primed = false
}

// Projection returns the unified read model: confirmed rows overlaid with
// pending markers, newest offers first.
func (c *OfferCache) Projection() []models.OfferView {
	c.mu.RLock()
	defer c.mu.RUnlock()

	views := make([]models.OfferView, 0, len(c.offers))
	for id, offer := range c.offers {
		_, pending := c.pending[id]
		views = append(views, models.OfferView{TimeTransaction: offer, Pending: pending})
	}

	sort.Slice(views, func(i, j int) bool {
		if views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].ID < views[j].ID
		}
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})

	return views
}
