package arbitrage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/michaelpento.lv/arbbot/types"
)

const DefaultCacheTTL = 10 * time.Second

// Cache holds at most one live opportunity per route
type Cache struct {
	mu    sync.Mutex
	cache *lru.Cache // route hash -> *types.Opportunity
	ids   map[string]uint64
	ttl   time.Duration
	now   func() time.Time
}

func NewCache(size int, ttl time.Duration) (*Cache, error) {
	c := &Cache{
		ids: make(map[string]uint64),
		ttl: ttl,
		now: time.Now,
	}
	// runs inside c.mu: every lru call below is made with it held
	onEvict := func(_, value interface{}) {
		if opp, ok := value.(*types.Opportunity); ok {
			delete(c.ids, opp.ID)
		}
	}
	inner, err := lru.NewWithEvict(size, onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create opportunity cache: %w", err)
	}
	c.cache = inner
	return c, nil
}

func routeHash(key string) uint64 {
	return xxhash.Sum64String(key)
}

func (c *Cache) expired(opp *types.Opportunity, now time.Time) bool {
	return opp.Age(now) > c.ttl
}

func (c *Cache) peek(key uint64) (*types.Opportunity, bool) {
	v, ok := c.cache.Peek(key)
	if !ok {
		return nil, false
	}
	//nolint:forcetypeassert
	return v.(*types.Opportunity), true
}

// Upsert stores opp unless a live entry for the same route is fresher, or
// equally fresh and at least as profitable. It reports whether opp was stored.
func (c *Cache) Upsert(opp *types.Opportunity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := routeHash(opp.RouteKey())
	if cur, ok := c.peek(key); ok {
		if !c.expired(cur, c.now()) {
			if cur.CreatedAt.After(opp.CreatedAt) {
				return false
			}
			if cur.CreatedAt.Equal(opp.CreatedAt) && cur.NetProfit >= opp.NetProfit {
				return false
			}
		}
		delete(c.ids, cur.ID)
	}

	c.cache.Add(key, opp)
	c.ids[opp.ID] = key
	return true
}

// Get returns a live opportunity by id
func (c *Cache) Get(id string) (*types.Opportunity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.ids[id]
	if !ok {
		return nil, false
	}
	opp, ok := c.peek(key)
	if !ok || opp.ID != id || c.expired(opp, c.now()) {
		return nil, false
	}
	return opp, true
}

// List returns live opportunities by net profit, highest first
func (c *Cache) List() []*types.Opportunity {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make([]*types.Opportunity, 0, c.cache.Len())
	for _, k := range c.cache.Keys() {
		if opp, ok := c.peek(k.(uint64)); ok && !c.expired(opp, now) {
			out = append(out, opp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].NetProfit != out[j].NetProfit {
			return out[i].NetProfit > out[j].NetProfit
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Remove drops the opportunity with the given id
func (c *Cache) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.ids[id]
	if !ok {
		return false
	}
	delete(c.ids, id)
	return c.cache.Remove(key)
}

// Sweep removes expired entries and returns how many were dropped
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, k := range c.cache.Keys() {
		if opp, ok := c.peek(k.(uint64)); ok && c.expired(opp, now) {
			c.cache.Remove(k)
			removed++
		}
	}
	return removed
}

// Len counts stored entries, expired or not
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}
