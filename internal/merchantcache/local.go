package merchantcache

import (
	"container/list"
	"sync"
	"time"

	"github.com/vietpay-gateway/internal/domain/merchant"
)

// localCache is a bounded LRU with per-entry TTL for merchant accounts.
// When full, the least recently used entry is evicted.
type localCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List
	items    map[string]*list.Element
}

type localEntry struct {
	publicID  string
	account   merchant.Account
	expiresAt time.Time
}

func newLocalCache(capacity int, ttl time.Duration) *localCache {
	return &localCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns a copy of the cached account, or false on a miss or an expired
// entry. Expired entries are removed on read.
func (c *localCache) Get(publicID string) (*merchant.Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[publicID]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*localEntry)
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.items, publicID)
		return nil, false
	}

	c.order.MoveToFront(elem)
	copied := entry.account
	return &copied, true
}

// Set stores a copy of the account and refreshes its TTL
func (c *localCache) Set(acct *merchant.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[acct.PublicID]; ok {
		entry := elem.Value.(*localEntry)
		entry.account = *acct
		entry.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&localEntry{
		publicID:  acct.PublicID,
		account:   *acct,
		expiresAt: time.Now().Add(c.ttl),
	})
	c.items[acct.PublicID] = elem

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*localEntry).publicID)
		}
	}
}

// Delete removes the entry if present
func (c *localCache) Delete(publicID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[publicID]; ok {
		c.order.Remove(elem)
		delete(c.items, publicID)
	}
}
