package ledger

import (
	"sync"
	"time"

	"github.com/fadedpez/pagebot/pkg/entities"
	"github.com/jonboulle/clockwork"
)

// accountCache keeps recently read accounts for ttl. Entries expire through
// their own timers rather than a sweep.
type accountCache struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	ttl     time.Duration
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	account *entities.Account
	timer   clockwork.Timer
}

func newAccountCache(clock clockwork.Clock, ttl time.Duration) *accountCache {
	return &accountCache{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]*cacheEntry),
	}
}

func (c *accountCache) get(userID string) (*entities.Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[userID]
	if !ok {
		return nil, false
	}
	return entry.account.Clone(), true
}

func (c *accountCache) put(account *entities.Account) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[account.UserID]; ok {
		old.timer.Stop()
	}

	entry := &cacheEntry{account: account.Clone()}
	entry.timer = c.clock.AfterFunc(c.ttl, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.entries[account.UserID] == entry {
			delete(c.entries, account.UserID)
		}
	})
	c.entries[account.UserID] = entry
}

func (c *accountCache) invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[userID]; ok {
		entry.timer.Stop()
		delete(c.entries, userID)
	}
}

func (c *accountCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
