package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultTokenCacheSize bounds the verified-token cache.
const DefaultTokenCacheSize = 1024

type cachedToken struct {
	subject   string
	expiresAt time.Time
}

// tokenCache remembers verified tokens until their expiry, evicting the
// oldest insertion once full.
type tokenCache struct {
	mu    sync.Mutex
	max   int
	items map[string]cachedToken
	order []string
}

func newTokenCache(maxItems int) *tokenCache {
	if maxItems <= 0 {
		maxItems = DefaultTokenCacheSize
	}
	return &tokenCache{max: maxItems, items: make(map[string]cachedToken)}
}

func tokenID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (c *tokenCache) get(token string, now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[tokenID(token)]
	if !ok || !it.expiresAt.After(now) {
		return "", false
	}
	return it.subject, true
}

func (c *tokenCache) put(token, subject string, expiresAt time.Time) {
	id := tokenID(token)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		c.order = append(c.order, id)
	}
	c.items[id] = cachedToken{subject: subject, expiresAt: expiresAt}
	for len(c.items) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
}

func (c *tokenCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
