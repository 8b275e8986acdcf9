package token

import (
	"sync"
	"time"
)

// RevokedSessions remembers signed-out session tokens until they would have expired.
// TODO: back this with the redis client when REDIS_URL is set so revocations reach every instance.
type RevokedSessions interface {
	Add(jti string, exp time.Time)
	IsRevoked(jti string) bool
}

// InMemoryRevokedSessions is a process-local RevokedSessions. Expired entries are
// dropped whenever a new one is added.
type InMemoryRevokedSessions struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

func NewInMemoryRevokedSessions() *InMemoryRevokedSessions {
	return &InMemoryRevokedSessions{
		revoked: make(map[string]time.Time),
	}
}

func (c *InMemoryRevokedSessions) Add(jti string, exp time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := NowTimeFunc()
	for id, e := range c.revoked {
		if now.After(e) {
			delete(c.revoked, id)
		}
	}
	c.revoked[jti] = exp
}

func (c *InMemoryRevokedSessions) IsRevoked(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[jti]
	return exists
}
