package cache

import (
	"sync"

	"wms/models"
)

// UserSessionCache stores admin UI sessions by cookie token.
type UserSessionCache struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

func NewUserSessionCache() *UserSessionCache {
	return &UserSessionCache{sessions: make(map[string]models.Session)}
}

func (c *UserSessionCache) AddSession(s models.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[s.ID] = s
}

func (c *UserSessionCache) FindSessionBySessionToken(token string) (models.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[token]
	return s, ok
}

func (c *UserSessionCache) DeleteSessionBySessionToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, token)
}

// DeleteSessionsByUserID drops every cached session of a user so the next
// request reloads role and warehouse from the database.
func (c *UserSessionCache) DeleteSessionsByUserID(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for token, s := range c.sessions {
		if s.UserID == userID {
			delete(c.sessions, token)
		}
	}
}
