package cache

import (
	"strings"
	"sync"

	"wms/models"
)

// UserCache caches users by username and id. Bearer-token requests
// resolve their user through it.
type UserCache struct {
	mu     sync.RWMutex
	users map[string]models.User
	byID  map[int64]string
}

func NewUserCache() *UserCache {
	return &UserCache{users: make(map[string]models.User), byID: make(map[int64]string)}
}

func (c *UserCache) Add(username string, user models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(username)
	c.users[key] = user
	c.byID[user.ID] = key
}

func (c *UserCache) Get(username string) (models.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.users[strings.ToLower(username)]
	return u, ok
}

func (c *UserCache) GetByID(id int64) (models.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.byID[id]
	if !ok {
		return models.User{}, false
	}
	u, ok := c.users[key]
	return u, ok
}

func (c *UserCache) Delete(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if key, ok := c.byID[id]; ok {
		delete(c.users, key)
		delete(c.byID, id)
	}
}
