package cache

import (
	"sort"
	"sync"
)

// Resource is one route a role may call, tagged with its operation code.
type Resource struct {
	UserResourceCode string
	Path             string
	Method           string
	Role             string
}

type roleMethod struct {
	role   string
	method string
}

// RbacRolesCache indexes granted routes by role and method. Operation codes
// are kept separately so admin menus list codes no other role holds.
type RbacRolesCache struct {
	mu       sync.RWMutex
	byMethod map[roleMethod][]Resource
	byRole   map[string]map[string]struct{}
	codes    map[string]struct{}
}

func NewRbacRolesCache() *RbacRolesCache {
	return &RbacRolesCache{
		byMethod: make(map[roleMethod][]Resource),
		byRole:   make(map[string]map[string]struct{}),
		codes:    make(map[string]struct{}),
	}
}

// Add grants r to role. Granting the same method and path twice is a no-op.
func (c *RbacRolesCache) Add(role string, r Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := roleMethod{role: role, method: r.Method}
	for _, existing := range c.byMethod[key] {
		if existing.Path == r.Path {
			return
		}
	}
	c.byMethod[key] = append(c.byMethod[key], r)
	if c.byRole[role] == nil {
		c.byRole[role] = make(map[string]struct{})
	}
	c.byRole[role][r.UserResourceCode] = struct{}{}
	c.codes[r.UserResourceCode] = struct{}{}
}

// Register records an operation code even when no role outside admin holds it.
func (c *RbacRolesCache) Register(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[code] = struct{}{}
}

// ForMethod returns the routes role may call with method.
func (c *RbacRolesCache) ForMethod(role, method string) []Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src := c.byMethod[roleMethod{role: role, method: method}]
	out := make([]Resource, len(src))
	copy(out, src)
	return out
}

// Codes returns the sorted operation codes role holds.
func (c *RbacRolesCache) Codes(role string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.byRole[role])
}

// AllCodes returns every registered operation code, sorted.
func (c *RbacRolesCache) AllCodes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.codes)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
