// Package rbac holds the role policy every route is checked against.
package rbac

import (
	"strings"

	"wms/infrastructure/cache"
)

const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleOps        = "ops"
	RoleWorker     = "worker"
)

// Roles lists every role in privilege order.
func Roles() []string {
	return []string{RoleAdmin, RoleSupervisor, RoleOps, RoleWorker}
}

func IsKnownRole(role string) bool {
	for _, r := range Roles() {
		if r == role {
			return true
		}
	}
	return false
}

// Rbac expands policy grants into per-role route resources.
type Rbac struct {
	cache  *cache.RbacRolesCache
	policy Policy
}

func New(c *cache.RbacRolesCache, policy Policy) *Rbac {
	if policy == nil {
		policy = DefaultPolicy
	}
	return &Rbac{cache: c, policy: policy}
}

// Grant registers method+path under operation code for every role the
// policy allows. Admin is never listed; it bypasses the check.
func (r *Rbac) Grant(code, method, path string) {
	if r == nil || r.cache == nil {
		return
	}
	r.cache.Register(code)
	for _, role := range r.policy[code] {
		r.cache.Add(role, cache.Resource{
			Role:             role,
			UserResourceCode: code,
			Method:           strings.ToUpper(method),
			Path:             path,
		})
	}
}

// Allowed reports whether role may call method on urlPath.
func (r *Rbac) Allowed(role, urlPath, method string) bool {
	if role == RoleAdmin {
		return true
	}
	if r == nil || r.cache == nil || role == "" {
		return false
	}
	return ValidateResourceAccess(r.cache.ForMethod(role, strings.ToUpper(method)), urlPath, method)
}

// Permissions returns the operation codes role holds, for menus.
func (r *Rbac) Permissions(role string) map[string]int {
	if r == nil || r.cache == nil {
		return map[string]int{}
	}
	codes := r.cache.Codes(role)
	if role == RoleAdmin {
		codes = r.cache.AllCodes()
	}
	perms := make(map[string]int, len(codes))
	for _, code := range codes {
		perms[code] = 1
	}
	return perms
}

func ValidateResourceAccess(resources []cache.Resource, urlPath, method string) bool {
	method = strings.ToUpper(method)
	for _, res := range resources {
		if res.Method != method {
			continue
		}
		if matchPath(res.Path, urlPath) {
			return true
		}
	}
	return false
}

// matchPath supports "*" for one segment, and a trailing "*" for any
// deeper suffix.
func matchPath(pattern, path string) bool {
	if pattern == path {
		return true
	}

	patternSeg := strings.Split(strings.Trim(pattern, "/"), "/")
	pathSeg := strings.Split(strings.Trim(path, "/"), "/")

	if len(patternSeg) == len(pathSeg) {
		for i := range patternSeg {
			if patternSeg[i] != "*" && patternSeg[i] != pathSeg[i] {
				return false
			}
		}
		return true
	}

	last := len(patternSeg) - 1
	if patternSeg[last] != "*" || len(pathSeg) < last {
		return false
	}
	for i := 0; i < last; i++ {
		if patternSeg[i] != "*" && patternSeg[i] != pathSeg[i] {
			return false
		}
	}
	return true
}
