package rbac

import (
	"net/http"
	"testing"

	"wms/infrastructure/cache"
)

func TestMatchPathWildcardSegments(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		ok      bool
	}{
		{pattern: "/api/picking-tasks/*/cancel", path: "/api/picking-tasks/1/cancel", ok: true},
		{pattern: "/api/cells/*/label.pdf", path: "/api/cells/10/label.pdf", ok: true},
		{pattern: "/api/inventory/*", path: "/api/inventory/3/report", ok: true},
		{pattern: "/tasker/admin/users", path: "/tasker/admin/users", ok: true},
		{pattern: "/tasker/admin/users", path: "/tasker/admin/users/1", ok: false},
		{pattern: "/api/picking-tasks/*/cancel", path: "/api/picking-tasks/1/scenario", ok: false},
		{pattern: "/api/units/*", path: "/api/cells/1", ok: false},
	}

	for _, tc := range cases {
		if got := matchPath(tc.pattern, tc.path); got != tc.ok {
			t.Fatalf("pattern=%s path=%s expected=%v got=%v", tc.pattern, tc.path, tc.ok, got)
		}
	}
}

func TestGrantExpandsPolicyPerRole(t *testing.T) {
	r := New(cache.NewRbacRolesCache(), DefaultPolicy)
	r.Grant(OpPickingCancel, http.MethodPost, "/api/picking-tasks/*/cancel")
	r.Grant(OpTSD, http.MethodPost, "/api/tsd/shipping-tasks/start")
	r.Grant(OpUnitsPurge, http.MethodDelete, "/api/units/*")

	cases := []struct {
		role   string
		method string
		path   string
		ok     bool
	}{
		{role: RoleOps, method: http.MethodPost, path: "/api/picking-tasks/7/cancel", ok: true},
		{role: RoleWorker, method: http.MethodPost, path: "/api/picking-tasks/7/cancel", ok: false},
		{role: RoleWorker, method: http.MethodPost, path: "/api/tsd/shipping-tasks/start", ok: true},
		{role: RoleWorker, method: http.MethodGet, path: "/api/tsd/shipping-tasks/start", ok: false},
		{role: RoleSupervisor, method: http.MethodDelete, path: "/api/units/1", ok: false},
		{role: RoleAdmin, method: http.MethodDelete, path: "/api/units/1", ok: true},
		{role: "", method: http.MethodPost, path: "/api/tsd/shipping-tasks/start", ok: false},
	}
	for _, tc := range cases {
		if got := r.Allowed(tc.role, tc.path, tc.method); got != tc.ok {
			t.Fatalf("role=%s %s %s expected=%v got=%v", tc.role, tc.method, tc.path, tc.ok, got)
		}
	}

	perms := r.Permissions(RoleWorker)
	if perms[OpTSD] != 1 || perms[OpPickingCancel] != 0 {
		t.Fatalf("unexpected worker permissions: %v", perms)
	}
	if all := r.Permissions(RoleAdmin); all[OpUnitsPurge] != 1 {
		t.Fatalf("admin must see every registered code: %v", all)
	}
}

func TestDefaultPolicyRolesAreKnown(t *testing.T) {
	for code, roles := range DefaultPolicy {
		for _, role := range roles {
			if !IsKnownRole(role) || role == RoleAdmin {
				t.Fatalf("code %s lists unexpected role %q", code, role)
			}
		}
	}
}
