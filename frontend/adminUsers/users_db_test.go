package adminusers

import (
	stdcontext "context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/uptrace/bun"

	sessioncontext "wms/frontend/shared/context"
	"wms/infrastructure/argon"
	"wms/infrastructure/cache"
	"wms/infrastructure/testdb"
	"wms/models"
)

func TestCreateUser_HappyPathStoresHashAndRole(t *testing.T) {
	db := testdb.Open(t)
	whID := testdb.Warehouse(t, db, "MSK")

	in := CreateUserInput{Username: "worker2", DisplayName: "Second Worker", Password: "Scanner123Strong", Role: "worker", WarehouseID: whID}
	if err := CreateUser(stdcontext.Background(), db, in); err != nil {
		t.Fatalf("create user: %v", err)
	}

	var role, passwordHash string
	var warehouseID int64
	err := db.WithReadTx(stdcontext.Background(), func(ctx stdcontext.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT role, password_hash, warehouse_id FROM users WHERE username = ?`, "worker2").Scan(ctx, &role, &passwordHash, &warehouseID)
	})
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if role != "worker" || warehouseID != whID {
		t.Fatalf("expected worker in warehouse %d, got %s in %d", whID, role, warehouseID)
	}
	if passwordHash == in.Password {
		t.Fatalf("expected password to be hashed")
	}
	if !argon.Verify(in.Password, passwordHash) {
		t.Fatalf("expected stored hash to match password")
	}
}

func TestCreateUser_DuplicateUsernameRejectedCaseInsensitive(t *testing.T) {
	db := testdb.Open(t)

	if err := CreateUser(stdcontext.Background(), db, CreateUserInput{Username: "CaseUser", Password: "Case123Password", Role: "admin"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	err := CreateUser(stdcontext.Background(), db, CreateUserInput{Username: "caseuser", Password: "Case456Password", Role: "admin"})
	if !errors.Is(err, ErrUsernameExists) {
		t.Fatalf("expected ErrUsernameExists, got %v", err)
	}
}

func TestCreateUser_Validation(t *testing.T) {
	db := testdb.Open(t)

	cases := []struct {
		name string
		in   CreateUserInput
		want error
	}{
		{"missing username", CreateUserInput{Password: "Valid123Password", Role: "admin"}, ErrUsernameRequired},
		{"missing password", CreateUserInput{Username: "a", Role: "admin"}, ErrPasswordRequired},
		{"unknown role", CreateUserInput{Username: "a", Password: "Valid123Password", Role: "owner"}, ErrInvalidRole},
		{"worker without warehouse", CreateUserInput{Username: "a", Password: "Valid123Password", Role: "worker"}, ErrWarehouseRequired},
		{"unknown warehouse", CreateUserInput{Username: "a", Password: "Valid123Password", Role: "ops", WarehouseID: 999}, ErrWarehouseNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := CreateUser(stdcontext.Background(), db, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if err := CreateUser(stdcontext.Background(), db, CreateUserInput{Username: "weak", Password: "short", Role: "admin"}); err == nil {
		t.Fatalf("expected password policy error")
	}
	if n := testdb.Count(t, db, `SELECT COUNT(1) FROM users`); n != 0 {
		t.Fatalf("expected no users, got %d", n)
	}
}

func TestAssignWarehouseDropsCachedSessions(t *testing.T) {
	db := testdb.Open(t)
	first := testdb.Warehouse(t, db, "MSK")
	second := testdb.Warehouse(t, db, "SPB")
	actor := testdb.User(t, db, "ops1", "ops", first)

	sessions := cache.NewUserSessionCache()
	users := cache.NewUserCache()
	user := models.User{ID: actor.UserID, Username: actor.Username, Role: actor.Role, WarehouseID: &first}
	users.Add(user.Username, user)
	sessions.AddSession(models.Session{ID: "tok", UserID: actor.UserID, User: user})

	if err := AssignWarehouse(stdcontext.Background(), db, sessions, users, actor.UserID, second); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if n := testdb.Count(t, db, `SELECT COUNT(1) FROM users WHERE id = ? AND warehouse_id = ?`, actor.UserID, second); n != 1 {
		t.Fatalf("expected user moved to second warehouse")
	}
	if _, ok := sessions.FindSessionBySessionToken("tok"); ok {
		t.Fatalf("expected cached session to be dropped")
	}
	if _, ok := users.GetByID(actor.UserID); ok {
		t.Fatalf("expected cached user to be dropped")
	}

	if err := AssignWarehouse(stdcontext.Background(), db, sessions, users, actor.UserID, 0); err == nil {
		t.Fatalf("expected ops user without warehouse to be rejected")
	}
}

func TestUsersHandlers(t *testing.T) {
	db := testdb.Open(t)
	whID := testdb.Warehouse(t, db, "MSK")
	admin := testdb.User(t, db, "root", "admin", 0)
	session := models.Session{ID: "s", UserID: admin.UserID, User: models.User{ID: admin.UserID, Username: "root", Role: "admin"}, ScreenPermissions: map[string]int{"ADMIN_USERS": 1}}

	withSession := func(req *http.Request) *http.Request {
		ctx := sessioncontext.NewContextWithSession(req.Context(), session)
		ctx = sessioncontext.NewContextWithActor(ctx, admin)
		return req.WithContext(ctx)
	}

	form := url.Values{"username": {"picker"}, "display_name": {"<Picker>"}, "password": {"Picker12345"}, "role": {"worker"}, "warehouse_id": {strconv.FormatInt(whID, 10)}}
	req := withSession(httptest.NewRequest(http.MethodPost, "/tasker/admin/users", strings.NewReader(form.Encode())))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	CreateUserCommandHandler(db).ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther || !strings.Contains(rec.Header().Get("Location"), "status=") {
		t.Fatalf("expected success redirect, got %d %s", rec.Code, rec.Header().Get("Location"))
	}

	req = withSession(httptest.NewRequest(http.MethodPost, "/tasker/admin/users", strings.NewReader(form.Encode())))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	CreateUserCommandHandler(db).ServeHTTP(rec, req)
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "error=") {
		t.Fatalf("expected duplicate error redirect, got %s", loc)
	}

	rec = httptest.NewRecorder()
	UsersPageQueryHandler(db).ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/tasker/admin/users", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "&lt;Picker&gt;") || strings.Contains(body, "<Picker>") {
		t.Fatalf("expected escaped display name in page")
	}
	if !strings.Contains(body, "MSK - Warehouse MSK") {
		t.Fatalf("expected warehouse option in page")
	}

	rec = httptest.NewRecorder()
	UsersPageQueryHandler(db).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasker/admin/users", nil))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected login redirect without session, got %d", rec.Code)
	}
}
