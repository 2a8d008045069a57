package login

import (
	stdcontext "context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"wms/infrastructure/apperr"
	"wms/infrastructure/cache"
	sessioncookie "wms/infrastructure/session"
	"wms/infrastructure/sqlite"
	"wms/infrastructure/testdb"
	"wms/infrastructure/token"
)

const testPassword = "picker2026x"

func TestUpsertUserPasswordHashValidatesRoleAndWarehouse(t *testing.T) {
	db := testdb.Open(t)
	ctx := stdcontext.Background()
	whID := testdb.Warehouse(t, db, "WH1")

	if _, err := UpsertUserPasswordHash(ctx, db, "worker1", "worker", testPassword, nil); !apperr.Is(err, apperr.KindInvalidInput) {
		t.Fatalf("expected invalid input without warehouse, got %v", err)
	}
	if _, err := UpsertUserPasswordHash(ctx, db, "boss", "overlord", testPassword, nil); !apperr.Is(err, apperr.KindInvalidInput) {
		t.Fatalf("expected invalid input for unknown role, got %v", err)
	}
	missing := int64(999)
	if _, err := UpsertUserPasswordHash(ctx, db, "worker1", "worker", testPassword, &missing); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found warehouse, got %v", err)
	}
	user, err := UpsertUserPasswordHash(ctx, db, "worker1", "Worker", testPassword, &whID)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if user.Role != "worker" || user.WarehouseID == nil || *user.WarehouseID != whID {
		t.Fatalf("unexpected user: %+v", user)
	}
	admin, err := UpsertUserPasswordHash(ctx, db, "root", "admin", testPassword, nil)
	if err != nil {
		t.Fatalf("admin upsert: %v", err)
	}
	if admin.WarehouseID != nil {
		t.Fatalf("admin should be unassigned")
	}

	if _, err := authenticateUser(ctx, db, "WORKER1", testPassword); err != nil {
		t.Fatalf("case-insensitive login failed: %v", err)
	}
	if _, err := authenticateUser(ctx, db, "worker1", "wrong-pass-1"); err != ErrInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := authenticateUser(ctx, db, "ghost", testPassword); err != ErrInvalidCredentials {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestLoginCreatesSessionAndLogoutRemovesIt(t *testing.T) {
	db := testdb.Open(t)
	whID := testdb.Warehouse(t, db, "WH1")
	if _, err := UpsertUserPasswordHash(stdcontext.Background(), db, "ops", "ops", testPassword, &whID); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	sessions := cache.NewUserSessionCache()
	users := cache.NewUserCache()

	form := url.Values{"username": {"ops"}, "password": {testPassword}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	CreateLoginHandler(db, sessions, users, time.Hour).ServeHTTP(rr, req)

	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != landingPath {
		t.Fatalf("expected redirect to %s, got %d %q", landingPath, rr.Code, rr.Header().Get("Location"))
	}
	var token string
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessioncookie.CookieName {
			token = c.Value
		}
	}
	if token == "" {
		t.Fatalf("session cookie not set")
	}
	if _, ok := sessions.FindSessionBySessionToken(token); !ok {
		t.Fatalf("session not cached")
	}
	if _, err := LoadSessionByToken(stdcontext.Background(), db, token); err != nil {
		t.Fatalf("session not persisted: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessioncookie.CookieName, Value: token})
	rr = httptest.NewRecorder()
	LogoutHandler(db, sessions).ServeHTTP(rr, req)
	if _, ok := sessions.FindSessionBySessionToken(token); ok {
		t.Fatalf("session still cached after logout")
	}
	if n := testdb.Count(t, db, `SELECT COUNT(*) FROM sessions`); n != 0 {
		t.Fatalf("expected no sessions, got %d", n)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	db := testdb.Open(t)
	whID := testdb.Warehouse(t, db, "WH1")
	if _, err := UpsertUserPasswordHash(stdcontext.Background(), db, "ops", "ops", testPassword, &whID); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	form := url.Values{"username": {"ops"}, "password": {"nope-nope-1"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	CreateLoginHandler(db, cache.NewUserSessionCache(), cache.NewUserCache(), time.Hour).ServeHTTP(rr, req)
	if loc := rr.Header().Get("Location"); !strings.HasPrefix(loc, "/login?error=") {
		t.Fatalf("expected error redirect, got %q", loc)
	}
}

func TestIssueTokenHandler(t *testing.T) {
	db := testdb.Open(t)
	whID := testdb.Warehouse(t, db, "WH1")
	if _, err := UpsertUserPasswordHash(stdcontext.Background(), db, "worker1", "worker", testPassword, &whID); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	issuer := token.NewIssuer("test-secret", time.Hour)

	rr := httptest.NewRecorder()
	IssueTokenHandler(db, issuer).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(`{"username":"worker1","password":"`+testPassword+`"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var out TokenResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := issuer.Parse(out.Token)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.Role != "worker" || claims.WarehouseID != whID {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	rr = httptest.NewRecorder()
	IssueTokenHandler(db, issuer).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(`{"username":"worker1","password":"bad-password-1"}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func login(t *testing.T, db *sqlite.DB, sessions *cache.UserSessionCache, username string) string {
	t.Helper()
	form := url.Values{"username": {username}, "password": {testPassword}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	CreateLoginHandler(db, sessions, cache.NewUserCache(), time.Hour).ServeHTTP(rr, req)
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessioncookie.CookieName && c.Value != "" {
			return c.Value
		}
	}
	t.Fatalf("login %s: no session cookie (status %d, location %q)", username, rr.Code, rr.Header().Get("Location"))
	return ""
}

func TestLoginScreen(t *testing.T) {
	db := testdb.Open(t)
	whID := testdb.Warehouse(t, db, "WH1")
	if _, err := UpsertUserPasswordHash(stdcontext.Background(), db, "ops", "ops", testPassword, &whID); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	sessions := cache.NewUserSessionCache()

	rr := httptest.NewRecorder()
	GetLoginScreenHandler(db, sessions).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/login?error=bad+login&username=%3Cops%3E", nil))
	body := rr.Body.String()
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(body, `value="&lt;ops&gt;"`) || !strings.Contains(body, "bad login") {
		t.Fatalf("login form lost username or error: %s", body)
	}

	token := login(t, db, sessions, "ops")

	// A fresh cache forces the database lookup.
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: sessioncookie.CookieName, Value: token})
	rr = httptest.NewRecorder()
	GetLoginScreenHandler(db, cache.NewUserSessionCache()).ServeHTTP(rr, req)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != landingPath {
		t.Fatalf("expected redirect to %s, got %d %q", landingPath, rr.Code, rr.Header().Get("Location"))
	}
}

func TestLogoutEverywhere(t *testing.T) {
	db := testdb.Open(t)
	whID := testdb.Warehouse(t, db, "WH1")
	for _, name := range []string{"ops", "other"} {
		if _, err := UpsertUserPasswordHash(stdcontext.Background(), db, name, "ops", testPassword, &whID); err != nil {
			t.Fatalf("upsert %s: %v", name, err)
		}
	}
	sessions := cache.NewUserSessionCache()
	first := login(t, db, sessions, "ops")
	second := login(t, db, sessions, "ops")
	login(t, db, sessions, "other")

	req := httptest.NewRequest(http.MethodPost, "/logout", strings.NewReader("scope=all"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: sessioncookie.CookieName, Value: first})
	rr := httptest.NewRecorder()
	LogoutHandler(db, sessions).ServeHTTP(rr, req)

	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", rr.Code, rr.Header().Get("Location"))
	}
	if _, ok := sessions.FindSessionBySessionToken(second); ok {
		t.Fatalf("second session still cached")
	}
	if n := testdb.Count(t, db, `SELECT COUNT(*) FROM sessions`); n != 1 {
		t.Fatalf("expected only the other user's session, got %d", n)
	}
}
