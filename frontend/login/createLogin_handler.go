package login

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wms/infrastructure/cache"
	sessioncookie "wms/infrastructure/session"
	"wms/infrastructure/sqlite"
	"wms/models"
)

const landingPath = "/tasker/cells/map"

// CreateLoginHandler authenticates the user and issues a session cookie.
func CreateLoginHandler(db *sqlite.DB, sessionCache *cache.UserSessionCache, userCache *cache.UserCache, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			loginFailed(w, r, "", "invalid form data")
			return
		}

		username := strings.TrimSpace(r.FormValue("username"))
		password := strings.TrimSpace(r.FormValue("password"))
		if username == "" || password == "" {
			loginFailed(w, r, username, "username and password are required")
			return
		}

		user, err := authenticateUser(r.Context(), db, username, password)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				loginFailed(w, r, username, "invalid username or password")
				return
			}
			loginFailed(w, r, username, "authentication failed")
			return
		}

		session := newSession(user, ttl)
		if err := persistSession(r.Context(), db, session); err != nil {
			loginFailed(w, r, username, "failed to create session")
			return
		}

		sessionCache.AddSession(session)
		userCache.Add(user.Username, user)

		http.SetCookie(w, sessioncookie.SessionCookie(session.ID, int(time.Until(session.ExpiresAt).Seconds())))
		http.Redirect(w, r, landingPath, http.StatusSeeOther)
	}
}

// loginFailed sends the user back to the form, keeping the typed username.
func loginFailed(w http.ResponseWriter, r *http.Request, username, msg string) {
	q := url.Values{"error": {msg}}
	if username != "" {
		q.Set("username", username)
	}
	http.Redirect(w, r, "/login?"+q.Encode(), http.StatusSeeOther)
}

func newSession(user models.User, ttl time.Duration) models.Session {
	return models.Session{
		ID:        sessioncookie.NewToken(),
		UserID:    user.ID,
		User:      user,
		UserRoles: []string{user.Role},
		ExpiresAt: sessioncookie.Expiry(ttl),
	}
}
