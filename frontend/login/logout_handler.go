package login

import (
	"log/slog"
	"net/http"

	"wms/infrastructure/cache"
	sessioncookie "wms/infrastructure/session"
	"wms/infrastructure/sqlite"
)

// LogoutHandler ends the current session and clears the cookie. With
// scope=all in the form every session of the same user is ended, which
// signs a shared terminal's user out of all other devices as well.
func LogoutHandler(db *sqlite.DB, sessionCache *cache.UserSessionCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			http.SetCookie(w, sessioncookie.ClearCookie())
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		}()

		cookie, err := r.Cookie(sessioncookie.CookieName)
		if err != nil || cookie.Value == "" {
			return
		}

		if r.FormValue("scope") == "all" {
			session, ok := sessionCache.FindSessionBySessionToken(cookie.Value)
			if !ok {
				if session, err = LoadSessionByToken(r.Context(), db, cookie.Value); err == nil {
					ok = true
				}
			}
			if ok {
				sessionCache.DeleteSessionsByUserID(session.UserID)
				if err := DeleteSessionsByUserID(r.Context(), db, session.UserID); err != nil {
					slog.Error("logout everywhere failed", slog.Int64("user_id", session.UserID), slog.Any("err", err))
				}
				return
			}
		}

		sessionCache.DeleteSessionBySessionToken(cookie.Value)
		if err := DeleteSessionByToken(r.Context(), db, cookie.Value); err != nil {
			slog.Error("delete session failed", slog.Any("err", err))
		}
	}
}
