package login

import (
	"net/http"

	"wms/infrastructure/cache"
	sessioncookie "wms/infrastructure/session"
	"wms/infrastructure/sqlite"
)

// GetLoginScreenHandler renders the login screen, or sends a user with a
// live session straight to the landing page.
func GetLoginScreenHandler(db *sqlite.DB, sessionCache *cache.UserSessionCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(sessioncookie.CookieName); err == nil && c.Value != "" {
			session, ok := sessionCache.FindSessionBySessionToken(c.Value)
			if !ok {
				if loaded, err := LoadSessionByToken(r.Context(), db, c.Value); err == nil {
					session, ok = loaded, true
					sessionCache.AddSession(loaded)
				}
			}
			if ok && !session.Expired() {
				http.Redirect(w, r, landingPath, http.StatusSeeOther)
				return
			}
		}

		q := r.URL.Query()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := GetLoginScreen(q.Get("username"), q.Get("error")).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render login screen", http.StatusInternalServerError)
		}
	}
}
