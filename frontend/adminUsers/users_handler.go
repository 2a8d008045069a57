package adminusers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"wms/frontend/shared/context"
	"wms/frontend/shared/html"
	"wms/frontend/shared/nav"
	"wms/infrastructure/apperr"
	"wms/infrastructure/cache"
	"wms/infrastructure/sqlite"
	"wms/infrastructure/warehouse"
)

const usersPath = "/tasker/admin/users"

// UsersPageQueryHandler renders the admin users list page.
func UsersPageQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := context.GetSessionFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		data, err := LoadUsersPageData(r.Context(), db)
		if err != nil {
			slog.Error("admin users: failed to load data", slog.Any("err", err))
			http.Error(w, "failed to load users", http.StatusInternalServerError)
			return
		}

		data.Status = r.URL.Query().Get("status")
		data.ErrorMessage = r.URL.Query().Get("error")

		whCode := ""
		if actor, ok := context.GetActorFromContext(r.Context()); ok && actor.WarehouseID > 0 {
			if wh, err := warehouse.LoadByID(r.Context(), db, actor.WarehouseID); err == nil {
				whCode = wh.Code
			}
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := html.Page("Users", nav.BuildTopNavData(session, whCode, r.URL.Path), UsersListPage(data)).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render users page", http.StatusInternalServerError)
			return
		}
	}
}

func CreateUserCommandHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := context.GetSessionFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		if err := r.ParseForm(); err != nil {
			redirectError(w, r, "invalid form data")
			return
		}

		warehouseID, err := parseOptionalID(r.FormValue("warehouse_id"))
		if err != nil {
			redirectError(w, r, "invalid warehouse selection")
			return
		}
		in := CreateUserInput{
			Username:    r.FormValue("username"),
			DisplayName: r.FormValue("display_name"),
			Password:    r.FormValue("password"),
			Role:        r.FormValue("role"),
			WarehouseID: warehouseID,
		}
		if err := CreateUser(r.Context(), db, in); err != nil {
			// Validation and password policy messages are safe to show as-is.
			redirectError(w, r, err.Error())
			return
		}

		slog.Info("admin users: user created", slog.String("username", strings.TrimSpace(in.Username)), slog.String("role", in.Role))
		http.Redirect(w, r, usersPath+"?status="+url.QueryEscape("user created"), http.StatusSeeOther)
	}
}

func AssignWarehouseCommandHandler(db *sqlite.DB, sessions *cache.UserSessionCache, users *cache.UserCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := context.GetSessionFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		if err := r.ParseForm(); err != nil {
			redirectError(w, r, "invalid form data")
			return
		}
		userID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("user_id")), 10, 64)
		if err != nil || userID <= 0 {
			redirectError(w, r, "invalid user")
			return
		}
		warehouseID, err := parseOptionalID(r.FormValue("warehouse_id"))
		if err != nil {
			redirectError(w, r, "invalid warehouse selection")
			return
		}
		if err := AssignWarehouse(r.Context(), db, sessions, users, userID, warehouseID); err != nil {
			redirectError(w, r, apperr.Message(err))
			return
		}
		http.Redirect(w, r, usersPath+"?status="+url.QueryEscape("warehouse updated"), http.StatusSeeOther)
	}
}

func redirectError(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, usersPath+"?error="+url.QueryEscape(msg), http.StatusSeeOther)
}

// parseOptionalID treats an empty value as zero.
func parseOptionalID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, strconv.ErrSyntax
	}
	return id, nil
}
