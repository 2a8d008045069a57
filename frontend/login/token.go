package login

import (
	"errors"
	"net/http"
	"time"

	"wms/frontend/shared/context"
	"wms/frontend/shared/jsonio"
	"wms/infrastructure/apperr"
	"wms/infrastructure/rbac"
	"wms/infrastructure/sqlite"
	"wms/infrastructure/token"
	"wms/infrastructure/warehouse"
)

type TokenRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=256"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserID    int64     `json:"userId"`
	Role      string    `json:"role"`
}

// IssueTokenHandler exchanges credentials for a bearer token used by
// scanner terminals and API clients.
func IssueTokenHandler(db *sqlite.DB, issuer *token.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TokenRequest
		if err := jsonio.Decode(r, &req); err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		user, err := authenticateUser(r.Context(), db, req.Username, req.Password)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				jsonio.WriteError(w, r, apperr.Unauthenticated("invalid username or password"))
				return
			}
			jsonio.WriteError(w, r, err)
			return
		}
		var whID int64
		if user.WarehouseID != nil {
			whID = *user.WarehouseID
		}
		signed, expires, err := issuer.Issue(user.ID, user.Username, user.Role, whID)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, TokenResponse{Token: signed, ExpiresAt: expires, UserID: user.ID, Role: user.Role})
	}
}

// MeQueryHandler describes the caller: identity, acting warehouse and the
// operation codes its role holds.
func MeQueryHandler(db *sqlite.DB, rb *rbac.Rbac) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := context.GetActorFromContext(r.Context())
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		wh, err := warehouse.LoadByID(r.Context(), db, actor.WarehouseID)
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		jsonio.OK(w, map[string]any{
			"userId":      actor.UserID,
			"username":    actor.Username,
			"displayName": actor.DisplayName,
			"role":        actor.Role,
			"warehouse":   wh,
			"permissions": rb.Permissions(actor.Role),
		})
	}
}
