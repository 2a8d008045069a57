package http

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	loginflow "wms/frontend/login"
	sessioncontext "wms/frontend/shared/context"
	"wms/frontend/shared/jsonio"
	"wms/infrastructure/apperr"
	"wms/infrastructure/audit"
	"wms/infrastructure/cache"
	"wms/infrastructure/inventory"
	"wms/infrastructure/outbox"
	"wms/infrastructure/pickingtask"
	"wms/infrastructure/placement"
	"wms/infrastructure/rbac"
	sessioncookie "wms/infrastructure/session"
	"wms/infrastructure/shipment"
	"wms/infrastructure/sqlite"
	"wms/infrastructure/token"
	"wms/infrastructure/transfer"
	"wms/infrastructure/warehouse"
	"wms/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed assets/*
var assets embed.FS

var ShutdownTimeout = 2 * time.Second

// Deps are the long-lived collaborators the server routes to.
type Deps struct {
	DB         *sqlite.DB
	Audit      *audit.Service
	Tokens     *token.Issuer
	Outbox     *outbox.Dispatcher
	SessionTTL time.Duration
	ChunkSize  int
}

// Server bundles dependencies and route wiring.
type Server struct {
	Addr   string
	ln     net.Listener
	server *http.Server
	router *chi.Mux

	DB           *sqlite.DB
	SessionCache *cache.UserSessionCache
	UserCache    *cache.UserCache
	RbacCache    *cache.RbacRolesCache
	Rbac         *rbac.Rbac
	Audit        *audit.Service
	Tokens       *token.Issuer
	Outbox       *outbox.Dispatcher
	SessionTTL   time.Duration

	Placement    *placement.Service
	PickingTasks *pickingtask.Service
	Shipments    *shipment.Service
	Transfers    *transfer.Service
	Inventory    *inventory.Service
}

// NewServer creates a new http server.
func NewServer(addr string, d Deps) *Server {
	rbacCache := cache.NewRbacRolesCache()
	placementSvc := placement.NewService(d.DB, d.Audit)
	s := &Server{
		Addr:         addr,
		router:       chi.NewRouter(),
		DB:           d.DB,
		SessionCache: cache.NewUserSessionCache(),
		UserCache:    cache.NewUserCache(),
		RbacCache:    rbacCache,
		Rbac:         rbac.New(rbacCache, rbac.DefaultPolicy),
		Audit:        d.Audit,
		Tokens:       d.Tokens,
		Outbox:       d.Outbox,
		SessionTTL:   d.SessionTTL,
		Placement:    placementSvc,
		PickingTasks: pickingtask.NewService(d.DB, placementSvc, d.Audit, d.ChunkSize),
		Shipments:    shipment.NewService(d.DB, placementSvc, d.Audit),
		Transfers:    transfer.NewService(d.DB, placementSvc, d.Audit),
		Inventory:    inventory.NewService(d.DB, d.Audit),
		server: &http.Server{
			MaxHeaderBytes:    1 << 20,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	// Secure headers first.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-XSS-Protection", "1; mode=block")
			next.ServeHTTP(w, r)
		})
	})

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(s.CSRFMiddleware)

	// Handle root requests - check auth status but don't require it.
	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sessionCookie, err := r.Cookie(sessioncookie.CookieName)
		if err != nil || sessionCookie.Value == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		session, ok := s.resolveSession(r.Context(), sessionCookie.Value)
		if !ok || session.Expired() {
			http.SetCookie(w, sessioncookie.ClearCookie())
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/tasker/cells/map", http.StatusSeeOther)
	})

	s.router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Serve assets from embedded FS.
	var assetsFS fs.FS = assets
	if sub, err := fs.Sub(assets, "assets"); err == nil {
		assetsFS = sub
	} else {
		slog.Error("assets subfs init failed; serving fallback fs", slog.Any("err", err))
	}
	s.router.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.FS(assetsFS))))

	s.RegisterLoginRoutes()

	s.router.Route("/api", func(r chi.Router) {
		s.RegisterPublicAPIRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(s.APIAuthenticateMiddleware)
			s.RegisterAPIRoutes(r)
		})
	})

	s.router.Route("/tasker", func(r chi.Router) {
		r.Use(s.AuthenticateMiddleware)
		s.RegisterFrontendRoutes(r)
		s.RegisterAdminRoutes(r)
	})

	s.server.Handler = s.router
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// AuthenticateMiddleware loads the cookie session, applies RBAC checks and
// puts both the session and the resolved actor on the context.
func (s *Server) AuthenticateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionCookie, err := r.Cookie(sessioncookie.CookieName)
		if err != nil || sessionCookie.Value == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		sessionToken := sessionCookie.Value
		session, ok := s.resolveSession(r.Context(), sessionToken)
		if !ok {
			slog.Warn("session not found", slog.String("method", r.Method), slog.String("path", r.URL.Path))
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		if session.Expired() {
			http.SetCookie(w, sessioncookie.ClearCookie())
			s.SessionCache.DeleteSessionBySessionToken(sessionToken)
			if err := loginflow.DeleteSessionByToken(r.Context(), s.DB, sessionToken); err != nil {
				slog.Error("cannot delete session from DB", slog.String("session_id", sessionToken), slog.Any("err", err))
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		session.ScreenPermissions = s.Rbac.Permissions(session.User.Role)
		if !s.Rbac.Allowed(session.User.Role, r.URL.Path, r.Method) {
			slog.Warn("rbac denied", slog.String("user", session.User.Username), slog.String("method", r.Method), slog.String("path", r.URL.Path))
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		actor, err := warehouse.ResolveActor(r.Context(), s.DB, session.User, "")
		if err != nil && session.User.Role != rbac.RoleAdmin {
			slog.Warn("session actor unresolved", slog.String("user", session.User.Username), slog.Any("err", err))
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		ctx := sessioncontext.NewContextWithSession(r.Context(), session)
		ctx = sessioncontext.NewContextWithActor(ctx, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// APIAuthenticateMiddleware accepts a bearer token, reloads the user so role
// and warehouse changes apply at once, resolves the X-Warehouse-ID header
// and checks the route against the role policy.
func (s *Server) APIAuthenticateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := token.FromHeader(r.Header.Get("Authorization"))
		if !ok {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		claims, err := s.Tokens.Parse(raw)
		if err != nil {
			jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
			return
		}
		user, err := s.loadUser(r.Context(), claims.UserID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				jsonio.WriteError(w, r, apperr.Unauthenticated("unauthenticated"))
				return
			}
			jsonio.WriteError(w, r, err)
			return
		}
		if !s.Rbac.Allowed(user.Role, r.URL.Path, r.Method) {
			jsonio.WriteError(w, r, apperr.Forbidden("forbidden"))
			return
		}
		actor, err := warehouse.ResolveActor(r.Context(), s.DB, user, r.Header.Get(warehouse.HeaderName))
		if err != nil {
			jsonio.WriteError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(sessioncontext.NewContextWithActor(r.Context(), actor)))
	})
}

func (s *Server) loadUser(ctx context.Context, id int64) (models.User, error) {
	if user, ok := s.UserCache.GetByID(id); ok {
		return user, nil
	}
	user, err := loginflow.LoadUserByID(ctx, s.DB, id)
	if err != nil {
		return models.User{}, err
	}
	s.UserCache.Add(user.Username, user)
	return user, nil
}

func (s *Server) resolveSession(ctx context.Context, token string) (session models.Session, ok bool) {
	if cached, found := s.SessionCache.FindSessionBySessionToken(token); found {
		return cached, true
	}

	dbSession, err := loginflow.LoadSessionByToken(ctx, s.DB, token)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Error("load session from db failed", slog.String("session_id", token), slog.Any("err", err))
		}
		return session, false
	}

	s.SessionCache.AddSession(dbSession)
	s.UserCache.Add(dbSession.User.Username, dbSession.User)
	return dbSession, true
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	var err error
	if s.ln, err = net.Listen("tcp", s.Addr); err != nil {
		return err
	}
	go s.server.Serve(s.ln)
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.ln == nil {
		return fmt.Errorf("HTTP server has not been started or is already stopped")
	}
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %v", err)
	}
	s.ln = nil
	return nil
}
