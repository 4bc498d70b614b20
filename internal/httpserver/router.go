package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"opscore/internal/audit"
	"opscore/internal/auth"
	"opscore/internal/failure"
	"opscore/internal/httpserver/handlers"
	"opscore/internal/rbac"
	"opscore/internal/session"
)

// Deps carries the wired components the router mounts.
type Deps struct {
	DB       *gorm.DB
	Codec    *auth.Codec
	Sessions *session.Manager
	Checker  auth.SessionChecker
	Sink     failure.Sink
	Masker   *failure.Masker
}

func NewRouter(d Deps, lg *zap.SugaredLogger) http.Handler {
	r := chi.NewRouter()
	// The failure capture hook wraps everything below it; RequestID runs
	// first so the hook sees a stable trace id.
	r.Use(middleware.RequestID, middleware.RealIP)
	r.Use(failure.Recoverer(d.Sink, d.Masker, lg))
	r.Use(captureContext)

	r.Post("/v1/auth/login", handlers.Login(d.Sessions, lg))
	r.Post("/v1/auth/step-up", handlers.StepUp(d.Sessions, lg))
	r.Get("/v1/auth/session", handlers.SessionState(d.Sessions, lg))

	r.Group(func(protected chi.Router) {
		protected.Use(auth.RequireAuth(d.Codec, d.Checker))
		protected.Use(failure.TagUser)
		protected.Use(captureContext)

		protected.Get("/v1/me", handlers.Me(d.DB, lg))
		protected.Post("/v1/auth/logout", handlers.Logout(d.Sessions, lg))

		protected.Group(func(gated chi.Router) {
			gated.Use(auth.RequirePermission(rbac.PermViewAuditLog))
			gated.Get("/v1/audit", handlers.AuditEntries(d.DB, lg))
		})
		protected.Group(func(gated chi.Router) {
			gated.Use(auth.RequirePermission(rbac.PermViewFailureLog))
			gated.Get("/v1/failures", handlers.FailureEntries(d.DB, lg))
		})
		protected.Group(func(gated chi.Router) {
			gated.Use(auth.RequirePermission(rbac.PermManageUsers))
			gated.Get("/v1/admin/users", handlers.ListUsers(d.DB, lg))
			gated.Post("/v1/admin/users", handlers.CreateUser(d.DB, lg))
			gated.Patch("/v1/admin/users/{id}", handlers.UpdateUser(d.DB, lg))
			gated.Delete("/v1/admin/users/{id}", handlers.DeleteUser(d.DB, lg))
		})
		protected.Group(func(gated chi.Router) {
			gated.Use(auth.RequirePermission(rbac.PermManageClients))
			gated.Post("/v1/clients", handlers.CreateClient(d.DB, lg))
			gated.Get("/v1/clients", handlers.ListClients(d.DB, lg))
			gated.Patch("/v1/clients/{id}", handlers.UpdateClient(d.DB, lg))
			gated.Delete("/v1/clients/{id}", handlers.DeleteClient(d.DB, lg))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}

// captureContext threads the acting principal, client IP, and endpoint into
// the request context for the audit capture hook. Mounted once for public
// routes (null actor) and again behind auth, where the principal is known.
func captureContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := audit.RequestInfo{
			IP:       r.RemoteAddr,
			Endpoint: r.Method + " " + r.URL.Path,
		}
		if sub := auth.Subject(r.Context()); sub != "" {
			info.UserID = &sub
		}
		ctx := audit.WithRequestInfo(r.Context(), info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
