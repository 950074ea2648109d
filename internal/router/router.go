package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	audithandler "civreg/internal/audit/handler"
	authhandler "civreg/internal/auth/handler"
	certhandler "civreg/internal/certificate/handler"
	notifhandler "civreg/internal/notification/handler"
	"civreg/internal/platform/metrics"
	"civreg/internal/platform/middleware"
	verifyhandler "civreg/internal/verify/handler"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/httputil"
)

const requestTimeout = 30 * time.Second

// Deps collects everything the router mounts.
type Deps struct {
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	Validator     middleware.JWTValidator
	Auth          *authhandler.Handler
	Certificates  *certhandler.Handler
	Notifications *notifhandler.Handler
	Verify        *verifyhandler.Handler
	Audit         *audithandler.Handler
	// Health reports readiness of the backing services.
	Health func(ctx context.Context) error
}

// New assembles the HTTP surface: public verification and auth endpoints,
// the authenticated API, and the admin routes behind the ADMIN role.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.LatencyMiddleware(d.Metrics))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if d.Health != nil {
			if err := d.Health(req.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Public surface: registration, login, QR verification.
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		d.Auth.PublicRoutes(r)
	})
	d.Verify.Routes(r)

	// Authenticated API.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.Validator, d.Logger))
		r.Use(middleware.ContentTypeJSON)

		d.Auth.ProfileRoutes(r)
		d.Certificates.Routes(r)
		d.Notifications.Routes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(d.Logger, id.RoleAdmin))
			d.Auth.AdminRoutes(r)
			d.Audit.Routes(r)
		})
	})

	return r
}
