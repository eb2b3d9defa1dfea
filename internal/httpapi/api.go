// Package httpapi exposes the site over HTTP: public catalog pages, the
// booking and inquiry form handlers and the admin back office.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ffb.ae/internal/booking"
	"ffb.ae/internal/catalog"
	"ffb.ae/internal/config"
	"ffb.ae/internal/guard"
	"ffb.ae/internal/inquiry"
	"ffb.ae/internal/obs"
	"ffb.ae/internal/session"
	"ffb.ae/internal/stream"
)

const serviceName = "ffb-site"

// Probe reports whether dependencies are reachable.
type Probe interface {
	Check(ctx context.Context) error
}

// ReadyProbe pings the database and redis when they are configured.
type ReadyProbe struct {
	DB    *sql.DB
	Redis redis.UniversalClient
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Redis != nil {
		if err := rp.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Config     *config.Config
	Guard      *guard.Guard
	Catalog    catalog.Catalog
	Bookings   *booking.Pipeline
	Backoffice *booking.Backoffice
	Inquiries  *inquiry.Service
	// Feed is optional; without it the admin activity feed is disabled.
	Feed    *stream.Hub
	Probe   Probe
	Metrics *obs.Metrics
	Logger  *zap.Logger
	Version string
}

// API is the HTTP layer.
type API struct {
	cfg        *config.Config
	guard      *guard.Guard
	sessions   *session.Manager
	catalog    catalog.Catalog
	bookings   *booking.Pipeline
	backoffice *booking.Backoffice
	inquiries  *inquiry.Service
	feed       *stream.Hub
	probe      Probe
	metrics    *obs.Metrics
	logger     *zap.Logger
	version    string

	throttle    *throttle
	proxies     []netip.Prefix
	adminPolicy guard.Policy
	wizPolicy   guard.Policy
	adminMaxAge time.Duration
	now         func() time.Time
}

func New(d Deps) (*API, error) {
	if d.Guard == nil || d.Catalog == nil || d.Bookings == nil || d.Backoffice == nil || d.Inquiries == nil {
		return nil, errors.New("httpapi: guard, catalog, bookings, backoffice and inquiries are required")
	}
	cfg := d.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	probe := d.Probe
	if probe == nil {
		probe = ReadyProbe{}
	}
	proxies, err := cfg.Security.ProxyPrefixes()
	if err != nil {
		return nil, fmt.Errorf("httpapi: %w", err)
	}
	return &API{
		cfg:         cfg,
		guard:       d.Guard,
		sessions:    d.Guard.Sessions(),
		catalog:     d.Catalog,
		bookings:    d.Bookings,
		backoffice:  d.Backoffice,
		inquiries:   d.Inquiries,
		feed:        d.Feed,
		probe:       probe,
		metrics:     d.Metrics,
		logger:      logger.Named("http"),
		version:     d.Version,
		throttle:    newThrottle(cfg.Security.ThrottlePerSecond, cfg.Security.ThrottleBurst),
		proxies:     proxies,
		adminPolicy: guard.Policy{Bucket: "admin", Window: 15 * time.Minute, Max: 300},
		wizPolicy:   guard.Policy{Bucket: "wizard", Window: time.Hour, Max: 300},
		adminMaxAge: 12 * time.Hour,
		now:         time.Now,
	}, nil
}

// Handler builds the router with the full middleware chain.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(realIP(a.proxies))
	r.Use(withClientIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(a.metrics.Instrument)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", guard.CSRFHeader},
		AllowCredentials: true,
		MaxAge:           600,
	}))
	r.Use(maxBodyBytes(a.cfg.Security.MaxBodyBytes))
	r.Use(a.throttle.middleware)

	r.Get("/healthz", a.healthz)
	r.Get("/readyz", a.ready)
	r.Get("/v1/info", a.info)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(a.sessions.Middleware(a.sessionFailed))

		r.Get("/api/csrf-token", a.csrfToken)
		r.Get("/api/services", a.listServices)
		r.Get("/api/services/{id}", a.getService)
		r.Get("/api/projects", a.listProjects)
		r.Get("/api/testimonials", a.listTestimonials)

		r.Post("/api/booking/quote", a.quote)
		r.Post("/api/booking/step", a.wizardStep)
		r.Post("/handlers/booking-handler", a.submitBooking)
		r.Get("/api/bookings/track", a.trackBooking)

		r.Post("/handlers/contact-handler", a.submitContact)
		r.Post("/handlers/newsletter-handler", a.submitNewsletter)

		r.Get("/admin/login", a.loginPage)
		r.Post("/admin/login", a.login)
		r.Get("/admin/logout", a.logout)
		r.Group(func(r chi.Router) {
			r.Use(a.requireAdmin)
			r.Get("/admin/dashboard", a.dashboard)
			r.Get("/admin/bookings/feed", a.bookingFeed)
			r.Get("/admin/bookings/{reference}", a.adminBooking)
			r.Post("/admin/bookings/{reference}/status", a.setBookingStatus)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (a *API) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) ready(w http.ResponseWriter, r *http.Request) {
	if err := a.probe.Check(r.Context()); err != nil {
		a.metrics.SetReady(false)
		a.logger.Warn("readiness check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	a.metrics.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) info(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    a.now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) sessionFailed(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.Error("load session", zap.Error(err), zap.String("request_id", middleware.GetReqID(r.Context())))
	writeError(w, r, http.StatusInternalServerError, "Something went wrong on our side. Please try again later.")
}

// saveSession persists s, logging failures. Responses are still sent.
func (a *API) saveSession(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if err := a.sessions.Save(r.Context(), w, s); err != nil {
		a.logger.Error("save session", zap.Error(err))
	}
}

func currentSession(r *http.Request) *session.Session {
	s, _ := session.FromContext(r.Context())
	return s
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"success": false,
		"message": msg,
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}
