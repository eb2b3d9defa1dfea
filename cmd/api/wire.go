package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ffb.ae/internal/audit"
	"ffb.ae/internal/auth"
	"ffb.ae/internal/booking"
	"ffb.ae/internal/catalog"
	"ffb.ae/internal/config"
	"ffb.ae/internal/guard"
	"ffb.ae/internal/httpapi"
	"ffb.ae/internal/inquiry"
	"ffb.ae/internal/obs"
	"ffb.ae/internal/session"
	"ffb.ae/internal/store/pg"
	"ffb.ae/internal/stream"
	"ffb.ae/internal/uploads"
)

// app holds the wired service and the resources it must release.
type app struct {
	api    *httpapi.API
	health *httpapi.HealthServer

	db       *sql.DB
	redis    *redis.Client
	sessions *session.MemoryStore
}

func (a *app) Close() {
	if a.sessions != nil {
		_ = a.sessions.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

// build wires every component. Without DATABASE_URL the site runs on
// in-memory stores, which is only useful for local development.
func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	metrics := obs.NewMetrics(obs.Version, obs.Commit)
	auditLog := audit.New(logger)
	feed := stream.New()

	if cfg.DatabaseURL != "" {
		db, err := pg.Open(ctx, cfg.DatabaseURL, pg.DefaultPoolOptions())
		if err != nil {
			return nil, err
		}
		a.db = db
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}

	var sessStore session.Store
	if a.redis != nil {
		sessStore = session.NewRedisStore(a.redis, "")
	} else {
		a.sessions = session.NewMemoryStore(cfg.Session.TTL / 2)
		sessStore = a.sessions
	}
	sessions := session.NewManager(sessStore,
		session.WithCookieName(cfg.Session.CookieName),
		session.WithTTL(cfg.Session.TTL),
		session.WithSecure(cfg.Session.Secure),
	)

	var (
		counter      guard.Counter
		lockoutStore guard.LockoutStore
		users        auth.UserStore
		cat          catalog.Catalog
		bookings     booking.Store
		inquiries    inquiry.Store
	)
	switch {
	case a.db != nil:
		lockoutStore = guard.NewPGLockoutStore(a.db)
		users = auth.NewPGUserStore(a.db)
		cat = catalog.NewPGCatalog(a.db)
		bookings = booking.NewPGStore(a.db)
		inquiries = inquiry.NewPGStore(a.db)
	default:
		lockoutStore = guard.NewMemoryLockoutStore()
		mem := auth.NewMemoryUserStore()
		if err := bootstrapAdmin(ctx, mem, cfg.Security.BcryptCost, logger); err != nil {
			return nil, err
		}
		users = mem
		cat = catalog.NewStatic(catalog.DefaultServices(), nil, nil)
		bookings = booking.NewMemoryStore()
		inquiries = inquiry.NewMemoryStore()
	}
	switch {
	case a.redis != nil:
		counter = guard.NewRedisCounter(a.redis, "")
	case a.db != nil:
		counter = guard.NewPGCounter(a.db)
	default:
		counter = guard.NewMemoryCounter()
	}

	authn, err := auth.NewAuthenticator(users, cfg.Security.BcryptCost)
	if err != nil {
		return nil, err
	}
	lockout, err := guard.NewLockout(lockoutStore, lockoutPolicy(cfg.Security, cfg.Security.LockoutThreshold))
	if err != nil {
		return nil, err
	}
	accountLockout, err := guard.NewLockout(lockoutStore, lockoutPolicy(cfg.Security, cfg.Security.AccountLockoutThreshold))
	if err != nil {
		return nil, err
	}
	g, err := guard.New(guard.Deps{
		Sessions:       sessions,
		Limiter:        guard.NewLimiter(counter),
		Lockout:        lockout,
		AccountLockout: accountLockout,
		Authenticator:  authn,
		Users:          users,
		Audit:          auditLog,
		Metrics:        metrics,
		Logger:         logger,
	}, guard.WithLoginPolicy(policy("login", cfg.RateLimits.Login)))
	if err != nil {
		return nil, err
	}

	photos, err := uploads.NewDiskStore(cfg.Uploads.Dir, cfg.Uploads.MaxBytes)
	if err != nil {
		return nil, err
	}
	tracker, err := booking.NewTracker(trackingSecret(cfg, logger), cfg.Tracking.TTL)
	if err != nil {
		return nil, err
	}
	pipeline, err := booking.NewPipeline(booking.Deps{
		Gate:     g,
		Catalog:  cat,
		Store:    bookings,
		Photos:   photos,
		Notifier: booking.Notifiers{booking.NewLogNotifier(logger), booking.NewFeedNotifier(feed)},
		Tracker:  tracker,
		Audit:    auditLog,
		Metrics:  metrics,
		Logger:   logger,
	},
		booking.WithPolicy(policy("booking", cfg.RateLimits.Booking)),
		booking.WithMaxPhotos(cfg.Uploads.MaxFiles),
	)
	if err != nil {
		return nil, err
	}

	inq, err := inquiry.NewService(inquiry.Deps{Gate: g, Store: inquiries, Audit: auditLog, Metrics: metrics, Logger: logger})
	if err != nil {
		return nil, err
	}
	inq.ContactPolicy = policy("contact", cfg.RateLimits.Contact)
	inq.NewsletterPolicy = policy("newsletter", cfg.RateLimits.Newsletter)

	probe := httpapi.ReadyProbe{DB: a.db}
	if a.redis != nil {
		probe.Redis = a.redis
	}
	a.api, err = httpapi.New(httpapi.Deps{
		Config:     cfg,
		Guard:      g,
		Catalog:    cat,
		Bookings:   pipeline,
		Backoffice: booking.NewBackoffice(bookings, auditLog, booking.WithFeed(feed)),
		Inquiries:  inq,
		Feed:       feed,
		Probe:      probe,
		Metrics:    metrics,
		Logger:     logger,
		Version:    obs.Version,
	})
	if err != nil {
		return nil, err
	}
	a.health = httpapi.NewHealthServer(probe, metrics, logger)
	ok = true
	return a, nil
}

func policy(bucket string, rl config.RateLimit) guard.Policy {
	return guard.Policy{Bucket: bucket, Window: rl.Window, Max: rl.Max}
}

func lockoutPolicy(sec config.SecurityConfig, threshold int) guard.LockoutPolicy {
	return guard.LockoutPolicy{Threshold: threshold, Window: sec.LockoutWindow, Duration: sec.LockoutDuration}
}

// trackingSecret returns the configured secret or, outside production, a
// random one that invalidates links on restart.
func trackingSecret(cfg *config.Config, logger *zap.Logger) []byte {
	if cfg.Tracking.Secret != "" {
		return []byte(cfg.Tracking.Secret)
	}
	logger.Warn("FFB_TRACKING_SECRET not set, tracking links will not survive a restart")
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)
	return secret
}

// bootstrapAdmin creates the in-memory admin from FFB_ADMIN_USER and
// FFB_ADMIN_PASSWORD.
func bootstrapAdmin(ctx context.Context, users *auth.MemoryUserStore, cost int, logger *zap.Logger) error {
	username, password := os.Getenv("FFB_ADMIN_USER"), os.Getenv("FFB_ADMIN_PASSWORD")
	if username == "" || password == "" {
		logger.Warn("no in-memory admin configured, set FFB_ADMIN_USER and FFB_ADMIN_PASSWORD to sign in")
		return nil
	}
	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return err
	}
	return users.Create(ctx, &auth.User{
		Username:     username,
		Email:        username + "@localhost",
		PasswordHash: hash,
		DisplayName:  username,
		Role:         auth.RoleAdmin,
		Active:       true,
	})
}
