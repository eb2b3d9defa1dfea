// Package guard protects state-changing endpoints: CSRF tokens, rate limits,
// failed-login lockout and the admin session lifecycle.
package guard

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"ffb.ae/internal/apperr"
	"ffb.ae/internal/audit"
	"ffb.ae/internal/auth"
	"ffb.ae/internal/obs"
	"ffb.ae/internal/session"
)

// Session keys of an authenticated admin.
const (
	keyAdminID      = "admin_user_id"
	keyAdminName    = "admin_display_name"
	keyAdminRole    = "admin_role"
	keyAdminLoginAt = "admin_login_at"
)

var (
	errCSRF        = errors.New("csrf token missing or mismatched")
	errRateLimited = errors.New("rate limit exceeded")
)

// Deps are the collaborators of a Guard.
type Deps struct {
	Sessions *session.Manager
	Limiter  *Limiter
	Lockout  *Lockout
	// AccountLockout, when set, also counts failures per login alone so that
	// changing client address does not reset an account's budget.
	AccountLockout *Lockout
	Authenticator  *auth.Authenticator
	Users          auth.UserStore
	Audit          *audit.Logger
	Metrics        *obs.Metrics
	Logger         *zap.Logger
}

// Guard ties the individual checks together for HTTP handlers.
type Guard struct {
	sessions *session.Manager
	limiter  *Limiter
	lockout  *Lockout
	account  *Lockout
	authn    *auth.Authenticator
	users    auth.UserStore
	audit    *audit.Logger
	metrics  *obs.Metrics
	logger   *zap.Logger

	loginPolicy Policy
	now         func() time.Time
}

type Option func(*Guard)

// WithLoginPolicy sets the per-IP budget for login form posts.
func WithLoginPolicy(p Policy) Option {
	return func(g *Guard) {
		if p.validate() == nil {
			g.loginPolicy = p
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

func New(d Deps, opts ...Option) (*Guard, error) {
	if d.Sessions == nil || d.Limiter == nil || d.Lockout == nil || d.Authenticator == nil || d.Users == nil {
		return nil, errors.New("guard: sessions, limiter, lockout, authenticator and users are required")
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Guard{
		sessions:    d.Sessions,
		limiter:     d.Limiter,
		lockout:     d.Lockout,
		account:     d.AccountLockout,
		authn:       d.Authenticator,
		users:       d.Users,
		audit:       d.Audit,
		metrics:     d.Metrics,
		logger:      logger.Named("guard"),
		loginPolicy: Policy{Bucket: "login", Window: 15 * time.Minute, Max: 20},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Protect is the shared gate of every mutating form: CSRF first, then the
// per-IP budget of p. Both failures yield the same generic Security error.
func (g *Guard) Protect(ctx context.Context, s *session.Session, token, ip string, p Policy) error {
	const op = "guard.protect"
	if !VerifyCSRFToken(s, token) {
		g.metrics.ObserveSecurityRejection("csrf")
		g.logger.Warn("csrf verification failed", zap.String("bucket", p.Bucket), zap.String("ip", ip),
			zap.Bool("token_supplied", token != ""))
		_ = g.audit.Event(ctx, audit.CSRFRejected, zap.String("bucket", p.Bucket))
		return apperr.Security(op, errCSRF)
	}
	return g.CheckRateLimit(ctx, ip, p)
}

// CheckRateLimit counts one hit for identifier against p. Counter failures
// are reported as persistence errors so the request fails closed.
func (g *Guard) CheckRateLimit(ctx context.Context, identifier string, p Policy) error {
	const op = "guard.rate_limit"
	ok, err := g.limiter.Allow(ctx, identifier, p)
	if err != nil {
		g.logger.Error("rate limit counter failed", zap.String("bucket", p.Bucket), zap.Error(err))
		return apperr.Persistence(op, err)
	}
	if !ok {
		g.metrics.ObserveSecurityRejection("rate_limit")
		g.logger.Warn("rate limit exceeded", zap.String("bucket", p.Bucket), zap.String("identifier", identifier))
		_ = g.audit.Event(ctx, audit.RateLimited, zap.String("bucket", p.Bucket))
		return apperr.Security(op, errRateLimited)
	}
	return nil
}

// LoginInput is a submitted admin login form.
type LoginInput struct {
	Login     string
	Password  string
	CSRFToken string
	IP        string
}

// LoginIdentifier keys lockout records by normalised login and client IP.
func LoginIdentifier(ip, login string) string {
	return auth.NormalizeLogin(login) + "|" + strings.TrimSpace(ip)
}

// AccountIdentifier keys the per-account lockout record of login.
func AccountIdentifier(login string) string {
	return "account:" + auth.NormalizeLogin(login)
}

// lockKey is one lockout record consulted by a login attempt.
type lockKey struct {
	lockout    *Lockout
	identifier string
}

func (g *Guard) lockKeys(in LoginInput) []lockKey {
	keys := []lockKey{{g.lockout, LoginIdentifier(in.IP, in.Login)}}
	if g.account != nil {
		keys = append(keys, lockKey{g.account, AccountIdentifier(in.Login)})
	}
	return keys
}

// Login runs the full admin sign-in: CSRF, rate limit, lockout, password,
// then session creation. A locked identifier is rejected before the
// password is looked at.
func (g *Guard) Login(ctx context.Context, w http.ResponseWriter, s *session.Session, in LoginInput) (*auth.User, error) {
	const op = "guard.login"
	if err := g.Protect(ctx, s, in.CSRFToken, in.IP, g.loginPolicy); err != nil {
		g.metrics.ObserveLogin("rejected")
		return nil, err
	}

	now := g.now()
	keys := g.lockKeys(in)
	var remaining time.Duration
	for _, k := range keys {
		left, err := k.lockout.Remaining(ctx, k.identifier, now)
		if err != nil {
			g.logger.Error("lockout lookup failed", zap.Error(err))
			return nil, apperr.Persistence(op, err)
		}
		remaining = max(remaining, left)
	}
	if remaining > 0 {
		g.metrics.ObserveLogin("locked")
		_ = g.audit.Event(ctx, audit.LoginLocked, zap.String("login", auth.NormalizeLogin(in.Login)),
			zap.Duration("remaining", remaining))
		return nil, apperr.Lockout(op, remaining)
	}

	user, err := g.AuthenticateAdmin(ctx, in.Login, in.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return nil, g.failLogin(ctx, keys, in.Login, now)
	}
	if err != nil {
		g.logger.Error("admin lookup failed", zap.Error(err))
		return nil, apperr.Persistence(op, err)
	}

	if err := g.CreateAdminSession(ctx, w, s, user); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if err := k.lockout.Reset(ctx, k.identifier); err != nil {
			g.logger.Warn("clear login attempts", zap.Error(err))
		}
	}
	g.metrics.ObserveLogin("success")
	_ = g.audit.Event(ctx, audit.LoginSucceeded, zap.Int64("user_id", user.ID))
	return user, nil
}

// failLogin counts the failure against every key. The attempt that reaches
// a threshold is already answered with the lockout.
func (g *Guard) failLogin(ctx context.Context, keys []lockKey, login string, now time.Time) error {
	const op = "guard.login"
	var (
		attempts  int
		remaining time.Duration
		until     time.Time
	)
	for _, k := range keys {
		rec, err := k.lockout.RegisterFailure(ctx, k.identifier, now)
		if err != nil {
			g.logger.Error("record login failure", zap.Error(err))
			return apperr.Persistence(op, err)
		}
		attempts = max(attempts, rec.Attempts)
		if left := rec.RemainingAt(now); left > remaining {
			remaining = left
			until = *rec.LockedUntil
		}
	}
	_ = g.audit.Event(ctx, audit.LoginFailed, zap.String("login", auth.NormalizeLogin(login)),
		zap.Int("attempts", attempts))
	if remaining > 0 {
		g.metrics.ObserveLogin("locked")
		_ = g.audit.Event(ctx, audit.LoginLocked, zap.String("login", auth.NormalizeLogin(login)),
			zap.Time("locked_until", until))
		return apperr.Lockout(op, remaining)
	}
	g.metrics.ObserveLogin("failure")
	return apperr.Unauthenticated(op, auth.ErrInvalidCredentials)
}

// AuthenticateAdmin verifies credentials. Any mismatch is
// auth.ErrInvalidCredentials regardless of which part was wrong.
func (g *Guard) AuthenticateAdmin(ctx context.Context, login, password string) (*auth.User, error) {
	return g.authn.Authenticate(ctx, login, password)
}

// CreateAdminSession rotates the session id and stores the admin principal
// and a fresh CSRF token.
func (g *Guard) CreateAdminSession(ctx context.Context, w http.ResponseWriter, s *session.Session, u *auth.User) error {
	const op = "guard.create_session"
	now := g.now().UTC()

	s.Clear()
	s.Set(keyAdminID, strconv.FormatInt(u.ID, 10))
	s.Set(keyAdminName, u.DisplayName)
	s.Set(keyAdminRole, string(u.Role))
	s.Set(keyAdminLoginAt, now.Format(time.RFC3339Nano))
	if _, err := IssueCSRFToken(s); err != nil {
		return apperr.Persistence(op, err)
	}
	if err := g.sessions.Regenerate(ctx, w, s); err != nil {
		g.logger.Error("regenerate session", zap.Error(err))
		return apperr.Persistence(op, err)
	}

	if err := g.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		g.logger.Warn("touch last login", zap.Int64("user_id", u.ID), zap.Error(err))
	}
	return nil
}

// DestroyAdminSession clears all state and invalidates the session id.
func (g *Guard) DestroyAdminSession(ctx context.Context, w http.ResponseWriter, s *session.Session) error {
	if err := g.sessions.Destroy(ctx, w, s); err != nil {
		return apperr.Persistence("guard.destroy_session", err)
	}
	return nil
}

// Logout destroys the admin session after checking the CSRF token passed
// in the logout link.
func (g *Guard) Logout(ctx context.Context, w http.ResponseWriter, s *session.Session, token string) error {
	if !VerifyCSRFToken(s, token) {
		g.metrics.ObserveSecurityRejection("csrf")
		_ = g.audit.Event(ctx, audit.CSRFRejected, zap.String("bucket", "logout"))
		return apperr.Security("guard.logout", errCSRF)
	}
	admin, wasAdmin := CurrentAdmin(s)
	if err := g.DestroyAdminSession(ctx, w, s); err != nil {
		return err
	}
	if wasAdmin {
		_ = g.audit.Event(ctx, audit.Logout, zap.Int64("user_id", admin.UserID))
	}
	return nil
}

// CurrentAdmin reads the admin principal out of s.
func CurrentAdmin(s *session.Session) (auth.Admin, bool) {
	if s == nil {
		return auth.Admin{}, false
	}
	id, err := strconv.ParseInt(s.Get(keyAdminID), 10, 64)
	if err != nil || id <= 0 {
		return auth.Admin{}, false
	}
	loginAt, _ := time.Parse(time.RFC3339Nano, s.Get(keyAdminLoginAt))
	return auth.Admin{
		UserID:      id,
		DisplayName: s.Get(keyAdminName),
		Role:        auth.Role(s.Get(keyAdminRole)),
		LoginAt:     loginAt,
	}, true
}

// Sessions exposes the session manager used by the guard.
func (g *Guard) Sessions() *session.Manager {
	return g.sessions
}
