// Package audit records security-relevant events as structured log entries.
package audit

import (
	"context"
	"errors"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"ffb.ae/internal/auth"
)

type ctxKey string

const clientIPKey ctxKey = "audit_client_ip"

// Event names.
const (
	LoginSucceeded     = "admin.login.succeeded"
	LoginFailed        = "admin.login.failed"
	LoginLocked        = "admin.login.locked"
	Logout             = "admin.logout"
	CSRFRejected       = "guard.csrf.rejected"
	RateLimited        = "guard.rate_limited"
	BookingCreated     = "booking.created"
	BookingStatusSet   = "booking.status.changed"
	InquiryReceived    = "inquiry.received"
	NewsletterSignedUp = "newsletter.subscribed"
)

// Logger writes audit entries through zap under the "audit" logger name.
type Logger struct {
	z *zap.Logger
}

func New(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{z: z.Named("audit")}
}

// WithClientIP attaches the caller address to the context for audit entries.
func WithClientIP(ctx context.Context, ip string) context.Context {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(clientIPKey).(string); ok {
		return v
	}
	return ""
}

// Event writes an audit entry enriched with request id, client ip and admin.
func (l *Logger) Event(ctx context.Context, event string, fields ...zap.Field) error {
	if l == nil {
		return nil
	}
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := make([]zap.Field, 0, len(fields)+4)
	entry = append(entry, zap.String("type", "audit"), zap.String("event", event))
	if rid := middleware.GetReqID(ctx); rid != "" {
		entry = append(entry, zap.String("request_id", rid))
	}
	if ip := clientIPFromContext(ctx); ip != "" {
		entry = append(entry, zap.String("client_ip", ip))
	}
	if admin, ok := auth.AdminFromContext(ctx); ok {
		entry = append(entry, zap.Int64("admin_user_id", admin.UserID))
	}
	entry = append(entry, fields...)
	l.z.Info(event, entry...)
	return nil
}
