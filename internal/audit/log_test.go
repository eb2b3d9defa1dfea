package audit

import (
	"context"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"ffb.ae/internal/auth"
)

func TestEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := New(zap.New(core))

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-123")
	ctx = WithClientIP(ctx, "10.1.2.3")
	ctx = auth.ContextWithAdmin(ctx, auth.Admin{UserID: 42, Role: auth.RoleAdmin})

	if err := logger.Event(ctx, BookingStatusSet, zap.String("reference", "FFB-20250101-ABC234")); err != nil {
		t.Fatalf("Event failed: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	e := entries[0]
	if e.LoggerName != "audit" {
		t.Fatalf("unexpected logger name %q", e.LoggerName)
	}
	fields := e.ContextMap()
	if fields["type"] != "audit" || fields["event"] != BookingStatusSet {
		t.Fatalf("unexpected type/event: %v", fields)
	}
	if fields["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", fields["request_id"])
	}
	if fields["client_ip"] != "10.1.2.3" {
		t.Fatalf("unexpected client ip: %v", fields["client_ip"])
	}
	if fields["admin_user_id"] != int64(42) {
		t.Fatalf("unexpected admin id: %v", fields["admin_user_id"])
	}
	if fields["reference"] != "FFB-20250101-ABC234" {
		t.Fatalf("unexpected reference: %v", fields["reference"])
	}
}

func TestEventRequiresName(t *testing.T) {
	if err := New(nil).Event(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty event name")
	}
	var nilLogger *Logger
	if err := nilLogger.Event(context.Background(), LoginFailed); err != nil {
		t.Fatalf("nil logger should be a no-op, got %v", err)
	}
}
