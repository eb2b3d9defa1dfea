package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestWrapKeepsExistingKind(t *testing.T) {
	inner := NotFound("catalog.find", errors.New("no rows"))
	wrapped := Wrap(KindPersistence, "booking.submit", "db failure", fmt.Errorf("lookup: %w", inner))
	if wrapped.Kind != KindNotFound {
		t.Fatalf("expected kind %s, got %s", KindNotFound, wrapped.Kind)
	}
	if Wrap(KindPersistence, "op", "msg", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"security", Security("guard.protect", errors.New("csrf")), KindSecurity},
		{"wrapped validation", fmt.Errorf("submit: %w", Validation("booking.validate", map[string]string{"urgency": "invalid"})), KindValidation},
		{"plain", errors.New("boom"), KindUnknown},
		{"nil", nil, KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf=%s, want %s", got, tc.want)
			}
		})
	}
}

func TestSecurityMessageDoesNotLeakCause(t *testing.T) {
	csrf := Security("guard", errors.New("csrf token mismatch"))
	limit := Security("guard", errors.New("rate limit exceeded"))
	if csrf.Message != limit.Message {
		t.Fatalf("security messages differ: %q vs %q", csrf.Message, limit.Message)
	}
	if strings.Contains(csrf.Message, "csrf") {
		t.Fatalf("message leaks cause: %q", csrf.Message)
	}
}

func TestLockoutMessage(t *testing.T) {
	err := Lockout("guard.login", 14*time.Minute+10*time.Second)
	if err.RetryAfter <= 0 {
		t.Fatal("expected retry-after")
	}
	if !strings.Contains(err.Message, "15 minute") {
		t.Fatalf("unexpected message: %q", err.Message)
	}
}

func TestRemainingMinutes(t *testing.T) {
	cases := map[time.Duration]int{
		0:                         1,
		30 * time.Second:          1,
		time.Minute:               1,
		time.Minute + time.Second: 2,
		15 * time.Minute:          15,
	}
	for in, want := range cases {
		if got := RemainingMinutes(in); got != want {
			t.Fatalf("RemainingMinutes(%s)=%d, want %d", in, got, want)
		}
	}
}

func TestErrorStringIncludesFields(t *testing.T) {
	err := Validation("booking.validate", map[string]string{"email": "invalid", "date": "past"})
	s := err.Error()
	if !strings.Contains(s, "date: past, email: invalid") {
		t.Fatalf("unexpected error string: %s", s)
	}
}
