package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ffb.ae/internal/apperr"
	"ffb.ae/internal/config"
)

func TestFailMapsKinds(t *testing.T) {
	a := &API{cfg: config.Default(), logger: zap.NewNop()}
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"security", apperr.Security("op", errors.New("csrf")), http.StatusForbidden},
		{"lockout", apperr.Lockout("op", 90*time.Second), http.StatusTooManyRequests},
		{"validation", apperr.Validation("op", map[string]string{"email": "bad"}), http.StatusUnprocessableEntity},
		{"not found", apperr.NotFound("op", errors.New("id 7")), http.StatusBadRequest},
		{"unauthenticated", apperr.Unauthenticated("op", nil), http.StatusUnauthorized},
		{"persistence", apperr.Persistence("op", errors.New("dial tcp")), http.StatusInternalServerError},
		{"plain", errors.New("pq: relation missing"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			a.fail(rr, httptest.NewRequest(http.MethodPost, "/", nil), "test", tc.err)
			require.Equal(t, tc.code, rr.Code)

			var body failure
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.NotEmpty(t, body.Message)
			assert.Empty(t, body.Detail)
			assert.NotContains(t, body.Message, "7")
			assert.NotContains(t, body.Message, "relation")
		})
	}
}

func TestFailLockoutHeaders(t *testing.T) {
	a := &API{cfg: config.Default(), logger: zap.NewNop()}
	rr := httptest.NewRecorder()
	a.fail(rr, httptest.NewRequest(http.MethodPost, "/", nil), "test", apperr.Lockout("op", 90*time.Second))

	assert.Equal(t, "90", rr.Header().Get("Retry-After"))
	var body failure
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 2, body.RetryAfterMinutes)
}

func TestFailDetailOnlyInDebug(t *testing.T) {
	cfg := config.Default()
	cfg.Debug = true
	a := &API{cfg: cfg, logger: zap.NewNop()}
	rr := httptest.NewRecorder()
	a.fail(rr, httptest.NewRequest(http.MethodPost, "/", nil), "test", apperr.Persistence("op", errors.New("dial tcp")))

	var body failure
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "dial tcp", body.Detail)
}
