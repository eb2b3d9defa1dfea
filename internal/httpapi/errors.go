package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"ffb.ae/internal/apperr"
)

// failure is the JSON body of every rejected form post.
type failure struct {
	Success           bool              `json:"success"`
	Message           string            `json:"message"`
	Errors            map[string]string `json:"errors,omitempty"`
	RetryAfterMinutes int               `json:"retry_after_minutes,omitempty"`
	RequestID         string            `json:"request_id,omitempty"`
	Detail            string            `json:"detail,omitempty"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindSecurity:
		return http.StatusForbidden
	case apperr.KindLockout:
		return http.StatusTooManyRequests
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindNotFound:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// classify turns any error into an *apperr.Error. Unclassified errors are
// treated as persistence failures so their text never reaches the client.
func classify(op string, err error) *apperr.Error {
	if e, ok := apperr.As(err); ok {
		return e
	}
	return apperr.Persistence(op, err)
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	e := classify(op, err)
	code := statusFor(e.Kind)
	body := failure{
		Success:   false,
		Message:   e.Message,
		Errors:    e.Fields,
		RequestID: middleware.GetReqID(r.Context()),
	}
	if e.Kind == apperr.KindLockout {
		setRetryAfter(w, e)
		body.RetryAfterMinutes = apperr.RemainingMinutes(e.RetryAfter)
	}

	fields := []zap.Field{
		zap.String("op", e.Op),
		zap.String("kind", string(e.Kind)),
		zap.String("request_id", body.RequestID),
		zap.Error(err),
	}
	if code >= http.StatusInternalServerError {
		a.logger.Error("request failed", fields...)
		if a.cfg.Debug && !a.cfg.IsProduction() && e.Cause != nil {
			body.Detail = e.Cause.Error()
		}
	} else {
		a.logger.Debug("request rejected", fields...)
	}
	writeJSON(w, code, body)
}

func setRetryAfter(w http.ResponseWriter, e *apperr.Error) {
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(e.RetryAfter.Seconds()))))
}

// formError reports a body that could not be parsed at all.
func (a *API) formError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		a.fail(w, r, op, apperr.Validation(op, map[string]string{"form": "The upload is too large."}))
		return
	}
	a.fail(w, r, op, apperr.Validation(op, map[string]string{"form": "The form could not be read."}))
}
