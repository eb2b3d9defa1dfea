package guard

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"ffb.ae/internal/session"
)

const (
	csrfSessionKey = "csrf_token"
	csrfTokenBytes = 32

	// CSRFField is the form field and query parameter carrying the token.
	CSRFField = "csrf_token"
	// CSRFHeader lets XHR callers send the token without a form body.
	CSRFHeader = "X-CSRF-Token"
)

// IssueCSRFToken stores a new random token in s, replacing any previous one.
// The caller persists s.
func IssueCSRFToken(s *session.Session) (string, error) {
	buf := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("guard: csrf entropy: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	s.Set(csrfSessionKey, token)
	return token, nil
}

// CSRFToken returns the session's token, issuing one when absent. Tokens are
// reusable for the life of the session.
func CSRFToken(s *session.Session) (token string, issued bool, err error) {
	if t := s.Get(csrfSessionKey); t != "" {
		return t, false, nil
	}
	t, err := IssueCSRFToken(s)
	return t, err == nil, err
}

// VerifyCSRFToken compares supplied against the token minted for s in
// constant time. It never panics and reports false for any missing value.
func VerifyCSRFToken(s *session.Session, supplied string) bool {
	if s == nil || supplied == "" {
		return false
	}
	expected := s.Get(csrfSessionKey)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1
}
