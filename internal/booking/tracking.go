package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const trackingIssuer = "ffb.ae/bookings"

var ErrInvalidTrackingToken = errors.New("booking: invalid tracking token")

// Tracker issues signed links that let a client look up their own booking
// without an account.
type Tracker struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTracker requires an HMAC secret of at least 32 bytes.
func NewTracker(secret []byte, ttl time.Duration) (*Tracker, error) {
	if len(secret) < 32 {
		return nil, errors.New("booking: tracking secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		return nil, errors.New("booking: tracking ttl must be positive")
	}
	return &Tracker{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for reference.
func (t *Tracker) Issue(reference string) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Issuer:    trackingIssuer,
		Subject:   reference,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("booking: sign tracking token: %w", err)
	}
	return signed, nil
}

// Parse returns the booking reference carried by token.
func (t *Tracker) Parse(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(trackingIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !ValidReference(claims.Subject) {
		return "", ErrInvalidTrackingToken
	}
	return claims.Subject, nil
}
