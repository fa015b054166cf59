package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"quiz-eval-service/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carry the principal of a session.
type Claims struct {
	Kind     domain.PrincipalKind `json:"kind"`
	Language domain.Language      `json:"lang"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret not configured")
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// NewIssuerWithClock is test-only for deterministic expiry.
func NewIssuerWithClock(secret string, ttl time.Duration, now func() time.Time) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: now}
}

// Issue signs a token for p. The session ID becomes the token ID.
func (i *Issuer) Issue(p domain.Principal) (string, error) {
	now := i.now()
	claims := Claims{
		Kind:     p.Kind,
		Language: p.Language,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.ID, 10),
			ID:        p.SessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies raw and returns its principal. Every failure is domain.ErrUnauthorized.
func (i *Issuer) Parse(raw string) (domain.Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: bad subject", domain.ErrUnauthorized)
	}
	if claims.Kind != domain.PrincipalUser && claims.Kind != domain.PrincipalAdmin {
		return domain.Principal{}, fmt.Errorf("%w: unknown principal kind %q", domain.ErrUnauthorized, claims.Kind)
	}
	if claims.ID == "" {
		return domain.Principal{}, fmt.Errorf("%w: missing session id", domain.ErrUnauthorized)
	}
	return domain.Principal{
		Kind:      claims.Kind,
		ID:        id,
		SessionID: claims.ID,
		Language:  claims.Language,
	}, nil
}
