package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated principal extracted from a valid token.
type Identity struct {
	UserID    string
	SessionID string
}

type tokenClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// ActiveChecker is the registry lookup required during validation.
type ActiveChecker interface {
	IsActive(ctx context.Context, sessionID string) (bool, error)
}

// Issuer mints and validates signed bearer tokens. Validity is the
// conjunction of signature correctness, expiry, and registry membership of
// the referenced session.
type Issuer struct {
	secret   []byte
	ttl      time.Duration
	registry ActiveChecker
	now      func() time.Time
}

// NewIssuer constructs an Issuer signing with the provided secret. The
// secret is process-wide configuration loaded once at startup.
func NewIssuer(secret string, ttl time.Duration, registry ActiveChecker) *Issuer {
	if secret == "" {
		panic("auth: token secret must not be empty")
	}
	if registry == nil {
		panic("auth: session registry must not be nil")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{
		secret:   []byte(secret),
		ttl:      ttl,
		registry: registry,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Issue signs a bearer token carrying the user and session reference.
func (i *Issuer) Issue(userID, sessionID string) (string, error) {
	if userID == "" || sessionID == "" {
		return "", errors.New("user id and session id must be provided")
	}

	now := i.now()
	claims := tokenClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Validate checks signature and expiry, then confirms the session is still
// registered. Failures map to ErrTokenMalformed, ErrTokenExpired, or
// ErrSessionRevoked; callers treat all three as unauthenticated but the
// distinction matters for logging and metrics.
func (i *Issuer) Validate(ctx context.Context, token string) (Identity, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrTokenMalformed
	}

	if claims.Subject == "" || claims.SessionID == "" {
		return Identity{}, ErrTokenMalformed
	}

	active, err := i.registry.IsActive(ctx, claims.SessionID)
	if err != nil {
		return Identity{}, fmt.Errorf("check session registry: %w", err)
	}
	if !active {
		return Identity{}, ErrSessionRevoked
	}

	return Identity{UserID: claims.Subject, SessionID: claims.SessionID}, nil
}
