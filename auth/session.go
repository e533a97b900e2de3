package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimsSchemaVersion is stamped into every issued token. Tokens carrying any
// other version (including none) fail verification, so claims issued under an
// older shape fail closed instead of partially deserializing.
const ClaimsSchemaVersion = 1

// SessionClaims is the decoded content of a session token. It carries enough
// for route-level authorization decisions without a directory round trip.
type SessionClaims struct {
	UserID        string `json:"uid"`
	Role          Role   `json:"role"`
	IsActive      bool   `json:"act"`
	Timezone      string `json:"tz,omitempty"`
	SchemaVersion int    `json:"sv"`
	jwt.RegisteredClaims
}

// SessionCodec issues and verifies stateless signed session tokens. Verify is
// pure and in-memory: it checks signature and expiry only, never the user
// directory. That keeps the per-request guard path off the database; the cost
// is a staleness window for role changes and deactivations, bounded by the
// refresh interval.
type SessionCodec struct {
	secret       []byte
	maxAge       time.Duration
	refreshAfter time.Duration
	issuer       string
	now          func() time.Time
}

// NewSessionCodec creates a session codec from the security policy. The
// signing key is process-wide and immutable after load.
func NewSessionCodec(policy *SecurityPolicy) (*SessionCodec, error) {
	if policy == nil {
		policy = DefaultSecurityPolicy()
	}
	if policy.SigningKey == "" {
		return nil, fmt.Errorf("session signing key is not configured")
	}
	return &SessionCodec{
		secret:       []byte(policy.SigningKey),
		maxAge:       policy.SessionMaxAge,
		refreshAfter: policy.SessionRefreshAfter,
		issuer:       "vitalog.app/auth",
		now:          time.Now,
	}, nil
}

// Issue creates a signed token for the principal and returns it together with
// its expiry time.
func (c *SessionCodec) Issue(principal *Principal) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(c.maxAge)

	claims := SessionClaims{
		UserID:        principal.ID,
		Role:          principal.Role,
		IsActive:      principal.IsActive,
		Timezone:      principal.Timezone,
		SchemaVersion: ClaimsSchemaVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    c.issuer,
			Subject:   principal.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature integrity, expiry, and claims schema version.
// Returns ErrExpiredToken for expired tokens and ErrInvalidToken for
// everything else; callers treat both identically to an absent token.
func (c *SessionCodec) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.SchemaVersion != ClaimsSchemaVersion {
		return nil, ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// NeedsRefresh reports whether the token is past the refresh window and its
// claims should be re-read from the directory on next use.
func (c *SessionCodec) NeedsRefresh(claims *SessionClaims) bool {
	if claims.IssuedAt == nil {
		return true
	}
	return c.now().Sub(claims.IssuedAt.Time) > c.refreshAfter
}
