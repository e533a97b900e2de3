package auth

import "time"

// SecurityPolicy holds every tunable of the authentication core. It is built
// once at startup (from defaults, config file, and environment) and passed
// into the constructors; nothing in this package reads ambient state at call
// time.
type SecurityPolicy struct {
	// Password hashing
	PBKDF2Iterations int

	// Account locking
	MaxFailedAttempts int
	LockoutDuration   time.Duration

	// Sessions
	SigningKey          string
	SessionMaxAge       time.Duration
	SessionRefreshAfter time.Duration

	// Cookie transport
	CookieName   string
	CookieSecure bool

	// Route targets used by the authorization policy
	LoginPath   string
	HomePath    string
	PendingPath string
}

// DefaultSecurityPolicy returns the built-in defaults. The signing key has no
// default and must come from configuration.
func DefaultSecurityPolicy() *SecurityPolicy {
	return &SecurityPolicy{
		PBKDF2Iterations:    DefaultIterations,
		MaxFailedAttempts:   5,
		LockoutDuration:     15 * time.Minute,
		SessionMaxAge:       30 * 24 * time.Hour,
		SessionRefreshAfter: 24 * time.Hour,
		CookieName:          "vitalog_session",
		CookieSecure:        true,
		LoginPath:           "/login",
		HomePath:            "/dashboard",
		PendingPath:         "/pending",
	}
}
