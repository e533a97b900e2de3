package auth

import (
	"context"
	"time"
)

// UserDirectory defines the interface for user persistence. The authenticator
// depends on it for lookups and lockout bookkeeping; the admin surface uses
// the CRUD methods.
//
// IncrementFailedLogins must be an atomic read-modify-write: concurrent wrong
// password attempts for one account must never lose an update, or parallel
// requests could exceed the lockout threshold.
type UserDirectory interface {
	// CreateUser creates a new user.
	// Returns ErrUserExists if the username is taken.
	CreateUser(ctx context.Context, user *User) error

	// GetUser retrieves a user by ID.
	// Returns ErrUserNotFound if the user doesn't exist.
	GetUser(ctx context.Context, id string) (*User, error)

	// FindByUsername retrieves a user by username (case-sensitive).
	// Returns ErrUserNotFound if the user doesn't exist.
	FindByUsername(ctx context.Context, username string) (*User, error)

	// UpdateUser persists changes to role, active flag, and profile fields.
	// Returns ErrUserNotFound if the user doesn't exist.
	UpdateUser(ctx context.Context, user *User) error

	// IncrementFailedLogins atomically increments the failure counter and
	// returns the new count.
	IncrementFailedLogins(ctx context.Context, userID string) (int, error)

	// ResetFailedLogins atomically resets the failure counter to zero.
	ResetFailedLogins(ctx context.Context, userID string) error

	// SetLockout marks the account locked until the given time.
	SetLockout(ctx context.Context, userID string, until time.Time) error

	// ClearLockout removes the lockout mark.
	ClearLockout(ctx context.Context, userID string) error

	// UpdateLastLogin records the time of the latest successful login.
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}
