package auth

import "time"

// Role is the provisioning state of an account. Roles are ordered for coarse
// privilege checks (Pending < User < Admin), but Pending is a distinct
// "not yet provisioned" state rather than a less privileged User: a pending
// account has never been activated and is routed to the pending page only.
type Role string

// Standard roles
const (
	RolePending Role = "pending"
	RoleUser    Role = "user"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePending, RoleUser, RoleAdmin:
		return true
	}
	return false
}

// Level returns the privilege order of the role (-1 for unknown roles).
func (r Role) Level() int {
	switch r {
	case RolePending:
		return 0
	case RoleUser:
		return 1
	case RoleAdmin:
		return 2
	}
	return -1
}

// User represents an account record as stored by the user directory.
// The authenticator only reads and mutates the credential and lockout fields;
// everything else belongs to the surrounding application.
type User struct {
	// Identity fields
	ID       string `json:"id" gorm:"primaryKey;size:36"`
	Username string `json:"username" gorm:"uniqueIndex;size:50;not null"` // unique, case-sensitive

	// Authentication fields. PasswordHash is the self-describing
	// PBKDF2:ITERATIONS:SALT_B64:HASH_B64 encoding produced by HashPassword.
	PasswordHash string `json:"password_hash" gorm:"not null"`
	Role         Role   `json:"role" gorm:"size:16;not null;default:pending"`
	IsActive     bool   `json:"is_active" gorm:"not null;default:false"`

	// Lockout bookkeeping
	FailedLoginAttempts int        `json:"failed_login_attempts" gorm:"not null;default:0"`
	LockedUntil         *time.Time `json:"locked_until,omitempty"`

	// Profile fields carried into the session for rendering
	Timezone string `json:"timezone,omitempty" gorm:"size:64"`

	// Metadata
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Locked reports whether the account is locked out at the given instant.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// Principal is the verified identity produced by a successful authentication.
// It carries only what the session codec needs; the full user record stays in
// the directory.
type Principal struct {
	ID       string `json:"id"`
	Role     Role   `json:"role"`
	IsActive bool   `json:"is_active"`
	Timezone string `json:"timezone,omitempty"`
}

// Principal returns the authenticated-principal view of the user.
func (u *User) Principal() *Principal {
	return &Principal{
		ID:       u.ID,
		Role:     u.Role,
		IsActive: u.IsActive,
		Timezone: u.Timezone,
	}
}

// RequestMeta carries the client attributes recorded with audit events.
type RequestMeta struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}
