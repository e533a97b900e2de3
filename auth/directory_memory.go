package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryDirectory is an in-memory UserDirectory used in tests and throwaway
// environments. All methods take the same mutex, which gives the counter
// updates the required read-modify-write atomicity.
type MemoryDirectory struct {
	mu      sync.Mutex
	byID    map[string]*User
	byName  map[string]string
	failGet error
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byID:   make(map[string]*User),
		byName: make(map[string]string),
	}
}

// FailLookups makes FindByUsername and GetUser return the given error,
// simulating an unreachable directory.
func (d *MemoryDirectory) FailLookups(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failGet = err
}

// CreateUser creates a new user.
func (d *MemoryDirectory) CreateUser(_ context.Context, user *User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byName[user.Username]; ok {
		return ErrUserExists
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	clone := *user
	d.byID[user.ID] = &clone
	d.byName[user.Username] = user.ID
	return nil
}

// GetUser retrieves a user by ID.
func (d *MemoryDirectory) GetUser(_ context.Context, id string) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failGet != nil {
		return nil, d.failGet
	}
	user, ok := d.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

// FindByUsername retrieves a user by username.
func (d *MemoryDirectory) FindByUsername(_ context.Context, username string) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failGet != nil {
		return nil, d.failGet
	}
	id, ok := d.byName[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *d.byID[id]
	return &clone, nil
}

// UpdateUser persists field changes.
func (d *MemoryDirectory) UpdateUser(_ context.Context, user *User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	stored, ok := d.byID[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	user.UpdatedAt = time.Now()
	clone := *user
	clone.FailedLoginAttempts = stored.FailedLoginAttempts
	clone.LockedUntil = stored.LockedUntil
	d.byID[user.ID] = &clone
	return nil
}

// IncrementFailedLogins atomically increments the failure counter.
func (d *MemoryDirectory) IncrementFailedLogins(_ context.Context, userID string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.byID[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	user.FailedLoginAttempts++
	return user.FailedLoginAttempts, nil
}

// ResetFailedLogins resets the failure counter to zero.
func (d *MemoryDirectory) ResetFailedLogins(_ context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.FailedLoginAttempts = 0
	return nil
}

// SetLockout marks the account locked until the given time.
func (d *MemoryDirectory) SetLockout(_ context.Context, userID string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.LockedUntil = &until
	return nil
}

// ClearLockout removes the lockout mark.
func (d *MemoryDirectory) ClearLockout(_ context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.LockedUntil = nil
	return nil
}

// UpdateLastLogin records the latest successful login time.
func (d *MemoryDirectory) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.LastLoginAt = &at
	return nil
}
