package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"vitalog.app/db/bolt"
)

const (
	usersBucket     = "users"     // id -> user JSON
	usernamesBucket = "usernames" // username -> id
)

// BoltDirectory implements UserDirectory on an embedded bbolt file for
// single-node installs. bbolt serializes update transactions, so the
// read-modify-write counter updates are atomic without extra locking.
type BoltDirectory struct {
	db *bolt.DB
}

// NewBoltDirectory creates a bbolt-backed user directory and its buckets.
func NewBoltDirectory(db *bolt.DB) (*BoltDirectory, error) {
	for _, name := range []string{usersBucket, usernamesBucket} {
		if err := db.CreateBucket(name); err != nil {
			return nil, err
		}
	}
	return &BoltDirectory{db: db}, nil
}

// CreateUser creates a new user and the username index entry in one
// transaction.
func (d *BoltDirectory) CreateUser(ctx context.Context, user *User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	return d.db.Update(func(tx *bbolt.Tx) error {
		names := tx.Bucket([]byte(usernamesBucket))
		if names.Get([]byte(user.Username)) != nil {
			return ErrUserExists
		}
		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}
		if err := tx.Bucket([]byte(usersBucket)).Put([]byte(user.ID), data); err != nil {
			return err
		}
		return names.Put([]byte(user.Username), []byte(user.ID))
	})
}

// GetUser retrieves a user by ID.
func (d *BoltDirectory) GetUser(ctx context.Context, id string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var user User
	if err := d.db.GetJSON(usersBucket, id, &user); err != nil {
		if err == bolt.ErrKeyNotFound {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// FindByUsername retrieves a user by username via the index bucket.
func (d *BoltDirectory) FindByUsername(ctx context.Context, username string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var user User
	err := d.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket([]byte(usernamesBucket)).Get([]byte(username))
		if id == nil {
			return ErrUserNotFound
		}
		data := tx.Bucket([]byte(usersBucket)).Get(id)
		if data == nil {
			return ErrUserNotFound
		}
		return json.Unmarshal(data, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser persists role, active flag, and profile changes. Lockout fields
// are carried over from the stored record so a concurrent login attempt's
// bookkeeping is not overwritten.
func (d *BoltDirectory) UpdateUser(ctx context.Context, user *User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.mutate(user.ID, func(stored *User) {
		stored.Username = user.Username
		stored.PasswordHash = user.PasswordHash
		stored.Role = user.Role
		stored.IsActive = user.IsActive
		stored.Timezone = user.Timezone
	})
}

// IncrementFailedLogins atomically increments the failure counter.
func (d *BoltDirectory) IncrementFailedLogins(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var count int
	err := d.mutate(userID, func(stored *User) {
		stored.FailedLoginAttempts++
		count = stored.FailedLoginAttempts
	})
	return count, err
}

// ResetFailedLogins resets the failure counter to zero.
func (d *BoltDirectory) ResetFailedLogins(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.mutate(userID, func(stored *User) {
		stored.FailedLoginAttempts = 0
	})
}

// SetLockout marks the account locked until the given time.
func (d *BoltDirectory) SetLockout(ctx context.Context, userID string, until time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.mutate(userID, func(stored *User) {
		stored.LockedUntil = &until
	})
}

// ClearLockout removes the lockout mark.
func (d *BoltDirectory) ClearLockout(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.mutate(userID, func(stored *User) {
		stored.LockedUntil = nil
	})
}

// UpdateLastLogin records the latest successful login time.
func (d *BoltDirectory) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.mutate(userID, func(stored *User) {
		stored.LastLoginAt = &at
	})
}

// mutate applies fn to the stored user inside a single update transaction.
func (d *BoltDirectory) mutate(userID string, fn func(*User)) error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(usersBucket))
		data := b.Get([]byte(userID))
		if data == nil {
			return ErrUserNotFound
		}
		var user User
		if err := json.Unmarshal(data, &user); err != nil {
			return fmt.Errorf("failed to unmarshal user: %w", err)
		}
		fn(&user)
		user.UpdatedAt = time.Now()
		updated, err := json.Marshal(&user)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}
		return b.Put([]byte(userID), updated)
	})
}
