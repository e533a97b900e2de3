package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PostgresDirectory implements UserDirectory on a relational store. The
// failure-counter update is a single conditional UPDATE with RETURNING, so
// concurrent wrong-password attempts cannot lose increments.
type PostgresDirectory struct {
	db *gorm.DB
}

// NewPostgresDirectory creates a postgres-backed user directory and runs the
// schema migration for the users table.
func NewPostgresDirectory(gdb *gorm.DB) (*PostgresDirectory, error) {
	if err := gdb.AutoMigrate(&User{}); err != nil {
		return nil, fmt.Errorf("failed to migrate users table: %w", err)
	}
	return &PostgresDirectory{db: gdb}, nil
}

// CreateUser creates a new user.
func (d *PostgresDirectory) CreateUser(ctx context.Context, user *User) error {
	err := d.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (d *PostgresDirectory) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	err := d.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// FindByUsername retrieves a user by username. The column has a unique index
// and the comparison is case-sensitive.
func (d *PostgresDirectory) FindByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := d.db.WithContext(ctx).First(&user, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// UpdateUser persists role, active flag, and profile changes. The lockout
// columns are managed by their dedicated methods and left untouched here.
func (d *PostgresDirectory) UpdateUser(ctx context.Context, user *User) error {
	res := d.db.WithContext(ctx).Model(&User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"username":      user.Username,
		"password_hash": user.PasswordHash,
		"role":          user.Role,
		"is_active":     user.IsActive,
		"timezone":      user.Timezone,
		"updated_at":    time.Now(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// IncrementFailedLogins atomically increments the failure counter and returns
// the new count.
func (d *PostgresDirectory) IncrementFailedLogins(ctx context.Context, userID string) (int, error) {
	var count int
	res := d.db.WithContext(ctx).Raw(
		`UPDATE users
		    SET failed_login_attempts = failed_login_attempts + 1,
		        updated_at = ?
		  WHERE id = ?
		  RETURNING failed_login_attempts`,
		time.Now(), userID,
	).Scan(&count)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to increment login counter: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, ErrUserNotFound
	}
	return count, nil
}

// ResetFailedLogins resets the failure counter to zero.
func (d *PostgresDirectory) ResetFailedLogins(ctx context.Context, userID string) error {
	return d.updateColumns(ctx, userID, map[string]interface{}{
		"failed_login_attempts": 0,
	})
}

// SetLockout marks the account locked until the given time.
func (d *PostgresDirectory) SetLockout(ctx context.Context, userID string, until time.Time) error {
	return d.updateColumns(ctx, userID, map[string]interface{}{
		"locked_until": until,
	})
}

// ClearLockout removes the lockout mark.
func (d *PostgresDirectory) ClearLockout(ctx context.Context, userID string) error {
	return d.updateColumns(ctx, userID, map[string]interface{}{
		"locked_until": nil,
	})
}

// UpdateLastLogin records the latest successful login time.
func (d *PostgresDirectory) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	return d.updateColumns(ctx, userID, map[string]interface{}{
		"last_login_at": at,
	})
}

func (d *PostgresDirectory) updateColumns(ctx context.Context, userID string, cols map[string]interface{}) error {
	cols["updated_at"] = time.Now()
	res := d.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("failed to update user columns: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
