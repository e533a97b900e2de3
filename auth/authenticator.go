package auth

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Authenticator orchestrates credential verification: directory lookup,
// lockout checks, password verification, failure-counter bookkeeping, and
// audit emission. It is safe for concurrent use; all mutable state lives in
// the user directory.
type Authenticator struct {
	policy    *SecurityPolicy
	directory UserDirectory
	sink      AuditSink
	logger    *logrus.Logger
	now       func() time.Time
}

// NewAuthenticator creates an authenticator. The sink may be nil, in which
// case audit events are dropped (still never an error for the caller).
func NewAuthenticator(policy *SecurityPolicy, directory UserDirectory, sink AuditSink, logger *logrus.Logger) *Authenticator {
	if policy == nil {
		policy = DefaultSecurityPolicy()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Authenticator{
		policy:    policy,
		directory: directory,
		sink:      sink,
		logger:    logger,
		now:       time.Now,
	}
}

// Authenticate verifies a username/password pair and returns the authenticated
// principal or one of ErrInvalidCredentials, ErrAccountLocked, ErrUnavailable.
//
// The returned error never distinguishes "no such user" from "wrong password";
// that distinction exists only in the audit log. A deactivated account still
// authenticates successfully: proving identity and being allowed in are
// separate questions, and the authorization policy answers the second.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string, meta RequestMeta) (*Principal, error) {
	user, err := a.directory.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			a.audit(ctx, ActionLoginFailed, "", username, meta, map[string]interface{}{
				"reason": "user_not_found",
			})
			return nil, ErrInvalidCredentials
		}
		a.logger.WithError(err).Error("user directory lookup failed")
		return nil, ErrUnavailable
	}

	// Locked accounts are rejected before the password is touched. The
	// lockout state is not secret, so skipping the expensive derivation
	// here is not a timing leak.
	if user.Locked(a.now()) {
		a.audit(ctx, ActionLoginFailed, user.ID, username, meta, map[string]interface{}{
			"reason":       "account_locked",
			"locked_until": user.LockedUntil,
		})
		return nil, ErrAccountLocked
	}

	if !VerifyPassword(password, user.PasswordHash) {
		return nil, a.recordFailure(ctx, user, username, meta)
	}

	// Successful login: reset the counter, clear any expired lockout, and
	// stamp the login time. Persistence failures are logged but do not turn
	// a correct password into an authentication error.
	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := a.directory.ResetFailedLogins(ctx, user.ID); err != nil {
			a.logger.WithError(err).WithField("user_id", user.ID).Error("failed to reset login counter")
		}
		if user.LockedUntil != nil {
			if err := a.directory.ClearLockout(ctx, user.ID); err != nil {
				a.logger.WithError(err).WithField("user_id", user.ID).Error("failed to clear lockout")
			}
		}
	}
	if err := a.directory.UpdateLastLogin(ctx, user.ID, a.now()); err != nil {
		a.logger.WithError(err).WithField("user_id", user.ID).Error("failed to update last login")
	}

	a.audit(ctx, ActionLoginSuccess, user.ID, username, meta, nil)

	return user.Principal(), nil
}

// recordFailure increments the failure counter, locks the account when the
// configured maximum is reached, and emits the matching audit event. The
// caller-visible result is always ErrInvalidCredentials, including for the
// attempt that triggers the lock; only the next attempt sees ErrAccountLocked.
func (a *Authenticator) recordFailure(ctx context.Context, user *User, username string, meta RequestMeta) error {
	count, err := a.directory.IncrementFailedLogins(ctx, user.ID)
	if err != nil {
		a.logger.WithError(err).WithField("user_id", user.ID).Error("failed to increment login counter")
		count = user.FailedLoginAttempts + 1
	}

	if count >= a.policy.MaxFailedAttempts {
		until := a.now().Add(a.policy.LockoutDuration)
		if err := a.directory.SetLockout(ctx, user.ID, until); err != nil {
			a.logger.WithError(err).WithField("user_id", user.ID).Error("failed to set lockout")
		}
		a.audit(ctx, ActionAccountLocked, user.ID, username, meta, map[string]interface{}{
			"failed_attempts": count,
			"locked_until":    until,
		})
		return ErrInvalidCredentials
	}

	a.audit(ctx, ActionLoginFailed, user.ID, username, meta, map[string]interface{}{
		"reason":          "invalid_password",
		"failed_attempts": count,
	})
	return ErrInvalidCredentials
}

// Logout records the logout event. Session invalidation itself happens on the
// client by clearing the cookie; there is no server-side revocation list.
func (a *Authenticator) Logout(ctx context.Context, userID string, meta RequestMeta) {
	a.audit(ctx, ActionLogout, userID, "", meta, nil)
}

// audit records an event best-effort. Sink failures are logged locally and
// never propagate; this is the single place where they are swallowed.
func (a *Authenticator) audit(ctx context.Context, action AuditAction, userID, resource string, meta RequestMeta, details map[string]interface{}) {
	if a.sink == nil {
		return
	}
	event := NewAuditEvent(action, userID, resource, meta, details)
	if err := a.sink.Record(ctx, event); err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"action":  action,
			"user_id": userID,
		}).Warn("audit sink write failed")
	}
}
