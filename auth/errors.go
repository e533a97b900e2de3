package auth

import "errors"

// Authentication errors. Callers match these with errors.Is; the HTTP layer
// maps ErrInvalidCredentials and ErrAccountLocked to the same generic response
// so that lockout state and account existence are not observable from outside.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account is locked")
	ErrUnavailable        = errors.New("authentication service unavailable")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
	ErrInvalidUsername    = errors.New("invalid username format")
	ErrEmptyPassword      = errors.New("password cannot be empty")
)
