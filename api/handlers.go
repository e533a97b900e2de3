package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"vitalog.app/auth"
)

// genericLoginError is the single message for every authentication failure.
// Locked accounts and unknown usernames answer identically to wrong
// passwords, so neither account existence nor lockout state leaks.
const genericLoginError = "invalid username or password"

// Handlers bundles the auth endpoints and their collaborators.
type Handlers struct {
	Authenticator *auth.Authenticator
	Codec         *auth.SessionCodec
	Directory     auth.UserDirectory
	Policy        *auth.SecurityPolicy
	Logger        *logrus.Logger
}

// LoginRequest is the credential payload for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse confirms a successful login. The token itself travels only in
// the cookie.
type LoginResponse struct {
	UserID    string    `json:"user_id"`
	Role      auth.Role `json:"role"`
	IsActive  bool      `json:"is_active"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionResponse summarizes the verified claims for GET /auth/session.
type SessionResponse struct {
	UserID       string    `json:"user_id"`
	Role         auth.Role `json:"role"`
	IsActive     bool      `json:"is_active"`
	Timezone     string    `json:"timezone,omitempty"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	NeedsRefresh bool      `json:"needs_refresh"`
}

// Login authenticates credentials and issues the session cookie.
func (h *Handlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	// Missing credentials are a client-input error: no directory access and
	// no audit write, since no attempt was made against a real account.
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "username and password are required"})
	}

	principal, err := h.Authenticator.Authenticate(c.Request().Context(), req.Username, req.Password, RequestMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrAccountLocked):
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": genericLoginError})
		case errors.Is(err, auth.ErrUnavailable):
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "service unavailable, try again"})
		default:
			h.Logger.WithError(err).Error("unexpected authentication error")
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
	}

	token, expiresAt, err := h.Codec.Issue(principal)
	if err != nil {
		h.Logger.WithError(err).Error("failed to issue session token")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	c.SetCookie(h.sessionCookie(token, expiresAt))

	return c.JSON(http.StatusOK, LoginResponse{
		UserID:    principal.ID,
		Role:      principal.Role,
		IsActive:  principal.IsActive,
		ExpiresAt: expiresAt,
	})
}

// Logout clears the session cookie and records the logout event. It succeeds
// for anonymous callers too; clearing an absent cookie is harmless.
func (h *Handlers) Logout(c echo.Context) error {
	if claims, ok := GetClaims(c); ok {
		h.Authenticator.Logout(c.Request().Context(), claims.UserID, RequestMeta(c))
	}

	c.SetCookie(h.expiredCookie())
	return c.NoContent(http.StatusNoContent)
}

// Session reports the verified claims of the current session.
func (h *Handlers) Session(c echo.Context) error {
	claims, ok := GetClaims(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no active session")
	}

	return c.JSON(http.StatusOK, SessionResponse{
		UserID:       claims.UserID,
		Role:         claims.Role,
		IsActive:     claims.IsActive,
		Timezone:     claims.Timezone,
		IssuedAt:     claims.IssuedAt.Time,
		ExpiresAt:    claims.ExpiresAt.Time,
		NeedsRefresh: h.Codec.NeedsRefresh(claims),
	})
}

// RefreshSession re-reads the user from the directory and issues a fresh
// token. This is the only place where session claims are reconciled with the
// source of truth: role changes and deactivations take effect here, or when
// the token expires, whichever comes first.
func (h *Handlers) RefreshSession(c echo.Context) error {
	claims, ok := GetClaims(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no active session")
	}

	user, err := h.Directory.GetUser(c.Request().Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			c.SetCookie(h.expiredCookie())
			return echo.NewHTTPError(http.StatusUnauthorized, "session no longer valid")
		}
		h.Logger.WithError(err).Error("directory lookup failed during session refresh")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service unavailable")
	}

	token, expiresAt, err := h.Codec.Issue(user.Principal())
	if err != nil {
		h.Logger.WithError(err).Error("failed to reissue session token")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	c.SetCookie(h.sessionCookie(token, expiresAt))

	return c.JSON(http.StatusOK, LoginResponse{
		UserID:    user.ID,
		Role:      user.Role,
		IsActive:  user.IsActive,
		ExpiresAt: expiresAt,
	})
}

// ActivateUser provisions a pending account: role becomes User and the
// account is activated. Mounted under the admin-only path class; existing
// sessions of the activated user pick the change up on refresh or expiry.
func (h *Handlers) ActivateUser(c echo.Context) error {
	user, err := h.Directory.GetUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service unavailable")
	}

	if user.Role == auth.RolePending {
		user.Role = auth.RoleUser
	}
	user.IsActive = true

	if err := h.Directory.UpdateUser(c.Request().Context(), user); err != nil {
		h.Logger.WithError(err).Error("failed to activate user")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service unavailable")
	}

	h.Logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"admin_id": CurrentUserID(c),
	}).Info("user activated")

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id":   user.ID,
		"role":      user.Role,
		"is_active": user.IsActive,
	})
}

// RoleRequest is the payload for PUT /api/admin/users/:id/role.
type RoleRequest struct {
	Role auth.Role `json:"role"`
}

// ChangeRole updates a user's role. Demoting to Pending also deactivates the
// account, preserving the pending-implies-inactive invariant.
func (h *Handlers) ChangeRole(c echo.Context) error {
	var req RoleRequest
	if err := c.Bind(&req); err != nil || !req.Role.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid role")
	}

	user, err := h.Directory.GetUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service unavailable")
	}

	user.Role = req.Role
	if req.Role == auth.RolePending {
		user.IsActive = false
	}

	if err := h.Directory.UpdateUser(c.Request().Context(), user); err != nil {
		h.Logger.WithError(err).Error("failed to change role")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service unavailable")
	}

	h.Logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"role":     user.Role,
		"admin_id": CurrentUserID(c),
	}).Info("user role changed")

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id":   user.ID,
		"role":      user.Role,
		"is_active": user.IsActive,
	})
}

// sessionCookie builds the session transport cookie: httpOnly, SameSite=Lax,
// scoped to /, Secure per policy.
func (h *Handlers) sessionCookie(token string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     h.Policy.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.Policy.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *Handlers) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     h.Policy.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Policy.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
