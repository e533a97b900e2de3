// Package api provides the HTTP surface of the authentication core: the auth
// endpoints, the session-extraction middleware, and the route-protection
// middleware that evaluates the authorization policy on every request.
package api

import (
	"github.com/labstack/echo/v4"

	"vitalog.app/auth"
)

// Context keys for storing authentication data
const (
	contextKeyClaims = "session_claims"

	// contextKeyToken is where the echo-jwt middleware parks the verified
	// token before SetClaims runs.
	contextKeyToken = "session_token"
)

// SetClaims stores verified session claims in the Echo context. Called by the
// session middleware after token verification; handlers and the policy
// middleware read them back with GetClaims.
func SetClaims(c echo.Context, claims *auth.SessionClaims) {
	c.Set(contextKeyClaims, claims)
}

// GetClaims retrieves verified session claims from the Echo context. Returns
// nil and false when the request carried no valid token; callers treat that
// as anonymous.
func GetClaims(c echo.Context) (*auth.SessionClaims, bool) {
	claims, ok := c.Get(contextKeyClaims).(*auth.SessionClaims)
	return claims, ok && claims != nil
}

// CurrentUserID returns the authenticated user ID, or "" for anonymous
// requests.
func CurrentUserID(c echo.Context) string {
	if claims, ok := GetClaims(c); ok {
		return claims.UserID
	}
	return ""
}

// RequestMeta extracts the client attributes recorded with audit events.
func RequestMeta(c echo.Context) auth.RequestMeta {
	return auth.RequestMeta{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}
