package api

import (
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"vitalog.app/auth"
)

// SessionMiddleware extracts and verifies the session token from the cookie.
// Verification is pure and in-memory (signature, expiry, schema version);
// this path runs on every request and must never hit the user directory.
//
// A missing, expired, or tampered token does not fail the request: the chain
// continues without claims, so the downstream policy sees the request as
// anonymous. Responding differently to a bad token than to no token would let
// an attacker probe token validity.
func SessionMiddleware(codec *auth.SessionCodec, cookieName string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  contextKeyToken,
		TokenLookup: "cookie:" + cookieName,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return codec.Verify(token)
		},
		SuccessHandler: func(c echo.Context) {
			if claims, ok := c.Get(contextKeyToken).(*auth.SessionClaims); ok {
				SetClaims(c, claims)
			}
		},
		ErrorHandler: func(c echo.Context, err error) error {
			// Anonymous fall-through for absent and invalid tokens alike.
			return nil
		},
		ContinueOnIgnoredError: true,
	})
}

// PolicyMiddleware evaluates the authorization decision table on every
// request. Allow continues the chain; Redirect and Deny short-circuit.
func PolicyMiddleware(routes *auth.RoutePolicy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, _ := GetClaims(c)
			path := c.Request().URL.Path
			decision := routes.Authorize(claims, path, routes.IsAPIRequest(path))

			switch decision.Outcome {
			case auth.Allow:
				return next(c)
			case auth.Redirect:
				return c.Redirect(http.StatusFound, decision.Location)
			default:
				return echo.NewHTTPError(decision.Status, http.StatusText(decision.Status))
			}
		}
	}
}
