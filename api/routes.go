package api

import (
	"github.com/labstack/echo/v4"

	"vitalog.app/auth"
	vhttp "vitalog.app/http"
	"vitalog.app/version"
)

// SetupRoutes mounts the auth surface and the perimeter middleware. The
// session and policy middleware run on every route; the policy classifies
// paths itself, so new application routes are protected by default.
func SetupRoutes(e *echo.Echo, h *Handlers, routes *auth.RoutePolicy, loginRateLimit float64) {
	e.Use(SessionMiddleware(h.Codec, h.Policy.CookieName))
	e.Use(PolicyMiddleware(routes))

	e.GET("/healthz", vhttp.HealthCheckHandler("vitalog-auth", version.Get()))

	authGroup := e.Group("/auth")
	if loginRateLimit > 0 {
		authGroup.POST("/login", h.Login, vhttp.LoginRateLimiter(loginRateLimit))
	} else {
		authGroup.POST("/login", h.Login)
	}
	authGroup.POST("/logout", h.Logout)
	authGroup.GET("/session", h.Session)
	authGroup.POST("/session/refresh", h.RefreshSession)

	// Admin-only by path class; the policy middleware enforces it.
	admin := e.Group("/api/admin")
	admin.POST("/users/:id/activate", h.ActivateUser)
	admin.PUT("/users/:id/role", h.ChangeRole)
}
