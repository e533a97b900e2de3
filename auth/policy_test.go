package auth

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func claimsFor(role Role, active bool) *SessionClaims {
	return &SessionClaims{
		UserID:        "user-1",
		Role:          role,
		IsActive:      active,
		SchemaVersion: ClaimsSchemaVersion,
	}
}

func TestStateFromClaims(t *testing.T) {
	tests := []struct {
		name   string
		claims *SessionClaims
		want   AccessState
	}{
		{"nil claims", nil, StateAnonymous},
		{"pending", claimsFor(RolePending, false), StatePending},
		{"pending marked active", claimsFor(RolePending, true), StatePending},
		{"inactive user", claimsFor(RoleUser, false), StateInactiveUser},
		{"active user", claimsFor(RoleUser, true), StateActiveUser},
		{"inactive admin", claimsFor(RoleAdmin, false), StateInactiveUser},
		{"active admin", claimsFor(RoleAdmin, true), StateActiveAdmin},
		{"unknown role fails closed", claimsFor(Role("root"), true), StateAnonymous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StateFromClaims(tt.claims))
		})
	}
}

func TestClassify(t *testing.T) {
	routes := NewRoutePolicy(nil)

	tests := []struct {
		path string
		want PathClass
	}{
		{"/login", PathPublic},
		{"/register", PathPublic},
		{"/healthz", PathPublic},
		{"/static/app.css", PathPublic},
		{"/favicon.ico", PathPublic},
		{"/auth/login", PathPublic},
		{"/auth/session", PathPublic},
		{"/pending", PathPendingPage},
		{"/admin", PathAdminOnly},
		{"/admin/users", PathAdminOnly},
		{"/api/admin/users/u1/activate", PathAdminOnly},
		{"/dashboard", PathProtected},
		{"/api/entries", PathProtected},
		{"/", PathProtected},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, routes.Classify(tt.path))
		})
	}
}

func TestIsAPIRequest(t *testing.T) {
	routes := NewRoutePolicy(nil)

	assert.True(t, routes.IsAPIRequest("/api/entries"))
	assert.True(t, routes.IsAPIRequest("/api/admin/users/u1/role"))
	assert.True(t, routes.IsAPIRequest("/auth/login"))
	assert.False(t, routes.IsAPIRequest("/dashboard"))
	assert.False(t, routes.IsAPIRequest("/login"))
	assert.False(t, routes.IsAPIRequest("/pending"))
}

func TestAuthorizeDecisionTable(t *testing.T) {
	routes := NewRoutePolicy(nil)

	anonymous := (*SessionClaims)(nil)
	pending := claimsFor(RolePending, false)
	inactive := claimsFor(RoleUser, false)
	user := claimsFor(RoleUser, true)
	admin := claimsFor(RoleAdmin, true)

	tests := []struct {
		name   string
		claims *SessionClaims
		path   string
		want   Decision
	}{
		// Public pages: authenticated users are steered home.
		{"anonymous public page", anonymous, "/login", Decision{Outcome: Allow}},
		{"pending public page", pending, "/login", Decision{Outcome: Redirect, Location: "/dashboard"}},
		{"user public page", user, "/login", Decision{Outcome: Redirect, Location: "/dashboard"}},
		{"admin public page", admin, "/register", Decision{Outcome: Redirect, Location: "/dashboard"}},

		// Public API endpoints stay reachable with a session (logout, refresh).
		{"anonymous auth api", anonymous, "/auth/login", Decision{Outcome: Allow}},
		{"user auth api", user, "/auth/logout", Decision{Outcome: Allow}},
		{"pending auth api", pending, "/auth/session", Decision{Outcome: Allow}},

		// Pending page.
		{"anonymous pending page", anonymous, "/pending", Decision{Outcome: Redirect, Location: "/login"}},
		{"pending pending page", pending, "/pending", Decision{Outcome: Allow}},
		{"inactive pending page", inactive, "/pending", Decision{Outcome: Redirect, Location: "/login"}},
		{"user pending page", user, "/pending", Decision{Outcome: Redirect, Location: "/dashboard"}},
		{"admin pending page", admin, "/pending", Decision{Outcome: Redirect, Location: "/dashboard"}},

		// Admin area, page shape.
		{"anonymous admin page", anonymous, "/admin/users", Decision{Outcome: Redirect, Location: "/login"}},
		{"pending admin page", pending, "/admin/users", Decision{Outcome: Redirect, Location: "/pending"}},
		{"inactive admin page", inactive, "/admin/users", Decision{Outcome: Redirect, Location: "/login"}},
		{"user admin page", user, "/admin/users", Decision{Outcome: Redirect, Location: "/dashboard"}},
		{"admin admin page", admin, "/admin/users", Decision{Outcome: Allow}},

		// Admin API shape.
		{"anonymous admin api", anonymous, "/api/admin/users/u1/role", Decision{Outcome: Deny, Status: http.StatusUnauthorized}},
		{"pending admin api", pending, "/api/admin/users/u1/role", Decision{Outcome: Redirect, Location: "/pending"}},
		{"inactive admin api", inactive, "/api/admin/users/u1/role", Decision{Outcome: Deny, Status: http.StatusForbidden}},
		{"user admin api", user, "/api/admin/users/u1/role", Decision{Outcome: Deny, Status: http.StatusForbidden}},
		{"admin admin api", admin, "/api/admin/users/u1/role", Decision{Outcome: Allow}},

		// Protected pages.
		{"anonymous protected page", anonymous, "/dashboard", Decision{Outcome: Redirect, Location: "/login"}},
		{"pending protected page", pending, "/dashboard", Decision{Outcome: Redirect, Location: "/pending"}},
		{"inactive protected page", inactive, "/dashboard", Decision{Outcome: Redirect, Location: "/login"}},
		{"user protected page", user, "/dashboard", Decision{Outcome: Allow}},
		{"admin protected page", admin, "/dashboard", Decision{Outcome: Allow}},

		// Protected API.
		{"anonymous protected api", anonymous, "/api/entries", Decision{Outcome: Deny, Status: http.StatusUnauthorized}},
		{"pending protected api", pending, "/api/entries", Decision{Outcome: Redirect, Location: "/pending"}},
		{"inactive protected api", inactive, "/api/entries", Decision{Outcome: Deny, Status: http.StatusForbidden}},
		{"user protected api", user, "/api/entries", Decision{Outcome: Allow}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := routes.Authorize(tt.claims, tt.path, routes.IsAPIRequest(tt.path))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthorizeUnknownRoleIsAnonymous(t *testing.T) {
	routes := NewRoutePolicy(nil)

	// A forged role in otherwise valid claims gets the anonymous treatment.
	got := routes.Authorize(claimsFor(Role("root"), true), "/api/entries", true)
	assert.Equal(t, Decision{Outcome: Deny, Status: http.StatusUnauthorized}, got)
}

func TestRoutePolicyCustomPaths(t *testing.T) {
	policy := DefaultSecurityPolicy()
	policy.LoginPath = "/signin"
	policy.HomePath = "/home"
	policy.PendingPath = "/waiting"
	routes := NewRoutePolicy(policy)

	assert.Equal(t, PathPublic, routes.Classify("/signin"))
	assert.Equal(t, PathPendingPage, routes.Classify("/waiting"))

	got := routes.Authorize(nil, "/home", false)
	assert.Equal(t, Decision{Outcome: Redirect, Location: "/signin"}, got)
}
