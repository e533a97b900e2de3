package auth

import (
	"net/http"
	"strings"
)

// AccessState is the perimeter view of a request's identity, derived purely
// from verified session claims. An unparseable or expired token is never a
// distinct state: it collapses to StateAnonymous so a tampered token is
// indistinguishable from an absent one.
type AccessState int

const (
	StateAnonymous AccessState = iota
	StatePending
	StateInactiveUser
	StateActiveUser
	StateActiveAdmin
)

// String returns the state name for logging.
func (s AccessState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StatePending:
		return "pending"
	case StateInactiveUser:
		return "inactive"
	case StateActiveUser:
		return "user"
	case StateActiveAdmin:
		return "admin"
	}
	return "unknown"
}

// StateFromClaims derives the access state from verified claims, or
// StateAnonymous when claims is nil. Unknown roles fail closed to anonymous.
func StateFromClaims(claims *SessionClaims) AccessState {
	if claims == nil {
		return StateAnonymous
	}
	switch claims.Role {
	case RolePending:
		return StatePending
	case RoleUser, RoleAdmin:
		if !claims.IsActive {
			return StateInactiveUser
		}
		if claims.Role == RoleAdmin {
			return StateActiveAdmin
		}
		return StateActiveUser
	}
	return StateAnonymous
}

// PathClass groups requested paths for the decision table.
type PathClass int

const (
	// PathPublic covers login, registration, health, static assets, and the
	// auth endpoints themselves.
	PathPublic PathClass = iota
	// PathPendingPage is the waiting page for not-yet-provisioned accounts.
	PathPendingPage
	// PathAdminOnly covers the admin area and admin API.
	PathAdminOnly
	// PathProtected is everything else: the application content.
	PathProtected
)

// Outcome is the kind of authorization decision.
type Outcome int

const (
	Allow Outcome = iota
	Redirect
	Deny
)

// Decision is a first-class authorization outcome, never an error. Location
// is set for Redirect; Status (401 or 403) is set for Deny.
type Decision struct {
	Outcome  Outcome
	Location string
	Status   int
}

func allow() Decision             { return Decision{Outcome: Allow} }
func redirect(to string) Decision { return Decision{Outcome: Redirect, Location: to} }
func deny(status int) Decision    { return Decision{Outcome: Deny, Status: status} }

// RoutePolicy classifies request paths and evaluates the access decision
// table. It is pure and needs no directory access, so it can run on every
// request at the routing perimeter.
type RoutePolicy struct {
	policy *SecurityPolicy

	publicPrefixes []string
	adminPrefixes  []string
	apiPrefixes    []string
}

// NewRoutePolicy creates the route policy for the application's path layout.
func NewRoutePolicy(policy *SecurityPolicy) *RoutePolicy {
	if policy == nil {
		policy = DefaultSecurityPolicy()
	}
	return &RoutePolicy{
		policy: policy,
		publicPrefixes: []string{
			policy.LoginPath,
			"/register",
			"/healthz",
			"/static/",
			"/favicon.ico",
			"/auth/",
		},
		adminPrefixes: []string{"/admin", "/api/admin"},
		apiPrefixes:   []string{"/api/", "/auth/"},
	}
}

// Classify maps a request path to its path class. Admin prefixes are checked
// before the general buckets so /api/admin is admin-only, not merely
// protected.
func (p *RoutePolicy) Classify(path string) PathClass {
	for _, prefix := range p.adminPrefixes {
		if strings.HasPrefix(path, prefix) {
			return PathAdminOnly
		}
	}
	if path == p.policy.PendingPath {
		return PathPendingPage
	}
	for _, prefix := range p.publicPrefixes {
		if path == strings.TrimSuffix(prefix, "/") || strings.HasPrefix(path, prefix) {
			return PathPublic
		}
	}
	return PathProtected
}

// IsAPIRequest reports whether the path is a programmatic endpoint. API
// requests receive Deny statuses where page navigations receive redirects.
func (p *RoutePolicy) IsAPIRequest(path string) bool {
	for _, prefix := range p.apiPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Authorize evaluates the decision table for the given claims and path.
// Passing nil claims means anonymous; expired or tampered tokens must be
// mapped to nil by the caller before this point.
//
// The table, evaluated top to bottom, first match wins:
//
//	path class    anonymous   pending      inactive     user        admin
//	public        Allow       home*        home*        home*       home*
//	pending page  login       Allow        login        home        home
//	admin-only    login/401   pending      403/login    403/home    Allow
//	protected     login/401   pending      403/login    Allow       Allow
//
// Cells with two entries depend on the page-vs-API flag (page shape first).
// Cells marked * apply to page navigation only: API-shaped public endpoints
// stay reachable for authenticated callers (logout, session refresh).
// The pending state never yields Deny: a pending account is always steered to
// the pending page, even for admin-only API paths.
func (p *RoutePolicy) Authorize(claims *SessionClaims, path string, isAPI bool) Decision {
	state := StateFromClaims(claims)
	class := p.Classify(path)

	switch class {
	case PathPublic:
		if state != StateAnonymous && !isAPI {
			return redirect(p.policy.HomePath)
		}
		return allow()

	case PathPendingPage:
		switch state {
		case StateAnonymous:
			return p.unauthenticated(isAPI)
		case StatePending:
			return allow()
		case StateInactiveUser:
			return p.disallowed(isAPI, p.policy.LoginPath)
		default:
			return p.disallowed(isAPI, p.policy.HomePath)
		}

	case PathAdminOnly:
		switch state {
		case StateAnonymous:
			return p.unauthenticated(isAPI)
		case StatePending:
			return redirect(p.policy.PendingPath)
		case StateInactiveUser:
			return p.disallowed(isAPI, p.policy.LoginPath)
		case StateActiveUser:
			return p.disallowed(isAPI, p.policy.HomePath)
		default:
			return allow()
		}

	default: // PathProtected
		switch state {
		case StateAnonymous:
			return p.unauthenticated(isAPI)
		case StatePending:
			return redirect(p.policy.PendingPath)
		case StateInactiveUser:
			return p.disallowed(isAPI, p.policy.LoginPath)
		default:
			return allow()
		}
	}
}

// unauthenticated is the no-identity outcome: 401 for API requests, a login
// redirect for pages.
func (p *RoutePolicy) unauthenticated(isAPI bool) Decision {
	if isAPI {
		return deny(http.StatusUnauthorized)
	}
	return redirect(p.policy.LoginPath)
}

// disallowed is the has-identity-but-not-allowed outcome: 403 for API
// requests, a redirect for pages.
func (p *RoutePolicy) disallowed(isAPI bool, pageTarget string) Decision {
	if isAPI {
		return deny(http.StatusForbidden)
	}
	return redirect(pageTarget)
}
