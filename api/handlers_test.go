package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalog.app/auth"
)

const testPassword = "correct-password"

type apiFixture struct {
	e         *echo.Echo
	handlers  *Handlers
	directory *auth.MemoryDirectory
	codec     *auth.SessionCodec
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	policy := auth.DefaultSecurityPolicy()
	policy.SigningKey = "test-signing-key-0123456789abcdef"
	policy.PBKDF2Iterations = 1000

	directory := auth.NewMemoryDirectory()
	hash, err := auth.HashPasswordWithIterations(testPassword, policy.PBKDF2Iterations)
	require.NoError(t, err)

	users := []*auth.User{
		{ID: "user-1", Username: "alice", PasswordHash: hash, Role: auth.RoleUser, IsActive: true, Timezone: "UTC"},
		{ID: "user-2", Username: "peggy", PasswordHash: hash, Role: auth.RolePending},
		{ID: "user-3", Username: "root", PasswordHash: hash, Role: auth.RoleAdmin, IsActive: true},
	}
	for _, u := range users {
		require.NoError(t, directory.CreateUser(context.Background(), u))
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	codec, err := auth.NewSessionCodec(policy)
	require.NoError(t, err)

	handlers := &Handlers{
		Authenticator: auth.NewAuthenticator(policy, directory, auth.NewLogAuditSink(logger), logger),
		Codec:         codec,
		Directory:     directory,
		Policy:        policy,
		Logger:        logger,
	}

	e := echo.New()
	SetupRoutes(e, handlers, auth.NewRoutePolicy(policy), 0)

	// Stand-ins for application routes so Allow decisions are observable.
	e.GET("/dashboard", func(c echo.Context) error { return c.String(http.StatusOK, "dashboard") })
	e.GET("/pending", func(c echo.Context) error { return c.String(http.StatusOK, "pending") })
	e.GET("/api/entries", func(c echo.Context) error { return c.String(http.StatusOK, "entries") })

	return &apiFixture{e: e, handlers: handlers, directory: directory, codec: codec}
}

func (f *apiFixture) request(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) login(t *testing.T, username string) *http.Cookie {
	t.Helper()
	rec := f.request(http.MethodPost, "/auth/login", `{"username":"`+username+`","password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookieFrom(t, rec)
	require.NotNil(t, cookie)
	return cookie
}

func sessionCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "vitalog_session" {
			return cookie
		}
	}
	return nil
}

func TestLoginSuccess(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodPost, "/auth/login", `{"username":"alice","password":"correct-password"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "user-1", resp.UserID)
	assert.Equal(t, auth.RoleUser, resp.Role)
	assert.True(t, resp.IsActive)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), resp.ExpiresAt, time.Minute)

	cookie := sessionCookieFrom(t, rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.NotEmpty(t, cookie.Value)

	claims, err := f.codec.Verify(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newAPIFixture(t)

	wrongPassword := f.request(http.MethodPost, "/auth/login", `{"username":"alice","password":"wrong"}`)
	unknownUser := f.request(http.MethodPost, "/auth/login", `{"username":"mallory","password":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
	assert.Nil(t, sessionCookieFrom(t, wrongPassword))
}

func TestLoginLockedAccountLooksLikeBadPassword(t *testing.T) {
	f := newAPIFixture(t)

	until := time.Now().Add(15 * time.Minute)
	require.NoError(t, f.directory.SetLockout(context.Background(), "user-1", until))

	locked := f.request(http.MethodPost, "/auth/login", `{"username":"alice","password":"correct-password"}`)
	wrong := f.request(http.MethodPost, "/auth/login", `{"username":"mallory","password":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, locked.Code)
	assert.Equal(t, wrong.Body.String(), locked.Body.String())
}

func TestLoginMissingFields(t *testing.T) {
	f := newAPIFixture(t)

	tests := []string{
		`{"username":"alice"}`,
		`{"password":"secret"}`,
		`{}`,
	}
	for _, body := range tests {
		rec := f.request(http.MethodPost, "/auth/login", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
}

func TestLoginDirectoryUnavailable(t *testing.T) {
	f := newAPIFixture(t)
	f.directory.FailLookups(errors.New("connection refused"))

	rec := f.request(http.MethodPost, "/auth/login", `{"username":"alice","password":"correct-password"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSessionEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	// Anonymous: no session to report.
	rec := f.request(http.MethodGet, "/auth/session", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookie := f.login(t, "alice")
	rec = f.request(http.MethodGet, "/auth/session", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "user-1", resp.UserID)
	assert.Equal(t, auth.RoleUser, resp.Role)
	assert.True(t, resp.IsActive)
	assert.False(t, resp.NeedsRefresh)
}

func TestSessionTamperedCookieIsAnonymous(t *testing.T) {
	f := newAPIFixture(t)

	cookie := f.login(t, "alice")
	cookie.Value += "tampered"

	rec := f.request(http.MethodGet, "/auth/session", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout(t *testing.T) {
	f := newAPIFixture(t)

	cookie := f.login(t, "alice")
	rec := f.request(http.MethodPost, "/auth/logout", "", cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	cleared := sessionCookieFrom(t, rec)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	// Logging out without a session is harmless.
	rec = f.request(http.MethodPost, "/auth/logout", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRefreshPicksUpRoleChange(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	cookie := f.login(t, "alice")

	// Promote alice after the token was issued; the live token still says
	// user until refresh.
	user, err := f.directory.GetUser(ctx, "user-1")
	require.NoError(t, err)
	user.Role = auth.RoleAdmin
	require.NoError(t, f.directory.UpdateUser(ctx, user))

	rec := f.request(http.MethodPost, "/auth/session/refresh", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, auth.RoleAdmin, resp.Role)

	fresh := sessionCookieFrom(t, rec)
	require.NotNil(t, fresh)
	claims, err := f.codec.Verify(fresh.Value)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
}

func TestRefreshForDeletedUserClearsSession(t *testing.T) {
	f := newAPIFixture(t)

	// A token for an account that no longer exists in the directory.
	token, _, err := f.codec.Issue(&auth.Principal{ID: "ghost", Role: auth.RoleUser, IsActive: true})
	require.NoError(t, err)
	cookie := &http.Cookie{Name: "vitalog_session", Value: token}

	rec := f.request(http.MethodPost, "/auth/session/refresh", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cleared := sessionCookieFrom(t, rec)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
}

func TestRoutePolicyEnforcement(t *testing.T) {
	f := newAPIFixture(t)

	aliceCookie := f.login(t, "alice")
	peggyCookie := f.login(t, "peggy")
	rootCookie := f.login(t, "root")

	tests := []struct {
		name         string
		path         string
		cookie       *http.Cookie
		wantCode     int
		wantLocation string
	}{
		{"anonymous page redirects to login", "/dashboard", nil, http.StatusFound, "/login"},
		{"anonymous api gets 401", "/api/entries", nil, http.StatusUnauthorized, ""},
		{"user reaches protected page", "/dashboard", aliceCookie, http.StatusOK, ""},
		{"user reaches protected api", "/api/entries", aliceCookie, http.StatusOK, ""},
		{"pending steered to pending page", "/dashboard", peggyCookie, http.StatusFound, "/pending"},
		{"pending steered even on admin api", "/api/admin/users/user-2/activate", peggyCookie, http.StatusFound, "/pending"},
		{"pending reaches pending page", "/pending", peggyCookie, http.StatusOK, ""},
		{"user denied on admin api", "/api/admin/users/user-2/activate", aliceCookie, http.StatusForbidden, ""},
		{"admin reaches protected page", "/dashboard", rootCookie, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cookies []*http.Cookie
			if tt.cookie != nil {
				cookies = append(cookies, tt.cookie)
			}
			method := http.MethodGet
			if strings.Contains(tt.path, "/activate") {
				method = http.MethodPost
			}
			rec := f.request(method, tt.path, "", cookies...)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get(echo.HeaderLocation))
			}
		})
	}
}

func TestAdminActivateUser(t *testing.T) {
	f := newAPIFixture(t)
	rootCookie := f.login(t, "root")

	rec := f.request(http.MethodPost, "/api/admin/users/user-2/activate", "", rootCookie)
	require.Equal(t, http.StatusOK, rec.Code)

	user, err := f.directory.GetUser(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleUser, user.Role)
	assert.True(t, user.IsActive)
}

func TestAdminActivateUnknownUser(t *testing.T) {
	f := newAPIFixture(t)
	rootCookie := f.login(t, "root")

	rec := f.request(http.MethodPost, "/api/admin/users/missing/activate", "", rootCookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminChangeRole(t *testing.T) {
	f := newAPIFixture(t)
	rootCookie := f.login(t, "root")

	rec := f.request(http.MethodPut, "/api/admin/users/user-1/role", `{"role":"admin"}`, rootCookie)
	require.Equal(t, http.StatusOK, rec.Code)

	user, err := f.directory.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, user.Role)
	assert.True(t, user.IsActive)

	// Demoting back to pending deactivates the account.
	rec = f.request(http.MethodPut, "/api/admin/users/user-1/role", `{"role":"pending"}`, rootCookie)
	require.Equal(t, http.StatusOK, rec.Code)

	user, err = f.directory.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, auth.RolePending, user.Role)
	assert.False(t, user.IsActive)
}

func TestAdminChangeRoleRejectsUnknownRole(t *testing.T) {
	f := newAPIFixture(t)
	rootCookie := f.login(t, "root")

	rec := f.request(http.MethodPut, "/api/admin/users/user-1/role", `{"role":"root"}`, rootCookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthzIsPublic(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
