package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"identity-gate/internal/identity"
	"identity-gate/internal/profile"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// scriptedSource implements identity.SessionSource for testing.
type scriptedSource struct {
	handler func(*identity.Session)
}

func (s *scriptedSource) OnSessionChange(h func(*identity.Session)) (func(), error) {
	s.handler = h
	return func() {}, nil
}

func (s *scriptedSource) SignOut(context.Context) error { return nil }

// profileTable implements identity.ProfileStore for testing.
type profileTable struct {
	profiles map[string]*profile.Profile
	hold     chan struct{}
}

func (p profileTable) Get(ctx context.Context, subject string) (*profile.Profile, error) {
	if p.hold != nil {
		select {
		case <-p.hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.profiles[subject], nil
}

func admin(subject string) *profile.Profile {
	return &profile.Profile{Subject: subject, Role: profile.RoleAdmin, Status: profile.StatusActive}
}

func user(subject string) *profile.Profile {
	return &profile.Profile{Subject: subject, Role: profile.RoleUser, Status: profile.StatusActive}
}

func TestDecide(t *testing.T) {
	u1 := identity.Session{Subject: "u1"}

	tests := []struct {
		name     string
		snap     identity.Snapshot
		required profile.Role
		want     Decision
	}{
		{"loading renders placeholder", identity.Loading(), profile.RoleAdmin, Placeholder},
		{"loading without role", identity.Loading(), "", Placeholder},
		{"signed out redirects to login", identity.SignedOut(), "", RedirectLogin},
		{"signed out with role", identity.SignedOut(), profile.RoleAdmin, RedirectLogin},
		{"admin may see admin view", identity.SignedIn(u1, admin("u1")), profile.RoleAdmin, Render},
		{"user may not see admin view", identity.SignedIn(u1, user("u1")), profile.RoleAdmin, RedirectFallback},
		{"missing profile fails role check", identity.SignedIn(u1, nil), profile.RoleAdmin, RedirectFallback},
		{"missing profile passes without role", identity.SignedIn(u1, nil), "", Render},
		{"user view without role", identity.SignedIn(u1, user("u1")), "", Render},
		{"role match is exact", identity.SignedIn(u1, &profile.Profile{Role: "Admin"}), profile.RoleAdmin, RedirectFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.snap, tt.required))
		})
	}
}

// newRouter mounts a guarded route whose request context carries r.
func newRouter(g *Guard, r *identity.Resolver, role profile.Role, api bool) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if r != nil {
			c.Request = c.Request.WithContext(identity.WithResolver(c.Request.Context(), r))
		}
		c.Next()
	})

	h := g.Require(role)
	if api {
		h = g.RequireAPI(role)
	}
	router.GET("/admin", h, func(c *gin.Context) {
		c.String(http.StatusOK, "admin view")
	})
	return router
}

func serve(router *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	router.ServeHTTP(w, req)
	return w
}

func startedResolver(t *testing.T, store profileTable) (*identity.Resolver, *scriptedSource) {
	t.Helper()
	src := &scriptedSource{}
	r := identity.NewResolver(src, store)
	stop, err := r.Start()
	require.NoError(t, err)
	t.Cleanup(stop)
	return r, src
}

func resolvedAs(t *testing.T, sess *identity.Session, profiles map[string]*profile.Profile) *identity.Resolver {
	t.Helper()
	r, src := startedResolver(t, profileTable{profiles: profiles})
	src.handler(sess)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := r.Wait(ctx)
	require.NoError(t, err)
	return r
}

func TestRequire_NoSessionRedirectsToLogin(t *testing.T) {
	w := serve(newRouter(New(Options{}), nil, profile.RoleAdmin, false))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestRequire_AdminRendered(t *testing.T) {
	r := resolvedAs(t, &identity.Session{Subject: "u1"}, map[string]*profile.Profile{"u1": admin("u1")})

	w := serve(newRouter(New(Options{}), r, profile.RoleAdmin, false))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin view", w.Body.String())
}

func TestRequire_RoleMismatchRedirectsToFallback(t *testing.T) {
	r := resolvedAs(t, &identity.Session{Subject: "u1"}, map[string]*profile.Profile{"u1": user("u1")})

	w := serve(newRouter(New(Options{FallbackPath: "/home"}), r, profile.RoleAdmin, false))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/home", w.Header().Get("Location"))
}

func TestRequire_MissingProfileRedirectsToFallback(t *testing.T) {
	r := resolvedAs(t, &identity.Session{Subject: "u1"}, nil)

	w := serve(newRouter(New(Options{}), r, profile.RoleAdmin, false))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestRequire_LoadingRendersPlaceholder(t *testing.T) {
	hold := make(chan struct{})
	t.Cleanup(func() { close(hold) })
	r, src := startedResolver(t, profileTable{hold: hold})
	src.handler(&identity.Session{Subject: "u1"})

	w := serve(newRouter(New(Options{}), r, profile.RoleAdmin, false))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, w.Header().Get("Location"))
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRequire_WaitsForLoadingIdentity(t *testing.T) {
	hold := make(chan struct{})
	r, src := startedResolver(t, profileTable{
		profiles: map[string]*profile.Profile{"u1": admin("u1")},
		hold:     hold,
	})
	src.handler(&identity.Session{Subject: "u1"})

	time.AfterFunc(20*time.Millisecond, func() { close(hold) })

	w := serve(newRouter(New(Options{Wait: 2 * time.Second}), r, profile.RoleAdmin, false))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAPI_StatusCodes(t *testing.T) {
	g := New(Options{})

	w := serve(newRouter(g, nil, profile.RoleAdmin, true))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r := resolvedAs(t, &identity.Session{Subject: "u1"}, map[string]*profile.Profile{"u1": user("u1")})
	w = serve(newRouter(g, r, profile.RoleAdmin, true))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(newRouter(g, r, "", true))
	assert.Equal(t, http.StatusOK, w.Code)
}
