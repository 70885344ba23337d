package guard

import (
	"context"
	"net/http"
	"time"

	"identity-gate/internal/identity"
	"identity-gate/internal/metrics"
	"identity-gate/internal/profile"

	"github.com/gin-gonic/gin"
)

type Decision int

const (
	Render Decision = iota
	Placeholder
	RedirectLogin
	RedirectFallback
)

func (d Decision) String() string {
	switch d {
	case Render:
		return "render"
	case Placeholder:
		return "placeholder"
	case RedirectLogin:
		return "redirect_login"
	case RedirectFallback:
		return "redirect_fallback"
	default:
		return "unknown"
	}
}

// Decide admits or refuses a view for the given identity. An empty
// required role admits any signed-in subject. Roles compare by exact
// equality and a missing profile fails every non-empty role.
func Decide(s identity.Snapshot, required profile.Role) Decision {
	switch s.State() {
	case identity.StateLoading:
		return Placeholder
	case identity.StateSignedOut:
		return RedirectLogin
	}

	if required != "" && !s.Profile().HasRole(required) {
		return RedirectFallback
	}
	return Render
}

type Options struct {
	LoginPath    string
	FallbackPath string

	// Wait lets a request hold for a loading identity before deciding.
	Wait time.Duration
}

type Guard struct {
	opts Options
}

func New(opts Options) *Guard {
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}
	if opts.FallbackPath == "" {
		opts.FallbackPath = "/"
	}
	return &Guard{opts: opts}
}

// Require guards page routes: refusals redirect, a loading identity
// gets a neutral placeholder and never a redirect.
func (g *Guard) Require(role profile.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch g.decide(c, role) {
		case Render:
			c.Next()
		case Placeholder:
			c.Header("Retry-After", "1")
			c.Header("Cache-Control", "no-store")
			c.Data(http.StatusAccepted, "text/html; charset=utf-8", []byte(placeholderPage))
			c.Abort()
		case RedirectLogin:
			c.Redirect(http.StatusFound, g.opts.LoginPath)
			c.Abort()
		case RedirectFallback:
			c.Redirect(http.StatusFound, g.opts.FallbackPath)
			c.Abort()
		}
	}
}

// RequireAPI guards JSON routes with status codes instead of redirects.
func (g *Guard) RequireAPI(role profile.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch g.decide(c, role) {
		case Render:
			c.Next()
		case Placeholder:
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "identity loading"})
		case RedirectLogin:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		case RedirectFallback:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		}
	}
}

func (g *Guard) decide(c *gin.Context, role profile.Role) Decision {
	snap := g.snapshot(c.Request.Context())
	d := Decide(snap, role)
	metrics.GuardDecisions.WithLabelValues(d.String()).Inc()
	return d
}

func (g *Guard) snapshot(ctx context.Context) identity.Snapshot {
	r, ok := identity.ResolverFromContext(ctx)
	if !ok {
		return identity.SignedOut()
	}

	snap := r.Snapshot()
	if snap.State() != identity.StateLoading || g.opts.Wait <= 0 {
		return snap
	}

	waitCtx, cancel := context.WithTimeout(ctx, g.opts.Wait)
	defer cancel()

	// on timeout Wait hands back the Loading snapshot
	snap, _ = r.Wait(waitCtx)
	return snap
}

const placeholderPage = `<!doctype html>
<html><head><meta http-equiv="refresh" content="1"><title>Loading</title></head>
<body></body></html>
`
