package middleware

import (
	"context"
	"net/http"

	"identity-gate/internal/identity"
	"identity-gate/internal/logger"
	"identity-gate/internal/session"
)

// ResolverHub hands out the identity resolver of a browser session.
type ResolverHub interface {
	Resolver(sessionID string) (*identity.Resolver, error)
}

// SessionLookup reports whether a session id is live.
type SessionLookup interface {
	Get(ctx context.Context, sessionID string) (*session.Session, error)
}

// SessionLoader attaches the session's identity resolver to the request.
// It makes no admission decision; guards read the resolver downstream.
type SessionLoader struct {
	Sessions SessionLookup
	Hub      ResolverHub
	Cookie   session.CookieOptions
}

func NewSessionLoader(
	sessions SessionLookup,
	hub ResolverHub,
	cookie session.CookieOptions,
) *SessionLoader {
	return &SessionLoader{Sessions: sessions, Hub: hub, Cookie: cookie}
}

func (l *SessionLoader) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. No cookie: anonymous request, nothing to attach
		sessionID := session.ReadCookie(r, l.Cookie)
		if sessionID == "" {
			next.ServeHTTP(w, r)
			return
		}

		// 2. Unknown or expired session: anonymous, no resolver is started
		sess, err := l.Sessions.Get(r.Context(), sessionID)
		if err != nil {
			logger.Error("session lookup failed", map[string]any{
				"error": err,
			})
			http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
			return
		}
		if sess == nil {
			next.ServeHTTP(w, r)
			return
		}

		// 3. Find or start the resolver for this session
		res, err := l.Hub.Resolver(sessionID)
		if err != nil {
			logger.Error("identity resolver unavailable", map[string]any{
				"error": err,
			})
			http.Error(w, "identity service unavailable", http.StatusServiceUnavailable)
			return
		}

		// 4. Attach resolver and continue
		ctx := identity.WithResolver(r.Context(), res)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
