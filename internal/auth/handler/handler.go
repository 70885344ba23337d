package handler

import (
	"context"
	"net/http"
	"time"

	"identity-gate/internal/auth/credentials"
	"identity-gate/internal/auth/provider"
	"identity-gate/internal/auth/resolver"
	"identity-gate/internal/identity"
	"identity-gate/internal/logger"
	"identity-gate/internal/session"

	"github.com/gin-gonic/gin"
)

// SessionBus announces session transitions to live resolvers.
type SessionBus interface {
	PublishSignedIn(ctx context.Context, s session.Session) error
	SignOut(ctx context.Context, sessionID string) error
}

// ResolverHub drops the resolver of a finished session.
type ResolverHub interface {
	Forget(sessionID string)
}

// Credentials registers and authenticates password users.
type Credentials interface {
	Register(ctx context.Context, email, password string) (string, error)
	Authenticate(ctx context.Context, email, password string) (*credentials.Credential, error)
}

// Provisioner creates the profile of a subject on first sign-in.
type Provisioner interface {
	Provision(
		ctx context.Context,
		subject string,
		email string,
		emailVerified bool,
		displayName string,
	) error
}

type Deps struct {
	Providers   *provider.Registry
	Sessions    session.Store
	Bus         SessionBus
	Hub         ResolverHub
	Resolver    resolver.Resolver
	Credentials Credentials
	Provisioner Provisioner
	Cookie      session.CookieOptions
	SessionTTL  time.Duration
}

type Handler struct {
	providers   *provider.Registry
	sessions    session.Store
	bus         SessionBus
	hub         ResolverHub
	resolver    resolver.Resolver
	credentials Credentials
	provisioner Provisioner
	cookie      session.CookieOptions
	sessionTTL  time.Duration
}

func NewHandler(d Deps) *Handler {
	ttl := d.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Handler{
		providers:   d.Providers,
		sessions:    d.Sessions,
		bus:         d.Bus,
		hub:         d.Hub,
		resolver:    d.Resolver,
		credentials: d.Credentials,
		provisioner: d.Provisioner,
		cookie:      d.Cookie,
		sessionTTL:  ttl,
	}
}

// RegisterRoutes mounts the sign-in, sign-out and identity endpoints.
// limit guards the password endpoints.
func (h *Handler) RegisterRoutes(r gin.IRouter, limit gin.HandlerFunc) {
	r.GET("/oauth/login/:provider", h.oauthLogin)
	r.GET("/oauth/callback/:provider", h.oauthCallback)

	r.POST("/auth/register", limit, h.Register)
	r.POST("/auth/login", limit, h.Login)
	r.POST("/auth/logout", h.Logout)

	r.GET("/api/identity", h.Identity)
	r.GET("/api/identity/stream", h.IdentityStream)
}

// newSession is the shared tail of every sign-in. The profile is
// provisioned first; a live session of the same subject is refreshed,
// anything else gets a fresh session id.
func (h *Handler) newSession(
	c *gin.Context,
	subject string,
	email string,
	emailVerified bool,
	displayName string,
) (*session.Session, error) {

	ctx := c.Request.Context()

	// 1. Profile before session, so the first fetch finds it
	if err := h.provisioner.Provision(ctx, subject, email, emailVerified, displayName); err != nil {
		return nil, err
	}

	// 2. Same subject again: refresh the live session in place,
	// otherwise retire whatever session the browser still carries
	if old := session.ReadCookie(c.Request, h.cookie); old != "" {
		current, err := h.sessions.Get(ctx, old)
		if err != nil {
			return nil, err
		}
		if current != nil && current.Subject == subject {
			return h.refreshSession(c, *current, email, emailVerified)
		}
		h.endSession(ctx, old)
	}

	// 3. Persist
	sessionID, err := session.GenerateID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := session.Session{
		SessionID:     sessionID,
		Subject:       subject,
		Email:         email,
		EmailVerified: emailVerified,
		CreatedAt:     now,
		ExpiresAt:     now.Add(h.sessionTTL),
	}
	if err := h.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	// 4. Cookie + announce
	session.SetCookie(c.Writer, sessionID, sess.ExpiresAt, h.cookie)

	if err := h.bus.PublishSignedIn(ctx, sess); err != nil {
		logger.Warn("publish signed_in failed", map[string]any{
			"subject": subject,
			"error":   err,
		})
	}

	logger.Info("session started", map[string]any{
		"subject": subject,
		"ip":      c.ClientIP(),
	})
	return &sess, nil
}

// refreshSession stores the latest identity facts on a live session and
// republishes it. The absolute expiry is kept.
func (h *Handler) refreshSession(
	c *gin.Context,
	sess session.Session,
	email string,
	emailVerified bool,
) (*session.Session, error) {

	ctx := c.Request.Context()

	sess.Email = email
	sess.EmailVerified = emailVerified
	if err := h.sessions.Update(ctx, sess); err != nil {
		return nil, err
	}

	session.SetCookie(c.Writer, sess.SessionID, sess.ExpiresAt, h.cookie)

	if err := h.bus.PublishSignedIn(ctx, sess); err != nil {
		logger.Warn("publish signed_in failed", map[string]any{
			"subject": sess.Subject,
			"error":   err,
		})
	}

	logger.Info("session refreshed", map[string]any{
		"subject": sess.Subject,
		"ip":      c.ClientIP(),
	})
	return &sess, nil
}

// endSession deletes the session, notifies its listeners and drops the
// local resolver. Failures are logged; sign-out stays idempotent.
func (h *Handler) endSession(ctx context.Context, sessionID string) {
	if err := h.bus.SignOut(ctx, sessionID); err != nil {
		logger.Warn("sign-out failed", map[string]any{
			"error": err,
		})
	}
	h.hub.Forget(sessionID)
}

func (h *Handler) Logout(c *gin.Context) {
	if sid := session.ReadCookie(c.Request, h.cookie); sid != "" {
		h.endSession(c.Request.Context(), sid)
	}

	session.ClearCookie(c.Writer, h.cookie)
	c.Status(http.StatusNoContent)
}

// Identity returns the caller's current identity snapshot.
func (h *Handler) Identity(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, identity.SnapshotFromContext(c.Request.Context()))
}
