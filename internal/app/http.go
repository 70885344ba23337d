package app

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"identity-gate/internal/auth/credentials"
	"identity-gate/internal/auth/handler"
	"identity-gate/internal/auth/provider"
	"identity-gate/internal/auth/provider/oidc"
	"identity-gate/internal/auth/resolver"
	"identity-gate/internal/config"
	"identity-gate/internal/guard"
	"identity-gate/internal/identity"
	"identity-gate/internal/middleware"
	"identity-gate/internal/profile"
	"identity-gate/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// services are the request-facing components the router mounts.
type services struct {
	providers *provider.Registry
	auth      *handler.Handler
	loader    *middleware.SessionLoader
	guard     *guard.Guard
	limiter   *middleware.RateLimiter
}

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	sessionStore := session.NewRedisStore(infra.Redis.Client)
	bus := session.NewBus(infra.Redis.Client, sessionStore)
	profiles := profile.NewPostgresStore(infra.DB)

	hub, err := identity.NewHub(
		bus.Source,
		profiles,
		cfg.ResolverCacheSize,
		identity.WithFetchTimeout(cfg.ProfileFetchTimeout),
	)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	registry, err := setupProviders(ctx, cfg)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	cookie := session.CookieOptions{
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}

	authHandler := handler.NewHandler(handler.Deps{
		Providers:   registry,
		Sessions:    sessionStore,
		Bus:         bus,
		Hub:         hub,
		Resolver:    resolver.NewDBResolver(infra.DB),
		Credentials: credentials.NewService(infra.DB),
		Provisioner: profile.NewProvisioner(profiles, profile.NewPolicy(cfg.AdminEmails)),
		Cookie:      cookie,
		SessionTTL:  cfg.SessionTTL,
	})

	router := newRouter(services{
		providers: registry,
		auth:      authHandler,
		loader:    middleware.NewSessionLoader(sessionStore, hub, cookie),
		guard:     guard.New(guard.Options{Wait: cfg.GuardWait}),
		limiter:   middleware.NewRateLimiter(rate.Limit(cfg.LoginRate), cfg.LoginBurst),
	})

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, func() error {
		hub.Close()
		return infra.Close()
	}, nil
}

// setupProviders builds the OIDC providers that are configured.
func setupProviders(ctx context.Context, cfg config.Config) (*provider.Registry, error) {
	var list []provider.OAuthProvider

	if cfg.GoogleEnabled() {
		p, err := oidc.New(ctx, oidc.Config{
			Name:         "google",
			Issuer:       "https://accounts.google.com",
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}

	if cfg.KeycloakEnabled() {
		publicAuthURL, err := keycloakPublicAuthURL(cfg.KeycloakIssuer, cfg.KeycloakPublicBaseURL)
		if err != nil {
			return nil, err
		}
		p, err := oidc.New(ctx, oidc.Config{
			Name:          "keycloak",
			Issuer:        cfg.KeycloakIssuer,
			ClientID:      cfg.KeycloakClientID,
			RedirectURL:   cfg.KeycloakRedirectURL,
			PublicAuthURL: publicAuthURL,
		})
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}

	return provider.NewRegistry(list...), nil
}

// keycloakPublicAuthURL moves the realm's authorization endpoint onto the
// browser-facing base URL. An empty base keeps the discovered endpoint.
func keycloakPublicAuthURL(issuer, publicBaseURL string) (string, error) {
	if publicBaseURL == "" {
		return "", nil
	}
	u, err := url.Parse(issuer)
	if err != nil {
		return "", fmt.Errorf("invalid KEYCLOAK_ISSUER: %w", err)
	}
	return strings.TrimRight(publicBaseURL, "/") +
		strings.TrimRight(u.Path, "/") +
		"/protocol/openid-connect/auth", nil
}

func newRouter(s services) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(pages)

	// ----------------------------
	// Public Routes
	// ----------------------------

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// every route below sees the session's resolver, if any
	web := router.Group("/")
	web.Use(middleware.GinLoadSession(s.loader))

	s.auth.RegisterRoutes(web, s.limiter.Middleware())

	web.GET("/", homePage)
	web.GET("/login", loginPage(s.providers.Names()))

	// ----------------------------
	// Protected Web Routes
	// ----------------------------

	web.GET("/dashboard", s.guard.Require(""), dashboardPage)
	web.GET("/admin", s.guard.Require(profile.RoleAdmin), adminPage)

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	api := web.Group("/api")
	api.GET("/me", s.guard.RequireAPI(""), func(c *gin.Context) {
		p := identity.SnapshotFromContext(c.Request.Context()).Profile()
		if p == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no profile"})
			return
		}
		c.JSON(http.StatusOK, p)
	})
	api.GET("/admin/ping", s.guard.RequireAPI(profile.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	return router
}
