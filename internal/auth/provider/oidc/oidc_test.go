package oidc

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNew_RequiresFields(t *testing.T) {
	_, err := New(context.Background(), Config{Name: "google"})
	assert.Error(t, err)
}

func TestAuthCodeURL(t *testing.T) {
	p := newProvider(Config{
		Name:        "keycloak",
		ClientID:    "gate",
		RedirectURL: "http://localhost:8080/oauth/callback/keycloak",
	}, oauth2.Endpoint{
		AuthURL:  "http://keycloak:8080/realms/gate/protocol/openid-connect/auth",
		TokenURL: "http://keycloak:8080/realms/gate/protocol/openid-connect/token",
	}, nil)

	u, err := url.Parse(p.AuthCodeURL("st-1", "ch-1"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "keycloak", p.Name())
	assert.Equal(t, "keycloak:8080", u.Host)
	assert.Equal(t, "st-1", q.Get("state"))
	assert.Equal(t, "ch-1", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, "gate", q.Get("client_id"))
	assert.Contains(t, q.Get("scope"), "openid")
}

func TestAuthCodeURL_PublicOverride(t *testing.T) {
	p := newProvider(Config{
		Name:          "keycloak",
		ClientID:      "gate",
		RedirectURL:   "http://localhost:8080/oauth/callback/keycloak",
		PublicAuthURL: "http://localhost:8081/realms/gate/protocol/openid-connect/auth/",
	}, oauth2.Endpoint{
		AuthURL: "http://keycloak:8080/realms/gate/protocol/openid-connect/auth",
	}, nil)

	u, err := url.Parse(p.AuthCodeURL("st-1", "ch-1"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:8081", u.Host)
	assert.Equal(t, "/realms/gate/protocol/openid-connect/auth", u.Path)
}
