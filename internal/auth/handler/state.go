package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	"identity-gate/internal/utils"

	"github.com/gin-gonic/gin"
)

const (
	stateCookieName = "__oauth_state"
	stateTTL        = 5 * time.Minute
)

// flowCookie issues a short-lived cookie scoped to one OAuth round trip.
func (h *Handler) flowCookie(c *gin.Context, name, value string, ttl time.Duration) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

// takeCookie returns the cookie value and clears it.
func (h *Handler) takeCookie(c *gin.Context, name string) string {
	cookie, err := c.Request.Cookie(name)
	if err != nil {
		return ""
	}
	h.flowCookie(c, name, "", -time.Second)
	return cookie.Value
}

func (h *Handler) issueState(c *gin.Context) (string, error) {
	state, err := utils.RandomToken(32)
	if err != nil {
		return "", err
	}
	h.flowCookie(c, stateCookieName, state, stateTTL)
	return state, nil
}

// consumeState checks the state query parameter against the cookie.
// The cookie is single use.
func (h *Handler) consumeState(c *gin.Context) bool {
	stored := h.takeCookie(c, stateCookieName)
	query := c.Query("state")
	if stored == "" || query == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(query)) == 1
}
