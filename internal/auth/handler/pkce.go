package handler

import (
	"crypto/sha256"
	"encoding/base64"
	"time"

	"identity-gate/internal/utils"

	"github.com/gin-gonic/gin"
)

const (
	pkceCookieName = "__oauth_pkce"
	pkceTTL        = 5 * time.Minute
)

// challengeFor derives the S256 code challenge.
func challengeFor(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

func (h *Handler) issuePKCE(c *gin.Context) (challenge string, err error) {
	verifier, err := utils.RandomToken(32)
	if err != nil {
		return "", err
	}
	h.flowCookie(c, pkceCookieName, verifier, pkceTTL)
	return challengeFor(verifier), nil
}

func (h *Handler) consumePKCE(c *gin.Context) string {
	return h.takeCookie(c, pkceCookieName)
}
