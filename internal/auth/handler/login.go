package handler

import (
	"errors"
	"net/http"

	"identity-gate/internal/auth/credentials"
	"identity-gate/internal/logger"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	cred, err := h.credentials.Authenticate(
		c.Request.Context(),
		req.Email,
		req.Password,
	)
	if errors.Is(err, credentials.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		logger.Error("authenticate failed", map[string]any{"error": err})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login error"})
		return
	}

	// password sign-ins never verify the address
	if _, err := h.newSession(c, cred.UserID, cred.Email, false, ""); err != nil {
		logger.Error("start session failed", map[string]any{
			"subject": cred.UserID,
			"error":   err,
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "logged_in"})
}
