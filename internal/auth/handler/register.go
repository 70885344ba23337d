package handler

import (
	"errors"
	"net/http"

	"identity-gate/internal/auth/credentials"
	"identity-gate/internal/logger"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name" binding:"max=80"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	subject, err := h.credentials.Register(
		c.Request.Context(),
		req.Email,
		req.Password,
	)
	switch {
	case errors.Is(err, credentials.ErrAlreadyRegistered):
		c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
		return
	case errors.Is(err, credentials.ErrPasswordTooShort):
		c.JSON(http.StatusBadRequest, gin.H{"error": "password too short"})
		return
	case err != nil:
		logger.Error("register failed", map[string]any{"error": err})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "register error"})
		return
	}

	if _, err := h.newSession(c, subject, req.Email, false, req.DisplayName); err != nil {
		logger.Error("start session failed", map[string]any{
			"subject": subject,
			"error":   err,
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "registered"})
}
