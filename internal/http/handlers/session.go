package handlers

import (
	"net/http"

	"colorsnap/internal/chain"
	"colorsnap/internal/http/middleware"
	"colorsnap/internal/logger"
	"colorsnap/internal/service"

	"github.com/gin-gonic/gin"
)

type CreateSessionRequest struct {
	Address string `json:"address" binding:"required"`
}

// CreateSession starts (or resumes) the session of a configured signer and
// returns a token for it.
func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	addr, err := chain.ParseAddress(req.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}

	s, err := h.Sessions.Connect(addr)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := service.GenerateJWT(addr, h.TokenTTL)
	if err != nil {
		logger.Error("failed to sign token", "address", addr.Hex(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"view":  s.View(),
	})
}

// DeleteSession tears down the caller's session and its cached data.
func (h *Handler) DeleteSession(c *gin.Context) {
	addr, ok := middleware.Address(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	h.Hub.Disconnect(addr)
	h.Sessions.Disconnect(addr)
	c.Status(http.StatusNoContent)
}
