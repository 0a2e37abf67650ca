package handlers

import (
	"net/http"
	"strconv"

	"colorsnap/internal/http/middleware"
	"colorsnap/internal/logger"

	"github.com/gin-gonic/gin"
)

const maxHistoryLimit = 500

func historyLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		return 50
	}
	return min(limit, maxHistoryLimit)
}

// TransactionHistory lists journaled transaction transitions, newest first.
func (h *Handler) TransactionHistory(c *gin.Context) {
	if h.TransactionRepo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal not configured"})
		return
	}
	addr, ok := middleware.Address(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	entries, err := h.TransactionRepo.GetByAddress(c.Request.Context(), addr, historyLimit(c))
	if err != nil {
		logger.Error("failed to read tx journal", "address", addr.Hex(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": entries})
}

// GameHistory lists completed games, newest first.
func (h *Handler) GameHistory(c *gin.Context) {
	if h.GameRepo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal not configured"})
		return
	}
	addr, ok := middleware.Address(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	games, err := h.GameRepo.GetByAddress(c.Request.Context(), addr, historyLimit(c))
	if err != nil {
		logger.Error("failed to read completed games", "address", addr.Hex(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games})
}
