package handlers

import (
	"errors"
	"net/http"
	"time"

	"colorsnap/internal/chain"
	"colorsnap/internal/game"
	"colorsnap/internal/http/middleware"
	"colorsnap/internal/repository"
	"colorsnap/internal/session"
	"colorsnap/internal/txn"
	"colorsnap/internal/ws"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Sessions *session.Manager
	Hub      *ws.Hub
	TokenTTL time.Duration

	// nil when no journal database is configured
	TransactionRepo *repository.TransactionRepository
	GameRepo        *repository.GameRepository
}

func NewHandler(sessions *session.Manager, hub *ws.Hub, tokenTTL time.Duration) *Handler {
	return &Handler{
		Sessions: sessions,
		Hub:      hub,
		TokenTTL: tokenTTL,
	}
}

// session returns the caller's session, reconnecting it if the daemon was
// restarted or the session idled out since the token was issued.
func (h *Handler) session(c *gin.Context) (*session.Session, bool) {
	addr, ok := middleware.Address(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	s, err := h.Sessions.Connect(addr)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	s.Touch()
	return s, true
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrInvalidName),
		errors.Is(err, game.ErrIndexOutOfRange):
		status = http.StatusBadRequest
	case errors.Is(err, chain.ErrUnknownSigner):
		status = http.StatusForbidden
	case errors.Is(err, session.ErrPrecondition),
		errors.Is(err, session.ErrClosed),
		errors.Is(err, txn.ErrPending):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
