package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (h *Handler) State(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.View())
}

type SetNameRequest struct {
	Name string `json:"name"`
}

func (h *Handler) SetName(c *gin.Context) {
	var req SetNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.SetName(req.Name); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, s.View())
}

func (h *Handler) StartGame(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.StartGame(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, s.View())
}

func (h *Handler) SubmitResult(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.SubmitResult(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, s.View())
}

func (h *Handler) EndGame(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.EndGame(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, s.View())
}

// ClickBottle answers 200 with accepted=false when the click was ignored.
func (h *Handler) ClickBottle(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bottle index"})
		return
	}

	s, ok := h.session(c)
	if !ok {
		return
	}
	accepted, err := s.ClickBottle(index)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": accepted, "view": s.View()})
}

func (h *Handler) ShowTarget(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	accepted := s.ShowTarget()
	c.JSON(http.StatusOK, gin.H{"accepted": accepted, "view": s.View()})
}
