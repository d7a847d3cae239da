package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CompetitionProgress - GET /api/competitions/:id/progress
func (h *Handlers) CompetitionProgress(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	stats, err := h.services.Competitions.Progress(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to get competition progress")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetCompetition - GET /api/competitions/:id
func (h *Handlers) GetCompetition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	competition, err := h.services.Competitions.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to get competition")
		return
	}

	c.JSON(http.StatusOK, competition)
}
