package handlers

import (
	"net/http"

	"raffle/internal/models"

	"github.com/gin-gonic/gin"
)

// Admin handlers. Routes are guarded by middleware.RequireAdmin.

// CreateCompetition - POST /api/admin/competitions
// Создать розыгрыш вместе с пулом билетов
func (h *Handlers) CreateCompetition(c *gin.Context) {
	var req models.CreateCompetitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	competition, err := h.services.Competitions.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to create competition")
		return
	}

	c.JSON(http.StatusCreated, models.CreateCompetitionResponse{ID: competition.ID})
}

// DrawWinner - POST /api/admin/competitions/:id/draw
func (h *Handlers) DrawWinner(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.services.Competitions.DrawWinner(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to draw winner")
		return
	}

	c.JSON(http.StatusOK, result)
}

// RefundOrder - POST /api/admin/orders/:id/refund
func (h *Handlers) RefundOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.RefundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	order, err := h.services.Checkout.Refund(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, err, "Failed to refund order")
		return
	}

	c.JSON(http.StatusOK, order)
}

// AdjustWallet - POST /api/admin/wallets/:userId/adjust
// Positive amounts credit, negative amounts debit.
func (h *Handlers) AdjustWallet(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	var req models.AdminAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txn, err := h.services.Wallets.AdminAdjust(c.Request.Context(), userID, req.Amount, req.Description)
	if err != nil {
		respondError(c, err, "Failed to adjust wallet")
		return
	}

	c.JSON(http.StatusOK, txn)
}
