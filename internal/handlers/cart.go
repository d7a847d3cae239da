package handlers

import (
	"net/http"
	"strconv"

	"raffle/internal/middleware"
	"raffle/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// GetCart - GET /api/cart
func (h *Handlers) GetCart(c *gin.Context) {
	items, err := h.services.Cart.Snapshot(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to get cart")
		return
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	c.JSON(http.StatusOK, models.CartResponse{Items: items, Subtotal: subtotal})
}

// AddToCart - POST /api/cart
// Добавить билеты розыгрыша в корзину. Цена берется из розыгрыша.
func (h *Handlers) AddToCart(c *gin.Context) {
	var req models.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	competition, err := h.services.Competitions.Get(ctx, req.CompetitionID)
	if err != nil {
		respondError(c, err, "Failed to add to cart")
		return
	}

	item := models.CartItem{
		CompetitionID: competition.ID,
		Quantity:      req.Quantity,
		UnitPrice:     competition.TicketPrice,
	}
	if err := h.services.Cart.Add(ctx, middleware.UserID(c), item); err != nil {
		respondError(c, err, "Failed to add to cart")
		return
	}

	c.Status(http.StatusNoContent)
}

// RemoveFromCart - DELETE /api/cart?competition_id=
func (h *Handlers) RemoveFromCart(c *gin.Context) {
	competitionID, err := strconv.ParseInt(c.Query("competition_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "competition_id is required"})
		return
	}

	if err := h.services.Cart.Remove(c.Request.Context(), middleware.UserID(c), competitionID); err != nil {
		respondError(c, err, "Failed to remove from cart")
		return
	}

	c.Status(http.StatusNoContent)
}
