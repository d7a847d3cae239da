package handlers

import (
	"net/http"

	"raffle/internal/middleware"
	"raffle/internal/models"

	"github.com/gin-gonic/gin"
)

// Checkout - POST /api/checkout
// Оформить заказ из корзины
func (h *Handlers) Checkout(c *gin.Context) {
	var req models.CheckoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.services.Checkout.Checkout(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, err, "Failed to checkout")
		return
	}

	c.JSON(http.StatusCreated, result)
}

// CreatePaymentIntent - POST /api/orders/:id/payment-intent
func (h *Handlers) CreatePaymentIntent(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	intent, err := h.services.Checkout.RequestPayment(c.Request.Context(), middleware.UserID(c), orderID)
	if err != nil {
		respondError(c, err, "Failed to create payment intent")
		return
	}

	c.JSON(http.StatusOK, intent)
}

// ConfirmOrder - POST /api/orders/:id/confirm
// Подтвердить оплату заказа после редиректа с платежной формы
func (h *Handlers) ConfirmOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.ConfirmOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.services.Checkout.Confirm(c.Request.Context(), middleware.UserID(c), orderID, req.PaymentIntentID)
	if err != nil {
		respondError(c, err, "Failed to confirm order")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CancelOrder - POST /api/orders/:id/cancel
func (h *Handlers) CancelOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := h.services.Checkout.Cancel(c.Request.Context(), middleware.UserID(c), orderID)
	if err != nil {
		respondError(c, err, "Failed to cancel order")
		return
	}

	c.JSON(http.StatusOK, order)
}

// ListOrders - GET /api/orders
func (h *Handlers) ListOrders(c *gin.Context) {
	orders, err := h.services.Orders.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to list orders")
		return
	}

	c.JSON(http.StatusOK, orders)
}

// GetOrder - GET /api/orders/:id
func (h *Handlers) GetOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := h.services.Orders.GetForUser(c.Request.Context(), middleware.UserID(c), orderID)
	if err != nil {
		respondError(c, err, "Failed to get order")
		return
	}

	c.JSON(http.StatusOK, order)
}
