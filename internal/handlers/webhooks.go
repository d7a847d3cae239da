package handlers

import (
	"errors"
	"net/http"

	apperrors "raffle/internal/errors"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 64 << 10

// StripeWebhook - POST /webhooks/stripe
// Тело читается как есть: подпись считается по сырым байтам.
func (h *Handlers) StripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	err = h.services.Webhooks.Handle(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if errors.Is(err, apperrors.ErrInvalidSignature) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}
	if err != nil {
		respondError(c, err, "Failed to handle webhook")
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
