package handlers

import (
	"errors"
	"net/http"
	"strconv"

	apperrors "raffle/internal/errors"
	"raffle/internal/logger"
	"raffle/internal/service"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	services *service.Services
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{services: services}
}

// respondError maps domain errors to HTTP statuses. Client-facing messages
// carry the specific reason; anything unexpected becomes a bare 500.
func respondError(c *gin.Context, err error, fallback string) {
	var validation *apperrors.ValidationError
	var tickets *apperrors.InsufficientTicketsError
	var balance *apperrors.InsufficientBalanceError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
	case errors.As(err, &tickets):
		c.JSON(http.StatusConflict, gin.H{
			"error":     tickets.Error(),
			"available": tickets.Available,
		})
	case errors.As(err, &balance):
		c.JSON(http.StatusConflict, gin.H{"error": balance.Error()})
	case errors.Is(err, apperrors.ErrCartEmpty):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, apperrors.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrPaymentNotCompleted):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Payment has not completed"})
	case errors.Is(err, apperrors.ErrPaymentMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment does not match order"})
	case errors.Is(err, apperrors.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
	default:
		logger.WithContext(c.Request.Context()).Error(fallback, "error", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
