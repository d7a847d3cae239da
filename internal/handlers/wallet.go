package handlers

import (
	"net/http"
	"strconv"

	"raffle/internal/middleware"
	"raffle/internal/models"

	"github.com/gin-gonic/gin"
)

// GetWallet - GET /api/wallet
func (h *Handlers) GetWallet(c *gin.Context) {
	wallet, err := h.services.Wallets.GetOrCreate(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to get wallet")
		return
	}

	c.JSON(http.StatusOK, models.WalletResponse{Balance: wallet.Balance, Wallet: wallet})
}

// ListWalletTransactions - GET /api/wallet/transactions?type=&limit=&offset=
// Получить историю операций кошелька
func (h *Handlers) ListWalletTransactions(c *gin.Context) {
	var filter models.TransactionFilter
	if raw := c.Query("type"); raw != "" {
		t := models.WalletTransactionType(raw)
		filter.Type = &t
	}

	var err error
	if filter.Limit, err = strconv.Atoi(c.DefaultQuery("limit", "50")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
		return
	}
	if filter.Offset, err = strconv.Atoi(c.DefaultQuery("offset", "0")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a number"})
		return
	}

	ctx := c.Request.Context()
	wallet, err := h.services.Wallets.GetOrCreate(ctx, middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to get wallet")
		return
	}

	txns, err := h.services.Wallets.Transactions(ctx, wallet.ID, filter)
	if err != nil {
		respondError(c, err, "Failed to list transactions")
		return
	}
	if txns == nil {
		txns = []models.WalletTransaction{}
	}

	c.JSON(http.StatusOK, txns)
}

// Deposit - POST /api/wallet/deposit
// The wallet is credited by the payment webhook, not here.
func (h *Handlers) Deposit(c *gin.Context) {
	var req models.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	intent, err := h.services.Checkout.RequestDeposit(c.Request.Context(), middleware.UserID(c), req.Amount)
	if err != nil {
		respondError(c, err, "Failed to start deposit")
		return
	}

	c.JSON(http.StatusOK, intent)
}

// ValidatePromo - POST /api/promo/validate
func (h *Handlers) ValidatePromo(c *gin.Context) {
	var req models.ValidatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.services.Promos.Validate(c.Request.Context(), req.Code, req.OrderTotal)
	if err != nil {
		respondError(c, err, "Failed to validate promo code")
		return
	}

	c.JSON(http.StatusOK, result)
}
