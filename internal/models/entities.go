package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutRequest - модель для оформления заказа из корзины
type CheckoutRequest struct {
	UseWalletBalance bool   `json:"use_wallet_balance"`
	PromoCode        string `json:"promo_code,omitempty"`
}

// CheckoutResult - either a settled order or a pending one awaiting card payment
type CheckoutResult struct {
	Order           *Order          `json:"order"`
	RequiresPayment bool            `json:"requires_payment"`
	AmountToCharge  decimal.Decimal `json:"amount_to_charge"`
	InstantWins     []Ticket        `json:"instant_wins,omitempty"`
}

type PaymentIntentResponse struct {
	OrderID         int64           `json:"order_id,omitempty"`
	PaymentIntentID string          `json:"payment_intent_id"`
	ClientSecret    string          `json:"client_secret"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
}

type ConfirmOrderRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
}

type ConfirmOrderResponse struct {
	Order       *Order   `json:"order"`
	InstantWins []Ticket `json:"instant_wins,omitempty"`
}

type AddCartItemRequest struct {
	CompetitionID int64 `json:"competition_id" binding:"required"`
	Quantity      int   `json:"quantity" binding:"required,min=1"`
}

type RemoveCartItemRequest struct {
	CompetitionID int64 `json:"competition_id" binding:"required"`
}

type CartResponse struct {
	Items    []CartItem      `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type WalletResponse struct {
	Balance decimal.Decimal `json:"balance"`
	Wallet  *Wallet         `json:"wallet,omitempty"`
}

type AdminAdjustRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" binding:"required"`
}

type RefundRequest struct {
	Reason string `json:"reason"`
}

type ValidatePromoRequest struct {
	Code       string          `json:"code" binding:"required"`
	OrderTotal decimal.Decimal `json:"order_total"`
}

// PromoResult is the outcome of promo validation
type PromoResult struct {
	Code     string          `json:"code"`
	Valid    bool            `json:"valid"`
	Discount decimal.Decimal `json:"discount"`
	Error    string          `json:"error,omitempty"`
}

type CreateCompetitionRequest struct {
	Title        string          `json:"title" binding:"required"`
	TicketPrice  decimal.Decimal `json:"ticket_price"`
	TotalTickets int             `json:"total_tickets" binding:"required,min=1"`
	EndsAt       *time.Time      `json:"ends_at,omitempty"`
	InstantWins  map[int]string  `json:"instant_wins,omitempty"`
}

type CreateCompetitionResponse struct {
	ID int64 `json:"id"`
}

type DrawResult struct {
	CompetitionID int64  `json:"competition_id"`
	Ticket        Ticket `json:"ticket"`
}
