package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// NATS Event Types
const (
	EventOrderCreated   = "order.created"
	EventOrderPaid      = "order.paid"
	EventOrderFailed    = "order.failed"
	EventOrderCancelled = "order.cancelled"
	EventOrderRefunded  = "order.refunded"
	EventTicketsRelease = "tickets.released"
	EventWalletCredited = "wallet.credited"
)

// OrderEvent is published on every order status change
type OrderEvent struct {
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      int64           `json:"user_id"`
	Status      OrderStatus     `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Reason      string          `json:"reason,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// TicketsReleasedEvent represents tickets going back to the pool
type TicketsReleasedEvent struct {
	OrderID   int64     `json:"order_id"`
	Count     int64     `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// WalletCreditedEvent represents a deposit, refund or admin credit
type WalletCreditedEvent struct {
	WalletID     int64                 `json:"wallet_id"`
	UserID       int64                 `json:"user_id"`
	Type         WalletTransactionType `json:"type"`
	Amount       decimal.Decimal       `json:"amount"`
	BalanceAfter decimal.Decimal       `json:"balance_after"`
	ReferenceID  string                `json:"reference_id,omitempty"`
	Timestamp    time.Time             `json:"timestamp"`
}

// Payment gateway event types (Stripe naming)
const (
	GatewayPaymentSucceeded = "payment_intent.succeeded"
	GatewayPaymentFailed    = "payment_intent.payment_failed"
	GatewayChargeRefunded   = "charge.refunded"
)

// Payment intent metadata
const (
	MetaPurpose            = "purpose"
	MetaOrderID            = "order_id"
	MetaOrderNumber        = "order_number"
	MetaUserID             = "user_id"
	PurposeCompetitionBuy  = "competition_purchase"
	PurposeWalletDeposit   = "wallet_deposit"
	IntentStatusSucceeded  = "succeeded"
	IntentStatusProcessing = "processing"
	IntentStatusCanceled   = "canceled"
)

// GatewayEvent is a verified webhook delivery
type GatewayEvent struct {
	ID     string
	Type   string
	Object []byte // raw JSON of data.object
}

// PaymentIntent is the gateway's view of a payment
type PaymentIntent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret,omitempty"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"metadata"`

	LastPaymentError *PaymentError `json:"last_payment_error,omitempty"`
}

type PaymentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Charge is the subset of a gateway charge object the reconciler reads
type Charge struct {
	ID             string `json:"id"`
	PaymentIntent  string `json:"payment_intent"`
	Amount         int64  `json:"amount"`
	AmountRefunded int64  `json:"amount_refunded"`
	Refunded       bool   `json:"refunded"`
}
