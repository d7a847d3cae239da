package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderFailed    OrderStatus = "failed"
	OrderRefunded  OrderStatus = "refunded"
	OrderCancelled OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentWallet PaymentMethod = "wallet"
	PaymentCard   PaymentMethod = "card"
	PaymentHybrid PaymentMethod = "hybrid"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending: {OrderPaid, OrderFailed, OrderCancelled},
	OrderPaid:    {OrderRefunded},
}

// CanTransition reports whether the order state machine allows from -> to
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderFailed, OrderRefunded, OrderCancelled:
		return true
	}
	return false
}

type Order struct {
	ID               int64           `json:"id" db:"id"`
	UserID           int64           `json:"user_id" db:"user_id"`
	OrderNumber      string          `json:"order_number" db:"order_number"`
	Status           OrderStatus     `json:"status" db:"status"`
	Subtotal         decimal.Decimal `json:"subtotal" db:"subtotal"`
	DiscountAmount   decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	WalletAmountUsed decimal.Decimal `json:"wallet_amount_used" db:"wallet_amount_used"`
	TotalAmount      decimal.Decimal `json:"total_amount" db:"total_amount"`
	PaymentMethod    PaymentMethod   `json:"payment_method" db:"payment_method"`
	PaymentIntentID  *string         `json:"payment_intent_id" db:"payment_intent_id"`
	PromoCode        *string         `json:"promo_code" db:"promo_code"`
	FailureReason    *string         `json:"failure_reason,omitempty" db:"failure_reason"`
	PaidAt           *time.Time      `json:"paid_at" db:"paid_at"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
	Items            []OrderItem     `json:"items,omitempty"` // Not from orders table, filled separately
}

type OrderItem struct {
	ID            int64           `json:"id" db:"id"`
	OrderID       int64           `json:"order_id" db:"order_id"`
	CompetitionID int64           `json:"competition_id" db:"competition_id"`
	Quantity      int             `json:"quantity" db:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price" db:"unit_price"`
	TotalPrice    decimal.Decimal `json:"total_price" db:"total_price"`
}

// NewOrderItem prices a line item
func NewOrderItem(competitionID int64, quantity int, unitPrice decimal.Decimal) OrderItem {
	return OrderItem{
		CompetitionID: competitionID,
		Quantity:      quantity,
		UnitPrice:     unitPrice,
		TotalPrice:    unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// NewOrder builds a pending order. Discount and wallet amounts are clamped so
// that total = subtotal - discount - wallet holds exactly and is never negative.
func NewOrder(userID int64, items []OrderItem, discount, walletAmountUsed decimal.Decimal, promoCode *string) *Order {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.TotalPrice)
	}

	discount = clamp(discount, subtotal)
	walletAmountUsed = clamp(walletAmountUsed, subtotal.Sub(discount))
	total := subtotal.Sub(discount).Sub(walletAmountUsed)

	method := PaymentCard
	switch {
	case total.IsZero():
		method = PaymentWallet
	case walletAmountUsed.IsPositive():
		method = PaymentHybrid
	}

	return &Order{
		UserID:           userID,
		OrderNumber:      GenerateOrderNumber(time.Now()),
		Status:           OrderPending,
		Subtotal:         subtotal,
		DiscountAmount:   discount,
		WalletAmountUsed: walletAmountUsed,
		TotalAmount:      total,
		PaymentMethod:    method,
		PromoCode:        promoCode,
		Items:            items,
	}
}

func clamp(v, max decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}

// TotalIsConsistent checks total = subtotal - discount - wallet and total >= 0
func (o *Order) TotalIsConsistent() bool {
	expected := o.Subtotal.Sub(o.DiscountAmount).Sub(o.WalletAmountUsed)
	return o.TotalAmount.Equal(expected) && !o.TotalAmount.IsNegative()
}

// TicketCount sums quantities over the order's items
func (o *Order) TicketCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// GenerateOrderNumber returns a timestamp plus random suffix, e.g. RF-20261016103000-9F2C1A7B
func GenerateOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("RF-%s-%s", now.UTC().Format("20060102150405"), suffix)
}

// ToMinorUnits converts a decimal amount to pence for the payment gateway
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits converts pence back to a decimal amount
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
