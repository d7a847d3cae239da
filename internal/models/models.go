package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketAvailable TicketStatus = "available"
	TicketReserved  TicketStatus = "reserved"
	TicketSold      TicketStatus = "sold"
)

type CompetitionStatus string

const (
	CompetitionActive CompetitionStatus = "active"
	CompetitionClosed CompetitionStatus = "closed"
	CompetitionDrawn  CompetitionStatus = "drawn"
)

// Competition represents a prize draw with a fixed pool of numbered tickets
type Competition struct {
	ID              int64             `json:"id" db:"id"`
	Title           string            `json:"title" db:"title"`
	TicketPrice     decimal.Decimal   `json:"ticket_price" db:"ticket_price"`
	TotalTickets    int               `json:"total_tickets" db:"total_tickets"`
	TicketsSold     int               `json:"tickets_sold" db:"tickets_sold"`
	Status          CompetitionStatus `json:"status" db:"status"`
	EndsAt          *time.Time        `json:"ends_at" db:"ends_at"`
	WinningTicketID *int64            `json:"winning_ticket_id" db:"winning_ticket_id"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// IsOpen reports whether tickets can still be bought at the given time
func (c *Competition) IsOpen(now time.Time) bool {
	if c.Status != CompetitionActive {
		return false
	}
	return c.EndsAt == nil || now.Before(*c.EndsAt)
}

// Ticket is one numbered row of a competition's pool
type Ticket struct {
	ID              int64        `json:"id" db:"id"`
	CompetitionID   int64        `json:"competition_id" db:"competition_id"`
	TicketNumber    int          `json:"ticket_number" db:"ticket_number"`
	Status          TicketStatus `json:"status" db:"status"`
	UserID          *int64       `json:"user_id" db:"user_id"`
	OrderID         *int64       `json:"order_id" db:"order_id"`
	PurchasedAt     *time.Time   `json:"purchased_at" db:"purchased_at"`
	IsInstantWin    bool         `json:"is_instant_win" db:"is_instant_win"`
	InstantWinPrize *string      `json:"instant_win_prize" db:"instant_win_prize"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}

// PoolStats is a snapshot of a competition's ticket pool
type PoolStats struct {
	CompetitionID int64 `json:"competition_id"`
	Total         int   `json:"total"`
	Available     int   `json:"available"`
	Reserved      int   `json:"reserved"`
	Sold          int   `json:"sold"`
}

type Wallet struct {
	ID        int64           `json:"id" db:"id"`
	UserID    int64           `json:"user_id" db:"user_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

type WalletTransactionType string

const (
	WalletDeposit     WalletTransactionType = "deposit"
	WalletSpend       WalletTransactionType = "spend"
	WalletCashback    WalletTransactionType = "cashback"
	WalletRefund      WalletTransactionType = "refund"
	WalletAdminCredit WalletTransactionType = "admin_credit"
	WalletAdminDebit  WalletTransactionType = "admin_debit"
)

// IsDebit reports whether the transaction type removes funds
func (t WalletTransactionType) IsDebit() bool {
	return t == WalletSpend || t == WalletAdminDebit
}

func (t WalletTransactionType) Valid() bool {
	switch t {
	case WalletDeposit, WalletSpend, WalletCashback, WalletRefund, WalletAdminCredit, WalletAdminDebit:
		return true
	}
	return false
}

// WalletTransaction is an append-only ledger row. Amount is signed.
type WalletTransaction struct {
	ID           int64                 `json:"id" db:"id"`
	WalletID     int64                 `json:"wallet_id" db:"wallet_id"`
	Type         WalletTransactionType `json:"type" db:"type"`
	Amount       decimal.Decimal       `json:"amount" db:"amount"`
	BalanceAfter decimal.Decimal       `json:"balance_after" db:"balance_after"`
	Description  string                `json:"description" db:"description"`
	ReferenceID  *string               `json:"reference_id" db:"reference_id"`
	CreatedAt    time.Time             `json:"created_at" db:"created_at"`
}

type TransactionFilter struct {
	Type   *WalletTransactionType
	Limit  int
	Offset int
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type PromoCode struct {
	ID            int64           `json:"id" db:"id"`
	Code          string          `json:"code" db:"code"`
	DiscountType  DiscountType    `json:"discount_type" db:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value" db:"discount_value"`
	MinOrderValue decimal.Decimal `json:"min_order_value" db:"min_order_value"`
	MaxUses       *int            `json:"max_uses" db:"max_uses"`
	CurrentUses   int             `json:"current_uses" db:"current_uses"`
	IsActive      bool            `json:"is_active" db:"is_active"`
	ValidFrom     *time.Time      `json:"valid_from" db:"valid_from"`
	ValidUntil    *time.Time      `json:"valid_until" db:"valid_until"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// CartItem is one line of the cart collaborator's snapshot
type CartItem struct {
	CompetitionID int64           `json:"competition_id"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
}
