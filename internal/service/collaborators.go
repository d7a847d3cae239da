package service

import (
	"context"

	"raffle/internal/models"
)

// Cart is the per-user basket kept outside the relational store. Checkout only
// reads a snapshot and clears it once an order is paid.
type Cart interface {
	Snapshot(ctx context.Context, userID int64) ([]models.CartItem, error)
	Add(ctx context.Context, userID int64, item models.CartItem) error
	Remove(ctx context.Context, userID, competitionID int64) error
	Clear(ctx context.Context, userID int64) error
}

// PaymentGateway amounts are integer minor units (pence).
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, amountMinor int64, metadata map[string]string) (*models.PaymentIntent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error)
	CancelIntent(ctx context.Context, intentID string) error
	Refund(ctx context.Context, intentID string, amountMinor int64) error
	VerifyWebhook(payload []byte, signature string) (*models.GatewayEvent, error)
}

// Publisher emits domain events. Delivery is best effort.
type Publisher interface {
	Publish(subject string, data any) error
}
