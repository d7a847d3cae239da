package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	apperrors "raffle/internal/errors"
	"raffle/internal/logger"
	"raffle/internal/metrics"
	"raffle/internal/models"
)

// WebhookService converges orders and wallets with the gateway's event
// stream. Deliveries are at-least-once and may arrive in any order.
type WebhookService struct {
	store    Store
	payments PaymentGateway
	checkout *CheckoutService
	wallets  *WalletLedger
}

func NewWebhookService(store Store, payments PaymentGateway, checkout *CheckoutService, wallets *WalletLedger) *WebhookService {
	return &WebhookService{
		store:    store,
		payments: payments,
		checkout: checkout,
		wallets:  wallets,
	}
}

// Handle verifies and processes one delivery. Only a bad signature is
// returned as an error; processing failures are logged and swallowed so the
// gateway does not keep retrying events that cannot succeed.
func (s *WebhookService) Handle(ctx context.Context, payload []byte, signature string) error {
	event, err := s.payments.VerifyWebhook(payload, signature)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		logger.WithContext(ctx).Warn("Webhook signature verification failed", "error", err)
		return apperrors.ErrInvalidSignature
	}

	log := logger.WithContext(ctx).With("event_id", event.ID, "event_type", event.Type)
	if err := s.Process(ctx, event); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "error").Inc()
		log.Error("Failed to process webhook event", "error", err)
		return nil
	}

	metrics.WebhookEventsTotal.WithLabelValues(event.Type, "ok").Inc()
	return nil
}

// Process applies a verified event. Every branch is safe to repeat.
func (s *WebhookService) Process(ctx context.Context, event *models.GatewayEvent) error {
	log := logger.WithContext(ctx).With("event_id", event.ID, "event_type", event.Type)

	switch event.Type {
	case models.GatewayPaymentSucceeded:
		intent, err := decodeIntent(event)
		if err != nil {
			return err
		}
		switch intent.Metadata[models.MetaPurpose] {
		case models.PurposeWalletDeposit:
			return s.depositSucceeded(ctx, log, intent)
		case models.PurposeCompetitionBuy:
			return s.purchaseSucceeded(ctx, log, intent)
		default:
			log.Info("Ignoring payment for unknown purpose", "purpose", intent.Metadata[models.MetaPurpose])
			return nil
		}

	case models.GatewayPaymentFailed:
		intent, err := decodeIntent(event)
		if err != nil {
			return err
		}
		return s.paymentFailed(ctx, log, intent)

	case models.GatewayChargeRefunded:
		var charge models.Charge
		if err := json.Unmarshal(event.Object, &charge); err != nil {
			return fmt.Errorf("failed to decode charge: %w", err)
		}
		return s.chargeRefunded(ctx, log, &charge)

	default:
		log.Debug("Ignoring unhandled webhook event")
		return nil
	}
}

func (s *WebhookService) purchaseSucceeded(ctx context.Context, log *slog.Logger, intent *models.PaymentIntent) error {
	order, err := s.orderForIntent(ctx, intent)
	if err != nil {
		return err
	}
	if order == nil {
		log.Warn("Payment succeeded for unknown order", "intent_id", intent.ID)
		return nil
	}

	switch order.Status {
	case models.OrderPaid, models.OrderRefunded:
		log.Info("Duplicate payment success, order already settled", "order_id", order.ID, "status", order.Status)
		return nil

	case models.OrderFailed, models.OrderCancelled:
		// Money arrived for an order that is already closed and whose tickets
		// may be resold. Send the card leg back instead of reopening it.
		log.Warn("Payment succeeded for closed order, refunding", "order_id", order.ID, "status", order.Status)
		gctx, cancel := context.WithTimeout(ctx, s.checkout.cfg.PaymentTimeout)
		defer cancel()
		if err := s.payments.Refund(gctx, intent.ID, intent.Amount); err != nil {
			return fmt.Errorf("failed to refund payment for closed order %d: %w", order.ID, err)
		}
		return nil
	}

	if err := intentMatchesOrder(intent, order); err != nil {
		return err
	}

	settled, err := s.checkout.settle(ctx, order.ID, intent.ID)
	if err != nil {
		return fmt.Errorf("failed to settle order %d: %w", order.ID, err)
	}
	log.Info("Payment succeeded", "order_id", order.ID, "settled", settled)
	return nil
}

func (s *WebhookService) depositSucceeded(ctx context.Context, log *slog.Logger, intent *models.PaymentIntent) error {
	userID, err := strconv.ParseInt(intent.Metadata[models.MetaUserID], 10, 64)
	if err != nil {
		return fmt.Errorf("deposit intent %s has no valid user id: %w", intent.ID, err)
	}

	wallet, err := s.wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	txn, created, err := s.wallets.CreditOnce(ctx, wallet.ID, models.FromMinorUnits(intent.Amount),
		models.WalletDeposit, "Wallet top-up", intent.ID)
	if err != nil {
		return fmt.Errorf("failed to credit deposit: %w", err)
	}

	log.Info("Wallet deposit processed",
		"user_id", userID,
		"amount", txn.Amount,
		"duplicate", !created)
	return nil
}

func (s *WebhookService) paymentFailed(ctx context.Context, log *slog.Logger, intent *models.PaymentIntent) error {
	if intent.Metadata[models.MetaPurpose] == models.PurposeWalletDeposit {
		log.Info("Wallet deposit payment failed", "intent_id", intent.ID)
		return nil
	}

	order, err := s.orderForIntent(ctx, intent)
	if err != nil {
		return err
	}
	if order == nil {
		log.Warn("Payment failed for unknown order", "intent_id", intent.ID)
		return nil
	}

	reason := "Payment failed"
	if intent.LastPaymentError != nil && intent.LastPaymentError.Message != "" {
		reason = intent.LastPaymentError.Message
	}

	closed, err := s.checkout.Fail(ctx, order.ID, reason)
	if err != nil {
		return fmt.Errorf("failed to fail order %d: %w", order.ID, err)
	}
	log.Info("Payment failed", "order_id", order.ID, "closed", closed)
	return nil
}

func (s *WebhookService) chargeRefunded(ctx context.Context, log *slog.Logger, charge *models.Charge) error {
	if charge.PaymentIntent == "" {
		log.Info("Refunded charge has no payment intent", "charge_id", charge.ID)
		return nil
	}
	if !charge.Refunded {
		log.Warn("Partial refund issued at payment provider, order left as is",
			"charge_id", charge.ID,
			"amount_refunded", charge.AmountRefunded)
		return nil
	}

	order, err := s.store.Repos().Orders.GetByPaymentIntentID(ctx, charge.PaymentIntent)
	if err != nil {
		return fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		log.Info("Refund for payment without order", "intent_id", charge.PaymentIntent)
		return nil
	}

	refunded, err := s.checkout.RefundedByGateway(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("failed to refund order %d: %w", order.ID, err)
	}
	log.Info("Charge refunded", "order_id", order.ID, "refunded", refunded)
	return nil
}

// orderForIntent finds the order by the attached intent id first and falls
// back to the order id carried in metadata.
func (s *WebhookService) orderForIntent(ctx context.Context, intent *models.PaymentIntent) (*models.Order, error) {
	orders := s.store.Repos().Orders

	order, err := orders.GetByPaymentIntentID(ctx, intent.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order != nil {
		return order, nil
	}

	raw, ok := intent.Metadata[models.MetaOrderID]
	if !ok {
		return nil, nil
	}
	orderID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("intent %s has invalid order id %q", intent.ID, raw)
	}

	order, err = orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order != nil && order.PaymentIntentID != nil && *order.PaymentIntentID != intent.ID {
		return nil, fmt.Errorf("%w: order %d is attached to another intent", apperrors.ErrPaymentMismatch, orderID)
	}
	return order, nil
}

func decodeIntent(event *models.GatewayEvent) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := json.Unmarshal(event.Object, &intent); err != nil {
		return nil, fmt.Errorf("failed to decode payment intent: %w", err)
	}
	if intent.ID == "" {
		return nil, fmt.Errorf("payment intent without id")
	}
	return &intent, nil
}
