package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "raffle/internal/errors"
	"raffle/internal/logger"
	"raffle/internal/metrics"
	"raffle/internal/models"

	"github.com/shopspring/decimal"
)

type CheckoutConfig struct {
	Currency       string
	PaymentTimeout time.Duration
	MaxDeposit     decimal.Decimal
}

type CheckoutService struct {
	store     Store
	cart      Cart
	payments  PaymentGateway
	publisher Publisher
	promos    *PromoEngine
	wallets   *WalletLedger
	cfg       CheckoutConfig
	now       func() time.Time
}

func NewCheckoutService(store Store, cart Cart, payments PaymentGateway, publisher Publisher, promos *PromoEngine, wallets *WalletLedger, cfg CheckoutConfig) *CheckoutService {
	if cfg.PaymentTimeout == 0 {
		cfg.PaymentTimeout = 15 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "gbp"
	}
	return &CheckoutService{
		store:     store,
		cart:      cart,
		payments:  payments,
		publisher: publisher,
		promos:    promos,
		wallets:   wallets,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Checkout turns the user's cart into an order. Reservation, wallet debit and
// (for fully covered orders) settlement share one transaction, so a failure
// at any step leaves no order, no reserved tickets and no debit behind.
func (s *CheckoutService) Checkout(ctx context.Context, userID int64, req models.CheckoutRequest) (*models.CheckoutResult, error) {
	items, err := s.cart.Snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if len(items) == 0 {
		metrics.CheckoutsTotal.WithLabelValues("rejected").Inc()
		return nil, apperrors.ErrCartEmpty
	}

	lines, err := s.priceLines(ctx, items)
	if err != nil {
		metrics.CheckoutsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.TotalPrice)
	}

	discount := decimal.Zero
	var promoCode *string
	if code := strings.TrimSpace(req.PromoCode); code != "" {
		promo, err := s.promos.Validate(ctx, code, subtotal)
		if err != nil {
			return nil, err
		}
		if !promo.Valid {
			metrics.CheckoutsTotal.WithLabelValues("rejected").Inc()
			return nil, apperrors.Validation("%s", promo.Error)
		}
		discount = decimal.Min(promo.Discount, subtotal)
		promoCode = &promo.Code
	}

	walletAmount := decimal.Zero
	if req.UseWalletBalance {
		balance, err := s.wallets.GetBalance(ctx, userID)
		if err != nil {
			return nil, err
		}
		walletAmount = decimal.Min(balance, subtotal.Sub(discount))
	}

	order := models.NewOrder(userID, lines, discount, walletAmount, promoCode)

	var reserved []models.Ticket
	var paid bool
	err = s.store.InTx(ctx, func(r Repos) error {
		reserved = nil
		if err := createOrder(ctx, r.Orders, order); err != nil {
			return err
		}

		ledger := NewTicketLedger(r.Tickets)
		for _, item := range order.Items {
			tickets, err := ledger.Reserve(ctx, item.CompetitionID, item.Quantity, userID, order.ID)
			if err != nil {
				return err
			}
			reserved = append(reserved, tickets...)
		}

		if order.WalletAmountUsed.IsPositive() {
			if err := debitForOrder(ctx, r.Wallets, order); err != nil {
				return err
			}
		}

		if order.TotalAmount.IsZero() {
			var err error
			paid, err = settleIn(ctx, r, order, reserved)
			return err
		}
		return nil
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			metrics.CheckoutsTotal.WithLabelValues("rejected").Inc()
			return nil, err
		}
		var verr *apperrors.ValidationError
		if errors.As(err, &verr) {
			metrics.CheckoutsTotal.WithLabelValues("rejected").Inc()
			return nil, err
		}
		metrics.CheckoutsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to checkout: %w", err)
	}

	s.publishOrder(ctx, models.EventOrderCreated, order, "")

	result := &models.CheckoutResult{Order: order}
	if paid {
		metrics.CheckoutsTotal.WithLabelValues("paid").Inc()
		s.afterPaid(ctx, order)
		result.InstantWins = instantWins(reserved)
		return result, nil
	}

	metrics.CheckoutsTotal.WithLabelValues("pending").Inc()
	result.RequiresPayment = true
	result.AmountToCharge = order.TotalAmount
	return result, nil
}

// priceLines checks each cart line against the competition record. Prices
// come from the competition, never from the cart.
func (s *CheckoutService) priceLines(ctx context.Context, items []models.CartItem) ([]models.OrderItem, error) {
	quantities := make(map[int64]int)
	var order []int64
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, apperrors.Validation("quantity must be positive")
		}
		if _, seen := quantities[item.CompetitionID]; !seen {
			order = append(order, item.CompetitionID)
		}
		quantities[item.CompetitionID] += item.Quantity
	}

	repos := s.store.Repos()
	ledger := NewTicketLedger(repos.Tickets)
	now := s.now()

	lines := make([]models.OrderItem, 0, len(order))
	for _, competitionID := range order {
		quantity := quantities[competitionID]

		competition, err := repos.Competitions.GetByID(ctx, competitionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get competition: %w", err)
		}
		if competition == nil {
			return nil, apperrors.Validation("competition %d not found", competitionID)
		}
		if !competition.IsOpen(now) {
			return nil, apperrors.Validation("competition %q is closed", competition.Title)
		}

		available, err := ledger.CountAvailable(ctx, competitionID)
		if err != nil {
			return nil, fmt.Errorf("failed to count available tickets: %w", err)
		}
		if available < quantity {
			return nil, &apperrors.InsufficientTicketsError{
				CompetitionID: competitionID,
				Requested:     quantity,
				Available:     available,
			}
		}

		lines = append(lines, models.NewOrderItem(competitionID, quantity, competition.TicketPrice))
	}

	return lines, nil
}

// RequestPayment creates the gateway intent for the card leg, or returns the
// one already attached to the order.
func (s *CheckoutService) RequestPayment(ctx context.Context, userID, orderID int64) (*models.PaymentIntentResponse, error) {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderPending {
		return nil, fmt.Errorf("%w: order is %s", apperrors.ErrInvalidTransition, order.Status)
	}
	if !order.TotalAmount.IsPositive() {
		return nil, apperrors.Validation("order does not require card payment")
	}

	gctx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()

	if order.PaymentIntentID != nil {
		return s.existingIntent(gctx, order, *order.PaymentIntentID)
	}

	metadata := map[string]string{
		models.MetaPurpose:     models.PurposeCompetitionBuy,
		models.MetaOrderID:     strconv.FormatInt(order.ID, 10),
		models.MetaOrderNumber: order.OrderNumber,
		models.MetaUserID:      strconv.FormatInt(order.UserID, 10),
	}
	intent, err := s.payments.CreatePaymentIntent(gctx, models.ToMinorUnits(order.TotalAmount), metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	attached, err := s.store.Repos().Orders.SetPaymentIntent(ctx, order.ID, intent.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to attach payment intent: %w", err)
	}
	if !attached {
		current, err := s.store.Repos().Orders.GetByID(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get order: %w", err)
		}
		if current == nil || current.Status != models.OrderPending || current.PaymentIntentID == nil {
			return nil, fmt.Errorf("%w: order is no longer pending", apperrors.ErrInvalidTransition)
		}
		logger.WithContext(ctx).Warn("Concurrent payment intent request, reusing attached intent",
			"order_id", order.ID, "discarded_intent", intent.ID)
		return s.existingIntent(gctx, current, *current.PaymentIntentID)
	}

	return s.intentResponse(order, intent), nil
}

func (s *CheckoutService) existingIntent(ctx context.Context, order *models.Order, intentID string) (*models.PaymentIntentResponse, error) {
	intent, err := s.payments.RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payment intent: %w", err)
	}
	return s.intentResponse(order, intent), nil
}

func (s *CheckoutService) intentResponse(order *models.Order, intent *models.PaymentIntent) *models.PaymentIntentResponse {
	currency := intent.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	return &models.PaymentIntentResponse{
		OrderID:         order.ID,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          order.TotalAmount,
		Currency:        currency,
	}
}

// Confirm is the synchronous settlement path. It races the webhook path
// safely: whichever commits the pending->paid swap first settles the order.
func (s *CheckoutService) Confirm(ctx context.Context, userID, orderID int64, paymentIntentID string) (*models.ConfirmOrderResponse, error) {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentIntentID == nil || *order.PaymentIntentID != paymentIntentID {
		return nil, apperrors.ErrPaymentMismatch
	}

	switch order.Status {
	case models.OrderPaid:
		return s.confirmation(ctx, order.ID)
	case models.OrderPending:
	default:
		return nil, fmt.Errorf("%w: order is %s", apperrors.ErrInvalidTransition, order.Status)
	}

	gctx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	intent, err := s.payments.RetrieveIntent(gctx, paymentIntentID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payment intent: %w", err)
	}

	if err := intentMatchesOrder(intent, order); err != nil {
		return nil, err
	}
	if intent.Status != models.IntentStatusSucceeded {
		return nil, fmt.Errorf("%w: intent status %s", apperrors.ErrPaymentNotCompleted, intent.Status)
	}

	if _, err := s.settle(ctx, order.ID, intent.ID); err != nil {
		return nil, err
	}

	return s.confirmation(ctx, order.ID)
}

func (s *CheckoutService) confirmation(ctx context.Context, orderID int64) (*models.ConfirmOrderResponse, error) {
	repos := s.store.Repos()
	order, err := repos.Orders.GetWithItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, apperrors.ErrNotFound
	}

	resp := &models.ConfirmOrderResponse{Order: order}
	if order.Status == models.OrderPaid {
		tickets, err := NewTicketLedger(repos.Tickets).ListByOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		resp.InstantWins = instantWins(tickets)
	}
	return resp, nil
}

func intentMatchesOrder(intent *models.PaymentIntent, order *models.Order) error {
	if id, ok := intent.Metadata[models.MetaOrderID]; ok && id != strconv.FormatInt(order.ID, 10) {
		return fmt.Errorf("%w: intent belongs to order %s", apperrors.ErrPaymentMismatch, id)
	}
	if intent.Amount != models.ToMinorUnits(order.TotalAmount) {
		return fmt.Errorf("%w: intent amount %d, order total %s", apperrors.ErrPaymentMismatch, intent.Amount, order.TotalAmount)
	}
	return nil
}

// settle moves a pending order to paid and records intentID as the paying
// intent when none is attached yet. It reports false when the order was not
// pending, which makes duplicate confirmations and webhooks no-ops.
func (s *CheckoutService) settle(ctx context.Context, orderID int64, intentID string) (bool, error) {
	var order *models.Order
	var settled bool
	err := s.store.InTx(ctx, func(r Repos) error {
		var err error
		order, err = r.Orders.GetByID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to get order: %w", err)
		}
		if order == nil {
			return apperrors.ErrNotFound
		}
		if order.Status != models.OrderPending {
			settled = false
			return nil
		}
		if order.PaymentIntentID == nil && intentID != "" {
			attached, err := r.Orders.SetPaymentIntent(ctx, order.ID, intentID)
			if err != nil {
				return fmt.Errorf("failed to attach payment intent: %w", err)
			}
			if !attached {
				return fmt.Errorf("order %s: payment intent changed during settlement", order.OrderNumber)
			}
			order.PaymentIntentID = &intentID
		}
		settled, err = settleIn(ctx, r, order, nil)
		return err
	})
	if err != nil {
		return false, err
	}

	if settled {
		s.afterPaid(ctx, order)
	}
	return settled, nil
}

// settleIn runs inside the caller's transaction. tickets may be nil, in which
// case the order's reserved tickets are loaded.
func settleIn(ctx context.Context, r Repos, order *models.Order, tickets []models.Ticket) (bool, error) {
	ok, err := transitionOrder(ctx, r.Orders, order, models.OrderPaid, nil)
	if err != nil || !ok {
		return false, err
	}

	ledger := NewTicketLedger(r.Tickets)
	if tickets == nil {
		tickets, err = ledger.ListByOrder(ctx, order.ID)
		if err != nil {
			return false, err
		}
	}

	sold, err := ledger.MarkSold(ctx, ticketIDs(tickets))
	if err != nil {
		return false, err
	}
	if int(sold) != len(tickets) {
		return false, fmt.Errorf("order %s: %d of %d tickets were still reserved", order.OrderNumber, sold, len(tickets))
	}

	if order.PromoCode != nil {
		recorded, err := r.Promos.IncrementUsage(ctx, *order.PromoCode)
		if err != nil {
			return false, fmt.Errorf("failed to increment promo usage: %w", err)
		}
		if !recorded {
			logger.WithContext(ctx).Warn("Promo usage cap reached at settlement",
				"order_id", order.ID, "code", *order.PromoCode)
		}
	}

	now := time.Now()
	order.PaidAt = &now
	return true, nil
}

func debitForOrder(ctx context.Context, wallets WalletStore, order *models.Order) error {
	wallet, err := wallets.GetByUserID(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("failed to get wallet: %w", err)
	}
	if wallet == nil {
		return &apperrors.InsufficientBalanceError{Balance: decimal.Zero, Requested: order.WalletAmountUsed}
	}

	ref := order.OrderNumber
	_, err = walletWriter{wallets}.debit(ctx, wallet.ID, order.WalletAmountUsed, models.WalletSpend,
		"Payment for order "+order.OrderNumber, &ref)
	return err
}

func (s *CheckoutService) afterPaid(ctx context.Context, order *models.Order) {
	if err := s.cart.Clear(ctx, order.UserID); err != nil {
		logger.WithContext(ctx).Error("Failed to clear cart after payment",
			"error", err,
			"order_id", order.ID)
	}
	s.publishOrder(ctx, models.EventOrderPaid, order, "")
}

// Fail closes a pending order after a declined or abandoned payment.
func (s *CheckoutService) Fail(ctx context.Context, orderID int64, reason string) (bool, error) {
	return s.closeOrder(ctx, orderID, models.OrderPending, models.OrderFailed, reason)
}

// Cancel lets the owner abandon a pending order. Cancelling twice is fine.
func (s *CheckoutService) Cancel(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case models.OrderCancelled:
		return order, nil
	case models.OrderPending:
	default:
		return nil, fmt.Errorf("%w: order is %s", apperrors.ErrInvalidTransition, order.Status)
	}

	if _, err := s.closeOrder(ctx, orderID, models.OrderPending, models.OrderCancelled, "Cancelled by customer"); err != nil {
		return nil, err
	}
	return s.loadOrder(ctx, orderID)
}

// Refund is the admin path. The card leg goes back through the gateway first;
// the wallet leg is credited by the ledger once the order is marked refunded.
func (s *CheckoutService) Refund(ctx context.Context, orderID int64, reason string) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case models.OrderRefunded:
		return order, nil
	case models.OrderPaid:
	default:
		return nil, fmt.Errorf("%w: order is %s", apperrors.ErrInvalidTransition, order.Status)
	}

	if reason == "" {
		reason = "Refunded by administrator"
	}

	if order.TotalAmount.IsPositive() {
		if order.PaymentIntentID == nil {
			return nil, fmt.Errorf("order %s has a card balance of %s but no payment intent to refund",
				order.OrderNumber, order.TotalAmount.StringFixed(2))
		}
		gctx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
		err := s.payments.Refund(gctx, *order.PaymentIntentID, models.ToMinorUnits(order.TotalAmount))
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to refund card payment: %w", err)
		}
	}

	if _, err := s.closeOrder(ctx, orderID, models.OrderPaid, models.OrderRefunded, reason); err != nil {
		return nil, err
	}
	return s.loadOrder(ctx, orderID)
}

// RefundedByGateway records a refund that was issued at the payment provider.
func (s *CheckoutService) RefundedByGateway(ctx context.Context, orderID int64) (bool, error) {
	return s.closeOrder(ctx, orderID, models.OrderPaid, models.OrderRefunded, "Refunded at payment provider")
}

// ExpirePending cancels pending orders older than maxAge. Orders whose card
// payment already went through are settled instead, and those still being
// processed by the gateway are left for the next sweep.
func (s *CheckoutService) ExpirePending(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	orders, err := s.store.Repos().Orders.GetExpiredPending(ctx, s.now().Add(-maxAge), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get expired orders: %w", err)
	}

	expired := 0
	for _, order := range orders {
		log := logger.WithContext(ctx).With("order_id", order.ID, "order_number", order.OrderNumber)

		if order.PaymentIntentID != nil {
			gctx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
			intent, err := s.payments.RetrieveIntent(gctx, *order.PaymentIntentID)
			cancel()
			if err != nil {
				log.Error("Failed to check payment before expiring order", "error", err)
				continue
			}

			switch intent.Status {
			case models.IntentStatusSucceeded:
				if err := intentMatchesOrder(intent, &order); err != nil {
					// деньги списаны, но не сходятся с заказом: разбирается вручную
					log.Error("Paid intent does not match expired order, leaving it pending", "error", err)
					continue
				}
				if _, err := s.settle(ctx, order.ID, intent.ID); err != nil {
					log.Error("Failed to settle paid order during sweep", "error", err)
				}
				continue
			case models.IntentStatusProcessing:
				continue
			case models.IntentStatusCanceled:
				// nothing left to cancel at the gateway
			default:
				gctx, cancel = context.WithTimeout(ctx, s.cfg.PaymentTimeout)
				err = s.payments.CancelIntent(gctx, intent.ID)
				cancel()
				if err != nil {
					log.Error("Failed to cancel payment intent of expired order", "error", err, "intent_id", intent.ID)
					continue
				}
			}
		}

		ok, err := s.closeOrder(ctx, order.ID, models.OrderPending, models.OrderCancelled, "Reservation expired")
		if err != nil {
			log.Error("Failed to expire order", "error", err)
			continue
		}
		if ok {
			expired++
			metrics.ExpiredOrdersTotal.Inc()
		}
	}

	return expired, nil
}

// RequestDeposit starts a wallet top-up. The wallet is credited only when the
// gateway reports success through the webhook.
func (s *CheckoutService) RequestDeposit(ctx context.Context, userID int64, amount decimal.Decimal) (*models.PaymentIntentResponse, error) {
	if !amount.IsPositive() {
		return nil, apperrors.Validation("deposit amount must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, apperrors.Validation("deposit amount has more than two decimal places")
	}
	if s.cfg.MaxDeposit.IsPositive() && amount.GreaterThan(s.cfg.MaxDeposit) {
		return nil, apperrors.Validation("deposit amount exceeds £%s", s.cfg.MaxDeposit.StringFixed(2))
	}

	metadata := map[string]string{
		models.MetaPurpose: models.PurposeWalletDeposit,
		models.MetaUserID:  strconv.FormatInt(userID, 10),
	}

	gctx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()

	intent, err := s.payments.CreatePaymentIntent(gctx, models.ToMinorUnits(amount), metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	currency := intent.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	return &models.PaymentIntentResponse{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          amount,
		Currency:        currency,
	}, nil
}

// closeOrder moves an order out of `from`, releases its tickets and credits
// back any wallet amount it used, all in one transaction. False means the
// order was no longer in `from`.
func (s *CheckoutService) closeOrder(ctx context.Context, orderID int64, from, to models.OrderStatus, reason string) (bool, error) {
	var order *models.Order
	var released int64
	var credit *models.WalletTransaction

	err := s.store.InTx(ctx, func(r Repos) error {
		released, credit = 0, nil

		var err error
		order, err = r.Orders.GetByID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to get order: %w", err)
		}
		if order == nil {
			return apperrors.ErrNotFound
		}
		if order.Status != from {
			order = nil
			return nil
		}

		ok, err := transitionOrder(ctx, r.Orders, order, to, &reason)
		if err != nil {
			return err
		}
		if !ok {
			order = nil
			return nil
		}

		released, err = NewTicketLedger(r.Tickets).Release(ctx, order.ID)
		if err != nil {
			return err
		}

		if order.WalletAmountUsed.IsPositive() {
			wallet, err := r.Wallets.GetOrCreate(ctx, order.UserID)
			if err != nil {
				return fmt.Errorf("failed to get wallet: %w", err)
			}
			txn, created, err := walletWriter{r.Wallets}.creditOnce(ctx, wallet.ID, order.WalletAmountUsed,
				models.WalletRefund, "Refund for order "+order.OrderNumber, order.OrderNumber)
			if err != nil {
				return err
			}
			if created {
				credit = txn
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if order == nil {
		return false, nil
	}

	subject := map[models.OrderStatus]string{
		models.OrderFailed:    models.EventOrderFailed,
		models.OrderCancelled: models.EventOrderCancelled,
		models.OrderRefunded:  models.EventOrderRefunded,
	}[to]
	s.publishOrder(ctx, subject, order, reason)

	if released > 0 {
		event := models.TicketsReleasedEvent{OrderID: order.ID, Count: released, Timestamp: time.Now()}
		if err := s.publisher.Publish(models.EventTicketsRelease, event); err != nil {
			logger.WithContext(ctx).Error("Failed to publish tickets released event",
				"error", err,
				"order_id", order.ID,
				"event_type", models.EventTicketsRelease)
		}
	}
	if credit != nil {
		publishWalletCredited(ctx, s.publisher, order.UserID, credit)
	}

	logger.WithContext(ctx).Info("Order closed",
		"order_id", order.ID,
		"status", to,
		"reason", reason,
		"tickets_released", released)
	return true, nil
}

func (s *CheckoutService) loadOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.store.Repos().Orders.GetWithItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, apperrors.ErrNotFound
	}
	return order, nil
}

func (s *CheckoutService) ownedOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return order, nil
}

func (s *CheckoutService) publishOrder(ctx context.Context, subject string, order *models.Order, reason string) {
	event := models.OrderEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Reason:      reason,
		Timestamp:   time.Now(),
	}

	if err := s.publisher.Publish(subject, event); err != nil {
		// Log error but don't fail the operation
		logger.WithContext(ctx).Error("Failed to publish order event",
			"error", err,
			"order_id", order.ID,
			"event_type", subject)
	}
}
