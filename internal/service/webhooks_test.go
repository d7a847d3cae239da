package service_test

import (
	"strconv"
	"testing"

	apperrors "raffle/internal/errors"
	"raffle/internal/models"
	"raffle/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookPaymentFailedTwice(t *testing.T) {
	env := newTestEnv(t)
	comp := env.competition(t, "3", 10, nil)
	order, intentID := env.pendingCardOrder(t, 1, comp, 4, false)

	intent := env.gateway.Intent(intentID)
	intent.Status = "requires_payment_method"
	intent.LastPaymentError = &models.PaymentError{Code: "card_declined", Message: "Your card was declined."}

	env.deliver(t, "evt_fail", models.GatewayPaymentFailed, intent)
	env.deliver(t, "evt_fail", models.GatewayPaymentFailed, intent)

	failed := env.order(t, order.ID)
	assert.Equal(t, models.OrderFailed, failed.Status)
	require.NotNil(t, failed.FailureReason)
	assert.Equal(t, "Your card was declined.", *failed.FailureReason)

	assert.Equal(t, 10, env.stats(t, comp).Available)
	assert.Equal(t, 1, env.events.Count(models.EventOrderFailed))
	assert.Equal(t, 1, env.events.Count(models.EventTicketsRelease))
}

func TestWebhookPaymentFailedCreditsWalletShare(t *testing.T) {
	env := newTestEnv(t)
	comp := env.competition(t, "5", 10, nil)
	env.fund(t, 1, "3")
	_, intentID := env.pendingCardOrder(t, 1, comp, 1, true)
	assert.Equal(t, "0.00", env.balance(t, 1))

	env.deliver(t, "evt_fail", models.GatewayPaymentFailed, env.gateway.Intent(intentID))
	env.deliver(t, "evt_fail_retry", models.GatewayPaymentFailed, env.gateway.Intent(intentID))

	assert.Equal(t, "3.00", env.balance(t, 1))
}

func TestWebhookPaymentSucceededIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	comp := env.competition(t, "2", 10, map[int]string{1: "Signed shirt"})
	order, intentID := env.pendingCardOrder(t, 1, comp, 3, false)

	env.gateway.SetStatus(intentID, models.IntentStatusSucceeded)
	intent := env.gateway.Intent(intentID)
	env.deliver(t, "evt_ok", models.GatewayPaymentSucceeded, intent)
	env.deliver(t, "evt_ok", models.GatewayPaymentSucceeded, intent)

	assert.Equal(t, models.OrderPaid, env.order(t, order.ID).Status)
	assert.Equal(t, 3, env.stats(t, comp).Sold)
	assert.Equal(t, 1, env.events.Count(models.EventOrderPaid))

	// confirming after the webhook returns the settled order
	resp, err := env.svc.Checkout.Confirm(env.ctx, 1, order.ID, intentID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, resp.Order.Status)
	require.Len(t, resp.InstantWins, 1)
	assert.Equal(t, "Signed shirt", *resp.InstantWins[0].InstantWinPrize)
}

func TestWebhookFindsOrderByMetadata(t *testing.T) {
	env := newTestEnv(t)
	comp := env.competition(t, "2", 10, nil)
	env.addToCart(t, 1, comp, 1)
	result, err := env.svc.Checkout.Checkout(env.ctx, 1, models.CheckoutRequest{})
	require.NoError(t, err)

	// intent created at the gateway but never attached to the order
	intent := models.PaymentIntent{
		ID:     "pi_detached",
		Status: models.IntentStatusSucceeded,
		Amount: 200,
		Metadata: map[string]string{
			models.MetaPurpose: models.PurposeCompetitionBuy,
			models.MetaOrderID: strconv.FormatInt(result.Order.ID, 10),
		},
	}
	env.deliver(t, "evt_meta", models.GatewayPaymentSucceeded, intent)

	paid := env.order(t, result.Order.ID)
	assert.Equal(t, models.OrderPaid, paid.Status)
	require.NotNil(t, paid.PaymentIntentID)
	assert.Equal(t, "pi_detached", *paid.PaymentIntentID)

	refunded, err := env.svc.Checkout.Refund(env.ctx, result.Order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderRefunded, refunded.Status)
	require.Len(t, env.gateway.Refunds, 1)
	assert.Equal(t, "pi_detached", env.gateway.Refunds[0].IntentID)
	assert.Equal(t, int64(200), env.gateway.Refunds[0].AmountMinor)
}

func TestWebhookChargeRefundedForOrderSettledByMetadata(t *testing.T) {
	env := newTestEnv(t)
	comp := env.competition(t, "2", 10, nil)
	env.addToCart(t, 1, comp, 1)
	result, err := env.svc.Checkout.Checkout(env.ctx, 1, models.CheckoutRequest{})
	require.NoError(t, err)

	env.deliver(t, "evt_meta_paid", models.GatewayPaymentSucceeded, models.PaymentIntent{
		ID:     "pi_detached",
		Status: models.IntentStatusSucceeded,
		Amount: 200,
		Metadata: map[string]string{
			models.MetaPurpose: models.PurposeCompetitionBuy,
			models.MetaOrderID: strconv.FormatInt(result.Order.ID, 10),
		},
	})
	env.deliver(t, "evt_meta_refund", models.GatewayChargeRefunded, models.Charge{
		ID:             "ch_1",
		PaymentIntent:  "pi_detached",
		Amount:         200,
		AmountRefunded: 200,
		Refunded:       true,
	})

	assert.Equal(t, models.OrderRefunded, env.order(t, result.Order.ID).Status)
	assert.Equal(t, 10, env.stats(t, comp).Available)
}

func TestWebhookAmountMismatchDoesNotSettle(t *testing.T) {
	env := newTestEnv(t)
	comp := env.competition(t, "2", 10, nil)
	order, intentID := env.pendingCardOrder(t, 1, comp, 2, false)

	intent := env.gateway.Intent(intentID)
	intent.Status = models.IntentStatusSucceeded
	intent.Amount = 100
	env.deliver(t, "evt_short", models.GatewayPaymentSucceeded, intent)

	assert.Equal(t, models.OrderPending, env.order(t, order.ID).Status)
	assert.Equal(t, 2, env.stats(t, comp).Reserved)
}

func TestWebhookSuccessAfterCancelRefundsCard(t *testing.T) {
	env := newTestEnv(t)
	comp := env.competition(t, "5", 10, nil)
	order, intentID := env.pendingCardOrder(t, 1, comp, 2, false)

	_, err := env.svc.Checkout.Cancel(env.ctx, 1, order.ID)
	require.NoError(t, err)

	env.gateway.SetStatus(intentID, models.IntentStatusSucceeded)
	env.deliver(t, "evt_late", models.GatewayPaymentSucceeded, env.gateway.Intent(intentID))

	assert.Equal(t, models.OrderCancelled, env.order(t, order.ID).Status)
	assert.Equal(t, 10, env.stats(t, comp).Available)
	require.Len(t, env.gateway.Refunds, 1)
	assert.Equal(t, intentID, env.gateway.Refunds[0].IntentID)
	assert.Equal(t, int64(1000), env.gateway.Refunds[0].AmountMinor)
}

func TestWebhookDepositCreditsOnce(t *testing.T) {
	env := newTestEnv(t)

	deposit, err := env.svc.Checkout.RequestDeposit(env.ctx, 9, dec("25"))
	require.NoError(t, err)
	env.gateway.SetStatus(deposit.PaymentIntentID, models.IntentStatusSucceeded)
	intent := env.gateway.Intent(deposit.PaymentIntentID)

	env.deliver(t, "evt_dep", models.GatewayPaymentSucceeded, intent)
	env.deliver(t, "evt_dep", models.GatewayPaymentSucceeded, intent)

	assert.Equal(t, "25.00", env.balance(t, 9))
	assert.Equal(t, 1, env.events.Count(models.EventWalletCredited))

	wallet, err := env.svc.Wallets.GetOrCreate(env.ctx, 9)
	require.NoError(t, err)
	txns := env.store.WalletTransactions(wallet.ID)
	require.Len(t, txns, 1)
	assert.Equal(t, models.WalletDeposit, txns[0].Type)
	assert.Equal(t, deposit.PaymentIntentID, *txns[0].ReferenceID)
}

func TestWebhookChargeRefunded(t *testing.T) {
	env := newTestEnv(t)
	comp := env.competition(t, "5", 10, nil)
	env.fund(t, 1, "2")
	order, intentID := env.pendingCardOrder(t, 1, comp, 2, true)

	env.gateway.SetStatus(intentID, models.IntentStatusSucceeded)
	env.deliver(t, "evt_ok", models.GatewayPaymentSucceeded, env.gateway.Intent(intentID))
	require.Equal(t, models.OrderPaid, env.order(t, order.ID).Status)

	partial := models.Charge{ID: "ch_1", PaymentIntent: intentID, Amount: 800, AmountRefunded: 300}
	env.deliver(t, "evt_partial", models.GatewayChargeRefunded, partial)
	assert.Equal(t, models.OrderPaid, env.order(t, order.ID).Status)

	full := models.Charge{ID: "ch_1", PaymentIntent: intentID, Amount: 800, AmountRefunded: 800, Refunded: true}
	env.deliver(t, "evt_full", models.GatewayChargeRefunded, full)
	env.deliver(t, "evt_full", models.GatewayChargeRefunded, full)

	assert.Equal(t, models.OrderRefunded, env.order(t, order.ID).Status)
	assert.Equal(t, 10, env.stats(t, comp).Available)
	assert.Equal(t, "2.00", env.balance(t, 1))
	assert.Empty(t, env.gateway.Refunds, "provider already refunded the card")
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	comp := env.competition(t, "5", 10, nil)
	order, intentID := env.pendingCardOrder(t, 1, comp, 1, false)

	env.gateway.SetStatus(intentID, models.IntentStatusSucceeded)
	body := testutil.Event("evt_forged", models.GatewayPaymentSucceeded, env.gateway.Intent(intentID))

	err := env.svc.Webhooks.Handle(env.ctx, body, "whsec_wrong")
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
	assert.Equal(t, models.OrderPending, env.order(t, order.ID).Status)
}

func TestWebhookIgnoresUnknownEvents(t *testing.T) {
	env := newTestEnv(t)
	env.deliver(t, "evt_other", "customer.created", map[string]string{"id": "cus_1"})
	env.deliver(t, "evt_orphan", models.GatewayPaymentFailed, models.PaymentIntent{ID: "pi_unknown"})
	assert.Empty(t, env.events.Subjects)
}
