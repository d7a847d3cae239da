package external

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"raffle/internal/models"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"
)

type PaymentConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	Timeout       time.Duration
}

// PaymentClient talks to Stripe. It implements service.PaymentGateway.
type PaymentClient struct {
	api           *client.API
	webhookSecret string
	currency      string
}

func NewPaymentClient(cfg PaymentConfig) *PaymentClient {
	if cfg.Currency == "" {
		cfg.Currency = "gbp"
	}

	return &PaymentClient{
		api:           client.New(cfg.SecretKey, nil),
		webhookSecret: cfg.WebhookSecret,
		currency:      cfg.Currency,
	}
}

func (pc *PaymentClient) CreatePaymentIntent(ctx context.Context, amountMinor int64, metadata map[string]string) (*models.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amountMinor),
		Currency:           stripe.String(pc.currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	// one intent per order; retries of the same request reuse it
	if orderID, ok := metadata[models.MetaOrderID]; ok {
		params.SetIdempotencyKey("order-" + orderID + "-" + strconv.FormatInt(amountMinor, 10))
	}

	pi, err := pc.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}
	return toPaymentIntent(pi), nil
}

func (pc *PaymentClient) RetrieveIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := pc.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payment intent %s: %w", intentID, err)
	}
	return toPaymentIntent(pi), nil
}

// CancelIntent voids an unpaid intent so a late card attempt cannot succeed
// after the reservation was released.
func (pc *PaymentClient) CancelIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx

	if _, err := pc.api.PaymentIntents.Cancel(intentID, params); err != nil {
		return fmt.Errorf("failed to cancel payment intent %s: %w", intentID, err)
	}
	return nil
}

func (pc *PaymentClient) Refund(ctx context.Context, intentID string, amountMinor int64) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Amount:        stripe.Int64(amountMinor),
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + intentID)

	if _, err := pc.api.Refunds.New(params); err != nil {
		return fmt.Errorf("failed to refund payment intent %s: %w", intentID, err)
	}
	return nil
}

// VerifyWebhook checks the Stripe-Signature header against the endpoint
// secret and returns the event with its raw data.object.
func (pc *PaymentClient) VerifyWebhook(payload []byte, signature string) (*models.GatewayEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, pc.webhookSecret)
	if err != nil {
		return nil, err
	}

	var object []byte
	if event.Data != nil {
		object = event.Data.Raw
	}
	return &models.GatewayEvent{ID: event.ID, Type: event.Type, Object: object}, nil
}

func toPaymentIntent(pi *stripe.PaymentIntent) *models.PaymentIntent {
	out := &models.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
	if pi.LastPaymentError != nil {
		out.LastPaymentError = &models.PaymentError{
			Code:    string(pi.LastPaymentError.Code),
			Message: pi.LastPaymentError.Msg,
		}
	}
	return out
}
