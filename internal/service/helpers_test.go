package service_test

import (
	"context"
	"testing"
	"time"

	"raffle/internal/models"
	"raffle/internal/service"
	"raffle/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	ctx     context.Context
	store   *testutil.MemStore
	cart    *testutil.FakeCart
	gateway *testutil.FakeGateway
	events  *testutil.RecordingPublisher
	svc     *service.Services
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := testutil.NewMemStore()
	cart := testutil.NewFakeCart()
	gateway := testutil.NewFakeGateway()
	events := &testutil.RecordingPublisher{}

	svc := service.NewServices(store, cart, gateway, events, service.CheckoutConfig{
		Currency:       "gbp",
		PaymentTimeout: time.Second,
		MaxDeposit:     dec("500"),
	})

	return &testEnv{
		ctx:     context.Background(),
		store:   store,
		cart:    cart,
		gateway: gateway,
		events:  events,
		svc:     svc,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (e *testEnv) competition(t *testing.T, price string, total int, instantWins map[int]string) *models.Competition {
	t.Helper()
	c, err := e.svc.Competitions.Create(e.ctx, &models.CreateCompetitionRequest{
		Title:        "Test draw",
		TicketPrice:  dec(price),
		TotalTickets: total,
		InstantWins:  instantWins,
	})
	require.NoError(t, err)
	return c
}

func (e *testEnv) fund(t *testing.T, userID int64, amount string) *models.Wallet {
	t.Helper()
	wallet, err := e.svc.Wallets.GetOrCreate(e.ctx, userID)
	require.NoError(t, err)
	if dec(amount).IsPositive() {
		_, err = e.svc.Wallets.Credit(e.ctx, wallet.ID, dec(amount), models.WalletDeposit, "seed", nil)
		require.NoError(t, err)
	}
	return wallet
}

func (e *testEnv) addToCart(t *testing.T, userID int64, c *models.Competition, quantity int) {
	t.Helper()
	require.NoError(t, e.cart.Add(e.ctx, userID, models.CartItem{
		CompetitionID: c.ID,
		Quantity:      quantity,
		UnitPrice:     c.TicketPrice,
	}))
}

func (e *testEnv) balance(t *testing.T, userID int64) string {
	t.Helper()
	b, err := e.svc.Wallets.GetBalance(e.ctx, userID)
	require.NoError(t, err)
	return b.StringFixed(2)
}

func (e *testEnv) stats(t *testing.T, c *models.Competition) *models.PoolStats {
	t.Helper()
	s, err := e.svc.Competitions.Progress(e.ctx, c.ID)
	require.NoError(t, err)
	return s
}

func (e *testEnv) order(t *testing.T, id int64) *models.Order {
	t.Helper()
	o, err := e.svc.Orders.GetWithItems(e.ctx, id)
	require.NoError(t, err)
	return o
}

// pendingCardOrder checks out quantity tickets and attaches a payment intent.
func (e *testEnv) pendingCardOrder(t *testing.T, userID int64, c *models.Competition, quantity int, useWallet bool) (*models.Order, string) {
	t.Helper()
	e.addToCart(t, userID, c, quantity)

	result, err := e.svc.Checkout.Checkout(e.ctx, userID, models.CheckoutRequest{UseWalletBalance: useWallet})
	require.NoError(t, err)
	require.True(t, result.RequiresPayment)

	intent, err := e.svc.Checkout.RequestPayment(e.ctx, userID, result.Order.ID)
	require.NoError(t, err)
	return result.Order, intent.PaymentIntentID
}

func (e *testEnv) deliver(t *testing.T, eventID, eventType string, object any) {
	t.Helper()
	require.NoError(t, e.svc.Webhooks.Handle(e.ctx, testutil.Event(eventID, eventType, object), e.gateway.Secret))
}
