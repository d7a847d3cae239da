package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"raffle/internal/database"
	"raffle/internal/models"
	"raffle/internal/service"
	"raffle/internal/testutil"

	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startPostgres runs a throwaway Postgres container with migrations applied.
// Skipped in -short mode and when no Docker daemon is reachable.
func startPostgres(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=raffle",
			"POSTGRES_PASSWORD=raffle",
			"POSTGRES_DB=raffle",
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })
	require.NoError(t, resource.Expire(300))

	port, err := strconv.Atoi(resource.GetPort("5432/tcp"))
	require.NoError(t, err)

	cfg := database.Config{
		Host:               "localhost",
		Port:               port,
		User:               "raffle",
		Password:           "raffle",
		DBName:             "raffle",
		SSLMode:            "disable",
		MaxOpenConns:       20,
		MaxIdleConns:       5,
		ConnMaxLifetimeMin: 5,
		ConnMaxIdleTimeMin: 1,
	}

	pool.MaxWait = 60 * time.Second
	require.NoError(t, pool.Retry(func() error {
		db, err := sql.Open("postgres", cfg.DSN())
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Ping()
	}))

	db, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.RunMigrations())
	return db
}

func newPostgresEnv(t *testing.T) *testEnv {
	t.Helper()
	db := startPostgres(t)

	cart := testutil.NewFakeCart()
	gateway := testutil.NewFakeGateway()
	events := &testutil.RecordingPublisher{}
	svc := service.NewServices(service.NewPostgresStore(db), cart, gateway, events, service.CheckoutConfig{
		Currency:       "gbp",
		PaymentTimeout: time.Second,
		MaxDeposit:     dec("500"),
	})

	return &testEnv{
		ctx:     context.Background(),
		cart:    cart,
		gateway: gateway,
		events:  events,
		svc:     svc,
	}
}

func TestPostgresCheckoutLifecycle(t *testing.T) {
	env := newPostgresEnv(t)
	comp := env.competition(t, "2.50", 20, map[int]string{1: "£25 credit"})

	t.Run("wallet checkout settles and sells tickets", func(t *testing.T) {
		env.fund(t, 1, "10")
		env.addToCart(t, 1, comp, 2)

		result, err := env.svc.Checkout.Checkout(env.ctx, 1, models.CheckoutRequest{UseWalletBalance: true})
		require.NoError(t, err)
		assert.False(t, result.RequiresPayment)
		assert.Equal(t, models.OrderPaid, result.Order.Status)
		require.Len(t, result.InstantWins, 1)
		assert.Equal(t, 1, result.InstantWins[0].TicketNumber)

		assert.Equal(t, "5.00", env.balance(t, 1))
		stats := env.stats(t, comp)
		assert.Equal(t, 2, stats.Sold)
		assert.Equal(t, 18, stats.Available)
	})

	t.Run("card failure releases tickets and refunds wallet share", func(t *testing.T) {
		env.fund(t, 2, "1")
		order, intentID := env.pendingCardOrder(t, 2, comp, 4, true)
		assert.Equal(t, "9.00", order.TotalAmount.StringFixed(2))
		assert.Equal(t, "0.00", env.balance(t, 2))
		assert.Equal(t, 4, env.stats(t, comp).Reserved)

		failed := env.gateway.Intent(intentID)
		failed.Status = "requires_payment_method"
		failed.LastPaymentError = &models.PaymentError{Code: "card_declined", Message: "Your card was declined."}
		env.deliver(t, "evt_fail_1", models.GatewayPaymentFailed, failed)
		env.deliver(t, "evt_fail_1", models.GatewayPaymentFailed, failed)

		closed := env.order(t, order.ID)
		assert.Equal(t, models.OrderFailed, closed.Status)
		assert.Equal(t, "1.00", env.balance(t, 2))
		assert.Zero(t, env.stats(t, comp).Reserved)
	})

	t.Run("expired reservation is released", func(t *testing.T) {
		order, _ := env.pendingCardOrder(t, 3, comp, 1, false)

		expired, err := env.svc.Checkout.ExpirePending(env.ctx, -time.Minute, 50)
		require.NoError(t, err)
		assert.Equal(t, 1, expired)
		assert.Equal(t, models.OrderCancelled, env.order(t, order.ID).Status)
	})
}

func TestPostgresConcurrentCheckoutsNeverOversell(t *testing.T) {
	env := newPostgresEnv(t)
	comp := env.competition(t, "1", 10, nil)

	const buyers = 8
	for user := int64(1); user <= buyers; user++ {
		env.addToCart(t, user, comp, 3)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var orders []*models.Order
	for user := int64(1); user <= buyers; user++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			result, err := env.svc.Checkout.Checkout(env.ctx, user, models.CheckoutRequest{})
			if err != nil {
				return
			}
			mu.Lock()
			orders = append(orders, result.Order)
			mu.Unlock()
		}(user)
	}
	wg.Wait()

	require.NotEmpty(t, orders)
	assert.LessOrEqual(t, len(orders), 3)

	stats := env.stats(t, comp)
	assert.Equal(t, 3*len(orders), stats.Reserved)
	assert.Equal(t, 10, stats.Available+stats.Reserved+stats.Sold)

	seen := make(map[int]string)
	for _, order := range orders {
		tickets, err := env.svc.Tickets.ListByOrder(env.ctx, order.ID)
		require.NoError(t, err)
		require.Len(t, tickets, 3)
		for _, ticket := range tickets {
			owner, dup := seen[ticket.TicketNumber]
			require.False(t, dup, fmt.Sprintf("ticket %d held by %s and %s", ticket.TicketNumber, owner, order.OrderNumber))
			seen[ticket.TicketNumber] = order.OrderNumber
		}
	}
}
