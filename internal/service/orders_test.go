package service_test

import (
	"testing"

	apperrors "raffle/internal/errors"
	"raffle/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingOrder(t *testing.T, env *testEnv, userID int64) *models.Order {
	t.Helper()
	comp := env.competition(t, "2.50", 10, nil)
	order := models.NewOrder(userID, []models.OrderItem{models.NewOrderItem(comp.ID, 2, comp.TicketPrice)}, dec("0"), dec("0"), nil)
	require.NoError(t, env.svc.Orders.Create(env.ctx, order))
	return order
}

func TestOrderStateMachine(t *testing.T) {
	env := newTestEnv(t)
	order := newPendingOrder(t, env, 1)
	assert.NotZero(t, order.ID)
	assert.Equal(t, "5.00", order.TotalAmount.StringFixed(2))

	ok, err := env.svc.Orders.UpdateStatus(env.ctx, order.ID, models.OrderRefunded, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.False(t, ok)

	ok, err = env.svc.Orders.UpdateStatus(env.ctx, order.ID, models.OrderPaid, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	saved := env.order(t, order.ID)
	assert.Equal(t, models.OrderPaid, saved.Status)
	assert.NotNil(t, saved.PaidAt)

	_, err = env.svc.Orders.UpdateStatus(env.ctx, order.ID, models.OrderCancelled, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	reason := "chargeback"
	ok, err = env.svc.Orders.UpdateStatus(env.ctx, order.ID, models.OrderRefunded, &reason)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, next := range []models.OrderStatus{models.OrderPending, models.OrderPaid, models.OrderFailed, models.OrderCancelled} {
		_, err = env.svc.Orders.UpdateStatus(env.ctx, order.ID, next, nil)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition, "refunded -> %s", next)
	}

	saved = env.order(t, order.ID)
	require.NotNil(t, saved.FailureReason)
	assert.Equal(t, "chargeback", *saved.FailureReason)
}

func TestOrderUpdateStatusUnknownOrder(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Orders.UpdateStatus(env.ctx, 12345, models.OrderPaid, nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestOrderCreateRejectsInconsistentTotals(t *testing.T) {
	env := newTestEnv(t)
	order := newPendingOrder(t, env, 1)

	broken := *order
	broken.ID = 0
	broken.OrderNumber = models.GenerateOrderNumber(order.CreatedAt)
	broken.TotalAmount = dec("1.00")
	assert.Error(t, env.svc.Orders.Create(env.ctx, &broken))

	empty := models.NewOrder(1, nil, dec("0"), dec("0"), nil)
	var verr *apperrors.ValidationError
	assert.ErrorAs(t, env.svc.Orders.Create(env.ctx, empty), &verr)

	orders, err := env.svc.Orders.List(env.ctx, 1)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestOrderVisibleOnlyToOwner(t *testing.T) {
	env := newTestEnv(t)
	order := newPendingOrder(t, env, 1)

	got, err := env.svc.Orders.GetForUser(env.ctx, 1, order.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)

	_, err = env.svc.Orders.GetForUser(env.ctx, 2, order.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	orders, err := env.svc.Orders.List(env.ctx, 2)
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}
