package service

import (
	"context"
	"fmt"

	apperrors "raffle/internal/errors"
	"raffle/internal/metrics"
	"raffle/internal/models"
)

type OrderService struct {
	store Store
}

func NewOrderService(store Store) *OrderService {
	return &OrderService{store: store}
}

// Create persists a pending order with its items in one transaction.
func (s *OrderService) Create(ctx context.Context, order *models.Order) error {
	return s.store.InTx(ctx, func(r Repos) error {
		return createOrder(ctx, r.Orders, order)
	})
}

// UpdateStatus applies one state machine step. It returns false without an
// error when a concurrent writer already moved the order away from the
// status it was read in.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, to models.OrderStatus, reason *string) (bool, error) {
	order, err := s.store.Repos().Orders.GetByID(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return false, apperrors.ErrNotFound
	}

	return transitionOrder(ctx, s.store.Repos().Orders, order, to, reason)
}

func (s *OrderService) GetWithItems(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.store.Repos().Orders.GetWithItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, apperrors.ErrNotFound
	}
	return order, nil
}

// GetForUser hides other users' orders behind ErrNotFound.
func (s *OrderService) GetForUser(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	order, err := s.GetWithItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return order, nil
}

func (s *OrderService) List(ctx context.Context, userID int64) ([]models.Order, error) {
	orders, err := s.store.Repos().Orders.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get orders: %w", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

func createOrder(ctx context.Context, orders OrderStore, order *models.Order) error {
	if !order.TotalIsConsistent() {
		return fmt.Errorf("order %s totals do not add up", order.OrderNumber)
	}
	if len(order.Items) == 0 {
		return apperrors.Validation("order has no items")
	}
	if err := orders.Create(ctx, order); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// transitionOrder checks the state machine, then compare-and-swaps on the
// status the caller read. The loser of a race gets (false, nil).
func transitionOrder(ctx context.Context, orders OrderStore, order *models.Order, to models.OrderStatus, reason *string) (bool, error) {
	if !order.Status.CanTransition(to) {
		return false, fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, order.Status, to)
	}

	ok, err := orders.TransitionStatus(ctx, order.ID, []models.OrderStatus{order.Status}, to, reason)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	if ok {
		order.Status = to
		if reason != nil {
			order.FailureReason = reason
		}
		metrics.OrderTransitionsTotal.WithLabelValues(string(to)).Inc()
	}
	return ok, nil
}
