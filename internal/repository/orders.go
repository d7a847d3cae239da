package repository

import (
	"context"
	"database/sql"
	"time"

	"raffle/internal/database"
	"raffle/internal/models"

	"github.com/lib/pq"
)

const orderColumns = `id, user_id, order_number, status, subtotal, discount_amount, wallet_amount_used,
	total_amount, payment_method, payment_intent_id, promo_code, failure_reason, paid_at, created_at, updated_at`

type OrderRepository struct {
	db database.Querier
}

func NewOrderRepository(db database.Querier) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order and its items. Run it inside a transaction so the
// items never exist without their order.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, order_number, status, subtotal, discount_amount, wallet_amount_used,
		                    total_amount, payment_method, promo_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		order.UserID,
		order.OrderNumber,
		order.Status,
		order.Subtotal,
		order.DiscountAmount,
		order.WalletAmountUsed,
		order.TotalAmount,
		order.PaymentMethod,
		order.PromoCode,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return err
	}

	itemQuery := `
		INSERT INTO order_items (order_id, competition_id, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := r.db.QueryRowContext(ctx, itemQuery,
			item.OrderID,
			item.CompetitionID,
			item.Quantity,
			item.UnitPrice,
			item.TotalPrice,
		).Scan(&item.ID)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *OrderRepository) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`
	return r.getOne(ctx, query, orderNumber)
}

// GetByPaymentIntentID retrieves an order by the gateway payment intent id
func (r *OrderRepository) GetByPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE payment_intent_id = $1`
	return r.getOne(ctx, query, intentID)
}

func (r *OrderRepository) GetWithItems(ctx context.Context, id int64) (*models.Order, error) {
	order, err := r.GetByID(ctx, id)
	if err != nil || order == nil {
		return order, err
	}

	items, err := r.GetItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func (r *OrderRepository) GetItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	query := `
		SELECT id, order_id, competition_id, quantity, unit_price, total_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.CompetitionID,
			&item.Quantity,
			&item.UnitPrice,
			&item.TotalPrice,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *OrderRepository) GetByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	return r.getMany(ctx, query, userID)
}

// GetExpiredPending retrieves pending orders created before the cutoff
func (r *OrderRepository) GetExpiredPending(ctx context.Context, before time.Time, limit int) ([]models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`
	return r.getMany(ctx, query, before, limit)
}

// TransitionStatus moves the order to `to` only if its current status is one
// of `from`. It reports whether this call performed the transition.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id int64, from []models.OrderStatus, to models.OrderStatus, reason *string) (bool, error) {
	current := make([]string, len(from))
	for i, s := range from {
		current[i] = string(s)
	}

	query := `
		UPDATE orders
		SET status = $2,
		    failure_reason = COALESCE($4, failure_reason),
		    paid_at = CASE WHEN $2 = 'paid' THEN NOW() ELSE paid_at END,
		    updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)`

	res, err := r.db.ExecContext(ctx, query, id, to, pq.Array(current), reason)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n == 1, err
}

// SetPaymentIntent attaches a gateway intent to a still-pending order that has
// none yet. False means another request got there first or the order moved on.
func (r *OrderRepository) SetPaymentIntent(ctx context.Context, id int64, intentID string) (bool, error) {
	query := `
		UPDATE orders SET payment_intent_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND payment_intent_id IS NULL`

	res, err := r.db.ExecContext(ctx, query, id, intentID)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *OrderRepository) getOne(ctx context.Context, query string, args ...any) (*models.Order, error) {
	order := &models.Order{}
	err := scanOrder(r.db.QueryRowContext(ctx, query, args...), order)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) getMany(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

func scanOrder(row scanner, order *models.Order) error {
	return row.Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Status,
		&order.Subtotal,
		&order.DiscountAmount,
		&order.WalletAmountUsed,
		&order.TotalAmount,
		&order.PaymentMethod,
		&order.PaymentIntentID,
		&order.PromoCode,
		&order.FailureReason,
		&order.PaidAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
}
