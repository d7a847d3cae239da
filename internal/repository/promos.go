package repository

import (
	"context"
	"database/sql"

	"raffle/internal/database"
	"raffle/internal/models"
)

type PromoRepository struct {
	db database.Querier
}

func NewPromoRepository(db database.Querier) *PromoRepository {
	return &PromoRepository{db: db}
}

// GetByCode matches case-insensitively
func (r *PromoRepository) GetByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	query := `
		SELECT id, code, discount_type, discount_value, min_order_value, max_uses, current_uses,
		       is_active, valid_from, valid_until, created_at
		FROM promo_codes
		WHERE LOWER(code) = LOWER($1)`

	promo := &models.PromoCode{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&promo.ID,
		&promo.Code,
		&promo.DiscountType,
		&promo.DiscountValue,
		&promo.MinOrderValue,
		&promo.MaxUses,
		&promo.CurrentUses,
		&promo.IsActive,
		&promo.ValidFrom,
		&promo.ValidUntil,
		&promo.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return promo, nil
}

// IncrementUsage bumps current_uses unless the cap is already reached. It
// reports whether a use was recorded.
func (r *PromoRepository) IncrementUsage(ctx context.Context, code string) (bool, error) {
	query := `
		UPDATE promo_codes SET current_uses = current_uses + 1
		WHERE LOWER(code) = LOWER($1) AND (max_uses IS NULL OR current_uses < max_uses)`

	res, err := r.db.ExecContext(ctx, query, code)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *PromoRepository) Create(ctx context.Context, promo *models.PromoCode) error {
	query := `
		INSERT INTO promo_codes (code, discount_type, discount_value, min_order_value, max_uses,
		                         is_active, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, current_uses, created_at`

	return r.db.QueryRowContext(ctx, query,
		promo.Code,
		promo.DiscountType,
		promo.DiscountValue,
		promo.MinOrderValue,
		promo.MaxUses,
		promo.IsActive,
		promo.ValidFrom,
		promo.ValidUntil,
	).Scan(&promo.ID, &promo.CurrentUses, &promo.CreatedAt)
}
