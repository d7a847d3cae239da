package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"raffle/internal/logger"
	"raffle/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type PromoEngine struct {
	store Store
	now   func() time.Time
}

func NewPromoEngine(store Store) *PromoEngine {
	return &PromoEngine{store: store, now: time.Now}
}

// Validate never mutates. An unusable code is reported through
// PromoResult.Valid and Error rather than as an error return.
func (e *PromoEngine) Validate(ctx context.Context, code string, orderTotal decimal.Decimal) (*models.PromoResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return &models.PromoResult{Valid: false, Discount: decimal.Zero, Error: "Promo code is required"}, nil
	}

	promo, err := e.store.Repos().Promos.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}

	result := EvaluatePromo(promo, orderTotal, e.now())
	if result.Code == "" {
		result.Code = code
	}
	return &result, nil
}

// IncrementUsage consumes one use of the code. Settlement calls the store
// directly inside its own transaction; this is for callers outside one.
func (e *PromoEngine) IncrementUsage(ctx context.Context, code string) error {
	ok, err := e.store.Repos().Promos.IncrementUsage(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to increment promo usage: %w", err)
	}
	if !ok {
		logger.WithContext(ctx).Warn("Promo code usage not recorded, cap reached or code missing", "code", code)
	}
	return nil
}

// EvaluatePromo runs the checks in order and stops at the first failure:
// existence, active, date window, usage cap, minimum order value.
func EvaluatePromo(promo *models.PromoCode, orderTotal decimal.Decimal, now time.Time) models.PromoResult {
	invalid := func(reason string) models.PromoResult {
		return models.PromoResult{Valid: false, Discount: decimal.Zero, Error: reason}
	}

	if promo == nil {
		return invalid("Invalid promo code")
	}
	if !promo.IsActive {
		return invalid("This promo code is no longer active")
	}
	if promo.ValidFrom != nil && now.Before(*promo.ValidFrom) {
		return invalid("This promo code is not yet valid")
	}
	if promo.ValidUntil != nil && now.After(*promo.ValidUntil) {
		return invalid("This promo code has expired")
	}
	if promo.MaxUses != nil && promo.CurrentUses >= *promo.MaxUses {
		return invalid("This promo code has reached its usage limit")
	}
	if orderTotal.LessThan(promo.MinOrderValue) {
		return invalid(fmt.Sprintf("Minimum order value of £%s required", promo.MinOrderValue.StringFixed(2)))
	}

	var discount decimal.Decimal
	switch promo.DiscountType {
	case models.DiscountPercentage:
		discount = orderTotal.Mul(promo.DiscountValue).Div(hundred).Round(2)
	case models.DiscountFixed:
		discount = promo.DiscountValue
	default:
		return invalid("Invalid promo code")
	}

	return models.PromoResult{Code: promo.Code, Valid: true, Discount: discount}
}
