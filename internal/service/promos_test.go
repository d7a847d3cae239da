package service_test

import (
	"testing"
	"time"

	"raffle/internal/models"
	"raffle/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromoBelowMinimumOrderValue(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Repos().Promos.Create(env.ctx, &models.PromoCode{
		Code:          "SAVE20",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: dec("20"),
		MinOrderValue: dec("50"),
		IsActive:      true,
	}))

	result, err := env.svc.Promos.Validate(env.ctx, "SAVE20", dec("25"))
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.True(t, result.Discount.IsZero())
	assert.Equal(t, "Minimum order value of £50.00 required", result.Error)
}

func TestPromoLookupIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Repos().Promos.Create(env.ctx, &models.PromoCode{
		Code:          "Spring10",
		DiscountType:  models.DiscountFixed,
		DiscountValue: dec("10"),
		MinOrderValue: dec("0"),
		IsActive:      true,
	}))

	result, err := env.svc.Promos.Validate(env.ctx, "spring10", dec("30"))
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "10.00", result.Discount.StringFixed(2))
	assert.Equal(t, "Spring10", result.Code)

	result, err = env.svc.Promos.Validate(env.ctx, "nope", dec("30"))
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "Invalid promo code", result.Error)
}

func TestEvaluatePromoChecksInOrder(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)
	two := 2

	base := func() models.PromoCode {
		return models.PromoCode{
			Code:          "CODE",
			DiscountType:  models.DiscountPercentage,
			DiscountValue: dec("15"),
			MinOrderValue: dec("10"),
			IsActive:      true,
		}
	}

	tests := []struct {
		name     string
		mutate   func(p *models.PromoCode)
		total    string
		valid    bool
		discount string
		reason   string
	}{
		{"percentage rounds to pennies", func(p *models.PromoCode) {}, "33.33", true, "5.00", ""},
		{"fixed returns value unclamped", func(p *models.PromoCode) {
			p.DiscountType = models.DiscountFixed
			p.DiscountValue = dec("40")
		}, "20", true, "40.00", ""},
		{"inactive beats expiry", func(p *models.PromoCode) {
			p.IsActive = false
			p.ValidUntil = &past
		}, "20", false, "0.00", "This promo code is no longer active"},
		{"not yet valid", func(p *models.PromoCode) { p.ValidFrom = &future }, "20", false, "0.00", "This promo code is not yet valid"},
		{"expired beats usage cap", func(p *models.PromoCode) {
			p.ValidUntil = &past
			p.MaxUses = &two
			p.CurrentUses = 2
		}, "20", false, "0.00", "This promo code has expired"},
		{"usage cap beats minimum", func(p *models.PromoCode) {
			p.MaxUses = &two
			p.CurrentUses = 2
		}, "5", false, "0.00", "This promo code has reached its usage limit"},
		{"inside window", func(p *models.PromoCode) {
			p.ValidFrom = &past
			p.ValidUntil = &future
		}, "100", true, "15.00", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			promo := base()
			tt.mutate(&promo)

			result := service.EvaluatePromo(&promo, dec(tt.total), now)
			assert.Equal(t, tt.valid, result.Valid)
			assert.Equal(t, tt.discount, result.Discount.StringFixed(2))
			assert.Equal(t, tt.reason, result.Error)
		})
	}
}

func TestPromoIncrementUsageRespectsCap(t *testing.T) {
	env := newTestEnv(t)
	one := 1
	require.NoError(t, env.store.Repos().Promos.Create(env.ctx, &models.PromoCode{
		Code:          "ONCE",
		DiscountType:  models.DiscountFixed,
		DiscountValue: dec("1"),
		MinOrderValue: dec("0"),
		MaxUses:       &one,
		IsActive:      true,
	}))

	require.NoError(t, env.svc.Promos.IncrementUsage(env.ctx, "once"))
	require.NoError(t, env.svc.Promos.IncrementUsage(env.ctx, "ONCE"))

	promo, err := env.store.Repos().Promos.GetByCode(env.ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 1, promo.CurrentUses)
}
