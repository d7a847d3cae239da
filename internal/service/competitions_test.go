package service_test

import (
	"testing"
	"time"

	apperrors "raffle/internal/errors"
	"raffle/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompetitionCreateBuildsPool(t *testing.T) {
	env := newTestEnv(t)
	comp := env.competition(t, "0.99", 50, map[int]string{7: "iPad", 42: "£100 cash"})

	assert.Equal(t, models.CompetitionActive, comp.Status)

	stats := env.stats(t, comp)
	assert.Equal(t, 50, stats.Total)
	assert.Equal(t, 50, stats.Available)
	assert.Zero(t, stats.Sold)
}

func TestCompetitionCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name string
		req  models.CreateCompetitionRequest
	}{
		{"blank title", models.CreateCompetitionRequest{Title: "  ", TicketPrice: dec("1"), TotalTickets: 10}},
		{"negative price", models.CreateCompetitionRequest{Title: "x", TicketPrice: dec("-1"), TotalTickets: 10}},
		{"sub-penny price", models.CreateCompetitionRequest{Title: "x", TicketPrice: dec("0.999"), TotalTickets: 10}},
		{"empty pool", models.CreateCompetitionRequest{Title: "x", TicketPrice: dec("1"), TotalTickets: 0}},
		{"ended", models.CreateCompetitionRequest{Title: "x", TicketPrice: dec("1"), TotalTickets: 10, EndsAt: &past}},
		{"instant win outside pool", models.CreateCompetitionRequest{Title: "x", TicketPrice: dec("1"), TotalTickets: 10, InstantWins: map[int]string{11: "car"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Competitions.Create(env.ctx, &tt.req)
			var verr *apperrors.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestCompetitionDrawWinner(t *testing.T) {
	env := newTestEnv(t)
	comp := env.competition(t, "1", 10, nil)

	_, err := env.svc.Competitions.DrawWinner(env.ctx, comp.ID)
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr, "nothing sold yet")

	env.fund(t, 1, "3")
	env.addToCart(t, 1, comp, 3)
	_, err = env.svc.Checkout.Checkout(env.ctx, 1, models.CheckoutRequest{UseWalletBalance: true})
	require.NoError(t, err)

	// a pending reservation is not eligible
	env.pendingCardOrder(t, 2, comp, 4, false)

	result, err := env.svc.Competitions.DrawWinner(env.ctx, comp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketSold, result.Ticket.Status)
	assert.Equal(t, int64(1), *result.Ticket.UserID)

	drawn, err := env.svc.Competitions.Get(env.ctx, comp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CompetitionDrawn, drawn.Status)
	assert.Equal(t, result.Ticket.ID, *drawn.WinningTicketID)

	_, err = env.svc.Competitions.DrawWinner(env.ctx, comp.ID)
	assert.ErrorAs(t, err, &verr)
}

func TestCompetitionNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Competitions.Get(env.ctx, 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = env.svc.Competitions.Progress(env.ctx, 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = env.svc.Competitions.DrawWinner(env.ctx, 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
