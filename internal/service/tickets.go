package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	apperrors "raffle/internal/errors"
	"raffle/internal/metrics"
	"raffle/internal/models"
)

// TicketLedger is the only writer of ticket status. Build it over the pool
// for reads or over a transaction's TicketStore for writes.
type TicketLedger struct {
	tickets TicketStore
}

func NewTicketLedger(tickets TicketStore) *TicketLedger {
	return &TicketLedger{tickets: tickets}
}

func (l *TicketLedger) CreatePool(ctx context.Context, competitionID int64, totalTickets int, instantWins map[int]string) error {
	if totalTickets <= 0 {
		return apperrors.Validation("total tickets must be positive")
	}
	for number := range instantWins {
		if number < 1 || number > totalTickets {
			return apperrors.Validation("instant win ticket %d is outside 1..%d", number, totalTickets)
		}
	}

	if err := l.tickets.CreatePool(ctx, competitionID, totalTickets, instantWins); err != nil {
		return fmt.Errorf("failed to create ticket pool: %w", err)
	}
	return nil
}

// Reserve claims exactly quantity tickets or fails with
// InsufficientTicketsError. A short claim is left in place, so callers run
// Reserve inside a transaction and roll back on error.
func (l *TicketLedger) Reserve(ctx context.Context, competitionID int64, quantity int, userID, orderID int64) ([]models.Ticket, error) {
	if quantity <= 0 {
		return nil, apperrors.Validation("quantity must be positive")
	}

	tickets, err := l.tickets.Reserve(ctx, competitionID, quantity, userID, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve tickets: %w", err)
	}

	if len(tickets) < quantity {
		return nil, &apperrors.InsufficientTicketsError{
			CompetitionID: competitionID,
			Requested:     quantity,
			Available:     len(tickets),
		}
	}

	return tickets, nil
}

func (l *TicketLedger) MarkSold(ctx context.Context, ticketIDs []int64) (int64, error) {
	n, err := l.tickets.MarkSold(ctx, ticketIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to mark tickets sold: %w", err)
	}
	metrics.TicketsSoldTotal.Add(float64(n))
	return n, nil
}

func (l *TicketLedger) Release(ctx context.Context, orderID int64) (int64, error) {
	n, err := l.tickets.Release(ctx, orderID)
	if err != nil {
		return 0, fmt.Errorf("failed to release tickets: %w", err)
	}
	metrics.TicketsReleasedTotal.Add(float64(n))
	return n, nil
}

func (l *TicketLedger) CountSold(ctx context.Context, competitionID int64) (int, error) {
	return l.tickets.CountByStatus(ctx, competitionID, models.TicketSold)
}

func (l *TicketLedger) CountAvailable(ctx context.Context, competitionID int64) (int, error) {
	return l.tickets.CountByStatus(ctx, competitionID, models.TicketAvailable)
}

func (l *TicketLedger) CountReserved(ctx context.Context, competitionID int64) (int, error) {
	return l.tickets.CountByStatus(ctx, competitionID, models.TicketReserved)
}

func (l *TicketLedger) Stats(ctx context.Context, competitionID int64) (*models.PoolStats, error) {
	stats, err := l.tickets.Stats(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool stats: %w", err)
	}
	return stats, nil
}

func (l *TicketLedger) ListByOrder(ctx context.Context, orderID int64) ([]models.Ticket, error) {
	tickets, err := l.tickets.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order tickets: %w", err)
	}
	return tickets, nil
}

// RandomSold picks a uniformly random sold ticket. Returns nil when nothing
// has been sold.
func (l *TicketLedger) RandomSold(ctx context.Context, competitionID int64) (*models.Ticket, error) {
	sold, err := l.CountSold(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count sold tickets: %w", err)
	}
	if sold == 0 {
		return nil, nil
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(sold)))
	if err != nil {
		return nil, fmt.Errorf("failed to draw random ticket: %w", err)
	}

	ticket, err := l.tickets.SoldAt(ctx, competitionID, int(n.Int64()))
	if err != nil {
		return nil, fmt.Errorf("failed to load drawn ticket: %w", err)
	}
	return ticket, nil
}

func instantWins(tickets []models.Ticket) []models.Ticket {
	var wins []models.Ticket
	for _, t := range tickets {
		if t.IsInstantWin {
			wins = append(wins, t)
		}
	}
	return wins
}

func ticketIDs(tickets []models.Ticket) []int64 {
	ids := make([]int64, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}
	return ids
}
