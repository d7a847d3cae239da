package consumers

import (
	"context"
	"encoding/json"
	"fmt"

	"raffle/internal/logger"
	"raffle/internal/metrics"
	"raffle/internal/models"
	"raffle/internal/service"
)

// Handlers react to domain events published by the API. They only read
// state; order and ticket transitions stay in the API's transactions.
type Handlers struct {
	tickets      *service.TicketLedger
	competitions *service.CompetitionService
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		tickets:      services.Tickets,
		competitions: services.Competitions,
	}
}

// HandleOrderPaid announces instant wins and notices sold-out competitions
func (h *Handlers) HandleOrderPaid(ctx context.Context, data []byte) error {
	var event models.OrderEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal order event: %w", err)
	}

	log := logger.WithContext(ctx).With("order_id", event.OrderID, "order_number", event.OrderNumber)

	tickets, err := h.tickets.ListByOrder(ctx, event.OrderID)
	if err != nil {
		return err
	}

	competitions := make(map[int64]struct{})
	for _, ticket := range tickets {
		competitions[ticket.CompetitionID] = struct{}{}
		if !ticket.IsInstantWin || ticket.InstantWinPrize == nil {
			continue
		}
		metrics.InstantWinsSoldTotal.Inc()
		log.Info("Instant win sold",
			"user_id", event.UserID,
			"competition_id", ticket.CompetitionID,
			"ticket_number", ticket.TicketNumber,
			"prize", *ticket.InstantWinPrize)
	}

	for competitionID := range competitions {
		stats, err := h.competitions.Progress(ctx, competitionID)
		if err != nil {
			return err
		}
		if stats.Available == 0 && stats.Reserved == 0 {
			log.Info("Competition sold out", "competition_id", competitionID, "total", stats.Total)
		}
	}

	return nil
}

func (h *Handlers) HandleOrderClosed(ctx context.Context, data []byte) error {
	var event models.OrderEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal order event: %w", err)
	}

	logger.WithContext(ctx).Info("Order closed",
		"order_id", event.OrderID,
		"user_id", event.UserID,
		"status", event.Status,
		"reason", event.Reason)
	return nil
}

func (h *Handlers) HandleTicketsReleased(ctx context.Context, data []byte) error {
	var event models.TicketsReleasedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal tickets released event: %w", err)
	}

	logger.WithContext(ctx).Info("Tickets back in pool", "order_id", event.OrderID, "count", event.Count)
	return nil
}

func (h *Handlers) HandleWalletCredited(ctx context.Context, data []byte) error {
	var event models.WalletCreditedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal wallet credited event: %w", err)
	}

	logger.WithContext(ctx).Info("Wallet credited",
		"user_id", event.UserID,
		"type", event.Type,
		"amount", event.Amount.StringFixed(2),
		"balance_after", event.BalanceAfter.StringFixed(2),
		"reference_id", event.ReferenceID)
	return nil
}
