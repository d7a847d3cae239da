package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "raffle/internal/errors"
	"raffle/internal/logger"
	"raffle/internal/models"
)

type CompetitionService struct {
	store Store
	now   func() time.Time
}

func NewCompetitionService(store Store) *CompetitionService {
	return &CompetitionService{store: store, now: time.Now}
}

// Create inserts the competition and its full ticket pool together.
func (s *CompetitionService) Create(ctx context.Context, req *models.CreateCompetitionRequest) (*models.Competition, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperrors.Validation("title is required")
	}
	if req.TicketPrice.IsNegative() {
		return nil, apperrors.Validation("ticket price must not be negative")
	}
	if !req.TicketPrice.Equal(req.TicketPrice.Round(2)) {
		return nil, apperrors.Validation("ticket price has more than two decimal places")
	}
	if req.EndsAt != nil && !req.EndsAt.After(s.now()) {
		return nil, apperrors.Validation("end date must be in the future")
	}

	competition := &models.Competition{
		Title:        title,
		TicketPrice:  req.TicketPrice,
		TotalTickets: req.TotalTickets,
		Status:       models.CompetitionActive,
		EndsAt:       req.EndsAt,
	}

	err := s.store.InTx(ctx, func(r Repos) error {
		if err := r.Competitions.Create(ctx, competition); err != nil {
			return fmt.Errorf("failed to create competition: %w", err)
		}
		return NewTicketLedger(r.Tickets).CreatePool(ctx, competition.ID, req.TotalTickets, req.InstantWins)
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Info("Competition created",
		"competition_id", competition.ID,
		"total_tickets", competition.TotalTickets,
		"instant_wins", len(req.InstantWins))
	return competition, nil
}

func (s *CompetitionService) Get(ctx context.Context, id int64) (*models.Competition, error) {
	competition, err := s.store.Repos().Competitions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get competition: %w", err)
	}
	if competition == nil {
		return nil, apperrors.ErrNotFound
	}
	return competition, nil
}

// Progress reports pool counts straight from the ticket rows.
func (s *CompetitionService) Progress(ctx context.Context, id int64) (*models.PoolStats, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return NewTicketLedger(s.store.Repos().Tickets).Stats(ctx, id)
}

// DrawWinner closes the competition and picks one sold ticket at random.
// Tickets still reserved at draw time are not eligible.
func (s *CompetitionService) DrawWinner(ctx context.Context, id int64) (*models.DrawResult, error) {
	var winner *models.Ticket
	err := s.store.InTx(ctx, func(r Repos) error {
		competition, err := r.Competitions.LockByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to lock competition: %w", err)
		}
		if competition == nil {
			return apperrors.ErrNotFound
		}
		if competition.Status == models.CompetitionDrawn {
			return apperrors.Validation("competition %d has already been drawn", id)
		}

		winner, err = NewTicketLedger(r.Tickets).RandomSold(ctx, id)
		if err != nil {
			return err
		}
		if winner == nil {
			return apperrors.Validation("competition %d has no sold tickets", id)
		}

		ok, err := r.Competitions.SetWinner(ctx, id, winner.ID)
		if err != nil {
			return fmt.Errorf("failed to record winner: %w", err)
		}
		if !ok {
			return apperrors.Validation("competition %d has already been drawn", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Info("Winner drawn",
		"competition_id", id,
		"ticket_number", winner.TicketNumber)
	return &models.DrawResult{CompetitionID: id, Ticket: *winner}, nil
}
