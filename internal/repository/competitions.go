package repository

import (
	"context"
	"database/sql"

	"raffle/internal/database"
	"raffle/internal/models"
)

const competitionColumns = `id, title, ticket_price, total_tickets, tickets_sold, status, ends_at,
	winning_ticket_id, created_at, updated_at`

type CompetitionRepository struct {
	db database.Querier
}

func NewCompetitionRepository(db database.Querier) *CompetitionRepository {
	return &CompetitionRepository{db: db}
}

func (r *CompetitionRepository) Create(ctx context.Context, c *models.Competition) error {
	query := `
		INSERT INTO competitions (title, ticket_price, total_tickets, status, ends_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, tickets_sold, created_at, updated_at`

	if c.Status == "" {
		c.Status = models.CompetitionActive
	}

	return r.db.QueryRowContext(ctx, query,
		c.Title,
		c.TicketPrice,
		c.TotalTickets,
		c.Status,
		c.EndsAt,
	).Scan(&c.ID, &c.TicketsSold, &c.CreatedAt, &c.UpdatedAt)
}

func (r *CompetitionRepository) GetByID(ctx context.Context, id int64) (*models.Competition, error) {
	query := `SELECT ` + competitionColumns + ` FROM competitions WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// LockByID reads the competition row with FOR UPDATE
func (r *CompetitionRepository) LockByID(ctx context.Context, id int64) (*models.Competition, error) {
	query := `SELECT ` + competitionColumns + ` FROM competitions WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *CompetitionRepository) SetStatus(ctx context.Context, id int64, status models.CompetitionStatus) error {
	query := `UPDATE competitions SET status = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, status)
	return err
}

// SetWinner records the drawn ticket and closes the competition for good
func (r *CompetitionRepository) SetWinner(ctx context.Context, id, ticketID int64) (bool, error) {
	query := `
		UPDATE competitions
		SET winning_ticket_id = $2, status = 'drawn', updated_at = NOW()
		WHERE id = $1 AND status <> 'drawn'`

	res, err := r.db.ExecContext(ctx, query, id, ticketID)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *CompetitionRepository) getOne(ctx context.Context, query string, args ...any) (*models.Competition, error) {
	c := &models.Competition{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&c.ID,
		&c.Title,
		&c.TicketPrice,
		&c.TotalTickets,
		&c.TicketsSold,
		&c.Status,
		&c.EndsAt,
		&c.WinningTicketID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
