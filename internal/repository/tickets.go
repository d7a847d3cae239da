package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"raffle/internal/database"
	"raffle/internal/models"

	"github.com/lib/pq"
)

const ticketColumns = `id, competition_id, ticket_number, status, user_id, order_id, purchased_at,
	is_instant_win, instant_win_prize, created_at, updated_at`

// TicketRepository owns every write to the tickets table. Status only changes
// through Reserve, MarkSold and Release.
type TicketRepository struct {
	db database.Querier
}

func NewTicketRepository(db database.Querier) *TicketRepository {
	return &TicketRepository{db: db}
}

// CreatePool inserts tickets 1..total in available state. Callers run it in a
// transaction together with the instant-win marking.
func (r *TicketRepository) CreatePool(ctx context.Context, competitionID int64, total int, instantWins map[int]string) error {
	query := `
		INSERT INTO tickets (competition_id, ticket_number, status)
		SELECT $1, n, 'available' FROM generate_series(1, $2) AS n`

	if _, err := r.db.ExecContext(ctx, query, competitionID, total); err != nil {
		return err
	}

	for number, prize := range instantWins {
		if number < 1 || number > total {
			return fmt.Errorf("instant win ticket %d outside pool 1..%d", number, total)
		}
		_, err := r.db.ExecContext(ctx, `
			UPDATE tickets SET is_instant_win = TRUE, instant_win_prize = $3
			WHERE competition_id = $1 AND ticket_number = $2`,
			competitionID, number, prize)
		if err != nil {
			return err
		}
	}

	return nil
}

// Reserve takes up to quantity available tickets, lowest numbers first.
// Rows locked by a concurrent reservation are skipped rather than waited on,
// so the result may be shorter than quantity.
func (r *TicketRepository) Reserve(ctx context.Context, competitionID int64, quantity int, userID, orderID int64) ([]models.Ticket, error) {
	query := `
		UPDATE tickets
		SET status = 'reserved', user_id = $3, order_id = $4, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM tickets
			WHERE competition_id = $1 AND status = 'available'
			ORDER BY ticket_number
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + ticketColumns

	rows, err := r.db.QueryContext(ctx, query, competitionID, quantity, userID, orderID)
	if err != nil {
		return nil, err
	}

	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}

	sort.Slice(tickets, func(i, j int) bool { return tickets[i].TicketNumber < tickets[j].TicketNumber })
	return tickets, nil
}

// MarkSold moves reserved tickets to sold. Ids not currently reserved are
// ignored, which makes repeated calls harmless.
func (r *TicketRepository) MarkSold(ctx context.Context, ticketIDs []int64) (int64, error) {
	if len(ticketIDs) == 0 {
		return 0, nil
	}

	query := `
		WITH sold AS (
			UPDATE tickets
			SET status = 'sold', purchased_at = NOW(), updated_at = NOW()
			WHERE id = ANY($1) AND status = 'reserved'
			RETURNING competition_id
		)
		SELECT competition_id, COUNT(*) FROM sold GROUP BY competition_id`

	deltas, err := r.countsByCompetition(ctx, query, pq.Array(ticketIDs))
	if err != nil {
		return 0, err
	}

	var total int64
	for competitionID, n := range deltas {
		if err := r.adjustSoldCount(ctx, competitionID, n); err != nil {
			return 0, err
		}
		total += n
	}

	return total, nil
}

// Release returns every ticket of the order to the pool.
func (r *TicketRepository) Release(ctx context.Context, orderID int64) (int64, error) {
	query := `
		WITH held AS (
			SELECT id, status FROM tickets WHERE order_id = $1 FOR UPDATE
		), released AS (
			UPDATE tickets t
			SET status = 'available', user_id = NULL, order_id = NULL, purchased_at = NULL, updated_at = NOW()
			FROM held
			WHERE t.id = held.id
			RETURNING t.competition_id, held.status AS previous_status
		)
		SELECT competition_id, COUNT(*), COUNT(*) FILTER (WHERE previous_status = 'sold')
		FROM released GROUP BY competition_id`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	soldDeltas := make(map[int64]int64)
	var total int64
	for rows.Next() {
		var competitionID, released, wasSold int64
		if err := rows.Scan(&competitionID, &released, &wasSold); err != nil {
			return 0, err
		}
		total += released
		if wasSold > 0 {
			soldDeltas[competitionID] = -wasSold
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	rows.Close()

	for competitionID, n := range soldDeltas {
		if err := r.adjustSoldCount(ctx, competitionID, n); err != nil {
			return 0, err
		}
	}

	return total, nil
}

func (r *TicketRepository) countsByCompetition(ctx context.Context, query string, args ...any) (map[int64]int64, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int64]int64)
	for rows.Next() {
		var competitionID, n int64
		if err := rows.Scan(&competitionID, &n); err != nil {
			return nil, err
		}
		counts[competitionID] = n
	}
	return counts, rows.Err()
}

func (r *TicketRepository) adjustSoldCount(ctx context.Context, competitionID, delta int64) error {
	query := `UPDATE competitions SET tickets_sold = tickets_sold + $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, competitionID, delta)
	return err
}

func (r *TicketRepository) CountByStatus(ctx context.Context, competitionID int64, status models.TicketStatus) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM tickets WHERE competition_id = $1 AND status = $2`
	err := r.db.QueryRowContext(ctx, query, competitionID, status).Scan(&n)
	return n, err
}

func (r *TicketRepository) CountSold(ctx context.Context, competitionID int64) (int, error) {
	return r.CountByStatus(ctx, competitionID, models.TicketSold)
}

func (r *TicketRepository) CountAvailable(ctx context.Context, competitionID int64) (int, error) {
	return r.CountByStatus(ctx, competitionID, models.TicketAvailable)
}

func (r *TicketRepository) CountReserved(ctx context.Context, competitionID int64) (int, error) {
	return r.CountByStatus(ctx, competitionID, models.TicketReserved)
}

func (r *TicketRepository) Stats(ctx context.Context, competitionID int64) (*models.PoolStats, error) {
	stats := &models.PoolStats{CompetitionID: competitionID}
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'available'),
		       COUNT(*) FILTER (WHERE status = 'reserved'),
		       COUNT(*) FILTER (WHERE status = 'sold')
		FROM tickets
		WHERE competition_id = $1`

	err := r.db.QueryRowContext(ctx, query, competitionID).Scan(
		&stats.Total,
		&stats.Available,
		&stats.Reserved,
		&stats.Sold,
	)
	return stats, err
}

func (r *TicketRepository) ListByOrder(ctx context.Context, orderID int64) ([]models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE order_id = $1 ORDER BY competition_id, ticket_number`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	return scanTickets(rows)
}

// SoldAt returns the sold ticket at the given zero-based position in number order
func (r *TicketRepository) SoldAt(ctx context.Context, competitionID int64, position int) (*models.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE competition_id = $1 AND status = 'sold'
		ORDER BY ticket_number
		OFFSET $2 LIMIT 1`

	ticket := &models.Ticket{}
	err := scanTicket(r.db.QueryRowContext(ctx, query, competitionID, position), ticket)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ticket, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTicket(row scanner, ticket *models.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.CompetitionID,
		&ticket.TicketNumber,
		&ticket.Status,
		&ticket.UserID,
		&ticket.OrderID,
		&ticket.PurchasedAt,
		&ticket.IsInstantWin,
		&ticket.InstantWinPrize,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
}

func scanTickets(rows *sql.Rows) ([]models.Ticket, error) {
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		var ticket models.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}
