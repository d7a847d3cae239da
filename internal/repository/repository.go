package repository

import (
	"errors"

	"raffle/internal/database"

	"github.com/lib/pq"
)

type Repositories struct {
	Competitions *CompetitionRepository
	Tickets      *TicketRepository
	Orders       *OrderRepository
	Wallets      *WalletRepository
	Promos       *PromoRepository
}

// NewRepositories binds every repository to q, which is either the pool or an
// open transaction.
func NewRepositories(q database.Querier) *Repositories {
	return &Repositories{
		Competitions: NewCompetitionRepository(q),
		Tickets:      NewTicketRepository(q),
		Orders:       NewOrderRepository(q),
		Wallets:      NewWalletRepository(q),
		Promos:       NewPromoRepository(q),
	}
}

// IsUniqueViolation reports a Postgres unique_violation (23505)
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
