package service

import (
	"context"
	"database/sql"
	"time"

	"raffle/internal/database"
	"raffle/internal/models"
	"raffle/internal/repository"

	"github.com/shopspring/decimal"
)

type CompetitionStore interface {
	Create(ctx context.Context, c *models.Competition) error
	GetByID(ctx context.Context, id int64) (*models.Competition, error)
	LockByID(ctx context.Context, id int64) (*models.Competition, error)
	SetStatus(ctx context.Context, id int64, status models.CompetitionStatus) error
	SetWinner(ctx context.Context, id, ticketID int64) (bool, error)
}

type TicketStore interface {
	CreatePool(ctx context.Context, competitionID int64, total int, instantWins map[int]string) error
	Reserve(ctx context.Context, competitionID int64, quantity int, userID, orderID int64) ([]models.Ticket, error)
	MarkSold(ctx context.Context, ticketIDs []int64) (int64, error)
	Release(ctx context.Context, orderID int64) (int64, error)
	CountByStatus(ctx context.Context, competitionID int64, status models.TicketStatus) (int, error)
	Stats(ctx context.Context, competitionID int64) (*models.PoolStats, error)
	ListByOrder(ctx context.Context, orderID int64) ([]models.Ticket, error)
	SoldAt(ctx context.Context, competitionID int64, position int) (*models.Ticket, error)
}

type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error)
	GetWithItems(ctx context.Context, id int64) (*models.Order, error)
	GetByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	GetExpiredPending(ctx context.Context, before time.Time, limit int) ([]models.Order, error)
	TransitionStatus(ctx context.Context, id int64, from []models.OrderStatus, to models.OrderStatus, reason *string) (bool, error)
	SetPaymentIntent(ctx context.Context, id int64, intentID string) (bool, error)
}

type WalletStore interface {
	GetOrCreate(ctx context.Context, userID int64) (*models.Wallet, error)
	GetByUserID(ctx context.Context, userID int64) (*models.Wallet, error)
	GetByID(ctx context.Context, id int64) (*models.Wallet, error)
	LockByID(ctx context.Context, id int64) (*models.Wallet, error)
	Credit(ctx context.Context, walletID int64, amount decimal.Decimal) (decimal.Decimal, error)
	Debit(ctx context.Context, walletID int64, amount decimal.Decimal) (decimal.Decimal, bool, error)
	InsertTransaction(ctx context.Context, txn *models.WalletTransaction) error
	FindTransaction(ctx context.Context, walletID int64, txnType models.WalletTransactionType, referenceID string) (*models.WalletTransaction, error)
	ListTransactions(ctx context.Context, walletID int64, filter models.TransactionFilter) ([]models.WalletTransaction, error)
}

type PromoStore interface {
	GetByCode(ctx context.Context, code string) (*models.PromoCode, error)
	IncrementUsage(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, promo *models.PromoCode) error
}

// Repos is one consistent view of storage: either the connection pool or a
// single open transaction.
type Repos struct {
	Competitions CompetitionStore
	Tickets      TicketStore
	Orders       OrderStore
	Wallets      WalletStore
	Promos       PromoStore
}

// Store hands out repositories. InTx commits when fn returns nil and rolls
// back every write made through the passed Repos otherwise.
type Store interface {
	Repos() Repos
	InTx(ctx context.Context, fn func(r Repos) error) error
}

type PostgresStore struct {
	db *database.DB
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Repos() Repos {
	return reposFrom(repository.NewRepositories(s.db))
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(r Repos) error) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(reposFrom(repository.NewRepositories(tx)))
	})
}

func reposFrom(r *repository.Repositories) Repos {
	return Repos{
		Competitions: r.Competitions,
		Tickets:      r.Tickets,
		Orders:       r.Orders,
		Wallets:      r.Wallets,
		Promos:       r.Promos,
	}
}
