package repository

import (
	"context"
	"database/sql"
	"fmt"

	"raffle/internal/database"
	"raffle/internal/models"

	"github.com/shopspring/decimal"
)

const walletTransactionColumns = `id, wallet_id, type, amount, balance_after, description, reference_id, created_at`

type WalletRepository struct {
	db database.Querier
}

func NewWalletRepository(db database.Querier) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetOrCreate returns the user's wallet, creating an empty one on first use.
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID int64) (*models.Wallet, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wallets (user_id, balance) VALUES ($1, 0) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return nil, err
	}

	wallet, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, fmt.Errorf("wallet for user %d vanished after insert", userID)
	}
	return wallet, nil
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID int64) (*models.Wallet, error) {
	query := `SELECT id, user_id, balance, created_at, updated_at FROM wallets WHERE user_id = $1`
	return r.getOne(ctx, query, userID)
}

func (r *WalletRepository) GetByID(ctx context.Context, id int64) (*models.Wallet, error) {
	query := `SELECT id, user_id, balance, created_at, updated_at FROM wallets WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// LockByID reads the wallet with a row lock held until the transaction ends
func (r *WalletRepository) LockByID(ctx context.Context, id int64) (*models.Wallet, error) {
	query := `SELECT id, user_id, balance, created_at, updated_at FROM wallets WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

// Credit adds amount and returns the new balance.
func (r *WalletRepository) Credit(ctx context.Context, walletID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	query := `
		UPDATE wallets SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING balance`

	err := r.db.QueryRowContext(ctx, query, walletID, amount).Scan(&balance)
	return balance, err
}

// Debit subtracts amount only when the balance covers it. ok is false when it
// does not, in which case nothing changed.
func (r *WalletRepository) Debit(ctx context.Context, walletID int64, amount decimal.Decimal) (balance decimal.Decimal, ok bool, err error) {
	query := `
		UPDATE wallets SET balance = balance - $2, updated_at = NOW()
		WHERE id = $1 AND balance >= $2
		RETURNING balance`

	err = r.db.QueryRowContext(ctx, query, walletID, amount).Scan(&balance)
	if err == sql.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return balance, true, nil
}

func (r *WalletRepository) InsertTransaction(ctx context.Context, txn *models.WalletTransaction) error {
	query := `
		INSERT INTO wallet_transactions (wallet_id, type, amount, balance_after, description, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return r.db.QueryRowContext(ctx, query,
		txn.WalletID,
		txn.Type,
		txn.Amount,
		txn.BalanceAfter,
		txn.Description,
		txn.ReferenceID,
	).Scan(&txn.ID, &txn.CreatedAt)
}

// FindTransaction looks up the ledger row for a (wallet, type, reference) triple
func (r *WalletRepository) FindTransaction(ctx context.Context, walletID int64, txnType models.WalletTransactionType, referenceID string) (*models.WalletTransaction, error) {
	query := `
		SELECT ` + walletTransactionColumns + `
		FROM wallet_transactions
		WHERE wallet_id = $1 AND type = $2 AND reference_id = $3`

	txn := &models.WalletTransaction{}
	err := scanWalletTransaction(r.db.QueryRowContext(ctx, query, walletID, txnType, referenceID), txn)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *WalletRepository) ListTransactions(ctx context.Context, walletID int64, filter models.TransactionFilter) ([]models.WalletTransaction, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var typeFilter *string
	if filter.Type != nil {
		t := string(*filter.Type)
		typeFilter = &t
	}

	query := `
		SELECT ` + walletTransactionColumns + `
		FROM wallet_transactions
		WHERE wallet_id = $1 AND ($2::varchar IS NULL OR type = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.db.QueryContext(ctx, query, walletID, typeFilter, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []models.WalletTransaction
	for rows.Next() {
		var txn models.WalletTransaction
		if err := scanWalletTransaction(rows, &txn); err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	return txns, rows.Err()
}

func (r *WalletRepository) getOne(ctx context.Context, query string, args ...any) (*models.Wallet, error) {
	wallet := &models.Wallet{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&wallet.ID,
		&wallet.UserID,
		&wallet.Balance,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

func scanWalletTransaction(row scanner, txn *models.WalletTransaction) error {
	return row.Scan(
		&txn.ID,
		&txn.WalletID,
		&txn.Type,
		&txn.Amount,
		&txn.BalanceAfter,
		&txn.Description,
		&txn.ReferenceID,
		&txn.CreatedAt,
	)
}
