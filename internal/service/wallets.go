package service

import (
	"context"
	"fmt"
	"time"

	apperrors "raffle/internal/errors"
	"raffle/internal/logger"
	"raffle/internal/metrics"
	"raffle/internal/models"

	"github.com/shopspring/decimal"
)

type WalletLedger struct {
	store     Store
	publisher Publisher
}

func NewWalletLedger(store Store, publisher Publisher) *WalletLedger {
	return &WalletLedger{store: store, publisher: publisher}
}

// Credit adds amount to the wallet and records the ledger row in the same transaction.
func (l *WalletLedger) Credit(ctx context.Context, walletID int64, amount decimal.Decimal, txnType models.WalletTransactionType, description string, referenceID *string) (*models.WalletTransaction, error) {
	var txn *models.WalletTransaction
	err := l.store.InTx(ctx, func(r Repos) error {
		var err error
		txn, err = walletWriter{r.Wallets}.credit(ctx, walletID, amount, txnType, description, referenceID)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.publishCredit(ctx, txn)
	return txn, nil
}

// Debit fails with InsufficientBalanceError and leaves the wallet untouched
// when the balance does not cover amount.
func (l *WalletLedger) Debit(ctx context.Context, walletID int64, amount decimal.Decimal, txnType models.WalletTransactionType, description string, referenceID *string) (*models.WalletTransaction, error) {
	var txn *models.WalletTransaction
	err := l.store.InTx(ctx, func(r Repos) error {
		var err error
		txn, err = walletWriter{r.Wallets}.debit(ctx, walletID, amount, txnType, description, referenceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// CreditOnce records at most one credit per (wallet, type, reference). A
// repeated call returns the existing row and created=false.
func (l *WalletLedger) CreditOnce(ctx context.Context, walletID int64, amount decimal.Decimal, txnType models.WalletTransactionType, description, referenceID string) (txn *models.WalletTransaction, created bool, err error) {
	err = l.store.InTx(ctx, func(r Repos) error {
		var err error
		txn, created, err = walletWriter{r.Wallets}.creditOnce(ctx, walletID, amount, txnType, description, referenceID)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		l.publishCredit(ctx, txn)
	}
	return txn, created, nil
}

// GetBalance is zero for users that never had a wallet.
func (l *WalletLedger) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	wallet, err := l.store.Repos().Wallets.GetByUserID(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get wallet: %w", err)
	}
	if wallet == nil {
		return decimal.Zero, nil
	}
	return wallet.Balance, nil
}

func (l *WalletLedger) GetOrCreate(ctx context.Context, userID int64) (*models.Wallet, error) {
	wallet, err := l.store.Repos().Wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create wallet: %w", err)
	}
	return wallet, nil
}

func (l *WalletLedger) Transactions(ctx context.Context, walletID int64, filter models.TransactionFilter) ([]models.WalletTransaction, error) {
	if filter.Type != nil && !filter.Type.Valid() {
		return nil, apperrors.Validation("unknown transaction type %q", *filter.Type)
	}
	if filter.Offset < 0 {
		return nil, apperrors.Validation("offset must not be negative")
	}

	txns, err := l.store.Repos().Wallets.ListTransactions(ctx, walletID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	return txns, nil
}

// AdminAdjust applies a signed manual correction: positive amounts credit,
// negative amounts debit.
func (l *WalletLedger) AdminAdjust(ctx context.Context, userID int64, amount decimal.Decimal, description string) (*models.WalletTransaction, error) {
	if amount.IsZero() {
		return nil, apperrors.Validation("adjustment amount must not be zero")
	}
	if description == "" {
		return nil, apperrors.Validation("adjustment needs a description")
	}

	wallet, err := l.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if amount.IsPositive() {
		return l.Credit(ctx, wallet.ID, amount, models.WalletAdminCredit, description, nil)
	}
	return l.Debit(ctx, wallet.ID, amount.Neg(), models.WalletAdminDebit, description, nil)
}

func (l *WalletLedger) publishCredit(ctx context.Context, txn *models.WalletTransaction) {
	wallet, err := l.store.Repos().Wallets.GetByID(ctx, txn.WalletID)
	if err != nil || wallet == nil {
		return
	}
	publishWalletCredited(ctx, l.publisher, wallet.UserID, txn)
}

func publishWalletCredited(ctx context.Context, publisher Publisher, userID int64, txn *models.WalletTransaction) {
	event := models.WalletCreditedEvent{
		WalletID:     txn.WalletID,
		UserID:       userID,
		Type:         txn.Type,
		Amount:       txn.Amount,
		BalanceAfter: txn.BalanceAfter,
		Timestamp:    time.Now(),
	}
	if txn.ReferenceID != nil {
		event.ReferenceID = *txn.ReferenceID
	}

	if err := publisher.Publish(models.EventWalletCredited, event); err != nil {
		logger.WithContext(ctx).Error("Failed to publish wallet credited event",
			"error", err,
			"wallet_id", txn.WalletID,
			"event_type", models.EventWalletCredited)
	}
}

// walletWriter applies ledger writes through one transaction's WalletStore.
// Balance update and ledger row always go through the same store.
type walletWriter struct {
	wallets WalletStore
}

func (w walletWriter) credit(ctx context.Context, walletID int64, amount decimal.Decimal, txnType models.WalletTransactionType, description string, referenceID *string) (*models.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, apperrors.Validation("credit amount must be positive")
	}
	if !txnType.Valid() || txnType.IsDebit() {
		return nil, apperrors.Validation("%q is not a credit type", txnType)
	}

	balance, err := w.wallets.Credit(ctx, walletID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to credit wallet: %w", err)
	}

	txn := &models.WalletTransaction{
		WalletID:     walletID,
		Type:         txnType,
		Amount:       amount,
		BalanceAfter: balance,
		Description:  description,
		ReferenceID:  referenceID,
	}
	if err := w.wallets.InsertTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to record wallet transaction: %w", err)
	}

	metrics.WalletOperationsTotal.WithLabelValues(string(txnType)).Inc()
	return txn, nil
}

func (w walletWriter) debit(ctx context.Context, walletID int64, amount decimal.Decimal, txnType models.WalletTransactionType, description string, referenceID *string) (*models.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, apperrors.Validation("debit amount must be positive")
	}
	if !txnType.IsDebit() {
		return nil, apperrors.Validation("%q is not a debit type", txnType)
	}

	balance, ok, err := w.wallets.Debit(ctx, walletID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to debit wallet: %w", err)
	}
	if !ok {
		current := decimal.Zero
		if wallet, err := w.wallets.GetByID(ctx, walletID); err == nil && wallet != nil {
			current = wallet.Balance
		}
		return nil, &apperrors.InsufficientBalanceError{Balance: current, Requested: amount}
	}

	txn := &models.WalletTransaction{
		WalletID:     walletID,
		Type:         txnType,
		Amount:       amount.Neg(),
		BalanceAfter: balance,
		Description:  description,
		ReferenceID:  referenceID,
	}
	if err := w.wallets.InsertTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to record wallet transaction: %w", err)
	}

	metrics.WalletOperationsTotal.WithLabelValues(string(txnType)).Inc()
	return txn, nil
}

// creditOnce holds the wallet row lock while checking for an earlier credit,
// so two deliveries of the same reference serialize on it.
func (w walletWriter) creditOnce(ctx context.Context, walletID int64, amount decimal.Decimal, txnType models.WalletTransactionType, description, referenceID string) (*models.WalletTransaction, bool, error) {
	if referenceID == "" {
		return nil, false, apperrors.Validation("idempotent credit needs a reference id")
	}

	wallet, err := w.wallets.LockByID(ctx, walletID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock wallet: %w", err)
	}
	if wallet == nil {
		return nil, false, fmt.Errorf("wallet %d: %w", walletID, apperrors.ErrNotFound)
	}

	existing, err := w.wallets.FindTransaction(ctx, walletID, txnType, referenceID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up wallet transaction: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	txn, err := w.credit(ctx, walletID, amount, txnType, description, &referenceID)
	if err != nil {
		return nil, false, err
	}
	return txn, true, nil
}
