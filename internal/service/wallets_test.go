package service_test

import (
	"testing"

	apperrors "raffle/internal/errors"
	"raffle/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletDebitInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	wallet := env.fund(t, 1, "50")

	txn, err := env.svc.Wallets.Debit(env.ctx, wallet.ID, dec("30"), models.WalletSpend, "first", nil)
	require.NoError(t, err)
	assert.Equal(t, "-30.00", txn.Amount.StringFixed(2))
	assert.Equal(t, "20.00", txn.BalanceAfter.StringFixed(2))

	_, err = env.svc.Wallets.Debit(env.ctx, wallet.ID, dec("30"), models.WalletSpend, "second", nil)
	var insufficient *apperrors.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "Insufficient balance", err.Error())
	assert.Equal(t, "20.00", insufficient.Balance.StringFixed(2))

	assert.Equal(t, "20.00", env.balance(t, 1))
	assert.Len(t, env.store.WalletTransactions(wallet.ID), 2)
}

func TestWalletBalanceEqualsLedgerSum(t *testing.T) {
	env := newTestEnv(t)
	wallet := env.fund(t, 1, "0")

	ops := []struct {
		credit bool
		amount string
	}{
		{true, "10.50"},
		{false, "4.25"},
		{true, "3"},
		{false, "20"},
		{false, "9.25"},
		{true, "0.99"},
		{false, "1.00"},
	}

	for _, op := range ops {
		if op.credit {
			_, err := env.svc.Wallets.Credit(env.ctx, wallet.ID, dec(op.amount), models.WalletCashback, "", nil)
			require.NoError(t, err)
		} else {
			_, err := env.svc.Wallets.Debit(env.ctx, wallet.ID, dec(op.amount), models.WalletSpend, "", nil)
			if err != nil {
				assert.True(t, apperrors.IsConflict(err))
			}
		}
	}

	sum := decimal.Zero
	for _, txn := range env.store.WalletTransactions(wallet.ID) {
		sum = sum.Add(txn.Amount)
		assert.False(t, txn.BalanceAfter.IsNegative())
	}
	assert.Equal(t, sum.StringFixed(2), env.balance(t, 1))
	assert.Equal(t, "0.99", env.balance(t, 1))
}

func TestWalletCreditOnceIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	wallet := env.fund(t, 7, "0")

	first, created, err := env.svc.Wallets.CreditOnce(env.ctx, wallet.ID, dec("25"), models.WalletDeposit, "top-up", "pi_123")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := env.svc.Wallets.CreditOnce(env.ctx, wallet.ID, dec("25"), models.WalletDeposit, "top-up", "pi_123")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, "25.00", env.balance(t, 7))
	assert.Equal(t, 1, env.events.Count(models.EventWalletCredited))
}

func TestWalletRejectsNonPositiveAmounts(t *testing.T) {
	env := newTestEnv(t)
	wallet := env.fund(t, 1, "10")

	var verr *apperrors.ValidationError
	_, err := env.svc.Wallets.Credit(env.ctx, wallet.ID, dec("0"), models.WalletDeposit, "", nil)
	assert.ErrorAs(t, err, &verr)

	_, err = env.svc.Wallets.Debit(env.ctx, wallet.ID, dec("-5"), models.WalletSpend, "", nil)
	assert.ErrorAs(t, err, &verr)

	_, err = env.svc.Wallets.Credit(env.ctx, wallet.ID, dec("5"), models.WalletSpend, "", nil)
	assert.ErrorAs(t, err, &verr)

	assert.Equal(t, "10.00", env.balance(t, 1))
}

func TestWalletGetBalanceWithoutWallet(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, "0.00", env.balance(t, 404))
}

func TestWalletAdminAdjust(t *testing.T) {
	env := newTestEnv(t)

	txn, err := env.svc.Wallets.AdminAdjust(env.ctx, 3, dec("15"), "goodwill")
	require.NoError(t, err)
	assert.Equal(t, models.WalletAdminCredit, txn.Type)

	txn, err = env.svc.Wallets.AdminAdjust(env.ctx, 3, dec("-5"), "correction")
	require.NoError(t, err)
	assert.Equal(t, models.WalletAdminDebit, txn.Type)
	assert.Equal(t, "-5.00", txn.Amount.StringFixed(2))

	_, err = env.svc.Wallets.AdminAdjust(env.ctx, 3, dec("-50"), "too much")
	var insufficient *apperrors.InsufficientBalanceError
	assert.ErrorAs(t, err, &insufficient)

	assert.Equal(t, "10.00", env.balance(t, 3))
}

func TestWalletTransactionsFilter(t *testing.T) {
	env := newTestEnv(t)
	wallet := env.fund(t, 1, "40")

	_, err := env.svc.Wallets.Debit(env.ctx, wallet.ID, dec("5"), models.WalletSpend, "", nil)
	require.NoError(t, err)
	_, err = env.svc.Wallets.Debit(env.ctx, wallet.ID, dec("6"), models.WalletSpend, "", nil)
	require.NoError(t, err)

	spend := models.WalletSpend
	txns, err := env.svc.Wallets.Transactions(env.ctx, wallet.ID, models.TransactionFilter{Type: &spend})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "-6.00", txns[0].Amount.StringFixed(2), "newest first")

	page, err := env.svc.Wallets.Transactions(env.ctx, wallet.ID, models.TransactionFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "-5.00", page[0].Amount.StringFixed(2))

	bogus := models.WalletTransactionType("bonus")
	_, err = env.svc.Wallets.Transactions(env.ctx, wallet.ID, models.TransactionFilter{Type: &bogus})
	var verr *apperrors.ValidationError
	assert.ErrorAs(t, err, &verr)
}
