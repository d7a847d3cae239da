package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createCompetitionsTable,
		createOrdersTable,
		createOrderItemsTable,
		createTicketsTable,
		createTicketsIndexes,
		createCompetitionWinnerFK,
		createWalletsTable,
		createWalletTransactionsTable,
		createPromoCodesTable,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createCompetitionsTable = `
CREATE TABLE IF NOT EXISTS competitions (
    id BIGSERIAL PRIMARY KEY,
    title VARCHAR(500) NOT NULL,
    ticket_price NUMERIC(12,2) NOT NULL CHECK (ticket_price >= 0),
    total_tickets INTEGER NOT NULL CHECK (total_tickets > 0),
    tickets_sold INTEGER NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    ends_at TIMESTAMPTZ,
    winning_ticket_id BIGINT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('active', 'closed', 'drawn')),
    CHECK (tickets_sold <= total_tickets)
);`

const createOrdersTable = `
CREATE TABLE IF NOT EXISTS orders (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    order_number VARCHAR(64) NOT NULL UNIQUE,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    subtotal NUMERIC(12,2) NOT NULL,
    discount_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
    wallet_amount_used NUMERIC(12,2) NOT NULL DEFAULT 0,
    total_amount NUMERIC(12,2) NOT NULL,
    payment_method VARCHAR(20) NOT NULL,
    payment_intent_id VARCHAR(255) UNIQUE,
    promo_code VARCHAR(64),
    failure_reason TEXT,
    paid_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('pending', 'paid', 'failed', 'refunded', 'cancelled')),
    CHECK (payment_method IN ('wallet', 'card', 'hybrid')),
    CHECK (total_amount >= 0),
    CHECK (total_amount = subtotal - discount_amount - wallet_amount_used)
);
CREATE INDEX IF NOT EXISTS orders_user_id_idx ON orders (user_id);
CREATE INDEX IF NOT EXISTS orders_pending_created_idx ON orders (created_at) WHERE status = 'pending';`

const createOrderItemsTable = `
CREATE TABLE IF NOT EXISTS order_items (
    id BIGSERIAL PRIMARY KEY,
    order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    competition_id BIGINT NOT NULL REFERENCES competitions(id),
    quantity INTEGER NOT NULL CHECK (quantity > 0),
    unit_price NUMERIC(12,2) NOT NULL,
    total_price NUMERIC(12,2) NOT NULL
);
CREATE INDEX IF NOT EXISTS order_items_order_id_idx ON order_items (order_id);`

const createTicketsTable = `
CREATE TABLE IF NOT EXISTS tickets (
    id BIGSERIAL PRIMARY KEY,
    competition_id BIGINT NOT NULL REFERENCES competitions(id) ON DELETE CASCADE,
    ticket_number INTEGER NOT NULL CHECK (ticket_number > 0),
    status VARCHAR(20) NOT NULL DEFAULT 'available',
    user_id BIGINT,
    order_id BIGINT REFERENCES orders(id),
    purchased_at TIMESTAMPTZ,
    is_instant_win BOOLEAN NOT NULL DEFAULT FALSE,
    instant_win_prize TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE (competition_id, ticket_number),
    CHECK (status IN ('available', 'reserved', 'sold')),
    CHECK ((status = 'available') = (user_id IS NULL AND order_id IS NULL))
);`

const createTicketsIndexes = `
CREATE INDEX IF NOT EXISTS tickets_available_idx ON tickets (competition_id, ticket_number) WHERE status = 'available';
CREATE INDEX IF NOT EXISTS tickets_order_id_idx ON tickets (order_id);`

const createCompetitionWinnerFK = `
DO $$
BEGIN
    IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'competitions_winning_ticket_fk') THEN
        ALTER TABLE competitions
            ADD CONSTRAINT competitions_winning_ticket_fk FOREIGN KEY (winning_ticket_id) REFERENCES tickets(id);
    END IF;
END $$;`

const createWalletsTable = `
CREATE TABLE IF NOT EXISTS wallets (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL UNIQUE,
    balance NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createWalletTransactionsTable = `
CREATE TABLE IF NOT EXISTS wallet_transactions (
    id BIGSERIAL PRIMARY KEY,
    wallet_id BIGINT NOT NULL REFERENCES wallets(id),
    type VARCHAR(20) NOT NULL,
    amount NUMERIC(12,2) NOT NULL,
    balance_after NUMERIC(12,2) NOT NULL CHECK (balance_after >= 0),
    description TEXT NOT NULL DEFAULT '',
    reference_id VARCHAR(255),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (type IN ('deposit', 'spend', 'cashback', 'refund', 'admin_credit', 'admin_debit'))
);
CREATE INDEX IF NOT EXISTS wallet_transactions_wallet_idx ON wallet_transactions (wallet_id, created_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS wallet_transactions_reference_uniq
    ON wallet_transactions (wallet_id, type, reference_id) WHERE reference_id IS NOT NULL;`

const createPromoCodesTable = `
CREATE TABLE IF NOT EXISTS promo_codes (
    id BIGSERIAL PRIMARY KEY,
    code VARCHAR(64) NOT NULL,
    discount_type VARCHAR(20) NOT NULL,
    discount_value NUMERIC(12,2) NOT NULL CHECK (discount_value >= 0),
    min_order_value NUMERIC(12,2) NOT NULL DEFAULT 0,
    max_uses INTEGER,
    current_uses INTEGER NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    valid_from TIMESTAMPTZ,
    valid_until TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (discount_type IN ('percentage', 'fixed')),
    CHECK (max_uses IS NULL OR current_uses <= max_uses)
);
CREATE UNIQUE INDEX IF NOT EXISTS promo_codes_code_lower_uniq ON promo_codes (LOWER(code));`
