package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Wallet records",
		Up: `
		CREATE TABLE IF NOT EXISTS wallets (
			id TEXT PRIMARY KEY,
			wallet_address TEXT UNIQUE NOT NULL,
			referral_code TEXT UNIQUE NOT NULL,
			referral_by TEXT NOT NULL DEFAULT '',
			tokens_created BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tokens (
			id TEXT PRIMARY KEY,
			wallet_id TEXT NOT NULL REFERENCES wallets(id),
			wallet_address TEXT NOT NULL,
			mint_address TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			symbol TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tokens_wallet ON tokens(wallet_address, created_at DESC);

		CREATE TABLE IF NOT EXISTS activities (
			id TEXT PRIMARY KEY,
			wallet_address TEXT NOT NULL,
			kind TEXT NOT NULL,
			reference TEXT NOT NULL,
			signature TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_activities_wallet ON activities(wallet_address, kind, created_at DESC);
		`,
		Down: `
		DROP TABLE IF EXISTS activities;
		DROP TABLE IF EXISTS tokens;
		DROP TABLE IF EXISTS wallets;
		`,
	},
	{
		Version:     2,
		Description: "Token lifecycle states",
		Up: `
		CREATE TABLE IF NOT EXISTS token_states (
			mint TEXT PRIMARY KEY,
			creator_wallet TEXT NOT NULL,
			state TEXT NOT NULL,
			name TEXT NOT NULL,
			symbol TEXT NOT NULL,
			decimals SMALLINT NOT NULL,
			supply BIGINT NOT NULL DEFAULT 0,
			revoke_mint BOOLEAN NOT NULL,
			revoke_freeze BOOLEAN NOT NULL,
			revoke_update BOOLEAN NOT NULL,
			fee_lamports BIGINT NOT NULL,
			last_error TEXT NOT NULL DEFAULT '',
			error_kind TEXT NOT NULL DEFAULT '',
			create_signature TEXT NOT NULL DEFAULT '',
			supply_signature TEXT NOT NULL DEFAULT '',
			authority_signature TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_token_states_state ON token_states(state, updated_at);
		`,
		Down: `
		DROP TABLE IF EXISTS token_states;
		`,
	},
}

type Migrator struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewMigrator(pool *pgxpool.Pool) *Migrator {
	return &Migrator{pool: pool, logger: slog.Default()}
}

func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`
	_, err := m.pool.Exec(ctx, query)
	return err
}

// Version returns the highest applied migration, or 0.
func (m *Migrator) Version(ctx context.Context) (int, error) {
	if err := m.createMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var version int
	err := m.pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// Up applies every pending migration in one transaction.
func (m *Migrator) Up(ctx context.Context) error {
	currentVersion, err := m.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	applied := 0
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		if _, err := tx.Exec(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		applied++
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}

	if applied > 0 {
		m.logger.Info("postgres migrations applied", "count", applied)
	}
	return nil
}

// Down rolls back the given number of migrations, newest first.
func (m *Migrator) Down(ctx context.Context, steps int) error {
	currentVersion, err := m.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	if currentVersion == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rolledBack := 0
	for i := len(migrations) - 1; i >= 0 && rolledBack < steps; i-- {
		migration := migrations[i]
		if migration.Version > currentVersion {
			continue
		}

		if _, err := tx.Exec(ctx, migration.Down); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(ctx,
			"DELETE FROM schema_migrations WHERE version = $1",
			migration.Version,
		); err != nil {
			return fmt.Errorf("failed to remove migration record %d: %w", migration.Version, err)
		}

		rolledBack++
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit rollback: %w", err)
	}

	m.logger.Info("postgres migrations rolled back", "count", rolledBack)
	return nil
}
