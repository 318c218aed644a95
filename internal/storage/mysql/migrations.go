package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
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
			id VARCHAR(64) PRIMARY KEY,
			wallet_address VARCHAR(64) NOT NULL,
			referral_code VARCHAR(32) NOT NULL,
			referral_by VARCHAR(32) NOT NULL DEFAULT '',
			tokens_created BIGINT NOT NULL DEFAULT 0,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			UNIQUE KEY uq_wallets_address (wallet_address),
			UNIQUE KEY uq_wallets_referral_code (referral_code)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin;

		CREATE TABLE IF NOT EXISTS tokens (
			id VARCHAR(64) PRIMARY KEY,
			wallet_id VARCHAR(64) NOT NULL,
			wallet_address VARCHAR(64) NOT NULL,
			mint_address VARCHAR(64) NOT NULL,
			name VARCHAR(128) NOT NULL,
			symbol VARCHAR(64) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			UNIQUE KEY uq_tokens_mint (mint_address),
			INDEX idx_tokens_wallet (wallet_address, created_at DESC)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin;

		CREATE TABLE IF NOT EXISTS activities (
			id VARCHAR(64) PRIMARY KEY,
			wallet_address VARCHAR(64) NOT NULL,
			kind VARCHAR(16) NOT NULL,
			reference VARCHAR(255) NOT NULL,
			signature VARCHAR(128) NOT NULL DEFAULT '',
			created_at DATETIME(6) NOT NULL,
			INDEX idx_activities_wallet (wallet_address, kind, created_at DESC)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin;
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
			mint VARCHAR(64) PRIMARY KEY,
			creator_wallet VARCHAR(64) NOT NULL,
			state VARCHAR(32) NOT NULL,
			name VARCHAR(128) NOT NULL,
			symbol VARCHAR(64) NOT NULL,
			decimals TINYINT UNSIGNED NOT NULL,
			supply BIGINT UNSIGNED NOT NULL DEFAULT 0,
			revoke_mint BOOLEAN NOT NULL,
			revoke_freeze BOOLEAN NOT NULL,
			revoke_update BOOLEAN NOT NULL,
			fee_lamports BIGINT UNSIGNED NOT NULL,
			last_error TEXT NOT NULL,
			error_kind VARCHAR(32) NOT NULL DEFAULT '',
			create_signature VARCHAR(128) NOT NULL DEFAULT '',
			supply_signature VARCHAR(128) NOT NULL DEFAULT '',
			authority_signature VARCHAR(128) NOT NULL DEFAULT '',
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			INDEX idx_token_states_state (state, updated_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin;
		`,
		Down: `
		DROP TABLE IF EXISTS token_states;
		`,
	},
}

type Migrator struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db, logger: slog.Default()}
}

func (m *Migrator) Up(ctx context.Context) error {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	for _, migration := range migrations {
		applied, err := m.isMigrationApplied(ctx, migration.Version)
		if err != nil {
			return fmt.Errorf("failed to check if migration %d is applied: %w", migration.Version, err)
		}

		if applied {
			continue
		}

		if err := m.applyMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}

		m.logger.Info("mysql migration applied", "version", migration.Version, "description", migration.Description)
	}

	return nil
}

func (m *Migrator) Down(ctx context.Context, targetVersion int) error {
	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if migration.Version <= targetVersion {
			break
		}

		applied, err := m.isMigrationApplied(ctx, migration.Version)
		if err != nil {
			return fmt.Errorf("failed to check if migration %d is applied: %w", migration.Version, err)
		}

		if !applied {
			continue
		}

		if err := m.revertMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to revert migration %d: %w", migration.Version, err)
		}

		m.logger.Info("mysql migration reverted", "version", migration.Version)
	}

	return nil
}

func (m *Migrator) ensureMigrationsTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT PRIMARY KEY,
		description VARCHAR(255) NOT NULL,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	_, err := m.db.ExecContext(ctx, query)
	return err
}

func (m *Migrator) isMigrationApplied(ctx context.Context, version int) (bool, error) {
	query := `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`
	var count int
	err := m.db.QueryRowContext(ctx, query, version).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MySQL commits DDL implicitly, so only the bookkeeping row is transactional.
func (m *Migrator) applyMigration(ctx context.Context, migration Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migration.Up); err != nil {
		return err
	}

	insertQuery := `INSERT INTO schema_migrations (version, description) VALUES (?, ?)`
	if _, err := tx.ExecContext(ctx, insertQuery, migration.Version, migration.Description); err != nil {
		return err
	}

	return tx.Commit()
}

func (m *Migrator) revertMigration(ctx context.Context, migration Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migration.Down); err != nil {
		return err
	}

	deleteQuery := `DELETE FROM schema_migrations WHERE version = ?`
	if _, err := tx.ExecContext(ctx, deleteQuery, migration.Version); err != nil {
		return err
	}

	return tx.Commit()
}
