package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lugondev/swapforge/internal/config"
	"github.com/lugondev/swapforge/internal/storage"
)

func init() {
	storage.RegisterPostgresFactory(func(ctx context.Context, cfg *config.PostgresConfig) (storage.Repository, error) {
		return NewPostgresRepository(ctx, cfg)
	})
}

type PostgresRepository struct {
	pool         *pgxpool.Pool
	walletRepo   storage.WalletRepository
	tokenRepo    storage.TokenRepository
	activityRepo storage.ActivityRepository
	stateRepo    storage.TokenStateRepository
}

func NewPostgresRepository(ctx context.Context, cfg *config.PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.ConnMaxLifetime) * time.Second
	}
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrator := NewMigrator(pool)
	if err := migrator.Up(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresRepository{
		pool:         pool,
		walletRepo:   &postgresWalletRepository{pool: pool},
		tokenRepo:    &postgresTokenRepository{pool: pool},
		activityRepo: &postgresActivityRepository{pool: pool},
		stateRepo:    &postgresTokenStateRepository{pool: pool},
	}, nil
}

func (r *PostgresRepository) Wallets() storage.WalletRepository {
	return r.walletRepo
}

func (r *PostgresRepository) Tokens() storage.TokenRepository {
	return r.tokenRepo
}

func (r *PostgresRepository) Activities() storage.ActivityRepository {
	return r.activityRepo
}

func (r *PostgresRepository) TokenStates() storage.TokenStateRepository {
	return r.stateRepo
}

func (r *PostgresRepository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
