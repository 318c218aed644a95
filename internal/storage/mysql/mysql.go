package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/lugondev/swapforge/internal/config"
	"github.com/lugondev/swapforge/internal/storage"
)

func init() {
	storage.RegisterMySQLFactory(func(ctx context.Context, cfg *config.MySQLConfig) (storage.Repository, error) {
		return NewMySQLRepository(ctx, cfg)
	})
}

type MySQLRepository struct {
	db           *sql.DB
	walletRepo   storage.WalletRepository
	tokenRepo    storage.TokenRepository
	activityRepo storage.ActivityRepository
	stateRepo    storage.TokenStateRepository
}

func NewMySQLRepository(ctx context.Context, cfg *config.MySQLConfig) (*MySQLRepository, error) {
	return OpenDSN(ctx, cfg.DSN(), cfg.MaxOpenConns, cfg.MaxIdleConns, time.Duration(cfg.ConnMaxLifetime)*time.Second)
}

// OpenDSN opens a repository from a driver DSN. The DSN must enable
// parseTime and multiStatements.
func OpenDSN(ctx context.Context, dsn string, maxOpen, maxIdle int, maxLifetime time.Duration) (*MySQLRepository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	if maxLifetime > 0 {
		db.SetConnMaxLifetime(maxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrator := NewMigrator(db)
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &MySQLRepository{
		db:           db,
		walletRepo:   &mysqlWalletRepository{db: db},
		tokenRepo:    &mysqlTokenRepository{db: db},
		activityRepo: &mysqlActivityRepository{db: db},
		stateRepo:    &mysqlTokenStateRepository{db: db},
	}, nil
}

func (r *MySQLRepository) Wallets() storage.WalletRepository {
	return r.walletRepo
}

func (r *MySQLRepository) Tokens() storage.TokenRepository {
	return r.tokenRepo
}

func (r *MySQLRepository) Activities() storage.ActivityRepository {
	return r.activityRepo
}

func (r *MySQLRepository) TokenStates() storage.TokenStateRepository {
	return r.stateRepo
}

func (r *MySQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *MySQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
