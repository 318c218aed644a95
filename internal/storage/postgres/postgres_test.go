package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lugondev/swapforge/internal/config"
	"github.com/lugondev/swapforge/internal/storage/storagetest"
)

func setupRepository(t *testing.T) *PostgresRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests are skipped with -short")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("swapforge"),
		tcpostgres.WithUsername("swapforge"),
		tcpostgres.WithPassword("swapforge"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	repo, err := NewPostgresRepository(ctx, &config.PostgresConfig{
		Host:         host,
		Port:         port.Int(),
		User:         "swapforge",
		Password:     "swapforge",
		Database:     "swapforge",
		SSLMode:      "disable",
		MaxOpenConns: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestPostgresRepository(t *testing.T) {
	repo := setupRepository(t)
	storagetest.Run(t, repo)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	migrator := NewMigrator(repo.pool)
	require.NoError(t, migrator.Up(ctx))

	version, err := migrator.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, migrations[len(migrations)-1].Version, version)

	require.NoError(t, migrator.Down(ctx, 1))
	version, err = migrator.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, version)

	require.NoError(t, migrator.Up(ctx))
}
