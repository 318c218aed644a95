package mysql

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lugondev/swapforge/internal/storage/storagetest"
)

// Requires a DSN with parseTime, multiStatements and clientFoundRows enabled, e.g.
// SWAPFORGE_TEST_MYSQL_DSN="root:secret@tcp(localhost:3306)/swapforge_test?parseTime=true&multiStatements=true&clientFoundRows=true"
func setupRepository(t *testing.T) *MySQLRepository {
	t.Helper()
	dsn := os.Getenv("SWAPFORGE_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("SWAPFORGE_TEST_MYSQL_DSN not set")
	}

	repo, err := OpenDSN(context.Background(), dsn, 5, 2, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMySQLRepository(t *testing.T) {
	repo := setupRepository(t)
	storagetest.Run(t, repo)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	migrator := NewMigrator(repo.db)
	require.NoError(t, migrator.Up(ctx))
	require.NoError(t, migrator.Up(ctx))

	applied, err := migrator.isMigrationApplied(ctx, migrations[len(migrations)-1].Version)
	require.NoError(t, err)
	require.True(t, applied)
}

func TestLimitArg(t *testing.T) {
	require.Equal(t, int64(10), limitArg(10))
	require.Greater(t, limitArg(0), int64(1<<40))
	require.Greater(t, limitArg(-3), int64(1<<40))
}
