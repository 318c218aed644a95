package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lugondev/swapforge/internal/storage"
)

const uniqueViolation = "23505"

// ScanFunc scans the current row. It works for both pgx.Row and pgx.Rows.
type ScanFunc[T any] func(row pgx.Row) (*T, error)

func QueryMany[T any](
	ctx context.Context,
	pool *pgxpool.Pool,
	query string,
	scanFunc ScanFunc[T],
	args ...any,
) ([]*T, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*T
	for rows.Next() {
		item, err := scanFunc(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}

	return results, rows.Err()
}

// QueryOne returns nil, nil when the query matches no row.
func QueryOne[T any](
	ctx context.Context,
	pool *pgxpool.Pool,
	query string,
	scanFunc ScanFunc[T],
	args ...any,
) (*T, error) {
	item, err := scanFunc(pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

func execErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return storage.ErrDuplicateKey
	}
	return err
}

// limitArg maps a non-positive limit to "no limit".
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
