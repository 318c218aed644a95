package mysql

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/lugondev/swapforge/internal/storage"
)

const duplicateEntry = 1062

type scanner interface {
	Scan(dest ...any) error
}

func execErr(err error) error {
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) && myErr.Number == duplicateEntry {
		return storage.ErrDuplicateKey
	}
	return err
}

// queryOne returns nil, nil when the query matches no row.
func queryOne[T any](ctx context.Context, db *sql.DB, query string, scan func(scanner) (*T, error), args ...any) (*T, error) {
	item, err := scan(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

func queryMany[T any](ctx context.Context, db *sql.DB, query string, scan func(scanner) (*T, error), args ...any) ([]*T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// MySQL has no OFFSET without LIMIT.
func limitArg(limit int) int64 {
	if limit <= 0 {
		return math.MaxInt64
	}
	return int64(limit)
}

const walletColumns = `id, wallet_address, referral_code, referral_by, tokens_created, created_at, updated_at`

func scanWallet(row scanner) (*storage.WalletModel, error) {
	var w storage.WalletModel
	if err := row.Scan(&w.ID, &w.Address, &w.ReferralCode, &w.ReferralBy, &w.TokensCreated, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

type mysqlWalletRepository struct {
	db *sql.DB
}

func (r *mysqlWalletRepository) FindByAddress(ctx context.Context, address string) (*storage.WalletModel, error) {
	return queryOne(ctx, r.db, `SELECT `+walletColumns+` FROM wallets WHERE wallet_address = ?`, scanWallet, address)
}

func (r *mysqlWalletRepository) FindByReferralCode(ctx context.Context, code string) (*storage.WalletModel, error) {
	return queryOne(ctx, r.db, `SELECT `+walletColumns+` FROM wallets WHERE referral_code = ?`, scanWallet, code)
}

func (r *mysqlWalletRepository) Insert(ctx context.Context, w *storage.WalletModel) error {
	query := `INSERT INTO wallets (` + walletColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, w.ID, w.Address, w.ReferralCode, w.ReferralBy, w.TokensCreated, w.CreatedAt, w.UpdatedAt)
	return execErr(err)
}

func (r *mysqlWalletRepository) IncrementTokensCreated(ctx context.Context, address string, at time.Time) (*storage.WalletModel, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE wallets SET tokens_created = tokens_created + 1, updated_at = ? WHERE wallet_address = ?`,
		at.UTC(), address,
	)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, nil
	}
	return r.FindByAddress(ctx, address)
}

const tokenColumns = `id, wallet_id, wallet_address, mint_address, name, symbol, created_at`

func scanToken(row scanner) (*storage.TokenModel, error) {
	var t storage.TokenModel
	if err := row.Scan(&t.ID, &t.WalletID, &t.WalletAddress, &t.Mint, &t.Name, &t.Symbol, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

type mysqlTokenRepository struct {
	db *sql.DB
}

func (r *mysqlTokenRepository) Insert(ctx context.Context, t *storage.TokenModel) error {
	query := `INSERT INTO tokens (` + tokenColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, t.ID, t.WalletID, t.WalletAddress, t.Mint, t.Name, t.Symbol, t.CreatedAt)
	return execErr(err)
}

func (r *mysqlTokenRepository) FindByMint(ctx context.Context, mint string) (*storage.TokenModel, error) {
	return queryOne(ctx, r.db, `SELECT `+tokenColumns+` FROM tokens WHERE mint_address = ?`, scanToken, mint)
}

func (r *mysqlTokenRepository) FindByWallet(ctx context.Context, address string, limit int, offset int) ([]*storage.TokenModel, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE wallet_address = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?`
	return queryMany(ctx, r.db, query, scanToken, address, limitArg(limit), max(offset, 0))
}

const activityColumns = `id, wallet_address, kind, reference, signature, created_at`

func scanActivity(row scanner) (*storage.ActivityModel, error) {
	var a storage.ActivityModel
	if err := row.Scan(&a.ID, &a.WalletAddress, &a.Kind, &a.Reference, &a.Signature, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

type mysqlActivityRepository struct {
	db *sql.DB
}

func (r *mysqlActivityRepository) Insert(ctx context.Context, a *storage.ActivityModel) error {
	query := `INSERT INTO activities (` + activityColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, a.ID, a.WalletAddress, a.Kind, a.Reference, a.Signature, a.CreatedAt)
	return execErr(err)
}

func (r *mysqlActivityRepository) FindByWallet(ctx context.Context, address string, kind string, limit int, offset int) ([]*storage.ActivityModel, error) {
	query := `SELECT ` + activityColumns + ` FROM activities
		WHERE wallet_address = ? AND (? = '' OR kind = ?)
		ORDER BY created_at DESC LIMIT ? OFFSET ?`
	return queryMany(ctx, r.db, query, scanActivity, address, kind, kind, limitArg(limit), max(offset, 0))
}

const stateColumns = `mint, creator_wallet, state, name, symbol, decimals, supply,
	revoke_mint, revoke_freeze, revoke_update, fee_lamports, last_error, error_kind,
	create_signature, supply_signature, authority_signature, created_at, updated_at`

func scanState(row scanner) (*storage.TokenStateModel, error) {
	var s storage.TokenStateModel
	if err := row.Scan(
		&s.Mint, &s.CreatorWallet, &s.State, &s.Name, &s.Symbol, &s.Decimals, &s.Supply,
		&s.RevokeMint, &s.RevokeFreeze, &s.RevokeUpdate, &s.FeeLamports, &s.LastError, &s.ErrorKind,
		&s.CreateSignature, &s.SupplySignature, &s.AuthoritySignature, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

type mysqlTokenStateRepository struct {
	db *sql.DB
}

func (r *mysqlTokenStateRepository) Create(ctx context.Context, s *storage.TokenStateModel) error {
	query := `INSERT INTO token_states (` + stateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		s.Mint, s.CreatorWallet, s.State, s.Name, s.Symbol, s.Decimals, s.Supply,
		s.RevokeMint, s.RevokeFreeze, s.RevokeUpdate, s.FeeLamports, s.LastError, s.ErrorKind,
		s.CreateSignature, s.SupplySignature, s.AuthoritySignature, s.CreatedAt, s.UpdatedAt,
	)
	return execErr(err)
}

func (r *mysqlTokenStateRepository) Update(ctx context.Context, s *storage.TokenStateModel, expected string) error {
	query := `UPDATE token_states SET
			creator_wallet = ?, state = ?, name = ?, symbol = ?, decimals = ?, supply = ?,
			revoke_mint = ?, revoke_freeze = ?, revoke_update = ?, fee_lamports = ?,
			last_error = ?, error_kind = ?, create_signature = ?, supply_signature = ?,
			authority_signature = ?, created_at = ?, updated_at = ?
		WHERE mint = ? AND state = ?`
	res, err := r.db.ExecContext(ctx, query,
		s.CreatorWallet, s.State, s.Name, s.Symbol, s.Decimals, s.Supply,
		s.RevokeMint, s.RevokeFreeze, s.RevokeUpdate, s.FeeLamports,
		s.LastError, s.ErrorKind, s.CreateSignature, s.SupplySignature,
		s.AuthoritySignature, s.CreatedAt, s.UpdatedAt,
		s.Mint, expected,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrStaleState
	}
	return nil
}

func (r *mysqlTokenStateRepository) FindByMint(ctx context.Context, mint string) (*storage.TokenStateModel, error) {
	return queryOne(ctx, r.db, `SELECT `+stateColumns+` FROM token_states WHERE mint = ?`, scanState, mint)
}

func (r *mysqlTokenStateRepository) FindStale(ctx context.Context, state string, cutoff time.Time, limit int) ([]*storage.TokenStateModel, error) {
	query := `SELECT ` + stateColumns + ` FROM token_states
		WHERE state = ? AND updated_at < ? ORDER BY updated_at ASC LIMIT ?`
	return queryMany(ctx, r.db, query, scanState, state, cutoff.UTC(), limitArg(limit))
}
