package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lugondev/swapforge/internal/storage"
)

const walletColumns = `id, wallet_address, referral_code, referral_by, tokens_created, created_at, updated_at`

func scanWallet(row pgx.Row) (*storage.WalletModel, error) {
	var w storage.WalletModel
	if err := row.Scan(&w.ID, &w.Address, &w.ReferralCode, &w.ReferralBy, &w.TokensCreated, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

type postgresWalletRepository struct {
	pool *pgxpool.Pool
}

func (r *postgresWalletRepository) FindByAddress(ctx context.Context, address string) (*storage.WalletModel, error) {
	return QueryOne(ctx, r.pool, `SELECT `+walletColumns+` FROM wallets WHERE wallet_address = $1`, scanWallet, address)
}

func (r *postgresWalletRepository) FindByReferralCode(ctx context.Context, code string) (*storage.WalletModel, error) {
	return QueryOne(ctx, r.pool, `SELECT `+walletColumns+` FROM wallets WHERE referral_code = $1`, scanWallet, code)
}

func (r *postgresWalletRepository) Insert(ctx context.Context, w *storage.WalletModel) error {
	query := `INSERT INTO wallets (` + walletColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query, w.ID, w.Address, w.ReferralCode, w.ReferralBy, w.TokensCreated, w.CreatedAt, w.UpdatedAt)
	return execErr(err)
}

func (r *postgresWalletRepository) IncrementTokensCreated(ctx context.Context, address string, at time.Time) (*storage.WalletModel, error) {
	query := `UPDATE wallets SET tokens_created = tokens_created + 1, updated_at = $2
		WHERE wallet_address = $1 RETURNING ` + walletColumns
	return QueryOne(ctx, r.pool, query, scanWallet, address, at.UTC())
}

const tokenColumns = `id, wallet_id, wallet_address, mint_address, name, symbol, created_at`

func scanToken(row pgx.Row) (*storage.TokenModel, error) {
	var t storage.TokenModel
	if err := row.Scan(&t.ID, &t.WalletID, &t.WalletAddress, &t.Mint, &t.Name, &t.Symbol, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

type postgresTokenRepository struct {
	pool *pgxpool.Pool
}

func (r *postgresTokenRepository) Insert(ctx context.Context, t *storage.TokenModel) error {
	query := `INSERT INTO tokens (` + tokenColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query, t.ID, t.WalletID, t.WalletAddress, t.Mint, t.Name, t.Symbol, t.CreatedAt)
	return execErr(err)
}

func (r *postgresTokenRepository) FindByMint(ctx context.Context, mint string) (*storage.TokenModel, error) {
	return QueryOne(ctx, r.pool, `SELECT `+tokenColumns+` FROM tokens WHERE mint_address = $1`, scanToken, mint)
}

func (r *postgresTokenRepository) FindByWallet(ctx context.Context, address string, limit int, offset int) ([]*storage.TokenModel, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE wallet_address = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return QueryMany(ctx, r.pool, query, scanToken, address, limitArg(limit), max(offset, 0))
}

const activityColumns = `id, wallet_address, kind, reference, signature, created_at`

func scanActivity(row pgx.Row) (*storage.ActivityModel, error) {
	var a storage.ActivityModel
	if err := row.Scan(&a.ID, &a.WalletAddress, &a.Kind, &a.Reference, &a.Signature, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

type postgresActivityRepository struct {
	pool *pgxpool.Pool
}

func (r *postgresActivityRepository) Insert(ctx context.Context, a *storage.ActivityModel) error {
	query := `INSERT INTO activities (` + activityColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query, a.ID, a.WalletAddress, a.Kind, a.Reference, a.Signature, a.CreatedAt)
	return execErr(err)
}

func (r *postgresActivityRepository) FindByWallet(ctx context.Context, address string, kind string, limit int, offset int) ([]*storage.ActivityModel, error) {
	query := `SELECT ` + activityColumns + ` FROM activities
		WHERE wallet_address = $1 AND ($2::text = '' OR kind = $2::text)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`
	return QueryMany(ctx, r.pool, query, scanActivity, address, kind, limitArg(limit), max(offset, 0))
}

const stateColumns = `mint, creator_wallet, state, name, symbol, decimals, supply,
	revoke_mint, revoke_freeze, revoke_update, fee_lamports, last_error, error_kind,
	create_signature, supply_signature, authority_signature, created_at, updated_at`

func scanState(row pgx.Row) (*storage.TokenStateModel, error) {
	var (
		s        storage.TokenStateModel
		decimals int16
		supply   int64
		fee      int64
	)
	if err := row.Scan(
		&s.Mint, &s.CreatorWallet, &s.State, &s.Name, &s.Symbol, &decimals, &supply,
		&s.RevokeMint, &s.RevokeFreeze, &s.RevokeUpdate, &fee, &s.LastError, &s.ErrorKind,
		&s.CreateSignature, &s.SupplySignature, &s.AuthoritySignature, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Decimals = uint8(decimals)
	s.Supply = uint64(supply)
	s.FeeLamports = uint64(fee)
	return &s, nil
}

func stateArgs(s *storage.TokenStateModel) []any {
	return []any{
		s.Mint, s.CreatorWallet, s.State, s.Name, s.Symbol, int16(s.Decimals), int64(s.Supply),
		s.RevokeMint, s.RevokeFreeze, s.RevokeUpdate, int64(s.FeeLamports), s.LastError, s.ErrorKind,
		s.CreateSignature, s.SupplySignature, s.AuthoritySignature, s.CreatedAt, s.UpdatedAt,
	}
}

type postgresTokenStateRepository struct {
	pool *pgxpool.Pool
}

func (r *postgresTokenStateRepository) Create(ctx context.Context, s *storage.TokenStateModel) error {
	query := `INSERT INTO token_states (` + stateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := r.pool.Exec(ctx, query, stateArgs(s)...)
	return execErr(err)
}

func (r *postgresTokenStateRepository) Update(ctx context.Context, s *storage.TokenStateModel, expected string) error {
	query := `UPDATE token_states SET
			creator_wallet = $2, state = $3, name = $4, symbol = $5, decimals = $6, supply = $7,
			revoke_mint = $8, revoke_freeze = $9, revoke_update = $10, fee_lamports = $11,
			last_error = $12, error_kind = $13, create_signature = $14, supply_signature = $15,
			authority_signature = $16, created_at = $17, updated_at = $18
		WHERE mint = $1 AND state = $19`
	tag, err := r.pool.Exec(ctx, query, append(stateArgs(s), expected)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrStaleState
	}
	return nil
}

func (r *postgresTokenStateRepository) FindByMint(ctx context.Context, mint string) (*storage.TokenStateModel, error) {
	return QueryOne(ctx, r.pool, `SELECT `+stateColumns+` FROM token_states WHERE mint = $1`, scanState, mint)
}

func (r *postgresTokenStateRepository) FindStale(ctx context.Context, state string, cutoff time.Time, limit int) ([]*storage.TokenStateModel, error) {
	query := `SELECT ` + stateColumns + ` FROM token_states
		WHERE state = $1 AND updated_at < $2 ORDER BY updated_at ASC LIMIT $3`
	return QueryMany(ctx, r.pool, query, scanState, state, cutoff.UTC(), limitArg(limit))
}
