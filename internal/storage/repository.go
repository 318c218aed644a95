package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDuplicateKey is returned when an insert clashes with a unique key.
	ErrDuplicateKey = errors.New("storage: duplicate key")

	// ErrStaleState is returned by TokenStateRepository.Update when the stored
	// state no longer matches the expected one.
	ErrStaleState = errors.New("storage: token state changed concurrently")
)

// Find methods return nil, nil when nothing matches.

type WalletRepository interface {
	FindByAddress(ctx context.Context, address string) (*WalletModel, error)
	FindByReferralCode(ctx context.Context, code string) (*WalletModel, error)
	Insert(ctx context.Context, wallet *WalletModel) error
	IncrementTokensCreated(ctx context.Context, address string, at time.Time) (*WalletModel, error)
}

type TokenRepository interface {
	Insert(ctx context.Context, token *TokenModel) error
	FindByMint(ctx context.Context, mint string) (*TokenModel, error)
	FindByWallet(ctx context.Context, address string, limit int, offset int) ([]*TokenModel, error)
}

type ActivityRepository interface {
	Insert(ctx context.Context, activity *ActivityModel) error
	// FindByWallet lists activity newest first. An empty kind matches all kinds.
	FindByWallet(ctx context.Context, address string, kind string, limit int, offset int) ([]*ActivityModel, error)
}

type TokenStateRepository interface {
	Create(ctx context.Context, state *TokenStateModel) error
	// Update replaces the stored record if its state still equals expected.
	Update(ctx context.Context, state *TokenStateModel, expected string) error
	FindByMint(ctx context.Context, mint string) (*TokenStateModel, error)
	// FindStale lists records in state last updated before cutoff, oldest first.
	FindStale(ctx context.Context, state string, cutoff time.Time, limit int) ([]*TokenStateModel, error)
}

type Repository interface {
	Wallets() WalletRepository
	Tokens() TokenRepository
	Activities() ActivityRepository
	TokenStates() TokenStateRepository
	Close() error
	Ping(ctx context.Context) error
}
