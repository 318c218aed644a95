// Package memory is an in-process Repository used for local development and
// tests. Records are copied on the way in and out.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lugondev/swapforge/internal/storage"
)

func init() {
	storage.RegisterMemoryFactory(func(ctx context.Context) (storage.Repository, error) {
		return NewRepository(), nil
	})
}

type MemoryRepository struct {
	mu         sync.RWMutex
	wallets    map[string]*storage.WalletModel // by address
	tokens     []*storage.TokenModel
	activities []*storage.ActivityModel
	states     map[string]*storage.TokenStateModel // by mint

	walletRepo   *walletRepository
	tokenRepo    *tokenRepository
	activityRepo *activityRepository
	stateRepo    *tokenStateRepository
}

func NewRepository() *MemoryRepository {
	r := &MemoryRepository{
		wallets: make(map[string]*storage.WalletModel),
		states:  make(map[string]*storage.TokenStateModel),
	}
	r.walletRepo = &walletRepository{r}
	r.tokenRepo = &tokenRepository{r}
	r.activityRepo = &activityRepository{r}
	r.stateRepo = &tokenStateRepository{r}
	return r
}

func (r *MemoryRepository) Wallets() storage.WalletRepository         { return r.walletRepo }
func (r *MemoryRepository) Tokens() storage.TokenRepository           { return r.tokenRepo }
func (r *MemoryRepository) Activities() storage.ActivityRepository    { return r.activityRepo }
func (r *MemoryRepository) TokenStates() storage.TokenStateRepository { return r.stateRepo }
func (r *MemoryRepository) Close() error                              { return nil }
func (r *MemoryRepository) Ping(ctx context.Context) error            { return ctx.Err() }

type walletRepository struct{ *MemoryRepository }

func (r *walletRepository) FindByAddress(ctx context.Context, address string) (*storage.WalletModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.wallets[address]
	if !ok {
		return nil, nil
	}
	c := *w
	return &c, nil
}

func (r *walletRepository) FindByReferralCode(ctx context.Context, code string) (*storage.WalletModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, w := range r.wallets {
		if w.ReferralCode == code {
			c := *w
			return &c, nil
		}
	}
	return nil, nil
}

func (r *walletRepository) Insert(ctx context.Context, wallet *storage.WalletModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.wallets[wallet.Address]; ok {
		return storage.ErrDuplicateKey
	}
	for _, w := range r.wallets {
		if w.ReferralCode == wallet.ReferralCode || w.ID == wallet.ID {
			return storage.ErrDuplicateKey
		}
	}
	c := *wallet
	r.wallets[wallet.Address] = &c
	return nil
}

func (r *walletRepository) IncrementTokensCreated(ctx context.Context, address string, at time.Time) (*storage.WalletModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.wallets[address]
	if !ok {
		return nil, nil
	}
	w.TokensCreated++
	w.UpdatedAt = at.UTC()
	c := *w
	return &c, nil
}

type tokenRepository struct{ *MemoryRepository }

func (r *tokenRepository) Insert(ctx context.Context, token *storage.TokenModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tokens {
		if t.Mint == token.Mint {
			return storage.ErrDuplicateKey
		}
	}
	c := *token
	r.tokens = append(r.tokens, &c)
	return nil
}

func (r *tokenRepository) FindByMint(ctx context.Context, mint string) (*storage.TokenModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.tokens {
		if t.Mint == mint {
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

func (r *tokenRepository) FindByWallet(ctx context.Context, address string, limit int, offset int) ([]*storage.TokenModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*storage.TokenModel
	for _, t := range r.tokens {
		if t.WalletAddress == address {
			c := *t
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

type activityRepository struct{ *MemoryRepository }

func (r *activityRepository) Insert(ctx context.Context, activity *storage.ActivityModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.activities {
		if a.ID == activity.ID {
			return storage.ErrDuplicateKey
		}
	}
	c := *activity
	r.activities = append(r.activities, &c)
	return nil
}

func (r *activityRepository) FindByWallet(ctx context.Context, address string, kind string, limit int, offset int) ([]*storage.ActivityModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*storage.ActivityModel
	for _, a := range r.activities {
		if a.WalletAddress != address || (kind != "" && a.Kind != kind) {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

type tokenStateRepository struct{ *MemoryRepository }

func (r *tokenStateRepository) Create(ctx context.Context, state *storage.TokenStateModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.states[state.Mint]; ok {
		return storage.ErrDuplicateKey
	}
	c := *state
	r.states[state.Mint] = &c
	return nil
}

func (r *tokenStateRepository) Update(ctx context.Context, state *storage.TokenStateModel, expected string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.states[state.Mint]
	if !ok || current.State != expected {
		return storage.ErrStaleState
	}
	c := *state
	r.states[state.Mint] = &c
	return nil
}

func (r *tokenStateRepository) FindByMint(ctx context.Context, mint string) (*storage.TokenStateModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.states[mint]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (r *tokenStateRepository) FindStale(ctx context.Context, state string, cutoff time.Time, limit int) ([]*storage.TokenStateModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*storage.TokenStateModel
	for _, s := range r.states {
		if s.State == state && s.UpdatedAt.Before(cutoff) {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return page(out, limit, 0), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
