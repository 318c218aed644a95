// Package walletrecord keeps the per-wallet bookkeeping shown on the
// dashboard: wallet records with referral codes, the tokens each wallet
// created, and liquidity/swap activity.
package walletrecord

import (
	"context"
	"crypto/rand"
	"log/slog"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"github.com/lugondev/swapforge/internal/common"
	"github.com/lugondev/swapforge/internal/errors"
	"github.com/lugondev/swapforge/internal/storage"
)

// ReferralCodeLength is the number of base58 characters in a referral code.
const ReferralCodeLength = 8

// Paging limits for list calls.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

const maxCodeAttempts = 5

// TokenCreated describes a token whose phase two completed.
type TokenCreated struct {
	WalletAddress string
	Mint          string
	Name          string
	Symbol        string
	ReferralBy    string
	CreatedAt     time.Time
}

// Service reads and writes wallet records.
type Service struct {
	common.LoggerMixin
	repo    storage.Repository
	now     func() time.Time
	newCode func() (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithCodeGenerator overrides referral code generation.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *Service) {
		s.newCode = gen
	}
}

// NewService creates a Service backed by repo.
func NewService(repo storage.Repository, opts ...Option) *Service {
	s := &Service{
		LoggerMixin: common.NewLoggerMixin(),
		repo:        repo,
		now:         time.Now,
		newCode:     GenerateReferralCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithLogger sets the logger.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	s.SetLogger(logger)
	return s
}

// GenerateReferralCode returns ReferralCodeLength base58 characters drawn
// from crypto/rand.
func GenerateReferralCode() (string, error) {
	buf := make([]byte, 8)
	for {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		// Leading zero bytes encode as '1'; eight random bytes give at least
		// eight characters unless most of them are zero.
		if code := base58.Encode(buf); len(code) >= ReferralCodeLength {
			return code[:ReferralCodeLength], nil
		}
	}
}

// FindWalletByAddress returns the wallet record for address.
func (s *Service) FindWalletByAddress(ctx context.Context, address string) (*storage.WalletModel, error) {
	if strings.TrimSpace(address) == "" {
		return nil, errors.ErrWalletNotConnected
	}
	w, err := s.repo.Wallets().FindByAddress(ctx, address)
	if err != nil {
		return nil, errors.StorageFailed("find wallet", err)
	}
	if w == nil {
		return nil, errors.NotFound("Wallet")
	}
	return w, nil
}

// EnsureWallet returns the record for address, creating it with a fresh
// referral code on first use. referralBy is stored only at creation and
// must name an existing code other than the wallet's own.
func (s *Service) EnsureWallet(ctx context.Context, address, referralBy string) (*storage.WalletModel, error) {
	if strings.TrimSpace(address) == "" {
		return nil, errors.ErrWalletNotConnected
	}

	wallets := s.repo.Wallets()
	existing, err := wallets.FindByAddress(ctx, address)
	if err != nil {
		return nil, errors.StorageFailed("find wallet", err)
	}
	if existing != nil {
		return existing, nil
	}

	referralBy = strings.TrimSpace(referralBy)
	if referralBy != "" {
		referrer, err := wallets.FindByReferralCode(ctx, referralBy)
		if err != nil {
			return nil, errors.StorageFailed("find referrer", err)
		}
		if referrer == nil {
			s.GetLogger().Warn("unknown referral code ignored", "wallet", address, "referral_code", referralBy)
			referralBy = ""
		}
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, errors.Internal("generate referral code", err)
		}

		w := storage.NewWalletModel(address, code, referralBy)
		w.CreatedAt = s.now().UTC()
		w.UpdatedAt = w.CreatedAt
		err = wallets.Insert(ctx, w)
		if err == nil {
			s.GetLogger().Info("wallet record created", "wallet", address, "referral_code", code)
			return w, nil
		}
		if !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, errors.StorageFailed("insert wallet", err)
		}

		// Either the code collided or a concurrent request created the wallet.
		existing, err := wallets.FindByAddress(ctx, address)
		if err != nil {
			return nil, errors.StorageFailed("find wallet", err)
		}
		if existing != nil {
			return existing, nil
		}
		s.GetLogger().Debug("referral code collision", "attempt", attempt+1)
	}
	return nil, errors.Internal("allocate referral code", storage.ErrDuplicateKey)
}

// UpsertWalletOnTokenCreated ensures the wallet record exists and counts one
// more created token.
func (s *Service) UpsertWalletOnTokenCreated(ctx context.Context, address, referralBy string) (*storage.WalletModel, error) {
	if _, err := s.EnsureWallet(ctx, address, referralBy); err != nil {
		return nil, err
	}
	w, err := s.repo.Wallets().IncrementTokensCreated(ctx, address, s.now())
	if err != nil {
		return nil, errors.StorageFailed("update wallet", err)
	}
	if w == nil {
		return nil, errors.NotFound("Wallet")
	}
	return w, nil
}

// InsertTokenAssociation links a mint to the wallet that created it. A mint
// can only be associated once; a repeat returns storage.ErrDuplicateKey.
func (s *Service) InsertTokenAssociation(ctx context.Context, wallet *storage.WalletModel, mint, name, symbol string, at time.Time) error {
	if strings.TrimSpace(mint) == "" {
		return errors.Validation("Mint address is required")
	}
	err := s.repo.Tokens().Insert(ctx, storage.NewTokenModel(wallet, mint, name, symbol, at))
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return errors.StorageFailed("insert token", err)
	}
	return err
}

// RecordTokenCreated writes the records for one completed token: the wallet
// (created if needed), the token association and, through
// UpsertWalletOnTokenCreated, the token counter. It is idempotent per mint: a
// second call for the same mint changes nothing.
func (s *Service) RecordTokenCreated(ctx context.Context, ev TokenCreated) (*storage.WalletModel, error) {
	w, err := s.EnsureWallet(ctx, ev.WalletAddress, ev.ReferralBy)
	if err != nil {
		return nil, err
	}

	at := ev.CreatedAt
	if at.IsZero() {
		at = s.now()
	}
	if err := s.InsertTokenAssociation(ctx, w, ev.Mint, ev.Name, ev.Symbol, at); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			s.GetLogger().Info("token already recorded", "wallet", ev.WalletAddress, "mint", ev.Mint)
			return w, nil
		}
		return nil, err
	}

	updated, err := s.UpsertWalletOnTokenCreated(ctx, ev.WalletAddress, ev.ReferralBy)
	if err != nil {
		return nil, err
	}
	s.GetLogger().Info("token recorded",
		"wallet", ev.WalletAddress,
		"mint", ev.Mint,
		"tokens_created", updated.TokensCreated,
	)
	return updated, nil
}

// RecordActivity stores a liquidity or swap event for the wallet.
func (s *Service) RecordActivity(ctx context.Context, address, kind, reference, signature string) (*storage.ActivityModel, error) {
	if _, err := s.EnsureWallet(ctx, address, ""); err != nil {
		return nil, err
	}
	switch kind {
	case storage.ActivityLiquidity, storage.ActivitySwap:
	default:
		return nil, errors.Validation("Activity kind must be liquidity or swap")
	}
	if strings.TrimSpace(reference) == "" {
		return nil, errors.Validation("Activity reference is required")
	}

	a := storage.NewActivityModel(address, kind, reference, signature)
	a.CreatedAt = s.now().UTC()
	if err := s.repo.Activities().Insert(ctx, a); err != nil {
		return nil, errors.StorageFailed("insert activity", err)
	}
	return a, nil
}

// ListTokens returns the tokens created by address, newest first.
func (s *Service) ListTokens(ctx context.Context, address string, limit, offset int) ([]*storage.TokenModel, error) {
	if strings.TrimSpace(address) == "" {
		return nil, errors.ErrWalletNotConnected
	}
	limit, offset, err := page(limit, offset)
	if err != nil {
		return nil, err
	}
	tokens, err := s.repo.Tokens().FindByWallet(ctx, address, limit, offset)
	if err != nil {
		return nil, errors.StorageFailed("list tokens", err)
	}
	return tokens, nil
}

// ListActivity returns the wallet's activity, newest first. An empty kind
// matches every kind.
func (s *Service) ListActivity(ctx context.Context, address, kind string, limit, offset int) ([]*storage.ActivityModel, error) {
	if strings.TrimSpace(address) == "" {
		return nil, errors.ErrWalletNotConnected
	}
	switch kind {
	case "", storage.ActivityLiquidity, storage.ActivitySwap:
	default:
		return nil, errors.Validation("Activity kind must be liquidity or swap")
	}
	limit, offset, err := page(limit, offset)
	if err != nil {
		return nil, err
	}
	activity, err := s.repo.Activities().FindByWallet(ctx, address, kind, limit, offset)
	if err != nil {
		return nil, errors.StorageFailed("list activity", err)
	}
	return activity, nil
}

func page(limit, offset int) (int, int, error) {
	if limit < 0 || offset < 0 {
		return 0, 0, errors.Validation("limit and offset must not be negative")
	}
	if limit == 0 {
		limit = DefaultPageSize
	}
	return min(limit, MaxPageSize), offset, nil
}
