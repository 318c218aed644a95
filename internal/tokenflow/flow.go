// Package tokenflow drives a token through its lifecycle. It ties the
// phase-one builder and the phase-two manager to the persisted token state,
// so an interrupted phase two resumes where it stopped instead of minting
// twice, and it writes the wallet records once the token is finalized.
package tokenflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/swapforge/internal/common"
	"github.com/lugondev/swapforge/internal/errors"
	"github.com/lugondev/swapforge/internal/lifecycle"
	"github.com/lugondev/swapforge/internal/metrics"
	"github.com/lugondev/swapforge/internal/storage"
	"github.com/lugondev/swapforge/internal/supply"
	"github.com/lugondev/swapforge/internal/token2022"
	"github.com/lugondev/swapforge/internal/txbuilder"
	"github.com/lugondev/swapforge/internal/walletrecord"
)

// Cancellation reasons reported by the client.
const (
	ReasonUserRejected = "user_rejected"
)

// TransactionBuilder builds phase-one transactions.
type TransactionBuilder interface {
	BuildCreateToken(ctx context.Context, req txbuilder.CreateTokenRequest) (*txbuilder.CreateTokenResult, error)
}

// SupplyIssuer runs the phase-two steps.
type SupplyIssuer interface {
	Prepare(walletKey, mintKey string) (solana.PublicKey, solana.PublicKey, error)
	InspectMint(ctx context.Context, mint solana.PublicKey) (*token2022.Mint, error)
	MintSupply(ctx context.Context, mint, wallet solana.PublicKey, info *token2022.Mint, amount uint64) (*supply.Result, error)
	FinalizeAuthorities(ctx context.Context, mint solana.PublicKey, info *token2022.Mint, revoke supply.Revocations) (solana.Signature, []string, error)
}

// Recorder writes the wallet records of a finished token.
type Recorder interface {
	RecordTokenCreated(ctx context.Context, ev walletrecord.TokenCreated) (*storage.WalletModel, error)
}

// AddSupplyRequest is a phase-two request from the client.
type AddSupplyRequest struct {
	WalletPublicKey string
	MintPublicKey   string
	Supply          uint64
	// Revoke is only used for mints the service has no record of. Otherwise
	// the flags billed in phase one apply.
	Revoke       supply.Revocations
	ReferralCode string
}

// AddSupplyResult describes the outcome of phase two.
type AddSupplyResult struct {
	State              lifecycle.State
	Mint               solana.PublicKey
	Wallet             solana.PublicKey
	TokenAccount       solana.PublicKey
	Amount             uint64
	SupplySignature    solana.Signature
	AuthoritySignature solana.Signature
	Revoked            []string
	// Resumed is set when supply already existed on chain and was not minted again.
	Resumed bool
	Record  *storage.WalletModel
}

// Flow coordinates token creation across both phases.
type Flow struct {
	common.LoggerMixin
	builder TransactionBuilder
	issuer  SupplyIssuer
	records Recorder
	states  storage.TokenStateRepository
	metrics metrics.Metrics
	now     func() time.Time
}

// Option configures a Flow.
type Option func(*Flow)

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.Metrics) Option {
	return func(f *Flow) {
		f.metrics = m
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(f *Flow) {
		f.now = now
	}
}

// NewFlow creates a Flow.
func NewFlow(builder TransactionBuilder, issuer SupplyIssuer, records Recorder, states storage.TokenStateRepository, opts ...Option) *Flow {
	f := &Flow{
		LoggerMixin: common.NewLoggerMixin(),
		builder:     builder,
		issuer:      issuer,
		records:     records,
		states:      states,
		metrics:     metrics.NewNoopMetrics(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithLogger sets the logger.
func (f *Flow) WithLogger(logger *slog.Logger) *Flow {
	f.SetLogger(logger)
	return f
}

// PrepareCreate builds the phase-one transaction and records the token as
// requested. A client may rebuild while the token is still requested, for
// example after the blockhash expired; any later state is a conflict.
func (f *Flow) PrepareCreate(ctx context.Context, req txbuilder.CreateTokenRequest) (*txbuilder.CreateTokenResult, error) {
	res, err := f.builder.BuildCreateToken(ctx, req)
	if err != nil {
		return nil, err
	}

	mint := res.Mint.String()
	now := f.now().UTC()
	st := &storage.TokenStateModel{
		Mint:          mint,
		CreatorWallet: res.Wallet.String(),
		State:         string(lifecycle.Requested),
		Name:          req.Name,
		Symbol:        req.Symbol,
		Decimals:      req.Decimals,
		RevokeMint:    req.RevokeMint,
		RevokeFreeze:  req.RevokeFreeze,
		RevokeUpdate:  req.RevokeUpdate,
		FeeLamports:   res.FeeLamports,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	existing, err := f.states.FindByMint(ctx, mint)
	if err != nil {
		return nil, errors.StorageFailed("find token state", err)
	}
	if existing == nil {
		if err := f.states.Create(ctx, st); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return nil, errors.Conflict("Token is already being created")
			}
			return nil, errors.StorageFailed("create token state", err)
		}
		f.transitioned(ctx, st, "")
		return res, nil
	}

	if existing.CreatorWallet != st.CreatorWallet {
		return nil, errors.Conflict("Mint was requested by a different wallet")
	}
	from := lifecycle.State(existing.State)
	if _, err := lifecycle.Transition(from, lifecycle.Requested); err != nil {
		return nil, err
	}
	st.CreatedAt = existing.CreatedAt
	if err := f.update(ctx, st, from); err != nil {
		return nil, err
	}
	return res, nil
}

// AddSupply runs phase two for a mint, resuming from the recorded state:
// requested or abandoned mints are first confirmed on chain, mint_created
// mints get their supply, supply_issued mints only get their authorities
// finalized. A token another request is minting is a conflict. The wallet records are written once the token is finalized.
func (f *Flow) AddSupply(ctx context.Context, req AddSupplyRequest) (*AddSupplyResult, error) {
	start := f.now()
	res, err := f.addSupply(ctx, req)
	if err != nil {
		f.metrics.IncrementCounter(ctx, metrics.MetricPhaseTwoFailed, 1)
		f.GetLogger().Error("phase two failed",
			"wallet", req.WalletPublicKey,
			"mint", req.MintPublicKey,
			"kind", errors.KindOf(err),
			"error", err,
		)
		return nil, err
	}
	f.metrics.RecordHistogram(ctx, metrics.MetricPhaseTwoSeconds, f.now().Sub(start).Seconds())
	return res, nil
}

func (f *Flow) addSupply(ctx context.Context, req AddSupplyRequest) (*AddSupplyResult, error) {
	wallet, mint, err := f.issuer.Prepare(req.WalletPublicKey, req.MintPublicKey)
	if err != nil {
		return nil, err
	}

	st, err := f.states.FindByMint(ctx, mint.String())
	if err != nil {
		return nil, errors.StorageFailed("find token state", err)
	}
	if st != nil && st.CreatorWallet != wallet.String() {
		return nil, errors.Conflict("Mint was requested by a different wallet")
	}
	if st != nil {
		switch lifecycle.State(st.State) {
		case lifecycle.AuthoritiesFinalized, lifecycle.Cancelled:
			return nil, errors.IllegalTransition(st.State, string(lifecycle.SupplyIssued))
		case lifecycle.Minting:
			return nil, errors.Conflict("Token supply is already being issued").
				WithDetails(map[string]any{"mint": st.Mint})
		}
	}

	amount := req.Supply
	if st != nil && st.State == string(lifecycle.SupplyIssued) {
		amount = st.Supply
	}
	if amount == 0 {
		return nil, errors.Validation("Token supply must be greater than zero")
	}

	info, err := f.issuer.InspectMint(ctx, mint)
	if err != nil {
		return nil, err
	}

	if st == nil {
		if st, err = f.adopt(ctx, wallet, mint, info, req); err != nil {
			return nil, err
		}
	}
	revoke := supply.Revocations{Mint: st.RevokeMint, Freeze: st.RevokeFreeze, Update: st.RevokeUpdate}
	if req.Revoke != revoke {
		f.GetLogger().Debug("using revocations billed in phase one",
			"mint", mint,
			"requested", req.Revoke,
			"billed", revoke,
		)
	}

	res := &AddSupplyResult{Mint: mint, Wallet: wallet}

	switch lifecycle.State(st.State) {
	case lifecycle.Requested, lifecycle.Abandoned:
		if err := f.advance(ctx, st, lifecycle.MintCreated, nil); err != nil {
			return nil, err
		}
	}

	if st.State == string(lifecycle.MintCreated) {
		if info.Supply > 0 {
			// A previous attempt minted but did not record it.
			res.Resumed = true
			res.Amount = info.Supply
			f.GetLogger().Warn("supply already on chain, not minting again", "mint", mint, "supply", info.Supply)
		} else {
			// Only the request that moves the token to minting sends the
			// supply transaction; any other one gets a conflict here.
			if err := f.advance(ctx, st, lifecycle.Minting, nil); err != nil {
				return nil, err
			}
			minted, err := f.issuer.MintSupply(ctx, mint, wallet, info, amount)
			if err != nil {
				f.releaseMinting(ctx, st, err)
				return nil, err
			}
			res.Amount = minted.Amount
			res.TokenAccount = minted.TokenAccount
			res.SupplySignature = minted.SupplySignature
		}
		err := f.advance(ctx, st, lifecycle.SupplyIssued, func(s *storage.TokenStateModel) {
			s.Supply = res.Amount
			if !res.SupplySignature.IsZero() {
				s.SupplySignature = res.SupplySignature.String()
			}
		})
		if err != nil {
			return nil, err
		}
	} else {
		res.Resumed = true
		res.Amount = info.Supply
	}

	sig, revoked, err := f.issuer.FinalizeAuthorities(ctx, mint, info, revoke)
	if err != nil {
		f.recordFailure(ctx, st, err)
		return nil, err
	}
	res.AuthoritySignature = sig
	res.Revoked = revoked
	err = f.advance(ctx, st, lifecycle.AuthoritiesFinalized, func(s *storage.TokenStateModel) {
		if !sig.IsZero() {
			s.AuthoritySignature = sig.String()
		}
	})
	if err != nil {
		return nil, err
	}
	res.State = lifecycle.AuthoritiesFinalized

	res.Record = f.recordWallet(ctx, st, req.ReferralCode)
	return res, nil
}

// adopt records a mint that was created without going through PrepareCreate.
// The mint is on chain, so it starts as mint_created.
func (f *Flow) adopt(ctx context.Context, wallet, mint solana.PublicKey, info *token2022.Mint, req AddSupplyRequest) (*storage.TokenStateModel, error) {
	now := f.now().UTC()
	st := &storage.TokenStateModel{
		Mint:          mint.String(),
		CreatorWallet: wallet.String(),
		State:         string(lifecycle.MintCreated),
		Decimals:      info.Decimals,
		RevokeMint:    req.Revoke.Mint,
		RevokeFreeze:  req.Revoke.Freeze,
		RevokeUpdate:  req.Revoke.Update,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if info.Metadata != nil {
		st.Name = info.Metadata.Name
		st.Symbol = info.Metadata.Symbol
	}
	if err := f.states.Create(ctx, st); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, errors.Conflict("Token state changed concurrently")
		}
		return nil, errors.StorageFailed("create token state", err)
	}
	f.GetLogger().Info("untracked mint adopted", "mint", mint, "wallet", wallet)
	f.transitioned(ctx, st, "")
	return st, nil
}

// recordWallet writes the wallet records. A failure here is logged and
// counted; the token itself is complete.
func (f *Flow) recordWallet(ctx context.Context, st *storage.TokenStateModel, referral string) *storage.WalletModel {
	w, err := f.records.RecordTokenCreated(ctx, walletrecord.TokenCreated{
		WalletAddress: st.CreatorWallet,
		Mint:          st.Mint,
		Name:          st.Name,
		Symbol:        st.Symbol,
		ReferralBy:    referral,
		CreatedAt:     f.now(),
	})
	if err != nil {
		f.metrics.IncrementCounter(ctx, metrics.MetricWalletRecordFailed, 1)
		f.GetLogger().Error("wallet record not written",
			"wallet", st.CreatorWallet,
			"mint", st.Mint,
			"error", err,
		)
		return nil
	}
	return w
}

// Cancel marks a requested token as cancelled, typically because the wallet
// declined to sign the phase-one transaction.
func (f *Flow) Cancel(ctx context.Context, walletKey, mintKey, reason string) (*storage.TokenStateModel, error) {
	if strings.TrimSpace(walletKey) == "" {
		return nil, errors.ErrWalletNotConnected
	}
	wallet, err := txbuilder.ParsePublicKey("walletPublicKey", walletKey)
	if err != nil {
		return nil, err
	}
	mint, err := txbuilder.ParsePublicKey("mintPublicKey", mintKey)
	if err != nil {
		return nil, err
	}

	st, err := f.states.FindByMint(ctx, mint.String())
	if err != nil {
		return nil, errors.StorageFailed("find token state", err)
	}
	if st == nil {
		return nil, errors.NotFound("Token")
	}
	if st.CreatorWallet != wallet.String() {
		return nil, errors.Conflict("Mint was requested by a different wallet")
	}

	message := errors.ErrUserRejected.Message
	if reason = strings.TrimSpace(reason); reason != "" && reason != ReasonUserRejected {
		message = reason
	}
	err = f.advance(ctx, st, lifecycle.Cancelled, func(s *storage.TokenStateModel) {
		s.LastError = message
		s.ErrorKind = string(errors.KindUserRejected)
	})
	if err != nil {
		return nil, err
	}
	f.metrics.IncrementCounter(ctx, metrics.MetricTokensCancelled, 1)
	return st, nil
}

// Status returns the recorded state of a mint.
func (f *Flow) Status(ctx context.Context, mintKey string) (*storage.TokenStateModel, error) {
	mint, err := txbuilder.ParsePublicKey("mint", mintKey)
	if err != nil {
		return nil, err
	}
	st, err := f.states.FindByMint(ctx, mint.String())
	if err != nil {
		return nil, errors.StorageFailed("find token state", err)
	}
	if st == nil {
		return nil, errors.NotFound("Token")
	}
	return st, nil
}

// advance moves st to the next state and persists it, provided nobody else
// moved it first. mutate may set fields that change with the state.
func (f *Flow) advance(ctx context.Context, st *storage.TokenStateModel, to lifecycle.State, mutate func(*storage.TokenStateModel)) error {
	from := lifecycle.State(st.State)
	if _, err := lifecycle.Transition(from, to); err != nil {
		return err
	}

	next := *st
	next.State = string(to)
	next.LastError = ""
	next.ErrorKind = ""
	next.UpdatedAt = f.now().UTC()
	if mutate != nil {
		mutate(&next)
	}
	if err := f.update(ctx, &next, from); err != nil {
		return err
	}
	*st = next
	f.transitioned(ctx, st, from)
	return nil
}

func (f *Flow) update(ctx context.Context, st *storage.TokenStateModel, expected lifecycle.State) error {
	if err := f.states.Update(ctx, st, string(expected)); err != nil {
		if errors.Is(err, storage.ErrStaleState) {
			return errors.Conflict("Token state changed concurrently").
				WithDetails(map[string]any{"mint": st.Mint, "expected": string(expected)})
		}
		return errors.StorageFailed("update token state", err)
	}
	return nil
}

// recordFailure stores the last phase-two error on the token without
// changing its state or its age. It is best effort.
func (f *Flow) recordFailure(ctx context.Context, st *storage.TokenStateModel, cause error) {
	next := *st
	next.LastError = cause.Error()
	next.ErrorKind = string(errors.KindOf(cause))
	if err := f.states.Update(ctx, &next, st.State); err != nil {
		f.GetLogger().Warn("token failure not recorded", "mint", st.Mint, "error", err)
		return
	}
	*st = next
}

// releaseMinting returns a token to mint_created after a failed supply send
// and stores the error. A later attempt inspects the chain again before
// minting, so a send that landed despite the error is not repeated. If the
// release itself fails the reconciler frees the token once it goes stale.
func (f *Flow) releaseMinting(ctx context.Context, st *storage.TokenStateModel, cause error) {
	err := f.advance(ctx, st, lifecycle.MintCreated, func(s *storage.TokenStateModel) {
		s.LastError = cause.Error()
		s.ErrorKind = string(errors.KindOf(cause))
	})
	if err != nil {
		f.GetLogger().Warn("minting claim not released", "mint", st.Mint, "error", err)
	}
}

func (f *Flow) transitioned(ctx context.Context, st *storage.TokenStateModel, from lifecycle.State) {
	f.metrics.IncrementCounter(ctx, fmt.Sprintf(metrics.MetricLifecycleTransitionsFmt, st.State), 1)
	f.GetLogger().Info("token state changed",
		"mint", st.Mint,
		"from", string(from),
		"to", st.State,
	)
}
