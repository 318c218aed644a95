// Package reconcile periodically settles tokens whose client went away.
//
// A token left in requested longer than the abandon window is checked on
// chain: if the mint exists the phase-one transaction landed and the token
// moves to mint_created, otherwise it is abandoned. A mint that exists but is
// not a usable Token-2022 mint is abandoned too, with the reason recorded.
// Tokens left in minting past the stuck window lost the request that claimed
// them: they move to supply_issued if supply reached the chain and back to
// mint_created otherwise. Tokens sitting in supply_issued longer than the
// stuck window are reported, since finishing them needs the creator to call
// phase two again.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/robfig/cron/v3"

	"github.com/lugondev/swapforge/internal/common"
	"github.com/lugondev/swapforge/internal/config"
	"github.com/lugondev/swapforge/internal/errors"
	"github.com/lugondev/swapforge/internal/lifecycle"
	"github.com/lugondev/swapforge/internal/metrics"
	"github.com/lugondev/swapforge/internal/storage"
	"github.com/lugondev/swapforge/internal/token2022"
)

// MintInspector reads a mint from the cluster.
type MintInspector interface {
	InspectMint(ctx context.Context, mint solana.PublicKey) (*token2022.Mint, error)
}

// Report summarizes one reconciliation pass.
type Report struct {
	Promoted  int
	Abandoned int
	Released  int
	Stuck     int
	Failed    int
}

// Reconciler advances and reports stale token states.
type Reconciler struct {
	common.LoggerMixin
	states    storage.TokenStateRepository
	inspector MintInspector
	cfg       config.ReconcileConfig
	metrics   metrics.Metrics
	now       func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// New creates a Reconciler.
func New(states storage.TokenStateRepository, inspector MintInspector, cfg config.ReconcileConfig, opts ...Option) *Reconciler {
	r := &Reconciler{
		LoggerMixin: common.NewLoggerMixin(),
		states:      states,
		inspector:   inspector,
		cfg:         cfg,
		metrics:     metrics.NewNoopMetrics(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithLogger sets the logger.
func (r *Reconciler) WithLogger(logger *slog.Logger) *Reconciler {
	r.SetLogger(logger)
	return r
}

// Start schedules RunOnce on the configured cron spec. Passes never overlap.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return fmt.Errorf("reconciler already started")
	}

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err := c.AddFunc(r.cfg.Schedule, func() {
		if _, err := r.RunOnce(ctx); err != nil {
			r.GetLogger().Error("reconcile pass failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", r.cfg.Schedule, err)
	}
	c.Start()
	r.cron = c
	r.GetLogger().Info("reconciler started", "schedule", r.cfg.Schedule)
	return nil
}

// Stop stops scheduling and waits for a running pass to finish or ctx to end.
func (r *Reconciler) Stop(ctx context.Context) {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	r.GetLogger().Info("reconciler stopped")
}

// RunOnce runs a single pass. Per-token failures are logged and counted in
// the report; only repository failures abort the pass.
func (r *Reconciler) RunOnce(ctx context.Context) (Report, error) {
	var report Report
	now := r.now().UTC()

	requested, err := r.states.FindStale(ctx, string(lifecycle.Requested), now.Add(-r.cfg.AbandonAfter), r.cfg.BatchSize)
	if err != nil {
		return report, errors.StorageFailed("find requested tokens", err)
	}
	for _, st := range requested {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r.settle(ctx, st, &report)
	}

	minting, err := r.states.FindStale(ctx, string(lifecycle.Minting), now.Add(-r.cfg.StuckAfter), r.cfg.BatchSize)
	if err != nil {
		return report, errors.StorageFailed("find minting tokens", err)
	}
	for _, st := range minting {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r.release(ctx, st, &report)
	}

	stuck, err := r.states.FindStale(ctx, string(lifecycle.SupplyIssued), now.Add(-r.cfg.StuckAfter), r.cfg.BatchSize)
	if err != nil {
		return report, errors.StorageFailed("find stuck tokens", err)
	}
	for _, st := range stuck {
		r.GetLogger().Warn("token stuck before authority finalization",
			"mint", st.Mint,
			"wallet", st.CreatorWallet,
			"since", st.UpdatedAt,
			"last_error", st.LastError,
		)
	}
	report.Stuck = len(stuck)
	r.metrics.UpdateGauge(ctx, metrics.MetricReconcileStuck, float64(report.Stuck))

	if report.Promoted+report.Abandoned+report.Released+report.Stuck+report.Failed > 0 {
		r.GetLogger().Info("reconcile pass finished",
			"promoted", report.Promoted,
			"abandoned", report.Abandoned,
			"released", report.Released,
			"stuck", report.Stuck,
			"failed", report.Failed,
		)
	}
	return report, nil
}

func (r *Reconciler) settle(ctx context.Context, st *storage.TokenStateModel, report *Report) {
	mint, err := solana.PublicKeyFromBase58(st.Mint)
	if err != nil {
		report.Failed++
		r.GetLogger().Error("stored mint is not a public key", "mint", st.Mint, "error", err)
		return
	}

	next := *st
	next.State = string(lifecycle.MintCreated)
	next.UpdatedAt = r.now().UTC()
	_, err = r.inspector.InspectMint(ctx, mint)
	switch kind := errors.KindOf(err); {
	case err == nil:
	case kind == errors.KindNotFound:
		next.State = string(lifecycle.Abandoned)
		next.LastError = "Token creation transaction did not land"
		next.ErrorKind = string(kind)
	case kind == errors.KindValidation || kind == errors.KindConflict:
		// the account exists but can never become this token's mint
		next.State = string(lifecycle.Abandoned)
		next.LastError = errors.MessageOf(err)
		next.ErrorKind = string(kind)
	default:
		report.Failed++
		r.GetLogger().Warn("mint check failed", "mint", st.Mint, "error", err)
		return
	}

	if !r.update(ctx, &next, st.State, report) {
		return
	}
	if next.State == string(lifecycle.Abandoned) {
		report.Abandoned++
		r.metrics.IncrementCounter(ctx, metrics.MetricReconcileAbandoned, 1)
	} else {
		report.Promoted++
		r.metrics.IncrementCounter(ctx, metrics.MetricReconcilePromoted, 1)
	}
}

// release settles a token whose minting claim went stale.
func (r *Reconciler) release(ctx context.Context, st *storage.TokenStateModel, report *Report) {
	mint, err := solana.PublicKeyFromBase58(st.Mint)
	if err != nil {
		report.Failed++
		r.GetLogger().Error("stored mint is not a public key", "mint", st.Mint, "error", err)
		return
	}
	info, err := r.inspector.InspectMint(ctx, mint)
	if err != nil {
		report.Failed++
		r.GetLogger().Warn("mint check failed", "mint", st.Mint, "error", err)
		return
	}

	next := *st
	next.UpdatedAt = r.now().UTC()
	if info.Supply > 0 {
		next.State = string(lifecycle.SupplyIssued)
		next.Supply = info.Supply
		next.LastError = ""
		next.ErrorKind = ""
	} else {
		next.State = string(lifecycle.MintCreated)
		next.LastError = "Supply transaction did not land"
		next.ErrorKind = string(errors.KindUpstream)
	}
	if !r.update(ctx, &next, st.State, report) {
		return
	}
	report.Released++
	r.metrics.IncrementCounter(ctx, metrics.MetricReconcileReleased, 1)
}

// update stores next if the token is still in expected. It reports whether
// the token moved.
func (r *Reconciler) update(ctx context.Context, next *storage.TokenStateModel, expected string, report *Report) bool {
	if err := r.states.Update(ctx, next, expected); err != nil {
		if errors.Is(err, storage.ErrStaleState) {
			// the client moved it meanwhile
			return false
		}
		report.Failed++
		r.GetLogger().Error("token state not updated", "mint", next.Mint, "error", err)
		return false
	}
	r.metrics.IncrementCounter(ctx, fmt.Sprintf(metrics.MetricLifecycleTransitionsFmt, next.State), 1)
	r.GetLogger().Info("token state reconciled",
		"mint", next.Mint,
		"from", expected,
		"to", next.State,
		"last_error", next.LastError,
	)
	return true
}
