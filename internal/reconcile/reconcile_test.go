package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/swapforge/internal/config"
	"github.com/lugondev/swapforge/internal/errors"
	"github.com/lugondev/swapforge/internal/lifecycle"
	"github.com/lugondev/swapforge/internal/metrics"
	"github.com/lugondev/swapforge/internal/storage"
	"github.com/lugondev/swapforge/internal/storage/memory"
	"github.com/lugondev/swapforge/internal/token2022"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeInspector struct {
	onChain  map[string]bool
	failing  map[string]bool
	unusable map[string]error
	supply   map[string]uint64
	calls    map[string]int
}

func (f *fakeInspector) InspectMint(ctx context.Context, mint solana.PublicKey) (*token2022.Mint, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[mint.String()]++
	switch {
	case f.failing[mint.String()]:
		return nil, errors.Upstream("get account", fmt.Errorf("timeout"))
	case f.unusable[mint.String()] != nil:
		return nil, f.unusable[mint.String()]
	case f.onChain[mint.String()]:
		return &token2022.Mint{IsInitialized: true, Decimals: 9, Supply: f.supply[mint.String()]}, nil
	default:
		return nil, errors.NotFound("mint account")
	}
}

func testConfig() config.ReconcileConfig {
	return config.ReconcileConfig{
		Enabled:      true,
		Schedule:     "@every 1m",
		AbandonAfter: 5 * time.Minute,
		StuckAfter:   10 * time.Minute,
		BatchSize:    50,
	}
}

func seed(t *testing.T, repo storage.Repository, state lifecycle.State, age time.Duration) string {
	t.Helper()
	mint := solana.NewWallet().PublicKey().String()
	at := testNow.Add(-age)
	require.NoError(t, repo.TokenStates().Create(context.Background(), &storage.TokenStateModel{
		Mint:          mint,
		CreatorWallet: solana.NewWallet().PublicKey().String(),
		State:         string(state),
		Name:          "Forge",
		Symbol:        "FRG",
		CreatedAt:     at,
		UpdatedAt:     at,
	}))
	return mint
}

func stateOf(t *testing.T, repo storage.Repository, mint string) *storage.TokenStateModel {
	t.Helper()
	st, err := repo.TokenStates().FindByMint(context.Background(), mint)
	require.NoError(t, err)
	require.NotNil(t, st)
	return st
}

func TestRunOnce(t *testing.T) {
	repo := memory.NewRepository()
	landed := seed(t, repo, lifecycle.Requested, time.Hour)
	lost := seed(t, repo, lifecycle.Requested, time.Hour)
	flaky := seed(t, repo, lifecycle.Requested, time.Hour)
	fresh := seed(t, repo, lifecycle.Requested, time.Minute)
	stuck := seed(t, repo, lifecycle.SupplyIssued, time.Hour)
	recent := seed(t, repo, lifecycle.SupplyIssued, time.Minute)

	inspector := &fakeInspector{
		onChain: map[string]bool{landed: true, fresh: true},
		failing: map[string]bool{flaky: true},
	}
	m := metrics.NewLogMetrics(nil)
	r := New(repo.TokenStates(), inspector, testConfig(),
		WithMetrics(m),
		WithClock(func() time.Time { return testNow }),
	)

	report, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Promoted: 1, Abandoned: 1, Stuck: 1, Failed: 1}, report)

	assert.Equal(t, string(lifecycle.MintCreated), stateOf(t, repo, landed).State)
	abandoned := stateOf(t, repo, lost)
	assert.Equal(t, string(lifecycle.Abandoned), abandoned.State)
	assert.Equal(t, string(errors.KindNotFound), abandoned.ErrorKind)
	assert.Equal(t, testNow, abandoned.UpdatedAt)
	assert.Equal(t, string(lifecycle.Requested), stateOf(t, repo, flaky).State)
	assert.Equal(t, string(lifecycle.Requested), stateOf(t, repo, fresh).State, "inside the abandon window")
	assert.Equal(t, string(lifecycle.SupplyIssued), stateOf(t, repo, stuck).State)
	assert.Equal(t, string(lifecycle.SupplyIssued), stateOf(t, repo, recent).State)

	assert.Equal(t, uint64(1), m.Counter(metrics.MetricReconcilePromoted))
	assert.Equal(t, uint64(1), m.Counter(metrics.MetricReconcileAbandoned))
	assert.Equal(t, uint64(1), m.Counter("lifecycle_mint_created_total"))
	assert.Equal(t, float64(1), m.Gauge(metrics.MetricReconcileStuck))

	// second pass only retries the flaky one
	report, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Stuck: 1, Failed: 1}, report)
}

func TestRunOnceAbandonsUnusableMints(t *testing.T) {
	repo := memory.NewRepository()
	foreign := seed(t, repo, lifecycle.Requested, time.Hour)
	uninitialized := seed(t, repo, lifecycle.Requested, time.Hour)
	inspector := &fakeInspector{unusable: map[string]error{
		foreign:       errors.Validation("Mint is not a Token-2022 account"),
		uninitialized: errors.Conflict("Mint is not initialized"),
	}}
	r := New(repo.TokenStates(), inspector, testConfig(), WithClock(func() time.Time { return testNow }))

	report, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Abandoned: 2}, report)

	st := stateOf(t, repo, foreign)
	assert.Equal(t, string(lifecycle.Abandoned), st.State)
	assert.Equal(t, "Mint is not a Token-2022 account", st.LastError)
	assert.Equal(t, string(errors.KindValidation), st.ErrorKind)
	st = stateOf(t, repo, uninitialized)
	assert.Equal(t, string(lifecycle.Abandoned), st.State)
	assert.Equal(t, string(errors.KindConflict), st.ErrorKind)

	report, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
	assert.Equal(t, 1, inspector.calls[foreign], "abandoned mints are not checked again")
	assert.Equal(t, 1, inspector.calls[uninitialized])
}

func TestRunOnceReleasesStaleMinting(t *testing.T) {
	repo := memory.NewRepository()
	landed := seed(t, repo, lifecycle.Minting, time.Hour)
	lost := seed(t, repo, lifecycle.Minting, time.Hour)
	flaky := seed(t, repo, lifecycle.Minting, time.Hour)
	active := seed(t, repo, lifecycle.Minting, time.Minute)

	inspector := &fakeInspector{
		onChain: map[string]bool{landed: true, lost: true, active: true},
		failing: map[string]bool{flaky: true},
		supply:  map[string]uint64{landed: 7_000_000_000},
	}
	m := metrics.NewLogMetrics(nil)
	r := New(repo.TokenStates(), inspector, testConfig(),
		WithMetrics(m),
		WithClock(func() time.Time { return testNow }),
	)

	report, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Released: 2, Failed: 1}, report)

	st := stateOf(t, repo, landed)
	assert.Equal(t, string(lifecycle.SupplyIssued), st.State)
	assert.Equal(t, uint64(7_000_000_000), st.Supply)
	st = stateOf(t, repo, lost)
	assert.Equal(t, string(lifecycle.MintCreated), st.State)
	assert.Equal(t, string(errors.KindUpstream), st.ErrorKind)
	assert.Equal(t, string(lifecycle.Minting), stateOf(t, repo, flaky).State)
	assert.Equal(t, string(lifecycle.Minting), stateOf(t, repo, active).State, "claim still fresh")
	assert.Zero(t, inspector.calls[active])
	assert.Equal(t, uint64(2), m.Counter(metrics.MetricReconcileReleased))
}

func TestRunOnceRespectsBatchSize(t *testing.T) {
	repo := memory.NewRepository()
	for i := 0; i < 5; i++ {
		seed(t, repo, lifecycle.Requested, time.Duration(i+10)*time.Minute)
	}
	cfg := testConfig()
	cfg.BatchSize = 2
	r := New(repo.TokenStates(), &fakeInspector{}, cfg, WithClock(func() time.Time { return testNow }))

	report, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Abandoned)

	report, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Abandoned)
}

func TestRunOnceSkipsBadMint(t *testing.T) {
	repo := memory.NewRepository()
	require.NoError(t, repo.TokenStates().Create(context.Background(), &storage.TokenStateModel{
		Mint:      "not-a-key",
		State:     string(lifecycle.Requested),
		CreatedAt: testNow.Add(-time.Hour),
		UpdatedAt: testNow.Add(-time.Hour),
	}))
	r := New(repo.TokenStates(), &fakeInspector{}, testConfig(), WithClock(func() time.Time { return testNow }))

	report, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
}

func TestStartStop(t *testing.T) {
	repo := memory.NewRepository()
	r := New(repo.TokenStates(), &fakeInspector{}, testConfig())

	require.NoError(t, r.Start(context.Background()))
	assert.Error(t, r.Start(context.Background()), "already started")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
	r.Stop(ctx)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule = "every now and then"
	r := New(memory.NewRepository().TokenStates(), &fakeInspector{}, cfg)
	assert.Error(t, r.Start(context.Background()))
}
