package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/swapforge/internal/config"
	"github.com/lugondev/swapforge/internal/metrics"
	"github.com/lugondev/swapforge/internal/txbuilder"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersion(t *testing.T) {
	out := execute(t, "version")
	assert.Contains(t, out, "SwapForge")
	assert.Contains(t, out, Version)
}

func TestFeeQuote(t *testing.T) {
	t.Setenv("SWAPFORGE_ENVIRONMENT", "development")

	out := execute(t, "fee", "quote", "--revoke-mint", "--immutable")
	assert.Contains(t, out, "Charged: 0 lamports (development)")
}

func TestTxDecode(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1_000, payer, to).Build()},
		solana.Hash{1},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)
	serialized, err := txbuilder.Encode(tx)
	require.NoError(t, err)

	out := execute(t, "tx", "decode", serialized)
	assert.Contains(t, out, payer.String())
	assert.Contains(t, out, "system:transfer")
	assert.Contains(t, out, `"signatures": 0`)
}

func TestNewMetrics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.DefaultConfig()
	cfg.Metrics.Backend = "prometheus,log"
	m, handler := newMetrics(ctx, cfg, logger)
	collection, ok := m.(*metrics.Collection)
	require.True(t, ok)
	assert.Equal(t, 2, collection.Len())
	require.NotNil(t, handler)

	require.NoError(t, m.IncrementCounter(ctx, metrics.MetricSupplyMinted, 1))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "swapforge_supply_minted_total 1")

	cfg.Metrics.Backend = "none"
	m, handler = newMetrics(ctx, cfg, logger)
	assert.IsType(t, &metrics.NoopMetrics{}, m)
	assert.Nil(t, handler)
}
