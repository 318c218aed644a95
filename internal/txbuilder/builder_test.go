package txbuilder

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/swapforge/internal/config"
	"github.com/lugondev/swapforge/internal/errors"
	"github.com/lugondev/swapforge/internal/fee"
	"github.com/lugondev/swapforge/internal/metrics"
	solsvc "github.com/lugondev/swapforge/internal/solana"
	"github.com/lugondev/swapforge/internal/token2022"
)

type fakeChain struct {
	blockhash solana.Hash
	rent      uint64
	balance   uint64
	rentSizes []uint64
	calls     []string
}

func (f *fakeChain) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	f.calls = append(f.calls, "getLatestBlockhash")
	return f.blockhash, nil
}

func (f *fakeChain) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	f.calls = append(f.calls, "getMinimumBalanceForRentExemption")
	f.rentSizes = append(f.rentSizes, size)
	return f.rent, nil
}

func (f *fakeChain) GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	f.calls = append(f.calls, "getBalance")
	return f.balance, nil
}

func testFees(t *testing.T) *fee.Schedule {
	t.Helper()
	s, err := fee.NewSchedule(config.FeeConfig{Base: "0.1", RevokeMint: "0.05", RevokeFreeze: "0.05", RevokeUpdate: "0.05"})
	require.NoError(t, err)
	return s
}

type fixture struct {
	chain    *fakeChain
	treasury *solsvc.Wallet
	wallet   solana.PublicKey
	mint     solana.PublicKey
	metrics  *metrics.LogMetrics
}

func newFixture() *fixture {
	return &fixture{
		chain:    &fakeChain{blockhash: solana.Hash{9, 9, 9}, rent: 3_000_000, balance: 10_000_000_000},
		treasury: solsvc.NewWallet(),
		wallet:   solsvc.NewWallet().PublicKey(),
		mint:     solsvc.NewWallet().PublicKey(),
		metrics:  metrics.NewLogMetrics(nil),
	}
}

func (f *fixture) builder(t *testing.T, production bool) *Builder {
	return NewBuilder(f.chain, testFees(t),
		WithTreasury(f.treasury),
		WithProduction(production),
		WithMetrics(f.metrics),
	)
}

func (f *fixture) request() CreateTokenRequest {
	return CreateTokenRequest{
		WalletPublicKey:    f.wallet.String(),
		MintPublicKey:      f.mint.String(),
		SwapForgePublicKey: f.treasury.PublicKey().String(),
		Name:               "Test",
		Symbol:             "TST",
		Decimals:           9,
		MetadataURI:        "https://storage.example.com/tokens/meta.json",
		RevokeMint:         true,
		RevokeFreeze:       true,
		RevokeUpdate:       true,
	}
}

func transferLamports(t *testing.T, data []byte) uint64 {
	t.Helper()
	require.Len(t, data, 12)
	require.Equal(t, uint32(2), binary.LittleEndian.Uint32(data))
	return binary.LittleEndian.Uint64(data[4:])
}

func TestBuildCreateTokenInstructionOrder(t *testing.T) {
	f := newFixture()
	res, err := f.builder(t, false).BuildCreateToken(context.Background(), f.request())
	require.NoError(t, err)

	summaries, err := Describe(res.Transaction)
	require.NoError(t, err)

	names := make([]string, len(summaries))
	for i, s := range summaries {
		names[i] = s.Name
	}
	assert.Equal(t, []string{
		"system:transfer",
		"system:createAccount",
		"token2022:initializeMetadataPointer",
		"token2022:initializeMint",
		"tokenMetadata:initialize",
	}, names)

	// non-production never charges
	assert.Equal(t, uint64(0), transferLamports(t, summaries[0].Data))
	assert.Equal(t, uint64(0), res.FeeLamports)
	assert.True(t, decimal.RequireFromString("0.25").Equal(res.Fee))

	create := summaries[1].Data
	assert.Equal(t, uint64(3_000_000), binary.LittleEndian.Uint64(create[4:12]), "rent lamports")
	assert.Equal(t, uint64(token2022.MintLenWithMetadataPointer()), binary.LittleEndian.Uint64(create[12:20]), "space")
	assert.Equal(t, token2022.ProgramID[:], create[20:52])
	assert.Equal(t, []solana.PublicKey{f.wallet, f.mint}, summaries[1].Accounts)

	require.Len(t, f.chain.rentSizes, 1)
	assert.Equal(t, uint64(res.Layout.TotalLen()), f.chain.rentSizes[0])
	assert.Equal(t, "getLatestBlockhash", f.chain.calls[len(f.chain.calls)-1], "blockhash is fetched last")
	assert.Equal(t, f.chain.blockhash, res.Transaction.Message.RecentBlockhash)

	assert.Equal(t, uint64(1), f.metrics.Counter(metrics.MetricTokenTxBuilt))
}

func TestBuildCreateTokenSignatures(t *testing.T) {
	f := newFixture()
	res, err := f.builder(t, false).BuildCreateToken(context.Background(), f.request())
	require.NoError(t, err)

	tx := res.Transaction
	require.Equal(t, uint8(3), tx.Message.Header.NumRequiredSignatures)
	assert.Equal(t, f.treasury.PublicKey(), tx.Message.AccountKeys[0], "treasury is fee payer")

	message, err := tx.Message.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, tx.Signatures, 3)
	assert.True(t, tx.Signatures[0].Verify(f.treasury.PublicKey(), message))
	assert.True(t, tx.Signatures[1].IsZero())
	assert.True(t, tx.Signatures[2].IsZero())

	signers := tx.Message.AccountKeys[:3]
	assert.Contains(t, signers, f.wallet)
	assert.Contains(t, signers, f.mint)
}

func TestBuildCreateTokenRoundTrip(t *testing.T) {
	f := newFixture()
	res, err := f.builder(t, true).BuildCreateToken(context.Background(), f.request())
	require.NoError(t, err)

	decoded, err := Decode(res.Serialized)
	require.NoError(t, err)

	assert.Equal(t, res.Transaction.Message.AccountKeys, decoded.Message.AccountKeys)
	assert.Equal(t, f.treasury.PublicKey(), decoded.Message.AccountKeys[0])
	assert.Equal(t, res.Transaction.Signatures, decoded.Signatures)

	want, err := Describe(res.Transaction)
	require.NoError(t, err)
	got, err := Describe(decoded)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBuildCreateTokenProductionChargesFee(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.RevokeUpdate = false
	req.TokenFee = decimal.NewNullDecimal(decimal.RequireFromString("0.2"))

	res, err := f.builder(t, true).BuildCreateToken(context.Background(), req)
	require.NoError(t, err)

	summaries, err := Describe(res.Transaction)
	require.NoError(t, err)
	assert.Equal(t, uint64(200_000_000), transferLamports(t, summaries[0].Data))
	assert.Equal(t, uint64(200_000_000), res.FeeLamports)
	assert.Contains(t, f.chain.calls, "getBalance")
}

func TestBuildCreateTokenFailures(t *testing.T) {
	tests := []struct {
		name       string
		production bool
		mutate     func(f *fixture, r *CreateTokenRequest)
		kind       errors.Kind
	}{
		{"missing wallet", false, func(f *fixture, r *CreateTokenRequest) { r.WalletPublicKey = "" }, errors.KindNotConnected},
		{"bad wallet", false, func(f *fixture, r *CreateTokenRequest) { r.WalletPublicKey = "not-base58!" }, errors.KindValidation},
		{"bad mint", false, func(f *fixture, r *CreateTokenRequest) { r.MintPublicKey = "xyz" }, errors.KindValidation},
		{"bad treasury key", false, func(f *fixture, r *CreateTokenRequest) { r.SwapForgePublicKey = "" }, errors.KindValidation},
		{"treasury mismatch", false, func(f *fixture, r *CreateTokenRequest) {
			r.SwapForgePublicKey = solsvc.NewWallet().PublicKey().String()
		}, errors.KindValidation},
		{"long name", false, func(f *fixture, r *CreateTokenRequest) { r.Name = "abcdefghijklmnopqrstuvwxyzabcde" }, errors.KindValidation},
		{"long symbol", false, func(f *fixture, r *CreateTokenRequest) { r.Symbol = "ABCDEFGHIJK" }, errors.KindValidation},
		{"missing uri", false, func(f *fixture, r *CreateTokenRequest) { r.MetadataURI = " " }, errors.KindValidation},
		{"fee mismatch", false, func(f *fixture, r *CreateTokenRequest) {
			r.TokenFee = decimal.NewNullDecimal(decimal.RequireFromString("0.1"))
		}, errors.KindValidation},
		{"insufficient balance", true, func(f *fixture, r *CreateTokenRequest) { f.chain.balance = 1_000 }, errors.KindInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := f.request()
			tt.mutate(f, &req)

			res, err := f.builder(t, tt.production).BuildCreateToken(context.Background(), req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.kind, errors.KindOf(err))
			assert.Equal(t, uint64(1), f.metrics.Counter(metrics.MetricTokenTxBuildFailed))
		})
	}
}

func TestBuildCreateTokenWalletCheckedFirst(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.WalletPublicKey = ""

	_, err := NewBuilder(f.chain, testFees(t)).BuildCreateToken(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrWalletNotConnected))
	assert.Equal(t, "Wallet not connected", errors.MessageOf(err))
	assert.Empty(t, f.chain.calls)
}

func TestBuildCreateTokenWithoutTreasury(t *testing.T) {
	f := newFixture()

	_, err := NewBuilder(f.chain, testFees(t)).BuildCreateToken(context.Background(), f.request())
	require.Error(t, err)
	assert.Equal(t, errors.KindConfiguration, errors.KindOf(err))
	assert.Empty(t, f.chain.calls, "no chain call before the configuration check")
}

func TestBuildPayment(t *testing.T) {
	f := newFixture()
	req := PaymentRequest{
		WalletPublicKey: f.wallet.String(),
		TokenFee:        decimal.NewNullDecimal(decimal.RequireFromString("0.15")),
	}

	res, err := f.builder(t, false).BuildPayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, fee.Options{RevokeMint: true}, res.Options)
	assert.Equal(t, uint64(0), res.FeeLamports)
	assert.Equal(t, f.wallet, res.Transaction.Message.AccountKeys[0], "wallet pays for its own payment")
	assert.NotContains(t, f.chain.calls, "getBalance")

	decoded, err := Decode(res.Serialized)
	require.NoError(t, err)
	summaries, err := Describe(decoded)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "system:transfer", summaries[0].Name)

	res, err = f.builder(t, true).BuildPayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, uint64(150_000_000), res.FeeLamports)
}

func TestBuildPaymentFailures(t *testing.T) {
	f := newFixture()
	f.chain.balance = 100_000_000

	_, err := f.builder(t, true).BuildPayment(context.Background(), PaymentRequest{
		WalletPublicKey: f.wallet.String(),
		TokenFee:        decimal.NewNullDecimal(decimal.RequireFromString("0.25")),
	})
	require.Error(t, err)
	assert.Equal(t, errors.KindInsufficientFunds, errors.KindOf(err))

	_, err = f.builder(t, false).BuildPayment(context.Background(), PaymentRequest{
		WalletPublicKey: f.wallet.String(),
		TokenFee:        decimal.NewNullDecimal(decimal.RequireFromString("0.33")),
	})
	assert.True(t, errors.Is(err, errors.ErrFeeMismatch))

	_, err = f.builder(t, false).BuildPayment(context.Background(), PaymentRequest{WalletPublicKey: f.wallet.String()})
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))

	_, err = f.builder(t, false).BuildPayment(context.Background(), PaymentRequest{})
	assert.Equal(t, errors.KindNotConnected, errors.KindOf(err))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode("%%%")
	assert.Error(t, err)

	_, err = Decode("AAAA")
	assert.Error(t, err)
}
