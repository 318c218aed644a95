package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/swapforge/internal/config"
	"github.com/lugondev/swapforge/internal/errors"
	"github.com/lugondev/swapforge/internal/fee"
	"github.com/lugondev/swapforge/internal/metadata"
	"github.com/lugondev/swapforge/internal/metrics"
	"github.com/lugondev/swapforge/internal/rate"
	solsvc "github.com/lugondev/swapforge/internal/solana"
	"github.com/lugondev/swapforge/internal/storage/memory"
	"github.com/lugondev/swapforge/internal/supply"
	"github.com/lugondev/swapforge/internal/token2022"
	"github.com/lugondev/swapforge/internal/tokenflow"
	"github.com/lugondev/swapforge/internal/txbuilder"
	"github.com/lugondev/swapforge/internal/walletrecord"
)

type fakeChain struct {
	balance uint64
}

func (f *fakeChain) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	return solana.Hash{7, 7, 7}, nil
}

func (f *fakeChain) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	return 3_000_000, nil
}

func (f *fakeChain) GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	return f.balance, nil
}

// fakeIssuer stands in for the chain during phase two.
type fakeIssuer struct {
	supply    uint64
	mintCalls int
}

func (f *fakeIssuer) Prepare(walletKey, mintKey string) (solana.PublicKey, solana.PublicKey, error) {
	wallet, err := txbuilder.ParsePublicKey("walletPublicKey", walletKey)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}
	mint, err := txbuilder.ParsePublicKey("mintPublicKey", mintKey)
	return wallet, mint, err
}

func (f *fakeIssuer) InspectMint(ctx context.Context, mint solana.PublicKey) (*token2022.Mint, error) {
	return &token2022.Mint{Decimals: 9, Supply: f.supply, IsInitialized: true}, nil
}

func (f *fakeIssuer) MintSupply(ctx context.Context, mint, wallet solana.PublicKey, info *token2022.Mint, amount uint64) (*supply.Result, error) {
	f.mintCalls++
	f.supply = amount * 1_000_000_000
	return &supply.Result{
		Mint:            mint,
		Wallet:          wallet,
		TokenAccount:    solana.NewWallet().PublicKey(),
		Amount:          f.supply,
		SupplySignature: solana.Signature{1},
	}, nil
}

func (f *fakeIssuer) FinalizeAuthorities(ctx context.Context, mint solana.PublicKey, info *token2022.Mint, revoke supply.Revocations) (solana.Signature, []string, error) {
	var revoked []string
	if revoke.Freeze {
		revoked = append(revoked, "freeze")
	}
	if revoke.Mint {
		revoked = append(revoked, "mint")
	}
	if revoke.Update {
		revoked = append(revoked, "update")
	}
	return solana.Signature{2}, revoked, nil
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return fmt.Errorf("connection refused") }

type apiFixture struct {
	handler  http.Handler
	chain    *fakeChain
	treasury *solsvc.Wallet
	issuer   *fakeIssuer
	repo     *memory.MemoryRepository
	store    *metadata.MemoryStore
	metrics  *metrics.LogMetrics
	wallet   string
	mint     string
}

type fixtureOption func(*Deps, *config.ServerConfig)

func newAPIFixture(t *testing.T, production bool, opts ...fixtureOption) *apiFixture {
	t.Helper()
	fees, err := fee.NewSchedule(config.FeeConfig{Base: "0.1", RevokeMint: "0.05", RevokeFreeze: "0.05", RevokeUpdate: "0.05"})
	require.NoError(t, err)

	fx := &apiFixture{
		chain:    &fakeChain{balance: 10_000_000_000},
		treasury: solsvc.NewWallet(),
		issuer:   &fakeIssuer{},
		repo:     memory.NewRepository(),
		store:    metadata.NewMemoryStore("http://uploads.test"),
		metrics:  metrics.NewLogMetrics(nil),
		wallet:   solsvc.NewWallet().PublicKey().String(),
		mint:     solsvc.NewWallet().PublicKey().String(),
	}

	builder := txbuilder.NewBuilder(fx.chain, fees,
		txbuilder.WithTreasury(fx.treasury),
		txbuilder.WithProduction(production),
	)
	records := walletrecord.NewService(fx.repo)
	flow := tokenflow.NewFlow(builder, fx.issuer, records, fx.repo.TokenStates())

	deps := Deps{
		Tokens:   flow,
		Payments: builder,
		Wallets:  records,
		Metadata: metadata.NewUploader(fx.store, metadata.WithPrefix("tokens")),
		Health:   fx.repo,
		Metrics:  fx.metrics,
		Uploads:  fx.store,
	}
	cfg := config.DefaultConfig().Server
	for _, opt := range opts {
		opt(&deps, &cfg)
	}
	fx.handler = NewServer(deps, cfg).Handler()
	return fx
}

func (fx *apiFixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func (fx *apiFixture) createBody() map[string]any {
	return map[string]any{
		"tokenName":          "Forge",
		"tokenSymbol":        "FRG",
		"tokenDecimals":      9,
		"metadataUri":        "https://cdn.example.com/forge.json",
		"revokeMint":         true,
		"revokeFreeze":       true,
		"immutable":          false,
		"tokenFee":           "0.2",
		"swapForgePublicKey": fx.treasury.PublicKey().String(),
		"walletPublicKey":    fx.wallet,
		"mintPublicKey":      fx.mint,
	}
}

func pngBase64(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestMissingWalletIsNotConnected(t *testing.T) {
	fx := newAPIFixture(t, false)
	paths := []string{
		"/api/token-create",
		"/api/token/token",
		"/api/token-add-supplier",
		"/api/payment",
		"/api/token/cancel",
		"/api/wallet/token/update",
		"/api/wallet/activity",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			rec, body := fx.do(t, http.MethodPost, path, map[string]any{"mintPublicKey": fx.mint})
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "Wallet not connected", body["error"])
			assert.Equal(t, "not_connected", body["kind"])
		})
	}
}

func TestCreateToken(t *testing.T) {
	fx := newAPIFixture(t, false)

	rec, body := fx.do(t, http.MethodPost, "/api/token-create", fx.createBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, fx.mint, body["mint"])
	assert.Equal(t, "0.2", body["fee"])
	assert.EqualValues(t, 0, body["feeLamports"], "fees are not charged outside production")
	assert.Equal(t, "https://cdn.example.com/forge.json", body["metadataUri"])

	tx, err := txbuilder.Decode(body["serializedTransaction"].(string))
	require.NoError(t, err)
	assert.Len(t, tx.Message.Instructions, 5)
	assert.Equal(t, fx.treasury.PublicKey(), tx.Message.AccountKeys[0])

	rec, status := fx.do(t, http.MethodGet, "/api/token/status/"+fx.mint, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "requested", status["state"])
	assert.Equal(t, fx.wallet, status["creator_wallet"])
}

func TestCreateTokenAliasAndStringNumbers(t *testing.T) {
	fx := newAPIFixture(t, false)
	req := fx.createBody()
	req["tokenDecimals"] = "6"
	req["tokenFee"] = 0.2

	rec, _ := fx.do(t, http.MethodPost, "/api/token/token", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	st, err := fx.repo.TokenStates().FindByMint(context.Background(), fx.mint)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), st.Decimals)

	req["tokenDecimals"] = "six"
	rec, body := fx.do(t, http.MethodPost, "/api/token/token", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", body["kind"])

	req["tokenDecimals"] = 256
	rec, _ = fx.do(t, http.MethodPost, "/api/token/token", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTokenUploadsMetadata(t *testing.T) {
	fx := newAPIFixture(t, false)
	req := fx.createBody()
	delete(req, "metadataUri")
	req["tokenLogo"] = "data:image/png;base64," + pngBase64(t, 1024, 1024)
	req["tokenDescription"] = "forged"

	rec, body := fx.do(t, http.MethodPost, "/api/token-create", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	uri, _ := body["metadataUri"].(string)
	assert.True(t, strings.HasPrefix(uri, "http://uploads.test/tokens/"), uri)
	assert.Equal(t, 2, fx.store.Len())
}

func TestCreateTokenRejections(t *testing.T) {
	fx := newAPIFixture(t, false)

	req := fx.createBody()
	req["tokenFee"] = "0.3"
	rec, body := fx.do(t, http.MethodPost, "/api/token-create", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", body["kind"])

	req = fx.createBody()
	req["swapForgePublicKey"] = fx.wallet
	rec, _ = fx.do(t, http.MethodPost, "/api/token-create", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = fx.createBody()
	delete(req, "metadataUri")
	rec, body = fx.do(t, http.MethodPost, "/api/token-create", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Metadata URI is required", body["error"])

	rec, _ = fx.do(t, http.MethodPost, "/api/token-create", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = fx.do(t, http.MethodPost, "/api/token-create", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Request body is required", body["error"])
}

func TestAddSupply(t *testing.T) {
	fx := newAPIFixture(t, false)
	rec, _ := fx.do(t, http.MethodPost, "/api/token-create", fx.createBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	supplyReq := map[string]any{
		"tokenSupply":     "1000",
		"walletPublicKey": fx.wallet,
		"mintPublicKey":   fx.mint,
	}
	rec, body := fx.do(t, http.MethodPost, "/api/token-add-supplier", supplyReq)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "authorities_finalized", body["state"])
	assert.Equal(t, "1000000000000", body["amount"])
	assert.Equal(t, []any{"freeze", "mint"}, body["revoked"])
	assert.Equal(t, false, body["resumed"])
	assert.NotEmpty(t, body["supplySignature"])
	assert.NotEmpty(t, body["authoritySignature"])

	rec, wallet := fx.do(t, http.MethodGet, "/api/wallet/"+fx.wallet, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, wallet["tokens_created"])
	assert.Len(t, wallet["referral_code"], walletrecord.ReferralCodeLength)

	rec, tokens := fx.do(t, http.MethodGet, "/api/wallet/"+fx.wallet+"/tokens", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, tokens["tokens"], 1)

	rec, body = fx.do(t, http.MethodPost, "/api/token-add-supplier", supplyReq)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", body["kind"])
	assert.Equal(t, 1, fx.issuer.mintCalls)
}

func TestAddSupplyRequiresSupply(t *testing.T) {
	fx := newAPIFixture(t, false)
	rec, _ := fx.do(t, http.MethodPost, "/api/token-create", fx.createBody())
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := fx.do(t, http.MethodPost, "/api/token-add-supplier", map[string]any{
		"walletPublicKey": fx.wallet,
		"mintPublicKey":   fx.mint,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", body["kind"])
}

func TestPayment(t *testing.T) {
	fx := newAPIFixture(t, false)

	rec, body := fx.do(t, http.MethodPost, "/api/payment", map[string]any{
		"tokenFee":        "0.1",
		"walletPublicKey": fx.wallet,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tx, err := txbuilder.Decode(body["serializedTransaction"].(string))
	require.NoError(t, err)
	assert.Len(t, tx.Message.Instructions, 1)

	rec, _ = fx.do(t, http.MethodPost, "/api/payment", map[string]any{
		"tokenFee":        "0.123",
		"walletPublicKey": fx.wallet,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentInsufficientFunds(t *testing.T) {
	fx := newAPIFixture(t, true)
	fx.chain.balance = 1_000

	rec, body := fx.do(t, http.MethodPost, "/api/payment", map[string]any{
		"tokenFee":        "0.1",
		"walletPublicKey": fx.wallet,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "insufficient_funds", body["kind"])
	assert.NotContains(t, body, "serializedTransaction")
}

func TestFeeQuote(t *testing.T) {
	fx := newAPIFixture(t, true)

	rec, body := fx.do(t, http.MethodGet, "/api/token/fee?revokeMint=true&immutable=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.2", body["tokenFee"])
	assert.EqualValues(t, 200_000_000, body["feeLamports"])

	rec, _ = fx.do(t, http.MethodGet, "/api/token/fee?revokeFreeze=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancel(t *testing.T) {
	fx := newAPIFixture(t, false)
	rec, _ := fx.do(t, http.MethodPost, "/api/token-create", fx.createBody())
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := fx.do(t, http.MethodPost, "/api/token/cancel", map[string]any{
		"walletPublicKey": fx.wallet,
		"mintPublicKey":   fx.mint,
		"reason":          tokenflow.ReasonUserRejected,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", body["state"])
	assert.Equal(t, errors.ErrUserRejected.Message, body["lastError"])

	rec, body = fx.do(t, http.MethodPost, "/api/token/cancel", map[string]any{
		"walletPublicKey": fx.wallet,
		"mintPublicKey":   fx.mint,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", body["kind"])
}

func TestStatusUnknownMint(t *testing.T) {
	fx := newAPIFixture(t, false)

	rec, body := fx.do(t, http.MethodGet, "/api/token/status/"+fx.mint, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["kind"])

	rec, _ = fx.do(t, http.MethodGet, "/api/token/status/not-a-key", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWalletEndpoints(t *testing.T) {
	fx := newAPIFixture(t, false)

	rec, _ := fx.do(t, http.MethodGet, "/api/wallet/"+fx.wallet, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, record := fx.do(t, http.MethodPost, "/api/wallet/token/update", map[string]any{
		"walletPublicKey": fx.wallet,
		"mintPublicKey":   fx.mint,
		"tokenName":       "Forge",
		"tokenSymbol":     "FRG",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, record["tokens_created"])

	rec, record = fx.do(t, http.MethodPost, "/api/wallet/token/update", map[string]any{
		"walletPublicKey": fx.wallet,
		"mintPublicKey":   fx.mint,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, record["tokens_created"], "a mint is counted once")

	rec, _ = fx.do(t, http.MethodPost, "/api/wallet/token/update", map[string]any{
		"walletPublicKey": fx.wallet,
		"mintPublicKey":   "bad",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, kind := range []string{"swap", "liquidity", "swap"} {
		rec, _ = fx.do(t, http.MethodPost, "/api/wallet/activity", map[string]any{
			"walletPublicKey": fx.wallet,
			"kind":            kind,
			"reference":       "pool-1",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec, _ = fx.do(t, http.MethodPost, "/api/wallet/activity", map[string]any{
		"walletPublicKey": fx.wallet,
		"kind":            "stake",
		"reference":       "pool-1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, list := fx.do(t, http.MethodGet, "/api/wallet/"+fx.wallet+"/activity?kind=swap", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, list["activity"], 2)

	rec, list = fx.do(t, http.MethodGet, "/api/wallet/"+fx.wallet+"/activity?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, list["activity"], 1)

	rec, _ = fx.do(t, http.MethodGet, "/api/wallet/"+fx.wallet+"/activity?limit=ten", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	other := solsvc.NewWallet().PublicKey().String()
	rec, list = fx.do(t, http.MethodGet, "/api/wallet/"+other+"/tokens", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, list["tokens"])
}

func TestMetadataEndpoints(t *testing.T) {
	fx := newAPIFixture(t, false)

	rec, body := fx.do(t, http.MethodPost, "/api/token/metadata/create", map[string]any{
		"tokenName":   "Forge",
		"tokenSymbol": "FRG",
		"tokenLogo":   pngBase64(t, 64, 64),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	uri, _ := body["uri"].(string)
	require.True(t, strings.HasPrefix(uri, "http://uploads.test/tokens/"), uri)

	served, _ := fx.do(t, http.MethodGet, "/uploads/"+strings.TrimPrefix(uri, "http://uploads.test/"), nil)
	require.Equal(t, http.StatusOK, served.Code)
	var doc metadata.Metadata
	require.NoError(t, json.Unmarshal(served.Body.Bytes(), &doc))
	assert.Equal(t, "Forge", doc.Name)

	rec, _ = fx.do(t, http.MethodPost, "/api/token/metadata/create", map[string]any{"tokenSymbol": "FRG"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = fx.do(t, http.MethodPost, "/api/token/image/resize", map[string]any{
		"tokenLogoBase64": pngBase64(t, 1024, 512),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resized, err := base64.StdEncoding.DecodeString(body["resizedTokenLogoBase64"].(string))
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(resized))
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Width)
	assert.Equal(t, 256, cfg.Height)

	rec, _ = fx.do(t, http.MethodPost, "/api/token/image/resize", map[string]any{"tokenLogoBase64": "!!!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouting(t *testing.T) {
	fx := newAPIFixture(t, false)

	rec, body := fx.do(t, http.MethodGet, "/api/payment", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method_not_allowed", body["kind"])

	rec, body = fx.do(t, http.MethodGet, "/api/nothing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["kind"])

	rec, body = fx.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	assert.GreaterOrEqual(t, fx.metrics.Counter(metrics.MetricHTTPRequests), uint64(3))
}

func TestHealthFailure(t *testing.T) {
	fx := newAPIFixture(t, false, func(d *Deps, _ *config.ServerConfig) {
		d.Health = failingPinger{}
	})
	rec, body := fx.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", body["status"])
}

func TestRateLimit(t *testing.T) {
	fx := newAPIFixture(t, false, func(d *Deps, _ *config.ServerConfig) {
		d.Limiter = rate.NewLocalLimiter(0.001, 1)
	})

	rec, _ := fx.do(t, http.MethodGet, "/api/token/fee", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := fx.do(t, http.MethodGet, "/api/token/fee", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests", body["error"])
	assert.Equal(t, "rate_limited", body["kind"])
	assert.Equal(t, uint64(1), fx.metrics.Counter(metrics.MetricHTTPRateLimited))

	rec, _ = fx.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health checks are not limited")
}

func TestBodyLimit(t *testing.T) {
	fx := newAPIFixture(t, false, func(_ *Deps, cfg *config.ServerConfig) {
		cfg.MaxBodyBytes = 64
	})
	req := fx.createBody()
	req["tokenDescription"] = strings.Repeat("x", 256)

	rec, body := fx.do(t, http.MethodPost, "/api/token-create", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Request body is too large", body["error"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.Validation("bad"), http.StatusBadRequest},
		{errors.ErrUserRejected, http.StatusBadRequest},
		{errors.ErrInsufficientFunds, http.StatusForbidden},
		{errors.ErrWalletNotConnected, http.StatusNotFound},
		{errors.NotFound("Token"), http.StatusNotFound},
		{errors.ErrTreasuryNotConfigured, http.StatusNotFound},
		{errors.IllegalTransition("cancelled", "mint_created"), http.StatusConflict},
		{errors.Upstream("rpc", fmt.Errorf("timeout")), http.StatusInternalServerError},
		{errors.OnChain("simulate", fmt.Errorf("custom program error")), http.StatusInternalServerError},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
