// Package txbuilder assembles the transactions the client signs: the
// phase-one token creation transaction and the standalone fee payment.
package txbuilder

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/shopspring/decimal"

	"github.com/lugondev/swapforge/internal/common"
	"github.com/lugondev/swapforge/internal/errors"
	"github.com/lugondev/swapforge/internal/fee"
	"github.com/lugondev/swapforge/internal/metrics"
	solsvc "github.com/lugondev/swapforge/internal/solana"
	"github.com/lugondev/swapforge/internal/token2022"
)

// Field limits.
const (
	MaxNameLength   = 30
	MaxSymbolLength = 10
	MaxURILength    = 200
)

// ChainReader is the cluster state the builder needs.
type ChainReader interface {
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
	GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error)
}

// CreateTokenRequest is a phase-one request from the client.
type CreateTokenRequest struct {
	WalletPublicKey    string
	MintPublicKey      string
	SwapForgePublicKey string
	Name               string
	Symbol             string
	Decimals           uint8
	MetadataURI        string
	RevokeMint         bool
	RevokeFreeze       bool
	RevokeUpdate       bool
	// TokenFee is the fee the client displayed. It is only compared against
	// the server quote; the charged amount always comes from the schedule.
	TokenFee decimal.NullDecimal
}

// Options returns the billable options of the request.
func (r CreateTokenRequest) Options() fee.Options {
	return fee.Options{
		RevokeMint:   r.RevokeMint,
		RevokeFreeze: r.RevokeFreeze,
		RevokeUpdate: r.RevokeUpdate,
	}
}

// CreateTokenResult is a built phase-one transaction.
type CreateTokenResult struct {
	Transaction  *solana.Transaction
	Serialized   string
	Wallet       solana.PublicKey
	Mint         solana.PublicKey
	Treasury     solana.PublicKey
	Fee          decimal.Decimal
	FeeLamports  uint64
	Layout       token2022.Layout
	RentLamports uint64
	Blockhash    solana.Hash
}

// PaymentRequest asks for a fee-only transfer.
type PaymentRequest struct {
	WalletPublicKey string
	TokenFee        decimal.NullDecimal
}

// PaymentResult is a built payment transaction.
type PaymentResult struct {
	Transaction *solana.Transaction
	Serialized  string
	Options     fee.Options
	FeeLamports uint64
}

// Builder assembles unsigned transactions for the client.
type Builder struct {
	common.LoggerMixin
	chain      ChainReader
	fees       *fee.Schedule
	treasury   *solsvc.Wallet
	production bool
	metrics    metrics.Metrics
}

// Option configures a Builder.
type Option func(*Builder)

// WithTreasury sets the treasury keypair. Without it every build fails with
// a configuration error.
func WithTreasury(w *solsvc.Wallet) Option {
	return func(b *Builder) {
		b.treasury = w
	}
}

// WithProduction enables fee charging and balance checks.
func WithProduction(production bool) Option {
	return func(b *Builder) {
		b.production = production
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.Metrics) Option {
	return func(b *Builder) {
		b.metrics = m
	}
}

// NewBuilder creates a Builder.
func NewBuilder(chain ChainReader, fees *fee.Schedule, opts ...Option) *Builder {
	b := &Builder{
		LoggerMixin: common.NewLoggerMixin(),
		chain:       chain,
		fees:        fees,
		metrics:     metrics.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.SetLogger(logger)
	return b
}

// Treasury returns the treasury public key, or false if none is configured.
func (b *Builder) Treasury() (solana.PublicKey, bool) {
	if b.treasury == nil {
		return solana.PublicKey{}, false
	}
	return b.treasury.PublicKey(), true
}

// Quote returns the fee for o and the lamports that would be transferred.
func (b *Builder) Quote(o fee.Options) (decimal.Decimal, uint64) {
	return b.fees.Quote(o), b.fees.Charge(o, b.production)
}

// BuildCreateToken assembles the phase-one transaction:
//
//  1. fee transfer wallet -> treasury
//  2. createAccount for the mint, funded by the wallet
//  3. metadata pointer initialization (the mint is its own metadata account)
//  4. mint initialization
//  5. metadata initialization
//
// The treasury is fee payer and signs its slot; the wallet and mint
// signatures are left empty for the client.
func (b *Builder) BuildCreateToken(ctx context.Context, req CreateTokenRequest) (*CreateTokenResult, error) {
	res, err := b.buildCreateToken(ctx, req)
	if err != nil {
		b.metrics.IncrementCounter(ctx, metrics.MetricTokenTxBuildFailed, 1)
		b.GetLogger().Warn("token transaction not built",
			"wallet", req.WalletPublicKey,
			"mint", req.MintPublicKey,
			"kind", errors.KindOf(err),
			"error", err,
		)
		return nil, err
	}

	b.metrics.IncrementCounter(ctx, metrics.MetricTokenTxBuilt, 1)
	b.metrics.RecordHistogram(ctx, metrics.MetricFeeLamportsQuoted, float64(res.FeeLamports))
	b.GetLogger().Info("token transaction built",
		"wallet", res.Wallet,
		"mint", res.Mint,
		"fee_lamports", res.FeeLamports,
		"rent_lamports", res.RentLamports,
		"mint_len", res.Layout.MintLen,
		"metadata_len", res.Layout.MetadataLen,
	)
	return res, nil
}

func (b *Builder) buildCreateToken(ctx context.Context, req CreateTokenRequest) (*CreateTokenResult, error) {
	if strings.TrimSpace(req.WalletPublicKey) == "" {
		return nil, errors.ErrWalletNotConnected
	}
	wallet, err := ParsePublicKey("walletPublicKey", req.WalletPublicKey)
	if err != nil {
		return nil, err
	}
	mint, err := ParsePublicKey("mintPublicKey", req.MintPublicKey)
	if err != nil {
		return nil, err
	}
	swapForge, err := ParsePublicKey("swapForgePublicKey", req.SwapForgePublicKey)
	if err != nil {
		return nil, err
	}
	if err := validateTokenFields(req); err != nil {
		return nil, err
	}
	if mint.Equals(wallet) {
		return nil, errors.Validation("Mint public key must differ from the wallet")
	}

	if b.treasury == nil {
		return nil, errors.ErrTreasuryNotConfigured
	}
	treasury := b.treasury.PublicKey()
	if !swapForge.Equals(treasury) {
		return nil, errors.ErrTreasuryMismatch.WithDetails(map[string]any{"expected": treasury.String()})
	}

	opts := req.Options()
	quote := b.fees.Quote(opts)
	if req.TokenFee.Valid && !b.fees.Matches(opts, req.TokenFee.Decimal) {
		return nil, errors.ErrFeeMismatch.WithDetails(map[string]any{"quote": quote.String()})
	}
	feeLamports := b.fees.Charge(opts, b.production)

	metadata := token2022.Metadata{
		UpdateAuthority: &treasury,
		Mint:            mint,
		Name:            req.Name,
		Symbol:          req.Symbol,
		URI:             req.MetadataURI,
	}
	layout := token2022.NewLayout(metadata)

	rent, err := b.chain.GetMinimumBalanceForRentExemption(ctx, uint64(layout.TotalLen()))
	if err != nil {
		return nil, err
	}

	if b.production {
		if err := b.requireBalance(ctx, wallet, feeLamports+rent); err != nil {
			return nil, err
		}
	}

	instructions := []solana.Instruction{
		system.NewTransferInstruction(feeLamports, wallet, treasury).Build(),
		system.NewCreateAccountInstruction(rent, uint64(layout.MintLen), token2022.ProgramID, wallet, mint).Build(),
		token2022.InitializeMetadataPointer(mint, treasury, mint),
		token2022.InitializeMint(mint, req.Decimals, treasury, &treasury),
		token2022.InitializeMetadata(mint, treasury, mint, treasury, req.Name, req.Symbol, req.MetadataURI),
	}

	// fetched last so the client gets the longest validity window
	blockhash, err := b.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(treasury))
	if err != nil {
		return nil, errors.Internal("assemble transaction", err)
	}
	if err := b.treasury.PartialSign(tx); err != nil {
		return nil, errors.Internal("sign transaction", err)
	}

	serialized, err := Encode(tx)
	if err != nil {
		return nil, err
	}

	return &CreateTokenResult{
		Transaction:  tx,
		Serialized:   serialized,
		Wallet:       wallet,
		Mint:         mint,
		Treasury:     treasury,
		Fee:          quote,
		FeeLamports:  feeLamports,
		Layout:       layout,
		RentLamports: rent,
		Blockhash:    blockhash,
	}, nil
}

// BuildPayment assembles a fee-only transfer paid by the wallet. The fee must
// match one of the schedule's quotes. In production the wallet balance must
// cover it.
func (b *Builder) BuildPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	if strings.TrimSpace(req.WalletPublicKey) == "" {
		return nil, errors.ErrWalletNotConnected
	}
	wallet, err := ParsePublicKey("walletPublicKey", req.WalletPublicKey)
	if err != nil {
		return nil, err
	}
	if !req.TokenFee.Valid {
		return nil, errors.Validation("Token fee is required")
	}
	opts, ok := b.fees.Recognize(req.TokenFee.Decimal)
	if !ok {
		return nil, errors.ErrFeeMismatch
	}

	if b.treasury == nil {
		return nil, errors.ErrTreasuryNotConfigured
	}
	treasury := b.treasury.PublicKey()
	lamports := b.fees.Charge(opts, b.production)

	if b.production {
		if err := b.requireBalance(ctx, wallet, lamports); err != nil {
			return nil, err
		}
	}

	blockhash, err := b.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(lamports, wallet, treasury).Build()},
		blockhash,
		solana.TransactionPayer(wallet),
	)
	if err != nil {
		return nil, errors.Internal("assemble transaction", err)
	}

	serialized, err := Encode(tx)
	if err != nil {
		return nil, err
	}

	b.metrics.IncrementCounter(ctx, metrics.MetricPaymentTxBuilt, 1)
	b.GetLogger().Info("payment transaction built", "wallet", wallet, "fee_lamports", lamports)

	return &PaymentResult{
		Transaction: tx,
		Serialized:  serialized,
		Options:     opts,
		FeeLamports: lamports,
	}, nil
}

func (b *Builder) requireBalance(ctx context.Context, wallet solana.PublicKey, required uint64) error {
	balance, err := b.chain.GetBalance(ctx, wallet)
	if err != nil {
		return err
	}
	if balance < required {
		return errors.ErrInsufficientFunds.WithDetails(map[string]any{
			"required_lamports":  required,
			"available_lamports": balance,
		})
	}
	return nil
}

func validateTokenFields(req CreateTokenRequest) error {
	name := strings.TrimSpace(req.Name)
	symbol := strings.TrimSpace(req.Symbol)

	switch {
	case name == "":
		return errors.Validation("Token name is required")
	case utf8.RuneCountInString(req.Name) > MaxNameLength:
		return errors.Validation(fmt.Sprintf("Token name must be at most %d characters", MaxNameLength))
	case symbol == "":
		return errors.Validation("Token symbol is required")
	case utf8.RuneCountInString(req.Symbol) > MaxSymbolLength:
		return errors.Validation(fmt.Sprintf("Token symbol must be at most %d characters", MaxSymbolLength))
	case strings.TrimSpace(req.MetadataURI) == "":
		return errors.Validation("Metadata URI is required")
	case len(req.MetadataURI) > MaxURILength:
		return errors.Validation(fmt.Sprintf("Metadata URI must be at most %d bytes", MaxURILength))
	}
	return nil
}

// ParsePublicKey parses a base58 public key, naming the field on failure.
func ParsePublicKey(field, value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(strings.TrimSpace(value))
	if err != nil {
		return solana.PublicKey{}, errors.InvalidPublicKey(field, err)
	}
	return key, nil
}

// Encode serializes tx to base64, keeping empty signature slots for signers
// that have not signed yet.
func Encode(tx *solana.Transaction) (string, error) {
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) != required {
		sigs := make([]solana.Signature, required)
		copy(sigs, tx.Signatures)
		tx.Signatures = sigs
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", errors.Internal("serialize transaction", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
