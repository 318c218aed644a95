// Package supply runs phase two of token creation: it mints the initial
// supply to the creator and then revokes the authorities the creator paid to
// have removed. Both transactions are signed entirely by the treasury.
package supply

import (
	"context"
	"fmt"
	"log/slog"
	"math/bits"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/swapforge/internal/common"
	"github.com/lugondev/swapforge/internal/config"
	"github.com/lugondev/swapforge/internal/errors"
	"github.com/lugondev/swapforge/internal/metrics"
	solsvc "github.com/lugondev/swapforge/internal/solana"
	"github.com/lugondev/swapforge/internal/token2022"
)

// LegacyDecimals is the exponent used by the fixed scale mode.
const LegacyDecimals = 9

// Chain is the cluster access the manager needs.
type Chain interface {
	GetAccount(ctx context.Context, pubkey solana.PublicKey) (*solsvc.Account, error)
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendAndConfirmTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Revocations selects the authorities to remove.
type Revocations struct {
	Mint   bool
	Freeze bool
	Update bool
}

// Any reports whether at least one revocation is requested.
func (r Revocations) Any() bool {
	return r.Mint || r.Freeze || r.Update
}

// Request is a phase-two request.
type Request struct {
	WalletPublicKey string
	MintPublicKey   string
	Supply          uint64
	Revoke          Revocations
}

// Result describes a completed phase two.
type Result struct {
	Mint               solana.PublicKey
	Wallet             solana.PublicKey
	TokenAccount       solana.PublicKey
	Amount             uint64
	Decimals           uint8
	SupplySignature    solana.Signature
	AuthoritySignature solana.Signature
	Revoked            []string
}

// Manager issues supply and finalizes authorities.
type Manager struct {
	common.LoggerMixin
	chain     Chain
	treasury  *solsvc.Wallet
	scaleMode string
	metrics   metrics.Metrics
}

// Option configures a Manager.
type Option func(*Manager)

// WithTreasury sets the treasury keypair.
func WithTreasury(w *solsvc.Wallet) Option {
	return func(m *Manager) {
		m.treasury = w
	}
}

// WithScaleMode sets how the requested supply is scaled to base units.
func WithScaleMode(mode string) Option {
	return func(m *Manager) {
		m.scaleMode = mode
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// NewManager creates a Manager. The scale mode defaults to fixed.
func NewManager(chain Chain, opts ...Option) *Manager {
	m := &Manager{
		LoggerMixin: common.NewLoggerMixin(),
		chain:       chain,
		scaleMode:   config.ScaleModeFixed,
		metrics:     metrics.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithLogger sets the logger.
func (m *Manager) WithLogger(logger *slog.Logger) *Manager {
	m.SetLogger(logger)
	return m
}

// ScaleAmount converts a whole-token supply into base units. The fixed mode
// always multiplies by 10^9; the decimals mode uses the mint's decimals.
func ScaleAmount(supply uint64, decimals uint8, mode string) (uint64, error) {
	exponent := uint(LegacyDecimals)
	if mode == config.ScaleModeDecimals {
		exponent = uint(decimals)
	}

	factor := uint64(1)
	for i := uint(0); i < exponent; i++ {
		hi, lo := bits.Mul64(factor, 10)
		if hi != 0 {
			return 0, errors.SupplyOverflow(supply, decimals)
		}
		factor = lo
	}

	hi, amount := bits.Mul64(supply, factor)
	if hi != 0 {
		return 0, errors.SupplyOverflow(supply, decimals)
	}
	return amount, nil
}

// InspectMint reads and decodes the mint account.
func (m *Manager) InspectMint(ctx context.Context, mint solana.PublicKey) (*token2022.Mint, error) {
	acc, err := m.chain.GetAccount(ctx, mint)
	if err != nil {
		if errors.Is(err, solsvc.ErrAccountNotFound) {
			return nil, errors.NotFound("mint account").WithDetails(map[string]any{"mint": mint.String()})
		}
		return nil, err
	}
	if !acc.Owner.Equals(token2022.ProgramID) {
		return nil, errors.Validation("Mint is not a Token-2022 account").
			WithDetails(map[string]any{"owner": acc.Owner.String()})
	}

	info, err := token2022.DecodeMint(acc.Data)
	if err != nil {
		return nil, errors.DecodeFailed("mint account", err)
	}
	if !info.IsInitialized {
		return nil, errors.Conflict("Mint is not initialized")
	}
	return info, nil
}

// IssueSupply runs the whole of phase two: the supply transaction followed,
// when any revocation is requested, by the authority transaction.
func (m *Manager) IssueSupply(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := m.issueSupply(ctx, req)
	if err != nil {
		m.metrics.IncrementCounter(ctx, metrics.MetricPhaseTwoFailed, 1)
		m.GetLogger().Error("phase two failed",
			"wallet", req.WalletPublicKey,
			"mint", req.MintPublicKey,
			"kind", errors.KindOf(err),
			"error", err,
		)
		return res, err
	}
	m.metrics.RecordHistogram(ctx, metrics.MetricPhaseTwoSeconds, time.Since(start).Seconds())
	return res, nil
}

func (m *Manager) issueSupply(ctx context.Context, req Request) (*Result, error) {
	wallet, mint, err := m.Prepare(req.WalletPublicKey, req.MintPublicKey)
	if err != nil {
		return nil, err
	}
	if req.Supply == 0 {
		return nil, errors.Validation("Token supply must be greater than zero")
	}

	info, err := m.InspectMint(ctx, mint)
	if err != nil {
		return nil, err
	}

	res, err := m.MintSupply(ctx, mint, wallet, info, req.Supply)
	if err != nil {
		return nil, err
	}

	sig, revoked, err := m.FinalizeAuthorities(ctx, mint, info, req.Revoke)
	if err != nil {
		return res, err
	}
	res.AuthoritySignature = sig
	res.Revoked = revoked
	return res, nil
}

// Prepare checks the wallet and treasury and parses the keys. It makes no
// chain call.
func (m *Manager) Prepare(walletKey, mintKey string) (wallet, mint solana.PublicKey, err error) {
	if strings.TrimSpace(walletKey) == "" {
		return wallet, mint, errors.ErrWalletNotConnected
	}
	if m.treasury == nil {
		return wallet, mint, errors.ErrTreasuryNotConfigured
	}
	if wallet, err = parseKey("walletPublicKey", walletKey); err != nil {
		return wallet, mint, err
	}
	if mint, err = parseKey("mintPublicKey", mintKey); err != nil {
		return wallet, mint, err
	}
	return wallet, mint, nil
}

// MintSupply creates the creator's associated token account if needed and
// mints the scaled supply into it.
func (m *Manager) MintSupply(ctx context.Context, mint, wallet solana.PublicKey, info *token2022.Mint, supply uint64) (*Result, error) {
	if m.treasury == nil {
		return nil, errors.ErrTreasuryNotConfigured
	}
	treasury := m.treasury.PublicKey()
	if info.MintAuthority == nil || !info.MintAuthority.Equals(treasury) {
		return nil, errors.Conflict("Mint authority is not held by the service wallet")
	}

	if m.scaleMode != config.ScaleModeDecimals && info.Decimals != LegacyDecimals {
		m.GetLogger().Warn("fixed supply scale used with non-default decimals",
			"mint", mint,
			"decimals", info.Decimals,
			"scale_decimals", LegacyDecimals,
		)
	}
	amount, err := ScaleAmount(supply, info.Decimals, m.scaleMode)
	if err != nil {
		return nil, err
	}

	createATA, ata, err := token2022.CreateAssociatedTokenAccountIdempotent(treasury, wallet, mint)
	if err != nil {
		return nil, errors.Internal("derive token account", err)
	}

	sig, err := m.send(ctx, "supply", []solana.Instruction{
		createATA,
		token2022.MintTo(mint, ata, treasury, amount),
	})
	if err != nil {
		return nil, err
	}

	m.metrics.IncrementCounter(ctx, metrics.MetricSupplyMinted, 1)
	m.GetLogger().Info("supply minted",
		"mint", mint,
		"wallet", wallet,
		"token_account", ata,
		"amount", amount,
		"signature", sig,
	)

	return &Result{
		Mint:            mint,
		Wallet:          wallet,
		TokenAccount:    ata,
		Amount:          amount,
		Decimals:        info.Decimals,
		SupplySignature: sig,
	}, nil
}

// FinalizeAuthorities removes the requested authorities in one transaction:
// freeze first, then mint, then the metadata update authority. Authorities
// that are already gone are skipped. It returns a zero signature when there
// is nothing to do.
func (m *Manager) FinalizeAuthorities(ctx context.Context, mint solana.PublicKey, info *token2022.Mint, revoke Revocations) (solana.Signature, []string, error) {
	if m.treasury == nil {
		return solana.Signature{}, nil, errors.ErrTreasuryNotConfigured
	}
	treasury := m.treasury.PublicKey()

	var (
		instructions []solana.Instruction
		revoked      []string
	)
	held := func(what string, key *solana.PublicKey) (bool, error) {
		if key == nil {
			return false, nil
		}
		if !key.Equals(treasury) {
			return false, errors.Conflict(fmt.Sprintf("%s authority is not held by the service wallet", what))
		}
		return true, nil
	}

	if revoke.Freeze {
		ok, err := held("Freeze", info.FreezeAuthority)
		if err != nil {
			return solana.Signature{}, nil, err
		}
		if ok {
			instructions = append(instructions, token2022.SetAuthority(mint, treasury, token2022.AuthorityFreezeAccount, nil))
			revoked = append(revoked, "freeze")
		}
	}
	if revoke.Mint {
		ok, err := held("Mint", info.MintAuthority)
		if err != nil {
			return solana.Signature{}, nil, err
		}
		if ok {
			instructions = append(instructions, token2022.SetAuthority(mint, treasury, token2022.AuthorityMintTokens, nil))
			revoked = append(revoked, "mint")
		}
	}
	if revoke.Update && info.Metadata != nil {
		ok, err := held("Update", info.Metadata.UpdateAuthority)
		if err != nil {
			return solana.Signature{}, nil, err
		}
		if ok {
			instructions = append(instructions, token2022.UpdateMetadataAuthority(mint, treasury, nil))
			revoked = append(revoked, "update")
		}
	}

	if len(instructions) == 0 {
		return solana.Signature{}, nil, nil
	}

	sig, err := m.send(ctx, "authority", instructions)
	if err != nil {
		return solana.Signature{}, nil, err
	}

	m.metrics.IncrementCounter(ctx, metrics.MetricAuthoritiesRevoked, uint64(len(revoked)))
	m.GetLogger().Info("authorities revoked", "mint", mint, "revoked", revoked, "signature", sig)
	return sig, revoked, nil
}

func (m *Manager) send(ctx context.Context, what string, instructions []solana.Instruction) (solana.Signature, error) {
	blockhash, err := m.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, err
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(m.treasury.PublicKey()))
	if err != nil {
		return solana.Signature{}, errors.Internal(fmt.Sprintf("assemble %s transaction", what), err)
	}
	if _, err := tx.Sign(m.treasury.KeyGetter()); err != nil {
		return solana.Signature{}, errors.Internal(fmt.Sprintf("sign %s transaction", what), err)
	}

	return m.chain.SendAndConfirmTransaction(ctx, tx)
}

func parseKey(field, value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(strings.TrimSpace(value))
	if err != nil {
		return solana.PublicKey{}, errors.InvalidPublicKey(field, err)
	}
	return key, nil
}
