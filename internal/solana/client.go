package solana

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	confirm "github.com/gagliardetto/solana-go/rpc/sendAndConfirmTransaction"
	"github.com/gagliardetto/solana-go/rpc/ws"

	"github.com/lugondev/swapforge/internal/errors"
)

// JSON-RPC error codes returned by the cluster when a transaction is rejected
// before it lands.
const (
	rpcCodeSendTransactionPreflightFailure = -32002
	rpcCodeSignatureVerificationFailure    = -32003
	rpcCodeBlockhashNotFound               = -32008
	rpcCodeTransactionPrecompileFailure    = -32013
)

// ErrAccountNotFound is returned by GetAccount for an address that holds no account.
var ErrAccountNotFound = errors.NewError(errors.KindNotFound, "ACCOUNT_NOT_FOUND", "Account not found")

// Account is the subset of account state the services read.
type Account struct {
	Owner      solana.PublicKey
	Lamports   uint64
	Data       []byte
	Executable bool
}

// Client wraps the Solana RPC client
type Client struct {
	rpc        *rpc.Client
	wsEndpoint string
	commitment rpc.CommitmentType
	timeout    time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithWSEndpoint sets the websocket endpoint used for confirmations.
func WithWSEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.wsEndpoint = endpoint
	}
}

// WithCommitment sets the commitment level for reads and confirmations.
func WithCommitment(commitment string) ClientOption {
	return func(c *Client) {
		if commitment != "" {
			c.commitment = rpc.CommitmentType(commitment)
		}
	}
}

// WithTimeout bounds every RPC call made through the client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient creates a new Solana client
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		rpc:        rpc.New(endpoint),
		commitment: rpc.CommitmentConfirmed,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// GetBalance returns the balance of an account in lamports
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	result, err := c.rpc.GetBalance(ctx, pubkey, c.commitment)
	if err != nil {
		return 0, classify("get balance", err)
	}
	return result.Value, nil
}

// GetLatestBlockhash returns the latest finalized blockhash
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	result, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, classify("get latest blockhash", err)
	}
	return result.Value.Blockhash, nil
}

// GetMinimumBalanceForRentExemption returns the lamports an account of size bytes needs
// to be rent exempt.
func (c *Client) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	lamports, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, size, c.commitment)
	if err != nil {
		return 0, classify("get rent exemption", err)
	}
	return lamports, nil
}

// GetAccount returns the account stored at pubkey, or ErrAccountNotFound.
func (c *Client) GetAccount(ctx context.Context, pubkey solana.PublicKey) (*Account, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	result, err := c.rpc.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.commitment,
	})
	if err != nil {
		if stderrors.Is(err, rpc.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, classify("get account info", err)
	}
	if result == nil || result.Value == nil {
		return nil, ErrAccountNotFound
	}

	acc := result.Value
	var data []byte
	if acc.Data != nil {
		data = acc.Data.GetBinary()
	}
	return &Account{
		Owner:      acc.Owner,
		Lamports:   acc.Lamports,
		Data:       data,
		Executable: acc.Executable,
	}, nil
}

// RequestAirdrop requests an airdrop of SOL (only works on devnet/testnet)
func (c *Client) RequestAirdrop(ctx context.Context, pubkey solana.PublicKey, lamports uint64) (solana.Signature, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	sig, err := c.rpc.RequestAirdrop(ctx, pubkey, lamports, c.commitment)
	if err != nil {
		return solana.Signature{}, classify("request airdrop", err)
	}
	return sig, nil
}

// SendAndConfirmTransaction sends a signed transaction and waits for the
// cluster to confirm it over the websocket endpoint.
func (c *Client) SendAndConfirmTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if c.wsEndpoint == "" {
		return solana.Signature{}, errors.Configuration("solana websocket endpoint not configured")
	}

	wsClient, err := ws.Connect(ctx, c.wsEndpoint)
	if err != nil {
		return solana.Signature{}, errors.Upstream("connect to solana websocket", err)
	}
	defer wsClient.Close()

	sig, err := confirm.SendAndConfirmTransaction(ctx, c.rpc, wsClient, tx)
	if err != nil {
		if isRPCError(err) || stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
			return sig, classify("send transaction", err)
		}
		// the transaction landed and its execution failed
		return sig, errors.OnChain("confirm transaction", err).
			WithDetails(map[string]any{"signature": sig.String()})
	}
	return sig, nil
}

// Close closes the client connection
func (c *Client) Close() error {
	return c.rpc.Close()
}

func isRPCError(err error) bool {
	var rpcErr *jsonrpc.RPCError
	return stderrors.As(err, &rpcErr)
}

// classify maps an RPC failure to an error kind. Preflight and simulation
// rejections are on-chain failures; everything else is an upstream failure.
func classify(op string, err error) error {
	var rpcErr *jsonrpc.RPCError
	if stderrors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case rpcCodeSendTransactionPreflightFailure,
			rpcCodeSignatureVerificationFailure,
			rpcCodeTransactionPrecompileFailure:
			return errors.OnChain(op, err).WithDetails(map[string]any{"rpc_code": rpcErr.Code})
		case rpcCodeBlockhashNotFound:
			return errors.Upstream(op, err).WithDetails(map[string]any{"rpc_code": rpcErr.Code})
		}
	}
	return errors.Upstream(op, err)
}
