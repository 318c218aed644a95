package solana

import (
	"bytes"
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/swapforge/internal/config"
	"github.com/lugondev/swapforge/internal/errors"
)

// SecretSource reads a secret payload by resource name.
type SecretSource interface {
	Secret(ctx context.Context, name string) ([]byte, error)
}

// SecretManagerSource reads secrets from GCP Secret Manager.
type SecretManagerSource struct {
	client *secretmanager.Client
}

// NewSecretManagerSource creates a Secret Manager client using application
// default credentials.
func NewSecretManagerSource(ctx context.Context) (*SecretManagerSource, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}
	return &SecretManagerSource{client: client}, nil
}

// Secret returns the payload of the named secret version.
func (s *SecretManagerSource) Secret(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return nil, fmt.Errorf("failed to access secret %s: %w", name, err)
	}
	if resp == nil || resp.Payload == nil {
		return nil, fmt.Errorf("secret %s has no payload", name)
	}
	return resp.Payload.Data, nil
}

// Close releases the underlying client.
func (s *SecretManagerSource) Close() error {
	return s.client.Close()
}

// LoadTreasury loads the treasury keypair from the first configured source.
// It returns errors.ErrTreasuryNotConfigured when none is configured.
func LoadTreasury(ctx context.Context, cfg config.TreasuryConfig) (*Wallet, error) {
	var src SecretSource
	if cfg.SecretKey == "" && cfg.KeypairFile == "" && cfg.SecretManager.Enabled() {
		sm, err := NewSecretManagerSource(ctx)
		if err != nil {
			return nil, errors.Configuration("cannot reach secret manager").WithCause(err)
		}
		defer sm.Close()
		src = sm
	}
	return LoadTreasuryFrom(ctx, cfg, src)
}

// LoadTreasuryFrom is LoadTreasury with an explicit secret source.
func LoadTreasuryFrom(ctx context.Context, cfg config.TreasuryConfig, src SecretSource) (*Wallet, error) {
	var (
		wallet *Wallet
		err    error
	)

	switch {
	case cfg.SecretKey != "":
		wallet, err = WalletFromBase58(cfg.SecretKey)
	case cfg.KeypairFile != "":
		wallet, err = WalletFromFile(cfg.KeypairFile)
	case cfg.SecretManager.Enabled() && src != nil:
		var payload []byte
		payload, err = src.Secret(ctx, cfg.SecretManager.ResourceName())
		if err == nil {
			wallet, err = ParseKeypair(payload)
		}
	default:
		return nil, errors.ErrTreasuryNotConfigured
	}
	if err != nil {
		return nil, errors.Configuration("invalid treasury keypair").WithCause(err)
	}

	if cfg.PublicKey != "" {
		expected, perr := solana.PublicKeyFromBase58(cfg.PublicKey)
		if perr != nil {
			return nil, errors.Configuration("invalid treasury public key").WithCause(perr)
		}
		if !expected.Equals(wallet.PublicKey()) {
			return nil, errors.Configuration(fmt.Sprintf("treasury keypair is %s, configured public key is %s",
				wallet.PublicKey(), expected))
		}
	}

	return wallet, nil
}

// ParseKeypair accepts either a Solana CLI JSON keypair or a base58 private key.
func ParseKeypair(payload []byte) (*Wallet, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty keypair")
	}
	if payload[0] == '[' {
		return WalletFromKeypairJSON(payload)
	}
	return WalletFromBase58(string(payload))
}
