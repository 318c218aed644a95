package solana

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Wallet represents a Solana keypair held by the service
type Wallet struct {
	privateKey solana.PrivateKey
}

// NewWallet generates a new random wallet
func NewWallet() *Wallet {
	account := solana.NewWallet()
	return &Wallet{
		privateKey: account.PrivateKey,
	}
}

// WalletFromPrivateKey creates a wallet from an existing private key
func WalletFromPrivateKey(pk solana.PrivateKey) *Wallet {
	return &Wallet{
		privateKey: pk,
	}
}

// WalletFromBase58 creates a wallet from a base58-encoded private key
func WalletFromBase58(key string) (*Wallet, error) {
	pk, err := solana.PrivateKeyFromBase58(strings.TrimSpace(key))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if len(pk) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size: expected %d, got %d", ed25519.PrivateKeySize, len(pk))
	}
	return &Wallet{privateKey: pk}, nil
}

// WalletFromKeypairJSON parses a Solana CLI keypair: a JSON array of 64 integers.
func WalletFromKeypairJSON(data []byte) (*Wallet, error) {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("failed to parse keypair: %w", err)
	}

	if len(ints) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid keypair size: expected %d, got %d", ed25519.PrivateKeySize, len(ints))
	}

	keypair := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("invalid keypair byte at %d: %d", i, v)
		}
		keypair[i] = byte(v)
	}

	return &Wallet{
		privateKey: solana.PrivateKey(keypair),
	}, nil
}

// WalletFromFile loads a wallet from a JSON keypair file (Solana CLI format)
func WalletFromFile(path string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair file: %w", err)
	}
	return WalletFromKeypairJSON(data)
}

// PublicKey returns the wallet's public key
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.privateKey.PublicKey()
}

// PrivateKey returns the wallet's private key
func (w *Wallet) PrivateKey() solana.PrivateKey {
	return w.privateKey
}

// Sign signs a message with the wallet's private key
func (w *Wallet) Sign(message []byte) (solana.Signature, error) {
	sig, err := w.privateKey.Sign(message)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign message: %w", err)
	}
	return sig, nil
}

// KeyGetter returns a signer lookup for solana.Transaction.Sign that only knows this wallet.
func (w *Wallet) KeyGetter() func(solana.PublicKey) *solana.PrivateKey {
	pub := w.PublicKey()
	return func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			pk := w.privateKey
			return &pk
		}
		return nil
	}
}

// PartialSign fills this wallet's signature slot in tx and leaves every other
// required signature zeroed for the other signers.
func (w *Wallet) PartialSign(tx *solana.Transaction) error {
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) != required {
		sigs := make([]solana.Signature, required)
		copy(sigs, tx.Signatures)
		tx.Signatures = sigs
	}

	pub := w.PublicKey()
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if !tx.Message.AccountKeys[i].Equals(pub) {
			continue
		}
		sig, err := w.Sign(message)
		if err != nil {
			return err
		}
		tx.Signatures[i] = sig
		return nil
	}

	return fmt.Errorf("wallet %s is not a required signer", pub)
}

// SaveToFile saves the keypair to a JSON file (Solana CLI format)
func (w *Wallet) SaveToFile(path string) error {
	ints := make([]int, len(w.privateKey))
	for i, b := range w.privateKey {
		ints[i] = int(b)
	}

	data, err := json.Marshal(ints)
	if err != nil {
		return fmt.Errorf("failed to marshal keypair: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write keypair file: %w", err)
	}

	return nil
}

// String returns the public key as a string
func (w *Wallet) String() string {
	return w.PublicKey().String()
}
