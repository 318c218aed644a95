package storage

import (
	"time"

	"github.com/google/uuid"
)

// Activity kinds.
const (
	ActivityLiquidity = "liquidity"
	ActivitySwap      = "swap"
)

// WalletModel is a wallet that has created at least one token.
type WalletModel struct {
	ID            string    `json:"id" bson:"_id" db:"id"`
	Address       string    `json:"wallet_address" bson:"wallet_address" db:"wallet_address"`
	ReferralCode  string    `json:"referral_code" bson:"referral_code" db:"referral_code"`
	ReferralBy    string    `json:"referral_by,omitempty" bson:"referral_by,omitempty" db:"referral_by"`
	TokensCreated int64     `json:"tokens_created" bson:"tokens_created" db:"tokens_created"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// TokenModel associates a created mint with its creator wallet.
type TokenModel struct {
	ID            string    `json:"id" bson:"_id" db:"id"`
	WalletID      string    `json:"wallet_id" bson:"wallet_id" db:"wallet_id"`
	WalletAddress string    `json:"wallet_address" bson:"wallet_address" db:"wallet_address"`
	Mint          string    `json:"mint_address" bson:"mint_address" db:"mint_address"`
	Name          string    `json:"name" bson:"name" db:"name"`
	Symbol        string    `json:"symbol" bson:"symbol" db:"symbol"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// ActivityModel is a liquidity or swap action reported by the client.
type ActivityModel struct {
	ID            string    `json:"id" bson:"_id" db:"id"`
	WalletAddress string    `json:"wallet_address" bson:"wallet_address" db:"wallet_address"`
	Kind          string    `json:"kind" bson:"kind" db:"kind"`
	Reference     string    `json:"reference" bson:"reference" db:"reference"`
	Signature     string    `json:"signature,omitempty" bson:"signature,omitempty" db:"signature"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// TokenStateModel tracks one mint through the creation lifecycle.
type TokenStateModel struct {
	Mint               string    `json:"mint" bson:"_id" db:"mint"`
	CreatorWallet      string    `json:"creator_wallet" bson:"creator_wallet" db:"creator_wallet"`
	State              string    `json:"state" bson:"state" db:"state"`
	Name               string    `json:"name" bson:"name" db:"name"`
	Symbol             string    `json:"symbol" bson:"symbol" db:"symbol"`
	Decimals           uint8     `json:"decimals" bson:"decimals" db:"decimals"`
	// Supply is the on-chain supply in base units once supply is issued.
	Supply             uint64    `json:"supply" bson:"supply" db:"supply"`
	RevokeMint         bool      `json:"revoke_mint" bson:"revoke_mint" db:"revoke_mint"`
	RevokeFreeze       bool      `json:"revoke_freeze" bson:"revoke_freeze" db:"revoke_freeze"`
	RevokeUpdate       bool      `json:"revoke_update" bson:"revoke_update" db:"revoke_update"`
	FeeLamports        uint64    `json:"fee_lamports" bson:"fee_lamports" db:"fee_lamports"`
	LastError          string    `json:"last_error,omitempty" bson:"last_error,omitempty" db:"last_error"`
	ErrorKind          string    `json:"error_kind,omitempty" bson:"error_kind,omitempty" db:"error_kind"`
	CreateSignature    string    `json:"create_signature,omitempty" bson:"create_signature,omitempty" db:"create_signature"`
	SupplySignature    string    `json:"supply_signature,omitempty" bson:"supply_signature,omitempty" db:"supply_signature"`
	AuthoritySignature string    `json:"authority_signature,omitempty" bson:"authority_signature,omitempty" db:"authority_signature"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// NewWalletModel creates a wallet record with no tokens yet.
func NewWalletModel(address, referralCode, referralBy string) *WalletModel {
	now := time.Now().UTC()
	return &WalletModel{
		ID:           uuid.NewString(),
		Address:      address,
		ReferralCode: referralCode,
		ReferralBy:   referralBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTokenModel creates a token association for wallet.
func NewTokenModel(wallet *WalletModel, mint, name, symbol string, at time.Time) *TokenModel {
	return &TokenModel{
		ID:            uuid.NewString(),
		WalletID:      wallet.ID,
		WalletAddress: wallet.Address,
		Mint:          mint,
		Name:          name,
		Symbol:        symbol,
		CreatedAt:     at.UTC(),
	}
}

// NewActivityModel creates an activity record.
func NewActivityModel(address, kind, reference, signature string) *ActivityModel {
	return &ActivityModel{
		ID:            uuid.NewString(),
		WalletAddress: address,
		Kind:          kind,
		Reference:     reference,
		Signature:     signature,
		CreatedAt:     time.Now().UTC(),
	}
}
