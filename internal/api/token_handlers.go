package api

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lugondev/swapforge/internal/errors"
	"github.com/lugondev/swapforge/internal/fee"
	"github.com/lugondev/swapforge/internal/metadata"
	"github.com/lugondev/swapforge/internal/supply"
	"github.com/lugondev/swapforge/internal/tokenflow"
	"github.com/lugondev/swapforge/internal/txbuilder"
)

// metadataFields are the off-chain metadata inputs shared by the create and
// metadata endpoints.
type metadataFields struct {
	TokenName        string            `json:"tokenName"`
	TokenSymbol      string            `json:"tokenSymbol"`
	TokenDescription string            `json:"tokenDescription"`
	TokenLogo        string            `json:"tokenLogo"`
	Image            string            `json:"image"`
	Tags             []string          `json:"tags"`
	Extensions       map[string]string `json:"extensions"`
}

func (m metadataFields) metadata() metadata.Metadata {
	return metadata.Metadata{
		Name:        m.TokenName,
		Symbol:      m.TokenSymbol,
		Description: m.TokenDescription,
		Image:       m.Image,
		Tags:        m.Tags,
		Extensions:  m.Extensions,
	}
}

type createTokenRequest struct {
	metadataFields
	TokenDecimals      flexUint            `json:"tokenDecimals"`
	MetadataURI        string              `json:"metadataUri"`
	RevokeMint         bool                `json:"revokeMint"`
	RevokeFreeze       bool                `json:"revokeFreeze"`
	Immutable          bool                `json:"immutable"`
	TokenFee           decimal.NullDecimal `json:"tokenFee"`
	SwapForgePublicKey string              `json:"swapForgePublicKey"`
	WalletPublicKey    string              `json:"walletPublicKey"`
	MintPublicKey      string              `json:"mintPublicKey"`
}

type createTokenResponse struct {
	SerializedTransaction string          `json:"serializedTransaction"`
	FeeLamports           uint64          `json:"feeLamports"`
	Fee                   decimal.Decimal `json:"fee"`
	Mint                  string          `json:"mint"`
	MetadataURI           string          `json:"metadataUri"`
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req createTokenRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireWallet(req.WalletPublicKey); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.TokenDecimals > 255 {
		s.writeError(w, r, errors.Validation("Token decimals must be between 0 and 255"))
		return
	}

	uri := strings.TrimSpace(req.MetadataURI)
	if uri == "" && (req.TokenLogo != "" || req.TokenDescription != "") {
		var err error
		if uri, err = s.uploadMetadata(r, req.metadataFields); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	res, err := s.deps.Tokens.PrepareCreate(r.Context(), txbuilder.CreateTokenRequest{
		WalletPublicKey:    req.WalletPublicKey,
		MintPublicKey:      req.MintPublicKey,
		SwapForgePublicKey: req.SwapForgePublicKey,
		Name:               req.TokenName,
		Symbol:             req.TokenSymbol,
		Decimals:           uint8(req.TokenDecimals),
		MetadataURI:        uri,
		RevokeMint:         req.RevokeMint,
		RevokeFreeze:       req.RevokeFreeze,
		RevokeUpdate:       req.Immutable,
		TokenFee:           req.TokenFee,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, createTokenResponse{
		SerializedTransaction: res.Serialized,
		FeeLamports:           res.FeeLamports,
		Fee:                   res.Fee,
		Mint:                  res.Mint.String(),
		MetadataURI:           uri,
	})
}

type addSupplyRequest struct {
	TokenSupply     flexUint `json:"tokenSupply"`
	RevokeMint      bool     `json:"revokeMint"`
	RevokeFreeze    bool     `json:"revokeFreeze"`
	Immutable       bool     `json:"immutable"`
	WalletPublicKey string   `json:"walletPublicKey"`
	MintPublicKey   string   `json:"mintPublicKey"`
	ReferralCode    string   `json:"referralCode"`
}

type addSupplyResponse struct {
	Message            string   `json:"message"`
	State              string   `json:"state"`
	Mint               string   `json:"mint"`
	TokenAccount       string   `json:"tokenAccount,omitempty"`
	Amount             uint64   `json:"amount,string"`
	SupplySignature    string   `json:"supplySignature,omitempty"`
	AuthoritySignature string   `json:"authoritySignature,omitempty"`
	Revoked            []string `json:"revoked"`
	Resumed            bool     `json:"resumed"`
}

func (s *Server) handleAddSupply(w http.ResponseWriter, r *http.Request) {
	var req addSupplyRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireWallet(req.WalletPublicKey); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Tokens.AddSupply(r.Context(), tokenflow.AddSupplyRequest{
		WalletPublicKey: req.WalletPublicKey,
		MintPublicKey:   req.MintPublicKey,
		Supply:          uint64(req.TokenSupply),
		Revoke: supply.Revocations{
			Mint:   req.RevokeMint,
			Freeze: req.RevokeFreeze,
			Update: req.Immutable,
		},
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := addSupplyResponse{
		Message:            "Token supply added and authorities updated",
		State:              string(res.State),
		Mint:               res.Mint.String(),
		Amount:             res.Amount,
		SupplySignature:    signatureString(res.SupplySignature),
		AuthoritySignature: signatureString(res.AuthoritySignature),
		Revoked:            res.Revoked,
		Resumed:            res.Resumed,
	}
	if !res.TokenAccount.IsZero() {
		resp.TokenAccount = res.TokenAccount.String()
	}
	if resp.Revoked == nil {
		resp.Revoked = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type paymentRequest struct {
	TokenFee        decimal.NullDecimal `json:"tokenFee"`
	WalletPublicKey string              `json:"walletPublicKey"`
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireWallet(req.WalletPublicKey); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Payments.BuildPayment(r.Context(), txbuilder.PaymentRequest{
		WalletPublicKey: req.WalletPublicKey,
		TokenFee:        req.TokenFee,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"serializedTransaction": res.Serialized,
		"feeLamports":           res.FeeLamports,
	})
}

func (s *Server) handleCreateMetadata(w http.ResponseWriter, r *http.Request) {
	var req metadataFields
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	uri, err := s.uploadMetadata(r, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"uri": uri})
}

func (s *Server) uploadMetadata(r *http.Request, fields metadataFields) (string, error) {
	if s.deps.Metadata == nil {
		return "", errors.Configuration("Metadata uploads are not configured")
	}
	var (
		logo        []byte
		contentType string
	)
	if fields.TokenLogo != "" {
		var err error
		if logo, contentType, err = metadata.DecodeImage(fields.TokenLogo); err != nil {
			return "", err
		}
	}
	return s.deps.Metadata.Upload(r.Context(), logo, contentType, fields.metadata())
}

type resizeRequest struct {
	TokenLogoBase64 string `json:"tokenLogoBase64"`
}

func (s *Server) handleResizeImage(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	data, _, err := metadata.DecodeImage(req.TokenLogoBase64)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resized, err := metadata.Resize(data, s.deps.LogoMaxSide, s.deps.LogoSourceMaxSide)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"resizedTokenLogoBase64": base64.StdEncoding.EncodeToString(resized),
	})
}

func (s *Server) handleFee(w http.ResponseWriter, r *http.Request) {
	var (
		o   fee.Options
		err error
	)
	if o.RevokeMint, err = queryBool(r, "revokeMint"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if o.RevokeFreeze, err = queryBool(r, "revokeFreeze"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if o.RevokeUpdate, err = queryBool(r, "immutable"); err != nil {
		s.writeError(w, r, err)
		return
	}

	quote, lamports := s.deps.Payments.Quote(o)
	writeJSON(w, http.StatusOK, map[string]any{
		"tokenFee":    quote,
		"feeLamports": lamports,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Tokens.Status(r.Context(), chi.URLParam(r, "mint"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type cancelRequest struct {
	WalletPublicKey string `json:"walletPublicKey"`
	MintPublicKey   string `json:"mintPublicKey"`
	Reason          string `json:"reason"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireWallet(req.WalletPublicKey); err != nil {
		s.writeError(w, r, err)
		return
	}

	st, err := s.deps.Tokens.Cancel(r.Context(), req.WalletPublicKey, req.MintPublicKey, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"mint":      st.Mint,
		"state":     st.State,
		"lastError": st.LastError,
	})
}

func requireWallet(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.ErrWalletNotConnected
	}
	return nil
}

func signatureString(sig solana.Signature) string {
	if sig.IsZero() {
		return ""
	}
	return sig.String()
}
