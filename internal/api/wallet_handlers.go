package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lugondev/swapforge/internal/storage"
	"github.com/lugondev/swapforge/internal/txbuilder"
	"github.com/lugondev/swapforge/internal/walletrecord"
)

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := s.deps.Wallets.FindWalletByAddress(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

type walletTokenUpdateRequest struct {
	WalletPublicKey string `json:"walletPublicKey"`
	MintPublicKey   string `json:"mintPublicKey"`
	ReferralCode    string `json:"referralCode"`
	TokenName       string `json:"tokenName"`
	TokenSymbol     string `json:"tokenSymbol"`
}

func (s *Server) handleWalletTokenUpdate(w http.ResponseWriter, r *http.Request) {
	var req walletTokenUpdateRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireWallet(req.WalletPublicKey); err != nil {
		s.writeError(w, r, err)
		return
	}
	wallet, err := txbuilder.ParsePublicKey("walletPublicKey", req.WalletPublicKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	mint, err := txbuilder.ParsePublicKey("mintPublicKey", req.MintPublicKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	record, err := s.deps.Wallets.RecordTokenCreated(r.Context(), walletrecord.TokenCreated{
		WalletAddress: wallet.String(),
		Mint:          mint.String(),
		Name:          strings.TrimSpace(req.TokenName),
		Symbol:        strings.TrimSpace(req.TokenSymbol),
		ReferralBy:    strings.TrimSpace(req.ReferralCode),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type activityRequest struct {
	WalletPublicKey string `json:"walletPublicKey"`
	Kind            string `json:"kind"`
	Reference       string `json:"reference"`
	Signature       string `json:"signature"`
}

func (s *Server) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireWallet(req.WalletPublicKey); err != nil {
		s.writeError(w, r, err)
		return
	}
	wallet, err := txbuilder.ParsePublicKey("walletPublicKey", req.WalletPublicKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	activity, err := s.deps.Wallets.RecordActivity(r.Context(), wallet.String(),
		strings.TrimSpace(req.Kind), strings.TrimSpace(req.Reference), strings.TrimSpace(req.Signature))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tokens, err := s.deps.Wallets.ListTokens(r.Context(), chi.URLParam(r, "address"), limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if tokens == nil {
		tokens = []*storage.TokenModel{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kind := strings.TrimSpace(r.URL.Query().Get("kind"))
	activity, err := s.deps.Wallets.ListActivity(r.Context(), chi.URLParam(r, "address"), kind, limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if activity == nil {
		activity = []*storage.ActivityModel{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": activity})
}

func pageParams(r *http.Request) (int, int, error) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return 0, 0, err
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}
