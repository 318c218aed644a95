// Package storagetest holds a behaviour suite every storage.Repository
// backend must pass.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/swapforge/internal/storage"
)

// Run exercises repo. Keys are random so the suite can run against a
// database that already holds data.
func Run(t *testing.T, repo storage.Repository) {
	t.Helper()

	t.Run("wallets", func(t *testing.T) { testWallets(t, repo) })
	t.Run("tokens", func(t *testing.T) { testTokens(t, repo) })
	t.Run("activities", func(t *testing.T) { testActivities(t, repo) })
	t.Run("token states", func(t *testing.T) { testTokenStates(t, repo) })
}

func unique(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func testWallets(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	address := unique("wallet")
	code := unique("code")

	found, err := repo.Wallets().FindByAddress(ctx, address)
	require.NoError(t, err)
	assert.Nil(t, found)

	w := storage.NewWalletModel(address, code, "referrer")
	require.NoError(t, repo.Wallets().Insert(ctx, w))
	assert.ErrorIs(t, repo.Wallets().Insert(ctx, storage.NewWalletModel(address, unique("code"), "")), storage.ErrDuplicateKey)
	assert.ErrorIs(t, repo.Wallets().Insert(ctx, storage.NewWalletModel(unique("wallet"), code, "")), storage.ErrDuplicateKey)

	updated, err := repo.Wallets().IncrementTokensCreated(ctx, address, time.Now())
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, int64(1), updated.TokensCreated)

	byCode, err := repo.Wallets().FindByReferralCode(ctx, code)
	require.NoError(t, err)
	require.NotNil(t, byCode)
	assert.Equal(t, w.ID, byCode.ID)
	assert.Equal(t, "referrer", byCode.ReferralBy)
	assert.Equal(t, int64(1), byCode.TokensCreated)

	missing, err := repo.Wallets().IncrementTokensCreated(ctx, unique("wallet"), time.Now())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testTokens(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	w := storage.NewWalletModel(unique("wallet"), unique("code"), "")
	require.NoError(t, repo.Wallets().Insert(ctx, w))

	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)
	mints := []string{unique("mint"), unique("mint"), unique("mint")}
	for i, mint := range mints {
		require.NoError(t, repo.Tokens().Insert(ctx, storage.NewTokenModel(w, mint, "Name", "SYM", base.Add(time.Duration(i)*time.Minute))))
	}
	assert.ErrorIs(t, repo.Tokens().Insert(ctx, storage.NewTokenModel(w, mints[0], "N", "S", base)), storage.ErrDuplicateKey)

	page, err := repo.Tokens().FindByWallet(ctx, w.Address, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, mints[2], page[0].Mint)
	assert.Equal(t, mints[1], page[1].Mint)

	rest, err := repo.Tokens().FindByWallet(ctx, w.Address, 0, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, mints[0], rest[0].Mint)

	tok, err := repo.Tokens().FindByMint(ctx, mints[1])
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, w.ID, tok.WalletID)
}

func testActivities(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	address := unique("wallet")

	require.NoError(t, repo.Activities().Insert(ctx, storage.NewActivityModel(address, storage.ActivitySwap, "pool1", "sig1")))
	require.NoError(t, repo.Activities().Insert(ctx, storage.NewActivityModel(address, storage.ActivityLiquidity, "pool2", "")))

	all, err := repo.Activities().FindByWallet(ctx, address, "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	swaps, err := repo.Activities().FindByWallet(ctx, address, storage.ActivitySwap, 10, 0)
	require.NoError(t, err)
	require.Len(t, swaps, 1)
	assert.Equal(t, "pool1", swaps[0].Reference)
	assert.Equal(t, "sig1", swaps[0].Signature)
}

func testTokenStates(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	old := time.Now().Add(-24 * time.Hour).UTC().Truncate(time.Millisecond)
	mint := unique("mint")

	st := &storage.TokenStateModel{
		Mint:          mint,
		CreatorWallet: unique("wallet"),
		State:         "requested",
		Name:          "Name",
		Symbol:        "SYM",
		Decimals:      6,
		RevokeMint:    true,
		FeeLamports:   150_000_000,
		CreatedAt:     old,
		UpdatedAt:     old,
	}
	require.NoError(t, repo.TokenStates().Create(ctx, st))
	assert.ErrorIs(t, repo.TokenStates().Create(ctx, st), storage.ErrDuplicateKey)

	stale, err := repo.TokenStates().FindStale(ctx, "requested", old.Add(time.Second), 0)
	require.NoError(t, err)
	assert.True(t, containsMint(stale, mint))

	next := *st
	next.State = "mint_created"
	next.Supply = 1_000
	next.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.TokenStates().Update(ctx, &next, "requested"))
	assert.ErrorIs(t, repo.TokenStates().Update(ctx, &next, "requested"), storage.ErrStaleState)

	got, err := repo.TokenStates().FindByMint(ctx, mint)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "mint_created", got.State)
	assert.Equal(t, uint8(6), got.Decimals)
	assert.Equal(t, uint64(1_000), got.Supply)
	assert.Equal(t, uint64(150_000_000), got.FeeLamports)
	assert.True(t, got.RevokeMint)

	stale, err = repo.TokenStates().FindStale(ctx, "requested", old.Add(time.Second), 0)
	require.NoError(t, err)
	assert.False(t, containsMint(stale, mint))

	missing, err := repo.TokenStates().FindByMint(ctx, unique("mint"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func containsMint(states []*storage.TokenStateModel, mint string) bool {
	for _, s := range states {
		if s.Mint == mint {
			return true
		}
	}
	return false
}
