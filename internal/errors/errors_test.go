package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForgeErrorIsMatchesCode(t *testing.T) {
	err := ErrFeeMismatch.WithDetails(map[string]any{"quote": "0.25"})

	assert.True(t, Is(err, ErrFeeMismatch))
	assert.False(t, Is(err, ErrTreasuryMismatch))
	assert.Nil(t, ErrFeeMismatch.Details, "WithDetails must not mutate the sentinel")

	wrapped := fmt.Errorf("build: %w", err)
	assert.True(t, Is(wrapped, ErrFeeMismatch))
	assert.Equal(t, KindValidation, KindOf(wrapped))
}

func TestForgeErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("get balance", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "RPC_FAILED: failed to get balance: connection refused", err.Error())
	assert.Equal(t, KindUpstream, KindOf(err))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "Wallet not connected", MessageOf(ErrWalletNotConnected))
	assert.Equal(t, "Invalid mintPublicKey", MessageOf(InvalidPublicKey("mintPublicKey", errors.New("bad"))))
	assert.Equal(t, "Internal server error", MessageOf(StorageFailed("insert wallet", errors.New("dial tcp"))))
	assert.Equal(t, "Internal server error", MessageOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestConstructorsKinds(t *testing.T) {
	tests := []struct {
		err  *ForgeError
		kind Kind
		code string
	}{
		{Validation("x"), KindValidation, ErrCodeInvalidArgument},
		{SupplyOverflow(1, 19), KindValidation, ErrCodeSupplyOverflow},
		{Configuration("x"), KindConfiguration, ErrCodeConfiguration},
		{OnChain("send", nil), KindOnChain, ErrCodeTransactionFailed},
		{NotFound("token"), KindNotFound, ErrCodeNotFound},
		{Conflict("x"), KindConflict, ErrCodeConflict},
		{IllegalTransition("requested", "supply_issued"), KindConflict, ErrCodeIllegalStateTransition},
		{DecodeFailed("tx", nil), KindValidation, ErrCodeDecodeFailed},
		{UploadFailed("logo", nil), KindUpstream, ErrCodeUploadFailed},
		{Internal("sign", nil), KindInternal, ErrCodeInternal},
		{ErrUserRejected, KindUserRejected, ErrCodeUserRejected},
		{ErrInsufficientFunds, KindInsufficientFunds, ErrCodeInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.code, tt.err.Code)
		})
	}

	assert.Equal(t, "token not found", NotFound("token").Message)
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))
	assert.EqualError(t, Wrap(errors.New("x"), "context"), "context: x")
}
