package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/swapforge/internal/errors"
)

func TestTransitions(t *testing.T) {
	allowed := []struct{ from, to State }{
		{Requested, Requested},
		{Requested, MintCreated},
		{Requested, Abandoned},
		{Requested, Cancelled},
		{Abandoned, MintCreated},
		{MintCreated, Minting},
		{MintCreated, SupplyIssued},
		{Minting, SupplyIssued},
		{Minting, MintCreated},
		{SupplyIssued, AuthoritiesFinalized},
	}
	for _, tt := range allowed {
		got, err := Transition(tt.from, tt.to)
		require.NoError(t, err, "%s -> %s", tt.from, tt.to)
		assert.Equal(t, tt.to, got)
	}

	illegal := []struct{ from, to State }{
		{Requested, SupplyIssued},
		{MintCreated, AuthoritiesFinalized},
		{MintCreated, Requested},
		{SupplyIssued, MintCreated},
		{AuthoritiesFinalized, SupplyIssued},
		{Cancelled, MintCreated},
		{Abandoned, SupplyIssued},
		{Minting, Minting},
		{Minting, AuthoritiesFinalized},
		{SupplyIssued, Minting},
	}
	for _, tt := range illegal {
		got, err := Transition(tt.from, tt.to)
		require.Error(t, err, "%s -> %s", tt.from, tt.to)
		assert.Equal(t, tt.from, got)
		assert.Equal(t, errors.KindConflict, errors.KindOf(err))
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, AuthoritiesFinalized.Terminal())
	assert.True(t, Cancelled.Terminal())
	assert.False(t, Abandoned.Terminal())
	assert.False(t, Minting.Terminal())
	assert.False(t, Requested.Terminal())
}

func TestParse(t *testing.T) {
	for _, st := range States {
		got, err := Parse(string(st))
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}

	_, err := Parse("minted")
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
}
