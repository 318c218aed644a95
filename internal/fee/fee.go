// Package fee computes the service fee charged for creating a token.
//
// The fee is a base amount plus a fixed surcharge for each authority the
// creator asks to revoke, expressed in SOL and rounded to 6 decimal places.
package fee

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/lugondev/swapforge/internal/config"
)

// Places is the precision fees are rounded to.
const Places = 6

var (
	lamportsPerSOL = decimal.NewFromInt(1_000_000_000)
	maxLamports    = new(big.Int).SetUint64(math.MaxUint64)
)

// Options are the billable choices of a token request.
type Options struct {
	RevokeMint   bool
	RevokeFreeze bool
	RevokeUpdate bool
}

// Schedule holds the configured fee amounts in SOL.
type Schedule struct {
	Base         decimal.Decimal
	RevokeMint   decimal.Decimal
	RevokeFreeze decimal.Decimal
	RevokeUpdate decimal.Decimal
}

// NewSchedule parses the configured fee amounts.
func NewSchedule(cfg config.FeeConfig) (*Schedule, error) {
	parse := func(name, value string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid fee %s %q: %w", name, value, err)
		}
		if d.IsNegative() {
			return decimal.Zero, fmt.Errorf("fee %s must not be negative", name)
		}
		return d, nil
	}

	var (
		s   Schedule
		err error
	)
	if s.Base, err = parse("base", cfg.Base); err != nil {
		return nil, err
	}
	if s.RevokeMint, err = parse("revoke_mint", cfg.RevokeMint); err != nil {
		return nil, err
	}
	if s.RevokeFreeze, err = parse("revoke_freeze", cfg.RevokeFreeze); err != nil {
		return nil, err
	}
	if s.RevokeUpdate, err = parse("revoke_update", cfg.RevokeUpdate); err != nil {
		return nil, err
	}
	if _, err := ToLamports(s.Quote(allOptions[len(allOptions)-1])); err != nil {
		return nil, fmt.Errorf("fee schedule: %w", err)
	}
	return &s, nil
}

// Quote returns the fee in SOL for the given options.
func (s *Schedule) Quote(o Options) decimal.Decimal {
	total := s.Base
	if o.RevokeMint {
		total = total.Add(s.RevokeMint)
	}
	if o.RevokeFreeze {
		total = total.Add(s.RevokeFreeze)
	}
	if o.RevokeUpdate {
		total = total.Add(s.RevokeUpdate)
	}
	return total.Round(Places)
}

// QuoteLamports returns the fee in lamports for the given options.
func (s *Schedule) QuoteLamports(o Options) uint64 {
	// NewSchedule checked that the largest quote fits.
	lamports, _ := ToLamports(s.Quote(o))
	return lamports
}

// Charge returns the lamports actually transferred for o. Outside production
// nothing is charged.
func (s *Schedule) Charge(o Options, production bool) uint64 {
	if !production {
		return 0
	}
	return s.QuoteLamports(o)
}

// Matches reports whether a client-sent fee equals the quote for o.
func (s *Schedule) Matches(o Options, clientFee decimal.Decimal) bool {
	return clientFee.Round(Places).Equal(s.Quote(o))
}

// Recognize returns the options whose quote equals fee. Combinations with
// fewer revocations win when several quotes coincide.
func (s *Schedule) Recognize(fee decimal.Decimal) (Options, bool) {
	fee = fee.Round(Places)
	for _, o := range allOptions {
		if s.Quote(o).Equal(fee) {
			return o, true
		}
	}
	return Options{}, false
}

// allOptions lists every combination ordered by number of revocations.
var allOptions = []Options{
	{},
	{RevokeMint: true},
	{RevokeFreeze: true},
	{RevokeUpdate: true},
	{RevokeMint: true, RevokeFreeze: true},
	{RevokeMint: true, RevokeUpdate: true},
	{RevokeFreeze: true, RevokeUpdate: true},
	{RevokeMint: true, RevokeFreeze: true, RevokeUpdate: true},
}

// ToLamports converts SOL to lamports, truncating below one lamport. Negative
// amounts and amounts beyond the uint64 lamport range are errors.
func ToLamports(sol decimal.Decimal) (uint64, error) {
	if sol.IsNegative() {
		return 0, fmt.Errorf("amount %s SOL is negative", sol)
	}
	lamports := sol.Mul(lamportsPerSOL).Truncate(0).BigInt()
	if lamports.Cmp(maxLamports) > 0 {
		return 0, fmt.Errorf("amount %s SOL exceeds the lamport range", sol)
	}
	return lamports.Uint64(), nil
}

// FromLamports converts lamports to SOL.
func FromLamports(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0).Div(lamportsPerSOL)
}
