// Package lifecycle tracks how far a token has progressed through creation.
//
//	requested -> mint_created -> minting -> supply_issued -> authorities_finalized
//	    |  \
//	    |   cancelled (the wallet declined to sign)
//	abandoned (the phase-one transaction never landed)
//
// minting is held by the one request sending the supply transaction; it
// returns to mint_created if that send fails. mint_created may skip straight
// to supply_issued when supply is already on chain. An abandoned token can
// still be promoted to mint_created if its transaction lands late.
// authorities_finalized and cancelled are terminal.
package lifecycle

import (
	"github.com/lugondev/swapforge/internal/errors"
)

// State is a token lifecycle state.
type State string

const (
	Requested            State = "requested"
	MintCreated          State = "mint_created"
	Minting              State = "minting"
	SupplyIssued         State = "supply_issued"
	AuthoritiesFinalized State = "authorities_finalized"
	Abandoned            State = "abandoned"
	Cancelled            State = "cancelled"
)

var transitions = map[State][]State{
	Requested:    {Requested, MintCreated, Abandoned, Cancelled},
	MintCreated:  {Minting, SupplyIssued},
	Minting:      {SupplyIssued, MintCreated},
	SupplyIssued: {AuthoritiesFinalized},
	Abandoned:    {MintCreated},
}

// States lists every state in lifecycle order.
var States = []State{Requested, MintCreated, Minting, SupplyIssued, AuthoritiesFinalized, Abandoned, Cancelled}

// Parse converts a stored value into a State.
func Parse(s string) (State, error) {
	st := State(s)
	if !st.Valid() {
		return "", errors.Validation("unknown token state " + s)
	}
	return st, nil
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	for _, st := range States {
		if s == st {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s State) String() string {
	return string(s)
}

// CanTransition reports whether moving from one state to another is allowed.
// Requested -> Requested covers a client rebuilding an expired transaction.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates a move and returns the new state.
func Transition(from, to State) (State, error) {
	if !CanTransition(from, to) {
		return from, errors.IllegalTransition(string(from), string(to))
	}
	return to, nil
}
