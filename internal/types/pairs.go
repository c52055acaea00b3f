/*

Core identities for the treasury: tokens, trading pairs, and the per-pair
rating produced by the rating engine.

*/

package types

import (
	"github.com/holiman/uint256"
)

type PairID uint64

// NoPair marks the "no active pair" state.
const NoPair PairID = 0

type Token struct {
	Symbol    string `json:"symbol"`     // e.g. "ATOM"
	Denom     string `json:"denom"`      // venue-level identifier
	Precision int    `json:"precision"`  // decimal places of the base unit
}

// Pair is one candidate trading pair on the liquidity venue. The candidate
// set is fixed at construction and never mutated afterwards.
type Pair struct {
	ID     PairID `json:"id"`
	Token0 Token  `json:"token0"`
	Token1 Token  `json:"token1"`
}

// Tokens returns both legs in venue order.
func (p Pair) Tokens() (Token, Token) {
	return p.Token0, p.Token1
}

// Contains reports whether denom is one of the pair's legs.
func (p Pair) Contains(denom string) bool {
	return p.Token0.Denom == denom || p.Token1.Denom == denom
}

// CounterOf returns the opposite leg of denom. The second return is false
// when denom is not part of the pair.
func (p Pair) CounterOf(denom string) (Token, bool) {
	switch denom {
	case p.Token0.Denom:
		return p.Token1, true
	case p.Token1.Denom:
		return p.Token0, true
	}
	return Token{}, false
}

// PairRating is the ephemeral score for one candidate pair. Ratings are only
// comparable within a single scan; a nil or zero rating means the pair was
// rejected by the rating engine's safety checks.
type PairRating struct {
	PairID PairID       `json:"pair_id"`
	Rating *uint256.Int `json:"-"`

	// Components kept for observability of a scan.
	RootK     string `json:"root_k,omitempty"`
	RootKLast string `json:"root_k_last,omitempty"`
	PairValue string `json:"pair_value,omitempty"`
	Skipped   string `json:"skipped,omitempty"` // reason a pair rated zero
}

// RatingValue returns the rating as a comparable integer, treating nil as zero.
func (r PairRating) RatingValue() *uint256.Int {
	if r.Rating == nil {
		return uint256.NewInt(0)
	}
	return r.Rating
}
