/*

Pair rating engine. Scores every candidate pair by fee growth per unit of
locked value: the growth in the pair's invariant product root since the last
liquidity event, normalized per liquidity share, divided by the pair's total
oracle value. Unsafe or degenerate candidates rate zero and are skipped
rather than aborting the scan.

*/

package rating

import (
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"github.com/openyield/treasury/internal/fixedpoint"
	"github.com/openyield/treasury/internal/logger"
	"github.com/openyield/treasury/internal/types"
	"github.com/openyield/treasury/internal/valuation"
	"github.com/openyield/treasury/internal/venue"
)

// ratingScale spreads the growth-per-value fraction into an integer range so
// candidate ratings compare as plain integers. The absolute magnitude is
// meaningless; only relative ordering within one scan matters.
const ratingScale = 1_000_000_000_000

// Skip reasons recorded on zero-rated candidates.
const (
	skipReserves     = "reserves unavailable"
	skipKLast        = "kLast unavailable or overflow-unsafe"
	skipSupply       = "liquidity supply zero or overflow-unsafe"
	skipShrunk       = "invariant root below last recorded value"
	skipGrowthBounds = "growth magnitude overflow-unsafe"
	skipPairValue    = "pair value zero or overflow-unsafe"
	skipScale        = "rating scale overflow"
)

// Engine rates candidate pairs. The candidate set is fixed at construction.
type Engine struct {
	amm        venue.LiquidityVenue
	oracle     venue.PriceOracle
	valuer     *valuation.Engine
	candidates []types.Pair
	logger     zerolog.Logger
}

// New builds a rating engine over the fixed candidate set.
func New(amm venue.LiquidityVenue, oracle venue.PriceOracle, valuer *valuation.Engine, candidates []types.Pair) *Engine {
	return &Engine{
		amm:        amm,
		oracle:     oracle,
		valuer:     valuer,
		candidates: candidates,
		logger:     logger.GetForComponent("pair_rating"),
	}
}

// Candidates returns the fixed candidate set in declared order.
func (e *Engine) Candidates() []types.Pair {
	return e.candidates
}

// RatePair computes the rating for a single candidate. A zero rating with a
// populated Skipped field means a safety check rejected the pair.
func (e *Engine) RatePair(pair types.Pair) types.PairRating {
	result := types.PairRating{PairID: pair.ID, Rating: uint256.NewInt(0)}

	skip := func(reason string) types.PairRating {
		result.Skipped = reason
		e.logger.Debug().Uint64("pairID", uint64(pair.ID)).Str("reason", reason).Msg("Candidate rated zero")
		return result
	}

	reserve0, reserve1, err := e.amm.GetReserves(pair.ID)
	if err != nil {
		return skip(skipReserves)
	}

	kLast, err := e.amm.KLast(pair.ID)
	if err != nil {
		return skip(skipKLast)
	}
	rootKLast := fixedpoint.Sqrt(kLast)
	if !fixedpoint.FitsUint112(rootKLast) {
		return skip(skipKLast)
	}

	supply, err := e.amm.TotalSupply(pair.ID)
	if err != nil || supply.IsZero() || !fixedpoint.FitsUint112(supply) {
		return skip(skipSupply)
	}

	k, overflow := new(uint256.Int).MulOverflow(reserve0, reserve1)
	if overflow {
		return skip(skipGrowthBounds)
	}
	rootK := fixedpoint.Sqrt(k)
	result.RootK = rootK.Dec()
	result.RootKLast = rootKLast.Dec()

	// A shrinking invariant root cannot happen without external manipulation
	// of the pair; rate zero instead of producing a wrapped delta.
	if rootK.Lt(rootKLast) {
		return skip(skipShrunk)
	}

	delta := new(uint256.Int).Sub(rootK, rootKLast)
	if !fixedpoint.FitsUint112(delta) {
		return skip(skipGrowthBounds)
	}

	// Fresh pairs with no prior growth baseline get a denominator of one.
	growthDen := new(uint256.Int).Div(rootKLast, supply)
	if growthDen.IsZero() {
		growthDen = uint256.NewInt(1)
	}

	growth, err := fixedpoint.Fraction(delta, supply)
	if err != nil {
		return skip(skipGrowthBounds)
	}
	growth, err = growth.DivInt(growthDen)
	if err != nil {
		return skip(skipGrowthBounds)
	}

	pairValue, err := e.valuer.PairValue(pair)
	if err != nil || pairValue.IsZero() || !fixedpoint.FitsUint112(pairValue) {
		return skip(skipPairValue)
	}
	result.PairValue = pairValue.Dec()

	rating, overflow := new(uint256.Int).MulDivOverflow(growth.Raw(), uint256.NewInt(ratingScale), pairValue)
	if overflow {
		return skip(skipScale)
	}

	result.Rating = rating
	return result
}

// Scan rates every candidate and returns the strict best. Ties keep the
// first candidate found; when no candidate rates above zero, best is nil and
// the caller treats reallocation as unresolved.
func (e *Engine) Scan() (best *types.Pair, ratings []types.PairRating) {
	ratings = make([]types.PairRating, 0, len(e.candidates))
	var bestRating *uint256.Int

	for i := range e.candidates {
		r := e.RatePair(e.candidates[i])
		ratings = append(ratings, r)
		if r.RatingValue().IsZero() {
			continue
		}
		if bestRating == nil || r.RatingValue().Gt(bestRating) {
			best = &e.candidates[i]
			bestRating = r.RatingValue()
		}
	}

	if best != nil {
		e.logger.Debug().
			Uint64("pairID", uint64(best.ID)).
			Str("rating", bestRating.Dec()).
			Msg("Best candidate selected")
	}
	return best, ratings
}

// ScanLive refreshes every candidate's oracle observations before rating.
// Mutating; used only when committing to a reallocation.
func (e *Engine) ScanLive() (*types.Pair, []types.PairRating) {
	for _, pair := range e.candidates {
		for _, token := range []types.Token{pair.Token0, pair.Token1} {
			if !e.oracle.PairExists(token.Denom) {
				continue
			}
			if err := e.oracle.Update(token.Denom); err != nil {
				e.logger.Warn().
					Err(err).
					Str("denom", token.Denom).
					Msg("Failed to refresh oracle observation")
			}
		}
	}
	return e.Scan()
}
