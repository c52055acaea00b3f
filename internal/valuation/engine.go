/*

Valuation engine: total treasury value and proportional reserve entitlements,
priced through the oracle in the common valuation unit. The idle base asset
counts at face value; deployed liquidity counts as the treasury's UQ112.112
fraction of the active pair's reserves, each leg valued independently.

*/

package valuation

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"github.com/openyield/treasury/internal/fixedpoint"
	"github.com/openyield/treasury/internal/logger"
	"github.com/openyield/treasury/internal/types"
	"github.com/openyield/treasury/internal/venue"
)

var ErrZeroAmount = errors.New("valuation: share amount must be positive")

// Engine values the treasury. It never mutates any collaborator.
type Engine struct {
	oracle venue.PriceOracle
	amm    venue.LiquidityVenue
	book   venue.TreasuryBook
	shares venue.ShareToken
	base   types.Token
	logger zerolog.Logger
}

// New builds a valuation engine over the given collaborators.
func New(oracle venue.PriceOracle, amm venue.LiquidityVenue, book venue.TreasuryBook, shareToken venue.ShareToken, base types.Token) *Engine {
	return &Engine{
		oracle: oracle,
		amm:    amm,
		book:   book,
		shares: shareToken,
		base:   base,
		logger: logger.GetForComponent("valuation_engine"),
	}
}

// IdleBase returns the base asset held outside the venue: the native balance
// plus any wrapped residue not yet unwrapped. Always derived, never cached.
func (e *Engine) IdleBase() *uint256.Int {
	idle := new(uint256.Int).Set(e.book.NativeBalance())
	return idle.Add(idle, e.book.Balance(e.base.Denom))
}

// ProportionalReserves computes the reserve entitlement a liquidity amount
// represents in the given pair, one leg at a time. Both the liquidity amount
// and the pair's total supply must fit in 112 bits.
func (e *Engine) ProportionalReserves(pair types.Pair, liquidity *uint256.Int) (amount0, amount1 *uint256.Int, err error) {
	if !fixedpoint.FitsUint112(liquidity) {
		return nil, nil, fixedpoint.ErrOverflow
	}

	supply, err := e.amm.TotalSupply(pair.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read pair supply: %w", err)
	}
	if !fixedpoint.FitsUint112(supply) {
		return nil, nil, fixedpoint.ErrOverflow
	}

	reserve0, reserve1, err := e.amm.GetReserves(pair.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read pair reserves: %w", err)
	}

	ratio, err := fixedpoint.Fraction(liquidity, supply)
	if err != nil {
		return nil, nil, err
	}
	amount0, err = ratio.MulInt(reserve0)
	if err != nil {
		return nil, nil, err
	}
	amount1, err = ratio.MulInt(reserve1)
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// TotalValue returns idle base plus, when a pair is active, the oracle value
// of the treasury's proportional share of that pair's reserves.
func (e *Engine) TotalValue(activePair *types.Pair) (*uint256.Int, error) {
	total := e.IdleBase()
	if activePair == nil {
		return total, nil
	}

	liquidity := e.book.LiquidityBalance(activePair.ID)
	if liquidity.IsZero() {
		return total, nil
	}

	amount0, amount1, err := e.ProportionalReserves(*activePair, liquidity)
	if err != nil {
		return nil, err
	}

	value0, err := e.oracle.Consult(activePair.Token0.Denom, amount0)
	if err != nil {
		return nil, fmt.Errorf("oracle consult failed for %s: %w", activePair.Token0.Denom, err)
	}
	value1, err := e.oracle.Consult(activePair.Token1.Denom, amount1)
	if err != nil {
		return nil, fmt.Errorf("oracle consult failed for %s: %w", activePair.Token1.Denom, err)
	}

	total.Add(total, value0)
	total.Add(total, value1)

	e.logger.Debug().
		Uint64("pairID", uint64(activePair.ID)).
		Str("liquidity", liquidity.Dec()).
		Str("totalValue", total.Dec()).
		Msg("Valued treasury with active pair")

	return total, nil
}

// ValueOfShares returns the common-unit value of a share amount: the
// ownership fraction amount/totalSupply applied to the total value. Fails
// with ErrZeroAmount for zero, ErrOverflow past 112 bits, and
// ErrDivideByZero when no shares exist.
func (e *Engine) ValueOfShares(amount *uint256.Int, activePair *types.Pair) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}
	if !fixedpoint.FitsUint112(amount) {
		return nil, fixedpoint.ErrOverflow
	}

	supply := e.shares.TotalSupply()
	if supply.IsZero() {
		return nil, fixedpoint.ErrDivideByZero
	}
	if !fixedpoint.FitsUint112(supply) {
		return nil, fixedpoint.ErrOverflow
	}

	fraction, err := fixedpoint.Fraction(amount, supply)
	if err != nil {
		return nil, err
	}

	total, err := e.TotalValue(activePair)
	if err != nil {
		return nil, err
	}
	return fraction.MulInt(total)
}

// PairValue returns the combined oracle value of a pair's full reserves.
// Used by the rating engine as the capital base of the yield heuristic.
func (e *Engine) PairValue(pair types.Pair) (*uint256.Int, error) {
	reserve0, reserve1, err := e.amm.GetReserves(pair.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read pair reserves: %w", err)
	}
	value0, err := e.oracle.Consult(pair.Token0.Denom, reserve0)
	if err != nil {
		return nil, fmt.Errorf("oracle consult failed for %s: %w", pair.Token0.Denom, err)
	}
	value1, err := e.oracle.Consult(pair.Token1.Denom, reserve1)
	if err != nil {
		return nil, fmt.Errorf("oracle consult failed for %s: %w", pair.Token1.Denom, err)
	}
	return new(uint256.Int).Add(value0, value1), nil
}
