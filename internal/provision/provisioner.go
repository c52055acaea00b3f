/*

Liquidity provisioning protocol: the balanced deposit/withdraw sequencing
against the venue. Deposits split the idle base asset into the pair's legs,
balance the legs against the venue price, and supply with slippage-bound
minimums; withdrawals burn a liquidity position and consolidate all proceeds
back into the base asset. Every venue operation carries an absolute deadline
derived from an injected "now", never the wall clock.

*/

package provision

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"github.com/openyield/treasury/internal/fixedpoint"
	"github.com/openyield/treasury/internal/logger"
	"github.com/openyield/treasury/internal/types"
	"github.com/openyield/treasury/internal/valuation"
	"github.com/openyield/treasury/internal/venue"
)

const (
	// SlippageDenominator sets the tolerance on supply/withdraw minimums:
	// min = amount - amount/200, i.e. 0.5%.
	SlippageDenominator = 200

	// DeadlineWindow bounds how stale a pending venue operation may become
	// before it must fail instead of executing.
	DeadlineWindow = 15 * time.Minute
)

// Recorder persists liquidity-added records. A nil recorder disables
// persistence without disabling the protocol.
type Recorder interface {
	SaveLiquidityAdded(record types.LiquidityAddedRecord) error
}

// AddResult reports the outcome of a completed deposit.
type AddResult struct {
	Amount0   *uint256.Int
	Amount1   *uint256.Int
	Liquidity *uint256.Int
}

// Provisioner executes the deposit/withdraw protocol for the treasury
// account. It holds no state of its own; all balances are read live.
type Provisioner struct {
	amm      venue.LiquidityVenue
	book     venue.TreasuryBook
	valuer   *valuation.Engine
	base     types.Token
	recorder Recorder
	logger   zerolog.Logger
}

// New builds a provisioner. base is the wrapped venue form of the base asset.
func New(amm venue.LiquidityVenue, book venue.TreasuryBook, valuer *valuation.Engine, base types.Token, recorder Recorder) *Provisioner {
	return &Provisioner{
		amm:      amm,
		book:     book,
		valuer:   valuer,
		base:     base,
		recorder: recorder,
		logger:   logger.GetForComponent("liquidity_provisioner"),
	}
}

// BalancedAmounts computes the largest pair of deposit amounts not exceeding
// the desired quantities while matching the venue's current price ratio.
// When the quote comes back zero the pair has no reserves yet and the raw
// desired amounts pass through unchanged (first liquidity provision sets the
// price).
func (p *Provisioner) BalancedAmounts(pair types.Pair, desired0, desired1 *uint256.Int) (amount0, amount1 *uint256.Int, err error) {
	reserve0, reserve1, err := p.amm.GetReserves(pair.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read pair reserves: %w", err)
	}

	quoted1, err := p.amm.Quote(desired0, reserve0, reserve1)
	if err != nil {
		return nil, nil, fmt.Errorf("venue quote failed: %w", err)
	}
	if quoted1.IsZero() {
		return desired0, desired1, nil
	}
	if !quoted1.Gt(desired1) {
		return desired0, quoted1, nil
	}

	quoted0, err := p.amm.Quote(desired1, reserve1, reserve0)
	if err != nil {
		return nil, nil, fmt.Errorf("venue quote failed: %w", err)
	}
	if quoted0.Gt(desired0) {
		quoted0 = new(uint256.Int).Set(desired0)
	}
	return quoted0, desired1, nil
}

// AddLiquidity deploys the treasury's entire idle base balance into the
// given pair and returns the amounts supplied and liquidity minted. Residual
// leg balances are swept back to the base asset and wrapped residue is
// unwrapped before returning.
func (p *Provisioner) AddLiquidity(pair types.Pair, now time.Time) (*AddResult, error) {
	deadline := now.Add(DeadlineWindow)

	// All venue operations run in the wrapped denom; wrap up front, unwrap
	// residue at the end.
	if native := p.book.NativeBalance(); !native.IsZero() {
		if err := p.amm.Wrap(native); err != nil {
			return nil, fmt.Errorf("failed to wrap base asset: %w", err)
		}
	}

	available := p.book.Balance(p.base.Denom)
	if available.IsZero() {
		return nil, fmt.Errorf("%w: no idle base asset to deploy", types.ErrInsufficientBalance)
	}

	var desired0, desired1 *uint256.Int
	if pair.Contains(p.base.Denom) {
		counter, _ := pair.CounterOf(p.base.Denom)

		// Swap half the idle base into the counter token; the remainder
		// stays as the base leg.
		half := new(uint256.Int).Div(available, uint256.NewInt(2))
		if _, err := p.amm.SwapExactIn(p.base.Denom, counter.Denom, half, uint256.NewInt(0), deadline); err != nil {
			return nil, fmt.Errorf("%w: half swap into %s: %w", venue.ErrVenueFailure, counter.Symbol, err)
		}

		// Balance against post-swap reserves: the half swap itself moved
		// the price.
		held0 := p.book.Balance(pair.Token0.Denom)
		held1 := p.book.Balance(pair.Token1.Denom)
		var err error
		desired0, desired1, err = p.BalancedAmounts(pair, held0, held1)
		if err != nil {
			return nil, err
		}
	} else {
		// Neither leg is the base asset: split the idle base and swap each
		// half into one leg.
		half0 := new(uint256.Int).Div(available, uint256.NewInt(2))
		half1 := new(uint256.Int).Sub(available, half0)

		if _, err := p.amm.SwapExactIn(p.base.Denom, pair.Token0.Denom, half0, uint256.NewInt(0), deadline); err != nil {
			return nil, fmt.Errorf("%w: swap into %s: %w", venue.ErrVenueFailure, pair.Token0.Symbol, err)
		}
		if _, err := p.amm.SwapExactIn(p.base.Denom, pair.Token1.Denom, half1, uint256.NewInt(0), deadline); err != nil {
			return nil, fmt.Errorf("%w: swap into %s: %w", venue.ErrVenueFailure, pair.Token1.Symbol, err)
		}

		held0 := p.book.Balance(pair.Token0.Denom)
		held1 := p.book.Balance(pair.Token1.Denom)
		var err error
		desired0, desired1, err = p.BalancedAmounts(pair, held0, held1)
		if err != nil {
			return nil, err
		}
	}

	min0, err := fixedpoint.SlippageFloor(desired0, SlippageDenominator)
	if err != nil {
		return nil, err
	}
	min1, err := fixedpoint.SlippageFloor(desired1, SlippageDenominator)
	if err != nil {
		return nil, err
	}

	amount0, amount1, liquidity, err := p.amm.AddLiquidity(pair.ID, desired0, desired1, min0, min1, deadline)
	if err != nil {
		return nil, fmt.Errorf("%w: add liquidity to pair %d: %w", venue.ErrVenueFailure, pair.ID, err)
	}

	if err := p.sweepResidue(pair, deadline); err != nil {
		return nil, err
	}

	p.logger.Info().
		Uint64("pairID", uint64(pair.ID)).
		Str("amount0", amount0.Dec()).
		Str("amount1", amount1.Dec()).
		Str("liquidity", liquidity.Dec()).
		Msg("Liquidity supplied")

	p.recordLiquidityAdded(pair, desired0, desired1, amount0, amount1, liquidity, now)

	return &AddResult{Amount0: amount0, Amount1: amount1, Liquidity: liquidity}, nil
}

// RemoveLiquidity burns the given liquidity amount from the pair, converts
// all proceeds to the base asset, unwraps residue, and returns the total
// base asset realized.
func (p *Provisioner) RemoveLiquidity(pair types.Pair, liquidity *uint256.Int, now time.Time) (*uint256.Int, error) {
	if !fixedpoint.FitsUint112(liquidity) {
		return nil, fixedpoint.ErrOverflow
	}
	deadline := now.Add(DeadlineWindow)
	nativeBefore := new(uint256.Int).Set(p.book.NativeBalance())

	entitle0, entitle1, err := p.valuer.ProportionalReserves(pair, liquidity)
	if err != nil {
		return nil, err
	}
	min0, err := fixedpoint.SlippageFloor(entitle0, SlippageDenominator)
	if err != nil {
		return nil, err
	}
	min1, err := fixedpoint.SlippageFloor(entitle1, SlippageDenominator)
	if err != nil {
		return nil, err
	}

	amount0, amount1, err := p.amm.RemoveLiquidity(pair.ID, liquidity, min0, min1, deadline)
	if err != nil {
		return nil, fmt.Errorf("%w: remove liquidity from pair %d: %w", venue.ErrVenueFailure, pair.ID, err)
	}

	if err := p.sweepResidue(pair, deadline); err != nil {
		return nil, err
	}

	realized := new(uint256.Int).Sub(p.book.NativeBalance(), nativeBefore)

	p.logger.Info().
		Uint64("pairID", uint64(pair.ID)).
		Str("liquidity", liquidity.Dec()).
		Str("amount0", amount0.Dec()).
		Str("amount1", amount1.Dec()).
		Str("realizedBase", realized.Dec()).
		Msg("Liquidity withdrawn and consolidated")

	return realized, nil
}

// sweepResidue swaps leftover leg balances back to the base asset and
// unwraps any wrapped-base residue. Residue is dust from balancing, so the
// sweeps run without output minimums.
func (p *Provisioner) sweepResidue(pair types.Pair, deadline time.Time) error {
	for _, token := range []types.Token{pair.Token0, pair.Token1} {
		if token.Denom == p.base.Denom {
			continue
		}
		residual := p.book.Balance(token.Denom)
		if residual.IsZero() {
			continue
		}
		if _, err := p.amm.SwapExactIn(token.Denom, p.base.Denom, residual, uint256.NewInt(0), deadline); err != nil {
			return fmt.Errorf("%w: sweep %s residue: %w", venue.ErrVenueFailure, token.Symbol, err)
		}
	}

	if wrapped := p.book.Balance(p.base.Denom); !wrapped.IsZero() {
		if err := p.amm.Unwrap(wrapped); err != nil {
			return fmt.Errorf("failed to unwrap base residue: %w", err)
		}
	}
	return nil
}

func (p *Provisioner) recordLiquidityAdded(pair types.Pair, desired0, desired1, actual0, actual1, liquidity *uint256.Int, now time.Time) {
	if p.recorder == nil {
		return
	}
	record := types.LiquidityAddedRecord{
		Timestamp:       now,
		PairID:          pair.ID,
		TokenA:          pair.Token0.Symbol,
		TokenB:          pair.Token1.Symbol,
		DesiredA:        desired0.Dec(),
		DesiredB:        desired1.Dec(),
		ActualA:         actual0.Dec(),
		ActualB:         actual1.Dec(),
		LiquidityMinted: liquidity.Dec(),
	}
	if err := p.recorder.SaveLiquidityAdded(record); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to persist liquidity-added record")
	}
}
