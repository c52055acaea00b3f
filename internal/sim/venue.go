/*

In-memory liquidity venue with Uniswap-v2 style constant-product pairs.
Backs the daemon's dry-run mode and the test suite. Swaps between a pair's
two legs execute against pool reserves and move the price; swaps with no
shared pool execute at the external price table (an infinite-liquidity
outside market). kLast advances only on liquidity events, so swap fees grow
rootK above rootKLast between events, exactly what the rating engine
measures.

*/

package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/openyield/treasury/internal/fixedpoint"
	"github.com/openyield/treasury/internal/types"
)

var (
	ErrUnknownPair    = errors.New("sim: unknown pair")
	ErrUnknownDenom   = errors.New("sim: no price route for denom")
	ErrDeadlinePassed = errors.New("sim: deadline passed")
	ErrSlippage       = errors.New("sim: output below minimum")
	ErrFunds          = errors.New("sim: insufficient funds")
)

// swap fee in basis points, Uniswap-v2 style 0.3%.
const swapFeeBps = 30

type pool struct {
	pair     types.Pair
	reserve0 *uint256.Int
	reserve1 *uint256.Int
	supply   *uint256.Int
	kLast    *uint256.Int
	holders  map[string]*uint256.Int // account -> liquidity tokens
}

type extPrice struct {
	num *uint256.Int // base units
	den *uint256.Int // token units
}

// Venue is the simulated AMM. All mutating capability-set methods act for
// the configured treasury account.
type Venue struct {
	mu          sync.Mutex
	baseDenom   string // wrapped base
	nativeDenom string
	treasury    string
	now         func() time.Time

	pools  map[types.PairID]*pool
	prices map[string]extPrice                 // external market prices
	native map[string]*uint256.Int             // account -> native base
	tokens map[string]map[string]*uint256.Int  // denom -> account -> balance
}

// NewVenue builds an empty venue. now is injected so tests control deadline
// evaluation; nil falls back to the wall clock.
func NewVenue(baseWrappedDenom, baseNativeDenom, treasuryAccount string, now func() time.Time) *Venue {
	if now == nil {
		now = time.Now
	}
	return &Venue{
		baseDenom:   baseWrappedDenom,
		nativeDenom: baseNativeDenom,
		treasury:    treasuryAccount,
		now:         now,
		pools:       make(map[types.PairID]*pool),
		prices:      make(map[string]extPrice),
		native:      make(map[string]*uint256.Int),
		tokens:      make(map[string]map[string]*uint256.Int),
	}
}

// --- seeding / test control ---

// RegisterPair creates a pool with the given reserves, held by an outside
// market maker so the treasury starts with no position.
func (v *Venue) RegisterPair(pair types.Pair, reserve0, reserve1 *uint256.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.pools[pair.ID]; exists {
		return fmt.Errorf("pair %d already registered", pair.ID)
	}

	k := new(uint256.Int).Mul(reserve0, reserve1)
	supply := fixedpoint.Sqrt(k)
	p := &pool{
		pair:     pair,
		reserve0: new(uint256.Int).Set(reserve0),
		reserve1: new(uint256.Int).Set(reserve1),
		supply:   supply,
		kLast:    k,
		holders:  map[string]*uint256.Int{"market": new(uint256.Int).Set(supply)},
	}
	v.pools[pair.ID] = p
	return nil
}

// SetExternalPrice fixes the outside-market price of a token: num base units
// per den token units.
func (v *Venue) SetExternalPrice(denom string, num, den uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.prices[denom] = extPrice{num: uint256.NewInt(num), den: uint256.NewInt(den)}
}

// CreditNative funds an account with native base asset (deposit faucet).
func (v *Venue) CreditNative(account string, amount *uint256.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.creditNative(account, amount)
}

// CreditToken funds an account with an arbitrary venue token (test faucet).
func (v *Venue) CreditToken(denom, account string, amount *uint256.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.creditToken(denom, account, amount)
}

// DebitNative removes native base asset from an account.
func (v *Venue) DebitNative(account string, amount *uint256.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.debitNative(account, amount)
}

// AccrueFees scales a pool's reserves by num/den without touching supply or
// kLast, simulating swap fees accumulated since the last liquidity event.
func (v *Venue) AccrueFees(pair types.PairID, num, den uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	p, ok := v.pools[pair]
	if !ok {
		return ErrUnknownPair
	}
	scale := func(x *uint256.Int) *uint256.Int {
		out := new(uint256.Int).Mul(x, uint256.NewInt(num))
		return out.Div(out, uint256.NewInt(den))
	}
	p.reserve0 = scale(p.reserve0)
	p.reserve1 = scale(p.reserve1)
	return nil
}

// SetKLast overrides a pool's recorded invariant product (test control).
func (v *Venue) SetKLast(pair types.PairID, kLast *uint256.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.pools[pair]
	if !ok {
		return ErrUnknownPair
	}
	p.kLast = new(uint256.Int).Set(kLast)
	return nil
}

// --- pair state reads ---

func (v *Venue) GetReserves(pair types.PairID) (*uint256.Int, *uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.pools[pair]
	if !ok {
		return nil, nil, ErrUnknownPair
	}
	return new(uint256.Int).Set(p.reserve0), new(uint256.Int).Set(p.reserve1), nil
}

func (v *Venue) TotalSupply(pair types.PairID) (*uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.pools[pair]
	if !ok {
		return nil, ErrUnknownPair
	}
	return new(uint256.Int).Set(p.supply), nil
}

func (v *Venue) KLast(pair types.PairID) (*uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.pools[pair]
	if !ok {
		return nil, ErrUnknownPair
	}
	return new(uint256.Int).Set(p.kLast), nil
}

func (v *Venue) Token0(pair types.PairID) (types.Token, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.pools[pair]
	if !ok {
		return types.Token{}, ErrUnknownPair
	}
	return p.pair.Token0, nil
}

func (v *Venue) Token1(pair types.PairID) (types.Token, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.pools[pair]
	if !ok {
		return types.Token{}, ErrUnknownPair
	}
	return p.pair.Token1, nil
}

// --- quoting ---

// Quote returns amountA * reserveB / reserveA, or zero when either reserve
// is empty (no price exists yet).
func (v *Venue) Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	if reserveA == nil || reserveB == nil || reserveA.IsZero() || reserveB.IsZero() {
		return uint256.NewInt(0), nil
	}
	out := new(uint256.Int).Mul(amountA, reserveB)
	return out.Div(out, reserveA), nil
}

// GetAmountOut applies the constant-product formula with the swap fee.
func (v *Venue) GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return uint256.NewInt(0), nil
	}
	inWithFee := new(uint256.Int).Mul(amountIn, uint256.NewInt(10000-swapFeeBps))
	numerator := new(uint256.Int).Mul(inWithFee, reserveOut)
	denominator := new(uint256.Int).Mul(reserveIn, uint256.NewInt(10000))
	denominator.Add(denominator, inWithFee)
	return numerator.Div(numerator, denominator), nil
}

// --- liquidity ---

func (v *Venue) AddLiquidity(pair types.PairID, amountADesired, amountBDesired, amountAMin, amountBMin *uint256.Int, deadline time.Time) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.now().After(deadline) {
		return nil, nil, nil, ErrDeadlinePassed
	}
	p, ok := v.pools[pair]
	if !ok {
		return nil, nil, nil, ErrUnknownPair
	}

	amount0 := new(uint256.Int).Set(amountADesired)
	amount1 := new(uint256.Int).Set(amountBDesired)
	if !p.reserve0.IsZero() && !p.reserve1.IsZero() {
		optimal1 := new(uint256.Int).Mul(amountADesired, p.reserve1)
		optimal1.Div(optimal1, p.reserve0)
		if !optimal1.Gt(amountBDesired) {
			if optimal1.Lt(amountBMin) {
				return nil, nil, nil, ErrSlippage
			}
			amount1 = optimal1
		} else {
			optimal0 := new(uint256.Int).Mul(amountBDesired, p.reserve0)
			optimal0.Div(optimal0, p.reserve1)
			if optimal0.Gt(amountADesired) || optimal0.Lt(amountAMin) {
				return nil, nil, nil, ErrSlippage
			}
			amount0 = optimal0
		}
	}

	if err := v.debitToken(p.pair.Token0.Denom, v.treasury, amount0); err != nil {
		return nil, nil, nil, err
	}
	if err := v.debitToken(p.pair.Token1.Denom, v.treasury, amount1); err != nil {
		return nil, nil, nil, err
	}

	var liquidity *uint256.Int
	if p.supply.IsZero() {
		liquidity = fixedpoint.Sqrt(new(uint256.Int).Mul(amount0, amount1))
	} else {
		share0 := new(uint256.Int).Mul(amount0, p.supply)
		share0.Div(share0, p.reserve0)
		share1 := new(uint256.Int).Mul(amount1, p.supply)
		share1.Div(share1, p.reserve1)
		liquidity = share0
		if share1.Lt(share0) {
			liquidity = share1
		}
	}

	p.reserve0 = new(uint256.Int).Add(p.reserve0, amount0)
	p.reserve1 = new(uint256.Int).Add(p.reserve1, amount1)
	p.supply = new(uint256.Int).Add(p.supply, liquidity)
	p.kLast = new(uint256.Int).Mul(p.reserve0, p.reserve1)
	v.creditLiquidity(p, v.treasury, liquidity)

	return amount0, amount1, liquidity, nil
}

func (v *Venue) RemoveLiquidity(pair types.PairID, liquidity, amount0Min, amount1Min *uint256.Int, deadline time.Time) (*uint256.Int, *uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.now().After(deadline) {
		return nil, nil, ErrDeadlinePassed
	}
	p, ok := v.pools[pair]
	if !ok {
		return nil, nil, ErrUnknownPair
	}
	held := p.holders[v.treasury]
	if held == nil || held.Lt(liquidity) {
		return nil, nil, ErrFunds
	}

	amount0 := new(uint256.Int).Mul(liquidity, p.reserve0)
	amount0.Div(amount0, p.supply)
	amount1 := new(uint256.Int).Mul(liquidity, p.reserve1)
	amount1.Div(amount1, p.supply)
	if amount0.Lt(amount0Min) || amount1.Lt(amount1Min) {
		return nil, nil, ErrSlippage
	}

	held.Sub(held, liquidity)
	p.supply = new(uint256.Int).Sub(p.supply, liquidity)
	p.reserve0 = new(uint256.Int).Sub(p.reserve0, amount0)
	p.reserve1 = new(uint256.Int).Sub(p.reserve1, amount1)
	p.kLast = new(uint256.Int).Mul(p.reserve0, p.reserve1)

	v.creditToken(p.pair.Token0.Denom, v.treasury, amount0)
	v.creditToken(p.pair.Token1.Denom, v.treasury, amount1)

	return amount0, amount1, nil
}

// --- swaps ---

func (v *Venue) SwapExactIn(inDenom, outDenom string, amountIn, amountOutMin *uint256.Int, deadline time.Time) (*uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.now().After(deadline) {
		return nil, ErrDeadlinePassed
	}
	if amountIn.IsZero() {
		return uint256.NewInt(0), nil
	}

	var amountOut *uint256.Int
	if p, rIn, rOut := v.poolFor(inDenom, outDenom); p != nil {
		out, _ := v.GetAmountOut(amountIn, rIn, rOut)
		if out.Lt(amountOutMin) {
			return nil, ErrSlippage
		}
		if err := v.debitToken(inDenom, v.treasury, amountIn); err != nil {
			return nil, err
		}
		rIn.Add(rIn, amountIn)
		rOut.Sub(rOut, out)
		amountOut = out
	} else {
		out, err := v.convertExternal(inDenom, outDenom, amountIn)
		if err != nil {
			return nil, err
		}
		if out.Lt(amountOutMin) {
			return nil, ErrSlippage
		}
		if err := v.debitToken(inDenom, v.treasury, amountIn); err != nil {
			return nil, err
		}
		amountOut = out
	}

	v.creditToken(outDenom, v.treasury, amountOut)
	return amountOut, nil
}

func (v *Venue) SwapForExactOut(inDenom, outDenom string, amountOut, amountInMax *uint256.Int, deadline time.Time) (*uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.now().After(deadline) {
		return nil, ErrDeadlinePassed
	}
	if amountOut.IsZero() {
		return uint256.NewInt(0), nil
	}

	var amountIn *uint256.Int
	if p, rIn, rOut := v.poolFor(inDenom, outDenom); p != nil {
		if !amountOut.Lt(rOut) {
			return nil, ErrFunds
		}
		numerator := new(uint256.Int).Mul(rIn, amountOut)
		numerator.Mul(numerator, uint256.NewInt(10000))
		denominator := new(uint256.Int).Sub(rOut, amountOut)
		denominator.Mul(denominator, uint256.NewInt(10000-swapFeeBps))
		amountIn = numerator.Div(numerator, denominator)
		amountIn.AddUint64(amountIn, 1)
		if amountIn.Gt(amountInMax) {
			return nil, ErrSlippage
		}
		if err := v.debitToken(inDenom, v.treasury, amountIn); err != nil {
			return nil, err
		}
		rIn.Add(rIn, amountIn)
		rOut.Sub(rOut, amountOut)
	} else {
		in, err := v.convertExternal(outDenom, inDenom, amountOut)
		if err != nil {
			return nil, err
		}
		if in.Gt(amountInMax) {
			return nil, ErrSlippage
		}
		if err := v.debitToken(inDenom, v.treasury, in); err != nil {
			return nil, err
		}
		amountIn = in
	}

	v.creditToken(outDenom, v.treasury, amountOut)
	return amountIn, nil
}

// --- wrap / unwrap ---

func (v *Venue) Wrap(amount *uint256.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.debitNative(v.treasury, amount); err != nil {
		return err
	}
	v.creditToken(v.baseDenom, v.treasury, amount)
	return nil
}

func (v *Venue) Unwrap(amount *uint256.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.debitToken(v.baseDenom, v.treasury, amount); err != nil {
		return err
	}
	v.creditNative(v.treasury, amount)
	return nil
}

// --- internals ---

// poolFor finds a pool containing both denoms and returns the reserves
// oriented in->out. The returned reserve pointers alias pool state so swap
// updates are in place.
func (v *Venue) poolFor(inDenom, outDenom string) (*pool, *uint256.Int, *uint256.Int) {
	for _, p := range v.pools {
		if p.pair.Token0.Denom == inDenom && p.pair.Token1.Denom == outDenom {
			return p, p.reserve0, p.reserve1
		}
		if p.pair.Token1.Denom == inDenom && p.pair.Token0.Denom == outDenom {
			return p, p.reserve1, p.reserve0
		}
	}
	return nil, nil, nil
}

// convertExternal converts between a token and the base asset at the
// external table price. One side must be the base denom.
func (v *Venue) convertExternal(fromDenom, toDenom string, amount *uint256.Int) (*uint256.Int, error) {
	if fromDenom == v.baseDenom {
		p, ok := v.prices[toDenom]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDenom, toDenom)
		}
		out := new(uint256.Int).Mul(amount, p.den)
		return out.Div(out, p.num), nil
	}
	if toDenom == v.baseDenom {
		p, ok := v.prices[fromDenom]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDenom, fromDenom)
		}
		out := new(uint256.Int).Mul(amount, p.num)
		return out.Div(out, p.den), nil
	}
	return nil, fmt.Errorf("%w: no route %s -> %s", ErrUnknownDenom, fromDenom, toDenom)
}

// spotPrice reports the current price of denom in base units: pool spot when
// a denom/base pool exists, external table otherwise.
func (v *Venue) spotPrice(denom string) (num, den *uint256.Int, err error) {
	if denom == v.baseDenom || denom == v.nativeDenom {
		one := uint256.NewInt(1)
		return one, one, nil
	}
	for _, p := range v.pools {
		if p.pair.Token0.Denom == denom && p.pair.Token1.Denom == v.baseDenom {
			return new(uint256.Int).Set(p.reserve1), new(uint256.Int).Set(p.reserve0), nil
		}
		if p.pair.Token1.Denom == denom && p.pair.Token0.Denom == v.baseDenom {
			return new(uint256.Int).Set(p.reserve0), new(uint256.Int).Set(p.reserve1), nil
		}
	}
	if p, ok := v.prices[denom]; ok {
		return new(uint256.Int).Set(p.num), new(uint256.Int).Set(p.den), nil
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrUnknownDenom, denom)
}

func (v *Venue) creditNative(account string, amount *uint256.Int) {
	if v.native[account] == nil {
		v.native[account] = uint256.NewInt(0)
	}
	v.native[account].Add(v.native[account], amount)
}

func (v *Venue) debitNative(account string, amount *uint256.Int) error {
	bal := v.native[account]
	if bal == nil || bal.Lt(amount) {
		return ErrFunds
	}
	bal.Sub(bal, amount)
	return nil
}

func (v *Venue) creditToken(denom, account string, amount *uint256.Int) {
	if v.tokens[denom] == nil {
		v.tokens[denom] = make(map[string]*uint256.Int)
	}
	if v.tokens[denom][account] == nil {
		v.tokens[denom][account] = uint256.NewInt(0)
	}
	v.tokens[denom][account].Add(v.tokens[denom][account], amount)
}

func (v *Venue) debitToken(denom, account string, amount *uint256.Int) error {
	accounts := v.tokens[denom]
	if accounts == nil || accounts[account] == nil || accounts[account].Lt(amount) {
		return ErrFunds
	}
	accounts[account].Sub(accounts[account], amount)
	return nil
}

func (v *Venue) creditLiquidity(p *pool, account string, amount *uint256.Int) {
	if p.holders[account] == nil {
		p.holders[account] = uint256.NewInt(0)
	}
	p.holders[account].Add(p.holders[account], amount)
}
