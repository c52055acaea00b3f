package venue

import (
	"errors"
	"time"

	"github.com/holiman/uint256"

	"github.com/openyield/treasury/internal/types"
)

// ErrVenueFailure is the sentinel wrapped around every rejection coming back
// from the liquidity venue (slippage exceeded, expired deadline, unknown
// pair). Callers abort the enclosing operation when they see it.
var ErrVenueFailure = errors.New("liquidity venue rejected operation")

// ShareToken abstracts the treasury's share ledger. The engine only ever
// mints or burns amounts it has validated; it never issues zero-amount
// commands.
type ShareToken interface {
	// Mint credits amount shares to the given holder.
	Mint(to string, amount *uint256.Int) error

	// Burn debits amount shares from the given holder.
	Burn(from string, amount *uint256.Int) error

	// BalanceOf returns the holder's current share balance.
	BalanceOf(holder string) *uint256.Int

	// TotalSupply returns the outstanding share supply.
	TotalSupply() *uint256.Int
}

// PriceOracle converts token reserve quantities into the common valuation
// unit and tracks price observations per token.
type PriceOracle interface {
	// Consult values amount of the given token in common units using the
	// last recorded observation. It must not mutate oracle state.
	Consult(denom string, amount *uint256.Int) (*uint256.Int, error)

	// Update refreshes the price observation for the given token.
	Update(denom string) error

	// PairExists reports whether the token is already tracked.
	PairExists(denom string) bool

	// AddPair registers a token for price tracking.
	AddPair(denom string) error
}

// LiquidityVenue is the external AMM capability set: pair state reads, swap
// execution, liquidity add/remove, quoting, and wrap/unwrap of the base
// asset. All amounts are base units. Deadlines are absolute; a venue
// operation executing past its deadline must fail rather than fill at a
// stale price.
type LiquidityVenue interface {
	// GetReserves returns the pair's current reserves in token0/token1 order.
	GetReserves(pair types.PairID) (reserve0, reserve1 *uint256.Int, err error)

	// TotalSupply returns the pair's outstanding liquidity token supply.
	TotalSupply(pair types.PairID) (*uint256.Int, error)

	// KLast returns the pair's last recorded invariant product (reserve0 *
	// reserve1 as of the most recent liquidity event).
	KLast(pair types.PairID) (*uint256.Int, error)

	// Token0 and Token1 return the pair's legs in venue order.
	Token0(pair types.PairID) (types.Token, error)
	Token1(pair types.PairID) (types.Token, error)

	// Quote returns the amount of the counter asset equivalent to amountA at
	// the current reserve ratio (no fee applied).
	Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error)

	// GetAmountOut returns the fee-adjusted output for an exact-input swap
	// against the given reserves.
	GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error)

	// AddLiquidity supplies the pair, honoring per-leg minimums and the
	// deadline. Returns the amounts actually taken and liquidity minted.
	AddLiquidity(pair types.PairID, amountADesired, amountBDesired, amountAMin, amountBMin *uint256.Int, deadline time.Time) (amountA, amountB, liquidity *uint256.Int, err error)

	// RemoveLiquidity burns liquidity tokens and returns the reserve amounts
	// released, in token0/token1 order.
	RemoveLiquidity(pair types.PairID, liquidity, amount0Min, amount1Min *uint256.Int, deadline time.Time) (amount0, amount1 *uint256.Int, err error)

	// SwapExactIn swaps an exact input amount, failing if the output would
	// fall below amountOutMin or the deadline has passed.
	SwapExactIn(inDenom, outDenom string, amountIn, amountOutMin *uint256.Int, deadline time.Time) (amountOut *uint256.Int, err error)

	// SwapForExactOut swaps for an exact output amount, failing if the input
	// required exceeds amountInMax or the deadline has passed.
	SwapForExactOut(inDenom, outDenom string, amountOut, amountInMax *uint256.Int, deadline time.Time) (amountIn *uint256.Int, err error)

	// Wrap converts native base asset held by the treasury into its wrapped
	// venue form; Unwrap is the inverse.
	Wrap(amount *uint256.Int) error
	Unwrap(amount *uint256.Int) error
}

// TreasuryBook reports the treasury account's own holdings at the venue.
// The idle base balance is always derived from here, never cached.
type TreasuryBook interface {
	// NativeBalance returns the treasury's native base asset balance.
	NativeBalance() *uint256.Int

	// Balance returns the treasury's balance of an arbitrary venue token,
	// including the wrapped base asset.
	Balance(denom string) *uint256.Int

	// LiquidityBalance returns the treasury's liquidity token balance for a
	// pair.
	LiquidityBalance(pair types.PairID) *uint256.Int

	// TransferNative pays native base asset out of the treasury account.
	TransferNative(to string, amount *uint256.Int) error
}
