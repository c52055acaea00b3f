package provision

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openyield/treasury/internal/fixedpoint"
	"github.com/openyield/treasury/internal/sim"
	"github.com/openyield/treasury/internal/types"
	"github.com/openyield/treasury/internal/valuation"
	"github.com/openyield/treasury/internal/venue"
)

var (
	baseToken = types.Token{Symbol: "BASE", Denom: "wbase", Precision: 6}
	altToken  = types.Token{Symbol: "ALT", Denom: "ualt", Precision: 6}
	testPair  = types.Pair{ID: 1, Token0: altToken, Token1: baseToken}
)

type captureRecorder struct {
	records []types.LiquidityAddedRecord
}

func (c *captureRecorder) SaveLiquidityAdded(record types.LiquidityAddedRecord) error {
	c.records = append(c.records, record)
	return nil
}

func newTestEnv(t *testing.T, now func() time.Time) (*sim.Venue, *sim.Book, *Provisioner, *captureRecorder) {
	t.Helper()

	v := sim.NewVenue("wbase", "ubase", "treasury", now)
	require.NoError(t, v.RegisterPair(testPair, uint256.NewInt(2_000_000), uint256.NewInt(1_000_000)))

	oracle := sim.NewOracle(v)
	require.NoError(t, oracle.AddPair(altToken.Denom))

	book := sim.NewBook(v)
	valuer := valuation.New(oracle, v, book, sim.NewShareLedger(), baseToken)
	recorder := &captureRecorder{}
	prov := New(v, book, valuer, baseToken, recorder)
	return v, book, prov, recorder
}

func TestBalancedAmountsQuoteWithinDesired(t *testing.T) {
	_, _, prov, _ := newTestEnv(t, nil)

	// 1000 alt quotes to 500 base at the 2:1 reserves, within the 600 offered
	amount0, amount1, err := prov.BalancedAmounts(testPair, uint256.NewInt(1000), uint256.NewInt(600))
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), amount0.Uint64())
	assert.Equal(t, uint64(500), amount1.Uint64())
}

func TestBalancedAmountsInverseClamp(t *testing.T) {
	_, _, prov, _ := newTestEnv(t, nil)

	// 1000 alt wants 500 base but only 300 is offered; scale the alt side down
	amount0, amount1, err := prov.BalancedAmounts(testPair, uint256.NewInt(1000), uint256.NewInt(300))
	require.NoError(t, err)
	assert.Equal(t, uint64(600), amount0.Uint64())
	assert.Equal(t, uint64(300), amount1.Uint64())
}

func TestBalancedAmountsEmptyPoolPassthrough(t *testing.T) {
	v, _, prov, _ := newTestEnv(t, nil)

	empty := types.Pair{ID: 2, Token0: types.Token{Symbol: "NEW", Denom: "unew", Precision: 6}, Token1: baseToken}
	require.NoError(t, v.RegisterPair(empty, uint256.NewInt(0), uint256.NewInt(0)))

	amount0, amount1, err := prov.BalancedAmounts(empty, uint256.NewInt(700), uint256.NewInt(900))
	require.NoError(t, err)
	assert.Equal(t, uint64(700), amount0.Uint64())
	assert.Equal(t, uint64(900), amount1.Uint64())
}

func TestAddLiquidityDeploysIdleBase(t *testing.T) {
	v, book, prov, recorder := newTestEnv(t, nil)
	v.CreditNative("treasury", uint256.NewInt(100_000))

	result, err := prov.AddLiquidity(testPair, time.Now())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Liquidity.IsZero())

	// the position exists and no leg balances linger
	assert.False(t, book.LiquidityBalance(testPair.ID).IsZero())
	assert.True(t, book.Balance(altToken.Denom).IsZero())
	assert.True(t, book.Balance(baseToken.Denom).IsZero())

	// dust from balancing comes back as native base
	assert.True(t, book.NativeBalance().Lt(uint256.NewInt(10_000)))

	require.Len(t, recorder.records, 1)
	assert.Equal(t, testPair.ID, recorder.records[0].PairID)
	assert.Equal(t, result.Liquidity.Dec(), recorder.records[0].LiquidityMinted)
}

func TestAddLiquidityNoIdleBase(t *testing.T) {
	_, _, prov, _ := newTestEnv(t, nil)

	_, err := prov.AddLiquidity(testPair, time.Now())
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)
}

func TestAddLiquidityExpiredDeadline(t *testing.T) {
	// the venue clock sits past any deadline the protocol can issue
	farFuture := func() time.Time { return time.Now().Add(time.Hour) }
	v, _, prov, _ := newTestEnv(t, farFuture)
	v.CreditNative("treasury", uint256.NewInt(100_000))

	_, err := prov.AddLiquidity(testPair, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, venue.ErrVenueFailure)
}

func TestRemoveLiquidityConsolidatesToBase(t *testing.T) {
	v, book, prov, _ := newTestEnv(t, nil)
	v.CreditNative("treasury", uint256.NewInt(100_000))

	result, err := prov.AddLiquidity(testPair, time.Now())
	require.NoError(t, err)

	realized, err := prov.RemoveLiquidity(testPair, result.Liquidity, time.Now())
	require.NoError(t, err)
	assert.False(t, realized.IsZero())

	// position fully unwound, everything back in the native base asset
	assert.True(t, book.LiquidityBalance(testPair.ID).IsZero())
	assert.True(t, book.Balance(altToken.Denom).IsZero())
	assert.True(t, book.Balance(baseToken.Denom).IsZero())

	// round trip through two swaps costs fees, never mints value
	assert.True(t, book.NativeBalance().Lt(uint256.NewInt(100_000)))
}

func TestRemoveLiquidityOverflow(t *testing.T) {
	_, _, prov, _ := newTestEnv(t, nil)

	big := new(uint256.Int).AddUint64(fixedpoint.MaxUint112(), 1)
	_, err := prov.RemoveLiquidity(testPair, big, time.Now())
	assert.ErrorIs(t, err, fixedpoint.ErrOverflow)
}
