package rating

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openyield/treasury/internal/sim"
	"github.com/openyield/treasury/internal/types"
	"github.com/openyield/treasury/internal/valuation"
)

var (
	baseToken = types.Token{Symbol: "BASE", Denom: "wbase", Precision: 6}
	tokenA    = types.Token{Symbol: "AAA", Denom: "uaaa", Precision: 6}
	tokenB    = types.Token{Symbol: "BBB", Denom: "ubbb", Precision: 6}
)

// newTestEnv seeds a venue with two base-quoted pools holding equal value.
func newTestEnv(t *testing.T) (*sim.Venue, *sim.Oracle, *Engine, []types.Pair) {
	t.Helper()

	venue := sim.NewVenue("wbase", "ubase", "treasury", nil)
	pairs := []types.Pair{
		{ID: 1, Token0: tokenA, Token1: baseToken},
		{ID: 2, Token0: tokenB, Token1: baseToken},
	}
	require.NoError(t, venue.RegisterPair(pairs[0], uint256.NewInt(1_000_000), uint256.NewInt(1_000_000)))
	require.NoError(t, venue.RegisterPair(pairs[1], uint256.NewInt(1_000_000), uint256.NewInt(1_000_000)))

	oracle := sim.NewOracle(venue)
	require.NoError(t, oracle.AddPair(tokenA.Denom))
	require.NoError(t, oracle.AddPair(tokenB.Denom))

	valuer := valuation.New(oracle, venue, sim.NewBook(venue), sim.NewShareLedger(), baseToken)
	engine := New(venue, oracle, valuer, pairs)
	return venue, oracle, engine, pairs
}

func TestRatePairNoGrowthRatesZero(t *testing.T) {
	_, _, engine, pairs := newTestEnv(t)

	// kLast equals the current invariant right after seeding
	r := engine.RatePair(pairs[0])
	assert.True(t, r.RatingValue().IsZero())
	assert.Empty(t, r.Skipped)
}

func TestRatePairGrowthRatesPositive(t *testing.T) {
	venue, _, engine, pairs := newTestEnv(t)

	require.NoError(t, venue.AccrueFees(pairs[0].ID, 101, 100))

	r := engine.RatePair(pairs[0])
	assert.False(t, r.RatingValue().IsZero())
	assert.Empty(t, r.Skipped)
}

func TestRatePairMoreGrowthRatesHigher(t *testing.T) {
	venue, _, engine, pairs := newTestEnv(t)

	require.NoError(t, venue.AccrueFees(pairs[0].ID, 101, 100))
	require.NoError(t, venue.AccrueFees(pairs[1].ID, 103, 100))

	slow := engine.RatePair(pairs[0])
	fast := engine.RatePair(pairs[1])
	assert.True(t, fast.RatingValue().Gt(slow.RatingValue()))
}

func TestRatePairUnknownPairSkips(t *testing.T) {
	_, _, engine, _ := newTestEnv(t)

	r := engine.RatePair(types.Pair{ID: 99, Token0: tokenA, Token1: baseToken})
	assert.True(t, r.RatingValue().IsZero())
	assert.NotEmpty(t, r.Skipped)
}

func TestRatePairShrunkInvariantSkips(t *testing.T) {
	venue, _, engine, pairs := newTestEnv(t)

	// record a kLast above the live invariant
	require.NoError(t, venue.SetKLast(pairs[0].ID, new(uint256.Int).Lsh(uint256.NewInt(1), 60)))

	r := engine.RatePair(pairs[0])
	assert.True(t, r.RatingValue().IsZero())
	assert.NotEmpty(t, r.Skipped)
}

func TestRatePairUntrackedLegSkips(t *testing.T) {
	venue := sim.NewVenue("wbase", "ubase", "treasury", nil)
	tokenC := types.Token{Symbol: "CCC", Denom: "uccc", Precision: 6}
	pair := types.Pair{ID: 3, Token0: tokenC, Token1: baseToken}
	require.NoError(t, venue.RegisterPair(pair, uint256.NewInt(1_000_000), uint256.NewInt(1_000_000)))
	require.NoError(t, venue.AccrueFees(pair.ID, 101, 100))

	// oracle never learns tokenC, so the pair cannot be valued
	oracle := sim.NewOracle(venue)
	valuer := valuation.New(oracle, venue, sim.NewBook(venue), sim.NewShareLedger(), baseToken)
	engine := New(venue, oracle, valuer, []types.Pair{pair})

	r := engine.RatePair(pair)
	assert.True(t, r.RatingValue().IsZero())
	assert.NotEmpty(t, r.Skipped)
}

func TestScanSelectsStrictBest(t *testing.T) {
	venue, _, engine, pairs := newTestEnv(t)

	require.NoError(t, venue.AccrueFees(pairs[0].ID, 101, 100))
	require.NoError(t, venue.AccrueFees(pairs[1].ID, 105, 100))

	best, ratings := engine.Scan()
	require.NotNil(t, best)
	assert.Equal(t, pairs[1].ID, best.ID)
	assert.Len(t, ratings, 2)
}

func TestScanTieKeepsFirstCandidate(t *testing.T) {
	venue, _, engine, pairs := newTestEnv(t)

	// identical pools with identical accrual rate identically
	require.NoError(t, venue.AccrueFees(pairs[0].ID, 102, 100))
	require.NoError(t, venue.AccrueFees(pairs[1].ID, 102, 100))

	best, _ := engine.Scan()
	require.NotNil(t, best)
	assert.Equal(t, pairs[0].ID, best.ID)
}

func TestScanAllZeroReturnsNil(t *testing.T) {
	_, _, engine, _ := newTestEnv(t)

	best, ratings := engine.Scan()
	assert.Nil(t, best)
	assert.Len(t, ratings, 2)
	for _, r := range ratings {
		assert.True(t, r.RatingValue().IsZero())
	}
}

func TestScanLiveRefreshesObservations(t *testing.T) {
	venue, oracle, engine, pairs := newTestEnv(t)

	require.NoError(t, venue.AccrueFees(pairs[0].ID, 110, 100))

	best, ratings := engine.ScanLive()
	require.NotNil(t, best)
	assert.Equal(t, pairs[0].ID, best.ID)
	assert.Len(t, ratings, 2)

	// observations remain consultable after the refresh
	_, err := oracle.Consult(tokenA.Denom, uint256.NewInt(1000))
	assert.NoError(t, err)
}
