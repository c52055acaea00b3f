package treasury

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openyield/treasury/internal/shares"
	"github.com/openyield/treasury/internal/sim"
	"github.com/openyield/treasury/internal/types"
)

const (
	authority = "treasury-authority"
	depositor = "alice"
)

var (
	baseToken = types.Token{Symbol: "BASE", Denom: "wbase", Precision: 6}
	tokenA    = types.Token{Symbol: "AAA", Denom: "uaaa", Precision: 6}
	tokenB    = types.Token{Symbol: "BBB", Denom: "ubbb", Precision: 6}
	pairOne   = types.Pair{ID: 1, Token0: tokenA, Token1: baseToken}
	pairTwo   = types.Pair{ID: 2, Token0: tokenB, Token1: baseToken}
)

type captureRecorder struct {
	snapshots     []types.ValueSnapshot
	mints         []types.MintRecord
	reallocations []types.ReallocationRecord
	liquidity     []types.LiquidityAddedRecord
}

func (c *captureRecorder) SaveValueSnapshot(s types.ValueSnapshot) (int64, error) {
	c.snapshots = append(c.snapshots, s)
	return int64(len(c.snapshots)), nil
}

func (c *captureRecorder) SaveMint(r types.MintRecord) error {
	c.mints = append(c.mints, r)
	return nil
}

func (c *captureRecorder) SaveReallocation(r types.ReallocationRecord) error {
	c.reallocations = append(c.reallocations, r)
	return nil
}

func (c *captureRecorder) SaveLiquidityAdded(r types.LiquidityAddedRecord) error {
	c.liquidity = append(c.liquidity, r)
	return nil
}

func newTestController(t *testing.T) (*Controller, *sim.Venue, *sim.ShareLedger, *captureRecorder) {
	t.Helper()

	venue := sim.NewVenue("wbase", "ubase", "treasury", nil)
	require.NoError(t, venue.RegisterPair(pairOne, uint256.NewInt(2_000_000), uint256.NewInt(1_000_000)))
	require.NoError(t, venue.RegisterPair(pairTwo, uint256.NewInt(1_000_000), uint256.NewInt(1_000_000)))

	ledger := sim.NewShareLedger()
	recorder := &captureRecorder{}
	controller, err := New(Config{
		ShareToken:        ledger,
		Oracle:            sim.NewOracle(venue),
		Venue:             venue,
		Book:              sim.NewBook(venue),
		BaseToken:         baseToken,
		CandidatePairs:    []types.Pair{pairOne, pairTwo},
		Authority:         authority,
		Recorder:          recorder,
		LiquidityRecorder: recorder,
	})
	require.NoError(t, err)
	return controller, venue, ledger, recorder
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestMintBootstrap(t *testing.T) {
	controller, venue, ledger, recorder := newTestController(t)

	venue.CreditNative("treasury", uint256.NewInt(1000))
	minted, err := controller.Mint(depositor, uint256.NewInt(1000), time.Now())
	require.NoError(t, err)

	assert.Equal(t, uint64(1000*shares.DefaultIssuanceFactor), minted.Uint64())
	assert.Equal(t, minted.Uint64(), ledger.TotalSupply().Uint64())
	assert.Equal(t, minted.Uint64(), ledger.BalanceOf(depositor).Uint64())

	require.Len(t, recorder.mints, 1)
	require.Len(t, recorder.snapshots, 1)
	assert.Equal(t, types.TriggerMint, recorder.snapshots[0].Trigger)
}

func TestMintProportional(t *testing.T) {
	controller, venue, ledger, _ := newTestController(t)

	venue.CreditNative("treasury", uint256.NewInt(1000))
	_, err := controller.Mint(depositor, uint256.NewInt(1000), time.Now())
	require.NoError(t, err)

	// second depositor brings half the existing value
	venue.CreditNative("treasury", uint256.NewInt(500))
	minted, err := controller.Mint("bob", uint256.NewInt(500), time.Now())
	require.NoError(t, err)

	assert.Equal(t, uint64(50_000), minted.Uint64())
	assert.Equal(t, uint64(150_000), ledger.TotalSupply().Uint64())
}

func TestMintZeroDeposit(t *testing.T) {
	controller, _, _, _ := newTestController(t)

	_, err := controller.Mint(depositor, uint256.NewInt(0), time.Now())
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)
}

func TestMintUnreflectedDeposit(t *testing.T) {
	controller, venue, _, _ := newTestController(t)

	// claims a deposit larger than the treasury actually holds
	venue.CreditNative("treasury", uint256.NewInt(100))
	_, err := controller.Mint(depositor, uint256.NewInt(1000), time.Now())
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)
}

func TestReallocateUnauthorized(t *testing.T) {
	controller, _, _, _ := newTestController(t)

	_, err := controller.Reallocate("mallory", time.Now())
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	// the guard released; a legitimate call still goes through
	_, err = controller.Reallocate(authority, time.Now())
	assert.NoError(t, err)
}

func TestReallocateUnresolvedWithoutGrowth(t *testing.T) {
	controller, venue, _, recorder := newTestController(t)
	venue.CreditNative("treasury", uint256.NewInt(10_000))

	result, err := controller.Reallocate(authority, time.Now())
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeUnresolved, result.Outcome)
	assert.Equal(t, types.NoPair, controller.ActivePairID())
	require.Len(t, recorder.reallocations, 1)
	assert.Equal(t, types.OutcomeUnresolved, recorder.reallocations[0].Outcome)
}

func TestReallocateDeploysIntoBestPair(t *testing.T) {
	controller, venue, _, recorder := newTestController(t)

	venue.CreditNative("treasury", uint256.NewInt(10_000))
	require.NoError(t, venue.AccrueFees(pairOne.ID, 102, 100))

	result, err := controller.Reallocate(authority, time.Now())
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeSwitched, result.Outcome)
	assert.Equal(t, pairOne.ID, result.Next)
	assert.Equal(t, pairOne.ID, controller.ActivePairID())
	assert.Len(t, recorder.liquidity, 1)

	// value survives the deployment within swap-fee tolerance
	total, err := controller.TotalValue()
	require.NoError(t, err)
	assert.True(t, total.Gt(uint256.NewInt(9_500)))
}

func TestReallocateHoldsWhenBestAlreadyActive(t *testing.T) {
	controller, venue, _, _ := newTestController(t)

	venue.CreditNative("treasury", uint256.NewInt(10_000))
	require.NoError(t, venue.AccrueFees(pairOne.ID, 102, 100))
	_, err := controller.Reallocate(authority, time.Now())
	require.NoError(t, err)

	// the active pair keeps earning and wins again
	require.NoError(t, venue.AccrueFees(pairOne.ID, 102, 100))
	result, err := controller.Reallocate(authority, time.Now())
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeHeld, result.Outcome)
	assert.Equal(t, pairOne.ID, controller.ActivePairID())
}

func TestReallocateSwitchesPairs(t *testing.T) {
	controller, venue, _, _ := newTestController(t)

	venue.CreditNative("treasury", uint256.NewInt(10_000))
	require.NoError(t, venue.AccrueFees(pairOne.ID, 102, 100))
	_, err := controller.Reallocate(authority, time.Now())
	require.NoError(t, err)

	// the other pair outgrows the active one
	require.NoError(t, venue.AccrueFees(pairTwo.ID, 110, 100))
	result, err := controller.Reallocate(authority, time.Now())
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeSwitched, result.Outcome)
	assert.Equal(t, pairOne.ID, result.Previous)
	assert.Equal(t, pairTwo.ID, result.Next)
	assert.Equal(t, pairTwo.ID, controller.ActivePairID())
}

func TestRedeemIdleOnly(t *testing.T) {
	controller, venue, ledger, _ := newTestController(t)

	venue.CreditNative("treasury", uint256.NewInt(1000))
	minted, err := controller.Mint(depositor, uint256.NewInt(1000), time.Now())
	require.NoError(t, err)

	// redeeming everything returns the full idle balance
	payout, err := controller.Redeem(depositor, minted, time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), payout.Uint64())
	assert.True(t, ledger.TotalSupply().IsZero())
}

func TestRedeemHalfWithActivePair(t *testing.T) {
	controller, venue, ledger, _ := newTestController(t)

	venue.CreditNative("treasury", uint256.NewInt(10_000))
	minted, err := controller.Mint(depositor, uint256.NewInt(10_000), time.Now())
	require.NoError(t, err)

	require.NoError(t, venue.AccrueFees(pairOne.ID, 102, 100))
	_, err = controller.Reallocate(authority, time.Now())
	require.NoError(t, err)

	supplyBefore := ledger.TotalSupply()
	half := new(uint256.Int).Div(minted, uint256.NewInt(2))
	payout, err := controller.Redeem(depositor, half, time.Now())
	require.NoError(t, err)

	assert.False(t, payout.IsZero())
	expectedSupply := new(uint256.Int).Sub(supplyBefore, half)
	assert.True(t, ledger.TotalSupply().Eq(expectedSupply))
	assert.Equal(t, pairOne.ID, controller.ActivePairID())
}

func TestRedeemFullClearsActivePair(t *testing.T) {
	controller, venue, _, _ := newTestController(t)

	venue.CreditNative("treasury", uint256.NewInt(10_000))
	minted, err := controller.Mint(depositor, uint256.NewInt(10_000), time.Now())
	require.NoError(t, err)

	require.NoError(t, venue.AccrueFees(pairOne.ID, 102, 100))
	_, err = controller.Reallocate(authority, time.Now())
	require.NoError(t, err)

	_, err = controller.Redeem(depositor, minted, time.Now())
	require.NoError(t, err)
	assert.Equal(t, types.NoPair, controller.ActivePairID())

	// fresh capital deploys again even when the same pair wins the next scan
	venue.CreditNative("treasury", uint256.NewInt(10_000))
	_, err = controller.Mint(depositor, uint256.NewInt(10_000), time.Now())
	require.NoError(t, err)
	require.NoError(t, venue.AccrueFees(pairOne.ID, 102, 100))

	result, err := controller.Reallocate(authority, time.Now())
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeSwitched, result.Outcome)
	assert.Equal(t, pairOne.ID, controller.ActivePairID())
	assert.False(t, sim.NewBook(venue).LiquidityBalance(pairOne.ID).IsZero())
}

func TestRedeemPaysOutWrappedResidue(t *testing.T) {
	controller, venue, ledger, _ := newTestController(t)

	venue.CreditNative("treasury", uint256.NewInt(1000))
	minted, err := controller.Mint(depositor, uint256.NewInt(1000), time.Now())
	require.NoError(t, err)

	// part of the idle balance sits in wrapped form
	require.NoError(t, venue.Wrap(uint256.NewInt(400)))

	payout, err := controller.Redeem(depositor, minted, time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), payout.Uint64())
	assert.True(t, ledger.TotalSupply().IsZero())
}

func TestRedeemInsufficientShares(t *testing.T) {
	controller, venue, ledger, _ := newTestController(t)

	venue.CreditNative("treasury", uint256.NewInt(1000))
	minted, err := controller.Mint(depositor, uint256.NewInt(1000), time.Now())
	require.NoError(t, err)

	tooMany := new(uint256.Int).AddUint64(minted, 1)
	_, err = controller.Redeem(depositor, tooMany, time.Now())
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)

	// nothing changed
	assert.True(t, ledger.TotalSupply().Eq(minted))
	assert.Equal(t, uint64(1000), sim.NewBook(venue).NativeBalance().Uint64())
}

func TestBurnDonatesToRemainingHolders(t *testing.T) {
	controller, venue, ledger, _ := newTestController(t)

	venue.CreditNative("treasury", uint256.NewInt(1000))
	minted, err := controller.Mint(depositor, uint256.NewInt(1000), time.Now())
	require.NoError(t, err)

	half := new(uint256.Int).Div(minted, uint256.NewInt(2))
	require.NoError(t, controller.Burn(depositor, half))

	// supply halves, treasury value untouched
	assert.True(t, ledger.TotalSupply().Eq(half))
	total, err := controller.TotalValue()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), total.Uint64())
}

func TestGuardRejectsReentry(t *testing.T) {
	controller, venue, _, _ := newTestController(t)
	venue.CreditNative("treasury", uint256.NewInt(1000))

	require.NoError(t, controller.guard.enter())
	_, err := controller.Mint(depositor, uint256.NewInt(1000), time.Now())
	assert.ErrorIs(t, err, ErrReentrantCall)
	controller.guard.exit()

	// released guard admits the retry
	_, err = controller.Mint(depositor, uint256.NewInt(1000), time.Now())
	assert.NoError(t, err)
}

func TestBestPairIsReadOnly(t *testing.T) {
	controller, venue, _, _ := newTestController(t)

	require.NoError(t, venue.AccrueFees(pairOne.ID, 102, 100))

	best, ratings := controller.BestPair()
	assert.Equal(t, pairOne.ID, best)
	assert.Len(t, ratings, 2)

	// a read-only scan never deploys capital
	assert.Equal(t, types.NoPair, controller.ActivePairID())
}

func TestProportionalReservesRequiresActivePair(t *testing.T) {
	controller, _, _, _ := newTestController(t)

	_, _, err := controller.ProportionalReserves(uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrNoActivePair)
}
