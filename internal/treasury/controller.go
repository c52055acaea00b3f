/*

Reallocation controller and public entry points. The controller owns the
singleton treasury state: the active pair (at most one at any time) and the
fixed candidate set. Mint, redeem, burn, and reallocation all run under a
non-reentrant guard; all validation happens before any state mutation or
venue call, so a failed operation leaves state unchanged.

*/

package treasury

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"github.com/openyield/treasury/internal/fixedpoint"
	"github.com/openyield/treasury/internal/logger"
	"github.com/openyield/treasury/internal/provision"
	"github.com/openyield/treasury/internal/rating"
	"github.com/openyield/treasury/internal/shares"
	"github.com/openyield/treasury/internal/types"
	"github.com/openyield/treasury/internal/valuation"
	"github.com/openyield/treasury/internal/venue"
)

var ErrNoActivePair = errors.New("no active pair")

// Recorder persists the controller's emitted records. A nil recorder
// disables persistence; records are still logged.
type Recorder interface {
	SaveValueSnapshot(snapshot types.ValueSnapshot) (int64, error)
	SaveMint(record types.MintRecord) error
	SaveReallocation(record types.ReallocationRecord) error
}

// Config holds every collaborator and fixed parameter the controller needs.
// All addresses and the candidate set are fixed at construction.
type Config struct {
	ShareToken     venue.ShareToken
	Oracle         venue.PriceOracle
	Venue          venue.LiquidityVenue
	Book           venue.TreasuryBook
	BaseToken      types.Token // wrapped venue form of the base asset
	CandidatePairs []types.Pair
	Authority      string // only caller allowed to reallocate
	Recorder       Recorder
	LiquidityRecorder provision.Recorder
}

// Controller is the top-level treasury engine.
type Controller struct {
	cfg         Config
	valuer      *valuation.Engine
	rater       *rating.Engine
	provisioner *provision.Provisioner
	activePair  *types.Pair
	guard       reentrancyGuard
	logger      zerolog.Logger
}

// ReallocationResult reports one reallocation run.
type ReallocationResult struct {
	RunID    string
	Outcome  types.ReallocationOutcome
	Previous types.PairID
	Next     types.PairID
	Ratings  []types.PairRating
}

// New validates the configuration, registers every candidate token with the
// oracle, and returns a controller with no active pair.
func New(cfg Config) (*Controller, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("treasury configuration validation failed: %w", err)
	}

	valuer := valuation.New(cfg.Oracle, cfg.Venue, cfg.Book, cfg.ShareToken, cfg.BaseToken)
	c := &Controller{
		cfg:         cfg,
		valuer:      valuer,
		rater:       rating.New(cfg.Venue, cfg.Oracle, valuer, cfg.CandidatePairs),
		provisioner: provision.New(cfg.Venue, cfg.Book, valuer, cfg.BaseToken, cfg.LiquidityRecorder),
		logger:      logger.GetForComponent("treasury_controller"),
	}

	if err := c.registerCandidateTokens(); err != nil {
		return nil, err
	}

	c.logger.Info().
		Int("candidatePairs", len(cfg.CandidatePairs)).
		Str("baseAsset", cfg.BaseToken.Symbol).
		Msg("Treasury controller created")

	return c, nil
}

func validateConfig(cfg Config) error {
	if cfg.ShareToken == nil {
		return fmt.Errorf("share token cannot be nil")
	}
	if cfg.Oracle == nil {
		return fmt.Errorf("price oracle cannot be nil")
	}
	if cfg.Venue == nil {
		return fmt.Errorf("liquidity venue cannot be nil")
	}
	if cfg.Book == nil {
		return fmt.Errorf("treasury book cannot be nil")
	}
	if len(cfg.CandidatePairs) == 0 {
		return fmt.Errorf("candidate pair set cannot be empty")
	}
	if cfg.BaseToken.Denom == "" {
		return fmt.Errorf("base token denom cannot be empty")
	}
	if cfg.Authority == "" {
		return fmt.Errorf("authority cannot be empty")
	}
	return nil
}

// registerCandidateTokens makes sure the oracle tracks every non-base token
// appearing in the candidate set.
func (c *Controller) registerCandidateTokens() error {
	for _, pair := range c.cfg.CandidatePairs {
		for _, token := range []types.Token{pair.Token0, pair.Token1} {
			if token.Denom == c.cfg.BaseToken.Denom {
				continue
			}
			if c.cfg.Oracle.PairExists(token.Denom) {
				continue
			}
			if err := c.cfg.Oracle.AddPair(token.Denom); err != nil {
				return fmt.Errorf("failed to register %s with oracle: %w", token.Denom, err)
			}
		}
	}
	return nil
}

// Mint issues shares against a deposit that has already been credited to the
// treasury account (payable semantics). The mint amount is computed against
// the pre-deposit total value, rounding down, and shares are minted to the
// depositor. Returns the shares minted.
func (c *Controller) Mint(caller string, depositValue *uint256.Int, now time.Time) (*uint256.Int, error) {
	if err := c.guard.enter(); err != nil {
		return nil, err
	}
	defer c.guard.exit()

	if depositValue == nil || depositValue.IsZero() {
		return nil, fmt.Errorf("%w: zero deposit", types.ErrInsufficientBalance)
	}

	total, err := c.valuer.TotalValue(c.activePair)
	if err != nil {
		return nil, err
	}
	if total.Lt(depositValue) {
		return nil, fmt.Errorf("%w: deposit of %s not reflected in treasury balance %s", types.ErrInsufficientBalance, depositValue.Dec(), total.Dec())
	}
	exclDeposit := new(uint256.Int).Sub(total, depositValue)

	minted, err := shares.MintAmount(depositValue, exclDeposit, c.cfg.ShareToken.TotalSupply())
	if err != nil {
		return nil, err
	}
	if minted.IsZero() {
		return nil, fmt.Errorf("%w: deposit too small to mint shares", types.ErrInsufficientBalance)
	}

	if err := c.cfg.ShareToken.Mint(caller, minted); err != nil {
		return nil, fmt.Errorf("share mint failed: %w", err)
	}

	c.logger.Info().
		Str("caller", caller).
		Str("depositValue", depositValue.Dec()).
		Str("sharesMinted", minted.Dec()).
		Msg("Shares minted")

	c.recordMint(caller, depositValue, minted, now)
	c.snapshot(types.TriggerMint, "", now)

	return minted, nil
}

// Redeem burns the caller's shares and pays out the proportional claim on
// the treasury: the share fraction of the idle base balance plus, when a
// pair is active, the share fraction of the deployed liquidity converted to
// base asset through withdrawal. Returns the base asset paid out.
func (c *Controller) Redeem(caller string, amount *uint256.Int, now time.Time) (*uint256.Int, error) {
	if err := c.guard.enter(); err != nil {
		return nil, err
	}
	defer c.guard.exit()

	if amount == nil || amount.IsZero() {
		return nil, fmt.Errorf("%w: zero redemption", types.ErrInsufficientBalance)
	}
	if amount.Gt(c.cfg.ShareToken.BalanceOf(caller)) {
		return nil, fmt.Errorf("%w: redemption exceeds share balance", types.ErrInsufficientBalance)
	}
	supply := c.cfg.ShareToken.TotalSupply()
	if supply.IsZero() {
		return nil, fixedpoint.ErrDivideByZero
	}

	fraction, err := shares.Fraction(amount, supply)
	if err != nil {
		return nil, err
	}

	payout, err := shares.IdleRedemption(amount, supply, c.valuer.IdleBase())
	if err != nil {
		return nil, err
	}

	if c.activePair != nil {
		liquidity := c.cfg.Book.LiquidityBalance(c.activePair.ID)
		liquidityShare, err := fraction.MulInt(liquidity)
		if err != nil {
			return nil, err
		}
		if !liquidityShare.IsZero() {
			realized, err := c.provisioner.RemoveLiquidity(*c.activePair, liquidityShare, now)
			if err != nil {
				return nil, err
			}
			payout.Add(payout, realized)
		}
		if c.cfg.Book.LiquidityBalance(c.activePair.ID).IsZero() {
			// the position is fully drained; the treasury is idle again
			c.activePair = nil
		}
	}

	// the payout covers wrapped residue too; consolidate to native first
	if wrapped := c.cfg.Book.Balance(c.cfg.BaseToken.Denom); !wrapped.IsZero() {
		if err := c.cfg.Venue.Unwrap(wrapped); err != nil {
			return nil, fmt.Errorf("base residue unwrap failed: %w", err)
		}
	}

	if err := c.cfg.ShareToken.Burn(caller, amount); err != nil {
		return nil, fmt.Errorf("share burn failed: %w", err)
	}
	if err := c.cfg.Book.TransferNative(caller, payout); err != nil {
		return nil, fmt.Errorf("base asset payout failed: %w", err)
	}

	c.logger.Info().
		Str("caller", caller).
		Str("sharesBurned", amount.Dec()).
		Str("payout", payout.Dec()).
		Msg("Shares redeemed")

	c.snapshot(types.TriggerRedeem, "", now)

	return payout, nil
}

// Burn destroys the caller's shares without payout, donating their claim to
// the remaining holders.
func (c *Controller) Burn(caller string, amount *uint256.Int) error {
	if err := c.guard.enter(); err != nil {
		return err
	}
	defer c.guard.exit()

	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: zero burn", types.ErrInsufficientBalance)
	}
	if amount.Gt(c.cfg.ShareToken.BalanceOf(caller)) {
		return fmt.Errorf("%w: burn exceeds share balance", types.ErrInsufficientBalance)
	}
	if err := c.cfg.ShareToken.Burn(caller, amount); err != nil {
		return fmt.Errorf("share burn failed: %w", err)
	}

	c.logger.Info().Str("caller", caller).Str("sharesBurned", amount.Dec()).Msg("Shares burned")
	return nil
}

// Reallocate runs one full reallocation: live-rate all candidates, and when
// the winner differs from the active pair, withdraw the existing position
// and deploy into the winner. Holding the current winner or an all-zero scan
// is a no-op. Privileged: only the configured authority may call.
func (c *Controller) Reallocate(caller string, now time.Time) (*ReallocationResult, error) {
	if err := c.guard.enter(); err != nil {
		return nil, err
	}
	defer c.guard.exit()

	if caller != c.cfg.Authority {
		return nil, fmt.Errorf("%w: reallocation requires authority %s", types.ErrUnauthorized, c.cfg.Authority)
	}

	runID := uuid.New().String()
	runLogger := c.logger.With().Str("run_id", runID).Logger()
	runLogger.Info().Msg("--- Starting reallocation run ---")

	result := &ReallocationResult{RunID: runID, Previous: c.activePairID()}

	best, ratings := c.rater.ScanLive()
	result.Ratings = ratings

	if best == nil {
		runLogger.Info().Msg("No candidate rated above zero; reallocation unresolved")
		result.Outcome = types.OutcomeUnresolved
		result.Next = result.Previous
		c.recordReallocation(result, uint256.NewInt(0), uint256.NewInt(0), uint256.NewInt(0), now)
		return result, nil
	}

	winning := winningRating(ratings, best.ID)

	if c.activePair != nil && best.ID == c.activePair.ID {
		runLogger.Info().
			Uint64("pairID", uint64(best.ID)).
			Msg("Best candidate already active; holding position")
		result.Outcome = types.OutcomeHeld
		result.Next = best.ID
		c.recordReallocation(result, winning, uint256.NewInt(0), uint256.NewInt(0), now)
		return result, nil
	}

	baseWithdrawn := uint256.NewInt(0)
	if c.activePair != nil {
		liquidity := c.cfg.Book.LiquidityBalance(c.activePair.ID)
		if !liquidity.IsZero() {
			realized, err := c.provisioner.RemoveLiquidity(*c.activePair, liquidity, now)
			if err != nil {
				return nil, err
			}
			baseWithdrawn = realized
		}
		// The old position is gone regardless of whether the deposit below
		// succeeds; the treasury is idle until it does.
		c.activePair = nil
		c.snapshot(types.TriggerRemoveLiquidity, runID, now)
	}

	added, err := c.provisioner.AddLiquidity(*best, now)
	if err != nil {
		runLogger.Error().Err(err).Uint64("pairID", uint64(best.ID)).Msg("Deposit into new pair failed; treasury left idle")
		return nil, err
	}

	c.activePair = best
	result.Outcome = types.OutcomeSwitched
	result.Next = best.ID
	c.snapshot(types.TriggerAddLiquidity, runID, now)

	runLogger.Info().
		Uint64("previousPair", uint64(result.Previous)).
		Uint64("nextPair", uint64(result.Next)).
		Str("baseWithdrawn", baseWithdrawn.Dec()).
		Str("liquidityMinted", added.Liquidity.Dec()).
		Msg("--- Reallocation run completed ---")

	c.recordReallocation(result, winning, baseWithdrawn, added.Liquidity, now)
	c.snapshot(types.TriggerReallocation, runID, now)

	return result, nil
}

// TotalValue returns the treasury's total value in common units. Read-only.
func (c *Controller) TotalValue() (*uint256.Int, error) {
	return c.valuer.TotalValue(c.activePair)
}

// ValueOfShares returns the common-unit value of a share amount. Read-only.
func (c *Controller) ValueOfShares(amount *uint256.Int) (*uint256.Int, error) {
	return c.valuer.ValueOfShares(amount, c.activePair)
}

// ActivePairTokens returns the active pair's legs; ok is false when idle.
func (c *Controller) ActivePairTokens() (token0, token1 types.Token, ok bool) {
	if c.activePair == nil {
		return types.Token{}, types.Token{}, false
	}
	t0, t1 := c.activePair.Tokens()
	return t0, t1, true
}

// ActivePairID returns the active pair's ID, or types.NoPair when idle.
func (c *Controller) ActivePairID() types.PairID {
	return c.activePairID()
}

// BestPair rates all candidates using recorded oracle prices only. It never
// mutates oracle state and never changes the active pair.
func (c *Controller) BestPair() (types.PairID, []types.PairRating) {
	best, ratings := c.rater.Scan()
	if best == nil {
		return types.NoPair, ratings
	}
	return best.ID, ratings
}

// ProportionalReserves reports the reserve entitlement of a liquidity amount
// in the active pair.
func (c *Controller) ProportionalReserves(liquidity *uint256.Int) (amount0, amount1 *uint256.Int, err error) {
	if c.activePair == nil {
		return nil, nil, ErrNoActivePair
	}
	return c.valuer.ProportionalReserves(*c.activePair, liquidity)
}

func (c *Controller) activePairID() types.PairID {
	if c.activePair == nil {
		return types.NoPair
	}
	return c.activePair.ID
}

func winningRating(ratings []types.PairRating, id types.PairID) *uint256.Int {
	for _, r := range ratings {
		if r.PairID == id {
			return r.RatingValue()
		}
	}
	return uint256.NewInt(0)
}

func (c *Controller) recordMint(caller string, depositValue, minted *uint256.Int, now time.Time) {
	if c.cfg.Recorder == nil {
		return
	}
	record := types.MintRecord{
		Timestamp:    now,
		Recipient:    caller,
		DepositValue: depositValue.Dec(),
		SharesMinted: minted.Dec(),
	}
	if err := c.cfg.Recorder.SaveMint(record); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to persist mint record")
	}
}

func (c *Controller) recordReallocation(result *ReallocationResult, winning, baseWithdrawn, liquidityMinted *uint256.Int, now time.Time) {
	if c.cfg.Recorder == nil {
		return
	}
	record := types.ReallocationRecord{
		RunID:           result.RunID,
		Timestamp:       now,
		PreviousPair:    result.Previous,
		NextPair:        result.Next,
		WinningRating:   winning.Dec(),
		BaseWithdrawn:   baseWithdrawn.Dec(),
		LiquidityMinted: liquidityMinted.Dec(),
		Outcome:         result.Outcome,
	}
	if err := c.cfg.Recorder.SaveReallocation(record); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to persist reallocation record")
	}
}

func (c *Controller) snapshot(trigger types.SnapshotTrigger, runID string, now time.Time) {
	if c.cfg.Recorder == nil {
		return
	}
	total, err := c.valuer.TotalValue(c.activePair)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to value treasury for snapshot")
		return
	}
	snapshot := types.ValueSnapshot{
		Timestamp:   now,
		RunID:       runID,
		Trigger:     trigger,
		TotalValue:  total.Dec(),
		IdleBase:    c.valuer.IdleBase().Dec(),
		ActivePair:  c.activePairID(),
		ShareSupply: c.cfg.ShareToken.TotalSupply().Dec(),
	}
	if _, err := c.cfg.Recorder.SaveValueSnapshot(snapshot); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to persist value snapshot")
	}
}
