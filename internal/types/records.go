/*

Emitted records. These are observability artifacts, persisted by the state
package and served by the web layer; nothing in the engine reads them back.
Amounts are carried as decimal strings so records survive JSON and SQL
round-trips without precision loss.

*/

package types

import "time"

// SnapshotTrigger names the operation that produced a value snapshot.
type SnapshotTrigger string

const (
	TriggerMint            SnapshotTrigger = "MINT"
	TriggerRedeem          SnapshotTrigger = "REDEEM"
	TriggerAddLiquidity    SnapshotTrigger = "ADD_LIQUIDITY"
	TriggerRemoveLiquidity SnapshotTrigger = "REMOVE_LIQUIDITY"
	TriggerReallocation    SnapshotTrigger = "REALLOCATION"
)

// ValueSnapshot is a point-in-time record of the treasury's total value.
type ValueSnapshot struct {
	SnapshotID  int64           `json:"snapshot_id,omitempty"` // assigned by the database
	Timestamp   time.Time       `json:"timestamp"`
	RunID       string          `json:"run_id,omitempty"` // operation trace ID
	Trigger     SnapshotTrigger `json:"trigger"`
	TotalValue  string          `json:"total_value"` // common valuation units
	IdleBase    string          `json:"idle_base"`   // base asset held outside the venue
	ActivePair  PairID          `json:"active_pair"` // NoPair when idle
	ShareSupply string          `json:"share_supply"`
}

// MintRecord is emitted once per successful share mint.
type MintRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Recipient    string    `json:"recipient"`
	DepositValue string    `json:"deposit_value"`
	SharesMinted string    `json:"shares_minted"`
}

// LiquidityAddedRecord is emitted when the provisioning protocol supplies
// liquidity to a pair.
type LiquidityAddedRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	PairID         PairID    `json:"pair_id"`
	TokenA         string    `json:"token_a"`
	TokenB         string    `json:"token_b"`
	DesiredA       string    `json:"desired_a"`
	DesiredB       string    `json:"desired_b"`
	ActualA        string    `json:"actual_a"`
	ActualB        string    `json:"actual_b"`
	LiquidityMinted string   `json:"liquidity_minted"`
}

// ReallocationOutcome is the terminal state of one reallocation run.
type ReallocationOutcome string

const (
	OutcomeSwitched   ReallocationOutcome = "SWITCHED"   // moved to a new pair
	OutcomeHeld       ReallocationOutcome = "HELD"       // best pair already active
	OutcomeUnresolved ReallocationOutcome = "UNRESOLVED" // no candidate rated above zero
)

// ReallocationRecord captures one full reallocation run for the audit trail.
type ReallocationRecord struct {
	RunID           string              `json:"run_id"`
	Timestamp       time.Time           `json:"timestamp"`
	PreviousPair    PairID              `json:"previous_pair"`
	NextPair        PairID              `json:"next_pair"`
	WinningRating   string              `json:"winning_rating"`
	BaseWithdrawn   string              `json:"base_withdrawn"`
	LiquidityMinted string              `json:"liquidity_minted"`
	Outcome         ReallocationOutcome `json:"outcome"`
}
