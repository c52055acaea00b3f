/*

Read-side queries over the persisted records, serving the web API. These
never feed back into the engine; the database is an audit trail, not a
source of truth for balances.

*/

package state

import (
	"database/sql"
	"fmt"

	"github.com/openyield/treasury/internal/types"
)

// GetRecentSnapshots returns the most recent value snapshots, newest first.
func GetRecentSnapshots(limit int) ([]types.ValueSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT snapshot_id, snapshot_timestamp, COALESCE(run_id, ''), trigger_op,
		       total_value, idle_base, active_pair_id, share_supply
		FROM value_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT $1;
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.ValueSnapshot
	for rows.Next() {
		var s types.ValueSnapshot
		var trigger string
		var activePair int64
		if err := rows.Scan(&s.SnapshotID, &s.Timestamp, &s.RunID, &trigger,
			&s.TotalValue, &s.IdleBase, &activePair, &s.ShareSupply); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		s.Trigger = types.SnapshotTrigger(trigger)
		s.ActivePair = types.PairID(activePair)
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// GetRecentReallocations returns the most recent reallocation runs, newest
// first.
func GetRecentReallocations(limit int) ([]types.ReallocationRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT run_id, run_timestamp, previous_pair_id, next_pair_id,
		       COALESCE(winning_rating::text, ''), COALESCE(base_withdrawn::text, ''),
		       COALESCE(liquidity_minted::text, ''), outcome
		FROM reallocation_records
		ORDER BY run_timestamp DESC
		LIMIT $1;
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reallocations: %w", err)
	}
	defer rows.Close()

	var records []types.ReallocationRecord
	for rows.Next() {
		var r types.ReallocationRecord
		var prev, next int64
		var outcome string
		if err := rows.Scan(&r.RunID, &r.Timestamp, &prev, &next,
			&r.WinningRating, &r.BaseWithdrawn, &r.LiquidityMinted, &outcome); err != nil {
			return nil, fmt.Errorf("failed to scan reallocation row: %w", err)
		}
		r.PreviousPair = types.PairID(prev)
		r.NextPair = types.PairID(next)
		r.Outcome = types.ReallocationOutcome(outcome)
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetLatestReallocation returns the most recent run, or nil when none exist.
func GetLatestReallocation() (*types.ReallocationRecord, error) {
	records, err := GetRecentReallocations(1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// TreasurySummary aggregates the persisted history for the status API.
type TreasurySummary struct {
	TotalRuns       int    `json:"total_runs"`
	TotalMints      int    `json:"total_mints"`
	SwitchedRuns    int    `json:"switched_runs"`
	HeldRuns        int    `json:"held_runs"`
	UnresolvedRuns  int    `json:"unresolved_runs"`
	LatestValue     string `json:"latest_value,omitempty"`
	LatestSnapshot  int64  `json:"latest_snapshot_id,omitempty"`
}

// GetTreasurySummary computes history-wide aggregates.
func GetTreasurySummary() (*TreasurySummary, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	summary := &TreasurySummary{}
	err := DB.QueryRow(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE outcome = 'SWITCHED'),
		       COUNT(*) FILTER (WHERE outcome = 'HELD'),
		       COUNT(*) FILTER (WHERE outcome = 'UNRESOLVED')
		FROM reallocation_records;
	`).Scan(&summary.TotalRuns, &summary.SwitchedRuns, &summary.HeldRuns, &summary.UnresolvedRuns)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate reallocations: %w", err)
	}

	if err := DB.QueryRow(`SELECT COUNT(*) FROM mint_records;`).Scan(&summary.TotalMints); err != nil {
		return nil, fmt.Errorf("failed to count mints: %w", err)
	}

	err = DB.QueryRow(`
		SELECT snapshot_id, total_value::text
		FROM value_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT 1;
	`).Scan(&summary.LatestSnapshot, &summary.LatestValue)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read latest snapshot: %w", err)
	}

	return summary, nil
}
