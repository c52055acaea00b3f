package state

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openyield/treasury/internal/types"
)

// SaveValueSnapshot persists a treasury value snapshot and returns its ID.
func SaveValueSnapshot(snapshot types.ValueSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO value_snapshots (
			snapshot_timestamp, run_id, trigger_op,
			total_value, idle_base, active_pair_id, share_supply
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err := DB.QueryRow(
		query,
		snapshot.Timestamp, snapshot.RunID, string(snapshot.Trigger),
		snapshot.TotalValue, snapshot.IdleBase, int64(snapshot.ActivePair), snapshot.ShareSupply,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save value snapshot: %w", err)
	}

	log.Debug().
		Int64("snapshot_id", snapshotID).
		Str("trigger", string(snapshot.Trigger)).
		Str("total_value", snapshot.TotalValue).
		Msg("Value snapshot saved to database")

	return snapshotID, nil
}

// SaveMint persists a share mint record.
func SaveMint(record types.MintRecord) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO mint_records (mint_timestamp, recipient, deposit_value, shares_minted)
		VALUES ($1, $2, $3, $4);
	`
	_, err := DB.Exec(query, record.Timestamp, record.Recipient, record.DepositValue, record.SharesMinted)
	if err != nil {
		return fmt.Errorf("failed to save mint record: %w", err)
	}
	return nil
}

// SaveLiquidityAdded persists a liquidity provisioning record.
func SaveLiquidityAdded(record types.LiquidityAddedRecord) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO liquidity_added_records (
			record_timestamp, pair_id, token_a, token_b,
			desired_a, desired_b, actual_a, actual_b, liquidity_minted
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err := DB.Exec(
		query,
		record.Timestamp, int64(record.PairID), record.TokenA, record.TokenB,
		record.DesiredA, record.DesiredB, record.ActualA, record.ActualB, record.LiquidityMinted,
	)
	if err != nil {
		return fmt.Errorf("failed to save liquidity record: %w", err)
	}
	return nil
}

// SaveReallocation persists the outcome of one reallocation run. The run
// counter advances as part of the same save so numbering tracks persisted
// records only.
func SaveReallocation(record types.ReallocationRecord) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	if _, err := IncrementRunNumber(); err != nil {
		return err
	}

	query := `
		INSERT INTO reallocation_records (
			run_id, run_timestamp, previous_pair_id, next_pair_id,
			winning_rating, base_withdrawn, liquidity_minted, outcome
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8);
	`
	_, err := DB.Exec(
		query,
		record.RunID, record.Timestamp, int64(record.PreviousPair), int64(record.NextPair),
		record.WinningRating, record.BaseWithdrawn, record.LiquidityMinted, string(record.Outcome),
	)
	if err != nil {
		return fmt.Errorf("failed to save reallocation record: %w", err)
	}

	log.Info().
		Str("run_id", record.RunID).
		Str("outcome", string(record.Outcome)).
		Msg("Reallocation record saved to database")

	return nil
}

// Store adapts the package-level persistence functions to the recorder
// interfaces the engine packages accept.
type Store struct{}

func NewStore() *Store { return &Store{} }

func (Store) SaveValueSnapshot(snapshot types.ValueSnapshot) (int64, error) {
	return SaveValueSnapshot(snapshot)
}

func (Store) SaveMint(record types.MintRecord) error {
	return SaveMint(record)
}

func (Store) SaveLiquidityAdded(record types.LiquidityAddedRecord) error {
	return SaveLiquidityAdded(record)
}

func (Store) SaveReallocation(record types.ReallocationRecord) error {
	return SaveReallocation(record)
}
