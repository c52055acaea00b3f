package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS value_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			run_id VARCHAR(64),
			trigger_op VARCHAR(32) NOT NULL,
			total_value NUMERIC(78, 0) NOT NULL,
			idle_base NUMERIC(78, 0) NOT NULL,
			active_pair_id BIGINT NOT NULL DEFAULT 0,
			share_supply NUMERIC(78, 0) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_value_snapshots_timestamp ON value_snapshots(snapshot_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_value_snapshots_trigger ON value_snapshots(trigger_op, snapshot_timestamp DESC);

		CREATE TABLE IF NOT EXISTS mint_records (
			mint_id SERIAL PRIMARY KEY,
			mint_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			recipient VARCHAR(128) NOT NULL,
			deposit_value NUMERIC(78, 0) NOT NULL,
			shares_minted NUMERIC(78, 0) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_mint_records_timestamp ON mint_records(mint_timestamp DESC);

		CREATE TABLE IF NOT EXISTS liquidity_added_records (
			record_id SERIAL PRIMARY KEY,
			record_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			pair_id BIGINT NOT NULL,
			token_a VARCHAR(128) NOT NULL,
			token_b VARCHAR(128) NOT NULL,
			desired_a NUMERIC(78, 0) NOT NULL,
			desired_b NUMERIC(78, 0) NOT NULL,
			actual_a NUMERIC(78, 0) NOT NULL,
			actual_b NUMERIC(78, 0) NOT NULL,
			liquidity_minted NUMERIC(78, 0) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_liquidity_added_pair ON liquidity_added_records(pair_id, record_timestamp DESC);

		CREATE TABLE IF NOT EXISTS reallocation_records (
			run_number SERIAL PRIMARY KEY,
			run_id VARCHAR(64) NOT NULL,
			run_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			previous_pair_id BIGINT NOT NULL,
			next_pair_id BIGINT NOT NULL,
			winning_rating NUMERIC(78, 0),
			base_withdrawn NUMERIC(78, 0),
			liquidity_minted NUMERIC(78, 0),
			outcome VARCHAR(32) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_reallocation_records_timestamp ON reallocation_records(run_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_reallocation_records_outcome ON reallocation_records(outcome, run_timestamp DESC);
	`

	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	if err := ensureRunCounterTable(); err != nil {
		return err
	}

	log.Info().Msg("Database schema ensured successfully")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
