package config

import (
	"errors"
	"os"

	"github.com/rs/zerolog/log"
)

// Application configuration loaded from environment variables. Populated at
// startup by LoadConfig.
var (
	// Authority is the only caller permitted to trigger reallocation.
	Authority string

	// TreasuryAccount is the venue-level account identifier the treasury
	// holds funds under.
	TreasuryAccount string

	// PairsManifestPath points at the YAML manifest declaring the base asset
	// and the candidate pair set.
	PairsManifestPath string

	// WebPort is the HTTP port for the read-only API and metrics.
	WebPort string

	// ReallocationSchedule is a cron expression for the daemon's periodic
	// reallocation trigger, e.g. "@every 10m".
	ReallocationSchedule string
)

// LoadConfig reads all required environment variables and sets the globals.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	Authority, err = getEnv("TREASURY_AUTHORITY")
	if err != nil {
		return err
	}

	TreasuryAccount, err = getEnv("TREASURY_ACCOUNT")
	if err != nil {
		return err
	}

	PairsManifestPath, err = getEnv("TREASURY_PAIRS_MANIFEST")
	if err != nil {
		return err
	}

	WebPort = getEnvOr("WEB_PORT", "8080")
	ReallocationSchedule = getEnvOr("REALLOCATION_SCHEDULE", "@every 10m")

	log.Debug().
		Str("authority", Authority).
		Str("pairsManifest", PairsManifestPath).
		Str("schedule", ReallocationSchedule).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOr retrieves a string environment variable with a default.
func getEnvOr(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}
