package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/holiman/uint256"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/openyield/treasury/internal/config"
	"github.com/openyield/treasury/internal/logger"
	"github.com/openyield/treasury/internal/metrics"
	"github.com/openyield/treasury/internal/sim"
	"github.com/openyield/treasury/internal/state"
	"github.com/openyield/treasury/internal/treasury"
	"github.com/openyield/treasury/internal/utils"
	"github.com/openyield/treasury/internal/web"
)

// main is the entry point for the treasury daemon.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Treasury daemon starting...")

	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	manifest, err := config.LoadPairsManifest(config.PairsManifestPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load pairs manifest")
	}
	log.Info().Int("candidates", len(manifest.Pairs)).Msg("Pairs manifest loaded")

	// --- 2. Venue Initialization (with Safety Switch) ---
	// Only the simulated venue is wired up; halting on any other mode keeps
	// a misconfigured deployment from touching real capital.
	treasuryMode := os.Getenv("TREASURY_MODE")
	if treasuryMode != "sim" {
		log.Fatal().Msg("TREASURY_MODE is not set to 'sim'. Halting to prevent accidental execution. Set TREASURY_MODE=sim to run against the simulated venue.")
	}

	venue := sim.NewVenue(manifest.Base.WrappedDenom, manifest.Base.Denom, config.TreasuryAccount, nil)
	if err := seedVenue(venue, manifest); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed simulated venue")
	}

	store := state.NewStore()
	controller, err := treasury.New(treasury.Config{
		ShareToken:        sim.NewShareLedger(),
		Oracle:            sim.NewOracle(venue),
		Venue:             venue,
		Book:              sim.NewBook(venue),
		BaseToken:         manifest.BaseToken(),
		CandidatePairs:    manifest.CandidatePairs(),
		Authority:         config.Authority,
		Recorder:          store,
		LiquidityRecorder: store,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create treasury controller")
	}
	log.Info().Msg("Treasury controller created successfully")

	if err := bootstrapDeposit(venue, controller); err != nil {
		log.Fatal().Err(err).Msg("Failed to bootstrap initial deposit")
	}

	// --- 3. Start Web Server ---
	webServer := web.NewWebServer(config.WebPort, controller)
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting treasury web API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 4. Schedule Reallocation Runs ---
	scheduler := cron.New()
	_, err = scheduler.AddFunc(config.ReallocationSchedule, func() {
		runReallocation(controller, manifest.Base.Precision)
	})
	if err != nil {
		log.Fatal().Err(err).Str("schedule", config.ReallocationSchedule).Msg("Invalid reallocation schedule")
	}
	scheduler.Start()
	log.Info().Str("schedule", config.ReallocationSchedule).Msg("Reallocation scheduler started")

	// --- 5. Wait for Shutdown ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("Shutdown signal received, stopping scheduler...")
	<-scheduler.Stop().Done()
	log.Info().Msg("Treasury daemon stopped")
}

// runReallocation executes one scheduled reallocation run and publishes the
// resulting metrics.
func runReallocation(controller *treasury.Controller, basePrecision int) {
	result, err := controller.Reallocate(config.Authority, time.Now())
	if err != nil {
		metrics.ReallocationErrors.Inc()
		log.Error().Err(err).Msg("Reallocation run failed")
		return
	}

	metrics.ReallocationRuns.WithLabelValues(string(result.Outcome)).Inc()
	metrics.ActivePair.Set(float64(controller.ActivePairID()))

	total, err := controller.TotalValue()
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute total value after reallocation")
		return
	}
	if display, err := utils.BaseUnitsToDisplay(total, basePrecision); err == nil {
		metrics.TotalValue.Set(display)
	}

	log.Info().
		Str("run_id", result.RunID).
		Str("outcome", string(result.Outcome)).
		Str("total_value", total.Dec()).
		Msg("Reallocation run completed")
}

// seedVenue registers the manifest's candidate pairs and external prices on
// the simulated venue.
func seedVenue(venue *sim.Venue, manifest *config.PairsManifest) error {
	for _, entry := range manifest.Pairs {
		if entry.SimReserve0 == "" || entry.SimReserve1 == "" {
			return fmt.Errorf("pair %d is missing sim reserves; dry-run mode requires seeded pools", entry.ID)
		}
		reserve0, err := uint256.FromDecimal(entry.SimReserve0)
		if err != nil {
			return fmt.Errorf("pair %d has invalid sim_reserve0: %w", entry.ID, err)
		}
		reserve1, err := uint256.FromDecimal(entry.SimReserve1)
		if err != nil {
			return fmt.Errorf("pair %d has invalid sim_reserve1: %w", entry.ID, err)
		}

		pairs := manifest.CandidatePairs()
		var seeded bool
		for _, pair := range pairs {
			if pair.ID != entry.ID {
				continue
			}
			if err := venue.RegisterPair(pair, reserve0, reserve1); err != nil {
				return err
			}
			seeded = true
		}
		if !seeded {
			return fmt.Errorf("pair %d not found in candidate set", entry.ID)
		}

		for _, t := range []struct {
			denom string
			price *config.SimPrice
		}{
			{entry.Token0.Denom, entry.Token0.SimPrice},
			{entry.Token1.Denom, entry.Token1.SimPrice},
		} {
			if t.price != nil {
				venue.SetExternalPrice(t.denom, t.price.Num, t.price.Den)
			}
		}
	}
	return nil
}

// bootstrapDeposit funds the treasury account from TREASURY_SIM_DEPOSIT and
// mints the opening share position, exercising the deposit path on startup.
func bootstrapDeposit(venue *sim.Venue, controller *treasury.Controller) error {
	depositStr := os.Getenv("TREASURY_SIM_DEPOSIT")
	if depositStr == "" {
		log.Info().Msg("TREASURY_SIM_DEPOSIT not set, starting with an empty treasury")
		return nil
	}

	deposit, err := uint256.FromDecimal(depositStr)
	if err != nil {
		return fmt.Errorf("invalid TREASURY_SIM_DEPOSIT: %w", err)
	}

	venue.CreditNative(config.TreasuryAccount, deposit)
	minted, err := controller.Mint(config.Authority, deposit, time.Now())
	if err != nil {
		return err
	}
	metrics.MintsTotal.Inc()

	log.Info().
		Str("deposit", deposit.Dec()).
		Str("shares", minted.Dec()).
		Msg("Opening deposit minted")
	return nil
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
