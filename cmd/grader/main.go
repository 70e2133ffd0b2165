package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/audit"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/config"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/grader"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/providers/oddsapi"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/providers/results"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/sportconfig"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/store"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

func main() {
	fmt.Println("=== Fortuna Grader v1 ===")

	cfg := config.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "grader").Logger()

	registry, err := sportconfig.Load(cfg.SportConfigPath)
	if err != nil {
		fmt.Printf("❌ Failed to load sport config: %v\n", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.DSN)
	if err != nil {
		fmt.Printf("❌ Failed to connect to Holocron: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		fmt.Printf("❌ Holocron unreachable: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Connected to Holocron DB")

	auditDB, err := store.OpenAudit(cfg.AuditDSN)
	if err != nil {
		fmt.Printf("❌ Failed to connect audit role: %v\n", err)
		os.Exit(1)
	}
	defer auditDB.Close()
	fmt.Println("✓ Connected audit role")

	auditLog := audit.NewLogger(auditDB, cfg.EngineVersion, log)
	resultsFeed := results.NewClient(cfg.OddsAPIURL, cfg.OddsAPIKey, log)
	oddsClient := oddsapi.NewClient(cfg.OddsAPIURL, cfg.OddsAPIKey, log)

	g := grader.New(registry, resultsFeed, oddsClient, db, db, db, auditLog, cfg.GraderPollInterval, log)
	trainer := grader.NewTrainer(registry, db, auditLog, cfg.TrainInterval, cfg.TrainWindow, log)

	// Operator command: `grader promote <league> <version>` swaps the live
	// calibration pointer and exits. Staged versions go live only this way.
	if len(os.Args) > 1 && os.Args[1] == "promote" {
		if len(os.Args) != 4 {
			fmt.Println("usage: grader promote <league> <version>")
			os.Exit(2)
		}
		sport, err := models.ParseSport(os.Args[2])
		if err != nil {
			fmt.Printf("❌ Unknown league %q: %v\n", os.Args[2], err)
			os.Exit(2)
		}
		if err := trainer.Promote(ctx, sport, os.Args[3]); err != nil {
			fmt.Printf("❌ Promotion failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Calibration %s promoted for %s\n", os.Args[3], sport)
		return
	}

	graderErrors := make(chan error, 2)
	go func() { graderErrors <- g.Start(ctx) }()
	go func() { graderErrors <- trainer.Start(ctx) }()
	fmt.Printf("✓ Grader polling every %s, training every %s\n", cfg.GraderPollInterval, cfg.TrainInterval)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-graderErrors:
		if err != nil {
			fmt.Printf("❌ Grader error: %v\n", err)
			os.Exit(1)
		}

	case sig := <-shutdown:
		fmt.Printf("\n⚠️  Received signal: %v\n", sig)
		cancel()
	}

	fmt.Println("✓ Shutdown complete")
}
