package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/api"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/assembler"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/audit"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/calibration"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/config"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/consumer"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/lifecycle"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/orchestrator"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/providers/oddsapi"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/providers/results"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/providers/rosters"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/publisher"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/sportconfig"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/store"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

func main() {
	fmt.Println("=== Fortuna Decision Engine v1 ===")

	cfg := config.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "decision-engine").Logger()

	registry, err := sportconfig.Load(cfg.SportConfigPath)
	if err != nil {
		fmt.Printf("❌ Failed to load sport config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded sport config for %d sports\n", len(registry.Sports()))

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
	if err := db.EnsureSchema(ctx); err != nil {
		fmt.Printf("❌ Schema setup failed: %v\n", err)
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

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		fmt.Printf("❌ Failed to parse Redis URL: %v\n", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		fmt.Printf("❌ Failed to connect to Redis: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Connected to Redis")

	// Load promoted calibration versions into the in-memory registry
	versions := calibration.NewVersionRegistry()
	for _, sport := range registry.Sports() {
		version, segments, err := db.PromotedCalibration(ctx, sport)
		if err != nil {
			fmt.Printf("❌ Failed to load calibration for %s: %v\n", sport, err)
			os.Exit(1)
		}
		if version != nil {
			versions.Promote(*version, segments)
			fmt.Printf("✓ Calibration %s promoted for %s\n", version.Version, sport)
		}
	}

	auditLog := audit.NewLogger(auditDB, cfg.EngineVersion, log)

	// The baseline tracker mirrors the graded drift window; the refresher
	// rehydrates it and picks up calibration promotions made by the grader
	baseline := calibration.NewBaselineTracker()
	refresher := calibration.NewRefresher(db, registry, versions, baseline, 10*time.Minute, log)
	if err := refresher.RefreshOnce(ctx); err != nil {
		fmt.Printf("⚠️  Initial calibration refresh failed: %v\n", err)
	}
	go refresher.Start(ctx)
	fmt.Println("✓ Calibration refresher started")

	calEngine := calibration.NewEngine(versions, baseline, log)
	asm := assembler.New(registry, calEngine, cfg.EngineVersion, log)
	lc := lifecycle.NewManager(db, log)

	stream := publisher.NewStreamPublisher(redisClient)
	gate := publisher.NewGate(db, stream, log)

	pipeline := orchestrator.NewPipeline(
		registry, asm, lc, gate, stream, auditLog,
		db, db, db,
		cfg.EngineVersion, cfg.ModelVersion, log,
	)

	streamConsumer := consumer.NewStreamConsumer(redisClient, cfg.ConsumerID, cfg.ConsumerGroup)
	simWorker := consumer.NewRemoteWorker(redisClient, streamConsumer, func(sport models.Sport) int {
		sportCfg, err := registry.ConfigFor(sport)
		if err != nil {
			return 0
		}
		return len(sportCfg.SupportedMarkets)
	}, log)
	go simWorker.Start(ctx, registry.Sports())

	oddsClient := oddsapi.NewClient(cfg.OddsAPIURL, cfg.OddsAPIKey, log)
	rosterClient := rosters.NewClient(cfg.RosterFeedURL, log)
	scoresClient := results.NewClient(cfg.OddsAPIURL, cfg.OddsAPIKey, log)

	orch := orchestrator.New(
		registry, oddsClient, rosterClient, scoresClient, db, simWorker, pipeline, auditLog,
		orchestrator.Config{
			EngineVersion:   cfg.EngineVersion,
			ModelVersion:    cfg.ModelVersion,
			DataFeedVersion: cfg.DataFeedVersion,
			Iterations:      cfg.SimIterations,
			SeedBase:        cfg.SimSeedBase,
		},
		log,
	)
	go orch.Run(ctx)
	fmt.Println("✓ Orchestrator started")

	handler := api.NewHandler(registry, db, db, auditLog, db, api.Meta{
		EngineBuildID: cfg.EngineVersion,
		SimVersion:    cfg.ModelVersion,
		DeployedAt:    cfg.DeployedAt,
		Environment:   cfg.Environment,
		Status:        "ok",
	}, log)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		fmt.Printf("✓ Decision engine listening on %s\n", cfg.Port)
		fmt.Println("  Endpoints:")
		fmt.Println("    GET /health")
		fmt.Println("    GET /meta")
		fmt.Println("    GET /metrics")
		fmt.Println("    GET /api/v1/decisions/{league}/{gameID}")
		fmt.Println("    GET /api/v1/market-states")
		fmt.Println("    GET /api/v1/predictions")
		fmt.Println("    GET /api/v1/audit/{inputsHash}")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		fmt.Printf("❌ Server error: %v\n", err)
		os.Exit(1)

	case sig := <-shutdown:
		fmt.Printf("\n⚠️  Received signal: %v\n", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("⚠️  Graceful shutdown failed: %v\n", err)
			if err := srv.Close(); err != nil {
				fmt.Printf("❌ Could not stop server: %v\n", err)
			}
		}
	}

	fmt.Println("✓ Shutdown complete")
}
