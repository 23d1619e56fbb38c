package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"empires-server/internal/accrual"
	"empires-server/internal/base"
	"empires-server/internal/catalog"
	"empires-server/internal/empire"
	"empires-server/internal/fleet"
	"empires-server/internal/ledger"
	"empires-server/internal/middleware"
	"empires-server/internal/notify"
	"empires-server/internal/queue"
	"empires-server/internal/server"
	"empires-server/internal/shared/config"
	"empires-server/internal/shared/database"
	"empires-server/internal/shared/logger"
	"empires-server/internal/shared/redis"
	"empires-server/internal/store/postgres"
)

func main() {
	if err := config.Init(); err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.Init()

	cfg := config.GlobalConfig
	log := slog.With("component", "main")
	log.Info("Starting empires server", "environment", cfg.Server.Environment)

	db, err := database.Connect()
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		log.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.Connect()
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	cat, err := catalog.NewProvider(slog.Default())
	if err != nil {
		log.Error("Invalid catalog", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores
	empireStore := postgres.NewEmpireStore(db, slog.Default())
	baseStore := postgres.NewBaseStore(db, slog.Default())
	queueStore := postgres.NewQueueStore(db, slog.Default())
	ledgerStore := postgres.NewLedgerStore(db, slog.Default())
	fleetStore := postgres.NewFleetStore(db, slog.Default())

	// Realtime event fan-out
	hub := notify.NewHub(slog.Default())
	go hub.Run(ctx)

	sinks := notify.MultiSink{hub, notify.NewLogSink(slog.Default())}
	if redisClient != nil {
		sinks = append(sinks, notify.NewRedisSink(redisClient, cfg.Redis.Channel, slog.Default()))
	}

	// Services
	ledgerService := ledger.NewService(ledgerStore, slog.Default())
	engine := queue.NewEngine(empireStore, baseStore, queueStore, fleetStore, ledgerService, cat, sinks, slog.Default())
	baseService := base.NewService(baseStore, engine, cat, slog.Default())
	fleetService := fleet.NewService(fleetStore, baseStore, slog.Default())
	empireService := empire.NewService(empireStore, baseStore, ledgerService,
		cfg.Game.StartingCredits, cfg.Game.StartingBases, slog.Default())

	if err := baseService.EnsureUniverse(ctx); err != nil {
		log.Error("Failed to seed universe", "error", err)
		os.Exit(1)
	}

	// Background loops
	go engine.RunSweeper(ctx, cfg.Game.SweepInterval)

	ticker := accrual.NewTicker(empireStore, baseStore, ledgerService, cat, cfg.Game.AccrualPeriod, slog.Default())
	go ticker.Run(ctx)

	// HTTP stack
	routes := server.NewRoutes(db, cat, empireService, baseService, fleetService, engine, hub, slog.Default())
	mux := routes.Setup()

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		Enabled:           cfg.RateLimit.Enabled,
	})
	corsMiddleware := middleware.NewCORS()

	handler := corsMiddleware.Middleware(rateLimiter.Middleware(mux))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}

	log.Info("Server stopped")
}
