package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/coursemarket-backend/api/routes"
	"github.com/angelmondragon/coursemarket-backend/internal/auth"
	"github.com/angelmondragon/coursemarket-backend/internal/catalog"
	"github.com/angelmondragon/coursemarket-backend/internal/chain"
	"github.com/angelmondragon/coursemarket-backend/internal/courses"
	"github.com/angelmondragon/coursemarket-backend/internal/ledger"
	"github.com/angelmondragon/coursemarket-backend/internal/marketplace"
	"github.com/angelmondragon/coursemarket-backend/pkg/auth/session"
	"github.com/angelmondragon/coursemarket-backend/pkg/config"
	"github.com/angelmondragon/coursemarket-backend/pkg/db"
	"github.com/angelmondragon/coursemarket-backend/pkg/instance"
	"github.com/angelmondragon/coursemarket-backend/pkg/logger"
	"github.com/angelmondragon/coursemarket-backend/pkg/metrics"
	"github.com/angelmondragon/coursemarket-backend/pkg/migrate"
	"github.com/angelmondragon/coursemarket-backend/pkg/outbox"
	"github.com/angelmondragon/coursemarket-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return err
	}

	journal, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}
	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	market, err := marketplace.NewService(marketplace.NewRepository(dbClient.DB()), journal, events)
	if err != nil {
		return err
	}
	state, err := market.Deploy(ctx, common.HexToAddress(cfg.Marketplace.Admin))
	if err != nil {
		return err
	}

	poolStats, err := dbClient.StatsCollector("coursemarket")
	if err != nil {
		return err
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		poolStats,
	)

	sequencer, err := chain.NewSequencer(chain.Params{
		DB:        dbClient,
		Engine:    market,
		Journal:   journal,
		Logger:    logg,
		Metrics:   metrics.NewSequencerMetrics(registry),
		BlockTime: cfg.Marketplace.BlockTime,
		QueueSize: cfg.Marketplace.QueueSize,
		Instance:  instance.GetID(),
	})
	if err != nil {
		return err
	}
	if err := sequencer.Start(ctx); err != nil {
		return err
	}
	defer sequencer.Stop()

	nonces, err := session.NewNonceManager(redisClient, cfg.Auth)
	if err != nil {
		return err
	}
	authService, err := auth.NewService(auth.ServiceParams{
		Nonces:     nonces,
		Contract:   market,
		JWTConfig:  cfg.JWT,
		AuthConfig: cfg.Auth,
	})
	if err != nil {
		return err
	}

	courseService, err := courses.NewService(cat, market)
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":              cfg.App.Env,
		"addr":             addr,
		"instance":         instance.GetID(),
		"contract_address": state.Address.Hex(),
		"catalog_courses":  cat.Len(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Gatherer:    registry,
			Catalog:     cat,
			Marketplace: market,
			Sequencer:   sequencer,
			Auth:        authService,
			Courses:     courseService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "api server shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
