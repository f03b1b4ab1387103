package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"swaplace/core/events"
	"swaplace/gateway/auth"
	"swaplace/gateway/middleware"
	"swaplace/observability/logging"
	"swaplace/observability/metrics"
	telemetry "swaplace/observability/otel"
	"swaplace/services/swapd/config"
	"swaplace/services/swapd/ledger"
	"swaplace/services/swapd/server"
	"swaplace/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/swapd/config.yaml", "path to swapd configuration file (.yaml or .toml)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("swapd: load config: %v", err)
	}
	env := strings.TrimSpace(os.Getenv("SWAPLACE_ENV"))
	if env == "" {
		env = cfg.Environment
	}
	logger := logging.SetupWithOptions(logging.Options{
		Service:    "swapd",
		Env:        env,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	otelCfg := telemetry.ConfigFromEnv("swapd", env)
	if otelCfg.Enabled() {
		shutdownTelemetry, err := telemetry.Init(context.Background(), otelCfg)
		if err != nil {
			log.Fatalf("swapd: init telemetry: %v", err)
		}
		defer func() { _ = shutdownTelemetry(context.Background()) }()
	}

	db, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		log.Fatalf("swapd: open storage: %v", err)
	}
	defer db.Close()

	quota, err := cfg.Engine.Quota.Quota()
	if err != nil {
		log.Fatalf("swapd: %v", err)
	}
	l, err := ledger.New(db, ledger.Options{
		EngineAddress: common.HexToAddress(cfg.Engine.Address),
		Tokens:        cfg.Tokens,
		Paused:        cfg.Engine.Paused,
		Quota:         quota,
		Emitter:       events.LogEmitter{Logger: logger},
		Observer:      metrics.Swaplace(),
		Gauge:         metrics.Swaplace(),
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("swapd: ledger: %v", err)
	}
	if _, err := l.ApplyGenesis(cfg.Genesis); err != nil {
		log.Fatalf("swapd: %v", err)
	}
	if escrowed, err := l.Escrowed(); err == nil {
		metrics.Swaplace().SetEscrowed(escrowed)
	}

	var replay auth.ReplayPersistence
	if path := strings.TrimSpace(cfg.Auth.ReplayPath); path != "" {
		store, err := auth.OpenLevelDBReplayStore(path)
		if err != nil {
			log.Fatalf("swapd: %v", err)
		}
		defer store.Close()
		replay = store
	}
	authenticator := auth.NewAuthenticator(cfg.Auth.TimestampSkew.Duration, cfg.Auth.ReplayCapacity, nil, replay)
	if err := authenticator.HydrateSeen(context.Background()); err != nil {
		logger.Warn("hydrate replay cache", slog.String("error", err.Error()))
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RatePerSecond > 0 {
		limit := middleware.RateLimit{RatePerSecond: cfg.RateLimit.RatePerSecond, Burst: cfg.RateLimit.Burst}
		write := limit
		write.Tokens = map[string]int{"POST /v1/swaps": cfg.RateLimit.CreateCost}
		limiter = middleware.NewRateLimiter(map[string]middleware.RateLimit{
			server.RateLimitRead:      limit,
			server.RateLimitWrite:     write,
			server.RateLimitSignature: limit,
		}, logger)
	}

	srv, err := server.New(server.Config{ListenAddress: cfg.ListenAddress}, l, authenticator, limiter, logger)
	if err != nil {
		log.Fatalf("swapd: server: %v", err)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("swapd starting",
		slog.String("engine", l.EngineAddress().Hex()),
		slog.String("storage", cfg.Storage.Backend),
		slog.Int("tokens", len(cfg.Tokens)))
	if err := srv.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("http server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
