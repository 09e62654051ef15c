package main

import (
	"context"
	"fmt"
	stlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/subnet-labs/subnet-indexer/internal/chainstate"
	"github.com/subnet-labs/subnet-indexer/internal/config"
	"github.com/subnet-labs/subnet-indexer/internal/dispatch"
	"github.com/subnet-labs/subnet-indexer/internal/handlers"
	"github.com/subnet-labs/subnet-indexer/internal/ingest"
	nats_client "github.com/subnet-labs/subnet-indexer/internal/nats"
	"github.com/subnet-labs/subnet-indexer/internal/server"
	"github.com/subnet-labs/subnet-indexer/internal/store"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		stlog.Fatalf("Failed to load configuration: %v", err) // Use standard log before Zap is up
	}

	// --- Logger ---
	logger, err := setupLogger(cfg.LogLevel)
	if err != nil {
		stlog.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync() // Flush logs before exiting
	}()

	logger.Info("Subnet Indexer starting up...",
		zap.String("instance_id", config.GenerateInstanceID(cfg.NatsDurablePrefix+"-")),
	)

	// --- Entity Store ---
	kv, err := setupStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to set up entity store", zap.Error(err))
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logger.Error("Error closing entity store", zap.Error(err))
		}
	}()

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := kv.Initialize(initCtx); err != nil {
		initCancel()
		logger.Fatal("Failed to initialize entity store", zap.Error(err))
	}
	initCancel()

	// --- Chain Gateway Client ---
	stateReader := chainstate.NewClient(cfg.ChainGatewayURL, cfg.ChainGatewayTimeout, logger)

	// --- Dispatcher & Handlers ---
	entities := handlers.NewEntities(kv)
	dispatcher := dispatch.New(logger)
	handlers.RegisterAll(dispatcher, entities, stateReader, logger)

	// --- NATS Client & Consumer ---
	nc, err := nats_client.Connect(cfg.NatsAddress, logger)
	if err != nil {
		logger.Fatal("Failed to establish NATS connection", zap.Error(err))
	}
	defer nc.Close()

	js, err := nats_client.ConnectJetStream(nc, logger)
	if err != nil {
		logger.Fatal("Failed to get JetStream context", zap.Error(err))
	}
	if err := nats_client.EnsureStream(js, cfg.NatsStreamName, []string{cfg.NatsEventSubject}, logger); err != nil {
		logger.Fatal("Failed to ensure event stream exists", zap.Error(err))
	}

	consumer, err := ingest.NewConsumer(nc, cfg, dispatcher, kv, logger)
	if err != nil {
		logger.Fatal("Failed to create event consumer", zap.Error(err))
	}
	if err := consumer.StartConsuming(); err != nil {
		logger.Fatal("Failed to start event consumer", zap.Error(err))
	}

	// --- Setup Router and HTTP Server ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		healthStatus := http.StatusOK
		healthMsg := "Subnet Indexer is healthy."

		if nc.Status() != nats.CONNECTED {
			healthStatus = http.StatusServiceUnavailable
			healthMsg = "NATS connection is down."
			logger.Warn("Health check: NATS is not connected")
		} else {
			healthMsg += " NATS: OK."
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(healthStatus)
		fmt.Fprintln(w, healthMsg)
	})
	r.Handle("/metrics", promhttp.Handler())

	srv := server.NewServer(cfg, r, logger)

	// --- Start Server Goroutine ---
	go srv.Start()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	logger.Info("Shutdown signal received, starting graceful shutdown...")

	consumer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Stop(ctx)

	logger.Info("Draining NATS connection...")
	if err := nc.Drain(); err != nil {
		logger.Error("Error draining NATS connection", zap.Error(err))
	}

	logger.Info("Subnet Indexer gracefully stopped")
}

// setupStore selects the configured store backend.
func setupStore(cfg *config.Config, logger *zap.Logger) (store.KV, error) {
	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("Using in-memory entity store; state will not survive a restart")
		return store.NewMemoryKV(), nil
	case "postgres", "":
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create database pool: %w", err)
		}
		return store.NewPostgresKV(pool, logger), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// setupLogger configures Zap based on the log level string.
func setupLogger(levelString string) (*zap.Logger, error) {
	var logLevel zapcore.Level
	if err := logLevel.Set(levelString); err != nil {
		logLevel = zapcore.InfoLevel // Default to info if parsing fails
	}

	zapCfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(logLevel),
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}
