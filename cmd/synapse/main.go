package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aescanero/synapse/internal/application/orchestrator"
	"github.com/aescanero/synapse/internal/application/steps"
	"github.com/aescanero/synapse/internal/application/workers"
	"github.com/aescanero/synapse/internal/config"
	"github.com/aescanero/synapse/internal/logging"
	memoryevents "github.com/aescanero/synapse/pkg/adapters/events/memory"
	redisevents "github.com/aescanero/synapse/pkg/adapters/events/redis"
	"github.com/aescanero/synapse/pkg/adapters/llm"
	"github.com/aescanero/synapse/pkg/adapters/metrics/prometheus"
	memorystorage "github.com/aescanero/synapse/pkg/adapters/storage/memory"
	redisstorage "github.com/aescanero/synapse/pkg/adapters/storage/redis"
	sqlitestorage "github.com/aescanero/synapse/pkg/adapters/storage/sqlite"
	"github.com/aescanero/synapse/pkg/api/grpc"
	"github.com/aescanero/synapse/pkg/api/http"
	"github.com/aescanero/synapse/pkg/api/websocket"
	"github.com/aescanero/synapse/pkg/ports"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting Synapse",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("storage_backend", cfg.StorageBackend),
		zap.String("events_backend", cfg.EventsBackend))

	ctx := context.Background()

	// Initialize Redis client when a backend needs it
	var redisClient *goredis.Client
	if cfg.UsesRedis() {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// Initialize adapters
	var eventBus ports.EventBus
	switch cfg.EventsBackend {
	case "redis":
		eventBus = redisevents.NewStreamsEventBus(redisClient, "", logger)
	default:
		eventBus = memoryevents.NewInMemoryEventBus()
	}

	var runStorage ports.RunStorage
	var sqliteStore *sqlitestorage.RunStorage
	switch cfg.StorageBackend {
	case "redis":
		runStorage = redisstorage.NewRunStorage(redisClient, cfg.RunRetention, logger)
	case "sqlite":
		sqliteStore, err = sqlitestorage.Open(cfg.SQLite.Path, logger)
		if err != nil {
			logger.Fatal("failed to open SQLite run storage", zap.Error(err))
		}
		if cfg.RunRetention > 0 {
			pruned, err := sqliteStore.Prune(ctx, time.Now().Add(-cfg.RunRetention))
			if err != nil {
				logger.Error("failed to prune old runs", zap.Error(err))
			} else {
				logger.Info("pruned old runs", zap.Int64("count", pruned))
			}
		}
		runStorage = sqliteStore
	default:
		runStorage = memorystorage.NewInMemoryRunStorage()
	}

	metricsRegistry := promclient.NewRegistry()
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsCollector := prometheus.NewCollector(metricsRegistry)

	llmClient, err := llm.NewClient(&llm.Config{
		Provider:       cfg.LLM.Provider,
		APIKey:         cfg.LLM.APIKey,
		RequestTimeout: cfg.LLM.RequestTimeout,
		Metrics:        metricsCollector,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("failed to create LLM client", zap.Error(err))
	}
	if llmClient == nil {
		logger.Warn("no LLM API key configured, agent nodes will fail with AgentUnavailable")
	}

	registry := steps.NewDefaultRegistry(steps.Options{
		LLM: llmClient,
		Agent: steps.AgentDefaults{
			Model:       cfg.LLM.DefaultModel,
			MaxTokens:   cfg.LLM.DefaultMaxTokens,
			Temperature: cfg.LLM.DefaultTemperature,
		},
		FileRoot: cfg.Executor.FileRoot,
		Logger:   logger,
	})

	// Initialize application components
	orchestratorMgr := orchestrator.NewManager(
		eventBus,
		runStorage,
		metricsCollector,
		registry,
		logger,
		cfg.Timeouts.RunExecutionTimeout,
		orchestrator.WithNodeTimeout(cfg.Timeouts.NodeExecutionTimeout),
		orchestrator.WithMaxParallel(cfg.Executor.MaxParallel),
	)

	workerPool := workers.NewPool(
		cfg.Workers.PoolSize,
		cfg.Workers.QueueSize,
		orchestratorMgr,
		metricsCollector,
		logger,
		cfg.Workers.HealthCheckInterval,
	)
	orchestratorMgr.SetDispatcher(workerPool)

	// Start worker pool
	if err := workerPool.Start(); err != nil {
		logger.Fatal("failed to start worker pool", zap.Error(err))
	}

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Port:         cfg.HTTPPort,
		Orchestrator: orchestratorMgr,
		Workers:      workerPool,
		Gatherer:     metricsRegistry,
		Version:      Version,
		Logger:       logger,
	})

	// Add WebSocket handler to HTTP server
	wsHandler := websocket.NewHandler(eventBus, orchestratorMgr, logger)
	httpServer.SetupWebSocket(wsHandler)

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:          cfg.GRPCPort,
		Checker:       workerPool.Health(),
		CheckInterval: cfg.Workers.HealthCheckInterval,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}

	// Start servers
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("Synapse started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize),
		zap.Strings("step_types", registry.Types()))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	// Shutdown components
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if err := orchestratorMgr.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", zap.Error(err))
	}

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if sqliteStore != nil {
		if err := sqliteStore.Close(); err != nil {
			logger.Error("SQLite close error", zap.Error(err))
		}
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("Synapse shut down complete")
}
