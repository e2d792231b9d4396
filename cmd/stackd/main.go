package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stackd-io/stackd/internal/application/orchestrator"
	"github.com/stackd-io/stackd/internal/application/supervisor"
	"github.com/stackd-io/stackd/internal/config"
	"github.com/stackd-io/stackd/internal/ports"
	memevents "github.com/stackd-io/stackd/pkg/adapters/events/memory"
	redisevents "github.com/stackd-io/stackd/pkg/adapters/events/redis"
	"github.com/stackd-io/stackd/pkg/adapters/metrics/prometheus"
	"github.com/stackd-io/stackd/pkg/adapters/probe"
	"github.com/stackd-io/stackd/pkg/adapters/provisioner/local"
	memstorage "github.com/stackd-io/stackd/pkg/adapters/storage/memory"
	redisstorage "github.com/stackd-io/stackd/pkg/adapters/storage/redis"
	"github.com/stackd-io/stackd/pkg/api/grpc"
	"github.com/stackd-io/stackd/pkg/api/http"
	"github.com/stackd-io/stackd/pkg/api/websocket"
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
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting stackd control plane",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("storage_backend", cfg.StorageBackend))

	// Initialize storage and event bus
	var (
		repo        ports.Repository
		eventBus    ports.EventBus
		redisClient *goredis.Client
	)

	switch cfg.StorageBackend {
	case "redis":
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

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

		repo = redisstorage.NewRepository(redisClient, logger)

		bus, err := redisevents.NewStreamsEventBus(
			redisClient,
			"stackd-subscribers",
			fmt.Sprintf("stackd-%d", os.Getpid()),
			logger,
		)
		if err != nil {
			logger.Fatal("failed to create event bus", zap.Error(err))
		}
		eventBus = bus

	default:
		repo = memstorage.NewRepository(logger)
		eventBus = memevents.NewInMemoryEventBus()
	}

	// Initialize adapters
	metricsCollector := prometheus.NewCollector()
	provisioner := local.NewProvisioner(logger)
	prober := probe.NewHTTPProber(cfg.Timeouts.ProbeTimeout, logger)

	// Initialize application components
	validator := orchestrator.NewValidator()
	rollback := orchestrator.NewRollbackController(logger)

	deployer := orchestrator.NewDeployer(
		provisioner,
		eventBus,
		metricsCollector,
		logger,
		cfg.Timeouts.ProvisionTimeout,
	)

	healthMonitor := supervisor.NewHealthMonitor(
		repo,
		prober,
		metricsCollector,
		logger,
		cfg.Supervisor.DefaultProbeInterval,
		cfg.Timeouts.ProbeTimeout,
	)

	manager := orchestrator.NewManager(
		repo,
		deployer,
		eventBus,
		metricsCollector,
		validator,
		rollback,
		healthMonitor,
		logger,
		cfg.Timeouts.DeployTimeout,
	)

	scaler := supervisor.NewScaler(
		repo,
		provisioner,
		manager,
		deployer,
		logger,
		cfg.Supervisor.ScalerInterval,
		cfg.Supervisor.DefaultCooldown,
	)
	scaler.Start()

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Port:    cfg.HTTPPort,
		Manager: manager,
		Logger:  logger,
	})

	wsHandler := websocket.NewHandler(eventBus, logger)
	httpServer.SetupWebSocket(wsHandler)

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:    cfg.GRPCPort,
		Manager: manager,
		Logger:  logger,
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

	logger.Info("stackd control plane started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	scaler.Stop()
	healthMonitor.Stop()

	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error("manager shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("stackd shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
