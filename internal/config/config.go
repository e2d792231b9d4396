package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the stackd control plane
type Config struct {
	// Server configuration
	HTTPPort int    `env:"STACKD_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"STACKD_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage backend: "memory" or "redis"
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"memory"`

	// Redis configuration (used when StorageBackend is "redis")
	Redis RedisConfig

	// Supervisor configuration
	Supervisor SupervisorConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// SupervisorConfig holds health monitor and scaler configuration
type SupervisorConfig struct {
	DefaultProbeInterval time.Duration `env:"SUPERVISOR_PROBE_INTERVAL" envDefault:"30s"`
	ScalerInterval       time.Duration `env:"SUPERVISOR_SCALER_INTERVAL" envDefault:"15s"`
	DefaultCooldown      time.Duration `env:"SUPERVISOR_SCALE_COOLDOWN" envDefault:"60s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	ProvisionTimeout time.Duration `env:"TIMEOUT_PROVISION" envDefault:"120s"`
	ProbeTimeout     time.Duration `env:"TIMEOUT_PROBE" envDefault:"10s"`
	DeployTimeout    time.Duration `env:"TIMEOUT_DEPLOY" envDefault:"1800s"` // 30 minutes
	ShutdownTimeout  time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	// Validate storage backend
	switch c.StorageBackend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for redis storage backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s (must be memory or redis)", c.StorageBackend)
	}

	// Validate supervisor config
	if c.Supervisor.DefaultProbeInterval < time.Second {
		return fmt.Errorf("probe interval must be at least 1s")
	}
	if c.Supervisor.ScalerInterval < time.Second {
		return fmt.Errorf("scaler interval must be at least 1s")
	}

	// Validate timeouts
	if c.Timeouts.ProvisionTimeout <= 0 {
		return fmt.Errorf("provision timeout must be positive")
	}
	if c.Timeouts.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
