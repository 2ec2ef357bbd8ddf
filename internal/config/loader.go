package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "humancheck.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "HUMANCHECK_PORT")
	setString(&cfg.Server.CORSOrigin, "HUMANCHECK_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "HUMANCHECK_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "HUMANCHECK_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "HUMANCHECK_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "HUMANCHECK_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "HUMANCHECK_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "HUMANCHECK_LOG_LEVEL")
	setString(&cfg.Logging.Service, "HUMANCHECK_LOG_SERVICE")
	setInt64(&cfg.Cache.MaxSizeMB, "HUMANCHECK_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.RuleTTL, "HUMANCHECK_CACHE_RULE_TTL")
	setInt64(&cfg.Dispatch.MaxConcurrent, "HUMANCHECK_DISPATCH_MAX_CONCURRENT")
	setDuration(&cfg.Dispatch.DeliverTimeout, "HUMANCHECK_DISPATCH_TIMEOUT")
	setInt(&cfg.Dispatch.BreakerMaxFail, "HUMANCHECK_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Dispatch.BreakerTimeout, "HUMANCHECK_BREAKER_TIMEOUT")
	setBool(&cfg.MCP.Enabled, "HUMANCHECK_MCP_ENABLED")
	setString(&cfg.MCP.Addr, "HUMANCHECK_MCP_ADDR")
	setString(&cfg.MCP.APIKey, "HUMANCHECK_MCP_API_KEY")
	setString(&cfg.Otel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Otel.ServiceName, "OTEL_SERVICE_NAME")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Dispatch.MaxConcurrent < 1 {
		return errors.New("dispatch.max_concurrent must be >= 1")
	}
	if cfg.Dispatch.DeliverTimeout <= 0 {
		return errors.New("dispatch.deliver_timeout must be > 0")
	}
	for name, ch := range cfg.Notifiers {
		if ch.Type == "" {
			return fmt.Errorf("notifiers.%s.type is required", name)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
