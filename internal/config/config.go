package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka ingest and audit. Both are off unless KafkaEnabled.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaAuditTopic  string
	KafkaGroupID     string

	BatchSize          int
	BatchFlushInterval time.Duration
	TransformWorkers   int

	// SQLite query audit log. Empty disables it.
	AuditDBPath string

	// Per-client limit on /api/v1 requests. Zero disables limiting.
	QueryRateLimit int // requests per minute
	QueryRateBurst int

	// Synthetic data seeded at startup.
	DataSeed       uint64
	DataSampleSize int

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s"))
	if err != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	workers, err := parseNonNegative("TRANSFORM_WORKERS", "4")
	if err != nil {
		return nil, err
	}

	rateLimit, err := parseNonNegative("QUERY_RATE_LIMIT", "600")
	if err != nil {
		return nil, err
	}

	rateBurst, err := parseNonNegative("QUERY_RATE_BURST", "30")
	if err != nil {
		return nil, err
	}

	seed, err := strconv.ParseUint(sharedcfg.EnvOrDefault("DATA_SEED", "42"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DATA_SEED: %w", err)
	}

	sampleSize, err := parseNonNegative("DATA_SAMPLE_SIZE", "10000")
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-outage-events"),
		KafkaAuditTopic:    sharedcfg.EnvOrDefault("KAFKA_AUDIT_TOPIC", "query-audit"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "outage-equity-service"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		TransformWorkers:   workers,
		AuditDBPath:        os.Getenv("AUDIT_DB_PATH"),
		QueryRateLimit:     rateLimit,
		QueryRateBurst:     rateBurst,
		DataSeed:           seed,
		DataSampleSize:     sampleSize,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaAuditTopic == "" {
			return nil, errors.New("KAFKA_AUDIT_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	if cfg.QueryRateLimit > 0 && cfg.QueryRateBurst == 0 {
		return nil, errors.New("QUERY_RATE_BURST must be positive when QUERY_RATE_LIMIT is set")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

func parseNonNegative(key, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: must be a non-negative integer", key)
	}
	return n, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
