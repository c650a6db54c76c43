// Package config builds runtime configuration from environment variables so
// main stays lean. Matching thresholds live in internal/resolve.Config; the
// env layer only overrides them, it does not define them.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full runtime configuration for the resolution service.
type Config struct {
	HTTP     HTTPConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Log      LogConfig
	Batch    BatchConfig
	Resolve  ResolveConfig
}

// HTTPConfig captures HTTP server level configuration.
type HTTPConfig struct {
	Addr string
}

// PostgresConfig captures database connectivity.
type PostgresConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig captures the optional canonical-resolution cache.
// An empty URL disables the cache; the graph falls back to store lookups.
type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig captures the optional decision-event stream.
// Empty brokers disable publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LogConfig selects handler format and level for the root logger.
type LogConfig struct {
	Format string // "text" or "json"
	Level  string // "debug", "info", "warn", "error"
}

// BatchConfig bounds the background jobs so they can be scheduled incrementally.
type BatchConfig struct {
	SkeletonInterval  time.Duration
	SkeletonBatchSize int
	DedupeInterval    time.Duration
	DedupeBatchSize   int
	DedupeMaxEntities int
	DedupeWorkers     int
	RuleReloadTTL     time.Duration
}

// ResolveConfig carries env overrides for the decision thresholds and scoring
// knobs. Zero means unset; the resolver keeps its tuned default for that
// field, so operators override only what they mean to.
type ResolveConfig struct {
	AutoMatchThreshold float64
	ReviewFloor        float64
	HouseholdNameSim   float64
	FuzzyNameSim       float64
	MinScore           float64
	MaxCandidates      int
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr: envString("TRAPPER_ADDR", ":8080"),
		},
		Postgres: PostgresConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("TRAPPER_DB_MAX_OPEN", 10),
			MaxIdleConns: envInt("TRAPPER_DB_MAX_IDLE", 5),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			DialTimeout:  envDuration("TRAPPER_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("TRAPPER_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("TRAPPER_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envStrings("KAFKA_BROKERS"),
			Topic:   envString("TRAPPER_DECISION_TOPIC", "trapper.match-decisions"),
		},
		Log: LogConfig{
			Format: envString("TRAPPER_LOG_FORMAT", "text"),
			Level:  envString("TRAPPER_LOG_LEVEL", "info"),
		},
		Batch: BatchConfig{
			SkeletonInterval:  envDuration("TRAPPER_SKELETON_INTERVAL", 15*time.Minute),
			SkeletonBatchSize: envInt("TRAPPER_SKELETON_BATCH", 200),
			DedupeInterval:    envDuration("TRAPPER_DEDUPE_INTERVAL", time.Hour),
			DedupeBatchSize:   envInt("TRAPPER_DEDUPE_BATCH", 500),
			DedupeMaxEntities: envInt("TRAPPER_DEDUPE_MAX_ENTITIES", 50000),
			DedupeWorkers:     envInt("TRAPPER_DEDUPE_WORKERS", 0),
			RuleReloadTTL:     envDuration("TRAPPER_RULE_RELOAD_TTL", time.Minute),
		},
		Resolve: ResolveConfig{
			AutoMatchThreshold: envFloat("TRAPPER_AUTO_MATCH_THRESHOLD", 0),
			ReviewFloor:        envFloat("TRAPPER_REVIEW_FLOOR", 0),
			HouseholdNameSim:   envFloat("TRAPPER_HOUSEHOLD_NAME_SIM", 0),
			FuzzyNameSim:       envFloat("TRAPPER_FUZZY_NAME_SIM", 0),
			MinScore:           envFloat("TRAPPER_MIN_SCORE", 0),
			MaxCandidates:      envInt("TRAPPER_MAX_CANDIDATES", 0),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envStrings(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
