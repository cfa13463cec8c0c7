package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
	BackendScylla = "scylla"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env         string
	HTTPAddr    string
	InstanceID  string
	CORSOrigins []string

	StoreBackend       string
	ChatStore          string
	IdempotencyBackend string

	MongoURI string
	MongoDB  string

	ScyllaHosts       []string
	ScyllaKeyspace    string
	ScyllaUsername    string
	ScyllaPassword    string
	ScyllaConsistency string
	ScyllaTimeout     time.Duration
	ScyllaReplication int

	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaGroupID       string
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	IdempotencyTTL time.Duration
	SessionTTL     time.Duration
	SignupGrant    int64
	ListingFee     int64

	WSRateLimit float64
	WSRateBurst int
}

// Load reads an optional .env file, then parses configuration from the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv parses configuration from the current environment only.
func FromEnv() (Config, error) {
	host, _ := os.Hostname()
	cfg := Config{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		InstanceID:         getEnv("INSTANCE_ID", host),
		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		ChatStore:          strings.ToLower(getEnv("CHAT_STORE", BackendMongo)),
		IdempotencyBackend: strings.ToLower(getEnv("IDEMPOTENCY_BACKEND", "")),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            getEnv("MONGO_DB", "rentspot"),
		ScyllaHosts:        splitList(getEnv("SCYLLA_HOSTS", "")),
		ScyllaKeyspace:     getEnv("SCYLLA_KEYSPACE", "rentspot_chat"),
		ScyllaUsername:     os.Getenv("SCYLLA_USERNAME"),
		ScyllaPassword:     os.Getenv("SCYLLA_PASSWORD"),
		ScyllaConsistency:  getEnv("SCYLLA_CONSISTENCY", "quorum"),
		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopicPrefix:   getEnv("KAFKA_TOPIC_PREFIX", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "*")),
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = "rentspot"
	}
	cfg.KafkaGroupID = getEnv("KAFKA_GROUP_ID", "rentspot-relay-"+cfg.InstanceID)

	var err error
	if cfg.ScyllaTimeout, err = parseDurationEnv("SCYLLA_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = parseDurationEnv("SESSION_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.RetryBackoff, err = parseDurationList("RETRY_BACKOFF", "1s,5s,30s"); err != nil {
		return Config{}, err
	}
	if cfg.ScyllaReplication, err = parseIntEnv("SCYLLA_REPLICATION_FACTOR", 1); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = parseIntEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.WSRateBurst, err = parseIntEnv("WS_RATE_BURST", 20); err != nil {
		return Config{}, err
	}
	grant, err := parseIntEnv("SIGNUP_GRANT", 1000)
	if err != nil {
		return Config{}, err
	}
	cfg.SignupGrant = int64(grant)
	fee, err := parseIntEnv("LISTING_FEE", 1)
	if err != nil {
		return Config{}, err
	}
	cfg.ListingFee = int64(fee)
	if cfg.WSRateLimit, err = parseFloatEnv("WS_RATE_LIMIT", 10); err != nil {
		return Config{}, err
	}

	if cfg.IdempotencyBackend == "" {
		cfg.IdempotencyBackend = cfg.StoreBackend
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendMongo:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.ChatStore {
	case BackendMongo, BackendScylla:
	default:
		return fmt.Errorf("invalid CHAT_STORE %q", c.ChatStore)
	}
	switch c.IdempotencyBackend {
	case BackendMemory, BackendMongo, BackendRedis:
	default:
		return fmt.Errorf("invalid IDEMPOTENCY_BACKEND %q", c.IdempotencyBackend)
	}
	if c.StoreBackend == BackendMongo && c.MongoURI == "" {
		return errors.New("MONGO_URI is required when STORE_BACKEND=mongo")
	}
	if c.IdempotencyBackend == BackendMongo && c.MongoURI == "" {
		return errors.New("MONGO_URI is required when IDEMPOTENCY_BACKEND=mongo")
	}
	if c.IdempotencyBackend == BackendRedis && c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required when IDEMPOTENCY_BACKEND=redis")
	}
	if c.StoreBackend == BackendMongo && c.ChatStore == BackendScylla && len(c.ScyllaHosts) == 0 {
		return errors.New("SCYLLA_HOSTS is required when CHAT_STORE=scylla")
	}
	if c.SignupGrant < 0 || c.ListingFee < 0 {
		return errors.New("SIGNUP_GRANT and LISTING_FEE must be non-negative")
	}
	if c.WSRateLimit <= 0 || c.WSRateBurst <= 0 {
		return errors.New("WS_RATE_LIMIT and WS_RATE_BURST must be positive")
	}
	return nil
}

// RelayEnabled reports whether outbox events are shipped to Kafka.
func (c Config) RelayEnabled() bool {
	return c.StoreBackend == BackendMongo && len(c.KafkaBrokers) > 0
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseDurationList(key, def string) ([]time.Duration, error) {
	var out []time.Duration
	for _, raw := range splitList(getEnv(key, def)) {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s component %q: %w", key, raw, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return v, nil
}

func parseFloatEnv(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s number: %w", key, err)
	}
	return v, nil
}
