package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultListenAddr   = ":8080"
	defaultBaseURL      = "https://testnet.tonapi.io/v2"
	defaultPollInterval = 15 * time.Second
	defaultMaxAttempts  = 12
)

// Config is the explicit configuration passed into the service at
// construction. There are no process-wide mutable singletons; everything the
// poller and stores need travels through this struct.
type Config struct {
	ListenAddr string

	// Ledger query service.
	TonAPIBaseURL string
	TonAPIToken   string

	// Confirmation pacing.
	PollInterval time.Duration
	MaxAttempts  int
	// PollTimeout bounds background confirmation jobs; defaults to the worst
	// case poll duration plus two extra intervals of slack.
	PollTimeout time.Duration

	// Postgres account store when set; in-memory store otherwise.
	DatabaseURL string

	// Kafka publisher enabled when non-empty.
	KafkaBrokers []string
}

// Load reads configuration from the environment, with a best-effort .env
// file for local runs.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:    envOr("LISTEN_ADDR", defaultListenAddr),
		TonAPIBaseURL: envOr("TONAPI_BASE_URL", defaultBaseURL),
		TonAPIToken:   os.Getenv("TONAPI_TOKEN"),
		PollInterval:  defaultPollInterval,
		MaxAttempts:   defaultMaxAttempts,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
	}

	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}

	if v := os.Getenv("POLL_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("POLL_MAX_ATTEMPTS must be a positive integer, got %q", v)
		}
		cfg.MaxAttempts = n
	}

	cfg.PollTimeout = time.Duration(cfg.MaxAttempts+2) * cfg.PollInterval
	if v := os.Getenv("POLL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse POLL_TIMEOUT: %w", err)
		}
		cfg.PollTimeout = d
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
