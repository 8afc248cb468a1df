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

// Config holds all service settings, populated from environment variables.
type Config struct {
	OpenFDABaseURL  string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Fetch behavior.
	FetchTimeout         time.Duration
	FetchMaxRetries      int
	FetchRetryBackoff    time.Duration
	FetchRetryBackoffMax time.Duration
	FetchLimitMax        int

	// Dataset defaults for the API surface.
	DefaultLimit     int
	LookbackYears    int
	DatasetCacheSize int

	// Severity boost keywords; empty means the classifier default list.
	BoostKeywords []string
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first when
// present (local development convenience).
func Load() (*Config, error) {
	_ = godotenv.Load()

	fetchTimeout, err := parseDurationVar("FETCH_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	retryBackoff, err := parseDurationVar("FETCH_RETRY_BACKOFF", "500ms")
	if err != nil {
		return nil, err
	}
	retryBackoffMax, err := parseDurationVar("FETCH_RETRY_BACKOFF_MAX", "8s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDurationVar("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	maxRetries, err := parseIntVar("FETCH_MAX_RETRIES", 3, 0)
	if err != nil {
		return nil, err
	}
	limitMax, err := parseIntVar("FETCH_LIMIT_MAX", 1000, 1)
	if err != nil {
		return nil, err
	}
	defaultLimit, err := parseIntVar("DEFAULT_LIMIT", 300, 1)
	if err != nil {
		return nil, err
	}
	lookbackYears, err := parseIntVar("LOOKBACK_YEARS", 5, 1)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseIntVar("DATASET_CACHE_SIZE", 32, 1)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		OpenFDABaseURL:  envOrDefault("OPENFDA_BASE_URL", "https://api.fda.gov/drug/enforcement.json"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		FetchTimeout:         fetchTimeout,
		FetchMaxRetries:      maxRetries,
		FetchRetryBackoff:    retryBackoff,
		FetchRetryBackoffMax: retryBackoffMax,
		FetchLimitMax:        limitMax,

		DefaultLimit:     defaultLimit,
		LookbackYears:    lookbackYears,
		DatasetCacheSize: cacheSize,

		BoostKeywords: parseCSV(os.Getenv("BOOST_KEYWORDS")),
	}

	if cfg.OpenFDABaseURL == "" {
		return nil, errors.New("OPENFDA_BASE_URL is required")
	}
	if cfg.DefaultLimit > cfg.FetchLimitMax {
		return nil, fmt.Errorf("DEFAULT_LIMIT (%d) exceeds FETCH_LIMIT_MAX (%d)", cfg.DefaultLimit, cfg.FetchLimitMax)
	}
	if cfg.FetchRetryBackoff > cfg.FetchRetryBackoffMax {
		return nil, errors.New("FETCH_RETRY_BACKOFF exceeds FETCH_RETRY_BACKOFF_MAX")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationVar(key, fallback string) (time.Duration, error) {
	raw := envOrDefault(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func parseIntVar(key string, fallback, minimum int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
