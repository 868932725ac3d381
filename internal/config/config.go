package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPPort string
	LogLevel string

	CachePath string

	RemoteBaseURL   string
	RemoteAuthToken string
	UserID          string

	BlobBaseURL     string
	AnalysisBaseURL string

	ProbeIntervalSeconds    int
	ProbeTimeoutSeconds     int
	DrainMinIntervalSeconds int

	RemoteTimeoutSeconds   int
	BlobTimeoutSeconds     int
	AnalysisTimeoutSeconds int

	RetryMaxAttempts       int
	RetryInitialBackoffMS  int
	RetryMaxBackoffMS      int
	BreakerEnabled         bool
	BreakerOpenTimeoutSecs int
}

func Load() Config {
	remoteBase := mustEnv("REMOTE_BASE_URL", "http://localhost:8090")
	return Config{
		HTTPPort: mustEnv("SYNCD_HTTP_PORT", "8700"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		CachePath: mustEnv("CACHE_PATH", "./data/docvault.db"),

		RemoteBaseURL:   remoteBase,
		RemoteAuthToken: mustEnv("REMOTE_AUTH_TOKEN", ""),
		UserID:          mustEnv("USER_ID", "local"),

		// The blob and analysis services usually live behind the same
		// gateway as the document store.
		BlobBaseURL:     mustEnv("BLOB_BASE_URL", remoteBase),
		AnalysisBaseURL: mustEnv("ANALYSIS_BASE_URL", remoteBase),

		ProbeIntervalSeconds:    mustEnvInt("PROBE_INTERVAL_SECONDS", 15),
		ProbeTimeoutSeconds:     mustEnvInt("PROBE_TIMEOUT_SECONDS", 5),
		DrainMinIntervalSeconds: mustEnvInt("DRAIN_MIN_INTERVAL_SECONDS", 30),

		RemoteTimeoutSeconds:   mustEnvInt("REMOTE_TIMEOUT_SECONDS", 30),
		BlobTimeoutSeconds:     mustEnvInt("BLOB_TIMEOUT_SECONDS", 300),
		AnalysisTimeoutSeconds: mustEnvInt("ANALYSIS_TIMEOUT_SECONDS", 600),

		RetryMaxAttempts:       mustEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoffMS:  mustEnvInt("RETRY_INITIAL_BACKOFF_MS", 100),
		RetryMaxBackoffMS:      mustEnvInt("RETRY_MAX_BACKOFF_MS", 2000),
		BreakerEnabled:         mustEnvBool("BREAKER_ENABLED", true),
		BreakerOpenTimeoutSecs: mustEnvInt("BREAKER_OPEN_TIMEOUT_SECONDS", 30),
	}
}

func (c Config) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSeconds) * time.Second
}

func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

func (c Config) DrainMinInterval() time.Duration {
	return time.Duration(c.DrainMinIntervalSeconds) * time.Second
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
