package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTPPort != "8700" {
		t.Errorf("HTTPPort = %q, want 8700", cfg.HTTPPort)
	}
	if cfg.CachePath != "./data/docvault.db" {
		t.Errorf("CachePath = %q", cfg.CachePath)
	}
	if cfg.RemoteBaseURL != "http://localhost:8090" {
		t.Errorf("RemoteBaseURL = %q", cfg.RemoteBaseURL)
	}
	if cfg.BlobBaseURL != cfg.RemoteBaseURL {
		t.Errorf("BlobBaseURL = %q, want same as remote", cfg.BlobBaseURL)
	}
	if cfg.AnalysisBaseURL != cfg.RemoteBaseURL {
		t.Errorf("AnalysisBaseURL = %q, want same as remote", cfg.AnalysisBaseURL)
	}
	if cfg.ProbeIntervalSeconds != 15 {
		t.Errorf("ProbeIntervalSeconds = %d, want 15", cfg.ProbeIntervalSeconds)
	}
	if cfg.DrainMinIntervalSeconds != 30 {
		t.Errorf("DrainMinIntervalSeconds = %d, want 30", cfg.DrainMinIntervalSeconds)
	}
	if !cfg.BreakerEnabled {
		t.Error("BreakerEnabled = false, want true")
	}
	if cfg.RetryMaxAttempts != 3 {
		t.Errorf("RetryMaxAttempts = %d, want 3", cfg.RetryMaxAttempts)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SYNCD_HTTP_PORT", "9000")
	t.Setenv("REMOTE_BASE_URL", "https://api.example.com")
	t.Setenv("BLOB_BASE_URL", "https://blobs.example.com")
	t.Setenv("USER_ID", "u-42")
	t.Setenv("PROBE_INTERVAL_SECONDS", "5")
	t.Setenv("BREAKER_ENABLED", "false")

	cfg := Load()

	if cfg.HTTPPort != "9000" {
		t.Errorf("HTTPPort = %q, want 9000", cfg.HTTPPort)
	}
	if cfg.RemoteBaseURL != "https://api.example.com" {
		t.Errorf("RemoteBaseURL = %q", cfg.RemoteBaseURL)
	}
	if cfg.BlobBaseURL != "https://blobs.example.com" {
		t.Errorf("BlobBaseURL = %q", cfg.BlobBaseURL)
	}
	// Analysis URL was not overridden, so it follows the remote base.
	if cfg.AnalysisBaseURL != "https://api.example.com" {
		t.Errorf("AnalysisBaseURL = %q", cfg.AnalysisBaseURL)
	}
	if cfg.UserID != "u-42" {
		t.Errorf("UserID = %q", cfg.UserID)
	}
	if cfg.ProbeIntervalSeconds != 5 {
		t.Errorf("ProbeIntervalSeconds = %d, want 5", cfg.ProbeIntervalSeconds)
	}
	if cfg.BreakerEnabled {
		t.Error("BreakerEnabled = true, want false")
	}
}

func TestLoadInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("PROBE_INTERVAL_SECONDS", "often")
	t.Setenv("BREAKER_ENABLED", "maybe")

	cfg := Load()

	if cfg.ProbeIntervalSeconds != 15 {
		t.Errorf("ProbeIntervalSeconds = %d, want fallback 15", cfg.ProbeIntervalSeconds)
	}
	if !cfg.BreakerEnabled {
		t.Error("BreakerEnabled = false, want fallback true")
	}
}

func TestDurationHelpers(t *testing.T) {
	t.Setenv("PROBE_INTERVAL_SECONDS", "2")
	t.Setenv("PROBE_TIMEOUT_SECONDS", "1")
	t.Setenv("DRAIN_MIN_INTERVAL_SECONDS", "7")

	cfg := Load()

	if got := cfg.ProbeInterval().Seconds(); got != 2 {
		t.Errorf("ProbeInterval = %vs, want 2s", got)
	}
	if got := cfg.ProbeTimeout().Seconds(); got != 1 {
		t.Errorf("ProbeTimeout = %vs, want 1s", got)
	}
	if got := cfg.DrainMinInterval().Seconds(); got != 7 {
		t.Errorf("DrainMinInterval = %vs, want 7s", got)
	}
}
