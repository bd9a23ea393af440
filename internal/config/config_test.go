package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 3000 {
		t.Errorf("expected default port 3000, got %d", cfg.HTTPPort)
	}
	if cfg.CacheTTLMinutes != 5 {
		t.Errorf("expected default cache TTL 5, got %d", cfg.CacheTTLMinutes)
	}
	if cfg.AggregationIntervalMinutes != 5 || cfg.AggregationTimeoutSeconds != 30 {
		t.Errorf("unexpected aggregation defaults: %d / %d",
			cfg.AggregationIntervalMinutes, cfg.AggregationTimeoutSeconds)
	}
	if cfg.TrendUptimeDeltaPts != 5 || cfg.TrendResponseDeltaMs != 100 || cfg.TrendConfidenceWindows != 24 {
		t.Errorf("unexpected trend defaults: %+v", cfg)
	}
	if cfg.MTTRWindow != 10 {
		t.Errorf("expected default MTTR window 10, got %d", cfg.MTTRWindow)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("CACHE_TTL_MINUTES", "0")
	t.Setenv("TREND_UPTIME_DELTA", "7.5")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/X")
	t.Setenv("SEED_RULES_FILE", "/etc/pulsewatch/rules.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.HTTPPort)
	}
	if cfg.CacheTTLMinutes != 0 {
		t.Errorf("expected cache disabled, got %d", cfg.CacheTTLMinutes)
	}
	if cfg.TrendUptimeDeltaPts != 7.5 {
		t.Errorf("expected trend delta 7.5, got %v", cfg.TrendUptimeDeltaPts)
	}
	if cfg.SlackWebhookURL == "" || cfg.SeedRulesFile == "" {
		t.Errorf("expected optional settings to pass through: %+v", cfg)
	}
}

func TestLoad_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-port")
	t.Setenv("TREND_RESPONSE_DELTA_MS", "fast")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPPort != 3000 || cfg.TrendResponseDeltaMs != 100 {
		t.Errorf("expected defaults for malformed values, got %d / %v",
			cfg.HTTPPort, cfg.TrendResponseDeltaMs)
	}
}
