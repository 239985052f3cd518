package config

import (
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("SCHEDULER_INTERVAL", "")
	t.Setenv("PUBLISH_CLAIM_STALE_MINUTES", "")
	t.Setenv("IG_POLL_INTERVAL_SECONDS", "")
	t.Setenv("IG_POLL_MAX_ATTEMPTS", "")

	cfg := LoadConfig()

	if cfg.SchedulerInterval != "@every 0h01m00s" {
		t.Errorf("expected minute interval default, got %q", cfg.SchedulerInterval)
	}
	if cfg.ClaimStaleMinutes != 15 {
		t.Errorf("expected 15 minute stale claim default, got %d", cfg.ClaimStaleMinutes)
	}
	if cfg.IGPollSeconds != 10 {
		t.Errorf("expected 10 second poll default, got %d", cfg.IGPollSeconds)
	}
	if cfg.IGPollMaxAttempts != 30 {
		t.Errorf("expected 30 poll attempts default, got %d", cfg.IGPollMaxAttempts)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SCHEDULER_INTERVAL", "@every 0h05m00s")
	t.Setenv("IG_POLL_MAX_ATTEMPTS", "5")
	t.Setenv("PUBLISH_CLAIM_STALE_MINUTES", "not-a-number")

	cfg := LoadConfig()

	if cfg.SchedulerInterval != "@every 0h05m00s" {
		t.Errorf("expected override interval, got %q", cfg.SchedulerInterval)
	}
	if cfg.IGPollMaxAttempts != 5 {
		t.Errorf("expected override attempts, got %d", cfg.IGPollMaxAttempts)
	}
	if cfg.ClaimStaleMinutes != 15 {
		t.Errorf("expected garbage value to fall back to default, got %d", cfg.ClaimStaleMinutes)
	}
}
