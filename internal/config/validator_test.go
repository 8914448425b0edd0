package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "status.recent_completed",
		Value:   -1,
		Message: "must be non-negative",
	}

	expected := "status.recent_completed: must be non-negative (got: -1)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	if errs := Default().Validate(); len(errs) != 0 {
		t.Errorf("Default config should be valid, got %d errors: %v", len(errs), errs)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty root", func(c *Config) { c.Queue.Root = "  " }, "queue.root"},
		{"no scan sources", func(c *Config) { c.Dispatch.ScanSources = nil }, "dispatch.scan_sources"},
		{"empty scan source", func(c *Config) { c.Dispatch.ScanSources = []string{"fred", ""} }, "dispatch.scan_sources[1]"},
		{"duplicate scan source", func(c *Config) { c.Dispatch.ScanSources = []string{"bls", "bls"} }, "dispatch.scan_sources[1]"},
		{"negative recent", func(c *Config) { c.Status.RecentCompleted = -1 }, "status.recent_completed"},
		{"negative stale", func(c *Config) { c.Status.StaleAfterMinutes = -5 }, "status.stale_after_minutes"},
		{"bad output", func(c *Config) { c.Status.Output = "csv" }, "status.output"},
		{"negative max age", func(c *Config) { c.Retention.MaxAgeHours = -1 }, "retention.max_age_hours"},
		{"poll too fast", func(c *Config) { c.Worker.PollIntervalMs = 10 }, "worker.poll_interval_ms"},
		{"no workers", func(c *Config) { c.Worker.MaxWorkers = 0 }, "worker.max_workers"},
		{"bad glob", func(c *Config) { c.Worker.Types = "[scan" }, "worker.types"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"zero log size", func(c *Config) { c.Logging.MaxSizeMB = 0 }, "logging.max_size_mb"},
		{"huge log size", func(c *Config) { c.Logging.MaxSizeMB = 5000 }, "logging.max_size_mb"},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("Validate() returned %d errors, want 1: %v", len(errs), errs)
			}
			if errs[0].Field != tt.field {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.field)
			}
		})
	}
}

func TestConfig_Validate_ZeroRetentionAllowed(t *testing.T) {
	cfg := Default()
	cfg.Retention.MaxAgeHours = 0
	cfg.Status.StaleAfterMinutes = 0
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("zero retention and stale threshold should be valid: %v", errs)
	}
}
