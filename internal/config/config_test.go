package config

import (
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Queue.Root != ".agentq" {
		t.Errorf("Queue.Root = %q, want %q", cfg.Queue.Root, ".agentq")
	}
	if !cfg.Queue.EnforceDependencies {
		t.Error("Queue.EnforceDependencies should be true by default")
	}
	want := []string{"fred", "bls", "bea", "treasury"}
	if !slices.Equal(cfg.Dispatch.ScanSources, want) {
		t.Errorf("Dispatch.ScanSources = %v, want %v", cfg.Dispatch.ScanSources, want)
	}
	if cfg.Status.RecentCompleted != 20 {
		t.Errorf("Status.RecentCompleted = %d, want 20", cfg.Status.RecentCompleted)
	}
	if cfg.Retention.MaxAgeHours != 72 {
		t.Errorf("Retention.MaxAgeHours = %d, want 72", cfg.Retention.MaxAgeHours)
	}
	if cfg.Retention.IncludeResults {
		t.Error("Retention.IncludeResults should be false by default")
	}
	if !cfg.Logging.Enabled {
		t.Error("Logging.Enabled should be true by default")
	}
}

func TestDurations(t *testing.T) {
	cfg := Default()
	if got := cfg.Retention.MaxAge(); got != 72*time.Hour {
		t.Errorf("MaxAge() = %v, want 72h", got)
	}
	if got := cfg.Status.StaleAfter(); got != time.Hour {
		t.Errorf("StaleAfter() = %v, want 1h", got)
	}
	if got := cfg.Worker.PollInterval(); got != 2*time.Second {
		t.Errorf("PollInterval() = %v, want 2s", got)
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got, want := ConfigDir(), "/custom/config/agentq"; got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
		if got, want := ConfigFile(), "/custom/config/agentq/config.yaml"; got != want {
			t.Errorf("ConfigFile() = %q, want %q", got, want)
		}
	})

	t.Run("falls back to home", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", home)
		if got, want := ConfigDir(), filepath.Join(home, ".config", "agentq"); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Run("defaults", func(t *testing.T) {
		viper.Reset()
		SetDefaults()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Status.StaleAfterMinutes != 60 {
			t.Errorf("StaleAfterMinutes = %d, want 60", cfg.Status.StaleAfterMinutes)
		}
		if cfg.Worker.Types != "*" {
			t.Errorf("Worker.Types = %q, want *", cfg.Worker.Types)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		viper.Reset()
		SetDefaults()
		viper.Set("queue.root", "/srv/queue")
		viper.Set("queue.enforce_dependencies", false)
		viper.Set("dispatch.scan_sources", []string{"fred"})

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Queue.Root != "/srv/queue" {
			t.Errorf("Queue.Root = %q", cfg.Queue.Root)
		}
		if cfg.Queue.EnforceDependencies {
			t.Error("EnforceDependencies override was ignored")
		}
		if !slices.Equal(cfg.Dispatch.ScanSources, []string{"fred"}) {
			t.Errorf("ScanSources = %v", cfg.Dispatch.ScanSources)
		}
	})

	t.Run("invalid falls back in Get", func(t *testing.T) {
		viper.Reset()
		SetDefaults()
		viper.Set("status.output", "xml")

		if _, err := Load(); err == nil {
			t.Fatal("Load() should reject status.output=xml")
		}
		if got := Get().Status.Output; got != "table" {
			t.Errorf("Get().Status.Output = %q, want table", got)
		}
	})
}
