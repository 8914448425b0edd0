package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError is one invalid config value.
type ValidationError struct {
	Field   string // dotted key, e.g. "status.recent_completed"
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is returned by Load when any value fails validation.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels lists the accepted logging.level values.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidOutputFormats lists the accepted status.output values.
func ValidOutputFormats() []string {
	return []string{"table", "json", "yaml"}
}

const (
	// Polling faster than this just burns directory reads.
	minPollIntervalMs = 50
	maxLogSizeMB      = 1000
)

// checker accumulates failures so Validate can report all of them at once.
type checker []ValidationError

func (c *checker) fail(field string, value any, format string, args ...any) {
	*c = append(*c, ValidationError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)})
}

func (c *checker) nonNegative(field string, value int) {
	if value < 0 {
		c.fail(field, value, "must be non-negative")
	}
}

func (c *checker) oneOf(field, value string, allowed []string) {
	if value != "" && !slices.Contains(allowed, value) {
		c.fail(field, value, "must be one of: %s", strings.Join(allowed, ", "))
	}
}

// Validate returns every invalid value in c, or nil.
func (c *Config) Validate() []ValidationError {
	var v checker

	switch root := c.Queue.Root; {
	case strings.TrimSpace(root) == "":
		v.fail("queue.root", root, "must not be empty")
	case strings.ContainsRune(root, '\x00'):
		v.fail("queue.root", root, "path contains invalid null character")
	}

	if len(c.Dispatch.ScanSources) == 0 {
		v.fail("dispatch.scan_sources", c.Dispatch.ScanSources, "at least one scan source is required")
	}
	seen := make(map[string]bool, len(c.Dispatch.ScanSources))
	for i, src := range c.Dispatch.ScanSources {
		field := fmt.Sprintf("dispatch.scan_sources[%d]", i)
		switch {
		case strings.TrimSpace(src) == "":
			v.fail(field, src, "source cannot be empty")
		case seen[src]:
			v.fail(field, src, "duplicate source")
		}
		seen[src] = true
	}

	v.nonNegative("status.recent_completed", c.Status.RecentCompleted)
	v.nonNegative("status.stale_after_minutes", c.Status.StaleAfterMinutes)
	v.oneOf("status.output", c.Status.Output, ValidOutputFormats())

	v.nonNegative("retention.max_age_hours", c.Retention.MaxAgeHours)

	if c.Worker.PollIntervalMs < minPollIntervalMs {
		v.fail("worker.poll_interval_ms", c.Worker.PollIntervalMs, "must be at least %d", minPollIntervalMs)
	}
	if c.Worker.MaxWorkers < 1 {
		v.fail("worker.max_workers", c.Worker.MaxWorkers, "must be at least 1")
	}
	if c.Worker.Types != "" {
		if _, err := glob.Compile(c.Worker.Types); err != nil {
			v.fail("worker.types", c.Worker.Types, "invalid glob: %v", err)
		}
	}

	v.oneOf("logging.level", c.Logging.Level, ValidLogLevels())
	switch size := c.Logging.MaxSizeMB; {
	case size <= 0:
		v.fail("logging.max_size_mb", size, "must be positive")
	case size > maxLogSizeMB:
		v.fail("logging.max_size_mb", size, "exceeds maximum of %dMB", maxLogSizeMB)
	}
	v.nonNegative("logging.max_backups", c.Logging.MaxBackups)

	return v
}
