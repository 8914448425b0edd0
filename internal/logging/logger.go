package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Level names accepted by NewLogger. Matching is case-insensitive.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// LogFileName is the log file created inside the queue root.
const LogFileName = "debug.log"

// Logger writes JSON lines through slog. Child loggers created with With,
// WithTask, WithWorker or WithPhase share the parent's output.
type Logger struct {
	slog *slog.Logger
	out  *sink
}

// sink owns the underlying file so that Close on any child logger closes it
// exactly once.
type sink struct {
	mu     sync.Mutex
	closer io.Closer
}

// NewLogger appends to {dir}/debug.log, or writes to stderr when dir is
// empty. Entries below level are dropped; an unrecognised level means INFO.
func NewLogger(dir string, level string) (*Logger, error) {
	if dir == "" {
		return newLogger(os.Stderr, nil, level), nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return newLogger(file, file, level), nil
}

// NewLoggerWithRotation is NewLogger with {dir}/debug.log written through a
// RotatingWriter.
func NewLoggerWithRotation(dir string, level string, config RotationConfig) (*Logger, error) {
	if dir == "" {
		return NewLogger("", level)
	}

	rw, err := NewRotatingWriter(filepath.Join(dir, LogFileName), config)
	if err != nil {
		return nil, err
	}
	return newLogger(rw, rw, level), nil
}

// NopLogger discards everything. Close is a no-op.
func NopLogger() *Logger {
	return newLogger(io.Discard, nil, LevelError)
}

func newLogger(w io.Writer, closer io.Closer, level string) *Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return &Logger{
		slog: slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})),
		out:  &sink{closer: closer},
	}
}

// WithTask tags every entry with task_id.
func (l *Logger) WithTask(taskID string) *Logger {
	return l.With("task_id", taskID)
}

// WithWorker tags every entry with worker_id.
func (l *Logger) WithWorker(workerID string) *Logger {
	return l.With("worker_id", workerID)
}

// WithPhase tags every entry with the dispatch phase.
func (l *Logger) WithPhase(phase string) *Logger {
	return l.With("phase", phase)
}

// With returns a child Logger carrying alternating key/value pairs. Pairs
// whose key is not a string, and a trailing key without a value, are dropped.
func (l *Logger) With(args ...any) *Logger {
	var attrs []any
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			attrs = append(attrs, slog.Any(key, args[i+1]))
		}
	}
	if len(attrs) == 0 {
		return l
	}
	return &Logger{slog: l.slog.With(attrs...), out: l.out}
}

func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }

func (l *Logger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args) }

func (l *Logger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args) }

func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args) }

func (l *Logger) log(level slog.Level, msg string, args []any) {
	l.slog.Log(context.Background(), level, msg, args...)
}

// Close syncs and closes the log file. Children share the file, so closing
// any of them closes it for all; later calls return nil.
func (l *Logger) Close() error {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	if l.out.closer == nil {
		return nil
	}
	closer := l.out.closer
	l.out.closer = nil

	if s, ok := closer.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			_ = closer.Close()
			return fmt.Errorf("sync log file: %w", err)
		}
	}
	if err := closer.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}
