// Package watch wakes workers when new records land in the pending
// partition, so they do not have to poll the directory tightly.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/agentq/internal/event"
	"github.com/Iron-Ham/agentq/internal/logging"
)

// DefaultDebounce coalesces the burst of events a dispatch cycle produces.
const DefaultDebounce = 50 * time.Millisecond

// Watcher watches one partition directory for arriving record files.
type Watcher struct {
	watcher   *fsnotify.Watcher
	dir       string
	debounce  time.Duration
	publisher event.Publisher
	logger    *logging.Logger

	notify   chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithPublisher publishes a PendingAvailableEvent per arriving record.
func WithPublisher(p event.Publisher) Option {
	return func(w *Watcher) {
		if p != nil {
			w.publisher = p
		}
	}
}

// WithLogger sets the watcher's logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long the watcher waits for a burst to settle.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New watches dir, creating it if needed. Call Start to begin delivering
// notifications and Stop to release the watch.
func New(dir string, opts ...Option) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:   fw,
		dir:       dir,
		debounce:  DefaultDebounce,
		publisher: event.Discard,
		logger:    logging.NopLogger(),
		notify:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// C receives a value after one or more records arrive. Notifications are
// coalesced; a receiver should list the directory rather than count them.
func (w *Watcher) C() <-chan struct{} { return w.notify }

// Start begins processing filesystem events.
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
}

// Wait blocks until a record arrives, fallback elapses or ctx is done. A
// nil Watcher only waits for the fallback, so callers can poll when
// watching is unavailable.
func (w *Watcher) Wait(ctx context.Context, fallback time.Duration) error {
	timer := time.NewTimer(fallback)
	defer timer.Stop()

	var notify <-chan struct{}
	if w != nil {
		notify = w.notify
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-notify:
	case <-timer.C:
	}
	return nil
}

func (w *Watcher) watchLoop() {
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C

	arrived := make(map[string]bool)

	for {
		select {
		case <-w.stopCh:
			debounceTimer.Stop()
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// A record arrives by rename from a temp file, which shows up as
			// Create on the target name.
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			id, ok := recordID(ev.Name)
			if !ok {
				continue
			}
			arrived[id] = true
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			for id := range arrived {
				w.publisher.Publish(event.NewPendingAvailableEvent(id))
			}
			w.logger.Debug("pending records arrived", "dir", w.dir, "count", len(arrived))
			clear(arrived)
			select {
			case w.notify <- struct{}{}:
			default:
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "dir", w.dir, "error", err)
		}
	}
}

// recordID mirrors the store's notion of a record file: a visible .json
// file whose base name is the task ID.
func recordID(path string) (string, bool) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
		return "", false
	}
	return strings.TrimSuffix(name, ".json"), true
}
