// Package testutil provides helpers for tests that need a task store.
package testutil

import (
	"encoding/json"
	"os/exec"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/agentq/internal/event"
	"github.com/Iron-Ham/agentq/internal/taskqueue"
)

// Epoch is the starting time of every Clock.
var Epoch = time.Date(2026, 10, 17, 10, 15, 0, 0, time.UTC)

// PID is the process ID the test factory stamps into task IDs.
const PID = 4242

// Clock is a manually advanced clock, safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock set to Epoch.
func NewClock() *Clock {
	return &Clock{now: Epoch}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Recorder is an event.Publisher that keeps everything published to it.
type Recorder struct {
	mu     sync.Mutex
	events []event.Event
}

// Publish implements event.Publisher.
func (r *Recorder) Publish(e event.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Types returns the recorded event types in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

// Queue bundles an in-memory store with its factory, clock and event recorder.
type Queue struct {
	Store   *taskqueue.Store
	Factory *taskqueue.Factory
	Clock   *Clock
	Fs      afero.Fs
	Events  *Recorder
}

// Root is the store root used by NewQueue.
const Root = "/q"

// NewQueue returns a Queue on an in-memory filesystem. Extra options are
// applied after the defaults.
func NewQueue(t *testing.T, opts ...taskqueue.Option) *Queue {
	t.Helper()
	fsys := afero.NewMemMapFs()
	clock := NewClock()
	rec := &Recorder{}
	all := append([]taskqueue.Option{
		taskqueue.WithFs(fsys),
		taskqueue.WithClock(clock.Now),
		taskqueue.WithPublisher(rec),
	}, opts...)
	store := taskqueue.NewStore(Root, all...)
	return &Queue{
		Store:   store,
		Factory: taskqueue.NewFactory(store, taskqueue.WithPID(PID)),
		Clock:   clock,
		Fs:      fsys,
		Events:  rec,
	}
}

// Create makes a pending task with an empty payload and fails the test on
// error.
func (q *Queue) Create(t *testing.T, typ taskqueue.Type, opts ...taskqueue.CreateOption) string {
	t.Helper()
	id, err := q.Factory.Create(typ, string(typ)+" task", nil, opts...)
	if err != nil {
		t.Fatalf("Create(%s) error = %v", typ, err)
	}
	return id
}

// Complete claims and completes id with result.
func (q *Queue) Complete(t *testing.T, id string, result string) {
	t.Helper()
	if _, err := q.Store.Claim(id); err != nil {
		t.Fatalf("Claim(%s) error = %v", id, err)
	}
	if _, err := q.Store.Complete(id, json.RawMessage(result)); err != nil {
		t.Fatalf("Complete(%s) error = %v", id, err)
	}
}

// Fail claims and fails id with reason.
func (q *Queue) Fail(t *testing.T, id, reason string) {
	t.Helper()
	if _, err := q.Store.Claim(id); err != nil {
		t.Fatalf("Claim(%s) error = %v", id, err)
	}
	if _, err := q.Store.Fail(id, reason); err != nil {
		t.Fatalf("Fail(%s) error = %v", id, err)
	}
}

// IDs lists partition p and fails the test on error.
func (q *Queue) IDs(t *testing.T, p taskqueue.Partition) []string {
	t.Helper()
	ids, err := q.Store.IDs(p)
	if err != nil {
		t.Fatalf("IDs(%s) error = %v", p, err)
	}
	return ids
}

// RecordPath returns the path of id's record file in partition p.
func (q *Queue) RecordPath(p taskqueue.Partition, id string) string {
	return filepath.Join(Root, taskqueue.TasksDir, string(p), id+".json")
}

// WriteRaw writes content to partition p as file name, bypassing the store.
func (q *Queue) WriteRaw(t *testing.T, p taskqueue.Partition, name, content string) {
	t.Helper()
	dir := filepath.Join(Root, taskqueue.TasksDir, string(p))
	if err := q.Fs.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(q.Fs, filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// Age sets the modification time of id's record in partition p.
func (q *Queue) Age(t *testing.T, p taskqueue.Partition, id string, mtime time.Time) {
	t.Helper()
	if err := q.Fs.Chtimes(q.RecordPath(p, id), mtime, mtime); err != nil {
		t.Fatalf("Chtimes(%s) error = %v", id, err)
	}
}

// SkipIfNoGolangciLint skips the test if golangci-lint is not installed.
func SkipIfNoGolangciLint(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("golangci-lint"); err != nil {
		t.Skip("golangci-lint not found in PATH, skipping test")
	}
}
