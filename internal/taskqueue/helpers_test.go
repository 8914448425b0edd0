package taskqueue

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/agentq/internal/event"
)

var testEpoch = time.Date(2026, 10, 17, 10, 15, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Publish(e event.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

type testQueue struct {
	store   *Store
	factory *Factory
	clock   *fakeClock
	fs      afero.Fs
	events  *recorder
}

func newTestQueue(t *testing.T, opts ...Option) *testQueue {
	t.Helper()
	fsys := afero.NewMemMapFs()
	clock := &fakeClock{now: testEpoch}
	rec := &recorder{}
	all := append([]Option{WithFs(fsys), WithClock(clock.Now), WithPublisher(rec)}, opts...)
	store := NewStore("/q", all...)
	return &testQueue{
		store:   store,
		factory: NewFactory(store, WithPID(4242)),
		clock:   clock,
		fs:      fsys,
		events:  rec,
	}
}

func (q *testQueue) create(t *testing.T, typ Type, opts ...CreateOption) string {
	t.Helper()
	id, err := q.factory.Create(typ, "test "+string(typ), json.RawMessage(`{"src":"fred"}`), opts...)
	if err != nil {
		t.Fatalf("Create(%s) error = %v", typ, err)
	}
	return id
}

func (q *testQueue) ids(t *testing.T, p Partition) []string {
	t.Helper()
	ids, err := q.store.IDs(p)
	if err != nil {
		t.Fatalf("IDs(%s) error = %v", p, err)
	}
	return ids
}

func (q *testQueue) mustFinish(t *testing.T, id string) {
	t.Helper()
	if _, err := q.store.Claim(id); err != nil {
		t.Fatalf("Claim(%s) error = %v", id, err)
	}
	if _, err := q.store.Complete(id, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Complete(%s) error = %v", id, err)
	}
}

func memFs() afero.Fs { return afero.NewMemMapFs() }
