package taskqueue

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/agentq/internal/errors"
)

func TestFactory_IDFormat(t *testing.T) {
	q := newTestQueue(t)

	id := q.create(t, TypeScan)
	if id != "scan-20261017T101500-4242" {
		t.Errorf("id = %q, want scan-20261017T101500-4242", id)
	}
}

func TestFactory_SameSecondCollision(t *testing.T) {
	q := newTestQueue(t)

	var ids []string
	for range 4 {
		ids = append(ids, q.create(t, TypeScan))
	}
	want := []string{
		"scan-20261017T101500-4242",
		"scan-20261017T101500-4242-2",
		"scan-20261017T101500-4242-3",
		"scan-20261017T101500-4242-4",
	}
	if !slices.Equal(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}

	// A different type in the same second does not collide.
	if id := q.create(t, TypeGrading); id != "grading-20261017T101500-4242" {
		t.Errorf("grading id = %q", id)
	}

	// Next second starts over.
	q.clock.Advance(time.Second)
	if id := q.create(t, TypeScan); id != "scan-20261017T101501-4242" {
		t.Errorf("next-second id = %q", id)
	}
}

func TestFactory_CollisionAcrossPartitions(t *testing.T) {
	q := newTestQueue(t)
	first := q.create(t, TypeScan)
	q.mustFinish(t, first)
	if err := q.store.Remove(PartitionComplete, first); err != nil {
		t.Fatal(err)
	}

	// Only the result file remains; the ID is still taken because dependents
	// may resolve it through the result.
	if id := q.create(t, TypeScan); id == first {
		t.Errorf("reused id %s whose result still exists", id)
	}
}

func TestFactory_ConcurrentCreateUnique(t *testing.T) {
	q := newTestQueue(t)

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			id, err := q.factory.Create(TypeScan, "", nil)
			if err != nil {
				t.Errorf("Create error = %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[id] {
				t.Errorf("duplicate id %s", id)
			}
			seen[id] = true
		})
	}
	wg.Wait()

	if got := len(q.ids(t, PartitionPending)); got != 20 {
		t.Errorf("pending = %d, want 20", got)
	}
}

func TestFactory_Options(t *testing.T) {
	q := newTestQueue(t)

	rec, err := q.factory.CreateRecord(TypeExtraction, "cycle 1: extract", json.RawMessage(`{"cycle":1}`),
		WithDependencies("scan-a", "scan-b", "scan-a"),
		WithDependencies("scan-c"),
		WithPriority(2),
		WithSchemaVersion(3))
	if err != nil {
		t.Fatalf("CreateRecord error = %v", err)
	}
	if !slices.Equal(rec.Dependencies, []string{"scan-a", "scan-b", "scan-c"}) {
		t.Errorf("Dependencies = %v", rec.Dependencies)
	}
	if rec.Priority != 2 || rec.SchemaVersion != 3 {
		t.Errorf("Priority = %d, SchemaVersion = %d", rec.Priority, rec.SchemaVersion)
	}

	plain, err := q.factory.CreateRecord(TypeScan, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if plain.Priority != DefaultPriority || plain.SchemaVersion != CurrentSchemaVersion {
		t.Errorf("defaults: Priority = %d, SchemaVersion = %d", plain.Priority, plain.SchemaVersion)
	}
	if string(plain.Payload) != "{}" {
		t.Errorf("Payload = %s, want {}", plain.Payload)
	}
	if plain.Dependencies == nil {
		t.Error("Dependencies should serialize as [] rather than null")
	}
}

func TestFactory_Validation(t *testing.T) {
	q := newTestQueue(t)

	tests := []struct {
		name    string
		typ     Type
		payload string
		opts    []CreateOption
	}{
		{"empty type", "", `{}`, nil},
		{"unsafe type", "a/b", `{}`, nil},
		{"invalid payload", TypeScan, `{oops`, nil},
		{"unsafe dependency", TypeScan, `{}`, []CreateOption{WithDependencies("../x")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := q.factory.Create(tt.typ, "", json.RawMessage(tt.payload), tt.opts...)
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("Create error = %v, want validation error", err)
			}
		})
	}
	if n := len(q.ids(t, PartitionPending)); n != 0 {
		t.Errorf("rejected creates wrote %d records", n)
	}
}

func ExampleFactory_Create() {
	store := NewStore("/tmp/agentq-example", WithFs(memFs()))
	factory := NewFactory(store, WithPID(7))
	store.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	id, _ := factory.Create(TypeScan, "cycle 1: scan fred", json.RawMessage(`{"source":"fred"}`), WithPriority(1))
	fmt.Println(id)
	// Output: scan-20260102T030405-7
}
