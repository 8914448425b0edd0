package status

import (
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/Iron-Ham/agentq/internal/errors"
	"github.com/Iron-Ham/agentq/internal/event"
	"github.com/Iron-Ham/agentq/internal/taskqueue"
	"github.com/Iron-Ham/agentq/internal/testutil"
)

func recordIDs(recs []*taskqueue.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestSnapshot_FredScenario(t *testing.T) {
	q := testutil.NewQueue(t)

	payload, err := taskqueue.EncodePayload(map[string]string{"source": "fred"})
	if err != nil {
		t.Fatal(err)
	}
	id, err := q.Factory.Create(taskqueue.TypeScan, "scan fred", payload)
	if err != nil {
		t.Fatal(err)
	}
	q.Complete(t, id, `{"value":42}`)

	snap, err := NewAggregator(q.Store).Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	want := Counts{Pending: 0, Running: 0, Completed: 1, Failed: 0}
	if snap.Counts != want {
		t.Errorf("Counts = %+v, want %+v", snap.Counts, want)
	}
	if got := recordIDs(snap.RecentCompleted); !slices.Equal(got, []string{id}) {
		t.Errorf("RecentCompleted = %v", got)
	}

	result, err := q.Store.Result(id)
	if err != nil {
		t.Fatal(err)
	}
	var body struct{ Value int }
	if err := json.Unmarshal(result, &body); err != nil || body.Value != 42 {
		t.Errorf("Result = %s, %v", result, err)
	}
}

func TestSnapshot_ListsAndOrdering(t *testing.T) {
	q := testutil.NewQueue(t)

	low := q.Create(t, taskqueue.TypeExploration, taskqueue.WithPriority(8))
	q.Clock.Advance(time.Second)
	high := q.Create(t, taskqueue.TypeScan, taskqueue.WithPriority(1))
	q.Clock.Advance(time.Second)
	running := q.Create(t, taskqueue.TypeGrading)
	if _, err := q.Store.ClaimAs(running, "w1"); err != nil {
		t.Fatal(err)
	}
	failed := q.Create(t, taskqueue.TypeSynthesis)
	q.Fail(t, failed, "model timeout")

	snap, err := NewAggregator(q.Store).Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if got := recordIDs(snap.Pending); !slices.Equal(got, []string{high, low}) {
		t.Errorf("Pending = %v, want [%s %s]", got, high, low)
	}
	if got := recordIDs(snap.Running); !slices.Equal(got, []string{running}) {
		t.Errorf("Running = %v", got)
	}
	if snap.Running[0].ClaimedBy != "w1" {
		t.Errorf("ClaimedBy = %q", snap.Running[0].ClaimedBy)
	}
	if len(snap.Failed) != 1 || snap.Failed[0].Error != "model timeout" {
		t.Errorf("Failed = %+v", snap.Failed)
	}
	if snap.Counts.Total() != 4 {
		t.Errorf("Total() = %d, want 4", snap.Counts.Total())
	}
	if !snap.GeneratedAt.Equal(q.Clock.Now()) {
		t.Errorf("GeneratedAt = %v", snap.GeneratedAt)
	}
}

func TestSnapshot_RecentCompletedLimit(t *testing.T) {
	q := testutil.NewQueue(t)

	var ids []string
	for range 5 {
		id := q.Create(t, taskqueue.TypeExtraction)
		q.Complete(t, id, `{}`)
		q.Clock.Advance(time.Minute)
		ids = append(ids, id)
	}

	snap, err := NewAggregator(q.Store, WithRecentCompleted(3)).Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Counts.Completed != 5 {
		t.Errorf("Completed = %d, want 5", snap.Counts.Completed)
	}
	want := []string{ids[4], ids[3], ids[2]}
	if got := recordIDs(snap.RecentCompleted); !slices.Equal(got, want) {
		t.Errorf("RecentCompleted = %v, want %v", got, want)
	}

	snap, err = NewAggregator(q.Store, WithRecentCompleted(-1)).Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.RecentCompleted) != 0 || snap.RecentCompleted == nil {
		t.Errorf("RecentCompleted = %v, want empty non-nil", snap.RecentCompleted)
	}
}

func TestSnapshot_SkipsMalformed(t *testing.T) {
	q := testutil.NewQueue(t)
	good := q.Create(t, taskqueue.TypeScan)
	q.WriteRaw(t, taskqueue.PartitionPending, "garbage.json", "{not json")
	q.WriteRaw(t, taskqueue.PartitionFailed, "notes.txt", "ignored entirely")

	snap, err := NewAggregator(q.Store).Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Counts.Pending != 1 || snap.Pending[0].ID != good {
		t.Errorf("Pending = %v", recordIDs(snap.Pending))
	}
	if snap.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", snap.Skipped)
	}
	if want := q.RecordPath(taskqueue.PartitionPending, "garbage"); !slices.Equal(snap.SkippedFiles, []string{want}) {
		t.Errorf("SkippedFiles = %v, want [%s]", snap.SkippedFiles, want)
	}
}

func TestSnapshot_ResolvesDuplicates(t *testing.T) {
	q := testutil.NewQueue(t)
	id := q.Create(t, taskqueue.TypeScan)
	q.Complete(t, id, `{}`)

	// Simulate a crash that left the running copy behind.
	rec, _, err := q.Store.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Store.Put(rec.Clone(), taskqueue.PartitionRunning); err != nil {
		t.Fatal(err)
	}

	snap, err := NewAggregator(q.Store).Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", snap.Duplicates)
	}
	if snap.Counts.Running != 0 || snap.Counts.Completed != 1 {
		t.Errorf("Counts = %+v", snap.Counts)
	}
}

func TestSnapshot_EmptyStore(t *testing.T) {
	q := testutil.NewQueue(t)
	snap, err := NewAggregator(q.Store).Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Counts.Total() != 0 || snap.Pending == nil || snap.Failed == nil {
		t.Errorf("empty snapshot = %+v", snap)
	}
}

func TestPublish(t *testing.T) {
	q := testutil.NewQueue(t)
	q.Create(t, taskqueue.TypeScan)

	snap, err := NewAggregator(q.Store).Publish()
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	loaded, err := Load(q.Store)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Counts != snap.Counts {
		t.Errorf("loaded Counts = %+v, want %+v", loaded.Counts, snap.Counts)
	}

	types := q.Events.Types()
	if types[len(types)-1] != event.TypeStatusPublished {
		t.Errorf("last event = %s, want %s", types[len(types)-1], event.TypeStatusPublished)
	}
}

func TestLoad_Missing(t *testing.T) {
	q := testutil.NewQueue(t)
	if _, err := Load(q.Store); !errors.IsNotFound(err) {
		t.Errorf("Load() error = %v, want NotFound", err)
	}
}

func TestSnapshot_ListsBlockedTasks(t *testing.T) {
	q := testutil.NewQueue(t)
	scan := q.Create(t, taskqueue.TypeScan)
	other := q.Create(t, taskqueue.TypeScan)
	q.Fail(t, scan, "source offline")
	if err := q.Store.Remove(taskqueue.PartitionFailed, scan); err != nil {
		t.Fatal(err)
	}
	failedDep := q.Create(t, taskqueue.TypeScan)
	q.Fail(t, failedDep, "timeout")

	sweptDep := q.Create(t, taskqueue.TypeExtraction, taskqueue.WithDependencies(scan))
	behindFailure := q.Create(t, taskqueue.TypeGrading, taskqueue.WithDependencies(failedDep))
	waiting := q.Create(t, taskqueue.TypeGrading, taskqueue.WithDependencies(other))

	snap, err := NewAggregator(q.Store).Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	byID := make(map[string]BlockedTask)
	for _, bt := range snap.Blocked {
		byID[bt.ID] = bt
	}
	if len(byID) != 2 {
		t.Fatalf("Blocked = %+v, want 2 entries", snap.Blocked)
	}
	if got := byID[sweptDep].Missing; !slices.Equal(got, []string{scan}) {
		t.Errorf("Blocked[%s].Missing = %v, want [%s]", sweptDep, got, scan)
	}
	if got := byID[behindFailure].Failed; !slices.Equal(got, []string{failedDep}) {
		t.Errorf("Blocked[%s].Failed = %v, want [%s]", behindFailure, got, failedDep)
	}
	if _, ok := byID[waiting]; ok {
		t.Errorf("%s waits on a pending dependency and should not be blocked", waiting)
	}
}

func TestSnapshot_RunningWithoutStartFallsBackToModTime(t *testing.T) {
	q := testutil.NewQueue(t)
	id := q.Create(t, taskqueue.TypeScan)
	rec, _, err := q.Store.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	// A claimer that died after the rename but before stamping started_at.
	if err := q.Store.Put(rec, taskqueue.PartitionRunning); err != nil {
		t.Fatal(err)
	}
	if err := q.Store.Remove(taskqueue.PartitionPending, id); err != nil {
		t.Fatal(err)
	}
	claimed := time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC)
	q.Age(t, taskqueue.PartitionRunning, id, claimed)

	snap, err := NewAggregator(q.Store).Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(snap.Running) != 1 {
		t.Fatalf("Running = %v, want one record", recordIDs(snap.Running))
	}
	got := snap.Running[0].StartedAt
	if got == nil || !got.Equal(claimed) {
		t.Fatalf("StartedAt = %v, want %v", got, claimed)
	}
	if !Stale(snap.Running[0], claimed.Add(3*time.Hour), time.Hour) {
		t.Error("unstamped running record should be flagged stale")
	}
}
