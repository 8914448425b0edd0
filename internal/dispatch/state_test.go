package dispatch

import (
	"testing"
	"time"

	"github.com/Iron-Ham/agentq/internal/errors"
	"github.com/Iron-Ham/agentq/internal/taskqueue"
	"github.com/Iron-Ham/agentq/internal/testutil"
)

func TestState_MissingIsZero(t *testing.T) {
	q := testutil.NewQueue(t)
	state, err := LoadState(q.Store)
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if state != (State{}) {
		t.Errorf("state = %+v, want zero", state)
	}
}

func TestState_RoundTrip(t *testing.T) {
	q := testutil.NewQueue(t)
	want := State{CycleNumber: 7, LastDispatch: testutil.Epoch}
	if err := SaveState(q.Store, want); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}
	got, err := LoadState(q.Store)
	if err != nil {
		t.Fatal(err)
	}
	if got.CycleNumber != 7 || !got.LastDispatch.Equal(want.LastDispatch) {
		t.Errorf("LoadState() = %+v, want %+v", got, want)
	}
}

func TestState_Malformed(t *testing.T) {
	q := testutil.NewQueue(t)
	if err := q.Store.WriteFile(StateFileName, []byte("cycle=3")); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadState(q.Store); !errors.IsMalformed(err) {
		t.Errorf("LoadState() error = %v, want malformed", err)
	}
}

// Persisting across a restart on disk, as the CLI does.
func TestState_AcrossRestarts(t *testing.T) {
	root := t.TempDir()
	ctx := t.Context()

	for want := 1; want <= 2; want++ {
		store := taskqueue.NewStore(root)
		state, err := LoadState(store)
		if err != nil {
			t.Fatal(err)
		}
		d := New(store, taskqueue.NewFactory(store), nil, state)
		_, next, err := d.DispatchFullCycle(ctx)
		if err != nil {
			t.Fatalf("cycle %d: %v", want, err)
		}
		if next.CycleNumber != want {
			t.Errorf("CycleNumber = %d, want %d", next.CycleNumber, want)
		}
		if time.Since(next.LastDispatch) > time.Minute {
			t.Errorf("LastDispatch = %v", next.LastDispatch)
		}
		if err := SaveState(store, next); err != nil {
			t.Fatal(err)
		}
	}
}
