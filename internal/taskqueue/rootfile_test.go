package taskqueue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Iron-Ham/agentq/internal/errors"
)

func TestRootFile(t *testing.T) {
	q := newTestQueue(t)

	if _, err := q.store.ReadFile("state.json"); !errors.IsNotFound(err) {
		t.Fatalf("ReadFile(missing) error = %v, want NotFound", err)
	}
	err := q.store.Exclusive(func() error {
		return q.store.WriteFile("state.json", []byte(`{"cycle_number":1}`))
	})
	if err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}
	data, err := q.store.ReadFile("state.json")
	if err != nil || string(data) != `{"cycle_number":1}` {
		t.Errorf("ReadFile = %q, %v", data, err)
	}
}

func TestExclusive_OsFsTakesFlock(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	ran := false
	err := store.Exclusive(func() error {
		ran = true
		held, err := NewFileLock(root).TryLock()
		if err != nil {
			return err
		}
		if held {
			t.Error("lock should be held while fn runs")
		}
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("Exclusive = %v, ran = %v", err, ran)
	}
	if _, err := os.Stat(filepath.Join(root, LockFileName)); err != nil {
		t.Errorf("lock file missing: %v", err)
	}
}
