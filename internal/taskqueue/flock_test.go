package taskqueue

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestFileLock_LockUnlock(t *testing.T) {
	dir := t.TempDir()
	fl := NewFileLock(dir)

	if err := fl.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LockFileName)); err != nil {
		t.Errorf("lock file should exist: %v", err)
	}
	if err := fl.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	// Reusable after unlock.
	if err := fl.Lock(); err != nil {
		t.Fatalf("second Lock: %v", err)
	}
	if err := fl.Unlock(); err != nil {
		t.Fatalf("second Unlock: %v", err)
	}
}

func TestFileLock_UnlockWithoutLock(t *testing.T) {
	if err := NewFileLock(t.TempDir()).Unlock(); err != nil {
		t.Fatalf("Unlock without Lock should not error: %v", err)
	}
}

func TestFileLock_TryLockContended(t *testing.T) {
	dir := t.TempDir()
	holder := NewFileLock(dir)
	if err := holder.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer func() { _ = holder.Unlock() }()

	// flock locks belong to the open file description, so a second open of
	// the same file in this process contends with the first.
	other := NewFileLock(dir)
	acquired, err := other.TryLock()
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if acquired {
		_ = other.Unlock()
		t.Error("TryLock should fail while another descriptor holds the lock")
	}
}

func TestFileLock_InvalidDir(t *testing.T) {
	fl := NewFileLock("/nonexistent/dir/path")
	if err := fl.Lock(); err == nil {
		t.Error("Lock should fail for nonexistent directory")
	}
	if _, err := fl.TryLock(); err == nil {
		t.Error("TryLock should fail for nonexistent directory")
	}
}

func TestWithLock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "queue")

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			err := WithLock(dir, func() error {
				mu.Lock()
				inside++
				maxInside = max(maxInside, inside)
				mu.Unlock()

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("WithLock: %v", err)
			}
		})
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxInside)
	}

	sentinel := errors.New("boom")
	if err := WithLock(dir, func() error { return sentinel }); !errors.Is(err, sentinel) {
		t.Errorf("WithLock error = %v, want %v", err, sentinel)
	}
}
