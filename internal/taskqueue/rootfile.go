package taskqueue

import (
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/agentq/internal/errors"
)

// memLock stands in for flock when the store is not on the OS filesystem.
var memLock sync.Mutex

// WriteFile atomically replaces name directly under the store root.
func (s *Store) WriteFile(name string, data []byte) error {
	return s.writeAtomic(s.root, name, data)
}

// ReadFile returns the contents of name under the store root. A missing
// file is a NotFoundError.
func (s *Store) ReadFile(name string) ([]byte, error) {
	file := filepath.Join(s.root, name)
	data, err := afero.ReadFile(s.fs, file)
	if err != nil {
		if isNotExist(err) {
			return nil, errors.NewNotFoundError("file", name)
		}
		return nil, errors.NewIOError("read", file, err)
	}
	return data, nil
}

// Exclusive runs fn while holding the root's lock file. Stores on an
// in-memory filesystem serialize through a process-local mutex instead.
func (s *Store) Exclusive(fn func() error) error {
	if _, ok := s.fs.(*afero.OsFs); ok {
		return WithLock(s.root, fn)
	}
	memLock.Lock()
	defer memLock.Unlock()
	return fn()
}
