package taskqueue

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/agentq/internal/errors"
	"github.com/Iron-Ham/agentq/internal/event"
	"github.com/Iron-Ham/agentq/internal/logging"
)

// Layout names under the store root.
const (
	TasksDir       = "tasks"
	ResultsDir     = "results"
	StatusFileName = "status.json"
	recordExt      = ".json"
)

// Store is a passive, filesystem-backed task store. Each partition is a
// directory under tasks/ and every transition is a rename between two of
// them, so the store needs no daemon and any number of processes may share
// it. Claim exclusivity comes from rename(2) being atomic within one
// filesystem: when two workers race for the same pending record, exactly
// one rename succeeds.
//
// Store methods are safe for concurrent use by goroutines and processes.
type Store struct {
	fs        afero.Fs
	root      string
	logger    *logging.Logger
	now       func() time.Time
	gate      bool
	publisher event.Publisher
}

// Option configures a Store.
type Option func(*Store)

// WithFs replaces the operating system filesystem. Tests use
// afero.NewMemMapFs(); concurrent-claim tests need the real filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(s *Store) { s.fs = fsys }
}

// WithLogger sets the logger used for transition logging.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithDependencyGating controls whether Claim refuses tasks whose
// dependencies have not completed. Gating is on by default.
func WithDependencyGating(enabled bool) Option {
	return func(s *Store) { s.gate = enabled }
}

// WithPublisher sets where transition events are published.
func WithPublisher(p event.Publisher) Option {
	return func(s *Store) {
		if p != nil {
			s.publisher = p
		}
	}
}

// NewStore returns a Store rooted at root. Directories are created lazily on
// the first write, so a Store over a missing root simply reads as empty.
func NewStore(root string, opts ...Option) *Store {
	s := &Store{
		fs:        afero.NewOsFs(),
		root:      filepath.Clean(root),
		logger:    logging.NopLogger(),
		now:       time.Now,
		gate:      true,
		publisher: event.Discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Fs returns the filesystem the store operates on.
func (s *Store) Fs() afero.Fs { return s.fs }

// Logger returns the store's logger.
func (s *Store) Logger() *logging.Logger { return s.logger }

// Now returns the current time from the store's clock.
func (s *Store) Now() time.Time { return s.now().UTC() }

// DependencyGating reports whether claims check dependencies.
func (s *Store) DependencyGating() bool { return s.gate }

// Init creates the partition and results directories.
func (s *Store) Init() error {
	dirs := []string{filepath.Join(s.root, ResultsDir)}
	for _, p := range Partitions {
		dirs = append(dirs, s.partitionDir(p))
	}
	for _, dir := range dirs {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return errors.NewIOError("mkdir", dir, err)
		}
	}
	return nil
}

func (s *Store) partitionDir(p Partition) string {
	return filepath.Join(s.root, TasksDir, string(p))
}

// PartitionDir returns the directory holding records of p. Watchers use it
// to follow arrivals.
func (s *Store) PartitionDir(p Partition) string { return s.partitionDir(p) }

func (s *Store) recordPath(p Partition, id string) string {
	return filepath.Join(s.partitionDir(p), id+recordExt)
}

// StatusPath returns the path of the published status snapshot.
func (s *Store) StatusPath() string {
	return filepath.Join(s.root, TasksDir, StatusFileName)
}

// Put writes rec into partition p, replacing any record with the same ID
// there. The write goes to a hidden temporary file that is renamed into
// place, so readers never observe a partial record. rec.Status is set to
// match p.
func (s *Store) Put(rec *Record, p Partition) error {
	if err := ValidateID(rec.ID); err != nil {
		return err
	}
	if p.Rank() < 0 {
		return errors.NewValidationError("unknown partition").WithField("partition").WithValue(string(p))
	}
	rec.Status = p.Status()
	if err := s.writeRecord(p, rec); err != nil {
		return err
	}
	s.logger.WithTask(rec.ID).Debug("record written", "partition", string(p))
	return nil
}

func (s *Store) writeRecord(p Partition, rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", rec.ID, err)
	}
	return s.writeAtomic(s.partitionDir(p), rec.ID+recordExt, append(data, '\n'))
}

// writeAtomic writes data to dir/name via a dot-prefixed temp file in the
// same directory. Listing skips dotfiles, so the temp file is never seen as
// a record.
func (s *Store) writeAtomic(dir, name string, data []byte) error {
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return errors.NewIOError("mkdir", dir, err)
	}
	tmp, err := afero.TempFile(s.fs, dir, "."+name+".tmp-*")
	if err != nil {
		return errors.NewIOError("create temp", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return errors.NewIOError("write", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return errors.NewIOError("sync", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return errors.NewIOError("close", tmpName, err)
	}

	target := filepath.Join(dir, name)
	if err := s.rename(tmpName, target); err != nil {
		_ = s.fs.Remove(tmpName)
		return errors.NewIOError("rename", target, err)
	}
	return nil
}

// rename moves oldpath to newpath and flags cross-device renames, which
// silently void the claim exclusivity guarantee.
func (s *Store) rename(oldpath, newpath string) error {
	err := s.fs.Rename(oldpath, newpath)
	if err != nil && errors.Is(err, syscall.EXDEV) {
		s.logger.Warn("rename crossed filesystems; claim exclusivity is not guaranteed",
			"from", oldpath, "to", newpath)
	}
	return err
}

// readRecord loads tasks/{p}/{id}.json. A missing file is a NotFoundError,
// an unparsable one a MalformedRecordError. The returned record's status is
// the partition's.
func (s *Store) readRecord(p Partition, id string) (*Record, error) {
	file := s.recordPath(p, id)
	data, err := afero.ReadFile(s.fs, file)
	if err != nil {
		if isNotExist(err) {
			return nil, errors.NewNotFoundError("task", id).WithPartition(string(p))
		}
		return nil, errors.NewIOError("read", file, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.NewMalformedRecordError(file, err)
	}
	if rec.ID == "" {
		return nil, errors.NewMalformedRecordError(file, errors.New("missing id"))
	}
	if rec.ID != id {
		return nil, errors.NewMalformedRecordError(file, fmt.Errorf("id %q does not match file name", rec.ID))
	}
	rec.Status = p.Status()
	return &rec, nil
}

// Get locates a record by ID. If a crash left copies in more than one
// partition, the copy furthest along the lifecycle is returned.
func (s *Store) Get(id string) (*Record, Partition, error) {
	if err := ValidateID(id); err != nil {
		return nil, "", err
	}
	for _, p := range []Partition{PartitionFailed, PartitionComplete, PartitionRunning, PartitionPending} {
		rec, err := s.readRecord(p, id)
		if err == nil {
			return rec, p, nil
		}
		if !errors.IsNotFound(err) {
			return nil, "", err
		}
	}
	return nil, "", errors.NewNotFoundError("task", id)
}

// Locate returns the partitions that currently hold a file for id, in
// lifecycle order. It reads only directory metadata.
func (s *Store) Locate(id string) ([]Partition, error) {
	var found []Partition
	for _, p := range Partitions {
		ok, err := afero.Exists(s.fs, s.recordPath(p, id))
		if err != nil {
			return nil, errors.NewIOError("stat", s.recordPath(p, id), err)
		}
		if ok {
			found = append(found, p)
		}
	}
	return found, nil
}

// ModTime returns the modification time of a record file.
func (s *Store) ModTime(p Partition, id string) (time.Time, error) {
	file := s.recordPath(p, id)
	info, err := s.fs.Stat(file)
	if err != nil {
		if isNotExist(err) {
			return time.Time{}, errors.NewNotFoundError("task", id).WithPartition(string(p))
		}
		return time.Time{}, errors.NewIOError("stat", file, err)
	}
	return info.ModTime(), nil
}

// Remove deletes a record file. It never moves tasks between partitions.
func (s *Store) Remove(p Partition, id string) error {
	file := s.recordPath(p, id)
	if err := s.fs.Remove(file); err != nil {
		if isNotExist(err) {
			return errors.NewNotFoundError("task", id).WithPartition(string(p))
		}
		return errors.NewIOError("remove", file, err)
	}
	s.logger.WithTask(id).Debug("record removed", "partition", string(p))
	return nil
}

// WriteStatus atomically replaces tasks/status.json.
func (s *Store) WriteStatus(data []byte) error {
	return s.writeAtomic(filepath.Join(s.root, TasksDir), StatusFileName, data)
}

// ReadStatus returns the raw contents of tasks/status.json.
func (s *Store) ReadStatus() ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.StatusPath())
	if err != nil {
		if isNotExist(err) {
			return nil, errors.NewNotFoundError("status", StatusFileName)
		}
		return nil, errors.NewIOError("read", s.StatusPath(), err)
	}
	return data, nil
}

// idFromFile returns the task ID for a record file name, or false for names
// that are not records (temp files, dotfiles, other extensions).
func idFromFile(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || path.Ext(name) != recordExt {
		return "", false
	}
	return strings.TrimSuffix(name, recordExt), true
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err)
}
