package taskqueue

import (
	"cmp"
	"iter"
	"slices"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/agentq/internal/errors"
)

// IDs returns the IDs of the records in partition p in filesystem name order
// without reading the files.
func (s *Store) IDs(p Partition) ([]string, error) {
	dir := s.partitionDir(p)
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewIOError("readdir", dir, err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id, ok := idFromFile(e.Name()); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// List enumerates the records in partition p in filesystem name order. The
// sequence is lazy and re-reads the directory every time it is ranged over.
//
// A file that cannot be parsed yields a MalformedRecordError and enumeration
// continues. A file that disappears between listing and reading was moved by
// another process and is skipped. Failure to read the directory itself
// yields a single IOError.
func (s *Store) List(p Partition) iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		ids, err := s.IDs(p)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, id := range ids {
			rec, err := s.readRecord(p, id)
			if errors.IsNotFound(err) {
				continue
			}
			if !yield(rec, err) {
				return
			}
		}
	}
}

// Records collects partition p, sorted by creation time then ID. Per-file
// problems are returned in skipped; err is set only when the partition could
// not be read at all.
func (s *Store) Records(p Partition) (recs []*Record, skipped []error, err error) {
	for rec, recErr := range s.List(p) {
		if recErr != nil {
			var ioErr *errors.IOError
			if errors.As(recErr, &ioErr) && ioErr.Op == "readdir" {
				return nil, nil, recErr
			}
			skipped = append(skipped, recErr)
			continue
		}
		recs = append(recs, rec)
	}
	SortByCreated(recs)
	return recs, skipped, nil
}

// SortByCreated orders records by creation time, then ID.
func SortByCreated(recs []*Record) {
	slices.SortStableFunc(recs, func(a, b *Record) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
}
