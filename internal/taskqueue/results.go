package taskqueue

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/agentq/internal/errors"
)

func (s *Store) resultPath(id string) string {
	return filepath.Join(s.root, ResultsDir, id+recordExt)
}

// stageResult writes result to a hidden temp file in results/ and returns its
// path. The file becomes visible only through publishResult.
func (s *Store) stageResult(id string, result json.RawMessage) (string, error) {
	dir := filepath.Join(s.root, ResultsDir)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return "", errors.NewIOError("mkdir", dir, err)
	}
	tmp, err := afero.TempFile(s.fs, dir, "."+id+".result-*")
	if err != nil {
		return "", errors.NewIOError("create temp", dir, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(result); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(name)
		return "", errors.NewIOError("write", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(name)
		return "", errors.NewIOError("close", name, err)
	}
	return name, nil
}

func (s *Store) publishResult(staged, id string) error {
	if err := s.rename(staged, s.resultPath(id)); err != nil {
		_ = s.fs.Remove(staged)
		return errors.NewIOError("rename", s.resultPath(id), err)
	}
	return nil
}

// Result returns the stored result of a completed task.
func (s *Store) Result(id string) (json.RawMessage, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	file := s.resultPath(id)
	data, err := afero.ReadFile(s.fs, file)
	if err != nil {
		if isNotExist(err) {
			return nil, errors.NewNotFoundError("result", id)
		}
		return nil, errors.NewIOError("read", file, err)
	}
	return data, nil
}

// HasResult reports whether a result file exists for id.
func (s *Store) HasResult(id string) (bool, error) {
	ok, err := afero.Exists(s.fs, s.resultPath(id))
	if err != nil {
		return false, errors.NewIOError("stat", s.resultPath(id), err)
	}
	return ok, nil
}

// ResultIDs lists the IDs that have a result file, in name order.
func (s *Store) ResultIDs() ([]string, error) {
	dir := filepath.Join(s.root, ResultsDir)
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

// ResultModTime returns the modification time of a result file.
func (s *Store) ResultModTime(id string) (time.Time, error) {
	info, err := s.fs.Stat(s.resultPath(id))
	if err != nil {
		if isNotExist(err) {
			return time.Time{}, errors.NewNotFoundError("result", id)
		}
		return time.Time{}, errors.NewIOError("stat", s.resultPath(id), err)
	}
	return info.ModTime(), nil
}

// RemoveResult deletes a result file.
func (s *Store) RemoveResult(id string) error {
	if err := s.fs.Remove(s.resultPath(id)); err != nil {
		if isNotExist(err) {
			return errors.NewNotFoundError("result", id)
		}
		return errors.NewIOError("remove", s.resultPath(id), err)
	}
	return nil
}
