package taskqueue

import (
	"bytes"
	"encoding/json"

	"github.com/Iron-Ham/agentq/internal/errors"
)

// move renames a record file from one partition to another. A missing source
// means another process already moved it and is reported as NotFoundError.
func (s *Store) move(id string, from, to Partition) error {
	if err := s.fs.MkdirAll(s.partitionDir(to), 0755); err != nil {
		return errors.NewIOError("mkdir", s.partitionDir(to), err)
	}
	src, dst := s.recordPath(from, id), s.recordPath(to, id)
	if err := s.rename(src, dst); err != nil {
		if isNotExist(err) {
			return errors.NewNotFoundError("task", id).WithPartition(string(from))
		}
		return errors.NewIOError("rename", src, err)
	}
	return nil
}

// Claim moves a pending task to running. See ClaimAs.
func (s *Store) Claim(id string) (*Record, error) {
	return s.ClaimAs(id, "")
}

// ClaimAs moves a pending task to running on behalf of workerID, which may
// be empty. The move is the claim: of several concurrent callers exactly one
// succeeds and the rest get a NotFoundError. The record is then rewritten in
// place with started_at and claimed_by set.
//
// Between the move and the rewrite the running record has no started_at.
// The stamp cannot go on the pending file first, because a losing claimer's
// stamp would then ride along with the winner's rename. Readers that need a
// start time for such a record (a claimer that crashed in the window) fall
// back to the file's modification time.
//
// With dependency gating enabled, a task whose dependencies have not all
// completed is refused with a DependencyError and left in pending.
func (s *Store) ClaimAs(id, workerID string) (*Record, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	log := s.logger.WithTask(id)

	if s.gate {
		pending, err := s.readRecord(PartitionPending, id)
		if err != nil {
			return nil, err
		}
		if err := s.CheckDependencies(pending); err != nil {
			log.Debug("claim refused", "reason", err)
			return nil, err
		}
	}

	if err := s.move(id, PartitionPending, PartitionRunning); err != nil {
		return nil, err
	}

	rec, err := s.readRecord(PartitionRunning, id)
	if err != nil {
		// The task is ours now but unreadable; leave it in running for an
		// operator to inspect or release.
		log.Error("claimed record unreadable", "error", err)
		return nil, err
	}
	now := s.Now()
	rec.StartedAt = &now
	rec.ClaimedBy = workerID
	if err := s.writeRecord(PartitionRunning, rec); err != nil {
		log.Error("failed to stamp claimed record", "error", err)
		return nil, err
	}

	log.Info("task claimed", "partition", string(PartitionRunning), "worker_id", workerID)
	s.emitClaimed(rec)
	return rec.Clone(), nil
}

// Complete moves a running task to complete and stores result under
// results/{id}.json. An empty result is stored as null.
//
// The result is staged before the move so that a failed write cannot leave a
// completed task without its result, and a result that cannot be published
// after the move sends the record back to running. A task that is not
// running yields a NotFoundError and the store is unchanged.
func (s *Store) Complete(id string, result json.RawMessage) (*Record, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(result)) == 0 {
		result = json.RawMessage("null")
	}
	if !json.Valid(result) {
		return nil, errors.NewValidationError("result is not valid JSON").WithField("result")
	}
	log := s.logger.WithTask(id)

	staged, err := s.stageResult(id, result)
	if err != nil {
		return nil, err
	}

	if err := s.move(id, PartitionRunning, PartitionComplete); err != nil {
		_ = s.fs.Remove(staged)
		return nil, err
	}

	if err := s.publishResult(staged, id); err != nil {
		// Dependents treat a record in complete as done, so it must not stay
		// there without its result. Moving it back keeps the task running and
		// lets the caller retry.
		if rbErr := s.move(id, PartitionComplete, PartitionRunning); rbErr != nil {
			log.Error("partial transition: task in complete without result",
				"error", err, "rollback_error", rbErr)
			return nil, errors.Join(err, rbErr)
		}
		log.Error("result could not be published; task left running", "error", err)
		return nil, err
	}

	rec, err := s.finish(PartitionComplete, id, "")
	if err != nil {
		log.Error("failed to stamp completed record", "error", err)
		return nil, err
	}

	log.Info("task completed", "partition", string(PartitionComplete), "duration", rec.Duration().String())
	s.emitCompleted(rec)
	return rec.Clone(), nil
}

// Fail moves a running task to failed and records reason. A task that is
// not running yields a NotFoundError and the store is unchanged.
func (s *Store) Fail(id, reason string) (*Record, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	log := s.logger.WithTask(id)

	if err := s.move(id, PartitionRunning, PartitionFailed); err != nil {
		return nil, err
	}

	rec, err := s.finish(PartitionFailed, id, reason)
	if err != nil {
		log.Error("failed to stamp failed record", "error", err)
		return nil, err
	}

	log.Warn("task failed", "partition", string(PartitionFailed), "reason", reason)
	s.emitFailed(rec)
	return rec.Clone(), nil
}

// finish stamps completed_at (and error, for failures) on a record that has
// already been moved into a terminal partition.
func (s *Store) finish(p Partition, id, reason string) (*Record, error) {
	rec, err := s.readRecord(p, id)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	rec.CompletedAt = &now
	rec.Error = reason
	if err := s.writeRecord(p, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Release returns a running task to pending and clears its claim. It exists
// for operators recovering from a dead worker; nothing calls it
// automatically.
func (s *Store) Release(id string) (*Record, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	log := s.logger.WithTask(id)

	if err := s.move(id, PartitionRunning, PartitionPending); err != nil {
		return nil, err
	}

	rec, err := s.readRecord(PartitionPending, id)
	if err != nil {
		log.Error("released record unreadable", "error", err)
		return nil, err
	}
	previous := rec.ClaimedBy
	rec.StartedAt = nil
	rec.ClaimedBy = ""
	if err := s.writeRecord(PartitionPending, rec); err != nil {
		return nil, err
	}

	log.Info("task released", "partition", string(PartitionPending), "previous_worker", previous)
	s.emitReleased(rec, previous)
	return rec.Clone(), nil
}
