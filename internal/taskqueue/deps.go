package taskqueue

import (
	"cmp"
	"slices"

	"github.com/Iron-Ham/agentq/internal/errors"
)

// depState classifies one dependency of a pending task.
type depState int

const (
	depDone depState = iota
	depWaiting
	depFailed
	depMissing
)

// dependencyState locates depID. A dependency whose record was removed by
// retention still counts as done as long as its result file is present. A
// dependency found in no partition is looked up a second time before it is
// called missing, so a record caught mid-rename (for example by a release)
// is not misreported.
func (s *Store) dependencyState(depID string) (depState, error) {
	for range 2 {
		done, err := s.HasResult(depID)
		if err != nil {
			return 0, err
		}
		if done {
			return depDone, nil
		}
		found, err := s.Locate(depID)
		if err != nil {
			return 0, err
		}
		switch {
		case slices.Contains(found, PartitionComplete):
			return depDone, nil
		case slices.Contains(found, PartitionFailed):
			return depFailed, nil
		case len(found) > 0:
			return depWaiting, nil
		}
	}
	return depMissing, nil
}

// unmetDependencies returns the dependencies of rec that have not completed,
// and the subsets of those that failed or no longer exist and so never will.
func (s *Store) unmetDependencies(rec *Record) (unmet, failed, missing []string, err error) {
	for _, dep := range rec.Dependencies {
		state, err := s.dependencyState(dep)
		if err != nil {
			return nil, nil, nil, err
		}
		switch state {
		case depDone:
			continue
		case depFailed:
			failed = append(failed, dep)
		case depMissing:
			missing = append(missing, dep)
		}
		unmet = append(unmet, dep)
	}
	return unmet, failed, missing, nil
}

// CheckDependencies returns a DependencyError when some dependency of rec
// has not completed, or nil. The error is not retryable when a dependency
// failed or is missing. It checks regardless of whether the store gates
// claims.
func (s *Store) CheckDependencies(rec *Record) error {
	unmet, failed, missing, err := s.unmetDependencies(rec)
	if err != nil {
		return err
	}
	if len(unmet) == 0 {
		return nil
	}
	return errors.NewDependencyError(rec.ID, unmet, failed).WithMissing(missing)
}

// Ready reports whether every dependency of rec has completed. It always
// checks, regardless of whether the store gates claims.
func (s *Store) Ready(rec *Record) (bool, error) {
	unmet, _, _, err := s.unmetDependencies(rec)
	if err != nil {
		return false, err
	}
	return len(unmet) == 0, nil
}

// Claimable filters pending records down to those a claim would accept and
// returns them in claim order (see SortByPriority). When gating is off every
// record is claimable.
func (s *Store) Claimable(pending []*Record) ([]*Record, error) {
	out := make([]*Record, 0, len(pending))
	for _, rec := range pending {
		if s.gate {
			ok, err := s.Ready(rec)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, rec)
	}
	SortByPriority(out)
	return out, nil
}

// UnblockedBy returns the pending records that list completedID as a
// dependency and have no other unmet dependency.
func (s *Store) UnblockedBy(completedID string, pending []*Record) ([]*Record, error) {
	var unblocked []*Record
	for _, rec := range pending {
		if !slices.Contains(rec.Dependencies, completedID) {
			continue
		}
		ok, err := s.Ready(rec)
		if err != nil {
			return nil, err
		}
		if ok {
			unblocked = append(unblocked, rec)
		}
	}
	SortByPriority(unblocked)
	return unblocked, nil
}

// SortByPriority orders records by priority (lower first), then creation
// time, then ID, so that the order is stable across listings.
func SortByPriority(recs []*Record) {
	slices.SortStableFunc(recs, func(a, b *Record) int {
		return cmp.Or(
			cmp.Compare(a.Priority, b.Priority),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
}
