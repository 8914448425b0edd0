package taskqueue

import (
	"slices"
	"testing"
	"time"

	"github.com/Iron-Ham/agentq/internal/errors"
)

func TestClaim_DependencyGate(t *testing.T) {
	q := newTestQueue(t)
	scan1 := q.create(t, TypeScan)
	scan2 := q.create(t, TypeScan)
	extract := q.create(t, TypeExtraction, WithDependencies(scan1, scan2))

	_, err := q.store.Claim(extract)
	var depErr *errors.DependencyError
	if !errors.As(err, &depErr) {
		t.Fatalf("Claim error = %v, want DependencyError", err)
	}
	if !slices.Equal(depErr.Unmet, []string{scan1, scan2}) {
		t.Errorf("Unmet = %v", depErr.Unmet)
	}
	if !errors.IsRetryable(err) {
		t.Error("waiting on pending dependencies should be retryable")
	}
	if !slices.Contains(q.ids(t, PartitionPending), extract) {
		t.Error("refused task must stay in pending")
	}

	q.mustFinish(t, scan1)
	_, err = q.store.Claim(extract)
	if !errors.As(err, &depErr) || !slices.Equal(depErr.Unmet, []string{scan2}) {
		t.Fatalf("Claim error = %v, want blocked on %s", err, scan2)
	}

	q.mustFinish(t, scan2)
	if _, err := q.store.Claim(extract); err != nil {
		t.Errorf("Claim after deps complete error = %v", err)
	}
}

func TestClaim_FailedDependencyNotRetryable(t *testing.T) {
	q := newTestQueue(t)
	scan := q.create(t, TypeScan)
	grade := q.create(t, TypeGrading, WithDependencies(scan))

	if _, err := q.store.Claim(scan); err != nil {
		t.Fatal(err)
	}
	if _, err := q.store.Fail(scan, "source offline"); err != nil {
		t.Fatal(err)
	}

	_, err := q.store.Claim(grade)
	var depErr *errors.DependencyError
	if !errors.As(err, &depErr) {
		t.Fatalf("Claim error = %v, want DependencyError", err)
	}
	if !slices.Equal(depErr.Failed, []string{scan}) {
		t.Errorf("Failed = %v, want [%s]", depErr.Failed, scan)
	}
	if errors.IsRetryable(err) {
		t.Error("a failed dependency should not be retryable")
	}
}

func TestClaim_SweptFailedDependencyNotRetryable(t *testing.T) {
	q := newTestQueue(t)
	scan := q.create(t, TypeScan)
	grade := q.create(t, TypeGrading, WithDependencies(scan))

	if _, err := q.store.Claim(scan); err != nil {
		t.Fatal(err)
	}
	if _, err := q.store.Fail(scan, "source offline"); err != nil {
		t.Fatal(err)
	}
	// Retention removes the failed record; failures leave no result.
	if err := q.store.Remove(PartitionFailed, scan); err != nil {
		t.Fatal(err)
	}

	_, err := q.store.Claim(grade)
	var depErr *errors.DependencyError
	if !errors.As(err, &depErr) {
		t.Fatalf("Claim error = %v, want DependencyError", err)
	}
	if !slices.Equal(depErr.Missing, []string{scan}) {
		t.Errorf("Missing = %v, want [%s]", depErr.Missing, scan)
	}
	if errors.IsRetryable(err) {
		t.Error("a swept failed dependency should not be retryable")
	}
	if !slices.Contains(q.ids(t, PartitionPending), grade) {
		t.Error("refused task must stay in pending")
	}
}

func TestClaim_UnknownDependencyNotRetryable(t *testing.T) {
	q := newTestQueue(t)
	scan := q.create(t, TypeScan)
	typo := "scan-20261017T101500-9999"
	grade := q.create(t, TypeGrading, WithDependencies(scan, typo))

	_, err := q.store.Claim(grade)
	var depErr *errors.DependencyError
	if !errors.As(err, &depErr) {
		t.Fatalf("Claim error = %v, want DependencyError", err)
	}
	if !slices.Equal(depErr.Unmet, []string{scan, typo}) {
		t.Errorf("Unmet = %v", depErr.Unmet)
	}
	if !slices.Equal(depErr.Missing, []string{typo}) {
		t.Errorf("Missing = %v, want [%s]", depErr.Missing, typo)
	}
	if len(depErr.Failed) != 0 {
		t.Errorf("Failed = %v, want none", depErr.Failed)
	}
	if errors.IsRetryable(err) {
		t.Error("a dependency that never existed should not be retryable")
	}
}

func TestCheckDependencies_ReleasedDependencyIsWaiting(t *testing.T) {
	q := newTestQueue(t)
	scan := q.create(t, TypeScan)
	grade := q.create(t, TypeGrading, WithDependencies(scan))

	if _, err := q.store.Claim(scan); err != nil {
		t.Fatal(err)
	}
	if _, err := q.store.Release(scan); err != nil {
		t.Fatal(err)
	}

	rec, _, err := q.store.Get(grade)
	if err != nil {
		t.Fatal(err)
	}
	err = q.store.CheckDependencies(rec)
	if !errors.IsRetryable(err) {
		t.Errorf("CheckDependencies() = %v, want a retryable wait", err)
	}

	q.mustFinish(t, scan)
	if err := q.store.CheckDependencies(rec); err != nil {
		t.Errorf("CheckDependencies() after completion = %v, want nil", err)
	}
}

func TestClaim_DependencySatisfiedByResultAfterSweep(t *testing.T) {
	q := newTestQueue(t)
	scan := q.create(t, TypeScan)
	grade := q.create(t, TypeGrading, WithDependencies(scan))
	q.mustFinish(t, scan)

	// Retention removes the record but keeps the result.
	if err := q.store.Remove(PartitionComplete, scan); err != nil {
		t.Fatal(err)
	}
	if _, err := q.store.Claim(grade); err != nil {
		t.Errorf("Claim error = %v, want success via result file", err)
	}
}

func TestClaim_GatingDisabled(t *testing.T) {
	q := newTestQueue(t, WithDependencyGating(false))
	grade := q.create(t, TypeGrading, WithDependencies("scan-never-created"))

	if q.store.DependencyGating() {
		t.Fatal("DependencyGating() = true, want false")
	}
	if _, err := q.store.Claim(grade); err != nil {
		t.Errorf("Claim with gating off error = %v", err)
	}
}

func TestClaimable(t *testing.T) {
	q := newTestQueue(t)
	scan := q.create(t, TypeScan, WithPriority(1))
	q.clock.Advance(time.Second)
	explore := q.create(t, TypeExploration, WithPriority(8))
	q.clock.Advance(time.Second)
	grade := q.create(t, TypeGrading, WithPriority(3), WithDependencies(scan))
	q.clock.Advance(time.Second)
	scan2 := q.create(t, TypeScan, WithPriority(1))

	pending, _, err := q.store.Records(PartitionPending)
	if err != nil {
		t.Fatal(err)
	}
	claimable, err := q.store.Claimable(pending)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, rec := range claimable {
		got = append(got, rec.ID)
	}
	want := []string{scan, scan2, explore}
	if !slices.Equal(got, want) {
		t.Errorf("Claimable() = %v, want %v", got, want)
	}

	q.mustFinish(t, scan)
	pending, _, _ = q.store.Records(PartitionPending)
	unblocked, err := q.store.UnblockedBy(scan, pending)
	if err != nil {
		t.Fatal(err)
	}
	if len(unblocked) != 1 || unblocked[0].ID != grade {
		t.Errorf("UnblockedBy() = %v, want [%s]", unblocked, grade)
	}
}

func TestSortByPriority(t *testing.T) {
	recs := []*Record{
		{ID: "c", Priority: 5, CreatedAt: testEpoch},
		{ID: "b", Priority: 1, CreatedAt: testEpoch.Add(time.Minute)},
		{ID: "a", Priority: 1, CreatedAt: testEpoch.Add(time.Minute)},
		{ID: "d", Priority: 1, CreatedAt: testEpoch},
	}
	SortByPriority(recs)

	var got []string
	for _, r := range recs {
		got = append(got, r.ID)
	}
	if want := []string{"d", "a", "b", "c"}; !slices.Equal(got, want) {
		t.Errorf("SortByPriority() = %v, want %v", got, want)
	}
}
