// Package taskqueue is the persistent, crash-tolerant task store that agentq
// workers coordinate through.
//
// Tasks are JSON files under <root>/tasks/, one directory per partition:
//
//	tasks/pending/   created, waiting for a worker
//	tasks/running/   claimed by a worker
//	tasks/complete/  finished; result in results/{id}.json
//	tasks/failed/    finished with an error
//
// Every transition is a rename between partitions, which makes the claim
// exclusive without any lock: two workers racing for the same task both
// attempt the rename and only one succeeds. The loser receives a
// NotFoundError.
//
// [Store] owns the partitions, [Factory] mints IDs and writes new pending
// tasks, and dependency gating refuses claims whose upstream tasks have not
// completed.
//
// Usage:
//
//	store := taskqueue.NewStore(".agentq", taskqueue.WithLogger(logger))
//	factory := taskqueue.NewFactory(store)
//
//	id, err := factory.Create(taskqueue.TypeScan, "cycle 1: scan fred", payload,
//	    taskqueue.WithPriority(1))
//
//	// Worker side
//	rec, err := store.ClaimAs(id, "worker-1")
//	if err == nil {
//	    // ... execute rec.Payload ...
//	    _, err = store.Complete(rec.ID, result)
//	}
package taskqueue
