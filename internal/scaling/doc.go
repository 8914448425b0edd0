// Package scaling decides how many workers a pool should run from the
// depth of the queue.
//
// The core types are:
//
//   - [Policy]: scaling rules (thresholds, cooldown, worker limits)
//   - [Monitor]: evaluates the policy on every published status snapshot
//   - [Decision]: the outcome of an evaluation, scale up, scale down or hold
//
// # Usage
//
//	policy := scaling.NewPolicy(
//	    scaling.WithMinWorkers(1),
//	    scaling.WithMaxWorkers(8),
//	    scaling.WithCooldownPeriod(30 * time.Second),
//	)
//
//	monitor := scaling.NewMonitor(bus, policy, 1)
//	monitor.OnDecision(func(d scaling.Decision) {
//	    resize(d.Delta) // start or stop runners
//	})
//	monitor.Start()
//	defer monitor.Stop()
//
// All types in this package are safe for concurrent use.
package scaling
