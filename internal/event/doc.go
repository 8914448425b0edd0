// Package event provides a synchronous pub-sub bus that carries task
// lifecycle notifications between agentq components.
//
// The task store publishes an event after every successful transition, the
// dispatcher announces finished cycles and the sweeper reports what it
// removed. Subscribers such as the CLI's debug logger or the watch
// dashboard react without the publisher knowing about them.
//
// Event types follow the pattern "category.action":
//   - task.created, task.claimed, task.completed, task.failed, task.released
//   - cycle.dispatched
//   - retention.swept
//   - status.published
//   - pending.available
//
// Handlers run on the publishing goroutine. A panicking handler is recovered
// and logged so it cannot break a store transition.
//
//	bus := event.NewBus(logger)
//	bus.Subscribe(event.TypeTaskClaimed, func(e event.Event) {
//	    claimed := e.(event.TaskClaimedEvent)
//	    fmt.Println(claimed.TaskID, claimed.WorkerID)
//	})
package event
