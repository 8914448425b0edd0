package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "task.claimed", "cycle.dispatched")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// Event type identifiers.
const (
	TypeTaskCreated      = "task.created"
	TypeTaskClaimed      = "task.claimed"
	TypeTaskCompleted    = "task.completed"
	TypeTaskFailed       = "task.failed"
	TypeTaskReleased     = "task.released"
	TypeCycleDispatched  = "cycle.dispatched"
	TypeRetentionSwept   = "retention.swept"
	TypeStatusPublished  = "status.published"
	TypePendingAvailable = "pending.available"
	TypeScalingDecision  = "scaling.decision"
)

// -----------------------------------------------------------------------------
// Task Lifecycle Events
// -----------------------------------------------------------------------------

// TaskCreatedEvent is emitted after a new record lands in pending.
type TaskCreatedEvent struct {
	baseEvent
	TaskID       string
	TaskType     string
	Priority     int
	Dependencies []string
}

// NewTaskCreatedEvent creates a TaskCreatedEvent.
func NewTaskCreatedEvent(taskID, taskType string, priority int, deps []string) TaskCreatedEvent {
	return TaskCreatedEvent{
		baseEvent:    newBaseEvent(TypeTaskCreated),
		TaskID:       taskID,
		TaskType:     taskType,
		Priority:     priority,
		Dependencies: deps,
	}
}

// TaskClaimedEvent is emitted when a worker wins the pending -> running move.
type TaskClaimedEvent struct {
	baseEvent
	TaskID   string
	WorkerID string // empty when the claimant did not identify itself
}

// NewTaskClaimedEvent creates a TaskClaimedEvent.
func NewTaskClaimedEvent(taskID, workerID string) TaskClaimedEvent {
	return TaskClaimedEvent{
		baseEvent: newBaseEvent(TypeTaskClaimed),
		TaskID:    taskID,
		WorkerID:  workerID,
	}
}

// TaskCompletedEvent is emitted when a running task reaches complete.
type TaskCompletedEvent struct {
	baseEvent
	TaskID   string
	TaskType string
	Duration time.Duration // started_at to completed_at, zero if unknown
}

// NewTaskCompletedEvent creates a TaskCompletedEvent.
func NewTaskCompletedEvent(taskID, taskType string, duration time.Duration) TaskCompletedEvent {
	return TaskCompletedEvent{
		baseEvent: newBaseEvent(TypeTaskCompleted),
		TaskID:    taskID,
		TaskType:  taskType,
		Duration:  duration,
	}
}

// TaskFailedEvent is emitted when a running task reaches failed.
type TaskFailedEvent struct {
	baseEvent
	TaskID   string
	TaskType string
	Reason   string
}

// NewTaskFailedEvent creates a TaskFailedEvent.
func NewTaskFailedEvent(taskID, taskType, reason string) TaskFailedEvent {
	return TaskFailedEvent{
		baseEvent: newBaseEvent(TypeTaskFailed),
		TaskID:    taskID,
		TaskType:  taskType,
		Reason:    reason,
	}
}

// TaskReleasedEvent is emitted when an operator returns a running task to
// pending.
type TaskReleasedEvent struct {
	baseEvent
	TaskID         string
	PreviousWorker string
}

// NewTaskReleasedEvent creates a TaskReleasedEvent.
func NewTaskReleasedEvent(taskID, previousWorker string) TaskReleasedEvent {
	return TaskReleasedEvent{
		baseEvent:      newBaseEvent(TypeTaskReleased),
		TaskID:         taskID,
		PreviousWorker: previousWorker,
	}
}

// -----------------------------------------------------------------------------
// Dispatch and Maintenance Events
// -----------------------------------------------------------------------------

// CycleDispatchedEvent is emitted after a full dispatch cycle is enqueued.
type CycleDispatchedEvent struct {
	baseEvent
	Cycle   int
	TaskIDs []string
}

// NewCycleDispatchedEvent creates a CycleDispatchedEvent.
func NewCycleDispatchedEvent(cycle int, taskIDs []string) CycleDispatchedEvent {
	return CycleDispatchedEvent{
		baseEvent: newBaseEvent(TypeCycleDispatched),
		Cycle:     cycle,
		TaskIDs:   taskIDs,
	}
}

// RetentionSweptEvent is emitted after a retention sweep.
type RetentionSweptEvent struct {
	baseEvent
	Removed int
	MaxAge  time.Duration
}

// NewRetentionSweptEvent creates a RetentionSweptEvent.
func NewRetentionSweptEvent(removed int, maxAge time.Duration) RetentionSweptEvent {
	return RetentionSweptEvent{
		baseEvent: newBaseEvent(TypeRetentionSwept),
		Removed:   removed,
		MaxAge:    maxAge,
	}
}

// StatusPublishedEvent is emitted after status.json is rewritten.
type StatusPublishedEvent struct {
	baseEvent
	Pending  int
	Running  int
	Complete int
	Failed   int
}

// NewStatusPublishedEvent creates a StatusPublishedEvent.
func NewStatusPublishedEvent(pending, running, complete, failed int) StatusPublishedEvent {
	return StatusPublishedEvent{
		baseEvent: newBaseEvent(TypeStatusPublished),
		Pending:   pending,
		Running:   running,
		Complete:  complete,
		Failed:    failed,
	}
}

// PendingAvailableEvent is emitted by the pending-directory watcher when a
// new record file appears.
type PendingAvailableEvent struct {
	baseEvent
	TaskID string
}

// NewPendingAvailableEvent creates a PendingAvailableEvent.
func NewPendingAvailableEvent(taskID string) PendingAvailableEvent {
	return PendingAvailableEvent{
		baseEvent: newBaseEvent(TypePendingAvailable),
		TaskID:    taskID,
	}
}

// ScalingDecisionEvent is emitted when a worker pool changes size.
type ScalingDecisionEvent struct {
	baseEvent
	Action  string
	Delta   int
	Reason  string
	Workers int // pool size before the change
}

// NewScalingDecisionEvent creates a ScalingDecisionEvent.
func NewScalingDecisionEvent(action string, delta int, reason string, workers int) ScalingDecisionEvent {
	return ScalingDecisionEvent{
		baseEvent: newBaseEvent(TypeScalingDecision),
		Action:    action,
		Delta:     delta,
		Reason:    reason,
		Workers:   workers,
	}
}
