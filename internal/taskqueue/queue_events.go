package taskqueue

import (
	"github.com/Iron-Ham/agentq/internal/event"
)

// Transition events are published only after the store change is durable,
// so subscribers can re-read the store from inside a handler.

func (s *Store) emitCreated(rec *Record) {
	s.publisher.Publish(event.NewTaskCreatedEvent(rec.ID, string(rec.Type), rec.Priority, rec.Dependencies))
}

func (s *Store) emitClaimed(rec *Record) {
	s.publisher.Publish(event.NewTaskClaimedEvent(rec.ID, rec.ClaimedBy))
}

func (s *Store) emitCompleted(rec *Record) {
	s.publisher.Publish(event.NewTaskCompletedEvent(rec.ID, string(rec.Type), rec.Duration()))
}

func (s *Store) emitFailed(rec *Record) {
	s.publisher.Publish(event.NewTaskFailedEvent(rec.ID, string(rec.Type), rec.Error))
}

func (s *Store) emitReleased(rec *Record, previousWorker string) {
	s.publisher.Publish(event.NewTaskReleasedEvent(rec.ID, previousWorker))
}

// Publisher returns the publisher the store emits transition events on.
func (s *Store) Publisher() event.Publisher {
	return s.publisher
}

// Ensure the emitted event types satisfy the Event interface at compile time.
var (
	_ event.Event = event.TaskCreatedEvent{}
	_ event.Event = event.TaskClaimedEvent{}
	_ event.Event = event.TaskCompletedEvent{}
	_ event.Event = event.TaskFailedEvent{}
	_ event.Event = event.TaskReleasedEvent{}
)
