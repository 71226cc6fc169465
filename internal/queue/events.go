// Package queue provides a priority task queue for pending agent work.
package queue

import "time"

// EventType represents the type of queue event.
type EventType string

const (
	// EventTaskAdded indicates a task was enqueued.
	EventTaskAdded EventType = "task_added"
	// EventTaskAssigned indicates a processing task was assigned to an agent.
	EventTaskAssigned EventType = "task_assigned"
	// EventTaskCompleted indicates a processing task completed.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskRequeued indicates a processing task was returned to the queue.
	EventTaskRequeued EventType = "task_requeued"
	// EventQueueEmpty indicates both the queued and processing sets are empty.
	EventQueueEmpty EventType = "queue_empty"
)

// Event represents a state transition in the queue.
// Events are delivered synchronously to subscribers as part of the
// operation that caused them.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// AgentID is the agent involved, for assignment events.
	AgentID string
	// Priority is the task's priority at the time of the event.
	Priority int
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
