package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/blackms/aistack-sub001/pkg/models"
)

// DefaultPriority is the priority assigned when the caller does not
// specify one. Higher priorities dequeue first.
const DefaultPriority = 5

// QueuedTask wraps a task with queue bookkeeping. A queued task lives
// in exactly one of two disjoint collections, queued or processing.
type QueuedTask struct {
	// Task is the wrapped task.
	Task *models.Task
	// Priority orders dequeuing; higher values dequeue first.
	Priority int
	// AddedAt is when the task entered the queue.
	AddedAt time.Time
	// AssignedTo is the agent the task is assigned to, if any.
	AssignedTo string
}

// Status summarizes queue occupancy.
type Status struct {
	// Queued is the number of tasks waiting to be dequeued.
	Queued int
	// Processing is the number of tasks currently in flight.
	Processing int
	// Total is Queued + Processing.
	Total int
}

// Queue orders pending work by priority and tracks in-flight assignment.
// All operations are safe for concurrent use.
type Queue struct {
	mu sync.RWMutex

	// queued holds waiting tasks in descending priority order.
	// Equal priorities preserve insertion order.
	queued []*QueuedTask
	// processing holds dequeued tasks keyed by task ID.
	processing map[string]*QueuedTask

	// listeners receive queue events synchronously.
	listeners map[int]func(Event)
	nextID    int
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{
		processing: make(map[string]*QueuedTask),
		listeners:  make(map[int]func(Event)),
	}
}

// Subscribe registers a listener for queue events and returns an
// unsubscribe function.
func (q *Queue) Subscribe(fn func(Event)) func() {
	q.mu.Lock()
	id := q.nextID
	q.nextID++
	q.listeners[id] = fn
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		delete(q.listeners, id)
		q.mu.Unlock()
	}
}

// emit delivers an event to all listeners. Called without the lock held
// so listeners may call back into the queue.
func (q *Queue) emit(event Event) {
	q.mu.RLock()
	fns := make([]func(Event), 0, len(q.listeners))
	for _, fn := range q.listeners {
		fns = append(fns, fn)
	}
	q.mu.RUnlock()

	for _, fn := range fns {
		fn(event)
	}
}

// Enqueue adds a task with the default priority.
func (q *Queue) Enqueue(task *models.Task) *QueuedTask {
	return q.EnqueueWithPriority(task, DefaultPriority)
}

// EnqueueWithPriority adds a task with an explicit priority, maintaining
// descending priority order. Equal priorities preserve insertion order.
func (q *Queue) EnqueueWithPriority(task *models.Task, priority int) *QueuedTask {
	qt := &QueuedTask{
		Task:     task,
		Priority: priority,
		AddedAt:  time.Now(),
	}

	q.mu.Lock()
	q.insertLocked(qt)
	q.mu.Unlock()

	q.emit(Event{
		Type:      EventTaskAdded,
		TaskID:    task.ID,
		Priority:  priority,
		Timestamp: time.Now(),
	})

	return qt
}

// insertLocked inserts qt before the first entry with a strictly lower
// priority, keeping the sort stable. Caller must hold the lock.
func (q *Queue) insertLocked(qt *QueuedTask) {
	idx := len(q.queued)
	for i, existing := range q.queued {
		if existing.Priority < qt.Priority {
			idx = i
			break
		}
	}
	q.queued = append(q.queued, nil)
	copy(q.queued[idx+1:], q.queued[idx:])
	q.queued[idx] = qt
}

// Dequeue removes and returns the highest-priority task matching the
// optional agent-type filter, moving it to the processing set.
// An empty filter matches any task. Returns nil if nothing matches.
func (q *Queue) Dequeue(agentType models.AgentType) *QueuedTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, qt := range q.queued {
		if agentType != "" && qt.Task.AgentType != agentType {
			continue
		}
		q.queued = append(q.queued[:i], q.queued[i+1:]...)
		q.processing[qt.Task.ID] = qt
		return qt
	}
	return nil
}

// Assign records which agent is working on a processing task.
// It fails for tasks that are not currently processing.
func (q *Queue) Assign(taskID, agentID string) error {
	q.mu.Lock()
	qt, ok := q.processing[taskID]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("task %s is not processing", taskID)
	}
	qt.AssignedTo = agentID
	q.mu.Unlock()

	q.emit(Event{
		Type:      EventTaskAssigned,
		TaskID:    taskID,
		AgentID:   agentID,
		Priority:  qt.Priority,
		Timestamp: time.Now(),
	})
	return nil
}

// Complete removes a processing task. If both collections become empty
// an EventQueueEmpty event follows the completion event.
func (q *Queue) Complete(taskID string) error {
	q.mu.Lock()
	qt, ok := q.processing[taskID]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("task %s is not processing", taskID)
	}
	delete(q.processing, taskID)
	empty := len(q.queued) == 0 && len(q.processing) == 0
	q.mu.Unlock()

	q.emit(Event{
		Type:      EventTaskCompleted,
		TaskID:    taskID,
		Priority:  qt.Priority,
		Timestamp: time.Now(),
	})
	if empty {
		q.emit(Event{Type: EventQueueEmpty, Timestamp: time.Now()})
	}
	return nil
}

// Requeue moves a processing task back to the queued set with its
// priority reduced by one and its assignment cleared. The demotion is
// deliberate: repeatedly failing tasks lose priority over time so they
// cannot starve other work.
func (q *Queue) Requeue(taskID string) error {
	q.mu.Lock()
	qt, ok := q.processing[taskID]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("task %s is not processing", taskID)
	}
	delete(q.processing, taskID)
	qt.Priority--
	qt.AssignedTo = ""
	q.insertLocked(qt)
	q.mu.Unlock()

	q.emit(Event{
		Type:      EventTaskRequeued,
		TaskID:    taskID,
		Priority:  qt.Priority,
		Timestamp: time.Now(),
	})
	return nil
}

// Peek returns up to n queued tasks in dequeue order without removing them.
func (q *Queue) Peek(n int) []*QueuedTask {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if n > len(q.queued) {
		n = len(q.queued)
	}
	out := make([]*QueuedTask, n)
	copy(out, q.queued[:n])
	return out
}

// Processing returns the tasks currently in flight.
func (q *Queue) Processing() []*QueuedTask {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]*QueuedTask, 0, len(q.processing))
	for _, qt := range q.processing {
		out = append(out, qt)
	}
	return out
}

// Status returns current queue occupancy.
func (q *Queue) Status() Status {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return Status{
		Queued:     len(q.queued),
		Processing: len(q.processing),
		Total:      len(q.queued) + len(q.processing),
	}
}

// Clear removes all queued and processing tasks.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.queued = nil
	q.processing = make(map[string]*QueuedTask)
}
