package queue

import (
	"testing"

	"github.com/blackms/aistack-sub001/pkg/models"
)

func task(id string, agentType models.AgentType) *models.Task {
	return &models.Task{
		ID:        id,
		AgentType: agentType,
		Status:    models.TaskStatusPending,
	}
}

func TestEnqueuePriorityOrder(t *testing.T) {
	q := New()

	q.EnqueueWithPriority(task("low", models.AgentTypeDeveloper), 1)
	q.EnqueueWithPriority(task("high", models.AgentTypeDeveloper), 10)
	q.EnqueueWithPriority(task("medium", models.AgentTypeDeveloper), 5)

	peeked := q.Peek(3)
	want := []string{"high", "medium", "low"}
	if len(peeked) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(peeked))
	}
	for i, id := range want {
		if peeked[i].Task.ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, peeked[i].Task.ID)
		}
	}
}

func TestEnqueueStableForEqualPriorities(t *testing.T) {
	q := New()

	q.EnqueueWithPriority(task("first", models.AgentTypeDeveloper), 5)
	q.EnqueueWithPriority(task("second", models.AgentTypeDeveloper), 5)
	q.EnqueueWithPriority(task("third", models.AgentTypeDeveloper), 5)

	peeked := q.Peek(3)
	want := []string{"first", "second", "third"}
	for i, id := range want {
		if peeked[i].Task.ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, peeked[i].Task.ID)
		}
	}
}

func TestDequeueMovesToProcessing(t *testing.T) {
	q := New()
	q.Enqueue(task("t1", models.AgentTypeDeveloper))

	qt := q.Dequeue("")
	if qt == nil || qt.Task.ID != "t1" {
		t.Fatalf("expected to dequeue t1, got %+v", qt)
	}

	status := q.Status()
	if status.Queued != 0 || status.Processing != 1 {
		t.Errorf("expected 0 queued / 1 processing, got %d / %d", status.Queued, status.Processing)
	}
}

func TestDequeueAgentTypeFilter(t *testing.T) {
	q := New()
	q.Enqueue(task("dev", models.AgentTypeDeveloper))
	q.Enqueue(task("doc", models.AgentTypeDocumenter))

	qt := q.Dequeue(models.AgentTypeDocumenter)
	if qt == nil || qt.Task.ID != "doc" {
		t.Fatalf("expected doc, got %+v", qt)
	}

	if qt := q.Dequeue(models.AgentTypeTester); qt != nil {
		t.Errorf("expected nil for unmatched filter, got %+v", qt)
	}
}

func TestDequeueEmpty(t *testing.T) {
	q := New()
	if qt := q.Dequeue(""); qt != nil {
		t.Errorf("expected nil from empty queue, got %+v", qt)
	}
}

func TestAssignOnlyProcessingTasks(t *testing.T) {
	q := New()
	q.Enqueue(task("t1", models.AgentTypeDeveloper))

	// Not yet dequeued - assign must fail.
	if err := q.Assign("t1", "agent-1"); err == nil {
		t.Error("expected error assigning a queued task")
	}

	q.Dequeue("")
	if err := q.Assign("t1", "agent-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	procs := q.Processing()
	if len(procs) != 1 || procs[0].AssignedTo != "agent-1" {
		t.Errorf("expected t1 assigned to agent-1, got %+v", procs)
	}
}

func TestCompleteRemovesTask(t *testing.T) {
	q := New()
	q.Enqueue(task("t1", models.AgentTypeDeveloper))
	q.Dequeue("")

	if err := q.Complete("t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status := q.Status()
	if status.Total != 0 {
		t.Errorf("expected empty queue, got total %d", status.Total)
	}

	if err := q.Complete("t1"); err == nil {
		t.Error("expected error completing unknown task")
	}
}

func TestRequeueDemotesPriority(t *testing.T) {
	q := New()
	q.EnqueueWithPriority(task("t1", models.AgentTypeDeveloper), 5)
	q.Dequeue("")
	if err := q.Assign("t1", "agent-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := q.Requeue("t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	peeked := q.Peek(1)
	if len(peeked) != 1 {
		t.Fatal("expected task back in queue")
	}
	if peeked[0].Priority != 4 {
		t.Errorf("expected priority 4 after requeue, got %d", peeked[0].Priority)
	}
	if peeked[0].AssignedTo != "" {
		t.Errorf("expected cleared assignment, got %q", peeked[0].AssignedTo)
	}

	if err := q.Requeue("t1"); err == nil {
		t.Error("expected error requeuing a task that is not processing")
	}
}

func TestStatusInvariant(t *testing.T) {
	q := New()
	q.Enqueue(task("a", models.AgentTypeDeveloper))
	q.Enqueue(task("b", models.AgentTypeDeveloper))
	q.Dequeue("")

	status := q.Status()
	if status.Total != status.Queued+status.Processing {
		t.Errorf("total %d != queued %d + processing %d", status.Total, status.Queued, status.Processing)
	}
}

func TestQueueEvents(t *testing.T) {
	q := New()

	var events []EventType
	unsubscribe := q.Subscribe(func(e Event) {
		events = append(events, e.Type)
	})
	defer unsubscribe()

	q.Enqueue(task("t1", models.AgentTypeDeveloper))
	q.Dequeue("")
	if err := q.Assign("t1", "agent-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Complete("t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []EventType{EventTaskAdded, EventTaskAssigned, EventTaskCompleted, EventQueueEmpty}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(events), events)
	}
	for i, et := range want {
		if events[i] != et {
			t.Errorf("event %d: expected %s, got %s", i, et, events[i])
		}
	}
}

func TestUnsubscribeStopsEvents(t *testing.T) {
	q := New()

	count := 0
	unsubscribe := q.Subscribe(func(e Event) { count++ })
	q.Enqueue(task("t1", models.AgentTypeDeveloper))
	unsubscribe()
	q.Enqueue(task("t2", models.AgentTypeDeveloper))

	if count != 1 {
		t.Errorf("expected 1 event after unsubscribe, got %d", count)
	}
}

func TestClear(t *testing.T) {
	q := New()
	q.Enqueue(task("a", models.AgentTypeDeveloper))
	q.Enqueue(task("b", models.AgentTypeDeveloper))
	q.Dequeue("")

	q.Clear()
	status := q.Status()
	if status.Total != 0 {
		t.Errorf("expected empty queue after clear, got %d", status.Total)
	}
}
