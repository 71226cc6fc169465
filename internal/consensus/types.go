// Package consensus gates risky subtask creation behind an approval
// checkpoint. The "consensus" here is a single-process human or agent
// approval gate, not a replicated agreement protocol.
package consensus

import (
	"time"

	"github.com/blackms/aistack-sub001/pkg/models"
)

// CheckpointStatus represents the lifecycle state of a checkpoint.
type CheckpointStatus string

const (
	// StatusPending indicates the checkpoint awaits a decision.
	StatusPending CheckpointStatus = "pending"
	// StatusApproved indicates the checkpoint was approved.
	StatusApproved CheckpointStatus = "approved"
	// StatusRejected indicates the checkpoint was rejected.
	StatusRejected CheckpointStatus = "rejected"
	// StatusExpired indicates the checkpoint passed its deadline undecided.
	StatusExpired CheckpointStatus = "expired"
)

// Terminal returns true once a checkpoint can no longer change status.
func (s CheckpointStatus) Terminal() bool {
	return s != StatusPending
}

// ProposedSubtask describes one unit of work a coordinator wants to spawn.
type ProposedSubtask struct {
	// ID is the unique identifier for the proposed subtask.
	ID string `json:"id"`
	// AgentType is the type of agent that would execute the subtask.
	AgentType models.AgentType `json:"agent_type"`
	// Input is the free-text input the subtask would run with.
	Input string `json:"input"`
	// EstimatedRisk is the estimated risk level for this subtask.
	EstimatedRisk models.RiskLevel `json:"estimated_risk"`
	// ParentTaskID is the task the subtask would be spawned under.
	ParentTaskID string `json:"parent_task_id,omitempty"`
}

// Checkpoint is a pending-decision record gating subtask creation.
// It is created pending and becomes terminal once approved, rejected,
// or expired; a decision may be recorded only while pending.
type Checkpoint struct {
	// ID is the unique identifier for this checkpoint.
	ID string `json:"id"`
	// TaskID is the task proposing the subtasks.
	TaskID string `json:"task_id"`
	// ParentTaskID is the parent of TaskID, if any.
	ParentTaskID string `json:"parent_task_id,omitempty"`
	// ProposedSubtasks lists the subtasks awaiting approval, in order.
	ProposedSubtasks []ProposedSubtask `json:"proposed_subtasks"`
	// RiskLevel is the overall risk level for the proposal.
	RiskLevel models.RiskLevel `json:"risk_level"`
	// Status is the current lifecycle state.
	Status CheckpointStatus `json:"status"`
	// CreatedAt is when the checkpoint was created.
	CreatedAt time.Time `json:"created_at"`
	// ExpiresAt is the decision deadline.
	ExpiresAt time.Time `json:"expires_at"`
	// DecidedAt is when a decision was recorded, if any.
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	// DecidedBy identifies who recorded the decision.
	DecidedBy string `json:"decided_by,omitempty"`
	// Feedback is optional reviewer feedback.
	Feedback string `json:"feedback,omitempty"`
	// RejectedSubtasks lists subtask IDs rejected individually when the
	// checkpoint as a whole was approved.
	RejectedSubtasks []string `json:"rejected_subtasks,omitempty"`
}

// EventType represents the type of checkpoint audit event.
type EventType string

const (
	// EventCreated records checkpoint creation.
	EventCreated EventType = "created"
	// EventApproved records an approval decision.
	EventApproved EventType = "approved"
	// EventRejected records a rejection decision.
	EventRejected EventType = "rejected"
	// EventExpired records expiry of an undecided checkpoint.
	EventExpired EventType = "expired"
)

// Event is one entry in a checkpoint's audit trail.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`
	// CheckpointID is the checkpoint the event belongs to.
	CheckpointID string `json:"checkpoint_id"`
	// Type is the kind of event.
	Type EventType `json:"type"`
	// Actor identifies who caused the event, if known.
	Actor string `json:"actor,omitempty"`
	// Feedback carries decision feedback, if any.
	Feedback string `json:"feedback,omitempty"`
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
}

// TaskResolver resolves task IDs to tasks. It is implemented by the
// external task/session subsystem and used for depth calculation.
type TaskResolver interface {
	// Task returns the task with the given ID, or nil if unknown.
	Task(id string) (*models.Task, error)
}

// Store persists checkpoints and their audit events. Implemented by the
// state package; a nil Store keeps the service memory-only.
type Store interface {
	// SaveCheckpoint inserts or replaces a checkpoint.
	SaveCheckpoint(cp *Checkpoint) error
	// GetCheckpoint returns a checkpoint by ID, or nil if unknown.
	GetCheckpoint(id string) (*Checkpoint, error)
	// ListCheckpointsByStatus returns checkpoints with the given status,
	// oldest first.
	ListCheckpointsByStatus(status CheckpointStatus) ([]*Checkpoint, error)
	// AppendCheckpointEvent appends an audit event.
	AppendCheckpointEvent(ev *Event) error
	// ListCheckpointEvents returns a checkpoint's audit events in order.
	ListCheckpointEvents(checkpointID string) ([]*Event, error)
}
