// Package governor tracks per-agent resource consumption and escalates
// through a severity state machine, pausing or terminating agents that
// run away.
package governor

import (
	"time"

	"github.com/blackms/aistack-sub001/pkg/models"
)

// Phase is the governor's severity level for one agent.
// Phases only move forward: normal -> warning -> intervention ->
// termination, with two explicit demotion paths (deliverable evidence
// and resume after pause).
type Phase string

const (
	// PhaseNormal indicates consumption within limits.
	PhaseNormal Phase = "normal"
	// PhaseWarning indicates consumption near a limit.
	PhaseWarning Phase = "warning"
	// PhaseIntervention indicates a limit was breached.
	PhaseIntervention Phase = "intervention"
	// PhaseTermination is terminal; the agent has been forcibly stopped.
	PhaseTermination Phase = "termination"
)

// rank orders phases by severity.
func (p Phase) rank() int {
	switch p {
	case PhaseWarning:
		return 1
	case PhaseIntervention:
		return 2
	case PhaseTermination:
		return 3
	default:
		return 0
	}
}

// FileOperation classifies a recorded file access.
type FileOperation string

const (
	// FileOpRead is a file read.
	FileOpRead FileOperation = "read"
	// FileOpWrite is a new file write.
	FileOpWrite FileOperation = "write"
	// FileOpModify is an existing file modification.
	FileOpModify FileOperation = "modify"
)

// AgentMetrics is the live resource record for one tracked agent.
// There is exactly one record per tracked agent, created on
// initialization and removed on cleanup.
type AgentMetrics struct {
	// AgentID identifies the agent.
	AgentID string `json:"agent_id"`
	// AgentType is the agent's type.
	AgentType models.AgentType `json:"agent_type"`
	// FilesRead counts recorded file reads.
	FilesRead int `json:"files_read"`
	// FilesWritten counts recorded file writes.
	FilesWritten int `json:"files_written"`
	// FilesModified counts recorded file modifications.
	FilesModified int `json:"files_modified"`
	// ApiCalls counts recorded API calls.
	ApiCalls int `json:"api_calls"`
	// TokensConsumed counts tokens reported with API calls.
	TokensConsumed int64 `json:"tokens_consumed"`
	// SubtasksSpawned counts recorded subtask spawns.
	SubtasksSpawned int `json:"subtasks_spawned"`
	// StartedAt is when tracking began.
	StartedAt time.Time `json:"started_at"`
	// LastDeliverableAt is when the agent last produced a deliverable.
	LastDeliverableAt time.Time `json:"last_deliverable_at"`
	// LastActivityAt is when any activity was last recorded.
	LastActivityAt time.Time `json:"last_activity_at"`
	// Phase is the current severity level.
	Phase Phase `json:"phase"`
	// PausedAt is when the agent was paused, if it is paused.
	PausedAt *time.Time `json:"paused_at,omitempty"`
	// PauseReason explains the pause, if any.
	PauseReason string `json:"pause_reason,omitempty"`
}

// FilesAccessed returns the total file operations recorded.
func (m *AgentMetrics) FilesAccessed() int {
	return m.FilesRead + m.FilesWritten + m.FilesModified
}

// Paused returns true while the agent is paused.
func (m *AgentMetrics) Paused() bool {
	return m.PausedAt != nil
}

// Deliverable is an append-only marker that an agent produced
// something, used to reset the idle-time clock.
type Deliverable struct {
	// ID is the unique identifier for this deliverable.
	ID string `json:"id"`
	// AgentID is the agent that produced it.
	AgentID string `json:"agent_id"`
	// Type classifies the deliverable (e.g. "code", "report").
	Type string `json:"type"`
	// Description is an optional human-readable summary.
	Description string `json:"description,omitempty"`
	// Artifacts optionally lists produced artifact paths.
	Artifacts []string `json:"artifacts,omitempty"`
	// Timestamp is when the deliverable was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// ExhaustionEvent is an append-only audit record of a phase transition.
type ExhaustionEvent struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`
	// AgentID is the affected agent.
	AgentID string `json:"agent_id"`
	// AgentType is the affected agent's type.
	AgentType models.AgentType `json:"agent_type"`
	// Phase is the phase the agent transitioned to.
	Phase Phase `json:"phase"`
	// Action is what the governor did (e.g. "warned", "paused", "terminated").
	Action string `json:"action"`
	// Threshold names the threshold that triggered the transition.
	Threshold string `json:"threshold,omitempty"`
	// Metrics is a snapshot of the agent's metrics at transition time.
	Metrics AgentMetrics `json:"metrics"`
	// Limits is a snapshot of the governing thresholds.
	Limits Thresholds `json:"limits"`
	// Timestamp is when the transition occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Store persists governor state. Implemented by the state package;
// a nil Store keeps the governor memory-only.
type Store interface {
	// SaveAgentMetrics inserts or replaces an agent's metrics record.
	SaveAgentMetrics(m *AgentMetrics) error
	// GetAgentMetrics returns an agent's metrics, or nil if unknown.
	GetAgentMetrics(agentID string) (*AgentMetrics, error)
	// DeleteAgentMetrics removes an agent's metrics record.
	DeleteAgentMetrics(agentID string) error
	// AppendDeliverable appends a deliverable checkpoint.
	AppendDeliverable(d *Deliverable) error
	// ListDeliverables returns an agent's deliverables, oldest first.
	ListDeliverables(agentID string) ([]*Deliverable, error)
	// DeleteDeliverables removes all deliverables for an agent.
	DeleteDeliverables(agentID string) error
	// AppendExhaustionEvent appends an exhaustion event.
	AppendExhaustionEvent(ev *ExhaustionEvent) error
	// ListExhaustionEvents returns events at or after since, oldest first.
	// A zero since returns all events.
	ListExhaustionEvents(since time.Time) ([]*ExhaustionEvent, error)
}
