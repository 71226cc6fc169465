package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blackms/aistack-sub001/internal/governor"
)

// Governor persistence implementing the governor store interface.

// SaveAgentMetrics inserts or replaces an agent's metrics record.
func (db *DB) SaveAgentMetrics(m *governor.AgentMetrics) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO agent_metrics
			(agent_id, agent_type, files_read, files_written, files_modified,
			 api_calls, tokens_consumed, subtasks_spawned,
			 started_at, last_deliverable_at, last_activity_at,
			 phase, paused_at, pause_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.AgentID, string(m.AgentType), m.FilesRead, m.FilesWritten, m.FilesModified,
		m.ApiCalls, m.TokensConsumed, m.SubtasksSpawned,
		formatTime(m.StartedAt), formatTime(m.LastDeliverableAt), formatTime(m.LastActivityAt),
		string(m.Phase), nullableTimeArg(m.PausedAt), m.PauseReason)
	if err != nil {
		return fmt.Errorf("save agent metrics: %w", err)
	}
	return nil
}

// GetAgentMetrics retrieves an agent's metrics. Returns nil if unknown.
func (db *DB) GetAgentMetrics(agentID string) (*governor.AgentMetrics, error) {
	row := db.QueryRow(`
		SELECT agent_id, agent_type, files_read, files_written, files_modified,
		       api_calls, tokens_consumed, subtasks_spawned,
		       started_at, last_deliverable_at, last_activity_at,
		       phase, paused_at, pause_reason
		FROM agent_metrics WHERE agent_id = ?
	`, agentID)

	var m governor.AgentMetrics
	var startedAt, lastDeliverableAt, lastActivityAt string
	var pausedAt sql.NullString
	err := row.Scan(&m.AgentID, &m.AgentType, &m.FilesRead, &m.FilesWritten, &m.FilesModified,
		&m.ApiCalls, &m.TokensConsumed, &m.SubtasksSpawned,
		&startedAt, &lastDeliverableAt, &lastActivityAt,
		&m.Phase, &pausedAt, &m.PauseReason)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent metrics: %w", err)
	}

	m.StartedAt, _ = parseTime(startedAt)
	m.LastDeliverableAt, _ = parseTime(lastDeliverableAt)
	m.LastActivityAt, _ = parseTime(lastActivityAt)
	m.PausedAt = parseNullableTime(pausedAt)
	return &m, nil
}

// DeleteAgentMetrics removes an agent's metrics record.
func (db *DB) DeleteAgentMetrics(agentID string) error {
	if _, err := db.Exec(`DELETE FROM agent_metrics WHERE agent_id = ?`, agentID); err != nil {
		return fmt.Errorf("delete agent metrics: %w", err)
	}
	return nil
}

// AppendDeliverable appends a deliverable checkpoint.
func (db *DB) AppendDeliverable(d *governor.Deliverable) error {
	artifacts, err := json.Marshal(d.Artifacts)
	if err != nil {
		return fmt.Errorf("marshal artifacts: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO deliverables (id, agent_id, type, description, artifacts, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.ID, d.AgentID, d.Type, d.Description, string(artifacts), formatTime(d.Timestamp))
	if err != nil {
		return fmt.Errorf("append deliverable: %w", err)
	}
	return nil
}

// ListDeliverables retrieves an agent's deliverables, oldest first.
func (db *DB) ListDeliverables(agentID string) ([]*governor.Deliverable, error) {
	rows, err := db.Query(`
		SELECT id, agent_id, type, description, artifacts, timestamp
		FROM deliverables WHERE agent_id = ? ORDER BY timestamp
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list deliverables: %w", err)
	}
	defer rows.Close()

	var deliverables []*governor.Deliverable
	for rows.Next() {
		var d governor.Deliverable
		var artifacts, timestamp string
		if err := rows.Scan(&d.ID, &d.AgentID, &d.Type, &d.Description, &artifacts, &timestamp); err != nil {
			return nil, fmt.Errorf("scan deliverable: %w", err)
		}
		if err := json.Unmarshal([]byte(artifacts), &d.Artifacts); err != nil {
			return nil, fmt.Errorf("unmarshal artifacts: %w", err)
		}
		d.Timestamp, _ = parseTime(timestamp)
		deliverables = append(deliverables, &d)
	}
	return deliverables, rows.Err()
}

// DeleteDeliverables removes all deliverables for an agent.
func (db *DB) DeleteDeliverables(agentID string) error {
	if _, err := db.Exec(`DELETE FROM deliverables WHERE agent_id = ?`, agentID); err != nil {
		return fmt.Errorf("delete deliverables: %w", err)
	}
	return nil
}

// AppendExhaustionEvent appends an exhaustion event.
func (db *DB) AppendExhaustionEvent(ev *governor.ExhaustionEvent) error {
	metrics, err := json.Marshal(ev.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics snapshot: %w", err)
	}
	limits, err := json.Marshal(ev.Limits)
	if err != nil {
		return fmt.Errorf("marshal limits snapshot: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO exhaustion_events
			(id, agent_id, agent_type, phase, action, threshold, metrics, limits, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.AgentID, string(ev.AgentType), string(ev.Phase), ev.Action, ev.Threshold,
		string(metrics), string(limits), formatTime(ev.Timestamp))
	if err != nil {
		return fmt.Errorf("append exhaustion event: %w", err)
	}
	return nil
}

// ListExhaustionEvents retrieves events at or after since, oldest
// first. A zero since returns all events.
func (db *DB) ListExhaustionEvents(since time.Time) ([]*governor.ExhaustionEvent, error) {
	query := `
		SELECT id, agent_id, agent_type, phase, action, threshold, metrics, limits, timestamp
		FROM exhaustion_events
	`
	var args []any
	if !since.IsZero() {
		query += ` WHERE timestamp >= ?`
		args = append(args, formatTime(since))
	}
	query += ` ORDER BY timestamp`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exhaustion events: %w", err)
	}
	defer rows.Close()

	var events []*governor.ExhaustionEvent
	for rows.Next() {
		var ev governor.ExhaustionEvent
		var metrics, limits, timestamp string
		if err := rows.Scan(&ev.ID, &ev.AgentID, &ev.AgentType, &ev.Phase, &ev.Action,
			&ev.Threshold, &metrics, &limits, &timestamp); err != nil {
			return nil, fmt.Errorf("scan exhaustion event: %w", err)
		}
		if err := json.Unmarshal([]byte(metrics), &ev.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal metrics snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(limits), &ev.Limits); err != nil {
			return nil, fmt.Errorf("unmarshal limits snapshot: %w", err)
		}
		ev.Timestamp, _ = parseTime(timestamp)
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// Compile-time verification that DB implements the governor store.
var _ governor.Store = (*DB)(nil)
