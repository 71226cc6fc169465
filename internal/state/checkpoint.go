package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/blackms/aistack-sub001/internal/consensus"
)

// Checkpoint persistence implementing the consensus store interface.

// SaveCheckpoint inserts or replaces a checkpoint.
func (db *DB) SaveCheckpoint(cp *consensus.Checkpoint) error {
	subtasks, err := json.Marshal(cp.ProposedSubtasks)
	if err != nil {
		return fmt.Errorf("marshal proposed subtasks: %w", err)
	}
	rejected, err := json.Marshal(cp.RejectedSubtasks)
	if err != nil {
		return fmt.Errorf("marshal rejected subtasks: %w", err)
	}

	_, err = db.Exec(`
		INSERT OR REPLACE INTO checkpoints
			(id, task_id, parent_task_id, proposed_subtasks, risk_level, status,
			 created_at, expires_at, decided_at, decided_by, feedback, rejected_subtasks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cp.ID, cp.TaskID, cp.ParentTaskID, string(subtasks), string(cp.RiskLevel), string(cp.Status),
		formatTime(cp.CreatedAt), formatTime(cp.ExpiresAt), nullableTimeArg(cp.DecidedAt),
		cp.DecidedBy, cp.Feedback, string(rejected))
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves a checkpoint by ID. Returns nil if not found.
func (db *DB) GetCheckpoint(id string) (*consensus.Checkpoint, error) {
	row := db.QueryRow(`
		SELECT id, task_id, parent_task_id, proposed_subtasks, risk_level, status,
		       created_at, expires_at, decided_at, decided_by, feedback, rejected_subtasks
		FROM checkpoints WHERE id = ?
	`, id)

	cp, err := scanCheckpoint(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return cp, nil
}

// ListCheckpointsByStatus retrieves checkpoints with the given status,
// oldest first.
func (db *DB) ListCheckpointsByStatus(status consensus.CheckpointStatus) ([]*consensus.Checkpoint, error) {
	rows, err := db.Query(`
		SELECT id, task_id, parent_task_id, proposed_subtasks, risk_level, status,
		       created_at, expires_at, decided_at, decided_by, feedback, rejected_subtasks
		FROM checkpoints WHERE status = ? ORDER BY created_at
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*consensus.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, rows.Err()
}

// AppendCheckpointEvent appends an audit event.
func (db *DB) AppendCheckpointEvent(ev *consensus.Event) error {
	_, err := db.Exec(`
		INSERT INTO checkpoint_events (id, checkpoint_id, type, actor, feedback, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.CheckpointID, string(ev.Type), ev.Actor, ev.Feedback, formatTime(ev.Timestamp))
	if err != nil {
		return fmt.Errorf("append checkpoint event: %w", err)
	}
	return nil
}

// ListCheckpointEvents retrieves a checkpoint's audit events in order.
func (db *DB) ListCheckpointEvents(checkpointID string) ([]*consensus.Event, error) {
	rows, err := db.Query(`
		SELECT id, checkpoint_id, type, actor, feedback, timestamp
		FROM checkpoint_events WHERE checkpoint_id = ? ORDER BY timestamp
	`, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoint events: %w", err)
	}
	defer rows.Close()

	var events []*consensus.Event
	for rows.Next() {
		var ev consensus.Event
		var timestamp string
		if err := rows.Scan(&ev.ID, &ev.CheckpointID, &ev.Type, &ev.Actor, &ev.Feedback, &timestamp); err != nil {
			return nil, fmt.Errorf("scan checkpoint event: %w", err)
		}
		ev.Timestamp, _ = parseTime(timestamp)
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func scanCheckpoint(scan func(dest ...any) error) (*consensus.Checkpoint, error) {
	var cp consensus.Checkpoint
	var subtasks, rejected string
	var createdAt, expiresAt string
	var decidedAt sql.NullString
	err := scan(&cp.ID, &cp.TaskID, &cp.ParentTaskID, &subtasks, &cp.RiskLevel, &cp.Status,
		&createdAt, &expiresAt, &decidedAt, &cp.DecidedBy, &cp.Feedback, &rejected)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(subtasks), &cp.ProposedSubtasks); err != nil {
		return nil, fmt.Errorf("unmarshal proposed subtasks: %w", err)
	}
	if err := json.Unmarshal([]byte(rejected), &cp.RejectedSubtasks); err != nil {
		return nil, fmt.Errorf("unmarshal rejected subtasks: %w", err)
	}
	cp.CreatedAt, _ = parseTime(createdAt)
	cp.ExpiresAt, _ = parseTime(expiresAt)
	cp.DecidedAt = parseNullableTime(decidedAt)
	return &cp, nil
}

// Compile-time verification that DB implements the consensus store.
var _ consensus.Store = (*DB)(nil)
