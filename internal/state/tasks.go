package state

import (
	"database/sql"
	"fmt"

	"github.com/blackms/aistack-sub001/internal/consensus"
	"github.com/blackms/aistack-sub001/pkg/models"
)

// Task CRUD operations

// SaveTask inserts or replaces a task.
func (db *DB) SaveTask(t *models.Task) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO tasks (id, parent_id, agent_type, description, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.ParentID, string(t.AgentType), t.Description, string(t.Status), formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID. Returns nil if not found.
func (db *DB) GetTask(id string) (*models.Task, error) {
	row := db.QueryRow(`
		SELECT id, parent_id, agent_type, description, status, created_at
		FROM tasks WHERE id = ?
	`, id)
	return scanTask(row)
}

// Task implements the task resolver consumed by the consensus package.
func (db *DB) Task(id string) (*models.Task, error) {
	return db.GetTask(id)
}

// ListTasksByStatus retrieves tasks with the given status, oldest first.
func (db *DB) ListTasksByStatus(status models.TaskStatus) ([]*models.Task, error) {
	rows, err := db.Query(`
		SELECT id, parent_id, agent_type, description, status, created_at
		FROM tasks WHERE status = ? ORDER BY created_at
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListChildTasks retrieves the direct children of a task, oldest first.
func (db *DB) ListChildTasks(parentID string) ([]*models.Task, error) {
	rows, err := db.Query(`
		SELECT id, parent_id, agent_type, description, status, created_at
		FROM tasks WHERE parent_id = ? ORDER BY created_at
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list child tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// UpdateTaskStatus updates a task's status.
func (db *DB) UpdateTaskStatus(id string, status models.TaskStatus) error {
	result, err := db.Exec(`UPDATE tasks SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

// DeleteTask removes a task.
func (db *DB) DeleteTask(id string) error {
	if _, err := db.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func scanTask(row *sql.Row) (*models.Task, error) {
	var t models.Task
	var createdAt string
	err := row.Scan(&t.ID, &t.ParentID, &t.AgentType, &t.Description, &t.Status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	t.CreatedAt, _ = parseTime(createdAt)
	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]*models.Task, error) {
	var tasks []*models.Task
	for rows.Next() {
		var t models.Task
		var createdAt string
		if err := rows.Scan(&t.ID, &t.ParentID, &t.AgentType, &t.Description, &t.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.CreatedAt, _ = parseTime(createdAt)
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

// Compile-time verification that DB resolves tasks for consensus.
var _ consensus.TaskResolver = (*DB)(nil)
