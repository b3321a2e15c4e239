package store

import (
	"encoding/json"
	"fmt"

	"nodeconsole/model"
)

// ReplaceSubmittedTasks stores tasks as the complete list submitted by nodeID.
func (db *DB) ReplaceSubmittedTasks(nodeID string, tasks []model.Task) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(db.Q(`DELETE FROM submitted_tasks WHERE node_id=?`), nodeID); err != nil {
		return fmt.Errorf("clear submitted tasks: %w", err)
	}
	for _, t := range tasks {
		payload, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal task %s: %w", t.ID, err)
		}
		if _, err := tx.Exec(db.Q(`INSERT INTO submitted_tasks (node_id, task_id, status, payload) VALUES (?, ?, ?, ?)`),
			nodeID, t.ID, t.Status, string(payload)); err != nil {
			return fmt.Errorf("insert task %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

// ListSubmittedTasks returns the last stored list for nodeID.
func (db *DB) ListSubmittedTasks(nodeID string) ([]model.Task, error) {
	rows, err := db.Query(db.Q(`SELECT payload FROM submitted_tasks WHERE node_id=? ORDER BY task_id`), nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tasks := []model.Task{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var t model.Task
		if err := json.Unmarshal([]byte(payload), &t); err != nil {
			return nil, fmt.Errorf("decode stored task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CountSubmittedTasksByStatus tallies the stored list for nodeID.
func (db *DB) CountSubmittedTasksByStatus(nodeID string) (map[string]int, error) {
	rows, err := db.Query(db.Q(`SELECT status, COUNT(*) FROM submitted_tasks WHERE node_id=? GROUP BY status`), nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
