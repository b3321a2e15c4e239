package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Journal entry kinds.
const (
	KindNodeConfig = "node_config"
	KindFullNode   = "full_node"
	KindLastTask   = "last_task"
)

// SnapshotEntry is one committed snapshot replacement.
type SnapshotEntry struct {
	ID        int64           `json:"id"`
	Seq       uint64          `json:"seq"`
	Kind      string          `json:"kind"`
	NodeID    string          `json:"node_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// AppendSnapshot journals a committed value.
func (db *DB) AppendSnapshot(seq uint64, kind, nodeID string, value any) (int64, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("marshal %s snapshot: %w", kind, err)
	}
	return db.insertID(`INSERT INTO node_snapshots (seq, kind, node_id, payload) VALUES (?, ?, ?, ?)`,
		int64(seq), kind, nodeID, string(payload))
}

// ListSnapshots returns the newest journal entries first. An empty kind lists
// every kind.
func (db *DB) ListSnapshots(kind string, limit int) ([]*SnapshotEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, seq, kind, node_id, payload, created_at FROM node_snapshots`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind=?`
		args = append(args, kind)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(db.Q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*SnapshotEntry
	for rows.Next() {
		var e SnapshotEntry
		var seq int64
		var payload string
		var createdAt any
		if err := rows.Scan(&e.ID, &seq, &e.Kind, &e.NodeID, &payload, &createdAt); err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		e.Payload = json.RawMessage(payload)
		e.CreatedAt = parseTime(createdAt)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the newest entry of kind, or nil if there is none.
func (db *DB) LatestSnapshot(kind string) (*SnapshotEntry, error) {
	entries, err := db.ListSnapshots(kind, 1)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return entries[0], nil
}

// TrimSnapshots keeps the newest keep entries and deletes the rest.
func (db *DB) TrimSnapshots(keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := db.Exec(db.Q(`DELETE FROM node_snapshots WHERE id NOT IN (
		SELECT id FROM node_snapshots ORDER BY id DESC LIMIT ?)`), keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// insertID runs an INSERT and returns the new row id on either driver.
func (db *DB) insertID(query string, args ...any) (int64, error) {
	if db.driver == "postgres" {
		var id int64
		err := db.QueryRow(db.Q(query+` RETURNING id`), args...).Scan(&id)
		return id, err
	}
	res, err := db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
