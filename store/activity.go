package store

import (
	"time"

	"nodeconsole/model"
)

// ActivitySample is a persisted network activity snapshot.
type ActivitySample struct {
	ID int64 `json:"id"`
	model.NetworkActivityData
	CreatedAt time.Time `json:"created_at"`
}

func (db *DB) InsertNetworkActivity(d model.NetworkActivityData) (int64, error) {
	return db.insertID(`INSERT INTO network_activity (
		active_nodes, total_cpu, total_ram, pending_tasks, in_queue_tasks, in_progress_tasks,
		completed_tasks, validated_tasks, failed_tasks, average_trust_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ActiveNodes, d.TotalCPU, d.TotalRAM, d.PendingTasks, d.InQueueTasks, d.InProgressTasks,
		d.CompletedTasks, d.ValidatedTasks, d.FailedTasks, d.AverageTrustIndex)
}

const activityColumns = `id, active_nodes, total_cpu, total_ram, pending_tasks, in_queue_tasks,
	in_progress_tasks, completed_tasks, validated_tasks, failed_tasks, average_trust_index, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(s scanner) (*ActivitySample, error) {
	var a ActivitySample
	var createdAt any
	err := s.Scan(&a.ID, &a.ActiveNodes, &a.TotalCPU, &a.TotalRAM, &a.PendingTasks, &a.InQueueTasks,
		&a.InProgressTasks, &a.CompletedTasks, &a.ValidatedTasks, &a.FailedTasks, &a.AverageTrustIndex, &createdAt)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

// LatestNetworkActivity returns the newest sample, or nil if none was stored.
func (db *DB) LatestNetworkActivity() (*ActivitySample, error) {
	rows, err := db.Query(`SELECT ` + activityColumns + ` FROM network_activity ORDER BY id DESC LIMIT 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanActivity(rows)
}

// ListNetworkActivity returns the newest samples first.
func (db *DB) ListNetworkActivity(limit int) ([]*ActivitySample, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(db.Q(`SELECT `+activityColumns+` FROM network_activity ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ActivitySample
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
