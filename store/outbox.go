package store

import (
	"strings"
	"time"
)

// MaxOutboxRetries parks a message: once it has failed this many publishes it
// stays in the table but is no longer offered to the drainer.
const MaxOutboxRetries = 10

// OutboxMessage is an enveloped message waiting for the broker.
type OutboxMessage struct {
	ID        int64      `json:"id"`
	Topic     string     `json:"topic"`
	Payload   []byte     `json:"payload"`
	MsgType   string     `json:"msg_type"`
	ClientID  string     `json:"client_id"`
	Retries   int        `json:"retries"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// OutboxStats counts outbox rows by delivery state.
type OutboxStats struct {
	Pending int `json:"pending"`
	Parked  int `json:"parked"`
	Sent    int `json:"sent"`
}

func (db *DB) EnqueueOutbox(topic string, payload []byte, msgType, clientID string) error {
	_, err := db.Exec(db.Q(`INSERT INTO outbox (topic, payload, msg_type, client_id) VALUES (?, ?, ?, ?)`),
		topic, payload, msgType, clientID)
	return err
}

// ListPendingOutbox returns unsent, unparked messages in enqueue order.
func (db *DB) ListPendingOutbox(limit int) ([]*OutboxMessage, error) {
	rows, err := db.Query(db.Q(`SELECT id, topic, payload, msg_type, client_id, retries, created_at, sent_at
		FROM outbox WHERE sent_at IS NULL AND retries < ? ORDER BY id LIMIT ?`), MaxOutboxRetries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []*OutboxMessage
	for rows.Next() {
		m := &OutboxMessage{}
		var createdAt, sentAt any
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload, &m.MsgType, &m.ClientID, &m.Retries, &createdAt, &sentAt); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(createdAt)
		m.SentAt = parseTimePtr(sentAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// AckOutbox marks the given messages sent in one statement.
func (db *DB) AckOutbox(ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	_, err := db.Exec(db.Q(`UPDATE outbox SET sent_at=datetime('now','localtime') WHERE id IN (`+marks+`)`), args...)
	return err
}

func (db *DB) IncrementOutboxRetries(id int64) error {
	_, err := db.Exec(db.Q(`UPDATE outbox SET retries=retries+1 WHERE id=?`), id)
	return err
}

func (db *DB) OutboxStats() (OutboxStats, error) {
	var s OutboxStats
	err := db.QueryRow(db.Q(`SELECT
		COALESCE(SUM(CASE WHEN sent_at IS NULL AND retries < ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN sent_at IS NULL AND retries >= ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN sent_at IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM outbox`), MaxOutboxRetries, MaxOutboxRetries).Scan(&s.Pending, &s.Parked, &s.Sent)
	return s, err
}

// PurgeSentOutbox deletes acknowledged messages older than age.
func (db *DB) PurgeSentOutbox(age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)
	var arg any = cutoff.Format("2006-01-02 15:04:05")
	if db.driver == "postgres" {
		arg = cutoff
	}
	res, err := db.Exec(db.Q(`DELETE FROM outbox WHERE sent_at IS NOT NULL AND sent_at < ?`), arg)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
