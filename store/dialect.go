package store

import (
	"fmt"
	"strings"
	"time"
)

// Dialect hides the SQL differences between the supported drivers.
type Dialect interface {
	Placeholder(n int) string
	AutoIncrementPK() string
	BlobType() string
	TimestampType() string
	Now() string
}

type sqliteDialect struct{}

func (sqliteDialect) Placeholder(_ int) string { return "?" }
func (sqliteDialect) AutoIncrementPK() string  { return "INTEGER PRIMARY KEY AUTOINCREMENT" }
func (sqliteDialect) BlobType() string         { return "BLOB" }
func (sqliteDialect) TimestampType() string    { return "TEXT" }
func (sqliteDialect) Now() string              { return "datetime('now','localtime')" }

type postgresDialect struct{}

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (postgresDialect) AutoIncrementPK() string  { return "BIGSERIAL PRIMARY KEY" }
func (postgresDialect) BlobType() string         { return "BYTEA" }
func (postgresDialect) TimestampType() string    { return "TIMESTAMPTZ" }
func (postgresDialect) Now() string              { return "NOW()" }

// parseTime converts a scanned timestamp to time.Time. SQLite hands back
// strings, PostgreSQL hands back time.Time.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case []byte:
		return parseTime(string(t))
	case string:
		for _, layout := range []string{
			"2006-01-02 15:04:05",
			time.RFC3339Nano,
			"2006-01-02 15:04:05.999999-07:00",
		} {
			if parsed, err := time.ParseInLocation(layout, t, time.Local); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

func parseTimePtr(v any) *time.Time {
	t := parseTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}

// Rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func Rebind(query string) string {
	n := 0
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		fmt.Fprintf(&b, "$%d", n)
	}
	return b.String()
}
