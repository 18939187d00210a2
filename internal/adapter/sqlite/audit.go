// Package sqlite keeps a local, queryable log of answered queries.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/couchcryptid/outage-equity-service/internal/domain"
)

// timeLayout is fixed width so answered_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS query_audits (
	id          TEXT PRIMARY KEY,
	dataset     TEXT NOT NULL,
	query       TEXT NOT NULL,
	intent      TEXT NOT NULL,
	column_name TEXT NOT NULL DEFAULT '',
	row_count   INTEGER NOT NULL,
	explanation TEXT NOT NULL,
	answered_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS query_audits_answered_at ON query_audits (answered_at);
`

// AuditLog stores query audits in a SQLite database file.
type AuditLog struct {
	db *sql.DB
}

// Open opens or creates the audit database at path. Use ":memory:" for a
// throwaway log.
func Open(path string) (*AuditLog, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// One writer at a time; this also keeps a :memory: database on a single
	// connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}
	return &AuditLog{db: db}, nil
}

// Publish records one audit. A repeated ID is ignored.
func (l *AuditLog) Publish(ctx context.Context, a domain.QueryAudit) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO query_audits (id, dataset, query, intent, column_name, row_count, explanation, answered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Dataset, a.Query, a.Intent, a.Column, a.Rows, a.Explanation, a.AnsweredAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert query audit %s: %w", a.ID, err)
	}
	return nil
}

// Recent returns up to limit audits, newest first.
func (l *AuditLog) Recent(ctx context.Context, limit int) ([]domain.QueryAudit, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, dataset, query, intent, column_name, row_count, explanation, answered_at
		 FROM query_audits ORDER BY answered_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audits: %w", err)
	}
	defer rows.Close()

	out := make([]domain.QueryAudit, 0, limit)
	for rows.Next() {
		var a domain.QueryAudit
		var answeredAt string
		if err := rows.Scan(&a.ID, &a.Dataset, &a.Query, &a.Intent, &a.Column, &a.Rows, &a.Explanation, &answeredAt); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		if a.AnsweredAt, err = time.Parse(timeLayout, answeredAt); err != nil {
			return nil, fmt.Errorf("audit %s answered_at: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close closes the database.
func (l *AuditLog) Close() error {
	return l.db.Close()
}
