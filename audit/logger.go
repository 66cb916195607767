// Package audit records manifest and archive downloads in SQLite.
package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// EventType is the kind of download.
type EventType string

const (
	EventManifest EventType = "manifest"
	EventArchive  EventType = "archive"
)

// Event is one recorded download.
type Event struct {
	ID               string `db:"id"`
	EventType        string `db:"event_type"`
	Timestamp        int64  `db:"timestamp"`
	Path             string `db:"path"`
	BundleIdentifier string `db:"bundle_identifier"`
	BundleVersion    string `db:"bundle_version"`
	RemoteAddr       string `db:"remote_addr"`
	RequestID        string `db:"request_id"`
}

// Time returns the event timestamp.
func (e Event) Time() time.Time { return time.Unix(e.Timestamp, 0) }

// Logger writes download events to a database.
type Logger struct {
	db *sqlx.DB
}

// Open connects to the SQLite database at path and prepares its schema.
func Open(path string) (*Logger, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	l, err := NewLogger(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// NewLogger creates a Logger on db, creating the table if needed.
func NewLogger(db *sqlx.DB) (*Logger, error) {
	if err := DBInit(db); err != nil {
		return nil, err
	}
	return &Logger{db: db}, nil
}

// DBInit creates the download events table and its indexes.
func DBInit(db *sqlx.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS download_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		path TEXT NOT NULL,
		bundle_identifier TEXT NOT NULL DEFAULT '',
		bundle_version TEXT NOT NULL DEFAULT '',
		remote_addr TEXT NOT NULL DEFAULT '',
		request_id TEXT NOT NULL DEFAULT ''
	)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_download_events_timestamp ON download_events(timestamp)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_download_events_path ON download_events(path)`)
	return err
}

// Record inserts e, assigning an ID and timestamp when they are empty.
func (l *Logger) Record(e Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UTC().Unix()
	}
	_, err := l.db.NamedExec(`
		INSERT INTO download_events (
			id, event_type, timestamp, path,
			bundle_identifier, bundle_version, remote_addr, request_id
		) VALUES (
			:id, :event_type, :timestamp, :path,
			:bundle_identifier, :bundle_version, :remote_addr, :request_id
		)`, e)
	return err
}

// RecentEvents returns up to limit events, newest first.
func (l *Logger) RecentEvents(limit int) ([]Event, error) {
	var events []Event
	err := l.db.Select(&events,
		"SELECT * FROM download_events ORDER BY timestamp DESC, rowid DESC LIMIT $1",
		limit)
	return events, err
}

// EventsByPath returns up to limit events for one catalog path, newest first.
func (l *Logger) EventsByPath(path string, limit int) ([]Event, error) {
	var events []Event
	err := l.db.Select(&events,
		"SELECT * FROM download_events WHERE path = $1 ORDER BY timestamp DESC, rowid DESC LIMIT $2",
		path, limit)
	return events, err
}

// DeleteOldEvents deletes events older than the given duration.
func (l *Logger) DeleteOldEvents(olderThan time.Duration) (int64, error) {
	threshold := time.Now().UTC().Add(-olderThan).Unix()
	result, err := l.db.Exec("DELETE FROM download_events WHERE timestamp < $1", threshold)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Close closes the database.
func (l *Logger) Close() error {
	return l.db.Close()
}
