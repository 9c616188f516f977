// Package history is an optional sqlite-backed event log: every
// events.Event the engine publishes, persisted for replay and
// post-mortem queries, grounded on the teacher's
// internal/services/dns/querylog/store.go (database/sql over
// modernc.org/sqlite, schema-on-open, timestamp/domain/client
// indexes) — here logging engine occurrences instead of DNS queries.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kestrelnet/netlab/internal/events"
)

// Store persists events.Event occurrences to a SQLite database.
type Store struct {
	db     *sql.DB
	cancel chan struct{}
}

// Open opens or creates the event log database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	s := &Store{db: db, cancel: make(chan struct{})}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		type TEXT NOT NULL,
		device_id TEXT,
		packet_id TEXT,
		attributes TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
	CREATE INDEX IF NOT EXISTS idx_events_device ON events(device_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close stops the recording goroutine, if running, and closes the database.
func (s *Store) Close() error {
	select {
	case <-s.cancel:
	default:
		close(s.cancel)
	}
	return s.db.Close()
}

// Record persists a single event, called directly by callers that
// don't want the subscribe-and-drain goroutine (e.g. tests).
func (s *Store) Record(e events.Event, at time.Time) error {
	var attrs []byte
	if len(e.Attributes) > 0 {
		b, err := json.Marshal(e.Attributes)
		if err != nil {
			return fmt.Errorf("history: marshal attributes: %w", err)
		}
		attrs = b
	}
	_, err := s.db.Exec(
		`INSERT INTO events (timestamp, type, device_id, packet_id, attributes) VALUES (?, ?, ?, ?, ?)`,
		at.UnixNano(), e.Type.String(), e.DeviceID, e.PacketID, string(attrs),
	)
	return err
}

// Follow subscribes to hub and records every event until Close is
// called, the way the querylog Store would be fed by a DNS service's
// request handler, except here the feed is the engine's events.Hub
// rather than a single call site.
func (s *Store) Follow(hub *events.Hub, now func() time.Time) {
	sub := hub.Subscribe()
	go func() {
		for {
			select {
			case <-s.cancel:
				return
			case e := <-sub:
				_ = s.Record(e, now())
			}
		}
	}()
}

// Entry is one row read back out of the log.
type Entry struct {
	Timestamp  time.Time
	Type       string
	DeviceID   string
	PacketID   string
	Attributes map[string]any
}

// Recent returns the most recent entries, newest first, optionally
// filtered to a single event type ("" for no filter).
func (s *Store) Recent(limit int, typeFilter string) ([]Entry, error) {
	query := `SELECT timestamp, type, device_id, packet_id, attributes FROM events`
	var args []any
	if typeFilter != "" {
		query += ` WHERE type = ?`
		args = append(args, typeFilter)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var attrs string
		if err := rows.Scan(&ts, &e.Type, &e.DeviceID, &e.PacketID, &attrs); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, ts)
		if attrs != "" {
			_ = json.Unmarshal([]byte(attrs), &e.Attributes)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ForDevice returns the most recent entries touching deviceID.
func (s *Store) ForDevice(deviceID string, limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT timestamp, type, device_id, packet_id, attributes FROM events WHERE device_id = ? ORDER BY timestamp DESC LIMIT ?`,
		deviceID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var attrs string
		if err := rows.Scan(&ts, &e.Type, &e.DeviceID, &e.PacketID, &attrs); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, ts)
		if attrs != "" {
			_ = json.Unmarshal([]byte(attrs), &e.Attributes)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Cleanup removes entries older than retention, for long-running
// sessions that don't want an unbounded log.
func (s *Store) Cleanup(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UnixNano()
	result, err := s.db.Exec(`DELETE FROM events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
