package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	// Registers the "sqlite3" driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLiteStore records events in a SQLite database and serves them back as
// detection history.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path. ":memory:" is allowed.
//
// Arguments:
//   - path: The database file.
//
// Returns:
//   - *SQLiteStore: The store.
//   - error: If the database cannot be opened or migrated.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	// One connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrating events database")
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		time_ns INTEGER NOT NULL,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		count INTEGER NOT NULL,
		detections TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_time ON events(time_ns);
	`)
	return err
}

// Publish implements Publisher.
func (s *SQLiteStore) Publish(ctx context.Context, e Event) error {
	detections, err := json.Marshal(e.Detections)
	if err != nil {
		return errors.Wrap(err, "encoding detections")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO events (id, time_ns, source, target, count, detections)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.Time.UnixNano(), e.Source, e.Target, len(e.Detections), string(detections))
	return errors.Wrapf(err, "storing event %s", e.ID)
}

// Recent returns up to limit events, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, time_ns, source, target, detections
		FROM events ORDER BY time_ns DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying events")
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var (
			e          Event
			ns         int64
			detections string
		)
		if err := rows.Scan(&e.ID, &ns, &e.Source, &e.Target, &detections); err != nil {
			return nil, errors.Wrap(err, "scanning event")
		}
		if err := json.Unmarshal([]byte(detections), &e.Detections); err != nil {
			return nil, errors.Wrapf(err, "decoding detections of %s", e.ID)
		}
		e.Time = time.Unix(0, ns).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close implements Publisher.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
