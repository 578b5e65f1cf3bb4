package persist

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/offlinefirst/behavioral-capture/pkg/behavior"
	_ "modernc.org/sqlite"
)

const createEventsTable = `
CREATE TABLE IF NOT EXISTS behavioral_events(
  id               INTEGER PRIMARY KEY,
  timestamp        INTEGER NOT NULL,
  event_type       TEXT    NOT NULL,
  x                INTEGER NOT NULL,
  y                INTEGER NOT NULL,
  key_code         INTEGER NOT NULL,
  wheel_delta      INTEGER NOT NULL,
  time_since_last  INTEGER NOT NULL,
  active_app       TEXT    NOT NULL,
  background_apps  INTEGER NOT NULL,
  mouse_speed_pxps TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_behavioral_events_ts ON behavioral_events(timestamp);
`

// SQLiteSink appends rows to the behavioral_events table. Values are stored
// as their serialised text so the table mirrors the delimited log exactly.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, unavailable(path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, unavailable(path, fmt.Errorf("enable WAL mode: %w", err))
	}
	if _, err := db.Exec(createEventsTable); err != nil {
		db.Close()
		return nil, unavailable(path, fmt.Errorf("create tables: %w", err))
	}
	return &SQLiteSink{db: db}, nil
}

func insertStatement() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(behavior.Header)), ",")
	return fmt.Sprintf("INSERT INTO behavioral_events(%s) VALUES(%s)", strings.Join(behavior.Header, ", "), placeholders)
}

// WriteRows inserts the batch in one transaction.
func (s *SQLiteSink) WriteRows(rows [][]string) error {
	transaction, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	statement, err := transaction.Prepare(insertStatement())
	if err != nil {
		_ = transaction.Rollback()
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer statement.Close()

	for _, row := range rows {
		if len(row) != len(behavior.Header) {
			_ = transaction.Rollback()
			return fmt.Errorf("row has %d columns, want %d", len(row), len(behavior.Header))
		}
		args := make([]any, len(row))
		for i, value := range row {
			args[i] = value
		}
		if _, err := statement.Exec(args...); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("insert row: %w", err)
		}
	}
	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
