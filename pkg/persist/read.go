package persist

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/offlinefirst/behavioral-capture/pkg/behavior"
)

// ReadRows loads every record from a persisted log, dispatching on the file
// extension. The header row is skipped wherever it appears.
func ReadRows(path string) ([]behavior.Event, error) {
	if FormatForPath(path) == FormatSQLite {
		return readSQLite(path)
	}
	return readCSV(path)
}

func readCSV(path string) ([]behavior.Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	var events []behavior.Event
	for line := 1; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read log line %d: %w", line, err)
		}
		if isHeader(row) {
			continue
		}
		ev, err := behavior.ParseRow(row)
		if err != nil {
			return nil, fmt.Errorf("log line %d: %w", line, err)
		}
		events = append(events, ev)
	}
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), behavior.Header[0])
}

func readSQLite(path string) ([]behavior.Event, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer db.Close()

	query := fmt.Sprintf("SELECT %s FROM behavioral_events ORDER BY id", strings.Join(behavior.Header, ", "))
	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []behavior.Event
	values := make([]string, len(behavior.Header))
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev, err := behavior.ParseRow(values)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
