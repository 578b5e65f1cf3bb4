// Package persist batches serialised records and appends them to a durable
// sink: a delimited text log or a SQLite database with the same columns.
package persist

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrSinkUnavailable indicates the destination cannot be opened for append.
var ErrSinkUnavailable = errors.New("persistence sink unavailable")

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("persister closed")

// Sink receives batches of rows in Header column order.
type Sink interface {
	WriteRows(rows [][]string) error
	Close() error
}

// Format selects the on-disk representation.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

// ParseFormat normalises a configured format name.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "csv":
		return FormatCSV, nil
	case "sqlite", "sqlite3", "db":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("unsupported persist format %q", value)
	}
}

// FormatForPath infers the format from a file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatCSV
	}
}

// Open opens path with the sink matching format.
func Open(format Format, path string) (Sink, error) {
	if format == FormatSQLite {
		sink, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return sink, nil
	}
	sink, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

type sinkError struct {
	path string
	err  error
}

func (e *sinkError) Error() string {
	return fmt.Sprintf("open sink %s: %v", e.path, e.err)
}

func (e *sinkError) Unwrap() error {
	return e.err
}

func (e *sinkError) Is(target error) bool {
	return target == ErrSinkUnavailable
}

func unavailable(path string, err error) error {
	return &sinkError{path: path, err: err}
}
