package persist

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/offlinefirst/behavioral-capture/pkg/behavior"
)

// FileSink appends comma-separated rows to a text file.
type FileSink struct {
	file   *os.File
	writer *csv.Writer
}

// OpenFile opens path for append, creating it if needed. The header row is
// written only when the file is empty at open time.
func OpenFile(path string) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, unavailable(path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, unavailable(path, err)
	}

	sink := &FileSink{file: file, writer: csv.NewWriter(file)}
	if info.Size() == 0 {
		if err := sink.WriteRows([][]string{behavior.Header}); err != nil {
			file.Close()
			return nil, unavailable(path, err)
		}
	}
	return sink, nil
}

// WriteRows appends rows and flushes them to the file.
func (s *FileSink) WriteRows(rows [][]string) error {
	if err := s.writer.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// Close releases the file.
func (s *FileSink) Close() error {
	s.writer.Flush()
	flushErr := s.writer.Error()
	closeErr := s.file.Close()
	if flushErr != nil {
		return fmt.Errorf("flush rows: %w", flushErr)
	}
	return closeErr
}
