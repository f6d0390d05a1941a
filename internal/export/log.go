// Package export appends analysis results to a durable, length-prefixed record log that
// downstream consumers can replay.
package export

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"lexis/internal/analysis"
)

const logFilename = "tokens.log"

// Record is the analysis result for a single document.
type Record struct {
	DocumentID   string           `json:"documentId"`
	DocumentName string           `json:"documentName"`
	Profile      string           `json:"profile"`
	Tokens       []analysis.Token `json:"tokens"`
}

// Log provides append-only durability for analysis records.
type Log struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// Open ensures the log file exists in dir and is ready for appends.
// It returns the opened log and its current size (next offset).
func Open(dir string) (*Log, int64, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, 0, fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(dir, logFilename)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, 0, fmt.Errorf("open export log: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, fmt.Errorf("stat export log: %w", err)
	}

	return &Log{path: path, file: file}, info.Size(), nil
}

// Path reports the log file location.
func (l *Log) Path() string {
	return l.path
}

// Append writes a length-prefixed JSON record and fsyncs the file.
// It returns the offset immediately after the record.
func (l *Log) Append(record Record) (int64, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return 0, fmt.Errorf("marshal record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	offset, err := l.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("seek log end: %w", err)
	}

	if err := binary.Write(l.file, binary.LittleEndian, uint32(len(data))); err != nil {
		return 0, fmt.Errorf("write record length: %w", err)
	}

	if _, err := l.file.Write(data); err != nil {
		return 0, fmt.Errorf("write record body: %w", err)
	}

	if err := l.file.Sync(); err != nil {
		return 0, fmt.Errorf("fsync export log: %w", err)
	}

	return offset + int64(4+len(data)), nil
}

// Recover reads records starting at fromOffset, which must be 0 or an offset previously
// returned by Append or Recover. It returns the records and the offset just past the last
// complete one; a consumer passes that offset back in to resume. Reading stops at the first
// incomplete record, so a torn tail from a crashed writer is ignored.
func (l *Log) Recover(fromOffset int64) ([]Record, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Seek(fromOffset, io.SeekStart); err != nil {
		return nil, fromOffset, fmt.Errorf("seek export log: %w", err)
	}

	reader := bufio.NewReader(l.file)
	var records []Record
	currentOffset := fromOffset

	for {
		lengthBuf := make([]byte, 4)
		if _, err := io.ReadFull(reader, lengthBuf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return records, currentOffset, nil
			}
			return records, currentOffset, fmt.Errorf("read record length: %w", err)
		}

		length := binary.LittleEndian.Uint32(lengthBuf)
		payload := make([]byte, length)
		if _, err := io.ReadFull(reader, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return records, currentOffset, nil
			}
			return records, currentOffset, fmt.Errorf("read record payload: %w", err)
		}

		var record Record
		if err := json.Unmarshal(payload, &record); err != nil {
			return records, currentOffset, fmt.Errorf("decode record: %w", err)
		}

		currentOffset += int64(4 + length)
		records = append(records, record)
	}
}

// Close closes the underlying file handle.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
