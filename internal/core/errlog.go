package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/mastersync/internal/logging"
)

// ErrorLogFile is the name of the JSON-lines error log inside the work dir.
const ErrorLogFile = "sync_errors.jsonl"

// DefaultErrorLogTail is how many entries are kept in memory for queries.
const DefaultErrorLogTail = 500

// DefaultErrorLogLimit caps Recent when no limit is given.
const DefaultErrorLogLimit = 50

// Severity represents the severity level of an error log entry.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// severityFor returns the severity for a failure kind.
func severityFor(kind Kind) Severity {
	switch kind {
	case KindConfiguration:
		return SeverityCritical
	case KindDownload, KindPersistence:
		return SeverityError
	default:
		return SeverityWarning
	}
}

// ErrorEntry is one advisory failure record.
type ErrorEntry struct {
	ID        string    `json:"id"`
	RunID     string    `json:"runId,omitempty"`
	ToolID    string    `json:"toolId"`
	MasterID  string    `json:"masterId,omitempty"`
	Operation string    `json:"operation"`
	Kind      Kind      `json:"kind"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrorLogFilter narrows Recent.
type ErrorLogFilter struct {
	ToolID string
	Limit  int
}

// ErrorLog is the append-only failure record. Entries go to a JSON-lines
// file and a bounded in-memory tail. Nothing reads it to make decisions.
type ErrorLog struct {
	mu   sync.Mutex
	file *os.File
	tail []ErrorEntry
	max  int
	now  func() time.Time
}

// OpenErrorLog appends to path. An empty path keeps entries in memory only.
func OpenErrorLog(path string, tail int) (*ErrorLog, error) {
	if tail <= 0 {
		tail = DefaultErrorLogTail
	}
	l := &ErrorLog{max: tail, now: time.Now}
	if path == "" {
		return l, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create error log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open error log: %w", err)
	}
	l.file = f
	return l, nil
}

// Record appends a failure. Write errors are logged and otherwise ignored.
func (l *ErrorLog) Record(ctx context.Context, e *SyncError) ErrorEntry {
	entry := ErrorEntry{
		ID:        uuid.NewString(),
		RunID:     logging.RunIDFromContext(ctx),
		ToolID:    e.ToolID,
		MasterID:  e.MasterID,
		Operation: e.Op,
		Kind:      e.Kind,
		Severity:  severityFor(e.Kind),
	}
	if e.Err != nil {
		entry.Message = e.Err.Error()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry.CreatedAt = l.now()
	l.tail = append(l.tail, entry)
	if len(l.tail) > l.max {
		l.tail = l.tail[len(l.tail)-l.max:]
	}

	if l.file != nil {
		line, err := json.Marshal(entry)
		if err == nil {
			_, err = l.file.Write(append(line, '\n'))
		}
		if err != nil {
			logging.FromContext(ctx).Warn("error log write failed", "error", err)
		}
	}
	return entry
}

// Recent returns matching entries, newest first.
func (l *ErrorLog) Recent(filter ErrorLogFilter) []ErrorEntry {
	if filter.Limit <= 0 {
		filter.Limit = DefaultErrorLogLimit
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]ErrorEntry, 0, min(filter.Limit, len(l.tail)))
	for i := len(l.tail) - 1; i >= 0 && len(result) < filter.Limit; i-- {
		if filter.ToolID != "" && l.tail[i].ToolID != filter.ToolID {
			continue
		}
		result = append(result, l.tail[i])
	}
	return result
}

// Close flushes and closes the backing file.
func (l *ErrorLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
