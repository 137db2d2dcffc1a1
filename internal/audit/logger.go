package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of audit event
type EventType string

const (
	// Assignment events
	EventDiscover          EventType = "DISCOVER"
	EventPlan              EventType = "PLAN"
	EventSubmit            EventType = "SUBMIT"
	EventContainerWrite    EventType = "CONTAINER_WRITE"
	EventWriteFailed       EventType = "WRITE_FAILED"
	EventAssignmentSkipped EventType = "ASSIGNMENT_SKIPPED"

	// Maintenance events
	EventStatsRefresh EventType = "STATS_REFRESH"
	EventCacheClear   EventType = "CACHE_CLEAR"
	EventImport       EventType = "IMPORT"

	// Transport events
	EventToolCall    EventType = "TOOL_CALL"
	EventRateLimited EventType = "RATE_LIMITED"

	// System events
	EventStartup      EventType = "STARTUP"
	EventShutdown     EventType = "SHUTDOWN"
	EventError        EventType = "ERROR"
	EventConfigChange EventType = "CONFIG_CHANGE"
)

// Severity represents the severity level of an audit event
type Severity string

const (
	SeverityDebug    Severity = "DEBUG"
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	ID            string                 `json:"id"`
	Timestamp     time.Time              `json:"timestamp"`
	Type          EventType              `json:"type"`
	Severity      Severity               `json:"severity"`
	Source        string                 `json:"source"`
	PageID        int64                  `json:"page_id,omitempty"`
	Resource      string                 `json:"resource,omitempty"`
	Action        string                 `json:"action"`
	Result        string                 `json:"result"`
	Details       map[string]interface{} `json:"details,omitempty"`
	Error         string                 `json:"error,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
}

// Logger provides audit logging functionality. A nil *Logger discards events.
type Logger struct {
	mu        sync.Mutex
	file      *os.File
	filepath  string
	maxSize   int64
	maxAge    time.Duration
	encoder   *json.Encoder
	eventChan chan *AuditEvent
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// Config represents logger configuration
type Config struct {
	FilePath string
	MaxSize  int64         // Maximum file size in bytes
	MaxAge   time.Duration // Maximum age of log files
}

// NewLogger creates a new audit logger
func NewLogger(config Config) (*Logger, error) {
	// Ensure directory exists
	dir := filepath.Dir(config.FilePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	logger := &Logger{
		file:      file,
		filepath:  config.FilePath,
		maxSize:   config.MaxSize,
		maxAge:    config.MaxAge,
		encoder:   json.NewEncoder(file),
		eventChan: make(chan *AuditEvent, 100),
		stopChan:  make(chan struct{}),
	}

	// Start background worker
	logger.wg.Add(1)
	go logger.worker()

	logger.LogSystem(EventStartup, "Audit logger started", nil)

	return logger, nil
}

// Path returns the file the logger writes to
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.filepath
}

// Log writes an audit event
func (l *Logger) Log(event *AuditEvent) {
	if l == nil {
		return
	}
	if event.ID == "" {
		event.ID = generateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case l.eventChan <- event:
	case <-time.After(time.Second):
		// Timeout to prevent blocking
		fmt.Fprintf(os.Stderr, "Failed to log audit event: timeout\n")
	}
}

// LogOperation logs an operation on a page
func (l *Logger) LogOperation(operation EventType, pageID int64, resource string, success bool, details map[string]interface{}) {
	result := "SUCCESS"
	severity := SeverityInfo

	if !success {
		result = "FAILED"
		severity = SeverityError
	}

	l.Log(&AuditEvent{
		Type:     operation,
		Severity: severity,
		Source:   "uploader",
		PageID:   pageID,
		Resource: resource,
		Action:   strings.ToLower(string(operation)),
		Result:   result,
		Details:  details,
	})
}

// LogContainerWrite records one field write of a submit batch. The digests
// identify the stored value before and after the write.
func (l *Logger) LogContainerWrite(batchID string, pageID int64, field, before, after string, err error) {
	event := &AuditEvent{
		Type:          EventContainerWrite,
		Severity:      SeverityInfo,
		Source:        "writer",
		PageID:        pageID,
		Resource:      field,
		Action:        "update_field",
		Result:        "SUCCESS",
		CorrelationID: batchID,
		Details: map[string]interface{}{
			"digest_before": before,
			"digest_after":  after,
		},
	}
	if err != nil {
		event.Type = EventWriteFailed
		event.Severity = SeverityError
		event.Result = "FAILED"
		event.Error = err.Error()
	}
	l.Log(event)
}

// LogError logs an error event
func (l *Logger) LogError(source string, err error, details map[string]interface{}) {
	l.Log(&AuditEvent{
		Type:     EventError,
		Severity: SeverityError,
		Source:   source,
		Action:   "error",
		Result:   "ERROR",
		Error:    err.Error(),
		Details:  details,
	})
}

// LogSystem logs a system event
func (l *Logger) LogSystem(eventType EventType, message string, details map[string]interface{}) {
	l.Log(&AuditEvent{
		Type:     eventType,
		Severity: SeverityInfo,
		Source:   "system",
		Action:   string(eventType),
		Result:   message,
		Details:  details,
	})
}

// LogWithCorrelation logs an event with a correlation ID
func (l *Logger) LogWithCorrelation(event *AuditEvent, correlationID string) {
	event.CorrelationID = correlationID
	l.Log(event)
}

// worker processes audit events in the background
func (l *Logger) worker() {
	defer l.wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case event := <-l.eventChan:
			l.writeEvent(event)

		case <-ticker.C:
			l.performMaintenance()

		case <-l.stopChan:
			// Drain remaining events
			for {
				select {
				case event := <-l.eventChan:
					l.writeEvent(event)
				default:
					return
				}
			}
		}
	}
}

// writeEvent writes an event to the log file
func (l *Logger) writeEvent(event *AuditEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.encoder.Encode(event); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit event: %v\n", err)
	}

	if l.maxSize > 0 {
		if info, err := l.file.Stat(); err == nil && info.Size() > l.maxSize {
			l.rotate()
		}
	}
}

// rotate performs log rotation
func (l *Logger) rotate() {
	_ = l.file.Close()

	timestamp := time.Now().Format("20060102-150405.000000")
	rotatedPath := fmt.Sprintf("%s.%s", l.filepath, timestamp)
	_ = os.Rename(l.filepath, rotatedPath)

	file, err := os.OpenFile(l.filepath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open new audit log file: %v\n", err)
		return
	}

	l.file = file
	l.encoder = json.NewEncoder(file)
}

// performMaintenance removes old rotated log files
func (l *Logger) performMaintenance() {
	if l.maxAge <= 0 {
		return
	}

	dir := filepath.Dir(l.filepath)
	base := filepath.Base(l.filepath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-l.maxAge)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasPrefix(name, base+".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
}

// Close flushes pending events and closes the audit logger. Later calls
// return the result of the first.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.closeOnce.Do(func() {
		l.LogSystem(EventShutdown, "Audit logger shutting down", nil)

		close(l.stopChan)
		l.wg.Wait()

		l.mu.Lock()
		defer l.mu.Unlock()
		l.closeErr = l.file.Close()
	})
	return l.closeErr
}

// generateEventID generates a unique event ID
func generateEventID() string {
	return uuid.NewString()
}

// Query represents an audit log query
type Query struct {
	StartTime     time.Time
	EndTime       time.Time
	EventTypes    []EventType
	Severities    []Severity
	PageIDs       []int64
	Resources     []string
	CorrelationID string
	Limit         int
}

func (q Query) match(event *AuditEvent) bool {
	switch {
	case !q.StartTime.IsZero() && event.Timestamp.Before(q.StartTime):
		return false
	case !q.EndTime.IsZero() && event.Timestamp.After(q.EndTime):
		return false
	case len(q.EventTypes) > 0 && !slices.Contains(q.EventTypes, event.Type):
		return false
	case len(q.Severities) > 0 && !slices.Contains(q.Severities, event.Severity):
		return false
	case len(q.PageIDs) > 0 && !slices.Contains(q.PageIDs, event.PageID):
		return false
	case len(q.Resources) > 0 && !slices.Contains(q.Resources, event.Resource):
		return false
	case q.CorrelationID != "" && event.CorrelationID != q.CorrelationID:
		return false
	}
	return true
}

// Search searches the audit log
func (l *Logger) Search(query Query) ([]*AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return SearchFile(l.filepath, query)
}

// SearchFile searches an audit log file without opening a Logger on it. A
// missing file yields no events.
func SearchFile(path string, query Query) ([]*AuditEvent, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	return search(file, query)
}

func search(r io.Reader, query Query) ([]*AuditEvent, error) {
	var events []*AuditEvent
	decoder := json.NewDecoder(r)

	for {
		var event AuditEvent
		if err := decoder.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return events, fmt.Errorf("failed to decode audit event: %w", err)
		}

		if !query.match(&event) {
			continue
		}

		events = append(events, &event)

		if query.Limit > 0 && len(events) >= query.Limit {
			break
		}
	}

	return events, nil
}
