package logging

import (
	"container/ring"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxBufferSize is the maximum number of log entries to keep in memory
	MaxBufferSize = 10000

	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// LogEntry represents a single log entry
type LogEntry struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Source    string                 `json:"source"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Filter narrows log queries. Zero values match everything.
type Filter struct {
	Limit  int
	Level  string
	Source string
	UserID string
	Agent  string
	Since  time.Time
	Until  time.Time
}

func (f Filter) matches(e LogEntry) bool {
	if f.Level != "" && e.Level != f.Level {
		return false
	}
	if f.Source != "" && e.Source != f.Source {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	if f.UserID != "" && getMetaString(e.Metadata, "user_id") != f.UserID {
		return false
	}
	if f.Agent != "" && getMetaString(e.Metadata, "agent") != f.Agent {
		return false
	}
	return true
}

// Manager handles log collection, buffering, and persistence
type Manager struct {
	mu       sync.RWMutex
	buffer   *ring.Ring
	db       *sql.DB
	postgres bool
	handlers []func(LogEntry)
	pending  sync.WaitGroup
}

// NewManager creates a logging manager. db may be nil for buffer-only logging;
// postgres selects $N placeholders.
func NewManager(db *sql.DB, postgres bool) *Manager {
	m := &Manager{
		buffer:   ring.New(MaxBufferSize),
		db:       db,
		postgres: postgres,
	}

	if err := m.initSchema(); err != nil {
		log.Printf("[Logging] Warning: failed to initialize logging schema: %v", err)
	}

	return m
}

func (m *Manager) q(query string) string {
	if !m.postgres {
		return query
	}
	n := 1
	var out strings.Builder
	for _, ch := range query {
		if ch == '?' {
			fmt.Fprintf(&out, "$%d", n)
			n++
		} else {
			out.WriteRune(ch)
		}
	}
	return out.String()
}

// initSchema creates the logs table if it doesn't exist
func (m *Manager) initSchema() error {
	if m.db == nil {
		return nil
	}

	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS logs (
			id TEXT PRIMARY KEY,
			logged_at TIMESTAMP NOT NULL,
			level TEXT NOT NULL,
			source TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata_json TEXT,
			user_id TEXT,
			agent TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create logs table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_logs_logged_at ON logs(logged_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_logs_source ON logs(source)",
		"CREATE INDEX IF NOT EXISTS idx_logs_user_id ON logs(user_id)",
	}
	for _, indexSQL := range indexes {
		if _, err := m.db.Exec(indexSQL); err != nil {
			log.Printf("[Logging] Warning: failed to create index: %v", err)
		}
	}

	return nil
}

// Log adds a log entry to the buffer and persists it in the background
func (m *Manager) Log(level, source, message string, metadata map[string]interface{}) {
	entry := LogEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Level:     level,
		Source:    source,
		Message:   message,
		Metadata:  metadata,
	}

	m.mu.Lock()
	m.buffer.Value = entry
	m.buffer = m.buffer.Next()
	handlers := append([]func(LogEntry){}, m.handlers...)
	m.mu.Unlock()

	for _, handler := range handlers {
		go handler(entry)
	}

	if m.db != nil {
		m.pending.Add(1)
		go func() {
			defer m.pending.Done()
			m.persistLog(entry)
		}()
	}
}

// Flush waits for in-flight persistence to finish
func (m *Manager) Flush() {
	m.pending.Wait()
}

// persistLog saves a log entry to the database
func (m *Manager) persistLog(entry LogEntry) {
	var metadataJSON sql.NullString
	if len(entry.Metadata) > 0 {
		if data, err := json.Marshal(entry.Metadata); err == nil {
			metadataJSON = sql.NullString{String: string(data), Valid: true}
		}
	}

	userID := nullable(getMetaString(entry.Metadata, "user_id"))
	agent := nullable(getMetaString(entry.Metadata, "agent"))

	_, err := m.db.Exec(m.q(`
		INSERT INTO logs (id, logged_at, level, source, message, metadata_json, user_id, agent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), entry.ID, entry.Timestamp, entry.Level, entry.Source, entry.Message, metadataJSON, userID, agent)

	if err != nil {
		// Write to stderr directly: log.Printf may be routed back into this manager.
		fmt.Fprintf(os.Stderr, "[Logging] Failed to persist log entry: %v\n", err)
	}
}

// GetRecent returns the most recent buffered entries, newest first
func (m *Manager) GetRecent(f Filter) []LogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := f.Limit
	if limit <= 0 || limit > MaxBufferSize {
		limit = 100
	}

	// Walk backwards from the newest slot
	logs := make([]LogEntry, 0, limit)
	for r := m.buffer.Prev(); len(logs) < limit; r = r.Prev() {
		if r.Value != nil {
			if entry, ok := r.Value.(LogEntry); ok && f.matches(entry) {
				logs = append(logs, entry)
			}
		}
		if r == m.buffer {
			break
		}
	}
	return logs
}

// Query returns entries from the database, falling back to the buffer without one
func (m *Manager) Query(f Filter) ([]LogEntry, error) {
	if m.db == nil {
		return m.GetRecent(f), nil
	}

	query := `SELECT id, logged_at, level, source, message, metadata_json FROM logs WHERE 1=1`
	args := make([]interface{}, 0)

	if !f.Since.IsZero() {
		query += " AND logged_at >= ?"
		args = append(args, f.Since.UTC())
	}
	if !f.Until.IsZero() {
		query += " AND logged_at <= ?"
		args = append(args, f.Until.UTC())
	}
	if f.Level != "" {
		query += " AND level = ?"
		args = append(args, f.Level)
	}
	if f.Source != "" {
		query += " AND source = ?"
		args = append(args, f.Source)
	}
	if f.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, f.UserID)
	}
	if f.Agent != "" {
		query += " AND agent = ?"
		args = append(args, f.Agent)
	}

	query += " ORDER BY logged_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := m.db.Query(m.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	logs := make([]LogEntry, 0)
	for rows.Next() {
		var entry LogEntry
		var metadataJSON sql.NullString

		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.Level, &entry.Source, &entry.Message, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &entry.Metadata); err != nil {
				fmt.Fprintf(os.Stderr, "[Logging] Warning: failed to unmarshal log metadata: %v\n", err)
			}
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}

	return logs, nil
}

// LogAgentRun records one agent or orchestrator execution
func (m *Manager) LogAgentRun(agent, userID string, duration time.Duration, metadata map[string]interface{}) {
	meta := map[string]interface{}{
		"agent":       agent,
		"user_id":     userID,
		"duration_ms": duration.Milliseconds(),
	}
	for k, v := range metadata {
		meta[k] = v
	}
	m.Log(LogLevelInfo, "agents", fmt.Sprintf("%s completed in %dms", agent, duration.Milliseconds()), meta)
}

// LogRequest records an HTTP request, choosing the level from the status code
func (m *Manager) LogRequest(method, path string, status int, duration time.Duration) {
	level := LogLevelInfo
	switch {
	case status >= 500:
		level = LogLevelError
	case status >= 400:
		level = LogLevelWarn
	}
	m.Log(level, "http", fmt.Sprintf("%s %s %d %dms", method, path, status, duration.Milliseconds()), map[string]interface{}{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	})
}

func getMetaString(meta map[string]interface{}, key string) string {
	if meta == nil {
		return ""
	}
	if val, ok := meta[key].(string); ok {
		return val
	}
	return ""
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// AddHandler registers a handler to be called for each new log entry
func (m *Manager) AddHandler(handler func(LogEntry)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// Info logs an info-level message
func (m *Manager) Info(source, message string, metadata map[string]interface{}) {
	m.Log(LogLevelInfo, source, message, metadata)
}

// Warn logs a warning-level message
func (m *Manager) Warn(source, message string, metadata map[string]interface{}) {
	m.Log(LogLevelWarn, source, message, metadata)
}

// Error logs an error-level message
func (m *Manager) Error(source, message string, metadata map[string]interface{}) {
	m.Log(LogLevelError, source, message, metadata)
}

// logInterceptWriter routes standard log output through the manager while
// still writing it to the original destination.
type logInterceptWriter struct {
	manager *Manager
	out     io.Writer
}

// Write parses the "[Component] message" convention used by log.Printf calls
func (w *logInterceptWriter) Write(p []byte) (n int, err error) {
	if w.out != nil {
		_, _ = w.out.Write(p)
	}

	level, source, msg := parseLine(string(p))
	w.manager.Log(level, source, msg, nil)
	return len(p), nil
}

func parseLine(line string) (level, source, msg string) {
	msg = strings.TrimSpace(line)
	// Standard log format: "2006/01/02 15:04:05 message"
	if len(msg) > 20 && msg[4] == '/' && msg[7] == '/' && msg[10] == ' ' {
		msg = strings.TrimSpace(msg[20:])
	}
	// Lshortfile prefix: "file.go:123: message"
	if i := strings.Index(msg, ".go:"); i > 0 && !strings.HasPrefix(msg, "[") {
		if j := strings.Index(msg[i:], ": "); j > 0 {
			msg = strings.TrimSpace(msg[i+j+2:])
		}
	}

	level = LogLevelInfo
	source = "system"

	lowerMsg := strings.ToLower(msg)
	if strings.Contains(lowerMsg, "error") || strings.Contains(lowerMsg, "fail") {
		level = LogLevelError
	} else if strings.Contains(lowerMsg, "warn") {
		level = LogLevelWarn
	}

	if len(msg) > 2 && msg[0] == '[' {
		end := strings.Index(msg, "]")
		if end > 1 {
			source = strings.ToLower(msg[1:end])
			msg = strings.TrimSpace(msg[end+1:])
		}
	}
	return level, source, msg
}

// InstallLogInterceptor tees the standard log package through this manager.
// Call once at startup after creating the manager.
func (m *Manager) InstallLogInterceptor() {
	log.SetOutput(&logInterceptWriter{manager: m, out: os.Stderr})
}
