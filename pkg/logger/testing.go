package logger

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
)

// Entry is one message recorded by a TestLogger
type Entry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

// TestLogger forwards messages to testing.T and records them for assertions
type TestLogger struct {
	T       *testing.T
	fields  map[string]interface{}
	entries *[]Entry
	mu      *sync.Mutex
}

// NewTestLogger creates a new test logger
func NewTestLogger(t *testing.T) *TestLogger {
	return &TestLogger{
		T:       t,
		fields:  map[string]interface{}{},
		entries: &[]Entry{},
		mu:      &sync.Mutex{},
	}
}

// NewMockLogger creates a simple logger for use in tests.
// It can be called with or without a testing.T parameter.
func NewMockLogger(t ...*testing.T) Logger {
	if len(t) > 0 {
		return NewTestLogger(t[0])
	}
	return NewTestLogger(nil)
}

func (l *TestLogger) Debug(msg string) { l.log("DEBUG", msg) }
func (l *TestLogger) Info(msg string)  { l.log("INFO", msg) }
func (l *TestLogger) Warn(msg string)  { l.log("WARN", msg) }
func (l *TestLogger) Error(msg string) { l.log("ERROR", msg) }
func (l *TestLogger) Fatal(msg string) { l.log("FATAL", msg) }

func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &TestLogger{T: l.T, fields: merged, entries: l.entries, mu: l.mu}
}

// Entries returns every message recorded by this logger and the loggers derived from it
func (l *TestLogger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), (*l.entries)...)
}

// Messages returns the recorded messages at a level
func (l *TestLogger) Messages(level string) []string {
	var messages []string
	for _, e := range l.Entries() {
		if e.Level == level {
			messages = append(messages, e.Message)
		}
	}
	return messages
}

func (l *TestLogger) log(level, msg string) {
	l.mu.Lock()
	*l.entries = append(*l.entries, Entry{Level: level, Message: msg, Fields: l.fields})
	l.mu.Unlock()

	if l.T != nil {
		l.T.Logf("[%s] %s%s", level, msg, formatFields(l.fields))
	}
}

func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf(" %s=%v", k, fields[k]))
	}
	return sb.String()
}
