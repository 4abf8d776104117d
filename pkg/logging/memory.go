package logging

import (
	"context"
	"strings"
	"sync"
)

// Record is one event captured by a MemoryLogger
type Record struct {
	Level   Level
	Message string
	Err     error
	Fields  Fields
}

// MemoryLogger keeps every event in memory. Tests use it to assert on the
// exact lines a component emits.
type MemoryLogger struct {
	store  *memoryStore
	fields Fields
}

type memoryStore struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryLogger creates an empty MemoryLogger
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{store: &memoryStore{}}
}

func (l *MemoryLogger) Debug(ctx context.Context, msg string, fields Fields) {
	l.add(DebugLevel, msg, nil, fields)
}

func (l *MemoryLogger) Info(ctx context.Context, msg string, fields Fields) {
	l.add(InfoLevel, msg, nil, fields)
}

func (l *MemoryLogger) Warn(ctx context.Context, msg string, fields Fields) {
	l.add(WarnLevel, msg, nil, fields)
}

func (l *MemoryLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	l.add(ErrorLevel, msg, err, fields)
}

// WithFields returns a logger sharing the same records
func (l *MemoryLogger) WithFields(fields Fields) Logger {
	return &MemoryLogger{store: l.store, fields: mergeFields(l.fields, fields)}
}

// Close does nothing
func (l *MemoryLogger) Close() error {
	return nil
}

func (l *MemoryLogger) add(level Level, msg string, err error, fields Fields) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.records = append(l.store.records, Record{
		Level:   level,
		Message: msg,
		Err:     err,
		Fields:  mergeFields(l.fields, fields),
	})
}

// Records returns a copy of everything logged so far
func (l *MemoryLogger) Records() []Record {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	out := make([]Record, len(l.store.records))
	copy(out, l.store.records)
	return out
}

// Messages returns the logged messages in order
func (l *MemoryLogger) Messages() []string {
	records := l.Records()
	msgs := make([]string, len(records))
	for i, r := range records {
		msgs[i] = r.Message
	}
	return msgs
}

// Contains reports whether any message contains substr
func (l *MemoryLogger) Contains(substr string) bool {
	for _, m := range l.Messages() {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

// Count returns how many messages at level contain substr
func (l *MemoryLogger) Count(level Level, substr string) int {
	n := 0
	for _, r := range l.Records() {
		if r.Level == level && strings.Contains(r.Message, substr) {
			n++
		}
	}
	return n
}
