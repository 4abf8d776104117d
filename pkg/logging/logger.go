package logging

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Level represents log severity
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Fields represents structured log fields
type Fields map[string]interface{}

// Logger is the logging capability handed to every component.
// Implementations never return write failures to the caller.
type Logger interface {
	// Debug logs a debug message
	Debug(ctx context.Context, msg string, fields Fields)

	// Info logs an info message
	Info(ctx context.Context, msg string, fields Fields)

	// Warn logs a warning message
	Warn(ctx context.Context, msg string, fields Fields)

	// Error logs an error message
	Error(ctx context.Context, msg string, err error, fields Fields)

	// WithFields returns a logger with additional fields
	WithFields(fields Fields) Logger

	// Close flushes and closes the logger
	Close() error
}

// Format represents the log output format
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat parses a log format name, defaulting to text
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("invalid log format: %s (use: text, json)", s)
	}
}

// timestampLayout sorts lexically and does not depend on locale
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// entry is one log event before encoding
type entry struct {
	time   time.Time
	level  Level
	msg    string
	err    error
	fields Fields
}

func newEntry(level Level, msg string, err error, base, fields Fields) entry {
	return entry{
		time:   time.Now().UTC(),
		level:  level,
		msg:    msg,
		err:    err,
		fields: mergeFields(base, fields),
	}
}

// text renders "<timestamp>: [LEVEL] message key=value ..."
func (e entry) text() []byte {
	var b strings.Builder
	b.WriteString(e.time.Format(timestampLayout))
	b.WriteString(": [")
	b.WriteString(levelString(e.level))
	b.WriteString("] ")
	b.WriteString(e.msg)
	e.writeFields(&b)
	b.WriteByte('\n')
	return []byte(b.String())
}

func (e entry) writeFields(b *strings.Builder) {
	if e.err != nil {
		fmt.Fprintf(b, " error=%q", e.err.Error())
	}
	for _, k := range sortedKeys(e.fields) {
		fmt.Fprintf(b, " %s=%v", k, e.fields[k])
	}
}

func (e entry) json() ([]byte, error) {
	doc := make(map[string]interface{}, len(e.fields)+4)
	for k, v := range e.fields {
		doc[k] = v
	}
	doc["timestamp"] = e.time.Format(timestampLayout)
	doc["level"] = levelString(e.level)
	doc["message"] = e.msg
	if e.err != nil {
		doc["error"] = e.err.Error()
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func mergeFields(base, extra Fields) Fields {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	merged := make(Fields, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func sortedKeys(fields Fields) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// levelString returns the string representation of a log level
func levelString(level Level) string {
	switch level {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a log level string
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// LevelString returns level as string (exported version)
func LevelString(level Level) string {
	return levelString(level)
}
