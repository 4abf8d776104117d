package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ConsoleLogger writes human readable lines to a terminal stream.
// Level tags are colored only when the stream is a terminal.
type ConsoleLogger struct {
	out    *consoleOut
	level  Level
	fields Fields
}

type consoleOut struct {
	mu     sync.Mutex
	w      io.Writer
	colors map[Level]*color.Color
}

// NewConsoleLogger creates a console logger on w
func NewConsoleLogger(w io.Writer, level Level) *ConsoleLogger {
	colorize := false
	if f, ok := w.(*os.File); ok {
		colorize = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return newConsoleLogger(w, level, colorize)
}

func newConsoleLogger(w io.Writer, level Level, colorize bool) *ConsoleLogger {
	colors := map[Level]*color.Color{
		DebugLevel: color.New(color.FgHiBlack),
		InfoLevel:  color.New(color.FgCyan),
		WarnLevel:  color.New(color.FgYellow),
		ErrorLevel: color.New(color.FgRed, color.Bold),
	}
	for _, c := range colors {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return &ConsoleLogger{
		out:   &consoleOut{w: w, colors: colors},
		level: level,
	}
}

// Debug logs a debug message
func (l *ConsoleLogger) Debug(ctx context.Context, msg string, fields Fields) {
	l.log(DebugLevel, msg, nil, fields)
}

// Info logs an info message
func (l *ConsoleLogger) Info(ctx context.Context, msg string, fields Fields) {
	l.log(InfoLevel, msg, nil, fields)
}

// Warn logs a warning message
func (l *ConsoleLogger) Warn(ctx context.Context, msg string, fields Fields) {
	l.log(WarnLevel, msg, nil, fields)
}

// Error logs an error message
func (l *ConsoleLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	l.log(ErrorLevel, msg, err, fields)
}

// WithFields returns a logger with additional fields
func (l *ConsoleLogger) WithFields(fields Fields) Logger {
	return &ConsoleLogger{out: l.out, level: l.level, fields: mergeFields(l.fields, fields)}
}

// Close does not close the underlying stream
func (l *ConsoleLogger) Close() error {
	return nil
}

func (l *ConsoleLogger) log(level Level, msg string, err error, fields Fields) {
	if level < l.level {
		return
	}

	e := newEntry(level, msg, err, l.fields, fields)

	var b strings.Builder
	b.WriteString(e.time.Format(timestampLayout))
	b.WriteString(": ")
	b.WriteString(l.out.colors[level].Sprint("[" + levelString(level) + "]"))
	b.WriteByte(' ')
	b.WriteString(msg)
	e.writeFields(&b)
	b.WriteByte('\n')

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	io.WriteString(l.out.w, b.String())
}
