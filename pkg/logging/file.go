package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FileLoggerConfig holds configuration for file logging
type FileLoggerConfig struct {
	// Path is the log file path
	Path string
	// Format is the output format (json or text)
	Format Format
	// Level is the minimum log level
	Level Level
	// MaxSize is the maximum size in bytes before rotation (0 = no rotation)
	MaxSize int64
	// MaxBackups is the maximum number of backup files to keep
	MaxBackups int
	// Fallback receives write failures. Defaults to os.Stderr.
	Fallback io.Writer
}

// fileSink is shared by a FileLogger and every logger derived from it
// through WithFields, so appends stay serialized.
type fileSink struct {
	mu          sync.Mutex
	config      FileLoggerConfig
	file        *os.File
	currentSize int64
	closed      bool
}

// FileLogger appends one line per event to a log file
type FileLogger struct {
	sink   *fileSink
	fields Fields
}

// NewFileLogger creates a new file logger
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if config.Fallback == nil {
		config.Fallback = os.Stderr
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := openAppend(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	return &FileLogger{
		sink: &fileSink{
			config:      config,
			file:        file,
			currentSize: info.Size(),
		},
	}, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// Debug logs a debug message
func (l *FileLogger) Debug(ctx context.Context, msg string, fields Fields) {
	l.log(DebugLevel, msg, nil, fields)
}

// Info logs an info message
func (l *FileLogger) Info(ctx context.Context, msg string, fields Fields) {
	l.log(InfoLevel, msg, nil, fields)
}

// Warn logs a warning message
func (l *FileLogger) Warn(ctx context.Context, msg string, fields Fields) {
	l.log(WarnLevel, msg, nil, fields)
}

// Error logs an error message
func (l *FileLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	l.log(ErrorLevel, msg, err, fields)
}

// WithFields returns a logger with additional fields
func (l *FileLogger) WithFields(fields Fields) Logger {
	return &FileLogger{sink: l.sink, fields: mergeFields(l.fields, fields)}
}

// Close flushes and closes the logger. Derived loggers share the file,
// so closing any of them closes it for all.
func (l *FileLogger) Close() error {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.file == nil {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

func (l *FileLogger) log(level Level, msg string, err error, fields Fields) {
	s := l.sink
	if level < s.config.Level {
		return
	}

	e := newEntry(level, msg, err, l.fields, fields)

	var line []byte
	if s.config.Format == FormatJSON {
		var encErr error
		if line, encErr = e.json(); encErr != nil {
			s.fallback(fmt.Errorf("failed to encode log entry: %w", encErr), e.text())
			return
		}
	} else {
		line = e.text()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.file == nil {
		s.fallbackLocked(fmt.Errorf("log file %s is closed", s.config.Path), line)
		return
	}

	if s.config.MaxSize > 0 && s.currentSize >= s.config.MaxSize {
		if rotErr := s.rotate(); rotErr != nil {
			s.fallbackLocked(rotErr, line)
			return
		}
	}

	n, writeErr := s.file.Write(line)
	s.currentSize += int64(n)
	if writeErr != nil {
		s.fallbackLocked(fmt.Errorf("failed to write log file %s: %w", s.config.Path, writeErr), line)
	}
}

func (s *fileSink) fallback(err error, line []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallbackLocked(err, line)
}

// fallbackLocked reports a logging failure together with the lost line.
// Errors writing to the fallback are ignored.
func (s *fileSink) fallbackLocked(err error, line []byte) {
	fmt.Fprintf(s.config.Fallback, "logging: %v\n", err)
	s.config.Fallback.Write(line)
}

// rotate shifts path.N to path.N+1, moves the live file to path.1 and
// reopens. Must be called with s.mu held.
func (s *fileSink) rotate() error {
	s.file.Close()
	s.file = nil

	path := s.config.Path
	for i := s.config.MaxBackups - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", path, i), fmt.Sprintf("%s.%d", path, i+1))
	}

	if s.config.MaxBackups > 0 {
		os.Rename(path, path+".1")
		os.Remove(fmt.Sprintf("%s.%d", path, s.config.MaxBackups+1))
	} else {
		os.Remove(path)
	}

	file, err := openAppend(path)
	if err != nil {
		return fmt.Errorf("failed to reopen log file after rotation: %w", err)
	}

	s.file = file
	s.currentSize = 0
	return nil
}
