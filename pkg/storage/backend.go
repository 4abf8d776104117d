package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"time"
)

// ErrNotExist is returned (wrapped) when an entry does not exist
var ErrNotExist = fs.ErrNotExist

// FileInfo represents metadata about a file or directory
type FileInfo struct {
	Name         string
	Path         string // Full path, for messages
	RelativePath string // Path relative to the backend root
	Size         int64
	ModTime      time.Time
	IsDir        bool
	Permissions  uint32
}

// Backend defines the directory-at-a-time operations the mirror passes need.
// All paths are relative to the backend root.
type Backend interface {
	// ReadDir returns the immediate children of a directory
	ReadDir(ctx context.Context, path string) ([]FileInfo, error)

	// Stat returns entry metadata; a missing entry yields an error wrapping ErrNotExist
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// Exists checks if a file or directory exists
	Exists(ctx context.Context, path string) (bool, error)

	// MkdirAll creates a directory and all necessary parents
	MkdirAll(ctx context.Context, path string) error

	// Open opens a file for streamed reading
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Write creates or replaces a file with the reader's content and returns
	// the number of bytes written. The previous content stays in place until
	// the new content is complete.
	Write(ctx context.Context, path string, reader io.Reader) (int64, error)

	// Remove deletes a single file
	Remove(ctx context.Context, path string) error

	// RemoveAll deletes a directory tree
	RemoveAll(ctx context.Context, path string) error

	// Root returns the absolute root of the backend
	Root() string

	// Path returns the full path of a relative path, for messages
	Path(path string) string

	// Close releases any resources held by the backend
	Close() error
}

// IsNotExist reports whether err means the entry is missing
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}
