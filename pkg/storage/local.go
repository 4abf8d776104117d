package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

const (
	tempPrefix = ".foldermirror-"
	filePerm   = 0644
)

// Local is a go-billy backed storage backend rooted at a directory
type Local struct {
	rootPath string
	fs       billy.Filesystem
	onDisk   bool
	follow   bool

	missingOK bool
}

// LocalOption configures a Local backend
type LocalOption func(*Local)

// WithFollowSymlinks makes listings and Stat describe what a symlink points
// to. Meant for the tree being read: a replica that followed links would
// write and delete through them.
func WithFollowSymlinks() LocalOption {
	return func(l *Local) { l.follow = true }
}

// WithMissingRoot accepts a root that does not exist yet. Every operation
// then fails with a not-exist error until it appears.
func WithMissingRoot() LocalOption {
	return func(l *Local) { l.missingOK = true }
}

// NewLocal creates a backend on the local filesystem rooted at rootPath.
// Symlinks are reported as themselves unless WithFollowSymlinks is given.
func NewLocal(rootPath string, opts ...LocalOption) (*Local, error) {
	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	l := &Local{rootPath: absPath, fs: osfs.New(absPath), onDisk: true}
	for _, opt := range opts {
		opt(l)
	}

	info, err := os.Stat(absPath)
	switch {
	case os.IsNotExist(err) && l.missingOK:
		return l, nil
	case err != nil:
		return nil, fmt.Errorf("failed to access path: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("path is not a directory: %s", absPath)
	}
	return l, nil
}

// NewMemory creates an in-memory backend. root is only used for messages.
func NewMemory(root string, opts ...LocalOption) *Local {
	return NewFromBilly(root, memfs.New(), opts...)
}

// NewFromBilly wraps an existing billy filesystem
func NewFromBilly(root string, fsys billy.Filesystem, opts ...LocalOption) *Local {
	l := &Local{rootPath: root, fs: fsys}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Filesystem returns the underlying billy filesystem
func (l *Local) Filesystem() billy.Filesystem {
	return l.fs
}

// ReadDir returns the immediate children of a directory
func (l *Local) ReadDir(ctx context.Context, path string) ([]FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := l.fs.ReadDir(l.clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", l.Path(path), err)
	}

	entries := make([]FileInfo, 0, len(infos))
	for _, info := range infos {
		child := filepath.Join(path, info.Name())
		if l.follow && info.Mode()&os.ModeSymlink != 0 {
			// A dangling link keeps its own info; opening it fails later
			if target, err := l.fs.Stat(l.clean(child)); err == nil {
				if target.IsDir() && l.loops(path, child) {
					continue
				}
				info = target
			}
		}
		entries = append(entries, l.fileInfo(child, info))
	}

	return entries, nil
}

// loops reports whether the directory link child points at dir or one of
// its ancestors, which would make a recursive walk endless.
func (l *Local) loops(dir, child string) bool {
	if !l.onDisk {
		return false
	}
	target, err := filepath.EvalSymlinks(l.Path(child))
	if err != nil {
		return false
	}
	parent, err := filepath.EvalSymlinks(l.Path(dir))
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(target, parent)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Stat returns entry metadata
func (l *Local) Stat(ctx context.Context, path string) (*FileInfo, error) {
	info, err := l.stat(l.clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", l.Path(path), err)
	}

	fi := l.fileInfo(path, info)
	return &fi, nil
}

// Exists checks if a file or directory exists
func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	_, err := l.stat(l.clean(path))
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check existence of %s: %w", l.Path(path), err)
	}
}

// MkdirAll creates a directory and all necessary parents
func (l *Local) MkdirAll(ctx context.Context, path string) error {
	if err := l.fs.MkdirAll(l.clean(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", l.Path(path), err)
	}
	return nil
}

// Open opens a file for reading
func (l *Local) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	file, err := l.fs.Open(l.clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", l.Path(path), err)
	}
	return file, nil
}

// Write streams reader into a temporary sibling file and renames it over path
func (l *Local) Write(ctx context.Context, path string, reader io.Reader) (int64, error) {
	target := l.clean(path)
	dir := filepath.Dir(target)

	// Ensure parent directory exists
	if err := l.fs.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory %s: %w", l.Path(dir), err)
	}

	tmp, err := l.fs.TempFile(dir, tempPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file in %s: %w", l.Path(dir), err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		l.fs.Remove(tmpName)
		return written, fmt.Errorf("failed to write %s: %w", l.Path(path), err)
	}

	// TempFile creates 0600 files
	if err := l.chmod(tmpName, filePerm); err != nil {
		l.fs.Remove(tmpName)
		return written, fmt.Errorf("failed to set permissions on %s: %w", l.Path(path), err)
	}

	if err := l.fs.Rename(tmpName, target); err != nil {
		l.fs.Remove(tmpName)
		return written, fmt.Errorf("failed to replace %s: %w", l.Path(path), err)
	}

	return written, nil
}

// Remove deletes a single file
func (l *Local) Remove(ctx context.Context, path string) error {
	if err := l.fs.Remove(l.clean(path)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", l.Path(path), err)
	}
	return nil
}

// RemoveAll deletes a directory tree
func (l *Local) RemoveAll(ctx context.Context, path string) error {
	if err := util.RemoveAll(l.fs, l.clean(path)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", l.Path(path), err)
	}
	return nil
}

// Root returns the backend root
func (l *Local) Root() string {
	return l.rootPath
}

// Path returns the full path for messages
func (l *Local) Path(path string) string {
	return filepath.Join(l.rootPath, path)
}

// Close releases resources (no-op for local filesystem)
func (l *Local) Close() error {
	return nil
}

// stat describes symlinks themselves unless the backend follows them
func (l *Local) stat(name string) (os.FileInfo, error) {
	if !l.follow {
		if sl, ok := l.fs.(billy.Symlink); ok {
			return sl.Lstat(name)
		}
	}
	return l.fs.Stat(name)
}

// chmod sets a file mode. The osfs chroot does not expose billy.Change,
// so on-disk backends go through the OS.
func (l *Local) chmod(name string, mode os.FileMode) error {
	if ch, ok := l.fs.(billy.Change); ok {
		return ch.Chmod(name, mode)
	}
	if l.onDisk {
		return os.Chmod(l.Path(name), mode)
	}
	return nil
}

func (l *Local) clean(path string) string {
	if path == "" {
		return "."
	}
	return filepath.Clean(path)
}

func (l *Local) fileInfo(relPath string, info os.FileInfo) FileInfo {
	return FileInfo{
		Name:         info.Name(),
		Path:         l.Path(relPath),
		RelativePath: relPath,
		Size:         info.Size(),
		ModTime:      info.ModTime(),
		IsDir:        info.IsDir(),
		Permissions:  uint32(info.Mode().Perm()),
	}
}
