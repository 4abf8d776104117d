package platform

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// NormalizePath normalizes a path for the current platform
func NormalizePath(path string) string {
	// Convert to platform-specific separators
	normalized := filepath.Clean(path)

	// On Windows, ensure UNC paths are preserved
	if runtime.GOOS == "windows" {
		if strings.HasPrefix(path, "\\\\") && !strings.HasPrefix(normalized, "\\\\") {
			normalized = "\\\\" + normalized
		}
	}

	return normalized
}

// IsUNCPath checks if a path is a UNC path (Windows network share)
func IsUNCPath(path string) bool {
	if runtime.GOOS != "windows" {
		return false
	}
	return strings.HasPrefix(path, "\\\\") || strings.HasPrefix(path, "//")
}

// Resolve returns the absolute, symlink-free form of path. When path does
// not exist yet, its longest existing ancestor is resolved instead so that
// a replica about to be created compares correctly with its source.
func Resolve(path string) (string, error) {
	abs, err := filepath.Abs(NormalizePath(path))
	if err != nil {
		return "", err
	}

	var missing []string
	current := abs
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return abs, nil
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}

// IsWithin reports whether target is strictly inside base. Both paths must
// already be cleaned and absolute.
func IsWithin(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// CheckDistinct rejects a source and replica that are the same directory
// or nested in each other, after resolving symlinks.
func CheckDistinct(source, replica string) error {
	src, err := Resolve(source)
	if err != nil {
		return &PathError{Path: source, Message: err.Error()}
	}
	dst, err := Resolve(replica)
	if err != nil {
		return &PathError{Path: replica, Message: err.Error()}
	}

	samePath := src == dst
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		// Case-insensitive by default
		samePath = strings.EqualFold(src, dst)
	}

	switch {
	case samePath:
		return &PathError{Path: replica, Message: "source and replica are the same directory"}
	case IsWithin(src, dst):
		return &PathError{Path: replica, Message: "replica cannot be inside the source directory"}
	case IsWithin(dst, src):
		return &PathError{Path: source, Message: "source cannot be inside the replica directory"}
	}
	return nil
}

// ValidatePath checks if a path is valid for the current platform
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return &PathError{Path: path, Message: "path is empty"}
	}

	// Check for invalid characters based on OS
	if runtime.GOOS == "windows" {
		invalidChars := []string{"<", ">", "\"", "|", "?", "*"}
		for _, char := range invalidChars {
			if strings.Contains(path, char) && !IsUNCPath(path) {
				return &PathError{Path: path, Message: "path contains invalid character: " + char}
			}
		}
	}

	return nil
}

// PathError represents a path validation error
type PathError struct {
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Message
}
