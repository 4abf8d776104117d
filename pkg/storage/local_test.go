package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newTempLocal creates a Local backend rooted at a fresh temp directory
func newTempLocal(t *testing.T) (*Local, string) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "foldermirror-storage-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	local, err := NewLocal(tempDir)
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	t.Cleanup(func() { local.Close() })

	return local, tempDir
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create parent dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}

// TestNewLocal tests the Local backend constructor
func TestNewLocal(t *testing.T) {
	t.Run("ValidDirectory", func(t *testing.T) {
		local, tempDir := newTempLocal(t)
		if local.Root() != tempDir {
			t.Errorf("Root() = %s, want %s", local.Root(), tempDir)
		}
	})

	t.Run("NonExistentPath", func(t *testing.T) {
		_, err := NewLocal("/nonexistent/path/that/does/not/exist")
		if err == nil {
			t.Error("NewLocal() should fail for non-existent path")
		}
	})

	t.Run("MissingRootAllowed", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "later")
		local, err := NewLocal(root, WithMissingRoot())
		if err != nil {
			t.Fatalf("NewLocal() error = %v", err)
		}
		if _, err := local.ReadDir(context.Background(), "."); !IsNotExist(err) {
			t.Errorf("ReadDir() error = %v, want not-exist", err)
		}

		writeFile(t, filepath.Join(root, "a.txt"), "a")
		entries, err := local.ReadDir(context.Background(), ".")
		if err != nil || len(entries) != 1 {
			t.Errorf("ReadDir() after creation = %v, %v", entries, err)
		}
	})

	t.Run("FileNotDirectory", func(t *testing.T) {
		tempFile, err := os.CreateTemp("", "foldermirror-file-*")
		if err != nil {
			t.Fatalf("failed to create temp file: %v", err)
		}
		tempFile.Close()
		defer os.Remove(tempFile.Name())

		_, err = NewLocal(tempFile.Name())
		if err == nil {
			t.Error("NewLocal() should fail for file path (not directory)")
		}
	})
}

// TestLocalReadDir tests immediate-children enumeration
func TestLocalReadDir(t *testing.T) {
	local, tempDir := newTempLocal(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(tempDir, "a.txt"), "a")
	writeFile(t, filepath.Join(tempDir, "sub", "b.txt"), "bb")
	if err := os.MkdirAll(filepath.Join(tempDir, "empty"), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	t.Run("Root", func(t *testing.T) {
		entries, err := local.ReadDir(ctx, "")
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("ReadDir() returned %d entries, want 3", len(entries))
		}

		byName := make(map[string]FileInfo)
		for _, e := range entries {
			byName[e.Name] = e
		}
		if byName["a.txt"].IsDir || byName["a.txt"].Size != 1 {
			t.Errorf("a.txt = %+v, want 1-byte file", byName["a.txt"])
		}
		if !byName["sub"].IsDir || !byName["empty"].IsDir {
			t.Error("sub and empty should be directories")
		}
		if byName["a.txt"].Path != filepath.Join(tempDir, "a.txt") {
			t.Errorf("Path = %s, want %s", byName["a.txt"].Path, filepath.Join(tempDir, "a.txt"))
		}
	})

	t.Run("NotRecursive", func(t *testing.T) {
		entries, err := local.ReadDir(ctx, "sub")
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		if len(entries) != 1 || entries[0].RelativePath != filepath.Join("sub", "b.txt") {
			t.Errorf("ReadDir(sub) = %+v", entries)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := local.ReadDir(ctx, "nope")
		if !IsNotExist(err) {
			t.Errorf("ReadDir() error = %v, want not-exist", err)
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := local.ReadDir(cctx, ""); !errors.Is(err, context.Canceled) {
			t.Errorf("ReadDir() error = %v, want context.Canceled", err)
		}
	})
}

// TestLocalOpen tests streamed reading
func TestLocalOpen(t *testing.T) {
	local, tempDir := newTempLocal(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(tempDir, "read.txt"), "read me")

	t.Run("ExistingFile", func(t *testing.T) {
		reader, err := local.Open(ctx, "read.txt")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer reader.Close()

		data, err := io.ReadAll(reader)
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		if string(data) != "read me" {
			t.Errorf("content = %q, want %q", data, "read me")
		}
	})

	t.Run("NonExistentFile", func(t *testing.T) {
		_, err := local.Open(ctx, "missing.txt")
		if err == nil {
			t.Error("Open() should fail for non-existent file")
		}
	})
}

// TestLocalWrite tests the Write method
func TestLocalWrite(t *testing.T) {
	local, tempDir := newTempLocal(t)
	ctx := context.Background()

	t.Run("WriteNewFile", func(t *testing.T) {
		content := []byte("new file content")

		n, err := local.Write(ctx, "new.txt", bytes.NewReader(content))
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if n != int64(len(content)) {
			t.Errorf("Write() = %d bytes, want %d", n, len(content))
		}

		data, err := os.ReadFile(filepath.Join(tempDir, "new.txt"))
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if !bytes.Equal(data, content) {
			t.Errorf("File content = %s, want %s", string(data), string(content))
		}

		info, err := os.Stat(filepath.Join(tempDir, "new.txt"))
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if info.Mode().Perm() != os.FileMode(filePerm) {
			t.Errorf("Permissions = %v, want %v", info.Mode().Perm(), os.FileMode(filePerm))
		}
	})

	t.Run("WriteWithSubdir", func(t *testing.T) {
		if _, err := local.Write(ctx, "subdir/nested.txt", strings.NewReader("nested")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}

		data, err := os.ReadFile(filepath.Join(tempDir, "subdir", "nested.txt"))
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if string(data) != "nested" {
			t.Errorf("File content = %s, want nested", data)
		}
	})

	t.Run("OverwriteFile", func(t *testing.T) {
		if _, err := local.Write(ctx, "overwrite.txt", strings.NewReader("initial content")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if _, err := local.Write(ctx, "overwrite.txt", strings.NewReader("new")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}

		data, err := os.ReadFile(filepath.Join(tempDir, "overwrite.txt"))
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if string(data) != "new" {
			t.Errorf("File content = %s, want new", data)
		}
	})

	t.Run("FailedReaderKeepsOldContent", func(t *testing.T) {
		writeFile(t, filepath.Join(tempDir, "keep.txt"), "original")

		_, err := local.Write(ctx, "keep.txt", io.MultiReader(strings.NewReader("partial"), &failingReader{}))
		if err == nil {
			t.Fatal("Write() should fail when the reader fails")
		}

		data, err := os.ReadFile(filepath.Join(tempDir, "keep.txt"))
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if string(data) != "original" {
			t.Errorf("File content = %s, want original", data)
		}

		entries, err := os.ReadDir(tempDir)
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), tempPrefix) {
				t.Errorf("temporary file %s left behind", e.Name())
			}
		}
	})
}

type failingReader struct{}

func (r *failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("disk on fire")
}

// TestLocalRemove tests Remove and RemoveAll
func TestLocalRemove(t *testing.T) {
	local, tempDir := newTempLocal(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(tempDir, "file.txt"), "x")
	writeFile(t, filepath.Join(tempDir, "tree", "deep", "file.txt"), "y")

	t.Run("RemoveFile", func(t *testing.T) {
		if err := local.Remove(ctx, "file.txt"); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(tempDir, "file.txt")); !os.IsNotExist(err) {
			t.Error("file should be deleted")
		}
	})

	t.Run("RemoveMissingFile", func(t *testing.T) {
		if err := local.Remove(ctx, "file.txt"); err == nil {
			t.Error("Remove() should fail for missing file")
		}
	})

	t.Run("RemoveAllTree", func(t *testing.T) {
		if err := local.RemoveAll(ctx, "tree"); err != nil {
			t.Fatalf("RemoveAll() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(tempDir, "tree")); !os.IsNotExist(err) {
			t.Error("tree should be deleted")
		}
	})
}

// TestLocalExists tests the Exists method
func TestLocalExists(t *testing.T) {
	local, tempDir := newTempLocal(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(tempDir, "exists.txt"), "x")

	tests := []struct {
		path string
		want bool
	}{
		{"exists.txt", true},
		{"", true},
		{"missing.txt", false},
		{"missing/deeper.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := local.Exists(ctx, tt.path)
			if err != nil {
				t.Fatalf("Exists() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Exists(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

// TestLocalStat tests the Stat method
func TestLocalStat(t *testing.T) {
	local, tempDir := newTempLocal(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(tempDir, "dir", "stat.txt"), "12345")

	info, err := local.Stat(ctx, filepath.Join("dir", "stat.txt"))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size != 5 || info.IsDir || info.Name != "stat.txt" {
		t.Errorf("Stat() = %+v", info)
	}

	dirInfo, err := local.Stat(ctx, "dir")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !dirInfo.IsDir {
		t.Error("dir should be a directory")
	}

	if _, err := local.Stat(ctx, "missing"); !IsNotExist(err) {
		t.Errorf("Stat() error = %v, want not-exist", err)
	}
}

// TestLocalMkdirAll tests the MkdirAll method
func TestLocalMkdirAll(t *testing.T) {
	local, tempDir := newTempLocal(t)
	ctx := context.Background()

	if err := local.MkdirAll(ctx, filepath.Join("a", "b", "c")); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(tempDir, "a", "b", "c"))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !info.IsDir() {
		t.Error("created path should be a directory")
	}

	// Idempotent
	if err := local.MkdirAll(ctx, filepath.Join("a", "b", "c")); err != nil {
		t.Errorf("MkdirAll() second call error = %v", err)
	}
}

// TestMemoryBackend exercises the in-memory backend through the same interface
func TestMemoryBackend(t *testing.T) {
	var backend Backend = NewMemory("/mem")
	ctx := context.Background()

	if _, err := backend.Write(ctx, filepath.Join("x", "y.txt"), strings.NewReader("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	entries, err := backend.ReadDir(ctx, "x")
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "y.txt" || entries[0].Size != 5 {
		t.Fatalf("ReadDir() = %+v", entries)
	}
	if backend.Path(filepath.Join("x", "y.txt")) != filepath.Join("/mem", "x", "y.txt") {
		t.Errorf("Path() = %s", backend.Path(filepath.Join("x", "y.txt")))
	}

	if err := backend.RemoveAll(ctx, "x"); err != nil {
		t.Fatalf("RemoveAll() error = %v", err)
	}
	if ok, _ := backend.Exists(ctx, "x"); ok {
		t.Error("x should be deleted")
	}
}

func TestLocalWrite_ReplacesRestrictiveMode(t *testing.T) {
	local, tempDir := newTempLocal(t)
	path := filepath.Join(tempDir, "private.txt")
	if err := os.WriteFile(path, []byte("old"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := local.Write(context.Background(), "private.txt", strings.NewReader("new")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != os.FileMode(filePerm) {
		t.Errorf("Permissions = %v, want %v", info.Mode().Perm(), os.FileMode(filePerm))
	}
}

func TestLocalSymlinks(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "root")
	outside := filepath.Join(base, "outside")
	writeFile(t, filepath.Join(outside, "target.txt"), "content behind a link")
	writeFile(t, filepath.Join(outside, "dir", "inner.txt"), "inner")
	writeFile(t, filepath.Join(root, "plain.txt"), "plain")

	links := map[string]string{
		"file-link": filepath.Join(outside, "target.txt"),
		"dir-link":  filepath.Join(outside, "dir"),
		"loop-link": root,
		"dangling":  filepath.Join(outside, "missing"),
	}
	for name, target := range links {
		if err := os.Symlink(target, filepath.Join(root, name)); err != nil {
			t.Skipf("symlinks not supported: %v", err)
		}
	}
	ctx := context.Background()

	byName := func(entries []FileInfo) map[string]FileInfo {
		m := make(map[string]FileInfo, len(entries))
		for _, e := range entries {
			m[e.Name] = e
		}
		return m
	}

	t.Run("Followed", func(t *testing.T) {
		local, err := NewLocal(root, WithFollowSymlinks())
		if err != nil {
			t.Fatal(err)
		}
		entries, err := local.ReadDir(ctx, ".")
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		got := byName(entries)

		if e := got["file-link"]; e.IsDir || e.Size != int64(len("content behind a link")) {
			t.Errorf("file-link = %+v, want the target's size", e)
		}
		if e := got["dir-link"]; !e.IsDir {
			t.Errorf("dir-link = %+v, want a directory", e)
		}
		if _, ok := got["loop-link"]; ok {
			t.Error("a link to an ancestor must not be listed")
		}
		if _, ok := got["dangling"]; !ok {
			t.Error("a dangling link should still be listed")
		}

		inner, err := local.ReadDir(ctx, "dir-link")
		if err != nil || len(inner) != 1 || inner[0].RelativePath != filepath.Join("dir-link", "inner.txt") {
			t.Errorf("ReadDir(dir-link) = %+v, %v", inner, err)
		}
	})

	t.Run("NotFollowed", func(t *testing.T) {
		local, err := NewLocal(root)
		if err != nil {
			t.Fatal(err)
		}
		info, err := local.Stat(ctx, "dir-link")
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if info.IsDir {
			t.Error("without following, a directory link is not a directory")
		}

		// Removing the link must leave its target alone
		if err := local.RemoveAll(ctx, "dir-link"); err != nil {
			t.Fatalf("RemoveAll() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(outside, "dir", "inner.txt")); err != nil {
			t.Errorf("link target was touched: %v", err)
		}
	})
}
