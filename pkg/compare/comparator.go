// Package compare decides whether a replica file still holds the bytes of
// its source file.
package compare

import (
	"context"
	"io"

	"github.com/sdejongh/foldermirror/pkg/storage"
)

// Verdict is what a content comparison concluded
type Verdict string

const (
	Same        Verdict = "same"
	Different   Verdict = "different"
	SourceOnly  Verdict = "source_only"
	ReplicaOnly Verdict = "replica_only"
	Failed      Verdict = "failed"
)

// Comparison describes one source/replica file pair after comparing
type Comparison struct {
	SourcePath  string
	ReplicaPath string
	Verdict     Verdict
	Reason      string
	Err         error
}

// Equal reports whether the replica copy can be kept as is. Anything
// short of a positive match, failures included, means "copy again".
func (c *Comparison) Equal() bool {
	return c != nil && c.Verdict == Same
}

// ReaderWrapper decorates readers opened for hashing, e.g. to share a
// bandwidth limit with copies.
type ReaderWrapper func(io.ReadCloser) io.ReadCloser

// Comparator compares a source file with its replica counterpart.
// Paths are relative to each backend's root.
type Comparator interface {
	Compare(ctx context.Context, source, replica storage.Backend, sourcePath, replicaPath string) (*Comparison, error)
	Name() string
}
