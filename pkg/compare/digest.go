package compare

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"sync"

	"github.com/sdejongh/foldermirror/pkg/storage"
)

// Partial hashing configuration
const (
	// Minimum file size to enable partial hashing (1MB)
	partialHashThreshold = 1 * 1024 * 1024
	// Size of partial hash to compute (256KB)
	partialHashSize = 256 * 1024
)

// Algorithm names a content digest
type Algorithm string

const (
	// SHA256 is the default digest
	SHA256 Algorithm = "sha256"
	// MD5 is faster but not collision resistant
	MD5 Algorithm = "md5"
)

// ParseAlgorithm validates a digest name
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case SHA256, "":
		return SHA256, nil
	case MD5:
		return MD5, nil
	default:
		return "", fmt.Errorf("unsupported digest algorithm: %s (use: sha256, md5)", name)
	}
}

func (a Algorithm) newHash() hash.Hash {
	if a == MD5 {
		return md5.New()
	}
	return sha256.New()
}

// DigestComparator compares files by streaming them through a content digest.
// Timestamps and permissions are ignored.
type DigestComparator struct {
	algorithm         Algorithm
	bufferSize        int
	bufferPool        *sync.Pool
	enablePartialHash bool
	readerWrapper     ReaderWrapper
}

// NewDigestComparator creates a comparator for the given algorithm
func NewDigestComparator(algorithm Algorithm, bufferSize int) *DigestComparator {
	if bufferSize < 4096 {
		bufferSize = 4096
	}
	if algorithm == "" {
		algorithm = SHA256
	}
	return &DigestComparator{
		algorithm:         algorithm,
		bufferSize:        bufferSize,
		enablePartialHash: true,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
	}
}

// SetPartialHashEnabled enables or disables the leading-bytes early exit for large files
func (c *DigestComparator) SetPartialHashEnabled(enabled bool) {
	c.enablePartialHash = enabled
}

// SetReaderWrapper sets a function to wrap readers (e.g., for rate limiting)
func (c *DigestComparator) SetReaderWrapper(wrapper ReaderWrapper) {
	c.readerWrapper = wrapper
}

// Compare compares two files by content digest
func (c *DigestComparator) Compare(ctx context.Context, source, replica storage.Backend, sourcePath, replicaPath string) (*Comparison, error) {
	sourceInfo, err := source.Stat(ctx, sourcePath)
	if err != nil {
		if storage.IsNotExist(err) {
			return c.result(sourcePath, replicaPath, ReplicaOnly, "file exists only in the replica"), nil
		}
		return c.failure(sourcePath, replicaPath, "failed to stat source file", err)
	}

	replicaInfo, err := replica.Stat(ctx, replicaPath)
	if err != nil {
		if storage.IsNotExist(err) {
			return c.result(sourcePath, replicaPath, SourceOnly, "file exists only in the source"), nil
		}
		return c.failure(sourcePath, replicaPath, "failed to stat replica file", err)
	}

	// Quick check: different sizes cannot hold the same bytes
	if sourceInfo.Size != replicaInfo.Size {
		return c.result(sourcePath, replicaPath, Different, "file sizes differ"), nil
	}

	if c.enablePartialHash && sourceInfo.Size >= partialHashThreshold {
		sourcePartial, replicaPartial, sourceErr, replicaErr := c.hashPair(ctx, source, replica, sourcePath, replicaPath, partialHashSize)

		// A failed partial hash falls through to the full hash
		if sourceErr == nil && replicaErr == nil && !bytes.Equal(sourcePartial, replicaPartial) {
			return c.result(sourcePath, replicaPath, Different, "file partial hashes differ"), nil
		}
	}

	sourceHash, replicaHash, sourceErr, replicaErr := c.hashPair(ctx, source, replica, sourcePath, replicaPath, -1)
	if sourceErr != nil {
		return c.failure(sourcePath, replicaPath, "failed to compute source hash", sourceErr)
	}
	if replicaErr != nil {
		return c.failure(sourcePath, replicaPath, "failed to compute replica hash", replicaErr)
	}

	if !bytes.Equal(sourceHash, replicaHash) {
		return c.result(sourcePath, replicaPath, Different, "file hashes differ"), nil
	}

	return c.result(sourcePath, replicaPath, Same, "file hashes match"), nil
}

// hashPair hashes both files in parallel. limit < 0 hashes the whole file.
func (c *DigestComparator) hashPair(ctx context.Context, source, replica storage.Backend, sourcePath, replicaPath string, limit int64) ([]byte, []byte, error, error) {
	var sourceHash, replicaHash []byte
	var sourceErr, replicaErr error
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		sourceHash, sourceErr = c.computeHash(ctx, source, sourcePath, limit)
	}()
	go func() {
		defer wg.Done()
		replicaHash, replicaErr = c.computeHash(ctx, replica, replicaPath, limit)
	}()
	wg.Wait()

	return sourceHash, replicaHash, sourceErr, replicaErr
}

// computeHash streams a file (or its first limit bytes) through the digest
func (c *DigestComparator) computeHash(ctx context.Context, backend storage.Backend, path string, limit int64) ([]byte, error) {
	reader, err := backend.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	if c.readerWrapper != nil {
		reader = c.readerWrapper(reader)
	}
	defer reader.Close()

	var src io.Reader = reader
	if limit >= 0 {
		src = io.LimitReader(reader, limit)
	}

	hasher := c.algorithm.newHash()

	bufPtr := c.bufferPool.Get().(*[]byte)
	buffer := *bufPtr
	defer c.bufferPool.Put(bufPtr)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := src.Read(buffer)
		if n > 0 {
			hasher.Write(buffer[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", backend.Path(path), err)
		}
	}

	return hasher.Sum(nil), nil
}

func (c *DigestComparator) result(sourcePath, replicaPath string, verdict Verdict, reason string) *Comparison {
	return &Comparison{
		SourcePath:  sourcePath,
		ReplicaPath: replicaPath,
		Verdict:     verdict,
		Reason:      reason,
	}
}

func (c *DigestComparator) failure(sourcePath, replicaPath, reason string, err error) (*Comparison, error) {
	return &Comparison{
		SourcePath:  sourcePath,
		ReplicaPath: replicaPath,
		Verdict:     Failed,
		Reason:      reason,
		Err:         err,
	}, err
}

// Name returns the comparator name
func (c *DigestComparator) Name() string {
	return string(c.algorithm)
}
