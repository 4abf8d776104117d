package compare

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdejongh/foldermirror/pkg/storage"
)

type pair struct {
	source  *storage.Local
	replica *storage.Local
}

func newPair() pair {
	return pair{source: storage.NewMemory("/source"), replica: storage.NewMemory("/replica")}
}

func put(t *testing.T, b storage.Backend, path string, content []byte) {
	t.Helper()
	_, err := b.Write(context.Background(), path, bytes.NewReader(content))
	require.NoError(t, err)
}

// unreadableBackend fails every Open on the wrapped backend
type unreadableBackend struct {
	storage.Backend
}

func (b *unreadableBackend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	return nil, errors.New("permission denied")
}

func TestParseAlgorithm(t *testing.T) {
	for input, want := range map[string]Algorithm{"": SHA256, "sha256": SHA256, "md5": MD5} {
		got, err := ParseAlgorithm(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseAlgorithm("crc32")
	assert.Error(t, err)
}

func TestComparisonEqual(t *testing.T) {
	var missing *Comparison
	assert.False(t, missing.Equal())
	assert.True(t, (&Comparison{Verdict: Same}).Equal())
	for _, v := range []Verdict{Different, SourceOnly, ReplicaOnly, Failed} {
		assert.False(t, (&Comparison{Verdict: v}).Equal(), v)
	}
}

func TestDigestComparator_Verdicts(t *testing.T) {
	large := make([]byte, 2*partialHashThreshold)
	headChanged := append([]byte(nil), large...)
	headChanged[10] = 1
	tailChanged := append([]byte(nil), large...)
	tailChanged[len(tailChanged)-1] = 1

	tests := []struct {
		name       string
		source     []byte
		replica    []byte
		noSource   bool
		noReplica  bool
		want       Verdict
		wantReason string
	}{
		{name: "Identical", source: []byte("same bytes"), replica: []byte("same bytes"), want: Same, wantReason: "file hashes match"},
		{name: "BothEmpty", source: []byte{}, replica: []byte{}, want: Same},
		{name: "SizeDiffers", source: []byte("short"), replica: []byte("a lot longer"), want: Different, wantReason: "file sizes differ"},
		{name: "SameSizeOtherBytes", source: []byte("abcdefgh"), replica: []byte("12345678"), want: Different, wantReason: "file hashes differ"},
		{name: "LargeHeadDiffers", source: large, replica: headChanged, want: Different, wantReason: "file partial hashes differ"},
		{name: "LargeTailDiffers", source: large, replica: tailChanged, want: Different, wantReason: "file hashes differ"},
		{name: "MissingInReplica", source: []byte("x"), noReplica: true, want: SourceOnly},
		{name: "MissingInSource", replica: []byte("x"), noSource: true, want: ReplicaOnly},
	}

	for _, algo := range []Algorithm{SHA256, MD5} {
		comparator := NewDigestComparator(algo, 4096)
		assert.Equal(t, string(algo), comparator.Name())

		for _, tt := range tests {
			t.Run(string(algo)+"/"+tt.name, func(t *testing.T) {
				p := newPair()
				if !tt.noSource {
					put(t, p.source, "dir/f.bin", tt.source)
				}
				if !tt.noReplica {
					put(t, p.replica, "dir/f.bin", tt.replica)
				}

				got, err := comparator.Compare(context.Background(), p.source, p.replica, "dir/f.bin", "dir/f.bin")
				require.NoError(t, err)
				assert.Equal(t, tt.want, got.Verdict)
				if tt.wantReason != "" {
					assert.Equal(t, tt.wantReason, got.Reason)
				}
			})
		}
	}
}

func TestDigestComparator_PartialHashDisabled(t *testing.T) {
	p := newPair()
	src := make([]byte, 2*partialHashThreshold)
	dst := append([]byte(nil), src...)
	dst[0] = 1
	put(t, p.source, "big.bin", src)
	put(t, p.replica, "big.bin", dst)

	comparator := NewDigestComparator(SHA256, 64*1024)
	comparator.SetPartialHashEnabled(false)

	got, err := comparator.Compare(context.Background(), p.source, p.replica, "big.bin", "big.bin")
	require.NoError(t, err)
	assert.Equal(t, Different, got.Verdict)
	assert.Equal(t, "file hashes differ", got.Reason)
}

func TestDigestComparator_UnreadableFile(t *testing.T) {
	p := newPair()
	put(t, p.source, "locked.txt", []byte("content"))
	put(t, p.replica, "locked.txt", []byte("content"))
	comparator := NewDigestComparator(SHA256, 4096)

	got, err := comparator.Compare(context.Background(), &unreadableBackend{p.source}, p.replica, "locked.txt", "locked.txt")
	require.Error(t, err)
	assert.Equal(t, Failed, got.Verdict)
	assert.Contains(t, got.Reason, "source")
	assert.False(t, got.Equal())

	got, err = comparator.Compare(context.Background(), p.source, &unreadableBackend{p.replica}, "locked.txt", "locked.txt")
	require.Error(t, err)
	assert.Contains(t, got.Reason, "replica")
}

func TestDigestComparator_Cancelled(t *testing.T) {
	p := newPair()
	content := make([]byte, 512*1024)
	put(t, p.source, "c.bin", content)
	put(t, p.replica, "c.bin", content)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDigestComparator(SHA256, 4096).Compare(ctx, p.source, p.replica, "c.bin", "c.bin")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDigestComparator_ReaderWrapper(t *testing.T) {
	p := newPair()
	put(t, p.source, "w.txt", []byte("wrapped"))
	put(t, p.replica, "w.txt", []byte("wrapped"))

	var wrapped atomic.Int32
	comparator := NewDigestComparator(SHA256, 1024)
	comparator.SetReaderWrapper(func(rc io.ReadCloser) io.ReadCloser {
		wrapped.Add(1)
		return rc
	})

	got, err := comparator.Compare(context.Background(), p.source, p.replica, "w.txt", "w.txt")
	require.NoError(t, err)
	assert.True(t, got.Equal())
	assert.Equal(t, int32(2), wrapped.Load(), "both sides are read through the wrapper")
}
