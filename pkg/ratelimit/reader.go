// Package ratelimit caps the aggregate read rate of a mirror pass.
package ratelimit

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

// minBurst keeps small limits from degenerating into one-byte reads
const minBurst = 64 * 1024

// Limiter is shared by every reader of a pass, so the limit applies to
// copies and hashing together.
type Limiter struct {
	bytesPerSecond int64
	lim            *rate.Limiter
}

// NewLimiter returns nil when bytesPerSecond is not positive
func NewLimiter(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	burst := bytesPerSecond
	if burst < minBurst {
		burst = minBurst
	}
	return &Limiter{
		bytesPerSecond: bytesPerSecond,
		lim:            rate.NewLimiter(rate.Limit(bytesPerSecond), int(burst)),
	}
}

// ParseLimit turns a rate such as "10MB", "10MB/s" or "512 KiB" into a
// limiter. An empty string or "0" disables limiting.
func ParseLimit(value string) (*Limiter, error) {
	value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "/s"))
	if value == "" || value == "0" {
		return nil, nil
	}
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return nil, fmt.Errorf("invalid bandwidth limit %q: %w", value, err)
	}
	return NewLimiter(int64(n)), nil
}

// BytesPerSecond is 0 for a nil limiter
func (l *Limiter) BytesPerSecond() int64 {
	if l == nil {
		return 0
	}
	return l.bytesPerSecond
}

func (l *Limiter) String() string {
	if l == nil {
		return "unlimited"
	}
	return humanize.Bytes(uint64(l.bytesPerSecond)) + "/s"
}

// burst is the largest single read a Reader will issue
func (l *Limiter) burst() int {
	return l.lim.Burst()
}

// Wrapper adapts the limiter to a reader decorator. A nil limiter yields
// a pass-through.
func (l *Limiter) Wrapper(ctx context.Context) func(io.ReadCloser) io.ReadCloser {
	return func(rc io.ReadCloser) io.ReadCloser {
		return NewReadCloser(ctx, rc, l)
	}
}

// Reader charges every byte it returns against a Limiter
type Reader struct {
	ctx     context.Context
	r       io.Reader
	limiter *Limiter
}

// NewReader returns r unchanged when limiter is nil
func NewReader(ctx context.Context, r io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &Reader{ctx: ctx, r: r, limiter: limiter}
}

// Read waits for tokens before handing back what it read. A cancelled
// context ends the wait and is returned as the error.
func (r *Reader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	if limit := r.limiter.burst(); len(p) > limit {
		p = p[:limit]
	}

	n, err := r.r.Read(p)
	if n > 0 {
		if waitErr := r.limiter.lim.WaitN(r.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}

// ReadCloser is a Reader that also closes the wrapped stream
type ReadCloser struct {
	Reader
	closer io.Closer
}

// NewReadCloser returns rc unchanged when limiter is nil
func NewReadCloser(ctx context.Context, rc io.ReadCloser, limiter *Limiter) io.ReadCloser {
	if limiter == nil {
		return rc
	}
	return &ReadCloser{
		Reader: Reader{ctx: ctx, r: rc, limiter: limiter},
		closer: rc,
	}
}

func (rc *ReadCloser) Close() error {
	return rc.closer.Close()
}
