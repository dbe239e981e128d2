package ratelimit

import (
	"context"
	"io"
	"sync"
	"time"
)

// minBurst keeps small rates from degenerating into tiny reads
const minBurst = 64 * 1024

// Limiter is a token bucket counted in bytes. One limiter is shared by
// every file read of a run so the limit applies to the run as a whole.
type Limiter struct {
	rate  int64
	burst int64

	mu     sync.Mutex
	avail  int64
	filled time.Time
}

// NewLimiter returns a limiter allowing rate bytes per second, or nil when
// rate is not positive. The bucket holds one second of data and starts full.
func NewLimiter(rate int64) *Limiter {
	if rate <= 0 {
		return nil
	}
	burst := rate
	if burst < minBurst {
		burst = minBurst
	}
	return &Limiter{rate: rate, burst: burst, avail: burst, filled: time.Now()}
}

// BytesPerSecond returns the configured rate, 0 for a nil limiter
func (l *Limiter) BytesPerSecond() int64 {
	if l == nil {
		return 0
	}
	return l.rate
}

// Wrap returns a reader wrapper suitable for digest.Hasher. Readers are
// throttled until ctx is done. A nil limiter leaves readers untouched.
func (l *Limiter) Wrap(ctx context.Context) func(io.ReadCloser) io.ReadCloser {
	return func(rc io.ReadCloser) io.ReadCloser {
		return NewReadCloser(ctx, rc, l)
	}
}

// reserve blocks until n bytes may be read. n must not exceed the burst.
func (l *Limiter) reserve(ctx context.Context, n int64) error {
	for {
		l.mu.Lock()
		l.refill(time.Now())
		if l.avail >= n {
			l.mu.Unlock()
			return nil
		}
		wait := time.Duration(float64(n-l.avail) / float64(l.rate) * float64(time.Second))
		l.mu.Unlock()

		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refill credits the time elapsed since the last refill. Caller holds mu.
func (l *Limiter) refill(now time.Time) {
	earned := int64(now.Sub(l.filled).Seconds() * float64(l.rate))
	if earned <= 0 {
		return
	}
	l.avail += earned
	if l.avail > l.burst {
		l.avail = l.burst
	}
	l.filled = now
}

// spend debits bytes actually read
func (l *Limiter) spend(n int64) {
	l.mu.Lock()
	l.avail -= n
	if l.avail < 0 {
		l.avail = 0
	}
	l.mu.Unlock()
}

// Reader throttles an io.Reader through a Limiter
type Reader struct {
	ctx     context.Context
	src     io.Reader
	limiter *Limiter
}

// NewReader returns r throttled by limiter, or r itself when limiter is nil
func NewReader(ctx context.Context, r io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &Reader{ctx: ctx, src: r, limiter: limiter}
}

// Read reads at most one burst per call, after the limiter grants it
func (r *Reader) Read(p []byte) (int, error) {
	if int64(len(p)) > r.limiter.burst {
		p = p[:r.limiter.burst]
	}
	if err := r.limiter.reserve(r.ctx, int64(len(p))); err != nil {
		return 0, err
	}
	n, err := r.src.Read(p)
	if n > 0 {
		r.limiter.spend(int64(n))
	}
	return n, err
}

// ReadCloser is a Reader that also closes its source
type ReadCloser struct {
	Reader
	closer io.Closer
}

// NewReadCloser returns rc throttled by limiter, or rc itself when limiter is nil
func NewReadCloser(ctx context.Context, rc io.ReadCloser, limiter *Limiter) io.ReadCloser {
	if limiter == nil {
		return rc
	}
	return &ReadCloser{
		Reader: Reader{ctx: ctx, src: rc, limiter: limiter},
		closer: rc,
	}
}

// Close closes the underlying reader
func (rc *ReadCloser) Close() error {
	return rc.closer.Close()
}
