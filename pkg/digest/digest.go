package digest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sdejongh/treeverify/internal/platform"
	"github.com/sdejongh/treeverify/pkg/storage"
)

// Size is the width in bytes of keys and digests
const Size = sha256.Size

// MinBufferSize is the smallest read buffer a Hasher will use
const MinBufferSize = 4096

// Key identifies a file by its normalized relative path
type Key [Size]byte

// String returns the lowercase hex form of the key
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Digest identifies file content
type Digest [Size]byte

// String returns the lowercase hex form of the digest
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// PathKeyOf returns the key of a relative path. Spellings of the same
// logical path ("./a/b", "a//b", and "a\\b" on Windows) produce the same key.
func PathKeyOf(relativePath string) Key {
	return Key(sha256.Sum256([]byte(platform.NormalizeRelative(relativePath))))
}

// ReaderWrapper wraps a file reader before hashing (e.g., for rate limiting)
type ReaderWrapper func(io.ReadCloser) io.ReadCloser

// ProgressFunc receives the running byte count of the file being hashed
type ProgressFunc func(path string, current, total int64)

// Hasher computes content digests by streaming files through SHA-256
type Hasher struct {
	bufferSize     int
	bufferPool     *sync.Pool
	progressReport ProgressFunc
	readerWrapper  ReaderWrapper
}

// NewHasher creates a hasher that reads in chunks of bufferSize bytes
func NewHasher(bufferSize int) *Hasher {
	if bufferSize < MinBufferSize {
		bufferSize = MinBufferSize
	}
	return &Hasher{
		bufferSize: bufferSize,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
	}
}

// SetProgressCallback sets a callback for progress reporting during hashing
func (h *Hasher) SetProgressCallback(callback ProgressFunc) {
	h.progressReport = callback
}

// SetReaderWrapper sets a function to wrap readers before hashing
func (h *Hasher) SetReaderWrapper(wrapper ReaderWrapper) {
	h.readerWrapper = wrapper
}

// BufferSize returns the chunk size used for reads
func (h *Hasher) BufferSize() int {
	return h.bufferSize
}

// File opens path on backend and returns the digest of its full content and
// the number of bytes read. total is used for progress reporting only.
func (h *Hasher) File(ctx context.Context, backend storage.Backend, path string, total int64) (Digest, int64, error) {
	reader, err := backend.Open(ctx, path)
	if err != nil {
		return Digest{}, 0, fmt.Errorf("failed to open file: %w", err)
	}

	if h.readerWrapper != nil {
		reader = h.readerWrapper(reader)
	}
	defer reader.Close()

	return h.sum(ctx, reader, path, total)
}

// Sum returns the digest of everything readable from r.
// On any error no digest is returned.
func (h *Hasher) Sum(ctx context.Context, r io.Reader) (Digest, int64, error) {
	return h.sum(ctx, r, "", -1)
}

func (h *Hasher) sum(ctx context.Context, r io.Reader, path string, total int64) (Digest, int64, error) {
	hasher := sha256.New()

	bufPtr := h.bufferPool.Get().(*[]byte)
	buffer := *bufPtr
	defer h.bufferPool.Put(bufPtr)

	const (
		progressReportInterval = 50 * time.Millisecond
		progressReportBytes    = 64 * 1024
	)
	var totalRead int64
	var lastReported int64
	lastReportTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return Digest{}, totalRead, ctx.Err()
		default:
		}

		n, err := r.Read(buffer)
		if n > 0 {
			hasher.Write(buffer[:n])
			totalRead += int64(n)

			if h.progressReport != nil {
				if totalRead-lastReported >= progressReportBytes || time.Since(lastReportTime) >= progressReportInterval {
					h.progressReport(path, totalRead, total)
					lastReported = totalRead
					lastReportTime = time.Now()
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Digest{}, totalRead, fmt.Errorf("failed to read file: %w", err)
		}
	}

	if h.progressReport != nil && totalRead > lastReported {
		h.progressReport(path, totalRead, total)
	}

	var d Digest
	copy(d[:], hasher.Sum(nil))
	return d, totalRead, nil
}
