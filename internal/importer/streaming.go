package importer

// streaming.go prepares uploaded bytes for the parser without buffering the
// whole file: the UTF-8 BOM some spreadsheet exports prepend is dropped,
// invalid UTF-8 becomes U+FFFD, the size cap is enforced and bytes read are
// counted for progress reporting.

import (
	"io"
	"sync/atomic"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CountingReader tracks bytes read. BytesRead is safe to call from other
// goroutines while the reader is in use.
type CountingReader struct {
	r     io.Reader
	n     atomic.Int64
	total int64
}

// NewCountingReader wraps r. total is the expected size, 0 if unknown.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{r: r, total: total}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (c *CountingReader) BytesRead() int64 { return c.n.Load() }

// Total returns the expected size, 0 if unknown.
func (c *CountingReader) Total() int64 { return c.total }

// limitedReader fails with ErrFileTooLarge once more than max bytes arrive.
type limitedReader struct {
	r   io.Reader
	max int64
	n   int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.max {
		return n, ErrFileTooLarge
	}
	return n, err
}

// WrapForImport returns a reader that counts raw bytes, enforces maxBytes
// (0 disables the cap), strips a UTF-8 BOM and replaces invalid UTF-8.
// The counter observes the raw upload so progress matches the file size.
func WrapForImport(r io.Reader, size, maxBytes int64) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r, size)
	var src io.Reader = counter
	if maxBytes > 0 {
		src = &limitedReader{r: counter, max: maxBytes}
	}
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	return transform.NewReader(src, decoder), counter
}
