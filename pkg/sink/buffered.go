package sink

import (
	"bufio"
	"context"
	"io"
)

// Buffered implements Sink over any io.Writer using an in-memory buffer.
type Buffered struct {
	w  io.Writer
	bw *bufio.Writer
}

// NewBuffered creates a buffered sink writing to w.
func NewBuffered(w io.Writer) *Buffered {
	return &Buffered{
		w:  w,
		bw: bufio.NewWriter(w),
	}
}

// Write writes p to the buffer.
func (b *Buffered) Write(p []byte) (int, error) {
	return b.bw.Write(p)
}

// WriteString writes s to the buffer.
func (b *Buffered) WriteString(s string) (int, error) {
	return b.bw.WriteString(s)
}

// Flush drains the buffer into the underlying writer.
func (b *Buffered) Flush() error {
	return b.bw.Flush()
}

// FlushContext drains the buffer, failing fast if ctx is already done.
// bufio flushes synchronously, so cancellation is only observed between
// writes, not during one.
func (b *Buffered) FlushContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.bw.Flush()
}

// Raw returns the underlying writer. The caller owns ordering: Flush must
// have been called since the last buffered write.
func (b *Buffered) Raw() io.Writer {
	return b.w
}
