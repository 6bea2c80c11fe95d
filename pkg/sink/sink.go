package sink

import (
	"context"
	"io"
)

// Sink is an ordered raw output target for a batch payload.
// Writes are emitted in call order; nothing is reordered or retried.
type Sink interface {
	io.Writer

	// WriteString writes s to the sink.
	WriteString(s string) (int, error)

	// Flush pushes all buffered bytes to the underlying transport,
	// blocking until the transport has accepted them.
	Flush() error

	// FlushContext pushes all buffered bytes to the underlying transport.
	// Implementations backed by a suspendable transport honor ctx
	// cancellation; the default buffered implementation checks ctx before
	// flushing and otherwise behaves like Flush.
	FlushContext(ctx context.Context) error

	// Raw returns the underlying writer for direct body streaming.
	// Callers must Flush first so buffered bytes cannot interleave with
	// bytes written to the raw writer.
	Raw() io.Writer
}
