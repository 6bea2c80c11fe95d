// Package sink provides the ordered raw-output abstraction the batch writers
// emit into.
//
// A Sink accepts text and byte writes in strict order and exposes two flush
// paths: a blocking Flush for synchronous transports and a context-aware
// FlushContext for transports that may suspend. The default Buffered
// implementation wraps any io.Writer with an internal buffer and supports
// detaching the raw writer so an operation body can be streamed directly to
// the transport.
//
// # Usage
//
// Wrap an io.Writer and hand the sink to a batch writer:
//
//	var buf bytes.Buffer
//	s := sink.NewBuffered(&buf)
//	w := batch.NewMultipartWriter(s)
//
// # Interfaces
//
// The Sink interface allows custom implementations for transports with
// genuinely asynchronous flush semantics; Buffered satisfies it for any
// io.Writer.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package sink
