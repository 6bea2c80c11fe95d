package batch

import "github.com/chrisbigart/odata.net/pkg/sink"

// preambleWriter serializes an operation's request/status line and headers.
type preambleWriter interface {
	writePreamble(s sink.Sink) error
}

// pendingBuffer holds the not-yet-emitted preamble of the operation
// currently open. The writer flushes it before any boundary-bearing write
// and before completing a changeset or batch, so the previous operation's
// preamble is fully on the wire before any boundary interleaves with it.
// Flushing is idempotent once the buffered message is cleared.
type pendingBuffer struct {
	msg         preambleWriter
	contentID   string
	resolvedURI string
	completed   func()
}

// set arms the buffer for a newly created operation. contentID and
// resolvedURI are registered into the reference table on flush; both are
// empty for operations that are never cross-referenced.
func (p *pendingBuffer) set(msg preambleWriter, contentID, resolvedURI string, completed func()) {
	p.msg = msg
	p.contentID = contentID
	p.resolvedURI = resolvedURI
	p.completed = completed
}

// armed reports whether a preamble is waiting to be flushed.
func (p *pendingBuffer) armed() bool {
	return p.msg != nil
}

// flush emits the buffered preamble, registers the operation's Content-ID,
// fires the completion callback, and clears the buffer.
func (p *pendingBuffer) flush(s sink.Sink, refs *ContentIDTable) error {
	if p.msg == nil {
		return nil
	}
	if err := p.msg.writePreamble(s); err != nil {
		return err
	}
	if p.contentID != "" {
		refs.Register(p.contentID, p.resolvedURI)
	}
	if p.completed != nil {
		p.completed()
	}
	p.reset()
	return nil
}

// reset clears the buffer for the next operation.
func (p *pendingBuffer) reset() {
	p.msg = nil
	p.contentID = ""
	p.resolvedURI = ""
	p.completed = nil
}
