package batch

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chrisbigart/odata.net/pkg/log"
	"github.com/chrisbigart/odata.net/pkg/sink"
)

const operationPartHeaders = "Content-Type: application/http" + crlf +
	"Content-Transfer-Encoding: binary" + crlf

// MultipartWriter emits a batch payload in the MIME multipart/mixed
// encoding. It owns the sink and its ordering for the lifetime of the batch,
// except during the body-stream hand-off window between
// NotifyContentStreamRequested and NotifyContentStreamDisposed.
type MultipartWriter struct {
	sink     sink.Sink
	sm       stateMachine
	alloc    boundaryAllocator
	pending  pendingBuffer
	refs     *ContentIDTable
	resolver URIResolver
	mode     Mode
	logger   log.Logger

	// batchBoundary is allocated once per writer and never changes.
	batchBoundary string

	// changesetBoundary is non-empty exactly while a changeset is open.
	changesetBoundary string

	batchStartWritten     bool
	changesetStartWritten bool

	currentRequest  *RequestMessage
	currentResponse *ResponseMessage
}

var _ Writer = (*MultipartWriter)(nil)

// NewMultipartWriter creates a single-use multipart batch writer bound to s.
func NewMultipartWriter(s sink.Sink, opts ...Option) *MultipartWriter {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	alloc := newBoundaryAllocator(o.response)
	return &MultipartWriter{
		sink:          s,
		alloc:         alloc,
		refs:          NewContentIDTable(),
		resolver:      o.resolver,
		mode:          o.mode,
		logger:        o.logger,
		batchBoundary: alloc.batch(),
	}
}

// BatchBoundary returns the payload's boundary token, e.g. for the
// Content-Type header of the enclosing request.
func (w *MultipartWriter) BatchBoundary() string {
	return w.batchBoundary
}

// State returns the writer's current state.
func (w *MultipartWriter) State() State {
	return w.sm.state
}

// References returns the batch-scoped Content-ID table. The table is live
// and owned by the writer; it must not be retained past the batch.
func (w *MultipartWriter) References() *ContentIDTable {
	return w.refs
}

// StartBatch opens the payload. No bytes are written until the first
// changeset or operation.
func (w *MultipartWriter) StartBatch() error {
	if err := w.sm.ready(); err != nil {
		return err
	}
	if err := w.sm.validate(StateBatchStarted); err != nil {
		return err
	}
	w.setState(StateBatchStarted)
	return nil
}

// StartChangeset opens an atomic group of operations. It writes the batch
// boundary for the changeset part and the nested-boundary preamble.
func (w *MultipartWriter) StartChangeset() error {
	if err := w.sm.ready(); err != nil {
		return err
	}
	if w.changesetBoundary != "" {
		return w.sm.fail(newError(ReasonActiveChangeset,
			"cannot start a changeset while changeset %q is open", w.changesetBoundary))
	}
	if err := w.sm.validate(StateChangesetStarted); err != nil {
		return err
	}
	if err := w.pending.flush(w.sink, w.refs); err != nil {
		return err
	}

	w.changesetBoundary = w.alloc.changeset()
	if err := w.writeStartBoundary(w.batchBoundary, !w.batchStartWritten); err != nil {
		return err
	}
	w.batchStartWritten = true
	preamble := "Content-Type: multipart/mixed; boundary=" + w.changesetBoundary + crlf + crlf
	if _, err := w.sink.WriteString(preamble); err != nil {
		return fmt.Errorf("write changeset preamble: %w", err)
	}
	w.changesetStartWritten = false
	w.setState(StateChangesetStarted)
	w.logger.Debug("changeset started", log.String("boundary", w.changesetBoundary))
	return nil
}

// EndChangeset closes the open changeset. An empty changeset emits only the
// closing boundary line; the opening line is never written retroactively.
func (w *MultipartWriter) EndChangeset() error {
	if err := w.sm.ready(); err != nil {
		return err
	}
	if w.changesetBoundary == "" {
		return w.sm.fail(newError(ReasonMissingActiveChangeset,
			"cannot end a changeset when none is open"))
	}
	if err := w.sm.validate(StateChangesetCompleted); err != nil {
		return err
	}
	if err := w.pending.flush(w.sink, w.refs); err != nil {
		return err
	}

	boundary := w.changesetBoundary
	w.changesetBoundary = ""
	if err := w.writeEndBoundary(boundary, !w.changesetStartWritten); err != nil {
		return err
	}
	w.changesetStartWritten = false
	w.setState(StateChangesetCompleted)
	w.logger.Debug("changeset completed", log.String("boundary", boundary))
	return nil
}

// EndBatch closes the payload. A batch that never wrote its opening boundary
// still emits the closing boundary, and one extra line terminator follows it
// for legacy-reader compatibility.
func (w *MultipartWriter) EndBatch() error {
	if err := w.sm.ready(); err != nil {
		return err
	}
	if w.changesetBoundary != "" {
		return w.sm.fail(newError(ReasonActiveChangesetAtBatchEnd,
			"cannot end the batch while changeset %q is open", w.changesetBoundary))
	}
	if err := w.sm.validate(StateBatchCompleted); err != nil {
		return err
	}
	if err := w.pending.flush(w.sink, w.refs); err != nil {
		return err
	}

	if err := w.writeEndBoundary(w.batchBoundary, !w.batchStartWritten); err != nil {
		return err
	}
	if _, err := w.sink.WriteString(crlf); err != nil {
		return fmt.Errorf("write batch terminator: %w", err)
	}
	w.setState(StateBatchCompleted)
	w.logger.Debug("batch completed", log.String("boundary", w.batchBoundary))
	return nil
}

// CreateOperationRequestMessage adds a request operation. The returned
// message's headers stay mutable until the next writer call flushes the
// preamble.
func (w *MultipartWriter) CreateOperationRequestMessage(method, uri, contentID string, option PayloadURIOption) (*RequestMessage, error) {
	if err := w.sm.ready(); err != nil {
		return nil, err
	}
	if err := w.sm.validate(StateOperationCreated); err != nil {
		return nil, err
	}
	if err := w.pending.flush(w.sink, w.refs); err != nil {
		return nil, err
	}
	w.currentRequest = nil
	w.currentResponse = nil

	if w.changesetBoundary != "" {
		if isReadOnlyMethod(method) {
			return nil, w.sm.fail(newError(ReasonUnsafeMethodInChangeset,
				"method %s is read-only and not allowed in a changeset", method))
		}
		if contentID == "" {
			return nil, w.sm.fail(newError(ReasonMissingContentID,
				"requests in a changeset must carry a Content-ID"))
		}
	}

	resolved, err := w.resolver.ResolveURI(uri, option, w.refs)
	if err != nil {
		if oerr, ok := err.(*Error); ok {
			return nil, w.sm.fail(oerr)
		}
		return nil, err
	}

	if err := w.writeOperationStart(); err != nil {
		return nil, err
	}

	msg := newRequestMessage(method, resolved, contentID)
	w.currentRequest = msg
	w.pending.set(msg, contentID, resolved, func() {
		if msg.onFlushed != nil {
			msg.onFlushed()
		}
	})
	w.setState(StateOperationCreated)
	w.logger.Debug("request operation created",
		log.String("method", method),
		log.String("uri", resolved),
		log.String("content_id", contentID))
	return msg, nil
}

// CreateOperationResponseMessage adds a response operation. Responses are
// never cross-referenced, so their Content-ID is emitted but not registered.
func (w *MultipartWriter) CreateOperationResponseMessage(contentID string) (*ResponseMessage, error) {
	if err := w.sm.ready(); err != nil {
		return nil, err
	}
	if err := w.sm.validate(StateOperationCreated); err != nil {
		return nil, err
	}
	if err := w.pending.flush(w.sink, w.refs); err != nil {
		return nil, err
	}
	w.currentRequest = nil
	w.currentResponse = nil

	if err := w.writeOperationStart(); err != nil {
		return nil, err
	}

	msg := newResponseMessage(contentID)
	w.currentResponse = msg
	w.pending.set(msg, "", "", func() {
		if msg.onFlushed != nil {
			msg.onFlushed()
		}
	})
	w.setState(StateOperationCreated)
	w.logger.Debug("response operation created", log.String("content_id", contentID))
	return msg, nil
}

// NotifyContentStreamRequested flushes the current operation's preamble and
// the sink, then detaches the raw writer for the operation body. In
// ModeSuspending the sink flush honors ctx.
func (w *MultipartWriter) NotifyContentStreamRequested(ctx context.Context) (io.Writer, error) {
	if err := w.sm.ready(); err != nil {
		return nil, err
	}
	if err := w.sm.validate(StateOperationStreamRequested); err != nil {
		return nil, err
	}
	if err := w.pending.flush(w.sink, w.refs); err != nil {
		return nil, err
	}
	if err := w.flushSink(ctx); err != nil {
		return nil, err
	}
	w.setState(StateOperationStreamRequested)
	return w.sink.Raw(), nil
}

// NotifyContentStreamDisposed returns body-stream ownership to the writer
// and resets the per-operation buffer for the next operation.
func (w *MultipartWriter) NotifyContentStreamDisposed() error {
	if err := w.sm.ready(); err != nil {
		return err
	}
	if err := w.sm.validate(StateOperationStreamDisposed); err != nil {
		return err
	}
	w.currentRequest = nil
	w.currentResponse = nil
	w.pending.reset()
	w.setState(StateOperationStreamDisposed)
	return nil
}

// NotifyInStreamError always fails: multipart batch payloads have no
// structured in-payload error representation. The writer is left in its
// terminal error state.
func (w *MultipartWriter) NotifyInStreamError() error {
	if err := w.sm.ready(); err != nil {
		return err
	}
	if w.sm.state == StateOperationStreamRequested {
		return w.sm.fail(newError(ReasonInvalidStateTransition,
			"cannot signal an in-stream error while an operation body is streaming"))
	}
	return w.sm.fail(newError(ReasonInStreamError,
		"batch payloads cannot represent in-stream errors"))
}

// Flush pushes buffered payload bytes down to the transport. A flush
// failure propagates unchanged and does not fault the writer.
func (w *MultipartWriter) Flush(ctx context.Context) error {
	return w.flushSink(ctx)
}

func (w *MultipartWriter) flushSink(ctx context.Context) error {
	if w.mode == ModeSuspending {
		return w.sink.FlushContext(ctx)
	}
	return w.sink.Flush()
}

// writeOperationStart writes the opening boundary for the active scope and
// the fixed operation part headers.
func (w *MultipartWriter) writeOperationStart() error {
	if w.changesetBoundary != "" {
		if err := w.writeStartBoundary(w.changesetBoundary, !w.changesetStartWritten); err != nil {
			return err
		}
		w.changesetStartWritten = true
	} else {
		if err := w.writeStartBoundary(w.batchBoundary, !w.batchStartWritten); err != nil {
			return err
		}
		w.batchStartWritten = true
	}
	if _, err := w.sink.WriteString(operationPartHeaders); err != nil {
		return fmt.Errorf("write operation part headers: %w", err)
	}
	return nil
}

// writeStartBoundary writes an opening boundary line. Every boundary line
// after the first in its scope is preceded by a line terminator.
func (w *MultipartWriter) writeStartBoundary(boundary string, first bool) error {
	line := "--" + boundary + crlf
	if !first {
		line = crlf + line
	}
	if _, err := w.sink.WriteString(line); err != nil {
		return fmt.Errorf("write start boundary: %w", err)
	}
	return nil
}

// writeEndBoundary writes a closing boundary line. When the scope never got
// its opening boundary the close is emitted bare, without a preceding line
// terminator, matching what legacy readers expect for empty scopes.
func (w *MultipartWriter) writeEndBoundary(boundary string, missingStart bool) error {
	line := "--" + boundary + "--" + crlf
	if !missingStart {
		line = crlf + line
	}
	if _, err := w.sink.WriteString(line); err != nil {
		return fmt.Errorf("write end boundary: %w", err)
	}
	return nil
}

func (w *MultipartWriter) setState(target State) {
	w.logger.Debug("batch writer state transition",
		log.String("from", w.sm.state.String()),
		log.String("to", target.String()))
	w.sm.transition(target)
}

// isReadOnlyMethod reports whether method is safe/idempotent-read and thus
// meaningless inside an atomic changeset.
func isReadOnlyMethod(method string) bool {
	switch strings.ToUpper(method) {
	case "GET", "HEAD":
		return true
	}
	return false
}
