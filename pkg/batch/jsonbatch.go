package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chrisbigart/odata.net/pkg/log"
	"github.com/chrisbigart/odata.net/pkg/sink"
)

// JSONWriter emits a batch payload in the JSON encoding: one top-level
// "requests" (or "responses") array whose entries carry id, atomicityGroup,
// method, url, headers, status and body members. It shares the multipart
// writer's state machine and sequencing rules.
//
// Unlike the multipart encoding, an entry cannot be emitted until its body
// is complete, so NotifyContentStreamRequested hands out an in-memory body
// buffer instead of detaching the sink; the entry is serialized at the next
// flush point. A body that is valid JSON is embedded verbatim; anything
// else is embedded as a JSON string.
type JSONWriter struct {
	sink     sink.Sink
	sm       stateMachine
	refs     *ContentIDTable
	resolver URIResolver
	mode     Mode
	logger   log.Logger
	response bool

	started    bool
	wroteEntry bool

	// groupID is non-empty exactly while a changeset is open.
	groupID  string
	groupSeq int
	idSeq    int

	entry           *jsonEntry
	currentRequest  *RequestMessage
	currentResponse *ResponseMessage
}

// jsonEntry is the pending, not-yet-serialized operation entry. It plays the
// role the pending preamble buffer plays for the multipart encoding.
type jsonEntry struct {
	request  *RequestMessage
	response *ResponseMessage
	id       string
	group    string

	// contentID and resolvedURI feed the reference table when the entry is
	// serialized; empty for responses.
	contentID   string
	resolvedURI string

	body bytes.Buffer
}

var _ Writer = (*JSONWriter)(nil)

// NewJSONWriter creates a single-use JSON batch writer bound to s.
func NewJSONWriter(s sink.Sink, opts ...Option) *JSONWriter {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &JSONWriter{
		sink:     s,
		refs:     NewContentIDTable(),
		resolver: o.resolver,
		mode:     o.mode,
		logger:   o.logger,
		response: o.response,
	}
}

// State returns the writer's current state.
func (w *JSONWriter) State() State {
	return w.sm.state
}

// References returns the batch-scoped Content-ID table.
func (w *JSONWriter) References() *ContentIDTable {
	return w.refs
}

// StartBatch opens the payload. The envelope is written lazily so an
// aborted batch emits nothing.
func (w *JSONWriter) StartBatch() error {
	if err := w.sm.ready(); err != nil {
		return err
	}
	if err := w.sm.validate(StateBatchStarted); err != nil {
		return err
	}
	w.setState(StateBatchStarted)
	return nil
}

// StartChangeset opens an atomicity group. Entries created until
// EndChangeset carry the group's id.
func (w *JSONWriter) StartChangeset() error {
	if err := w.sm.ready(); err != nil {
		return err
	}
	if w.groupID != "" {
		return w.sm.fail(newError(ReasonActiveChangeset,
			"cannot start a changeset while atomicity group %q is open", w.groupID))
	}
	if err := w.sm.validate(StateChangesetStarted); err != nil {
		return err
	}
	if err := w.flushEntry(); err != nil {
		return err
	}
	w.groupSeq++
	w.groupID = "g" + strconv.Itoa(w.groupSeq)
	w.setState(StateChangesetStarted)
	w.logger.Debug("changeset started", log.String("atomicity_group", w.groupID))
	return nil
}

// EndChangeset closes the open atomicity group.
func (w *JSONWriter) EndChangeset() error {
	if err := w.sm.ready(); err != nil {
		return err
	}
	if w.groupID == "" {
		return w.sm.fail(newError(ReasonMissingActiveChangeset,
			"cannot end a changeset when none is open"))
	}
	if err := w.sm.validate(StateChangesetCompleted); err != nil {
		return err
	}
	if err := w.flushEntry(); err != nil {
		return err
	}
	group := w.groupID
	w.groupID = ""
	w.setState(StateChangesetCompleted)
	w.logger.Debug("changeset completed", log.String("atomicity_group", group))
	return nil
}

// EndBatch closes the payload. An empty batch emits the bare envelope.
func (w *JSONWriter) EndBatch() error {
	if err := w.sm.ready(); err != nil {
		return err
	}
	if w.groupID != "" {
		return w.sm.fail(newError(ReasonActiveChangesetAtBatchEnd,
			"cannot end the batch while atomicity group %q is open", w.groupID))
	}
	if err := w.sm.validate(StateBatchCompleted); err != nil {
		return err
	}
	if err := w.flushEntry(); err != nil {
		return err
	}
	if err := w.ensureEnvelope(); err != nil {
		return err
	}
	if _, err := w.sink.WriteString("]}"); err != nil {
		return fmt.Errorf("write batch envelope end: %w", err)
	}
	w.setState(StateBatchCompleted)
	return nil
}

// CreateOperationRequestMessage adds a request entry. Entries inside an
// atomicity group must carry a Content-ID; batch-level entries without one
// get a synthesized id, since every JSON entry requires an id.
func (w *JSONWriter) CreateOperationRequestMessage(method, uri, contentID string, option PayloadURIOption) (*RequestMessage, error) {
	if err := w.sm.ready(); err != nil {
		return nil, err
	}
	if err := w.sm.validate(StateOperationCreated); err != nil {
		return nil, err
	}
	if err := w.flushEntry(); err != nil {
		return nil, err
	}
	w.currentRequest = nil
	w.currentResponse = nil

	if w.groupID != "" {
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

	id := contentID
	if id == "" {
		w.idSeq++
		id = "r" + strconv.Itoa(w.idSeq)
	}

	msg := newRequestMessage(method, resolved, contentID)
	w.currentRequest = msg
	w.entry = &jsonEntry{
		request:     msg,
		id:          id,
		group:       w.groupID,
		contentID:   contentID,
		resolvedURI: resolved,
	}
	w.setState(StateOperationCreated)
	w.logger.Debug("request operation created",
		log.String("method", method),
		log.String("uri", resolved),
		log.String("id", id))
	return msg, nil
}

// CreateOperationResponseMessage adds a response entry.
func (w *JSONWriter) CreateOperationResponseMessage(contentID string) (*ResponseMessage, error) {
	if err := w.sm.ready(); err != nil {
		return nil, err
	}
	if err := w.sm.validate(StateOperationCreated); err != nil {
		return nil, err
	}
	if err := w.flushEntry(); err != nil {
		return nil, err
	}
	w.currentRequest = nil
	w.currentResponse = nil

	msg := newResponseMessage(contentID)
	w.currentResponse = msg
	w.entry = &jsonEntry{
		response: msg,
		id:       contentID,
		group:    w.groupID,
	}
	w.setState(StateOperationCreated)
	w.logger.Debug("response operation created", log.String("content_id", contentID))
	return msg, nil
}

// NotifyContentStreamRequested returns the body buffer for the current
// entry. The sink is flushed per the writer's mode so transport pressure is
// observed at the same points as the multipart encoding.
func (w *JSONWriter) NotifyContentStreamRequested(ctx context.Context) (io.Writer, error) {
	if err := w.sm.ready(); err != nil {
		return nil, err
	}
	if err := w.sm.validate(StateOperationStreamRequested); err != nil {
		return nil, err
	}
	if err := w.flushSink(ctx); err != nil {
		return nil, err
	}
	w.setState(StateOperationStreamRequested)
	return &w.entry.body, nil
}

// NotifyContentStreamDisposed seals the current entry's body. The entry is
// serialized at the next flush point.
func (w *JSONWriter) NotifyContentStreamDisposed() error {
	if err := w.sm.ready(); err != nil {
		return err
	}
	if err := w.sm.validate(StateOperationStreamDisposed); err != nil {
		return err
	}
	w.currentRequest = nil
	w.currentResponse = nil
	w.setState(StateOperationStreamDisposed)
	return nil
}

// NotifyInStreamError always fails; batch payloads have no in-payload error
// representation in either encoding.
func (w *JSONWriter) NotifyInStreamError() error {
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

// Flush pushes buffered payload bytes down to the transport.
func (w *JSONWriter) Flush(ctx context.Context) error {
	return w.flushSink(ctx)
}

func (w *JSONWriter) flushSink(ctx context.Context) error {
	if w.mode == ModeSuspending {
		return w.sink.FlushContext(ctx)
	}
	return w.sink.Flush()
}

func (w *JSONWriter) ensureEnvelope() error {
	if w.started {
		return nil
	}
	name := "requests"
	if w.response {
		name = "responses"
	}
	if _, err := w.sink.WriteString(`{"` + name + `":[`); err != nil {
		return fmt.Errorf("write batch envelope start: %w", err)
	}
	w.started = true
	return nil
}

// flushEntry serializes the pending entry and registers its Content-ID,
// mirroring the multipart writer's deferred registration: an entry can
// never resolve a reference to itself.
func (w *JSONWriter) flushEntry() error {
	if w.entry == nil {
		return nil
	}
	if err := w.ensureEnvelope(); err != nil {
		return err
	}
	if w.wroteEntry {
		if _, err := w.sink.WriteString(","); err != nil {
			return fmt.Errorf("write entry separator: %w", err)
		}
	}
	if _, err := w.sink.WriteString(w.entry.encode()); err != nil {
		return fmt.Errorf("write batch entry: %w", err)
	}
	if w.entry.contentID != "" {
		w.refs.Register(w.entry.contentID, w.entry.resolvedURI)
	}
	switch {
	case w.entry.request != nil && w.entry.request.onFlushed != nil:
		w.entry.request.onFlushed()
	case w.entry.response != nil && w.entry.response.onFlushed != nil:
		w.entry.response.onFlushed()
	}
	w.wroteEntry = true
	w.entry = nil
	return nil
}

// encode renders the entry with a fixed member order: id, atomicityGroup,
// method, url, status, headers, body.
func (e *jsonEntry) encode() string {
	var b strings.Builder
	b.WriteString("{")
	members := 0
	member := func(name, rawValue string) {
		if members > 0 {
			b.WriteString(",")
		}
		b.WriteString(jsonString(name))
		b.WriteString(":")
		b.WriteString(rawValue)
		members++
	}

	if e.id != "" {
		member("id", jsonString(e.id))
	}
	if e.group != "" {
		member("atomicityGroup", jsonString(e.group))
	}

	var headers *Headers
	switch {
	case e.request != nil:
		member("method", jsonString(e.request.Method()))
		member("url", jsonString(e.request.URL()))
		headers = e.request.Headers()
	case e.response != nil:
		member("status", strconv.Itoa(e.response.StatusCode()))
		headers = e.response.Headers()
	}

	if headers != nil && headers.Len() > 0 {
		var hb strings.Builder
		hb.WriteString("{")
		first := true
		headers.Each(func(name, value string) {
			if !first {
				hb.WriteString(",")
			}
			hb.WriteString(jsonString(strings.ToLower(name)))
			hb.WriteString(":")
			hb.WriteString(jsonString(value))
			first = false
		})
		hb.WriteString("}")
		member("headers", hb.String())
	}

	if body := e.body.Bytes(); len(body) > 0 {
		if json.Valid(body) {
			member("body", string(body))
		} else {
			member("body", jsonString(string(body)))
		}
	}

	b.WriteString("}")
	return b.String()
}

// jsonString renders s as a JSON string literal.
func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (w *JSONWriter) setState(target State) {
	w.logger.Debug("batch writer state transition",
		log.String("from", w.sm.state.String()),
		log.String("to", target.String()))
	w.sm.transition(target)
}
