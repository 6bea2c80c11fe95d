package batch

import (
	"context"
	"io"

	"github.com/chrisbigart/odata.net/pkg/log"
)

// Writer is the state-machine contract a batch payload encoding implements.
// MultipartWriter and JSONWriter both satisfy it; the sequencing rules and
// error reasons are identical across encodings.
//
// A Writer is single-use, bound to one sink, and not safe for concurrent
// use.
type Writer interface {
	// StartBatch opens the payload. Legal only as the first call.
	StartBatch() error

	// StartChangeset opens an atomic group of operations. Fails if one is
	// already open.
	StartChangeset() error

	// EndChangeset closes the open changeset. Fails if none is open.
	EndChangeset() error

	// EndBatch closes the payload. Fails while a changeset is open.
	EndBatch() error

	// CreateOperationRequestMessage adds a request operation. Inside a
	// changeset the method must not be read-only and contentID must be
	// non-empty; outside one contentID is optional.
	CreateOperationRequestMessage(method, uri, contentID string, option PayloadURIOption) (*RequestMessage, error)

	// CreateOperationResponseMessage adds a response operation.
	CreateOperationResponseMessage(contentID string) (*ResponseMessage, error)

	// NotifyContentStreamRequested flushes the current operation's preamble
	// and the sink, then hands the caller a writer for the operation body.
	// The sink belongs to the caller until NotifyContentStreamDisposed.
	NotifyContentStreamRequested(ctx context.Context) (io.Writer, error)

	// NotifyContentStreamDisposed returns body-stream ownership to the
	// writer.
	NotifyContentStreamDisposed() error

	// NotifyInStreamError signals a mid-payload failure. It always fails
	// and leaves the writer in its terminal error state; this protocol has
	// no in-payload error representation.
	NotifyInStreamError() error

	// Flush pushes buffered payload bytes to the transport.
	Flush(ctx context.Context) error

	// State returns the writer's current state.
	State() State
}

// Mode selects how flush-to-transport behaves. State transitions and
// serialization never suspend in either mode.
type Mode int

const (
	// ModeBlocking flushes with the sink's blocking Flush.
	ModeBlocking Mode = iota

	// ModeSuspending flushes with the sink's FlushContext, which may
	// suspend on the provided context.
	ModeSuspending
)

// Option configures optional writer behavior.
type Option func(*options)

type options struct {
	logger   log.Logger
	mode     Mode
	resolver URIResolver
	response bool
}

func defaultOptions() options {
	resolver, _ := NewBaseResolver("")
	return options{
		logger:   log.NewNoopLogger(),
		mode:     ModeBlocking,
		resolver: resolver,
	}
}

// WithLogger sets a logger for writer diagnostics.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMode selects the flush mode. The default is ModeBlocking.
func WithMode(mode Mode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// WithURIResolver sets a custom URI-resolution hook for operation URIs.
func WithURIResolver(resolver URIResolver) Option {
	return func(o *options) {
		o.resolver = resolver
	}
}

// WithBaseURI resolves relative operation URIs against base using the
// default resolver. An unparsable base is ignored in favor of pass-through
// resolution; use WithURIResolver to surface parse errors eagerly.
func WithBaseURI(base string) Option {
	return func(o *options) {
		if resolver, err := NewBaseResolver(base); err == nil {
			o.resolver = resolver
		}
	}
}

// ForResponsePayload marks the writer as producing the response side of a
// batch: response-flavored boundary tokens and status-line operations.
func ForResponsePayload() Option {
	return func(o *options) {
		o.response = true
	}
}
