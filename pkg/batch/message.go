package batch

import (
	"fmt"
	"net/http"

	"github.com/chrisbigart/odata.net/pkg/sink"
)

const (
	crlf = "\r\n"

	// httpVersion is the version written in request and status lines.
	httpVersion = "1.1"

	contentIDHeaderName = "Content-ID"
)

// RequestMessage is an in-flight batched request operation. Method, URI and
// Content-ID are fixed at creation; headers stay mutable until the preamble
// is flushed, which happens at the next writer call.
type RequestMessage struct {
	method    string
	uri       string
	contentID string
	headers   *Headers

	// onFlushed fires once the preamble is on the wire.
	onFlushed func()
}

func newRequestMessage(method, uri, contentID string) *RequestMessage {
	return &RequestMessage{
		method:    method,
		uri:       uri,
		contentID: contentID,
		headers:   NewHeaders(),
	}
}

// OnFlushed registers fn to fire once the preamble is on the wire.
func (m *RequestMessage) OnFlushed(fn func()) { m.onFlushed = fn }

// Method returns the HTTP method.
func (m *RequestMessage) Method() string { return m.method }

// URL returns the resolved operation URI as written on the wire.
func (m *RequestMessage) URL() string { return m.uri }

// ContentID returns the operation's Content-ID, empty if none.
func (m *RequestMessage) ContentID() string { return m.contentID }

// Headers returns the mutable header mapping.
func (m *RequestMessage) Headers() *Headers { return m.headers }

// SetHeader sets a header, preserving insertion order.
func (m *RequestMessage) SetHeader(name, value string) {
	m.headers.Set(name, value)
}

// writePreamble emits the request line, headers in insertion order, the
// Content-ID header when present, and the blank-line terminator.
func (m *RequestMessage) writePreamble(s sink.Sink) error {
	if _, err := s.WriteString(m.method + " " + m.uri + " HTTP/" + httpVersion + crlf); err != nil {
		return fmt.Errorf("write request line: %w", err)
	}
	return writeHeaderBlock(s, m.headers, m.contentID)
}

// ResponseMessage is an in-flight batched response operation. The status
// code and headers stay mutable until the preamble is flushed.
type ResponseMessage struct {
	statusCode int
	contentID  string
	headers    *Headers

	onFlushed func()
}

func newResponseMessage(contentID string) *ResponseMessage {
	return &ResponseMessage{
		statusCode: http.StatusOK,
		contentID:  contentID,
		headers:    NewHeaders(),
	}
}

// OnFlushed registers fn to fire once the preamble is on the wire.
func (m *ResponseMessage) OnFlushed(fn func()) { m.onFlushed = fn }

// SetStatusCode sets the HTTP status code written in the status line.
func (m *ResponseMessage) SetStatusCode(code int) { m.statusCode = code }

// StatusCode returns the HTTP status code.
func (m *ResponseMessage) StatusCode() int { return m.statusCode }

// ContentID returns the operation's Content-ID, empty if none.
func (m *ResponseMessage) ContentID() string { return m.contentID }

// Headers returns the mutable header mapping.
func (m *ResponseMessage) Headers() *Headers { return m.headers }

// SetHeader sets a header, preserving insertion order.
func (m *ResponseMessage) SetHeader(name, value string) {
	m.headers.Set(name, value)
}

// writePreamble emits the status line, headers, Content-ID when present, and
// the blank-line terminator.
func (m *ResponseMessage) writePreamble(s sink.Sink) error {
	reason := http.StatusText(m.statusCode)
	if _, err := s.WriteString(fmt.Sprintf("HTTP/%s %d %s%s", httpVersion, m.statusCode, reason, crlf)); err != nil {
		return fmt.Errorf("write status line: %w", err)
	}
	return writeHeaderBlock(s, m.headers, m.contentID)
}

// writeHeaderBlock emits caller headers in insertion order, the Content-ID
// header when carried, and exactly one blank line.
func writeHeaderBlock(s sink.Sink, h *Headers, contentID string) error {
	var werr error
	h.Each(func(name, value string) {
		if werr != nil {
			return
		}
		_, werr = s.WriteString(name + ": " + value + crlf)
	})
	if werr != nil {
		return fmt.Errorf("write header: %w", werr)
	}
	if contentID != "" {
		if _, err := s.WriteString(contentIDHeaderName + ": " + contentID + crlf); err != nil {
			return fmt.Errorf("write content id: %w", err)
		}
	}
	if _, err := s.WriteString(crlf); err != nil {
		return fmt.Errorf("write preamble terminator: %w", err)
	}
	return nil
}
