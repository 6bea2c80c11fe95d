package batch

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisbigart/odata.net/pkg/sink"
)

// newTestWriter returns a multipart writer with deterministic boundary ids
// X, Y, Z, ... so payloads can be compared byte for byte.
func newTestWriter(buf *bytes.Buffer, opts ...Option) *MultipartWriter {
	w := NewMultipartWriter(sink.NewBuffered(buf), opts...)
	ids := []string{"X", "Y", "Z", "W"}
	n := 0
	w.alloc.newID = func() string {
		id := ids[n%len(ids)]
		n++
		return id
	}
	w.batchBoundary = w.alloc.batch()
	return w
}

func mustFlush(t *testing.T, w *MultipartWriter) {
	t.Helper()
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func TestSingleRequestPayload(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	if err := w.StartBatch(); err != nil {
		t.Fatalf("start batch: %v", err)
	}
	msg, err := w.CreateOperationRequestMessage("POST", "Customers", "1", AbsoluteURI)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	msg.SetHeader("Content-Type", "application/json")

	body, err := w.NotifyContentStreamRequested(context.Background())
	if err != nil {
		t.Fatalf("request stream: %v", err)
	}
	if _, err := body.Write([]byte("{}")); err != nil {
		t.Fatalf("write body: %v", err)
	}
	if err := w.NotifyContentStreamDisposed(); err != nil {
		t.Fatalf("dispose stream: %v", err)
	}
	if err := w.EndBatch(); err != nil {
		t.Fatalf("end batch: %v", err)
	}
	mustFlush(t, w)

	want := "--batch_X\r\n" +
		"Content-Type: application/http\r\n" +
		"Content-Transfer-Encoding: binary\r\n" +
		"POST Customers HTTP/1.1\r\n" +
		"Content-Type: application/json\r\n" +
		"Content-ID: 1\r\n" +
		"\r\n" +
		"{}" +
		"\r\n--batch_X--\r\n" +
		"\r\n"
	if got := buf.String(); got != want {
		t.Fatalf("payload mismatch:\ngot  %q\nwant %q", got, want)
	}
}

func TestEmptyChangesetEmitsOnlyClosingBoundary(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	require.NoError(t, w.StartBatch())
	require.NoError(t, w.StartChangeset())
	require.NoError(t, w.EndChangeset())
	require.NoError(t, w.EndBatch())
	mustFlush(t, w)

	want := "--batch_X\r\n" +
		"Content-Type: multipart/mixed; boundary=changeset_Y\r\n" +
		"\r\n" +
		"--changeset_Y--\r\n" +
		"\r\n--batch_X--\r\n" +
		"\r\n"
	require.Equal(t, want, buf.String())
	assert.NotContains(t, buf.String(), "--changeset_Y\r\n", "empty changeset must not get an opening boundary")
}

func TestEmptyBatchEmitsClosingBoundary(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	require.NoError(t, w.StartBatch())
	require.NoError(t, w.EndBatch())
	mustFlush(t, w)

	require.Equal(t, "--batch_X--\r\n\r\n", buf.String())
}

func TestChangesetRequestPayload(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)
	ctx := context.Background()

	require.NoError(t, w.StartBatch())
	require.NoError(t, w.StartChangeset())

	msg, err := w.CreateOperationRequestMessage("PATCH", "Customers('A')", "1", AbsoluteURI)
	require.NoError(t, err)
	msg.SetHeader("Content-Type", "application/json")

	body, err := w.NotifyContentStreamRequested(ctx)
	require.NoError(t, err)
	_, err = body.Write([]byte(`{"City":"Rome"}`))
	require.NoError(t, err)
	require.NoError(t, w.NotifyContentStreamDisposed())

	require.NoError(t, w.EndChangeset())
	require.NoError(t, w.EndBatch())
	mustFlush(t, w)

	want := "--batch_X\r\n" +
		"Content-Type: multipart/mixed; boundary=changeset_Y\r\n" +
		"\r\n" +
		"--changeset_Y\r\n" +
		"Content-Type: application/http\r\n" +
		"Content-Transfer-Encoding: binary\r\n" +
		"PATCH Customers('A') HTTP/1.1\r\n" +
		"Content-Type: application/json\r\n" +
		"Content-ID: 1\r\n" +
		"\r\n" +
		`{"City":"Rome"}` +
		"\r\n--changeset_Y--\r\n" +
		"\r\n--batch_X--\r\n" +
		"\r\n"
	require.Equal(t, want, buf.String())
}

func TestHeadersEmittedInInsertionOrder(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	require.NoError(t, w.StartBatch())
	msg, err := w.CreateOperationRequestMessage("POST", "Items", "", AbsoluteURI)
	require.NoError(t, err)
	msg.SetHeader("B-Header", "2")
	msg.SetHeader("A-Header", "1")
	msg.SetHeader("C-Header", "3")
	msg.SetHeader("b-header", "changed") // replaces in place, keeps position
	require.NoError(t, w.EndBatch())
	mustFlush(t, w)

	got := buf.String()
	want := "POST Items HTTP/1.1\r\n" +
		"B-Header: changed\r\n" +
		"A-Header: 1\r\n" +
		"C-Header: 3\r\n" +
		"\r\n"
	if !strings.Contains(got, want) {
		t.Fatalf("header block not found in insertion order:\n%s", got)
	}
	if strings.Count(got, "B-Header") != 1 {
		t.Fatalf("replaced header emitted more than once:\n%s", got)
	}
}

func TestContentIDRegistrationIsDeferred(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf, WithBaseURI("https://host/svc"))

	require.NoError(t, w.StartBatch())
	require.NoError(t, w.StartChangeset())

	_, err := w.CreateOperationRequestMessage("POST", "Customers", "1", AbsoluteURI)
	require.NoError(t, err)
	require.False(t, w.References().Contains("1"), "operation must not see its own id")

	msg, err := w.CreateOperationRequestMessage("PATCH", "$1/Orders", "2", AbsoluteURI)
	require.NoError(t, err)
	require.Equal(t, "https://host/svc/Customers/Orders", msg.URL())
	require.True(t, w.References().Contains("1"))

	require.NoError(t, w.EndChangeset())
	require.NoError(t, w.EndBatch())
}

func TestSelfReferenceFails(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	require.NoError(t, w.StartBatch())
	require.NoError(t, w.StartChangeset())

	_, err := w.CreateOperationRequestMessage("POST", "$1", "1", AbsoluteURI)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidBatchOperation)
	var oerr *Error
	require.ErrorAs(t, err, &oerr)
	require.Equal(t, ReasonMissingContentIDReference, oerr.Reason)
}

func TestSequencingViolations(t *testing.T) {
	tests := []struct {
		name   string
		drive  func(w *MultipartWriter) error
		reason Reason
	}{
		{
			name: "get inside changeset",
			drive: func(w *MultipartWriter) error {
				_ = w.StartBatch()
				_ = w.StartChangeset()
				_, err := w.CreateOperationRequestMessage("GET", "Customers", "1", AbsoluteURI)
				return err
			},
			reason: ReasonUnsafeMethodInChangeset,
		},
		{
			name: "missing content id inside changeset",
			drive: func(w *MultipartWriter) error {
				_ = w.StartBatch()
				_ = w.StartChangeset()
				_, err := w.CreateOperationRequestMessage("POST", "Customers", "", AbsoluteURI)
				return err
			},
			reason: ReasonMissingContentID,
		},
		{
			name: "nested changeset",
			drive: func(w *MultipartWriter) error {
				_ = w.StartBatch()
				_ = w.StartChangeset()
				return w.StartChangeset()
			},
			reason: ReasonActiveChangeset,
		},
		{
			name: "end changeset with none open",
			drive: func(w *MultipartWriter) error {
				_ = w.StartBatch()
				return w.EndChangeset()
			},
			reason: ReasonMissingActiveChangeset,
		},
		{
			name: "end batch with open changeset",
			drive: func(w *MultipartWriter) error {
				_ = w.StartBatch()
				_ = w.StartChangeset()
				return w.EndBatch()
			},
			reason: ReasonActiveChangesetAtBatchEnd,
		},
		{
			name: "start batch twice",
			drive: func(w *MultipartWriter) error {
				_ = w.StartBatch()
				return w.StartBatch()
			},
			reason: ReasonInvalidStateTransition,
		},
		{
			name: "operation before start batch",
			drive: func(w *MultipartWriter) error {
				_, err := w.CreateOperationRequestMessage("POST", "Customers", "", AbsoluteURI)
				return err
			},
			reason: ReasonInvalidStateTransition,
		},
		{
			name: "in-stream error",
			drive: func(w *MultipartWriter) error {
				_ = w.StartBatch()
				return w.NotifyInStreamError()
			},
			reason: ReasonInStreamError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := newTestWriter(&buf)

			err := tt.drive(w)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, ErrInvalidBatchOperation) {
				t.Fatalf("error %v does not match ErrInvalidBatchOperation", err)
			}
			var oerr *Error
			if !errors.As(err, &oerr) {
				t.Fatalf("error %v is not a *Error", err)
			}
			if oerr.Reason != tt.reason {
				t.Fatalf("expected reason %v, got %v", tt.reason, oerr.Reason)
			}
			if w.State() != StateError {
				t.Fatalf("expected writer in error state, got %v", w.State())
			}
		})
	}
}

func TestErrorStateIsAbsorbing(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	require.NoError(t, w.StartBatch())
	first := w.StartBatch()
	require.Error(t, first)

	// Every later call fails with the identical error.
	require.Equal(t, first, w.StartChangeset())
	require.Equal(t, first, w.EndChangeset())
	require.Equal(t, first, w.EndBatch())
	_, err := w.CreateOperationRequestMessage("POST", "Customers", "", AbsoluteURI)
	require.Equal(t, first, err)
	_, err = w.CreateOperationResponseMessage("")
	require.Equal(t, first, err)
	require.Equal(t, first, w.NotifyInStreamError())
}

func TestGetAllowedOutsideChangeset(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	require.NoError(t, w.StartBatch())
	_, err := w.CreateOperationRequestMessage("GET", "Customers", "", AbsoluteURI)
	require.NoError(t, err)
	require.NoError(t, w.EndBatch())
}

func TestResponsePayload(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf, ForResponsePayload())
	ctx := context.Background()

	require.NoError(t, w.StartBatch())
	msg, err := w.CreateOperationResponseMessage("1")
	require.NoError(t, err)
	msg.SetStatusCode(201)
	msg.SetHeader("Content-Type", "application/json")

	body, err := w.NotifyContentStreamRequested(ctx)
	require.NoError(t, err)
	_, err = body.Write([]byte("{}"))
	require.NoError(t, err)
	require.NoError(t, w.NotifyContentStreamDisposed())
	require.NoError(t, w.EndBatch())
	mustFlush(t, w)

	want := "--batchresponse_X\r\n" +
		"Content-Type: application/http\r\n" +
		"Content-Transfer-Encoding: binary\r\n" +
		"HTTP/1.1 201 Created\r\n" +
		"Content-Type: application/json\r\n" +
		"Content-ID: 1\r\n" +
		"\r\n" +
		"{}" +
		"\r\n--batchresponse_X--\r\n" +
		"\r\n"
	require.Equal(t, want, buf.String())
}

func TestBoundaryTokensAreUnique(t *testing.T) {
	var buf bytes.Buffer
	w := NewMultipartWriter(sink.NewBuffered(&buf))

	require.NoError(t, w.StartBatch())
	seen := map[string]bool{w.BatchBoundary(): true}
	for i := 0; i < 3; i++ {
		require.NoError(t, w.StartChangeset())
		boundary := w.changesetBoundary
		require.False(t, seen[boundary], "boundary %q reused", boundary)
		seen[boundary] = true
		_, err := w.CreateOperationRequestMessage("POST", "Items", strconv.Itoa(i+1), AbsoluteURI)
		require.NoError(t, err)
		require.NoError(t, w.EndChangeset())
	}
	require.NoError(t, w.EndBatch())
}

func TestMultipleChangesets(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	require.NoError(t, w.StartBatch())
	require.NoError(t, w.StartChangeset())
	_, err := w.CreateOperationRequestMessage("POST", "A", "1", AbsoluteURI)
	require.NoError(t, err)
	require.NoError(t, w.EndChangeset())
	require.NoError(t, w.StartChangeset())
	_, err = w.CreateOperationRequestMessage("POST", "B", "2", AbsoluteURI)
	require.NoError(t, err)
	require.NoError(t, w.EndChangeset())
	require.NoError(t, w.EndBatch())
	mustFlush(t, w)

	got := buf.String()
	// Each changeset part opens with a batch boundary line and its own
	// nested-boundary preamble; one closing batch boundary ends the payload.
	require.Equal(t, 2, strings.Count(got, "--batch_X\r\n"))
	require.Equal(t, 1, strings.Count(got, "--batch_X--\r\n"))
	require.Contains(t, got, "boundary=changeset_Y")
	require.Contains(t, got, "boundary=changeset_Z")
	require.Equal(t, 1, strings.Count(got, "--changeset_Y--\r\n"))
	require.Equal(t, 1, strings.Count(got, "--changeset_Z--\r\n"))
}

func TestSuspendingFlushHonorsContext(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf, WithMode(ModeSuspending))

	require.NoError(t, w.StartBatch())
	_, err := w.CreateOperationRequestMessage("POST", "Customers", "", AbsoluteURI)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.NotifyContentStreamRequested(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// A failed transport flush does not fault the writer.
	require.Equal(t, StateOperationCreated, w.State())
	_, err = w.NotifyContentStreamRequested(context.Background())
	require.NoError(t, err)
}

func TestInStreamErrorDuringBodyStreaming(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	require.NoError(t, w.StartBatch())
	_, err := w.CreateOperationRequestMessage("POST", "Customers", "", AbsoluteURI)
	require.NoError(t, err)
	_, err = w.NotifyContentStreamRequested(context.Background())
	require.NoError(t, err)

	err = w.NotifyInStreamError()
	require.Error(t, err)
	var oerr *Error
	require.ErrorAs(t, err, &oerr)
	require.Equal(t, ReasonInvalidStateTransition, oerr.Reason)
}
