// Package odata provides writers for batched data-service payloads.
//
// Example usage:
//
//	var buf bytes.Buffer
//	w := odata.NewBatchWriter(sink.NewBuffered(&buf))
//	if err := w.StartBatch(); err != nil {
//	    log.Fatal(err)
//	}
//	msg, err := w.CreateOperationRequestMessage("POST", "Customers", "1", odata.AbsoluteURI)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	msg.SetHeader("Content-Type", "application/json")
//	if err := w.EndBatch(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := w.Flush(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
package odata

import (
	"github.com/chrisbigart/odata.net/pkg/batch"
	"github.com/chrisbigart/odata.net/pkg/sink"
)

// Re-export the batch writer surface for convenient access.
// Users can also import sub-packages directly for selective import.
type (
	// BatchWriter is the state-machine contract from pkg/batch.
	BatchWriter = batch.Writer

	// MultipartBatchWriter is the multipart/mixed writer from pkg/batch.
	MultipartBatchWriter = batch.MultipartWriter

	// JSONBatchWriter is the JSON writer from pkg/batch.
	JSONBatchWriter = batch.JSONWriter

	// RequestMessage is an in-flight batched request operation.
	RequestMessage = batch.RequestMessage

	// ResponseMessage is an in-flight batched response operation.
	ResponseMessage = batch.ResponseMessage

	// Sink is the ordered raw-output target from pkg/sink.
	Sink = sink.Sink
)

// Payload URI options for CreateOperationRequestMessage.
const (
	AbsoluteURI                = batch.AbsoluteURI
	AbsoluteURIUsingHostHeader = batch.AbsoluteURIUsingHostHeader
	RelativeURI                = batch.RelativeURI
)

// ErrInvalidBatchOperation matches every batch sequencing failure via
// errors.Is.
var ErrInvalidBatchOperation = batch.ErrInvalidBatchOperation

// NewBatchWriter creates a multipart/mixed batch writer bound to s.
func NewBatchWriter(s sink.Sink, opts ...batch.Option) *batch.MultipartWriter {
	return batch.NewMultipartWriter(s, opts...)
}

// NewJSONBatchWriter creates a JSON batch writer bound to s.
func NewJSONBatchWriter(s sink.Sink, opts ...batch.Option) *batch.JSONWriter {
	return batch.NewJSONWriter(s, opts...)
}
