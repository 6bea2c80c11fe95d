// Package batch implements the write side of the batching protocol: bundling
// multiple HTTP-style request/response operations into a single payload, with
// optional atomic changesets and cross-operation Content-ID referencing.
//
// The package provides two encodings behind one Writer contract: the
// multipart/mixed encoding (MultipartWriter) and the JSON encoding
// (JSONWriter). Both share the same state machine and sequencing rules; only
// the bytes they emit differ.
//
// # Usage
//
// Build a payload by driving the writer through its states:
//
//	w := batch.NewMultipartWriter(s)
//	w.StartBatch()
//	w.StartChangeset()
//	msg, _ := w.CreateOperationRequestMessage("POST", "Customers", "1", batch.AbsoluteURI)
//	msg.SetHeader("Content-Type", "application/json")
//	body, _ := w.NotifyContentStreamRequested(ctx)
//	body.Write(payload)
//	w.NotifyContentStreamDisposed()
//	w.EndChangeset()
//	w.EndBatch()
//	w.Flush(ctx)
//
// # Sequencing
//
// The writer is single-use and strictly sequential. Calls that violate the
// state machine fail with an *Error carrying a Reason code and move the
// writer into its terminal error state; every later call fails identically.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package batch
