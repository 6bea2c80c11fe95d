// Package sender submits finished batch payloads to a data service over
// HTTP.
//
// A payload produced by the batch writers is posted to the service's $batch
// endpoint with the multipart Content-Type carrying the payload's boundary
// token. The package is transport glue only: it never inspects or rewrites
// the payload bytes.
//
// # Usage
//
// Submit a payload built into a buffer:
//
//	s := sender.NewHTTPSender(http.DefaultClient, logger)
//	body, err := s.Submit(ctx, &buf, sender.Metadata{
//	    ServiceURL: "https://host/service",
//	    Boundary:   w.BatchBoundary(),
//	})
//
// # Interfaces
//
// The Sender interface allows custom implementations for non-HTTP
// transports; HTTPClient abstracts request execution for testing.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package sender
