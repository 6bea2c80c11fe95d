package sender

import (
	"context"
	"io"
)

// Sender transmits a finished batch payload to a remote service.
// Implementations handle communication and authentication; the payload
// bytes pass through untouched.
type Sender interface {
	// Submit posts the payload and returns the raw response payload.
	// Returns an error for transport failures and non-2xx statuses.
	Submit(ctx context.Context, payload io.Reader, metadata Metadata) ([]byte, error)
}
