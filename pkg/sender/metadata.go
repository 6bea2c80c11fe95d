package sender

// Metadata provides context for one batch submission.
type Metadata struct {
	// ServiceURL is the base URL of the data service; the batch endpoint
	// path is appended to it.
	ServiceURL string

	// AuthToken is an optional bearer token for the Authorization header.
	AuthToken string

	// Boundary is the payload's batch boundary token, written into the
	// multipart Content-Type header. Leave empty for JSON payloads.
	Boundary string
}

// ContentType returns the Content-Type header value for the submission.
func (m Metadata) ContentType() string {
	if m.Boundary == "" {
		return "application/json"
	}
	return "multipart/mixed; boundary=" + m.Boundary
}
