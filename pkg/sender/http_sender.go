package sender

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/chrisbigart/odata.net/pkg/log"
)

const batchEndpoint = "/$batch"

// HTTPSender implements Sender over HTTP POST.
type HTTPSender struct {
	client HTTPClient
	logger log.Logger
}

// NewHTTPSender creates a new HTTP sender.
func NewHTTPSender(client HTTPClient, logger log.Logger) *HTTPSender {
	return &HTTPSender{
		client: client,
		logger: logger,
	}
}

// Submit posts the payload to the service's batch endpoint.
func (s *HTTPSender) Submit(ctx context.Context, payload io.Reader, metadata Metadata) ([]byte, error) {
	url := strings.TrimRight(metadata.ServiceURL, "/") + batchEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, payload)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", metadata.ContentType())
	req.Header.Set("Accept", "multipart/mixed, application/json")
	if metadata.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+metadata.AuthToken)
	}

	s.logger.Debug("submitting batch payload",
		log.String("url", url),
		log.String("content_type", metadata.ContentType()))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
