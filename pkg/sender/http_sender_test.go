package sender

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/chrisbigart/odata.net/pkg/log"
)

// fakeClient records the request and returns a canned response.
type fakeClient struct {
	req    *http.Request
	status int
	body   string
}

func (f *fakeClient) Do(req *http.Request) (*http.Response, error) {
	f.req = req
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

func TestSubmitMultipartPayload(t *testing.T) {
	client := &fakeClient{status: http.StatusOK, body: "response-payload"}
	s := NewHTTPSender(client, log.NewNoopLogger())

	got, err := s.Submit(context.Background(), strings.NewReader("payload"), Metadata{
		ServiceURL: "https://host/service/",
		AuthToken:  "tok",
		Boundary:   "batch_X",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if string(got) != "response-payload" {
		t.Fatalf("unexpected response body %q", got)
	}

	if client.req.URL.String() != "https://host/service/$batch" {
		t.Fatalf("unexpected url %q", client.req.URL)
	}
	if ct := client.req.Header.Get("Content-Type"); ct != "multipart/mixed; boundary=batch_X" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if auth := client.req.Header.Get("Authorization"); auth != "Bearer tok" {
		t.Fatalf("unexpected authorization %q", auth)
	}
	sent, _ := io.ReadAll(client.req.Body)
	if string(sent) != "payload" {
		t.Fatalf("payload rewritten: %q", sent)
	}
}

func TestSubmitJSONContentType(t *testing.T) {
	client := &fakeClient{status: http.StatusAccepted}
	s := NewHTTPSender(client, log.NewNoopLogger())

	_, err := s.Submit(context.Background(), strings.NewReader("{}"), Metadata{
		ServiceURL: "https://host/service",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ct := client.req.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if auth := client.req.Header.Get("Authorization"); auth != "" {
		t.Fatalf("authorization set without token: %q", auth)
	}
}

func TestSubmitServerError(t *testing.T) {
	client := &fakeClient{status: http.StatusBadRequest, body: "bad batch"}
	s := NewHTTPSender(client, log.NewNoopLogger())

	_, err := s.Submit(context.Background(), strings.NewReader("payload"), Metadata{
		ServiceURL: "https://host/service",
	})
	if err == nil {
		t.Fatal("expected an error for non-2xx status")
	}
	if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "bad batch") {
		t.Fatalf("error should carry status and body: %v", err)
	}
}
