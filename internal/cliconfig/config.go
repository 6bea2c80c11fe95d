// Package cliconfig loads and validates the batchpack CLI's batch scripts.
//
// A script is a TOML file describing one batch payload: writer settings plus
// an ordered list of parts, where a part is either a single batch-level
// request or an atomic changeset of requests.
package cliconfig

import (
	"fmt"
	"strings"
)

// Encodings accepted by the "encoding" script setting.
const (
	EncodingMultipart = "multipart"
	EncodingJSON      = "json"
)

// Config is a parsed batch script.
type Config struct {
	// BaseURI resolves relative operation URIs; optional.
	BaseURI string `toml:"base_uri"`

	// Encoding selects the payload encoding; defaults to multipart.
	Encoding string `toml:"encoding"`

	// Response builds the response side of a batch: status lines instead
	// of request lines.
	Response bool `toml:"response"`

	// Parts are emitted in script order.
	Parts []Part `toml:"part"`
}

// Part is one payload part: a single request, or an atomic changeset when
// Atomic is set.
type Part struct {
	Atomic   bool        `toml:"atomic"`
	Requests []Operation `toml:"request"`
}

// Operation is one request or response operation in the script.
type Operation struct {
	Method    string `toml:"method"`
	URI       string `toml:"uri"`
	ContentID string `toml:"content_id"`

	// URIOption is "absolute" (default), "host-header" or "relative".
	URIOption string `toml:"uri_option"`

	// Status is the HTTP status code for response payloads.
	Status int `toml:"status"`

	// Body is the operation body; empty means no body part.
	Body string `toml:"body"`

	// Headers are name/value pairs in emission order.
	Headers [][]string `toml:"headers"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{Encoding: EncodingMultipart}
}

// Validate checks the script for errors the writer would otherwise reject
// mid-payload, so a bad script fails before any bytes are emitted.
func (c *Config) Validate() error {
	switch c.Encoding {
	case "", EncodingMultipart, EncodingJSON:
	default:
		return fmt.Errorf("unknown encoding %q (want %s or %s)", c.Encoding, EncodingMultipart, EncodingJSON)
	}
	if c.Encoding == "" {
		c.Encoding = EncodingMultipart
	}

	for i, part := range c.Parts {
		if !part.Atomic && len(part.Requests) != 1 {
			return fmt.Errorf("part %d: a non-atomic part must contain exactly one request", i+1)
		}
		for j, op := range part.Requests {
			if err := c.validateOperation(part, op); err != nil {
				return fmt.Errorf("part %d request %d: %w", i+1, j+1, err)
			}
		}
	}
	return nil
}

func (c *Config) validateOperation(part Part, op Operation) error {
	if c.Response {
		if op.Status == 0 {
			return fmt.Errorf("status is required in a response script")
		}
		return c.validateHeaders(op)
	}

	if op.Method == "" {
		return fmt.Errorf("method is required")
	}
	if op.URI == "" {
		return fmt.Errorf("uri is required")
	}
	if part.Atomic {
		switch strings.ToUpper(op.Method) {
		case "GET", "HEAD":
			return fmt.Errorf("method %s is read-only and not allowed in an atomic part", op.Method)
		}
		if op.ContentID == "" {
			return fmt.Errorf("content_id is required in an atomic part")
		}
	}
	switch op.URIOption {
	case "", "absolute", "host-header", "relative":
	default:
		return fmt.Errorf("unknown uri_option %q", op.URIOption)
	}
	return c.validateHeaders(op)
}

func (c *Config) validateHeaders(op Operation) error {
	for _, h := range op.Headers {
		if len(h) != 2 {
			return fmt.Errorf("headers entries must be [name, value] pairs")
		}
		if h[0] == "" {
			return fmt.Errorf("header name must not be empty")
		}
	}
	return nil
}
