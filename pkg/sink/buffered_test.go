package sink

import (
	"bytes"
	"context"
	"testing"
)

func TestBufferedWriteOrder(t *testing.T) {
	var out bytes.Buffer
	s := NewBuffered(&out)

	if _, err := s.WriteString("one"); err != nil {
		t.Fatalf("write string: %v", err)
	}
	if _, err := s.Write([]byte("-two")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("bytes reached the writer before flush: %q", out.String())
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := out.String(); got != "one-two" {
		t.Fatalf("expected %q, got %q", "one-two", got)
	}
}

func TestBufferedRawAfterFlush(t *testing.T) {
	var out bytes.Buffer
	s := NewBuffered(&out)

	if _, err := s.WriteString("head:"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, err := s.Raw().Write([]byte("body")); err != nil {
		t.Fatalf("raw write: %v", err)
	}
	if _, err := s.WriteString(":tail"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := out.String(); got != "head:body:tail" {
		t.Fatalf("expected %q, got %q", "head:body:tail", got)
	}
}

func TestFlushContextCancelled(t *testing.T) {
	var out bytes.Buffer
	s := NewBuffered(&out)

	if _, err := s.WriteString("data"); err != nil {
		t.Fatalf("write: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.FlushContext(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("cancelled flush leaked bytes: %q", out.String())
	}

	if err := s.FlushContext(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := out.String(); got != "data" {
		t.Fatalf("expected %q, got %q", "data", got)
	}
}
