// Package app turns a parsed batch script into writer calls.
package app

import (
	"context"
	"fmt"

	"github.com/chrisbigart/odata.net/internal/cliconfig"
	"github.com/chrisbigart/odata.net/pkg/batch"
	"github.com/chrisbigart/odata.net/pkg/log"
)

// Builder drives a batch.Writer through the operations of a script.
type Builder struct {
	logger log.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(logger log.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build emits the whole script into w and flushes the sink.
func (b *Builder) Build(ctx context.Context, w batch.Writer, cfg cliconfig.Config) error {
	if err := w.StartBatch(); err != nil {
		return fmt.Errorf("start batch: %w", err)
	}

	for i, part := range cfg.Parts {
		if part.Atomic {
			if err := b.buildChangeset(ctx, w, cfg, part); err != nil {
				return fmt.Errorf("part %d: %w", i+1, err)
			}
			continue
		}
		if err := b.buildOperation(ctx, w, cfg, part.Requests[0]); err != nil {
			return fmt.Errorf("part %d: %w", i+1, err)
		}
	}

	if err := w.EndBatch(); err != nil {
		return fmt.Errorf("end batch: %w", err)
	}
	if err := w.Flush(ctx); err != nil {
		return fmt.Errorf("flush payload: %w", err)
	}
	return nil
}

func (b *Builder) buildChangeset(ctx context.Context, w batch.Writer, cfg cliconfig.Config, part cliconfig.Part) error {
	if err := w.StartChangeset(); err != nil {
		return fmt.Errorf("start changeset: %w", err)
	}
	for j, op := range part.Requests {
		if err := b.buildOperation(ctx, w, cfg, op); err != nil {
			return fmt.Errorf("request %d: %w", j+1, err)
		}
	}
	if err := w.EndChangeset(); err != nil {
		return fmt.Errorf("end changeset: %w", err)
	}
	return nil
}

func (b *Builder) buildOperation(ctx context.Context, w batch.Writer, cfg cliconfig.Config, op cliconfig.Operation) error {
	var headers *batch.Headers
	if cfg.Response {
		msg, err := w.CreateOperationResponseMessage(op.ContentID)
		if err != nil {
			return err
		}
		if op.Status != 0 {
			msg.SetStatusCode(op.Status)
		}
		headers = msg.Headers()
	} else {
		msg, err := w.CreateOperationRequestMessage(op.Method, op.URI, op.ContentID, uriOption(op.URIOption))
		if err != nil {
			return err
		}
		headers = msg.Headers()
	}

	for _, h := range op.Headers {
		headers.Set(h[0], h[1])
	}

	if op.Body == "" {
		return nil
	}

	body, err := w.NotifyContentStreamRequested(ctx)
	if err != nil {
		return err
	}
	if _, err := body.Write([]byte(op.Body)); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.NotifyContentStreamDisposed(); err != nil {
		return err
	}

	b.logger.Debug("operation emitted",
		log.String("method", op.Method),
		log.String("uri", op.URI),
		log.Int("body_bytes", len(op.Body)))
	return nil
}

// uriOption maps a script uri_option value to the writer's enum.
func uriOption(s string) batch.PayloadURIOption {
	switch s {
	case "host-header":
		return batch.AbsoluteURIUsingHostHeader
	case "relative":
		return batch.RelativeURI
	default:
		return batch.AbsoluteURI
	}
}
