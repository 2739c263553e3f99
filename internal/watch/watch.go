// Package watch streams run events from Redis to a terminal or a pipe.
package watch

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/collab/internal/report"
	"github.com/dyluth/collab/pkg/collab"
)

// OutputFormat selects how events are written.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = "default" // one human-readable line per event
	OutputFormatJSON    OutputFormat = "json"    // line-delimited JSON
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format: %s", s)
}

// Options controls a stream.
type Options struct {
	Format OutputFormat
	// ExitOnTerminal stops the stream after the first event that ends a run.
	ExitOnTerminal bool
}

// StreamEvents subscribes to the instance's run events and writes each one to
// w until ctx is cancelled, the subscription ends, or (with ExitOnTerminal) a
// run finishes. Cancellation is a clean exit, not an error.
func StreamEvents(ctx context.Context, client *collab.Client, opts Options, w io.Writer) error {
	sub, err := client.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to run events: %w", err)
	}
	defer sub.Close()

	return consume(ctx, sub.Events(), sub.Errors(), opts, w)
}

func consume(ctx context.Context, events <-chan *collab.Event, errs <-chan error, opts Options, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			fmt.Fprintf(w, "⚠️  skipped malformed event: %v\n", err)

		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if err := write(w, evt, opts.Format); err != nil {
				return err
			}
			if opts.ExitOnTerminal && IsTerminal(evt.Type) {
				return nil
			}
		}
	}
}

func write(w io.Writer, evt *collab.Event, format OutputFormat) error {
	if format == OutputFormatJSON {
		return report.FormatEventJSONL(w, evt)
	}
	report.FormatEvent(w, evt)
	return nil
}

// IsTerminal reports whether an event ends a run's scheduling.
func IsTerminal(t collab.EventType) bool {
	switch t {
	case collab.EventRunLocked, collab.EventRunForceLocked, collab.EventRunExpired,
		collab.EventRunExhausted, collab.EventRunCancelled, collab.EventRunReset:
		return true
	}
	return false
}
