// Package printer renders coloured CLI output. Colour is on by default and
// disabled by the NO_COLOR environment variable.
package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dyluth/collab/pkg/collab"
	"github.com/fatih/color"
)

func init() {
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Printer writes to an output and an error stream.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// New returns a printer on the given streams.
func New(out, errOut io.Writer) *Printer {
	return &Printer{Out: out, Err: errOut}
}

// Stdio returns a printer on os.Stdout and os.Stderr.
func Stdio() *Printer {
	return New(os.Stdout, os.Stderr)
}

// Success prints a message in green with a checkmark prefix.
func (p *Printer) Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Fprint(p.Out, msg)
}

// Info prints a message in the default colour.
func (p *Printer) Info(format string, a ...any) {
	fmt.Fprintf(p.Out, format, a...)
}

// Warning prints a message in yellow with a warning prefix to the error stream.
func (p *Printer) Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		msg = "⚠️  " + msg
	}
	yellow.Fprint(p.Err, msg)
}

// Step prints a step message with emphasis.
func (p *Printer) Step(format string, a ...any) {
	cyan.Fprintf(p.Out, "→ %s", fmt.Sprintf(format, a...))
}

// Event prints one run event, coloured by what happened.
func (p *Printer) Event(evt *collab.Event) {
	progress := fmt.Sprintf("[%d/%d]", evt.AcceptedCount, evt.Quota)

	switch evt.Type {
	case collab.EventCandidateDecided:
		if evt.Status == collab.StatusAccepted {
			green.Fprintf(p.Out, "%s candidate %d accepted\n", progress, evt.CandidateID)
		} else {
			faint.Fprintf(p.Out, "%s candidate %d declined\n", progress, evt.CandidateID)
		}
	case collab.EventCandidateRejected:
		yellow.Fprintf(p.Out, "%s candidate %d rejected by operator\n", progress, evt.CandidateID)
	case collab.EventCandidatePromoted:
		green.Fprintf(p.Out, "%s candidate %d promoted (%s)\n", progress, evt.CandidateID, evt.Reason)
	case collab.EventRunLocked, collab.EventRunForceLocked:
		cyan.Fprintf(p.Out, "%s %s\n", progress, evt.Type)
	case collab.EventRunExpired, collab.EventRunExhausted, collab.EventRunUnlocked, collab.EventRunCancelled:
		yellow.Fprintf(p.Out, "%s %s\n", progress, evt.Type)
	default:
		fmt.Fprintf(p.Out, "%s %s\n", progress, evt.Type)
	}
}

// Error prints a formatted error with title, explanation and suggestions to the
// error stream, and returns an error carrying only the title so cobra, which
// runs with SilenceErrors, does not print it twice.
func (p *Printer) Error(title string, explanation string, suggestions []string) error {
	return p.ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value details, printed in key order.
func (p *Printer) ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(p.Err, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(p.Err, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintln(p.Err)
		for _, k := range keys {
			fmt.Fprintf(p.Err, "  %s: %s\n", k, context[k])
		}
	}

	if len(suggestions) > 0 {
		fmt.Fprintln(p.Err)
		if len(suggestions) == 1 {
			fmt.Fprintf(p.Err, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(p.Err, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(p.Err, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	return fmt.Errorf("%s", title)
}
