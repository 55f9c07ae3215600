// Package stdout writes evaluations to the terminal, either as NDJSON lines
// or as one table rendered on Close.
package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/crimson-sun/argval/internal/format"
	"github.com/crimson-sun/argval/internal/model"
	"github.com/crimson-sun/argval/internal/output"
)

// Style selects JSON lines or a rendered table.
type Style int

const (
	JSON Style = iota
	Table
)

// Option configures an Output.
type Option func(*Output)

// WithWriter redirects output away from os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(o *Output) { o.w = w }
}

// WithTableMode sets the table rendering (ASCII or Markdown).
func WithTableMode(m format.Mode) Option {
	return func(o *Output) { o.mode = m }
}

// Output renders evaluations for a human or a downstream pipe.
type Output struct {
	mu        sync.Mutex
	w         io.Writer
	style     Style
	verbosity output.Verbosity
	mode      format.Mode
	pending   []model.Evaluation
}

// New returns a stdout sink.
func New(style Style, verbosity output.Verbosity, opts ...Option) *Output {
	o := &Output{w: os.Stdout, style: style, verbosity: verbosity}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Write prints a JSON line immediately, or queues a table row.
func (o *Output) Write(_ context.Context, ev model.Evaluation) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.style == Table {
		o.pending = append(o.pending, ev)
		return nil
	}
	data, err := json.Marshal(output.FormatEvaluation(ev, o.verbosity))
	if err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	if _, err := o.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

// Close renders the queued table, if any.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.style != Table || len(o.pending) == 0 {
		return nil
	}
	tb := format.NewTable(o.mode)
	tb.Header("Level", "Method", "Partition", "Avg F1", "Accuracy", "Per-label F1")
	tb.Columns(
		format.Column{Number: 4, Align: format.AlignRight},
		format.Column{Number: 5, Align: format.AlignRight},
		format.Column{Number: 6, MaxWidth: 80},
	)
	for _, ev := range o.pending {
		tb.Row(ev.Level, ev.Method, string(ev.Partition), format.Score(ev.AvgF1), format.Score(ev.Accuracy), o.labelScores(ev))
	}
	o.pending = nil
	if _, err := fmt.Fprintln(o.w, tb.String()); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) labelScores(ev model.Evaluation) string {
	if o.verbosity != output.Detailed || len(ev.F1) == 0 {
		return ""
	}
	labels := make([]string, 0, len(ev.F1))
	for l := range ev.F1 {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = format.Truncate(l, 24) + "=" + format.Score(ev.F1[l])
	}
	return strings.Join(parts, " ")
}
