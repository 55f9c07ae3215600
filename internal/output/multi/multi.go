// Package multi fans evaluations out to several sinks.
package multi

import (
	"context"
	"errors"

	"github.com/crimson-sun/argval/internal/model"
	"github.com/crimson-sun/argval/internal/output"
)

// Multi writes every evaluation to each wrapped output in order. A failing
// output does not stop delivery to the rest.
type Multi struct {
	outputs []output.Output
}

// New wraps outputs; nil entries are skipped.
func New(outputs ...output.Output) *Multi {
	m := &Multi{}
	for _, o := range outputs {
		if o != nil {
			m.outputs = append(m.outputs, o)
		}
	}
	return m
}

// Write delivers ev everywhere and joins the errors.
func (m *Multi) Write(ctx context.Context, ev model.Evaluation) error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Write(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every output and joins the errors.
func (m *Multi) Close() error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
