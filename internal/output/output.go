// Package output defines the sinks evaluation reports are written to.
package output

import (
	"context"

	"github.com/crimson-sun/argval/internal/model"
)

// Output receives one Evaluation per scored (level, backend, partition).
type Output interface {
	Write(ctx context.Context, ev model.Evaluation) error
	Close() error
}
