// Package baseline implements the reference classifier that assigns every
// label to every argument.
package baseline

import (
	"context"
	"log/slog"

	"github.com/crimson-sun/argval/internal/backend"
	"github.com/crimson-sun/argval/internal/logging"
	"github.com/crimson-sun/argval/internal/metrics"
	"github.com/crimson-sun/argval/internal/model"
)

// Registry name, selection letter and output Method tag of the backend that
// predicts every label for every argument.
const (
	Name   = "1-baseline"
	Letter = "o"
	Method = "1-Baseline"
)

func init() {
	backend.Register(Name, Letter, func(backend.Settings) (backend.Backend, error) {
		return New(), nil
	})
}

// Baseline has no parameters and persists nothing.
type Baseline struct {
	log *slog.Logger
}

// New returns the all-ones baseline.
func New() *Baseline { return &Baseline{log: logging.New("baseline")} }

func (*Baseline) Name() string   { return Name }
func (*Baseline) Method() string { return Method }

// Location is empty: there is no artifact.
func (*Baseline) Location(string, string) string { return "" }

// Train only scores the validation partition, if any.
func (b *Baseline) Train(ctx context.Context, req backend.TrainRequest) (*metrics.Report, error) {
	if !req.HasValidation() {
		return nil, nil
	}
	table, err := b.Predict(ctx, backend.PredictRequest{Level: req.Level, Data: *req.Validation})
	if err != nil {
		return nil, err
	}
	return backend.Evaluate(table, *req.Validation)
}

// Predict returns a rows x labels matrix of ones.
func (b *Baseline) Predict(_ context.Context, req backend.PredictRequest) (*model.PredictionTable, error) {
	labels := req.Level.Labels
	values := make([][]int, req.Data.Len())
	for i := range values {
		row := make([]int, len(labels))
		for j := range row {
			row[j] = 1
		}
		values[i] = row
	}
	b.log.Debug("baseline prediction",
		logging.KeyLevel, req.Level.ID,
		logging.KeyRows, len(values),
		logging.KeyLabels, len(labels))
	return &model.PredictionTable{
		Method: Method,
		Labels: append([]string(nil), labels...),
		IDs:    req.Data.IDs(),
		Values: values,
	}, nil
}
