// Package backend defines the interface shared by every classification
// backend and the registry the orchestrator selects them from.
package backend

import (
	"context"

	"github.com/crimson-sun/argval/internal/metrics"
	"github.com/crimson-sun/argval/internal/model"
)

// Backend trains and queries one kind of multi-label classifier for a
// single taxonomy level at a time.
type Backend interface {
	// Name is the registry key, e.g. "svm".
	Name() string
	// Method is the tag written in the Method column of merged output.
	Method() string
	// Location returns where the level's artifact lives under modelDir.
	// Backends without an artifact return "".
	Location(modelDir, levelID string) string
	// Train fits a model on req.Train and persists it to req.Location.
	// The report is non-nil only when a non-empty validation partition
	// was supplied.
	Train(ctx context.Context, req TrainRequest) (*metrics.Report, error)
	// Predict loads the artifact at req.Location and labels req.Data.
	Predict(ctx context.Context, req PredictRequest) (*model.PredictionTable, error)
}

// TrainRequest is the input to Backend.Train.
type TrainRequest struct {
	Level      model.Level
	Train      model.Partition
	Validation *model.Partition
	Location   string
}

// PredictRequest is the input to Backend.Predict.
type PredictRequest struct {
	Level    model.Level
	Data     model.Partition
	Location string
}

// HasValidation reports whether a validation report should be produced.
func (r TrainRequest) HasValidation() bool {
	return r.Validation != nil && r.Validation.Len() > 0
}

// Evaluate scores a 0/1 prediction table against a partition's truth.
func Evaluate(table *model.PredictionTable, truth model.Partition) (*metrics.Report, error) {
	report, err := metrics.Score(metrics.Ints(table.Values), metrics.Ints(truth.Labels), table.Labels)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// Settings carries the tunables of every backend. Each constructor reads
// only its own section.
type Settings struct {
	Linear LinearSettings
	Neural NeuralSettings
}

// LinearSettings configures the per-label linear SVMs.
type LinearSettings struct {
	C       float64
	MaxIter int
	Tol     float64
}

// NeuralSettings configures the encoder and head training.
type NeuralSettings struct {
	EncoderPath  string
	VocabPath    string
	MaxSeqLen    int
	Epochs       int
	LearningRate float64
	BatchSize    int
	WeightDecay  float64
}

// Persisted is implemented by backends whose location is a prefix for
// several files rather than a single path.
type Persisted interface {
	Artifacts(location string) []string
}
