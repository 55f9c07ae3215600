// Package neural implements the transformer backend: pooled encoder
// vectors feed a fine-tuned multi-label classification head.
package neural

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/crimson-sun/argval/internal/backend"
	"github.com/crimson-sun/argval/internal/encoder"
	"github.com/crimson-sun/argval/internal/logging"
	"github.com/crimson-sun/argval/internal/metrics"
	"github.com/crimson-sun/argval/internal/model"
)

// Registry name, selection letter and output Method tag of the backend that
// uses the transformer encoder with a trained classification head.
const (
	Name   = "bert"
	Letter = "b"
	Method = "Bert"
)

func init() {
	backend.Register(Name, Letter, func(s backend.Settings) (backend.Backend, error) {
		cfg := encoder.DefaultConfig(s.Neural.EncoderPath, s.Neural.VocabPath)
		if s.Neural.MaxSeqLen > 0 {
			cfg.MaxSeqLen = s.Neural.MaxSeqLen
		}
		tr := DefaultTrainer()
		if s.Neural.Epochs > 0 {
			tr.Epochs = s.Neural.Epochs
		}
		if s.Neural.LearningRate > 0 {
			tr.LearningRate = s.Neural.LearningRate
		}
		if s.Neural.BatchSize > 0 {
			tr.BatchSize = s.Neural.BatchSize
		}
		if s.Neural.WeightDecay > 0 {
			tr.WeightDecay = s.Neural.WeightDecay
		}
		return New(cfg, WithTrainer(tr)), nil
	})
}

// OpenFunc creates the encoder used for one Train or Predict call.
type OpenFunc func() (encoder.Encoder, error)

// Option configures a Backend.
type Option func(*Backend)

// WithTrainer replaces the default gradient trainer.
func WithTrainer(t Trainer) Option {
	return func(b *Backend) { b.trainer = t }
}

// WithEncoder replaces the ONNX encoder, e.g. with a precomputed one.
func WithEncoder(open OpenFunc) Option {
	return func(b *Backend) { b.open = open }
}

// WithLoss replaces binary cross-entropy.
func WithLoss(fn LossFunc) Option {
	return func(b *Backend) { b.loss = fn }
}

// Backend fine-tunes and applies classification heads.
type Backend struct {
	open    OpenFunc
	trainer Trainer
	loss    LossFunc
	score   MetricsFunc
	log     *slog.Logger
}

// New returns a backend that encodes with an ONNX model described by cfg.
func New(cfg encoder.Config, opts ...Option) *Backend {
	b := &Backend{
		open: func() (encoder.Encoder, error) {
			return encoder.Open(cfg)
		},
		trainer: DefaultTrainer(),
		loss:    BCEWithLogits,
		score:   LogitMetrics,
		log:     logging.New("neural"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (*Backend) Name() string   { return Name }
func (*Backend) Method() string { return Method }

// Location is the per-level artifact directory.
func (*Backend) Location(modelDir, levelID string) string {
	return filepath.Join(modelDir, "bert_train_level"+levelID)
}

// Artifacts lists the files inside the artifact directory.
func (*Backend) Artifacts(location string) []string {
	return []string{filepath.Join(location, headFile), filepath.Join(location, configFile)}
}

// Train encodes both partitions, fits a head and saves it to req.Location.
func (b *Backend) Train(ctx context.Context, req backend.TrainRequest) (*metrics.Report, error) {
	if req.Train.Len() == 0 {
		return nil, fmt.Errorf("neural: level %s: no training arguments", req.Level.ID)
	}
	enc, err := b.open()
	if err != nil {
		return nil, fmt.Errorf("neural: level %s: %w", req.Level.ID, err)
	}
	defer enc.Close()

	fit := FitRequest{Labels: req.Level.Labels, TrainY: req.Train.Labels, Loss: b.loss, Metrics: b.score}
	if fit.TrainX, err = enc.Encode(ctx, req.Train.Premises()); err != nil {
		return nil, fmt.Errorf("neural: level %s: encode training data: %w", req.Level.ID, err)
	}
	if req.HasValidation() {
		if fit.ValX, err = enc.Encode(ctx, req.Validation.Premises()); err != nil {
			return nil, fmt.Errorf("neural: level %s: encode validation data: %w", req.Level.ID, err)
		}
		fit.ValY = req.Validation.Labels
	}

	res, err := b.trainer.Fit(ctx, fit)
	if err != nil {
		return nil, fmt.Errorf("neural: level %s: %w", req.Level.ID, err)
	}
	if err := os.MkdirAll(req.Location, 0o755); err != nil {
		return nil, fmt.Errorf("neural: %w", err)
	}
	if err := res.Head.save(req.Location, res.Epochs, res.BestEpoch); err != nil {
		return nil, fmt.Errorf("neural: level %s: %w", req.Level.ID, err)
	}
	b.log.Info("saved classification head",
		logging.KeyLevel, req.Level.ID,
		logging.KeyLabels, len(res.Head.Labels),
		"best_epoch", res.BestEpoch,
		logging.KeyPath, req.Location)
	return res.Report, nil
}

// Predict thresholds sigmoid(logits) at 0.5 for every argument.
func (b *Backend) Predict(ctx context.Context, req backend.PredictRequest) (*model.PredictionTable, error) {
	head, err := loadHead(req.Location, req.Level.Labels)
	if err != nil {
		return nil, fmt.Errorf("neural: level %s: %w", req.Level.ID, err)
	}
	enc, err := b.open()
	if err != nil {
		return nil, fmt.Errorf("neural: level %s: %w", req.Level.ID, err)
	}
	defer enc.Close()
	if enc.Dim() != head.Dim {
		return nil, fmt.Errorf("neural: level %s: encoder dim %d, head expects %d", req.Level.ID, enc.Dim(), head.Dim)
	}

	vecs, err := enc.Encode(ctx, req.Data.Premises())
	if err != nil {
		return nil, fmt.Errorf("neural: level %s: %w", req.Level.ID, err)
	}
	values := make([][]int, len(vecs))
	for i, v := range vecs {
		logits := head.Logits(v)
		row := make([]int, len(logits))
		for j, z := range logits {
			if metrics.Positive(metrics.Sigmoid(z)) {
				row[j] = 1
			}
		}
		values[i] = row
	}
	return &model.PredictionTable{
		Method: Method,
		Labels: append([]string(nil), head.Labels...),
		IDs:    req.Data.IDs(),
		Values: values,
	}, nil
}
