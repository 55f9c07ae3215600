// Package linear implements the linear-ensemble backend: a shared TF-IDF
// vectorizer feeding one squared-hinge linear SVM per label.
package linear

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/crimson-sun/argval/internal/backend"
	"github.com/crimson-sun/argval/internal/logging"
	"github.com/crimson-sun/argval/internal/metrics"
	"github.com/crimson-sun/argval/internal/model"
	"github.com/crimson-sun/argval/internal/textvec"
)

// Registry name, selection letter and output Method tag of the backend that
// uses the TF-IDF and per-label linear SVM ensemble.
const (
	Name   = "svm"
	Letter = "s"
	Method = "SVM"
)

func init() {
	backend.Register(Name, Letter, func(s backend.Settings) (backend.Backend, error) {
		cfg := DefaultSolverConfig()
		if s.Linear.C > 0 {
			cfg.C = s.Linear.C
		}
		if s.Linear.MaxIter > 0 {
			cfg.MaxIter = s.Linear.MaxIter
		}
		if s.Linear.Tol > 0 {
			cfg.Tol = s.Linear.Tol
		}
		return New(cfg), nil
	})
}

// Backend trains and loads linear ensembles.
type Backend struct {
	solver SolverConfig
	vec    textvec.Config
	log    *slog.Logger
}

// New returns a linear backend using the given solver settings.
func New(solver SolverConfig) *Backend {
	return &Backend{solver: solver, vec: textvec.DefaultConfig(), log: logging.New("linear")}
}

func (*Backend) Name() string   { return Name }
func (*Backend) Method() string { return Method }

// Location is the shared path prefix of the level's two artifact files.
func (*Backend) Location(modelDir, levelID string) string {
	return filepath.Join(modelDir, "svm", "svm_train_level"+levelID)
}

// Artifacts lists the files a trained level consists of.
func (*Backend) Artifacts(location string) []string {
	return []string{VectorizerPath(location), ModelsPath(location)}
}

// VectorizerPath is the vectorizer record for an artifact location.
func VectorizerPath(location string) string { return location + "_vectorizer.json" }

// ModelsPath is the per-label parameter record for an artifact location.
func ModelsPath(location string) string { return location + "_models.json" }

// Train fits the vectorizer and one classifier per label, then persists
// both. When validation data is present the saved artifact is reloaded
// and scored on it.
func (b *Backend) Train(ctx context.Context, req backend.TrainRequest) (*metrics.Report, error) {
	if req.Train.Len() == 0 {
		return nil, fmt.Errorf("linear: level %s: no training arguments", req.Level.ID)
	}
	vec, err := textvec.Fit(b.vec, req.Train.Premises())
	if err != nil {
		return nil, fmt.Errorf("linear: level %s: %w", req.Level.ID, err)
	}
	x := vec.TransformAll(req.Train.Premises())

	ens := &Ensemble{
		Labels:     append([]string(nil), req.Level.Labels...),
		Vectorizer: vec,
		Params:     make([]Params, len(req.Level.Labels)),
	}
	for j, label := range req.Level.Labels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, converged := trainBinary(b.solver, x, req.Train.Column(j), vec.Size())
		if !converged {
			b.log.Warn("solver did not converge",
				logging.KeyLevel, req.Level.ID,
				"label", label,
				"max_iter", b.solver.MaxIter)
		}
		ens.Params[j] = p
	}

	if err := ens.Save(req.Location); err != nil {
		return nil, fmt.Errorf("linear: level %s: %w", req.Level.ID, err)
	}
	b.log.Info("saved linear ensemble",
		logging.KeyLevel, req.Level.ID,
		logging.KeyLabels, len(ens.Labels),
		"features", vec.Size(),
		logging.KeyPath, req.Location)

	if !req.HasValidation() {
		return nil, nil
	}
	table, err := b.Predict(ctx, backend.PredictRequest{Level: req.Level, Data: *req.Validation, Location: req.Location})
	if err != nil {
		return nil, err
	}
	return backend.Evaluate(table, *req.Validation)
}

// Predict loads the artifact at req.Location and classifies req.Data.
func (b *Backend) Predict(_ context.Context, req backend.PredictRequest) (*model.PredictionTable, error) {
	ens, err := Load(req.Location, req.Level.Labels)
	if err != nil {
		return nil, fmt.Errorf("linear: level %s: %w", req.Level.ID, err)
	}
	values := ens.Classify(req.Data.Premises())
	b.log.Debug("linear prediction",
		logging.KeyLevel, req.Level.ID,
		logging.KeyRows, len(values))
	return &model.PredictionTable{
		Method: Method,
		Labels: ens.Labels,
		IDs:    req.Data.IDs(),
		Values: values,
	}, nil
}
