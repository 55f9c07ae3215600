// Package pipeline runs backends over every requested taxonomy level: it
// assembles the per-level dataset, trains or queries each backend, scores
// the results and merges per-level predictions into one table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/crimson-sun/argval/internal/backend"
	"github.com/crimson-sun/argval/internal/codec"
	"github.com/crimson-sun/argval/internal/dataset"
	"github.com/crimson-sun/argval/internal/logging"
	"github.com/crimson-sun/argval/internal/metrics"
	"github.com/crimson-sun/argval/internal/model"
	"github.com/crimson-sun/argval/internal/output"
	"github.com/crimson-sun/argval/internal/tabular"
)

var (
	// ErrMissingArtifact means a backend has not been trained for a level.
	ErrMissingArtifact = errors.New("pipeline: missing model artifact")
	// ErrDuplicateLabel means two selected levels share a label name, which
	// would make the merged header ambiguous.
	ErrDuplicateLabel = errors.New("pipeline: label appears in more than one level")
	// ErrNoLabels means a training level has no annotation file.
	ErrNoLabels = errors.New("pipeline: no labels for level")
)

// Pipeline connects the selected backends to an evaluation sink.
type Pipeline struct {
	backends []backend.Backend
	output   output.Output
	parallel int
	now      func() time.Time
	log      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithParallel processes up to n levels concurrently. Values below 2 keep
// the sequential default.
func WithParallel(n int) Option {
	return func(p *Pipeline) { p.parallel = n }
}

// WithClock overrides the timestamp source for evaluations.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline. out may be nil when evaluations are not recorded.
func New(backends []backend.Backend, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		backends: backends,
		output:   out,
		parallel: 1,
		now:      time.Now,
		log:      logging.New("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TrainInput describes one training run.
type TrainInput struct {
	RunID     string
	Arguments []model.Argument
	Levels    []model.Level
	// Labels maps level ID to its annotation rows. Every level needs one.
	Labels   map[string]*dataset.LabelRows
	ModelDir string
	// Validate scores each trained backend on the validation partition.
	Validate bool
}

// Trained records one persisted (level, backend) artifact.
type Trained struct {
	Level    string
	Method   string
	Location string
}

// TrainResult is the outcome of Train.
type TrainResult struct {
	RunID       string
	Trained     []Trained
	Evaluations []model.Evaluation
}

// PredictInput describes one prediction run.
type PredictInput struct {
	RunID     string
	Arguments []model.Argument
	Levels    []model.Level
	// Labels optionally maps level ID to annotations used to score the
	// predictions. Levels without labels are predicted but not scored.
	Labels   map[string]*dataset.LabelRows
	ModelDir string
	// OutputPath receives the merged table. Empty skips the write.
	OutputPath string
}

// Skip records a (level, backend) pair whose artifact was rejected.
type Skip struct {
	Level  string
	Method string
	Reason string
}

// PredictResult is the outcome of Predict.
type PredictResult struct {
	RunID string
	// Tables is indexed [backend][level]; skipped pairs are nil.
	Tables      [][]*model.PredictionTable
	Merged      MergedTable
	Skipped     []Skip
	Evaluations []model.Evaluation
}

type levelOutcome struct {
	trained []Trained
	tables  []*model.PredictionTable
	skipped []Skip
	evals   []model.Evaluation
	ids     []string
}

// Train fits every backend on every level and persists the artifacts under
// in.ModelDir.
func (p *Pipeline) Train(ctx context.Context, in TrainInput) (*TrainResult, error) {
	runID := in.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	for _, level := range in.Levels {
		if in.Labels[level.ID] == nil {
			return nil, fmt.Errorf("%w %s", ErrNoLabels, level.ID)
		}
	}

	outcomes := make([]*levelOutcome, len(in.Levels))
	err := p.forEachLevel(ctx, len(in.Levels), func(ctx context.Context, i int) error {
		out, err := p.trainLevel(ctx, runID, in, in.Levels[i])
		outcomes[i] = out
		return err
	})

	res := &TrainResult{RunID: runID}
	for _, out := range outcomes {
		if out == nil {
			continue
		}
		res.Trained = append(res.Trained, out.trained...)
		res.Evaluations = append(res.Evaluations, out.evals...)
	}
	p.emit(ctx, res.Evaluations)
	return res, err
}

func (p *Pipeline) trainLevel(ctx context.Context, runID string, in TrainInput, level model.Level) (*levelOutcome, error) {
	ds, err := dataset.Assemble(in.Arguments, in.Labels[level.ID], level, model.UsageTrain)
	if err != nil {
		return nil, err
	}
	if ds.Train.Len() == 0 {
		return nil, fmt.Errorf("%w: no training arguments for level %s", ErrNoArguments, level.ID)
	}

	var validation *model.Partition
	if in.Validate {
		if ds.Validation.Len() == 0 {
			p.log.Warn("validation requested but partition is empty, skipping", logging.KeyLevel, level.ID)
		} else {
			validation = &ds.Validation
		}
	}

	out := &levelOutcome{}
	for _, b := range p.backends {
		loc := b.Location(in.ModelDir, level.ID)
		p.log.Info("training",
			logging.KeyMethod, b.Method(),
			logging.KeyLevel, level.ID,
			logging.KeyRows, ds.Train.Len(),
		)
		report, err := b.Train(ctx, backend.TrainRequest{
			Level:      level,
			Train:      ds.Train,
			Validation: validation,
			Location:   loc,
		})
		if err != nil {
			return out, fmt.Errorf("pipeline: train %s level %s: %w", b.Method(), level.ID, err)
		}
		out.trained = append(out.trained, Trained{Level: level.ID, Method: b.Method(), Location: loc})
		if report != nil {
			out.evals = append(out.evals, p.evaluation(runID, level.ID, b.Method(), model.UsageValidation, report))
		}
	}
	return out, nil
}

// Predict queries every backend on the test partition of every level and
// writes the merged table to in.OutputPath.
func (p *Pipeline) Predict(ctx context.Context, in PredictInput) (*PredictResult, error) {
	runID := in.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	if err := checkDistinctLabels(in.Levels); err != nil {
		return nil, err
	}
	if err := p.checkArtifacts(in.ModelDir, in.Levels); err != nil {
		return nil, err
	}

	outcomes := make([]*levelOutcome, len(in.Levels))
	err := p.forEachLevel(ctx, len(in.Levels), func(ctx context.Context, i int) error {
		out, err := p.predictLevel(ctx, runID, in, in.Levels[i])
		outcomes[i] = out
		return err
	})

	res := &PredictResult{RunID: runID, Tables: make([][]*model.PredictionTable, len(p.backends))}
	for b := range p.backends {
		res.Tables[b] = make([]*model.PredictionTable, len(in.Levels))
	}
	var ids []string
	for l, out := range outcomes {
		if out == nil {
			continue
		}
		if ids == nil {
			ids = out.ids
		}
		for b, t := range out.tables {
			res.Tables[b][l] = t
		}
		res.Skipped = append(res.Skipped, out.skipped...)
		res.Evaluations = append(res.Evaluations, out.evals...)
	}
	p.emit(ctx, res.Evaluations)
	if err != nil {
		return res, err
	}

	methods := make([]string, len(p.backends))
	for i, b := range p.backends {
		methods[i] = b.Method()
	}
	res.Merged = mergeTables(ids, methods, in.Levels, res.Tables)

	if in.OutputPath != "" {
		p.writeMerged(in.OutputPath, res.Merged)
	}
	return res, nil
}

func (p *Pipeline) predictLevel(ctx context.Context, runID string, in PredictInput, level model.Level) (*levelOutcome, error) {
	ds, err := dataset.Assemble(in.Arguments, nil, level, model.UsageTest)
	if err != nil {
		return nil, err
	}
	if ds.Test.Len() == 0 {
		return nil, fmt.Errorf("%w: no test arguments for level %s", ErrNoArguments, level.ID)
	}

	var truth *model.Partition
	if labels := in.Labels[level.ID]; labels != nil {
		labeled, err := dataset.Assemble(in.Arguments, labels, level, model.UsageTest)
		if err != nil {
			return nil, err
		}
		truth = &labeled.Test
	}

	out := &levelOutcome{ids: ds.Test.IDs(), tables: make([]*model.PredictionTable, len(p.backends))}
	for i, b := range p.backends {
		p.log.Info("predicting",
			logging.KeyMethod, b.Method(),
			logging.KeyLevel, level.ID,
			logging.KeyRows, ds.Test.Len(),
		)
		table, err := b.Predict(ctx, backend.PredictRequest{
			Level:    level,
			Data:     ds.Test,
			Location: b.Location(in.ModelDir, level.ID),
		})
		if errors.Is(err, codec.ErrUntrustedArtifact) {
			p.log.Error("artifact rejected, skipping",
				logging.KeyMethod, b.Method(),
				logging.KeyLevel, level.ID,
				"error", err,
			)
			out.skipped = append(out.skipped, Skip{Level: level.ID, Method: b.Method(), Reason: err.Error()})
			continue
		}
		if err != nil {
			return out, fmt.Errorf("pipeline: predict %s level %s: %w", b.Method(), level.ID, err)
		}
		out.tables[i] = table

		if truth != nil {
			report, err := scoreMatching(table, *truth)
			if err != nil {
				return out, fmt.Errorf("pipeline: score %s level %s: %w", b.Method(), level.ID, err)
			}
			if report != nil {
				out.evals = append(out.evals, p.evaluation(runID, level.ID, b.Method(), model.UsageTest, report))
			}
		}
	}
	return out, nil
}

// scoreMatching scores the table rows whose IDs appear in truth. It returns
// nil when no row matches.
func scoreMatching(table *model.PredictionTable, truth model.Partition) (*metrics.Report, error) {
	byID := make(map[string]int, truth.Len())
	for i, a := range truth.Arguments {
		byID[a.ID] = i
	}
	var pred, gold [][]int
	for i, id := range table.IDs {
		j, ok := byID[id]
		if !ok {
			continue
		}
		pred = append(pred, table.Values[i])
		gold = append(gold, truth.Labels[j])
	}
	if len(pred) == 0 {
		return nil, nil
	}
	report, err := metrics.Score(metrics.Ints(pred), metrics.Ints(gold), table.Labels)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (p *Pipeline) checkArtifacts(modelDir string, levels []model.Level) error {
	for _, level := range levels {
		for _, b := range p.backends {
			persisted, ok := b.(backend.Persisted)
			if !ok {
				continue
			}
			for _, path := range persisted.Artifacts(b.Location(modelDir, level.ID)) {
				if _, err := os.Stat(path); err != nil {
					return fmt.Errorf("%w: %s level %s: %s", ErrMissingArtifact, b.Method(), level.ID, path)
				}
			}
		}
	}
	return nil
}

func checkDistinctLabels(levels []model.Level) error {
	owner := make(map[string]string)
	for _, level := range levels {
		for _, label := range level.Labels {
			if prev, ok := owner[label]; ok {
				return fmt.Errorf("%w: %q in levels %s and %s", ErrDuplicateLabel, label, prev, level.ID)
			}
			owner[label] = level.ID
		}
	}
	return nil
}

func (p *Pipeline) forEachLevel(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if p.parallel <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallel)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

func (p *Pipeline) evaluation(runID, level, method string, part model.Usage, r *metrics.Report) model.Evaluation {
	return model.Evaluation{
		RunID:     runID,
		Level:     level,
		Method:    method,
		Partition: part,
		AvgF1:     r.AvgF1,
		Accuracy:  r.Accuracy,
		F1:        r.F1Map(),
		At:        p.now(),
	}
}

// emit logs every evaluation and writes it to the sink. Sink failures are
// logged and never fail the run.
func (p *Pipeline) emit(ctx context.Context, evals []model.Evaluation) {
	for _, ev := range evals {
		p.log.Info("evaluation",
			logging.KeyMethod, ev.Method,
			logging.KeyLevel, ev.Level,
			"partition", ev.Partition,
			"avg_f1", ev.AvgF1,
			"accuracy", ev.Accuracy,
		)
		if p.output == nil {
			continue
		}
		if err := p.output.Write(ctx, ev); err != nil {
			p.log.Error("evaluation output failed",
				logging.KeyMethod, ev.Method,
				logging.KeyLevel, ev.Level,
				"error", err,
			)
		}
	}
}

func (p *Pipeline) writeMerged(path string, t MergedTable) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		p.log.Error("failed to create output directory", logging.KeyPath, path, "error", err)
		return
	}
	if err := tabular.WriteTable(path, t.Header, t.Rows); err != nil {
		p.log.Error("failed to write predictions", logging.KeyPath, path, "error", err)
		return
	}
	p.log.Info("predictions written", logging.KeyPath, path, logging.KeyRows, len(t.Rows))
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	if p.output == nil {
		return nil
	}
	return p.output.Close()
}
