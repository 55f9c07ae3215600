package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/argval/internal/backend"
	"github.com/crimson-sun/argval/internal/backend/baseline"
	"github.com/crimson-sun/argval/internal/backend/linear"
	"github.com/crimson-sun/argval/internal/codec"
	"github.com/crimson-sun/argval/internal/config"
	"github.com/crimson-sun/argval/internal/metrics"
	"github.com/crimson-sun/argval/internal/model"
	"github.com/crimson-sun/argval/internal/taxonomy"
	"github.com/crimson-sun/argval/internal/testdata"
)

// stub predicts all ones and lets a test intercept each level.
type stub struct {
	method string
	hook   func(level model.Level) error
}

func (s *stub) Name() string                   { return strings.ToLower(s.method) }
func (s *stub) Method() string                 { return s.method }
func (s *stub) Location(string, string) string { return "" }

func (s *stub) Train(context.Context, backend.TrainRequest) (*metrics.Report, error) {
	return nil, nil
}

func (s *stub) Predict(_ context.Context, req backend.PredictRequest) (*model.PredictionTable, error) {
	if s.hook != nil {
		if err := s.hook(req.Level); err != nil {
			return nil, err
		}
	}
	values := make([][]int, req.Data.Len())
	for i := range values {
		values[i] = make([]int, len(req.Level.Labels))
		for j := range values[i] {
			values[i][j] = 1
		}
	}
	return &model.PredictionTable{Method: s.method, Labels: req.Level.Labels, IDs: req.Data.IDs(), Values: values}, nil
}

type recorder struct {
	mu     sync.Mutex
	evals  []model.Evaluation
	closed bool
}

func (r *recorder) Write(_ context.Context, ev model.Evaluation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evals = append(r.evals, ev)
	return nil
}

func (r *recorder) Close() error {
	r.closed = true
	return nil
}

// failingOutput rejects every evaluation.
type failingOutput struct {
	writes int
}

func (f *failingOutput) Write(context.Context, model.Evaluation) error {
	f.writes++
	return errors.New("disk full")
}

func (f *failingOutput) Close() error { return nil }

func loadCorpus(t *testing.T, defaultUsage model.Usage, requireLabels bool) *Source {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, testdata.WriteDataDir(dir))
	src, err := LoadSource(dir, testdata.Levels, defaultUsage, requireLabels)
	require.NoError(t, err)
	return src
}

func TestMergeTwoBackends(t *testing.T) {
	levels := []model.Level{
		{ID: "2", Labels: []string{"X", "Y"}},
		{ID: "3", Labels: []string{"Z"}},
	}
	ids := []string{"a1", "a2"}
	tables := [][]*model.PredictionTable{
		{
			{IDs: ids, Values: [][]int{{1, 0}, {0, 1}}},
			{IDs: ids, Values: [][]int{{1}, {0}}},
		},
		{
			{IDs: ids, Values: [][]int{{0, 0}, {1, 1}}},
			{IDs: ids, Values: [][]int{{0}, {1}}},
		},
	}

	got := mergeTables(ids, []string{"Bert", "SVM"}, levels, tables)

	want := MergedTable{
		Header: []string{"Argument ID", "Method", "X", "Y", "Z"},
		Rows: [][]string{
			{"a1", "Bert", "1", "0", "1"},
			{"a2", "Bert", "0", "1", "0"},
			{"a1", "SVM", "0", "0", "0"},
			{"a2", "SVM", "1", "1", "1"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merged table mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeSingleBackendSkippedLevel(t *testing.T) {
	levels := []model.Level{
		{ID: "2", Labels: []string{"X"}},
		{ID: "3", Labels: []string{"Y", "Z"}},
	}
	ids := []string{"a1"}
	tables := [][]*model.PredictionTable{{
		{IDs: ids, Values: [][]int{{1}}},
		nil,
	}}

	got := mergeTables(ids, []string{"SVM"}, levels, tables)

	assert.Equal(t, []string{"Argument ID", "X", "Y", "Z"}, got.Header)
	assert.Equal(t, [][]string{{"a1", "1", "", ""}}, got.Rows)
}

func TestPredictSkipsUntrustedArtifact(t *testing.T) {
	src := loadCorpus(t, model.UsageTest, false)
	rejecting := &stub{method: "SVM", hook: func(level model.Level) error {
		if level.ID == "3" {
			return &codec.SecurityError{Path: "svm_train_level3_models.sav", Reason: "legacy format"}
		}
		return nil
	}}
	out := filepath.Join(t.TempDir(), "out", PredictionsFile)

	p := New([]backend.Backend{rejecting}, nil)
	res, err := p.Predict(context.Background(), PredictInput{
		Arguments:  src.Arguments,
		Levels:     src.Levels,
		OutputPath: out,
	})
	require.NoError(t, err)

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "3", res.Skipped[0].Level)
	assert.Equal(t, "SVM", res.Skipped[0].Method)
	assert.Contains(t, res.Skipped[0].Reason, "legacy format")
	assert.Nil(t, res.Tables[0][1])

	require.Len(t, res.Merged.Rows, len(testdata.TestIDs))
	for _, row := range res.Merged.Rows {
		assert.Equal(t, []string{"1", "1", "1"}, row[1:4], "level 2 cells")
		assert.Equal(t, []string{"", "", ""}, row[4:7], "level 3 cells")
	}

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, lines, 1+len(testdata.TestIDs))
	assert.Equal(t, "A11\t1\t1\t1\t\t\t", lines[1])
}

func TestPredictSurvivesFailingOutput(t *testing.T) {
	src := loadCorpus(t, model.UsageTest, false)
	sink := &failingOutput{}
	out := filepath.Join(t.TempDir(), PredictionsFile)

	res, err := New([]backend.Backend{&stub{method: "SVM"}}, sink).Predict(context.Background(), PredictInput{
		Arguments:  src.Arguments,
		Levels:     src.Levels,
		Labels:     src.Labels,
		OutputPath: out,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sink.writes)
	assert.Len(t, res.Evaluations, 2)
	assert.Len(t, res.Merged.Rows, len(testdata.TestIDs))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Argument ID\tAchievement\t"))
}

func TestTrainSurvivesFailingOutput(t *testing.T) {
	src := loadCorpus(t, model.UsageTrain, true)
	sink := &failingOutput{}

	res, err := New([]backend.Backend{baseline.New()}, sink).Train(context.Background(), TrainInput{
		Arguments: src.Arguments,
		Levels:    src.Levels,
		Labels:    src.Labels,
		ModelDir:  t.TempDir(),
		Validate:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sink.writes)
	assert.Len(t, res.Trained, 2)
}

func TestPredictOtherErrorsAreFatal(t *testing.T) {
	src := loadCorpus(t, model.UsageTest, false)
	failing := &stub{method: "SVM", hook: func(model.Level) error { return os.ErrPermission }}

	_, err := New([]backend.Backend{failing}, nil).Predict(context.Background(), PredictInput{
		Arguments: src.Arguments,
		Levels:    src.Levels,
	})
	require.ErrorIs(t, err, os.ErrPermission)
}

func TestPredictMissingArtifact(t *testing.T) {
	src := loadCorpus(t, model.UsageTest, false)
	p := New([]backend.Backend{linear.New(linear.DefaultSolverConfig())}, nil)

	_, err := p.Predict(context.Background(), PredictInput{
		Arguments: src.Arguments,
		Levels:    src.Levels,
		ModelDir:  t.TempDir(),
	})
	require.ErrorIs(t, err, ErrMissingArtifact)
}

func TestPredictDuplicateLabel(t *testing.T) {
	src := loadCorpus(t, model.UsageTest, false)
	levels := []model.Level{
		{ID: "2", Labels: []string{"Achievement"}},
		{ID: "3", Labels: []string{"Achievement"}},
	}

	_, err := New([]backend.Backend{&stub{method: "SVM"}}, nil).Predict(context.Background(), PredictInput{
		Arguments: src.Arguments,
		Levels:    levels,
	})
	require.ErrorIs(t, err, ErrDuplicateLabel)
}

func TestPredictParallelKeepsLevelOrder(t *testing.T) {
	src := loadCorpus(t, model.UsageTest, false)
	level3Done := make(chan struct{})
	var once sync.Once
	ordered := &stub{method: "Bert", hook: func(level model.Level) error {
		switch level.ID {
		case "2":
			select {
			case <-level3Done:
			case <-time.After(5 * time.Second):
			}
		case "3":
			once.Do(func() { close(level3Done) })
		}
		return nil
	}}
	rec := &recorder{}

	p := New([]backend.Backend{ordered}, rec, WithParallel(2))
	res, err := p.Predict(context.Background(), PredictInput{
		Arguments: src.Arguments,
		Levels:    src.Levels,
		Labels:    src.Labels,
	})
	require.NoError(t, err)

	require.Len(t, rec.evals, 2)
	assert.Equal(t, "2", rec.evals[0].Level)
	assert.Equal(t, "3", rec.evals[1].Level)
	assert.Equal(t, []string{"Argument ID", "Achievement", "Security: personal", "Universalism: nature",
		"Conservation", "Self-enhancement", "Self-transcendence"}, res.Merged.Header)
}

func TestTrainRequiresLabels(t *testing.T) {
	src := loadCorpus(t, model.UsageTrain, true)
	delete(src.Labels, "3")

	_, err := New([]backend.Backend{baseline.New()}, nil).Train(context.Background(), TrainInput{
		Arguments: src.Arguments,
		Levels:    src.Levels,
		Labels:    src.Labels,
		ModelDir:  t.TempDir(),
	})
	require.ErrorIs(t, err, ErrNoLabels)
}

func TestTrainCancelled(t *testing.T) {
	src := loadCorpus(t, model.UsageTrain, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New([]backend.Backend{baseline.New()}, nil).Train(ctx, TrainInput{
		Arguments: src.Arguments,
		Levels:    src.Levels,
		Labels:    src.Labels,
		ModelDir:  t.TempDir(),
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestTrainEmptyValidationIsSkipped(t *testing.T) {
	src := loadCorpus(t, model.UsageTrain, true)
	args := make([]model.Argument, len(src.Arguments))
	for i, a := range src.Arguments {
		a.Usage = model.UsageTrain
		args[i] = a
	}
	rec := &recorder{}

	res, err := New([]backend.Backend{baseline.New()}, rec).Train(context.Background(), TrainInput{
		Arguments: args,
		Levels:    src.Levels,
		Labels:    src.Labels,
		ModelDir:  t.TempDir(),
		Validate:  true,
	})
	require.NoError(t, err)
	assert.Len(t, res.Trained, 2)
	assert.Empty(t, rec.evals)
}

func TestTrainThenPredict(t *testing.T) {
	modelDir := t.TempDir()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	backends := []backend.Backend{baseline.New(), linear.New(linear.DefaultSolverConfig())}

	trainSrc := loadCorpus(t, model.UsageTrain, true)
	trainRec := &recorder{}
	trained, err := New(backends, trainRec, WithClock(func() time.Time { return fixed })).Train(context.Background(), TrainInput{
		RunID:     "run-train",
		Arguments: trainSrc.Arguments,
		Levels:    trainSrc.Levels,
		Labels:    trainSrc.Labels,
		ModelDir:  modelDir,
		Validate:  true,
	})
	require.NoError(t, err)
	assert.Len(t, trained.Trained, 4)
	require.Len(t, trainRec.evals, 4)
	for _, ev := range trainRec.evals {
		assert.Equal(t, "run-train", ev.RunID)
		assert.Equal(t, model.UsageValidation, ev.Partition)
		assert.Equal(t, fixed, ev.At)
	}
	assert.FileExists(t, linear.ModelsPath(filepath.Join(modelDir, "svm", "svm_train_level2")))
	assert.FileExists(t, linear.VectorizerPath(filepath.Join(modelDir, "svm", "svm_train_level3")))

	predictSrc := loadCorpus(t, model.UsageTest, false)
	predictRec := &recorder{}
	out := filepath.Join(t.TempDir(), PredictionsFile)
	p := New(backends, predictRec)
	res, err := p.Predict(context.Background(), PredictInput{
		Arguments:  predictSrc.Arguments,
		Levels:     predictSrc.Levels,
		Labels:     predictSrc.Labels,
		ModelDir:   modelDir,
		OutputPath: out,
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.True(t, predictRec.closed)
	assert.NotEmpty(t, res.RunID)
	assert.Empty(t, res.Skipped)

	// Two backends: one block of test rows per backend, baseline first.
	require.Len(t, res.Merged.Rows, 2*len(testdata.TestIDs))
	assert.Equal(t, "Method", res.Merged.Header[1])
	for i, row := range res.Merged.Rows {
		assert.Len(t, row, len(res.Merged.Header))
		want := "1-Baseline"
		if i >= len(testdata.TestIDs) {
			want = "SVM"
		}
		assert.Equal(t, want, row[1])
		assert.Equal(t, testdata.TestIDs[i%len(testdata.TestIDs)], row[0])
	}

	// Baseline on level 2: F1 Achievement 0.4, Security 0.67, Nature 0.67.
	require.Len(t, predictRec.evals, 4)
	ev := predictRec.evals[0]
	assert.Equal(t, "2", ev.Level)
	assert.Equal(t, "1-Baseline", ev.Method)
	assert.Equal(t, model.UsageTest, ev.Partition)
	assert.InDelta(t, 0.58, ev.AvgF1, 1e-9)
	assert.InDelta(t, 5.0/12.0, ev.Accuracy, 1e-9)
	assert.InDelta(t, 0.4, ev.F1["Achievement"], 1e-9)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Argument ID\tMethod\tAchievement\t"))
}

func TestLoadSourceMissingDataDir(t *testing.T) {
	_, err := LoadSource(filepath.Join(t.TempDir(), "absent"), testdata.Levels, model.UsageTest, false)
	require.Error(t, err)
}

func TestLoadSourceUnknownLevel(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, testdata.WriteDataDir(dir))

	_, err := LoadSource(dir, []string{"2", "9"}, model.UsageTest, false)
	require.ErrorIs(t, err, config.ErrInvalid)
	require.ErrorIs(t, err, taxonomy.ErrUnknownLevel)
}

func TestLoadSourceRequiresLabelsForTraining(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, testdata.WriteDataDir(dir))
	require.NoError(t, os.Remove(filepath.Join(dir, LabelsFile("3"))))

	src, err := LoadSource(dir, testdata.Levels, model.UsageTest, false)
	require.NoError(t, err)
	assert.Contains(t, src.Labels, "2")
	assert.NotContains(t, src.Labels, "3")

	_, err = LoadSource(dir, testdata.Levels, model.UsageTrain, true)
	require.ErrorIs(t, err, os.ErrNotExist)
}
