package argval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/crimson-sun/argval/internal/backend"
	"github.com/crimson-sun/argval/internal/backend/linear"
	"github.com/crimson-sun/argval/internal/model"
	"github.com/crimson-sun/argval/internal/pipeline"
	"github.com/crimson-sun/argval/internal/testdata"
)

// trainCorpus trains the SVM ensemble for every corpus level and returns the
// data and model directories.
func trainCorpus(t *testing.T) (dataDir, modelDir string) {
	t.Helper()
	root := t.TempDir()
	dataDir = filepath.Join(root, "data")
	modelDir = filepath.Join(root, "models")
	if err := testdata.WriteDataDir(dataDir); err != nil {
		t.Fatal(err)
	}
	src, err := pipeline.LoadSource(dataDir, testdata.Levels, model.UsageTrain, true)
	if err != nil {
		t.Fatal(err)
	}
	p := pipeline.New([]backend.Backend{linear.New(linear.DefaultSolverConfig())}, nil)
	if _, err := p.Train(context.Background(), pipeline.TrainInput{
		Arguments: src.Arguments,
		Levels:    src.Levels,
		Labels:    src.Labels,
		ModelDir:  modelDir,
	}); err != nil {
		t.Fatalf("Train() error: %v", err)
	}
	return dataDir, modelDir
}

func TestNewWithValues(t *testing.T) {
	dataDir, modelDir := trainCorpus(t)

	c, err := New(WithModelDir(modelDir), WithLevel("2"), WithValues(filepath.Join(dataDir, "values.json")))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if c.Level() != "2" {
		t.Errorf("Level() = %q", c.Level())
	}
	want := []string{"Achievement", "Security: personal", "Universalism: nature"}
	if !slices.Equal(c.Labels(), want) {
		t.Errorf("Labels() = %v, want %v", c.Labels(), want)
	}

	p := c.Classify("we must protect forests and rivers for future generations")
	if !slices.Contains(p.Values, "Universalism: nature") {
		t.Errorf("Values = %v, want Universalism: nature among them", p.Values)
	}
	if len(p.Scores) != len(want) {
		t.Errorf("got %d scores, want %d", len(p.Scores), len(want))
	}
	for label, s := range p.Scores {
		if (s > 0) != slices.Contains(p.Values, label) {
			t.Errorf("label %q score %f disagrees with Values %v", label, s, p.Values)
		}
	}
}

func TestClassifyBatchMatchesClassify(t *testing.T) {
	_, modelDir := trainCorpus(t)
	c, err := New(WithModelDir(modelDir), WithLevel("3"),
		WithLabels("Conservation", "Self-enhancement", "Self-transcendence"))
	if err != nil {
		t.Fatal(err)
	}

	texts := []string{"police keep families safe from crime", "ambition drives success in every career", ""}
	batch := c.ClassifyBatch(texts)
	if len(batch) != len(texts) {
		t.Fatalf("got %d predictions, want %d", len(batch), len(texts))
	}
	for i, text := range texts {
		single := c.Classify(text)
		if !slices.Equal(single.Values, batch[i].Values) {
			t.Errorf("text %q: Classify %v vs ClassifyBatch %v", text, single.Values, batch[i].Values)
		}
	}
}

func TestEvaluate(t *testing.T) {
	_, modelDir := trainCorpus(t)
	c, err := New(WithModelDir(modelDir), WithLevel("2"),
		WithLabels("Achievement", "Security: personal", "Universalism: nature"))
	if err != nil {
		t.Fatal(err)
	}
	avg, acc, err := c.Evaluate([]string{"a", "b"}, [][]int{{0, 0, 1}, {1, 0, 0}})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if avg < 0 || avg > 1 || acc < 0 || acc > 1 {
		t.Errorf("scores out of range: avg=%f acc=%f", avg, acc)
	}
	if _, _, err := c.Evaluate([]string{"a"}, [][]int{{1}}); err == nil {
		t.Error("expected shape error")
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(WithLabels("X")); err == nil {
		t.Error("expected error without level")
	}
	if _, err := New(WithLevel("2")); err == nil {
		t.Error("expected error without labels")
	}
	if _, err := New(WithModelDir("/nonexistent/path"), WithLevel("2"), WithLabels("X")); err == nil {
		t.Error("expected error for missing model files")
	}
}

func TestLegacyModelRejected(t *testing.T) {
	_, modelDir := trainCorpus(t)
	models := linear.ModelsPath(filepath.Join(modelDir, "svm", "svm_train_level2"))
	// A pickle protocol 2 stream in place of the JSON models.
	if err := os.WriteFile(models, []byte("\x80\x02}q\x00."), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New(WithModelDir(modelDir), WithLevel("2"),
		WithLabels("Achievement", "Security: personal", "Universalism: nature"))
	if !errors.Is(err, ErrUntrustedModel) {
		t.Fatalf("expected ErrUntrustedModel, got %v", err)
	}
}
