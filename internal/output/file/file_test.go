package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crimson-sun/argval/internal/model"
	"github.com/crimson-sun/argval/internal/output"
)

func testEvaluation(level string) model.Evaluation {
	return model.Evaluation{
		RunID:     "0b6f8d3e-run",
		Level:     level,
		Method:    "SVM",
		Partition: model.UsageTest,
		AvgF1:     0.42,
		Accuracy:  0.9,
		F1:        map[string]float64{"Achievement": 0.42},
		At:        time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC),
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestWriteProducesValidNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "eval.jsonl")
	out, err := New(path, output.Detailed)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	for _, level := range []string{"1", "2", "3"} {
		if err := out.Write(context.Background(), testEvaluation(level)); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	for i, line := range lines {
		var rec output.Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Errorf("line %d: invalid JSON: %v", i, err)
		}
		if rec.F1["Achievement"] != 0.42 {
			t.Errorf("line %d: per-label F1 missing at detailed verbosity", i)
		}
	}
}

func TestReportsAccumulateAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eval.jsonl")
	for run := 0; run < 2; run++ {
		out, err := New(path, output.Summary)
		if err != nil {
			t.Fatalf("New error: %v", err)
		}
		out.Write(context.Background(), testEvaluation("1"))
		out.Close()
	}
	if lines := readLines(t, path); len(lines) != 2 {
		t.Errorf("got %d lines, want 2", len(lines))
	}
}

func TestRotationTriggersAtMaxSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eval.jsonl")
	out, err := New(path, output.Summary, WithMaxSize(200))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := out.Write(context.Background(), testEvaluation("4a")); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	out.Close()

	if _, err := os.Stat(path + ".1"); os.IsNotExist(err) {
		t.Error("expected rotated file .1 to exist")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("current file stat error: %v", err)
	}
	if info.Size() == 0 {
		t.Error("current file is empty after rotation")
	}
}

func TestConcurrentWritesSafe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eval.jsonl")
	out, err := New(path, output.Summary)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out.Write(context.Background(), testEvaluation("2"))
		}()
	}
	wg.Wait()
	out.Close()

	if lines := readLines(t, path); len(lines) != 50 {
		t.Errorf("got %d lines, want 50", len(lines))
	}
}
