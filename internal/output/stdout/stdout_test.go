package stdout

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/crimson-sun/argval/internal/format"
	"github.com/crimson-sun/argval/internal/model"
	"github.com/crimson-sun/argval/internal/output"
)

func testEvaluation() model.Evaluation {
	return model.Evaluation{
		Level:     "1",
		Method:    "SVM",
		Partition: model.UsageValidation,
		AvgF1:     0.84,
		Accuracy:  0.8333,
		F1:        map[string]float64{"Y": 0.67, "X": 1},
		At:        time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC),
	}
}

func TestJSONLines(t *testing.T) {
	var buf bytes.Buffer
	out := New(JSON, output.Summary, WithWriter(&buf))
	out.Write(context.Background(), testEvaluation())
	out.Write(context.Background(), testEvaluation())
	out.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if m["method"] != "SVM" || m["avg_f1"] != 0.84 {
		t.Errorf("unexpected record: %v", m)
	}
	if _, ok := m["f1"]; ok {
		t.Error("summary verbosity should omit per-label scores")
	}
}

func TestTableRenderedOnClose(t *testing.T) {
	var buf bytes.Buffer
	out := New(Table, output.Detailed, WithWriter(&buf), WithTableMode(format.Markdown))
	out.Write(context.Background(), testEvaluation())
	if buf.Len() != 0 {
		t.Fatal("table mode should not print before Close")
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	got := buf.String()
	for _, want := range []string{"| Level", "SVM", "0.84", "0.83", "X=1.00 Y=0.67"} {
		if !strings.Contains(got, want) {
			t.Errorf("table missing %q:\n%s", want, got)
		}
	}
}

func TestTableEmptyPrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	out := New(Table, output.Summary, WithWriter(&buf))
	out.Close()
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
