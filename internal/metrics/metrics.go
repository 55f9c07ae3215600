// Package metrics scores multi-label predictions: per-label F1, macro F1 and
// thresholded accuracy.
package metrics

import (
	"encoding/json"
	"fmt"
	"math"
)

// Threshold is the strict cut-off: a probability p is positive iff p > Threshold.
const Threshold = 0.5

// LabelScore is the rounded F1 of one label column.
type LabelScore struct {
	Label string
	F1    float64
}

// Report is the result of scoring one prediction matrix against the truth.
type Report struct {
	Labels   []LabelScore
	AvgF1    float64
	Accuracy float64
}

// F1 returns the rounded F1 of label, or 0 when the label was not scored.
func (r Report) F1(label string) float64 {
	for _, s := range r.Labels {
		if s.Label == label {
			return s.F1
		}
	}
	return 0
}

// F1Map returns the per-label scores keyed by label.
func (r Report) F1Map() map[string]float64 {
	m := make(map[string]float64, len(r.Labels))
	for _, s := range r.Labels {
		m[s.Label] = s.F1
	}
	return m
}

// MarshalJSON renders {"f1": {...}, "avg_f1": x, "accuracy": y}.
func (r Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		F1       map[string]float64 `json:"f1"`
		AvgF1    float64            `json:"avg_f1"`
		Accuracy float64            `json:"accuracy"`
	}{r.F1Map(), r.AvgF1, r.Accuracy})
}

type options struct {
	sigmoid bool
}

// Option configures Score.
type Option func(*options)

// WithSigmoid applies the logistic function to every prediction before
// thresholding. Use it when the backend emits raw logits.
func WithSigmoid() Option {
	return func(o *options) { o.sigmoid = true }
}

// Sigmoid is the logistic function.
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Positive applies the strict threshold.
func Positive(p float64) bool {
	return p > Threshold
}

// Round2 rounds half to even at two decimals, matching the numeric library
// the reference scores were produced with.
func Round2(x float64) float64 {
	return math.RoundToEven(x*100) / 100
}

// Score compares pred against truth column by column. Both matrices must have
// the same number of rows and len(labels) columns. An empty matrix yields a
// report with zero scores.
func Score(pred, truth [][]float64, labels []string, opts ...Option) (Report, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if len(pred) != len(truth) {
		return Report{}, fmt.Errorf("metrics: %d prediction rows vs %d truth rows", len(pred), len(truth))
	}
	for i := range pred {
		if len(pred[i]) != len(labels) || len(truth[i]) != len(labels) {
			return Report{}, fmt.Errorf("metrics: row %d has %d/%d columns, want %d",
				i, len(pred[i]), len(truth[i]), len(labels))
		}
	}

	type counts struct{ tp, fp, fn int }
	perLabel := make([]counts, len(labels))
	matches, cells := 0, 0

	for i := range pred {
		for j := range labels {
			p := pred[i][j]
			if o.sigmoid {
				p = Sigmoid(p)
			}
			predicted := Positive(p)
			actual := truth[i][j] != 0

			if predicted == actual {
				matches++
			}
			cells++
			switch {
			case predicted && actual:
				perLabel[j].tp++
			case predicted && !actual:
				perLabel[j].fp++
			case !predicted && actual:
				perLabel[j].fn++
			}
		}
	}

	r := Report{Labels: make([]LabelScore, len(labels))}
	var sum float64
	for j, name := range labels {
		c := perLabel[j]
		f1 := 0.0
		if denom := 2*c.tp + c.fp + c.fn; denom > 0 {
			f1 = float64(2*c.tp) / float64(denom)
		}
		f1 = Round2(f1)
		r.Labels[j] = LabelScore{Label: name, F1: f1}
		sum += f1
	}
	if len(labels) > 0 {
		r.AvgF1 = Round2(sum / float64(len(labels)))
	}
	if cells > 0 {
		r.Accuracy = float64(matches) / float64(cells)
	}
	return r, nil
}

// Ints converts a 0/1 integer matrix for Score.
func Ints(m [][]int) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = float64(v)
		}
	}
	return out
}
