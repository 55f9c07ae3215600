package neural

import (
	"math"

	"github.com/crimson-sun/argval/internal/metrics"
)

// LossFunc returns the loss of a batch of logits against 0/1 targets and
// its gradient with respect to each logit.
type LossFunc func(logits [][]float64, targets [][]int) (loss float64, grad [][]float64)

// MetricsFunc scores raw logits against the truth.
type MetricsFunc func(logits [][]float64, truth [][]int, labels []string) (metrics.Report, error)

// BCEWithLogits is binary cross-entropy on sigmoid(logit), averaged over
// every (example, label) cell. Labels are independent decisions.
func BCEWithLogits(logits [][]float64, targets [][]int) (float64, [][]float64) {
	var sum float64
	n := 0
	for _, row := range logits {
		n += len(row)
	}
	if n == 0 {
		return 0, nil
	}
	grad := make([][]float64, len(logits))
	for i, row := range logits {
		grad[i] = make([]float64, len(row))
		for j, z := range row {
			y := float64(targets[i][j])
			// max(z,0) - z*y + log(1+exp(-|z|)) is stable for large |z|.
			sum += math.Max(z, 0) - z*y + math.Log1p(math.Exp(-math.Abs(z)))
			grad[i][j] = (metrics.Sigmoid(z) - y) / float64(n)
		}
	}
	return sum / float64(n), grad
}

// LogitMetrics applies the sigmoid and the strict 0.5 threshold before
// scoring.
func LogitMetrics(logits [][]float64, truth [][]int, labels []string) (metrics.Report, error) {
	return metrics.Score(logits, metrics.Ints(truth), labels, metrics.WithSigmoid())
}
