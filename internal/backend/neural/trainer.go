package neural

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/crimson-sun/argval/internal/metrics"
)

// Trainer fits a classification head on pooled encoder vectors.
type Trainer interface {
	Fit(ctx context.Context, req FitRequest) (*FitResult, error)
}

// FitRequest holds encoded training data and the customization points.
type FitRequest struct {
	Labels []string
	TrainX [][]float32
	TrainY [][]int
	// ValX/ValY may be empty; best-epoch selection then falls back to the
	// final epoch.
	ValX    [][]float32
	ValY    [][]int
	Loss    LossFunc
	Metrics MetricsFunc
}

// FitResult is the selected head and, when validation data was given, its
// validation report.
type FitResult struct {
	Head      *Head
	Epochs    int
	BestEpoch int
	Report    *metrics.Report
}

// GradientTrainer runs mini-batch gradient descent with decoupled weight
// decay on the head parameters.
type GradientTrainer struct {
	Epochs       int
	LearningRate float64
	BatchSize    int
	WeightDecay  float64
	Seed         uint64
}

// DefaultTrainer returns the stock schedule.
func DefaultTrainer() GradientTrainer {
	return GradientTrainer{Epochs: 20, LearningRate: 0.05, BatchSize: 8, WeightDecay: 0.01, Seed: 1}
}

// Fit trains for the configured number of epochs and keeps the epoch with
// the highest validation macro F1. Ties keep the earlier epoch.
func (g GradientTrainer) Fit(ctx context.Context, req FitRequest) (*FitResult, error) {
	if len(req.TrainX) == 0 {
		return nil, fmt.Errorf("neural: no training vectors")
	}
	if len(req.TrainX) != len(req.TrainY) {
		return nil, fmt.Errorf("neural: %d vectors vs %d label rows", len(req.TrainX), len(req.TrainY))
	}
	if g.Epochs <= 0 || g.BatchSize <= 0 || g.LearningRate <= 0 {
		return nil, fmt.Errorf("neural: invalid schedule %+v", g)
	}
	loss, score := req.Loss, req.Metrics
	if loss == nil {
		loss = BCEWithLogits
	}
	if score == nil {
		score = LogitMetrics
	}

	dim := len(req.TrainX[0])
	head := NewHead(req.Labels, dim)
	rng := rand.New(rand.NewPCG(g.Seed, g.Seed+1))
	order := make([]int, len(req.TrainX))
	for i := range order {
		order[i] = i
	}

	validate := len(req.ValX) > 0
	res := &FitResult{Epochs: g.Epochs}
	for epoch := 1; epoch <= g.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < len(order); start += g.BatchSize {
			idx := order[start:min(start+g.BatchSize, len(order))]
			g.step(head, req, idx, loss)
		}

		if !validate {
			continue
		}
		report, err := score(logitsOf(head, req.ValX), req.ValY, req.Labels)
		if err != nil {
			return nil, err
		}
		if res.Report == nil || report.AvgF1 > res.Report.AvgF1 {
			res.Head, res.BestEpoch, res.Report = head.Clone(), epoch, &report
		}
	}
	if !validate {
		res.Head, res.BestEpoch = head, g.Epochs
	}
	return res, nil
}

func (g GradientTrainer) step(h *Head, req FitRequest, idx []int, loss LossFunc) {
	xs := make([][]float32, len(idx))
	ys := make([][]int, len(idx))
	for k, i := range idx {
		xs[k], ys[k] = req.TrainX[i], req.TrainY[i]
	}
	if len(h.Labels) == 0 {
		return
	}
	_, grad := loss(logitsOf(h, xs), ys)

	// The loss means over labels as well as examples; undo the label part
	// so each label's step is its batch-mean gradient.
	scale := float64(len(h.Labels)) * g.LearningRate
	decay := float32(1 - g.LearningRate*g.WeightDecay)
	for j := range h.Labels {
		row := h.W[j*h.Dim : (j+1)*h.Dim]
		for d := range row {
			row[d] *= decay
		}
		var gb float64
		for k, x := range xs {
			gz := grad[k][j] * scale
			gb += gz
			for d, v := range x {
				row[d] -= float32(gz * float64(v))
			}
		}
		h.B[j] -= float32(gb)
	}
}

func logitsOf(h *Head, xs [][]float32) [][]float64 {
	out := make([][]float64, len(xs))
	for i, x := range xs {
		out[i] = h.Logits(x)
	}
	return out
}
