package neural

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/crimson-sun/argval/internal/codec"
)

// ErrLabelMismatch means a stored head was trained for different labels,
// or the same labels in a different order.
var ErrLabelMismatch = errors.New("neural: stored labels differ from requested labels")

const (
	headFile   = "head.safetensors"
	configFile = "config.json"

	weightTensor = "classifier.weight"
	biasTensor   = "classifier.bias"
)

// Head is the multi-label classification layer: one logit per label,
// logits = W·x + b with W stored row-major [labels, dim].
type Head struct {
	Labels []string
	Dim    int
	W      []float32
	B      []float32
}

// NewHead returns a zero-initialized head.
func NewHead(labels []string, dim int) *Head {
	return &Head{
		Labels: append([]string(nil), labels...),
		Dim:    dim,
		W:      make([]float32, len(labels)*dim),
		B:      make([]float32, len(labels)),
	}
}

// Logits computes the raw label scores for one pooled vector.
func (h *Head) Logits(x []float32) []float64 {
	out := make([]float64, len(h.Labels))
	for j := range h.Labels {
		row := h.W[j*h.Dim : (j+1)*h.Dim]
		sum := float64(h.B[j])
		for d, w := range row {
			sum += float64(w) * float64(x[d])
		}
		out[j] = sum
	}
	return out
}

// Clone returns a deep copy.
func (h *Head) Clone() *Head {
	return &Head{
		Labels: append([]string(nil), h.Labels...),
		Dim:    h.Dim,
		W:      append([]float32(nil), h.W...),
		B:      append([]float32(nil), h.B...),
	}
}

// headConfig is the config.json written beside the tensors.
type headConfig struct {
	Labels    []string `json:"labels"`
	Dim       int      `json:"dim"`
	Epochs    int      `json:"epochs"`
	BestEpoch int      `json:"best_epoch"`
}

// save writes head.safetensors and config.json into dir.
func (h *Head) save(dir string, epochs, bestEpoch int) error {
	labels, err := json.Marshal(h.Labels)
	if err != nil {
		return err
	}
	tensors := map[string]codec.Tensor{
		weightTensor: {Shape: []int{len(h.Labels), h.Dim}, Data: h.W},
		biasTensor:   {Shape: []int{len(h.Labels)}, Data: h.B},
	}
	if err := codec.WriteTensors(filepath.Join(dir, headFile), tensors, map[string]string{"labels": string(labels)}); err != nil {
		return err
	}
	return codec.EncodeRecord(filepath.Join(dir, configFile), headConfig{
		Labels:    h.Labels,
		Dim:       h.Dim,
		Epochs:    epochs,
		BestEpoch: bestEpoch,
	})
}

// loadHead reads a head from dir and checks it was trained for exactly
// labels, in order.
func loadHead(dir string, labels []string) (*Head, error) {
	var cfg headConfig
	if err := codec.DecodeRecord(filepath.Join(dir, configFile), &cfg); err != nil {
		return nil, err
	}
	if !equalLabels(cfg.Labels, labels) {
		return nil, fmt.Errorf("%w: stored %v, requested %v", ErrLabelMismatch, cfg.Labels, labels)
	}

	path := filepath.Join(dir, headFile)
	tensors, _, err := codec.ReadTensors(path)
	if err != nil {
		return nil, err
	}
	w, okW := tensors[weightTensor]
	b, okB := tensors[biasTensor]
	if !okW || !okB {
		return nil, &codec.SecurityError{Path: path, Reason: "missing classifier tensors"}
	}
	if len(w.Shape) != 2 || w.Shape[0] != len(labels) || w.Shape[1] != cfg.Dim ||
		len(b.Shape) != 1 || b.Shape[0] != len(labels) {
		return nil, &codec.SecurityError{Path: path, Reason: fmt.Sprintf("tensor shapes %v/%v do not match %d labels x %d dims", w.Shape, b.Shape, len(labels), cfg.Dim)}
	}
	return &Head{Labels: cfg.Labels, Dim: cfg.Dim, W: w.Data, B: b.Data}, nil
}

func equalLabels(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
