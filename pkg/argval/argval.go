package argval

import (
	"errors"
	"fmt"

	"github.com/crimson-sun/argval/internal/backend/linear"
	"github.com/crimson-sun/argval/internal/codec"
	"github.com/crimson-sun/argval/internal/metrics"
	"github.com/crimson-sun/argval/internal/taxonomy"
)

// ErrUntrustedModel is reported when a model file is not plain, well-formed
// parameter data, including legacy pickle files.
var ErrUntrustedModel = codec.ErrUntrustedArtifact

// Prediction is the classification of one text.
type Prediction struct {
	Text string `json:"text"`
	// Values are the predicted labels in level order.
	Values []string `json:"values"`
	// Scores are the raw decision values per label; positive means predicted.
	Scores map[string]float64 `json:"scores"`
}

// Classifier applies one trained level.
type Classifier struct {
	level string
	ens   *linear.Ensemble
}

// New loads the SVM ensemble of one level.
func New(opts ...Option) (*Classifier, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.level == "" {
		return nil, errors.New("argval: no level selected")
	}

	labels := o.labels
	if len(labels) == 0 {
		if o.valuesPath == "" {
			return nil, errors.New("argval: labels unknown, use WithLabels or WithValues")
		}
		tax, err := taxonomy.Load(o.valuesPath)
		if err != nil {
			return nil, fmt.Errorf("argval: %w", err)
		}
		levels, err := tax.Select([]string{o.level})
		if err != nil {
			return nil, fmt.Errorf("argval: %w", err)
		}
		labels = levels[0].Labels
	}

	loc := linear.New(linear.DefaultSolverConfig()).Location(o.modelDir, o.level)
	ens, err := linear.Load(loc, labels)
	if err != nil {
		return nil, fmt.Errorf("argval: %w", err)
	}
	return &Classifier{level: o.level, ens: ens}, nil
}

// Level returns the loaded taxonomy level.
func (c *Classifier) Level() string { return c.level }

// Labels returns the level's labels in column order.
func (c *Classifier) Labels() []string {
	return append([]string(nil), c.ens.Labels...)
}

// Classify classifies a single premise.
func (c *Classifier) Classify(text string) Prediction {
	return c.ClassifyBatch([]string{text})[0]
}

// ClassifyBatch classifies several premises at once.
func (c *Classifier) ClassifyBatch(texts []string) []Prediction {
	scores := c.ens.Scores(texts)
	out := make([]Prediction, len(texts))
	for i, text := range texts {
		p := Prediction{Text: text, Values: []string{}, Scores: make(map[string]float64, len(c.ens.Labels))}
		for j, label := range c.ens.Labels {
			s := scores[i][j]
			p.Scores[label] = s
			if s > 0 {
				p.Values = append(p.Values, label)
			}
		}
		out[i] = p
	}
	return out
}

// Evaluate scores the classifier against a 0/1 truth matrix in label order
// and returns the macro F1 and accuracy.
func (c *Classifier) Evaluate(texts []string, truth [][]int) (avgF1, accuracy float64, err error) {
	report, err := metrics.Score(metrics.Ints(c.ens.Classify(texts)), metrics.Ints(truth), c.ens.Labels)
	if err != nil {
		return 0, 0, fmt.Errorf("argval: %w", err)
	}
	return report.AvgF1, report.Accuracy, nil
}
