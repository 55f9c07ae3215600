package linear

import (
	"fmt"

	"github.com/crimson-sun/argval/internal/codec"
	"github.com/crimson-sun/argval/internal/textvec"
)

// Ensemble is a loaded level model: one shared vectorizer and one
// parameter set per label, in label order. It holds plain numbers only.
type Ensemble struct {
	Labels     []string
	Vectorizer *textvec.Vectorizer
	Params     []Params
}

// Load decodes the artifact pair at location for the given label order.
// Any malformed or foreign content fails with a *codec.SecurityError.
func Load(location string, labels []string) (*Ensemble, error) {
	rec, err := codec.DecodeVectorizer(VectorizerPath(location))
	if err != nil {
		return nil, err
	}
	models, err := codec.DecodeLinearModels(ModelsPath(location), labels, len(rec.IDF))
	if err != nil {
		return nil, err
	}

	e := &Ensemble{
		Labels:     append([]string(nil), labels...),
		Vectorizer: textvec.New(textvec.DefaultConfig(), rec.Vocabulary, rec.IDF),
		Params:     make([]Params, len(labels)),
	}
	for j, label := range labels {
		m := models[label]
		e.Params[j] = Params{Coef: m.Coef, Intercept: m.Intercept}
	}
	return e, nil
}

// Save writes the vectorizer and per-label parameters to location.
func (e *Ensemble) Save(location string) error {
	if len(e.Params) != len(e.Labels) {
		return fmt.Errorf("linear: %d parameter sets for %d labels", len(e.Params), len(e.Labels))
	}
	rec := codec.VectorizerRecord{Vocabulary: e.Vectorizer.Vocabulary(), IDF: e.Vectorizer.IDF()}
	if err := codec.EncodeVectorizer(VectorizerPath(location), rec); err != nil {
		return err
	}
	models := make(map[string]codec.LinearParams, len(e.Labels))
	for j, label := range e.Labels {
		models[label] = codec.LinearParams{Intercept: e.Params[j].Intercept, Coef: e.Params[j].Coef}
	}
	return codec.EncodeLinearModels(ModelsPath(location), models)
}

// Classify returns one 0/1 row per text in label order.
func (e *Ensemble) Classify(texts []string) [][]int {
	out := make([][]int, len(texts))
	for i, text := range texts {
		v := e.Vectorizer.Transform(text)
		row := make([]int, len(e.Params))
		for j, p := range e.Params {
			row[j] = p.Predict(v)
		}
		out[i] = row
	}
	return out
}

// Scores returns the raw decision values, one row per text.
func (e *Ensemble) Scores(texts []string) [][]float64 {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v := e.Vectorizer.Transform(text)
		row := make([]float64, len(e.Params))
		for j, p := range e.Params {
			row[j] = p.Decision(v)
		}
		out[i] = row
	}
	return out
}
