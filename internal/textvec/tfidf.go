// Package textvec implements the TF-IDF vectorizer shared by every
// per-label linear classifier of one taxonomy level.
package textvec

import (
	"errors"
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Config controls tokenization. It is a plain value passed to Fit and
// carried by the fitted Vectorizer; there is no package-level state.
type Config struct {
	// StopWords drops English stop words during fitting.
	StopWords bool
	// MinTokenLen is the minimum token length in runes.
	MinTokenLen int
}

// DefaultConfig matches the settings the reference models were trained with.
func DefaultConfig() Config {
	return Config{StopWords: true, MinTokenLen: 2}
}

// SparseVector is an L2-normalised TF-IDF row: parallel index/value slices
// sorted by index.
type SparseVector struct {
	Indices []int
	Values  []float64
}

// Dot returns the dot product with a dense weight vector. Indices outside
// the weights are ignored.
func (v SparseVector) Dot(w []float64) float64 {
	var sum float64
	for k, idx := range v.Indices {
		if idx < len(w) {
			sum += v.Values[k] * w[idx]
		}
	}
	return sum
}

// SquaredNorm returns the squared L2 norm.
func (v SparseVector) SquaredNorm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += x * x
	}
	return sum
}

// Vectorizer is a fitted vocabulary with its inverse document frequencies.
// It is immutable after Fit or New and safe for concurrent use.
type Vectorizer struct {
	cfg        Config
	vocabulary map[string]int
	idf        []float64
}

// ErrEmptyVocabulary is returned when fitting produces no terms.
var ErrEmptyVocabulary = errors.New("textvec: empty vocabulary; documents contain only stop words or are empty")

// Tokenize lowercases text and splits it into runs of letters, digits and
// underscores at least cfg.MinTokenLen runes long.
func Tokenize(cfg Config, text string) []string {
	text = strings.ToLower(norm.NFC.String(text))

	var tokens []string
	var b strings.Builder
	n := 0
	flush := func() {
		if n >= cfg.MinTokenLen && n > 0 {
			tokens = append(tokens, b.String())
		}
		b.Reset()
		n = 0
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
			n++
			continue
		}
		flush()
	}
	flush()
	return tokens
}

func (c Config) analyze(text string) []string {
	tokens := Tokenize(c, text)
	if !c.StopWords {
		return tokens
	}
	out := tokens[:0]
	for _, t := range tokens {
		if !IsStopWord(t) {
			out = append(out, t)
		}
	}
	return out
}

// Fit learns the vocabulary and smooth IDF weights from docs. Terms are
// indexed in alphabetical order and idf = ln((1+n)/(1+df)) + 1.
func Fit(cfg Config, docs []string) (*Vectorizer, error) {
	df := map[string]int{}
	for _, doc := range docs {
		seen := map[string]bool{}
		for _, tok := range cfg.analyze(doc) {
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}
	if len(df) == 0 {
		return nil, ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	vocab := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	for i, t := range terms {
		vocab[t] = i
		idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}
	return &Vectorizer{cfg: cfg, vocabulary: vocab, idf: idf}, nil
}

// New rebuilds a Vectorizer from persisted parameters. The caller is
// responsible for validating them; see the codec package.
func New(cfg Config, vocabulary map[string]int, idf []float64) *Vectorizer {
	v := &Vectorizer{cfg: cfg, vocabulary: make(map[string]int, len(vocabulary)), idf: append([]float64(nil), idf...)}
	for t, i := range vocabulary {
		v.vocabulary[t] = i
	}
	return v
}

// Size returns the number of features.
func (v *Vectorizer) Size() int { return len(v.idf) }

// Vocabulary returns a copy of the term-to-index mapping.
func (v *Vectorizer) Vocabulary() map[string]int {
	out := make(map[string]int, len(v.vocabulary))
	for t, i := range v.vocabulary {
		out[t] = i
	}
	return out
}

// IDF returns a copy of the inverse document frequency vector.
func (v *Vectorizer) IDF() []float64 {
	return append([]float64(nil), v.idf...)
}

// Transform maps one document to its L2-normalised TF-IDF vector. Terms
// outside the vocabulary are ignored.
func (v *Vectorizer) Transform(doc string) SparseVector {
	counts := map[int]float64{}
	for _, tok := range Tokenize(v.cfg, doc) {
		if idx, ok := v.vocabulary[tok]; ok {
			counts[idx]++
		}
	}

	vec := SparseVector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		vec.Indices = append(vec.Indices, idx)
	}
	sort.Ints(vec.Indices)

	var norm2 float64
	for _, idx := range vec.Indices {
		x := counts[idx] * v.idf[idx]
		vec.Values = append(vec.Values, x)
		norm2 += x * x
	}
	if norm2 > 0 {
		inv := 1 / math.Sqrt(norm2)
		for k := range vec.Values {
			vec.Values[k] *= inv
		}
	}
	return vec
}

// TransformAll maps docs in order.
func (v *Vectorizer) TransformAll(docs []string) []SparseVector {
	out := make([]SparseVector, len(docs))
	for i, d := range docs {
		out[i] = v.Transform(d)
	}
	return out
}
