// Package codec translates model parameters to and from on-disk formats
// that hold only plain numeric and string data. Decoding never
// instantiates code or objects named by the artifact.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/crimson-sun/argval/internal/atomicfile"
)

// MaxArtifactSize bounds how much of an artifact is read into memory.
const MaxArtifactSize = 256 << 20

// JSON keys of the two linear-ensemble records.
const (
	keyVocabulary = "vocabulary"
	keyIDF        = "idf"
	keyIntercept  = "intercept"
	keyCoef       = "coef"
)

// legacyExtensions are the file suffixes of the retired serialized-object
// format. Such files are never opened for parsing.
var legacyExtensions = []string{".sav", ".pkl", ".pickle"}

// VectorizerRecord is the persisted TF-IDF state.
type VectorizerRecord struct {
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
}

// LinearParams is the persisted state of one per-label linear classifier.
type LinearParams struct {
	Intercept float64   `json:"intercept"`
	Coef      []float64 `json:"coef"`
}

// EncodeVectorizer writes rec to path as JSON, replacing any previous file.
func EncodeVectorizer(path string, rec VectorizerRecord) error {
	if err := checkVectorizer(path, rec); err != nil {
		return err
	}
	return writeJSON(path, rec)
}

// EncodeLinearModels writes the per-label parameters to path as JSON.
func EncodeLinearModels(path string, models map[string]LinearParams) error {
	for label, p := range models {
		if err := checkParams(path, label, p, -1); err != nil {
			return err
		}
	}
	return writeJSON(path, models)
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("codec: encode %s: %w", path, err)
	}
	if err := atomicfile.Write(path, data, 0o644); err != nil {
		return fmt.Errorf("codec: %w", err)
	}
	return nil
}

// DecodeVectorizer reads and validates a vectorizer record.
func DecodeVectorizer(path string) (VectorizerRecord, error) {
	var rec VectorizerRecord
	data, err := readArtifact(path)
	if err != nil {
		return rec, err
	}
	if err := decodeStrict(path, data, &rec); err != nil {
		return rec, err
	}
	if rec.Vocabulary == nil || rec.IDF == nil {
		return rec, reject(path, "record must contain %q and %q", keyVocabulary, keyIDF)
	}
	if err := checkVectorizer(path, rec); err != nil {
		return VectorizerRecord{}, err
	}
	return rec, nil
}

// DecodeLinearModels reads the per-label parameter record, requires every
// label in labels and checks each coefficient vector has nFeatures entries.
// Labels in the file but not requested are ignored.
func DecodeLinearModels(path string, labels []string, nFeatures int) (map[string]LinearParams, error) {
	data, err := readArtifact(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := decodeStrict(path, data, &raw); err != nil {
		return nil, err
	}

	models := make(map[string]LinearParams, len(labels))
	for _, label := range labels {
		entry, ok := raw[label]
		if !ok {
			return nil, reject(path, "no parameters for label %q", label)
		}
		var p struct {
			Intercept *float64  `json:"intercept"`
			Coef      []float64 `json:"coef"`
		}
		if err := decodeStrict(path, entry, &p); err != nil {
			return nil, err
		}
		if p.Intercept == nil || p.Coef == nil {
			return nil, reject(path, "label %q must contain %q and %q", label, keyIntercept, keyCoef)
		}
		params := LinearParams{Intercept: *p.Intercept, Coef: p.Coef}
		if err := checkParams(path, label, params, nFeatures); err != nil {
			return nil, err
		}
		models[label] = params
	}
	return models, nil
}

// readArtifact loads the file after ruling out the legacy object format.
func readArtifact(path string) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, legacy := range legacyExtensions {
		if ext == legacy {
			return nil, reject(path, "legacy serialized-object format (%s) is not supported; retrain to produce JSON artifacts", ext)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxArtifactSize+1))
	if err != nil {
		return nil, fmt.Errorf("codec: read %s: %w", path, err)
	}
	if len(data) > MaxArtifactSize {
		return nil, reject(path, "file exceeds %d bytes", MaxArtifactSize)
	}
	if looksLikePickle(data) {
		return nil, reject(path, "content is a serialized object stream, not plain data")
	}
	return data, nil
}

// looksLikePickle detects protocol 2+ streams (PROTO opcode 0x80) and the
// text protocols, which open with MARK, GLOBAL or a dict/list opcode.
func looksLikePickle(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return false
	}
	switch trimmed[0] {
	case 0x80:
		return true
	case '(', 'c', '}', ']':
		return true
	}
	return false
}

// decodeStrict parses one JSON object, rejecting unknown fields, trailing
// data and anything that is not an object at the top level.
func decodeStrict(path string, data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return reject(path, "top-level value is not a JSON object")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return reject(path, "malformed record: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return reject(path, "trailing data after record")
	}
	return nil
}

func checkVectorizer(path string, rec VectorizerRecord) error {
	n := len(rec.IDF)
	if n == 0 {
		return reject(path, "empty idf vector")
	}
	if len(rec.Vocabulary) != n {
		return reject(path, "vocabulary has %d terms but idf has %d entries", len(rec.Vocabulary), n)
	}
	seen := make([]bool, n)
	for term, idx := range rec.Vocabulary {
		if idx < 0 || idx >= n {
			return reject(path, "term %q has index %d outside [0,%d)", term, idx, n)
		}
		if seen[idx] {
			return reject(path, "index %d assigned to more than one term", idx)
		}
		seen[idx] = true
	}
	for i, x := range rec.IDF {
		if math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
			return reject(path, "idf[%d] = %v is not a positive finite number", i, x)
		}
	}
	return nil
}

// checkParams validates one label; nFeatures < 0 skips the length check.
func checkParams(path, label string, p LinearParams, nFeatures int) error {
	if nFeatures >= 0 && len(p.Coef) != nFeatures {
		return reject(path, "label %q has %d coefficients, vectorizer has %d features", label, len(p.Coef), nFeatures)
	}
	if math.IsNaN(p.Intercept) || math.IsInf(p.Intercept, 0) {
		return reject(path, "label %q intercept is not finite", label)
	}
	for i, c := range p.Coef {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return reject(path, "label %q coef[%d] is not finite", label, i)
		}
	}
	return nil
}
