package output

import (
	"time"

	"github.com/crimson-sun/argval/internal/model"
)

// Verbosity controls how much of an evaluation a sink renders.
type Verbosity int

const (
	// Summary keeps macro F1 and accuracy only.
	Summary Verbosity = iota
	// Detailed adds the per-label F1 map.
	Detailed
)

// ParseVerbosity maps "detailed"/"full" to Detailed; anything else is Summary.
func ParseVerbosity(s string) Verbosity {
	switch s {
	case "detailed", "full":
		return Detailed
	}
	return Summary
}

// Record is the JSON form of an Evaluation.
type Record struct {
	RunID     string             `json:"run_id,omitempty"`
	Level     string             `json:"level"`
	Method    string             `json:"method"`
	Partition string             `json:"partition"`
	AvgF1     float64            `json:"avg_f1"`
	Accuracy  float64            `json:"accuracy"`
	F1        map[string]float64 `json:"f1,omitempty"`
	At        time.Time          `json:"at"`
}

// FormatEvaluation converts ev to a Record, dropping per-label scores at
// Summary verbosity.
func FormatEvaluation(ev model.Evaluation, v Verbosity) Record {
	r := Record{
		RunID:     ev.RunID,
		Level:     ev.Level,
		Method:    ev.Method,
		Partition: string(ev.Partition),
		AvgF1:     ev.AvgF1,
		Accuracy:  ev.Accuracy,
		At:        ev.At.UTC(),
	}
	if v == Detailed {
		r.F1 = ev.F1
	}
	return r
}
