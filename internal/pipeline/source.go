package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crimson-sun/argval/internal/config"
	"github.com/crimson-sun/argval/internal/dataset"
	"github.com/crimson-sun/argval/internal/model"
	"github.com/crimson-sun/argval/internal/tabular"
	"github.com/crimson-sun/argval/internal/taxonomy"
)

// File names inside the data and output directories.
const (
	ArgumentsFile   = "arguments.tsv"
	ValuesFile      = "values.json"
	PredictionsFile = "predictions.tsv"
)

// LabelsFile is the per-level annotation file name.
func LabelsFile(levelID string) string {
	return "labels-level" + levelID + ".tsv"
}

// ErrNoArguments means the argument file had no usable rows.
var ErrNoArguments = errors.New("pipeline: no arguments")

// Source is everything read from a data directory for one run.
type Source struct {
	Arguments []model.Argument
	Levels    []model.Level
	// Labels holds the annotation rows per level ID. Levels without a
	// label file are absent.
	Labels map[string]*dataset.LabelRows
}

// LoadSource reads arguments.tsv, values.json and the label file of each
// requested level. Label files are mandatory when requireLabels is set and
// optional otherwise.
func LoadSource(dataDir string, levelIDs []string, defaultUsage model.Usage, requireLabels bool) (*Source, error) {
	if info, err := os.Stat(dataDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("pipeline: data directory %q does not exist", dataDir)
	}

	tax, err := taxonomy.Load(filepath.Join(dataDir, ValuesFile))
	if err != nil {
		return nil, err
	}
	levels, err := tax.Select(levelIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}

	args, err := tabular.LoadArguments(filepath.Join(dataDir, ArgumentsFile), defaultUsage)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoArguments, filepath.Join(dataDir, ArgumentsFile))
	}

	src := &Source{Arguments: args, Levels: levels, Labels: make(map[string]*dataset.LabelRows, len(levels))}
	for _, level := range levels {
		path := filepath.Join(dataDir, LabelsFile(level.ID))
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !requireLabels {
			continue
		}
		rows, err := tabular.LoadLabels(path, level.Labels)
		if err != nil {
			return nil, err
		}
		src.Labels[level.ID] = rows
	}
	return src, nil
}
