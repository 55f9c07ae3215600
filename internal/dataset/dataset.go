// Package dataset joins arguments with per-level label annotations and
// splits them into train, validation and test partitions with multi-hot
// label matrices in level label order.
package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/crimson-sun/argval/internal/logging"
	"github.com/crimson-sun/argval/internal/model"
)

// IDColumn is the join key shared by arguments.tsv and labels-level*.tsv.
const IDColumn = "Argument ID"

// MissingColumnError reports a source table lacking a required column.
type MissingColumnError struct {
	Source  string
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("dataset: %s is missing required columns [%s]",
		e.Source, strings.Join(e.Columns, ", "))
}

// LabelRow is one annotated argument. Cells maps label name to the raw cell
// text; a missing key or an empty cell means 0.
type LabelRow struct {
	ID    string
	Cells map[string]string
}

// LabelRows is the parsed content of one label source.
type LabelRows struct {
	Source string
	Header []string
	Rows   []LabelRow
}

func (lr *LabelRows) hasColumn(name string) bool {
	for _, h := range lr.Header {
		if h == name {
			return true
		}
	}
	return false
}

// Assemble joins args with labels for level and partitions the result by
// usage. Arguments without a usage tag take defaultUsage. A nil labels value
// means no annotations are available: every argument is kept and every
// matrix cell is 0.
func Assemble(args []model.Argument, labels *LabelRows, level model.Level, defaultUsage model.Usage) (*model.LabeledDataset, error) {
	log := logging.New("dataset")

	var byID map[string]map[string]string
	if labels != nil {
		var missing []string
		if !labels.hasColumn(IDColumn) {
			missing = append(missing, IDColumn)
		}
		for _, l := range level.Labels {
			if !labels.hasColumn(l) {
				missing = append(missing, l)
			}
		}
		if len(missing) > 0 {
			return nil, &MissingColumnError{Source: labels.Source, Columns: missing}
		}

		byID = make(map[string]map[string]string, len(labels.Rows))
		for _, row := range labels.Rows {
			if _, dup := byID[row.ID]; dup {
				log.Debug("duplicate label row ignored", "id", row.ID, logging.KeyPath, labels.Source)
				continue
			}
			byID[row.ID] = row.Cells
		}
	}

	ds := &model.LabeledDataset{Level: model.Level{
		ID:     level.ID,
		Labels: append([]string(nil), level.Labels...),
	}}

	for _, arg := range args {
		var cells map[string]string
		if byID != nil {
			var ok bool
			if cells, ok = byID[arg.ID]; !ok {
				continue
			}
		}

		usage := arg.Usage
		if usage == "" {
			usage = defaultUsage
		}

		var part *model.Partition
		switch usage {
		case model.UsageTrain:
			part = &ds.Train
		case model.UsageValidation:
			part = &ds.Validation
		case model.UsageTest:
			part = &ds.Test
		default:
			log.Debug("argument with unknown usage skipped", "id", arg.ID, "usage", string(usage))
			continue
		}

		arg.Usage = usage
		part.Arguments = append(part.Arguments, arg)
		part.Labels = append(part.Labels, multiHot(cells, ds.Level.Labels))
	}

	return ds, nil
}

// multiHot builds one matrix row in label order.
func multiHot(cells map[string]string, labels []string) []int {
	row := make([]int, len(labels))
	for j, l := range labels {
		row[j] = cellValue(cells[l])
	}
	return row
}

// cellValue maps an annotation cell to 0/1. Empty and unparsable cells are 0.
func cellValue(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f == 0 {
		return 0
	}
	return 1
}
