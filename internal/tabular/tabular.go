// Package tabular reads and writes the tab-separated files exchanged with
// annotators: arguments.tsv, labels-level<L>.tsv and predictions.tsv.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/crimson-sun/argval/internal/atomicfile"
	"github.com/crimson-sun/argval/internal/dataset"
	"github.com/crimson-sun/argval/internal/logging"
	"github.com/crimson-sun/argval/internal/model"
)

// Argument file columns. Only ID and Premise are required.
const (
	ColID         = dataset.IDColumn
	ColConclusion = "Conclusion"
	ColStance     = "Stance"
	ColPremise    = "Premise"
	ColPart       = "Part"
	ColUsage      = "Usage"
)

// readAll parses a UTF-8 TSV with a header row into the header and a list
// of records keyed by column name.
func readAll(path string) ([]string, []map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("tabular: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("tabular: %s is empty", path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("tabular: read header of %s: %w", path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records []map[string]string
	for line := 2; ; line++ {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("tabular: %s line %d: %w", path, line, err)
		}
		rec := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(fields) {
				rec[col] = fields[i]
			}
		}
		records = append(records, rec)
	}
	return header, records, nil
}

func missingColumns(header []string, required []string) []string {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	var missing []string
	for _, c := range required {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// LoadArguments reads arguments.tsv. When the file has no Usage column every
// argument is tagged with defaultUsage. A repeated Argument ID keeps its
// first row; later rows are dropped with a warning.
func LoadArguments(path string, defaultUsage model.Usage) ([]model.Argument, error) {
	header, records, err := readAll(path)
	if err != nil {
		return nil, err
	}
	if missing := missingColumns(header, []string{ColID, ColPremise}); len(missing) > 0 {
		return nil, &dataset.MissingColumnError{Source: path, Columns: missing}
	}
	hasUsage := len(missingColumns(header, []string{ColUsage})) == 0

	log := logging.New("tabular")
	seen := make(map[string]bool, len(records))
	args := make([]model.Argument, 0, len(records))
	for i, rec := range records {
		id := strings.TrimSpace(rec[ColID])
		if seen[id] {
			log.Warn("duplicate argument ID, row dropped", "id", id, "line", i+2, logging.KeyPath, path)
			continue
		}
		seen[id] = true
		a := model.Argument{
			ID:         id,
			Conclusion: rec[ColConclusion],
			Stance:     rec[ColStance],
			Premise:    rec[ColPremise],
			Part:       rec[ColPart],
		}
		if hasUsage {
			a.Usage = model.Usage(strings.TrimSpace(rec[ColUsage]))
		} else {
			a.Usage = defaultUsage
		}
		args = append(args, a)
	}
	return args, nil
}

// LoadLabels reads labels-level<L>.tsv and keeps only the ID column and the
// labels in labelOrder.
func LoadLabels(path string, labelOrder []string) (*dataset.LabelRows, error) {
	header, records, err := readAll(path)
	if err != nil {
		return nil, err
	}
	required := append([]string{ColID}, labelOrder...)
	if missing := missingColumns(header, required); len(missing) > 0 {
		return nil, &dataset.MissingColumnError{Source: path, Columns: missing}
	}

	rows := &dataset.LabelRows{Source: path, Header: required}
	for _, rec := range records {
		cells := make(map[string]string, len(labelOrder))
		for _, l := range labelOrder {
			cells[l] = rec[l]
		}
		rows.Rows = append(rows.Rows, dataset.LabelRow{ID: strings.TrimSpace(rec[ColID]), Cells: cells})
	}
	return rows, nil
}

// WriteTable replaces path with a header line and rows, tab-separated and
// unquoted. Tabs and line breaks inside cells become spaces.
func WriteTable(path string, header []string, rows [][]string) error {
	var b strings.Builder
	writeLine(&b, header)
	for _, row := range rows {
		writeLine(&b, row)
	}
	if err := atomicfile.Write(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("tabular: %w", err)
	}
	return nil
}

var cellEscaper = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")

func writeLine(b *strings.Builder, cells []string) {
	for i, c := range cells {
		if i > 0 {
			b.WriteByte('\t')
		}
		b.WriteString(cellEscaper.Replace(c))
	}
	b.WriteByte('\n')
}
