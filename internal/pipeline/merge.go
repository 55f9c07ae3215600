package pipeline

import (
	"strconv"

	"github.com/crimson-sun/argval/internal/dataset"
	"github.com/crimson-sun/argval/internal/model"
)

// MethodColumn tags each merged row with the backend that produced it.
const MethodColumn = "Method"

// MergedTable is the combined prediction output of every level and backend.
type MergedTable struct {
	Header []string
	Rows   [][]string
}

// mergeTables lays out one contiguous row block per backend, in the order of
// methods. tables is indexed [backend][level]; a nil table marks a skipped
// pair and leaves its cells empty.
func mergeTables(ids []string, methods []string, levels []model.Level, tables [][]*model.PredictionTable) MergedTable {
	withMethod := len(methods) > 1

	header := []string{dataset.IDColumn}
	if withMethod {
		header = append(header, MethodColumn)
	}
	for _, level := range levels {
		header = append(header, level.Labels...)
	}

	rows := make([][]string, 0, len(ids)*len(methods))
	for b, method := range methods {
		index := make([]map[string]int, len(levels))
		for l := range levels {
			if t := tables[b][l]; t != nil {
				index[l] = make(map[string]int, len(t.IDs))
				for i, id := range t.IDs {
					index[l][id] = i
				}
			}
		}

		for _, id := range ids {
			row := make([]string, 0, len(header))
			row = append(row, id)
			if withMethod {
				row = append(row, method)
			}
			for l, level := range levels {
				t := tables[b][l]
				i, ok := -1, false
				if t != nil {
					i, ok = index[l][id]
				}
				for j := range level.Labels {
					if !ok {
						row = append(row, "")
						continue
					}
					row = append(row, strconv.Itoa(t.Values[i][j]))
				}
			}
			rows = append(rows, row)
		}
	}
	return MergedTable{Header: header, Rows: rows}
}
