package model

// Partition is one usage split of a LabeledDataset. Labels has one row per
// argument and one column per level label, each cell 0 or 1.
type Partition struct {
	Arguments []Argument
	Labels    [][]int
}

// Len returns the number of arguments.
func (p Partition) Len() int { return len(p.Arguments) }

// Premises returns the premise text of every argument in row order.
func (p Partition) Premises() []string {
	out := make([]string, len(p.Arguments))
	for i, a := range p.Arguments {
		out[i] = a.Premise
	}
	return out
}

// IDs returns the argument identifiers in row order.
func (p Partition) IDs() []string {
	out := make([]string, len(p.Arguments))
	for i, a := range p.Arguments {
		out[i] = a.ID
	}
	return out
}

// Column returns column j of the label matrix.
func (p Partition) Column(j int) []int {
	col := make([]int, len(p.Labels))
	for i, row := range p.Labels {
		col[i] = row[j]
	}
	return col
}

// LabeledDataset holds the three disjoint partitions for one level.
type LabeledDataset struct {
	Level      Level
	Train      Partition
	Validation Partition
	Test       Partition
}
