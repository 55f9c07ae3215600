package model

// Usage is the partition an argument belongs to.
type Usage string

const (
	UsageTrain      Usage = "train"
	UsageValidation Usage = "validation"
	UsageTest       Usage = "test"
)

// Valid reports whether u is one of the three known partitions.
func (u Usage) Valid() bool {
	switch u {
	case UsageTrain, UsageValidation, UsageTest:
		return true
	}
	return false
}

// Argument is one row of arguments.tsv. Only ID and Premise are required.
type Argument struct {
	ID         string
	Conclusion string
	Stance     string
	Premise    string
	Part       string
	Usage      Usage // empty when the source had no Usage cell
}
