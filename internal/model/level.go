package model

// Level is one granularity of the value taxonomy with its ordered labels.
// Label order fixes the column order of every matrix built for the level.
type Level struct {
	ID     string
	Labels []string
}

// Index returns the column of label, or -1.
func (l Level) Index(label string) int {
	for i, name := range l.Labels {
		if name == label {
			return i
		}
	}
	return -1
}

// SameLabels reports whether other lists exactly the same labels in the same order.
func (l Level) SameLabels(other []string) bool {
	if len(l.Labels) != len(other) {
		return false
	}
	for i := range other {
		if l.Labels[i] != other[i] {
			return false
		}
	}
	return true
}
