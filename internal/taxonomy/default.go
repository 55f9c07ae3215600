package taxonomy

// DefaultLevels returns the five taxonomy levels in processing order.
func DefaultLevels() []string {
	return []string{"1", "2", "3", "4a", "4b"}
}
