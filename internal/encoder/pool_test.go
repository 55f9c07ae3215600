package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanPoolMasked(t *testing.T) {
	// Two rows, seqLen 3, dim 2. Row 0 has two real tokens, row 1 none.
	hidden := []float32{
		1, 2, 3, 4, 100, 100,
		7, 7, 7, 7, 7, 7,
	}
	mask := []int64{1, 1, 0, 0, 0, 0}

	got := meanPool(hidden, mask, 2, 3, 2)
	assert.Equal(t, [][]float32{{2, 3}, {0, 0}}, got)
}

func TestMeanPoolSingleToken(t *testing.T) {
	got := meanPool([]float32{0.5, -0.5, 9, 9}, []int64{1, 0}, 1, 2, 2)
	assert.Equal(t, [][]float32{{0.5, -0.5}}, got)
}
