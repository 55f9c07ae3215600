package textvec

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	cfg := DefaultConfig()
	got := Tokenize(cfg, "We MUST protect the planet's forests, a 2nd time! x_y é")
	assert.Equal(t, []string{"we", "must", "protect", "the", "planet", "forests", "2nd", "time", "x_y"}, got)
}

func TestFitVocabularyAndIDF(t *testing.T) {
	docs := []string{
		"forests protect nature",
		"nature matters",
		"the and of",
	}
	v, err := Fit(DefaultConfig(), docs)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"forests": 0, "matters": 1, "nature": 2, "protect": 3}, v.Vocabulary())

	idf := v.IDF()
	// n=3: df(nature)=2 -> ln(4/3)+1, others df=1 -> ln(2)+1
	assert.InDelta(t, math.Log(2)+1, idf[0], 1e-12)
	assert.InDelta(t, math.Log(4.0/3.0)+1, idf[2], 1e-12)
}

func TestFitOnlyStopWords(t *testing.T) {
	_, err := Fit(DefaultConfig(), []string{"the and of", ""})
	assert.True(t, errors.Is(err, ErrEmptyVocabulary))
}

func TestTransformNormalised(t *testing.T) {
	v, err := Fit(DefaultConfig(), []string{"forests protect nature", "nature matters"})
	require.NoError(t, err)

	vec := v.Transform("Nature nature unknownword forests")
	assert.Equal(t, []int{0, 2}, vec.Indices)
	assert.InDelta(t, 1.0, vec.SquaredNorm(), 1e-12)
	assert.Greater(t, vec.Values[1], vec.Values[0], "nature appears twice")

	empty := v.Transform("nothing known here")
	assert.Empty(t, empty.Indices)
	assert.Zero(t, empty.Dot([]float64{1, 1, 1, 1}))
}

func TestNewMatchesFit(t *testing.T) {
	docs := []string{"security for families", "tradition and conformity", "security of society"}
	fitted, err := Fit(DefaultConfig(), docs)
	require.NoError(t, err)

	rebuilt := New(DefaultConfig(), fitted.Vocabulary(), fitted.IDF())
	for _, d := range docs {
		assert.Equal(t, fitted.Transform(d), rebuilt.Transform(d))
	}
}
