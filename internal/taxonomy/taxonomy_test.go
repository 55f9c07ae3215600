package taxonomy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hierarchyJSON = `{
  "values": [
    {
      "name": "Self-direction: thought",
      "level2": "Be creative",
      "level3": ["Openness to change", "Personal focus"],
      "level4a": ["Growth, Anxiety-free"],
      "level4b": ["Personal focus"]
    },
    {
      "name": "Achievement",
      "level2": "Be ambitious",
      "level3": ["Self-enhancement", "Personal focus"],
      "level4a": ["Self-protection, Anxiety avoidance"],
      "level4b": ["Personal focus"]
    }
  ]
}`

func writeValues(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "values.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadHierarchy(t *testing.T) {
	tax, err := Load(writeValues(t, hierarchyJSON))
	require.NoError(t, err)

	assert.Equal(t, DefaultLevels(), tax.IDs())

	l1, ok := tax.Level("1")
	require.True(t, ok)
	assert.Equal(t, []string{"Achievement", "Self-direction: thought"}, l1.Labels)

	l3, _ := tax.Level("3")
	assert.Equal(t, []string{"Openness to change", "Personal focus", "Self-enhancement"}, l3.Labels)

	l4b, _ := tax.Level("4b")
	assert.Equal(t, []string{"Personal focus"}, l4b.Labels, "duplicates collapse")
}

func TestLoadExplicitLists(t *testing.T) {
	path := writeValues(t, `{"level": ["1", "2"], "1": ["Z", "A", "Z"], "2": ["b"]}`)

	tax, err := Load(path)
	require.NoError(t, err)

	levels := tax.Levels()
	require.Len(t, levels, 2)
	assert.Equal(t, []string{"Z", "A"}, levels[0].Labels, "explicit order is kept")
	assert.Equal(t, "2", levels[1].ID)
}

func TestLoadExplicitMissingList(t *testing.T) {
	_, err := Load(writeValues(t, `{"level": ["1", "2"], "1": ["A"]}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownLevel))
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load(writeValues(t, `{"other": 1}`))
	require.Error(t, err)

	_, err = Load(writeValues(t, `not json`))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestSelect(t *testing.T) {
	tax, err := Load(writeValues(t, hierarchyJSON))
	require.NoError(t, err)

	levels, err := tax.Select([]string{"4a", "1"})
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, "4a", levels[0].ID)
	assert.Equal(t, "1", levels[1].ID)

	_, err = tax.Select([]string{"5"})
	assert.True(t, errors.Is(err, ErrUnknownLevel))
}

func TestLevelReturnsCopy(t *testing.T) {
	tax := New([]Value{{Name: "Power: dominance"}})
	l, _ := tax.Level("1")
	l.Labels[0] = "changed"

	again, _ := tax.Level("1")
	assert.Equal(t, "Power: dominance", again.Labels[0])
}

func TestSelectEmptyLevel(t *testing.T) {
	tax := New([]Value{{Name: "Power: dominance"}})
	_, err := tax.Select([]string{"2"})
	assert.True(t, errors.Is(err, ErrUnknownLevel))
}
