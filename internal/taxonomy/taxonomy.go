// Package taxonomy loads the human-value hierarchy from values.json and
// exposes the ordered label list of every taxonomy level.
package taxonomy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/crimson-sun/argval/internal/model"
)

// ErrUnknownLevel is returned by Select for a level the taxonomy does not define.
var ErrUnknownLevel = errors.New("taxonomy: unknown level")

// Value is one entry of the values.json hierarchy: a level-1 value name with
// its labels at the finer levels.
type Value struct {
	Name    string     `json:"name"`
	Level2  stringList `json:"level2"`
	Level3  stringList `json:"level3"`
	Level4a stringList `json:"level4a"`
	Level4b stringList `json:"level4b"`
}

// stringList accepts either a JSON string or an array of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one != "" {
			*s = stringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*s = many
	return nil
}

// Taxonomy holds the ordered label lists per level.
type Taxonomy struct {
	order  []string
	labels map[string][]string
}

// New builds a Taxonomy from the hierarchy. Labels per level are
// deduplicated and sorted, which fixes their column order.
func New(values []Value) *Taxonomy {
	sets := map[string]map[string]bool{}
	add := func(level string, names ...string) {
		if sets[level] == nil {
			sets[level] = map[string]bool{}
		}
		for _, n := range names {
			if n != "" {
				sets[level][n] = true
			}
		}
	}
	for _, v := range values {
		add("1", v.Name)
		add("2", v.Level2...)
		add("3", v.Level3...)
		add("4a", v.Level4a...)
		add("4b", v.Level4b...)
	}

	t := &Taxonomy{labels: map[string][]string{}}
	for _, id := range DefaultLevels() {
		t.order = append(t.order, id)
		t.labels[id] = sortedKeys(sets[id])
	}
	return t
}

// FromLists builds a Taxonomy from explicit, already ordered label lists.
// Duplicates are dropped keeping the first occurrence.
func FromLists(order []string, lists map[string][]string) (*Taxonomy, error) {
	t := &Taxonomy{labels: map[string][]string{}}
	for _, id := range order {
		list, ok := lists[id]
		if !ok {
			return nil, fmt.Errorf("%w %q: no label list", ErrUnknownLevel, id)
		}
		seen := map[string]bool{}
		var labels []string
		for _, l := range list {
			if l == "" || seen[l] {
				continue
			}
			seen[l] = true
			labels = append(labels, l)
		}
		t.order = append(t.order, id)
		t.labels[id] = labels
	}
	return t, nil
}

// Load reads values.json. Two layouts are accepted: the hierarchy
// {"values": [...]} and explicit lists {"level": ["1", ...], "1": [...]}.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: %w", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("taxonomy: parse %s: %w", path, err)
	}

	if raw, ok := doc["values"]; ok {
		var values []Value
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("taxonomy: parse values in %s: %w", path, err)
		}
		return New(values), nil
	}

	raw, ok := doc["level"]
	if !ok {
		return nil, fmt.Errorf("taxonomy: %s has neither \"values\" nor \"level\"", path)
	}
	var order []string
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("taxonomy: parse level list in %s: %w", path, err)
	}
	lists := make(map[string][]string, len(order))
	for _, id := range order {
		raw, ok := doc[id]
		if !ok {
			continue
		}
		var labels []string
		if err := json.Unmarshal(raw, &labels); err != nil {
			return nil, fmt.Errorf("taxonomy: parse level %q in %s: %w", id, path, err)
		}
		lists[id] = labels
	}
	t, err := FromLists(order, lists)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: %s: %w", path, err)
	}
	return t, nil
}

// IDs returns the level identifiers in taxonomy order.
func (t *Taxonomy) IDs() []string {
	return append([]string(nil), t.order...)
}

// Level returns one level by ID.
func (t *Taxonomy) Level(id string) (model.Level, bool) {
	labels, ok := t.labels[id]
	if !ok {
		return model.Level{}, false
	}
	return model.Level{ID: id, Labels: append([]string(nil), labels...)}, true
}

// Levels returns every level in taxonomy order.
func (t *Taxonomy) Levels() []model.Level {
	levels, _ := t.Select(t.order)
	return levels
}

// Select returns the requested levels in the requested order. An unknown
// level or a level without labels is a configuration error.
func (t *Taxonomy) Select(ids []string) ([]model.Level, error) {
	levels := make([]model.Level, 0, len(ids))
	for _, id := range ids {
		l, ok := t.Level(id)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownLevel, id)
		}
		if len(l.Labels) == 0 {
			return nil, fmt.Errorf("%w %q: no labels defined", ErrUnknownLevel, id)
		}
		levels = append(levels, l)
	}
	return levels, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
