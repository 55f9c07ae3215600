package backend

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknown is returned for a name or letter no backend is registered under.
var ErrUnknown = errors.New("backend: unknown backend")

// Constructor builds a backend from the shared settings.
type Constructor func(settings Settings) (Backend, error)

type entry struct {
	letter string
	ctor   Constructor
}

var (
	mu       sync.RWMutex
	registry = map[string]entry{}
)

// Register adds a constructor under name and its one-letter CLI alias.
func Register(name, letter string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = entry{letter: letter, ctor: ctor}
}

// Get returns the constructor registered under name or letter.
func Get(name string) (Constructor, error) {
	mu.RLock()
	defer mu.RUnlock()
	if e, ok := registry[name]; ok {
		return e.ctor, nil
	}
	for _, e := range registry {
		if e.letter == name {
			return e.ctor, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknown, name)
}

// Resolve maps a selection to registry names. Each element is either a
// full name or a string of letters such as "bso". Order follows first
// appearance; repeats are dropped.
func Resolve(selection []string) ([]string, error) {
	mu.RLock()
	defer mu.RUnlock()

	byLetter := make(map[string]string, len(registry))
	for name, e := range registry {
		byLetter[e.letter] = name
	}

	var out []string
	seen := map[string]bool{}
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, s := range selection {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := registry[s]; ok {
			add(s)
			continue
		}
		for _, r := range s {
			name, ok := byLetter[string(r)]
			if !ok {
				return nil, fmt.Errorf("%w: %q in %q", ErrUnknown, r, s)
			}
			add(name)
		}
	}
	return out, nil
}

// Names returns all registered backend names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
