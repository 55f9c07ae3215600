// Package testdata embeds a small annotated argument corpus in the data
// directory layout read by the train and predict commands.
package testdata

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed corpus
var corpus embed.FS

// Levels are the taxonomy levels defined by the corpus values.json.
var Levels = []string{"2", "3"}

// TestIDs are the arguments tagged for the test partition, in file order.
var TestIDs = []string{"A11", "A12", "A13", "A14"}

// Files lists the corpus file names.
func Files() ([]string, error) {
	entries, err := fs.ReadDir(corpus, "corpus")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// WriteDataDir copies the corpus into dir, which is created if needed.
func WriteDataDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("testdata: %w", err)
	}
	names, err := Files()
	if err != nil {
		return fmt.Errorf("testdata: %w", err)
	}
	for _, name := range names {
		data, err := corpus.ReadFile("corpus/" + name)
		if err != nil {
			return fmt.Errorf("testdata: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("testdata: %w", err)
		}
	}
	return nil
}
