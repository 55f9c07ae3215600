// Package ledger keeps a SQLite history of training and prediction runs
// and every evaluation they produced.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/crimson-sun/argval/internal/model"

	_ "modernc.org/sqlite"
)

// Run describes one invocation of train or predict.
type Run struct {
	ID        string
	Mode      string
	Levels    []string
	Backends  []string
	ModelDir  string
	StartedAt time.Time
}

// Ledger is an output.Output backed by SQLite.
type Ledger struct {
	db *sql.DB
	// mu serializes writers from concurrent level goroutines.
	mu sync.Mutex
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger: create dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: ping sqlite: %w", err)
	}
	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	if _, err := l.db.Exec(schemaV1); err != nil {
		return fmt.Errorf("ledger: create schema: %w", err)
	}
	var v int
	err := l.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := l.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersion); err != nil {
			return fmt.Errorf("ledger: set schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("ledger: read schema version: %w", err)
	case v != schemaVersion:
		return fmt.Errorf("ledger: unknown schema version %d", v)
	}
	return nil
}

// BeginRun records a run so its evaluations can reference it.
func (l *Ledger) BeginRun(ctx context.Context, r Run) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO runs(id, mode, levels, backends, model_dir, started_at) VALUES(?, ?, ?, ?, ?, ?)",
		r.ID, r.Mode, strings.Join(r.Levels, ","), strings.Join(r.Backends, ","), r.ModelDir,
		r.StartedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("ledger: insert run: %w", err)
	}
	return nil
}

// Write stores one evaluation. Its RunID must have been passed to BeginRun.
func (l *Ledger) Write(ctx context.Context, ev model.Evaluation) error {
	f1, err := json.Marshal(ev.F1)
	if err != nil {
		return fmt.Errorf("ledger: marshal f1: %w", err)
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO evaluations(run_id, level, method, split, avg_f1, accuracy, f1_json, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.RunID, ev.Level, ev.Method, string(ev.Partition), ev.AvgF1, ev.Accuracy, string(f1),
		at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("ledger: insert evaluation: %w", err)
	}
	return nil
}

// Filter narrows History; empty fields match everything.
type Filter struct {
	Level     string
	Method    string
	Partition model.Usage
	Limit     int
}

// History returns matching evaluations, newest first.
func (l *Ledger) History(ctx context.Context, f Filter) ([]model.Evaluation, error) {
	var (
		where []string
		args  []any
	)
	if f.Level != "" {
		where, args = append(where, "level = ?"), append(args, f.Level)
	}
	if f.Method != "" {
		where, args = append(where, "method = ?"), append(args, f.Method)
	}
	if f.Partition != "" {
		where, args = append(where, "split = ?"), append(args, string(f.Partition))
	}
	q := "SELECT run_id, level, method, split, avg_f1, accuracy, f1_json, created_at FROM evaluations"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id DESC"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query: %w", err)
	}
	defer rows.Close()

	var out []model.Evaluation
	for rows.Next() {
		var (
			ev        model.Evaluation
			partition string
			f1, at    string
		)
		if err := rows.Scan(&ev.RunID, &ev.Level, &ev.Method, &partition, &ev.AvgF1, &ev.Accuracy, &f1, &at); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		ev.Partition = model.Usage(partition)
		if err := json.Unmarshal([]byte(f1), &ev.F1); err != nil {
			return nil, fmt.Errorf("ledger: decode f1: %w", err)
		}
		if ev.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("ledger: decode time: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Best returns the highest macro-F1 evaluation for a level and method.
func (l *Ledger) Best(ctx context.Context, level, method string) (*model.Evaluation, error) {
	all, err := l.History(ctx, Filter{Level: level, Method: method})
	if err != nil {
		return nil, err
	}
	var best *model.Evaluation
	for i := range all {
		if best == nil || all[i].AvgF1 > best.AvgF1 {
			best = &all[i]
		}
	}
	return best, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
