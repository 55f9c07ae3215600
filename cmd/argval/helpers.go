package main

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/argval/internal/backend"
	"github.com/crimson-sun/argval/internal/backend/baseline"
	"github.com/crimson-sun/argval/internal/backend/linear"
	"github.com/crimson-sun/argval/internal/backend/neural"
	"github.com/crimson-sun/argval/internal/config"
	"github.com/crimson-sun/argval/internal/ledger"
	"github.com/crimson-sun/argval/internal/logging"
	"github.com/crimson-sun/argval/internal/output"
	"github.com/crimson-sun/argval/internal/output/async"
	"github.com/crimson-sun/argval/internal/output/file"
	"github.com/crimson-sun/argval/internal/output/multi"
	"github.com/crimson-sun/argval/internal/output/stdout"
	"github.com/crimson-sun/argval/internal/output/webhook"
)

// blockOrder fixes the row block order of the merged prediction table.
var blockOrder = []string{neural.Name, linear.Name, baseline.Name}

// loadConfig layers environment, the optional YAML file and explicitly set
// flags, validates the result and initializes logging.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Load()
	if rootFlags.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(rootFlags.configPath); err != nil {
			return cfg, err
		}
	}

	f := cmd.Flags()
	if f.Changed("data-dir") {
		cfg.DataDir = rootFlags.dataDir
	}
	if f.Changed("model-dir") {
		cfg.ModelDir = rootFlags.modelDir
	}
	if f.Changed("levels") {
		cfg.Levels = rootFlags.levels
	}
	if f.Changed("classifier") {
		cfg.Classifiers = []string{rootFlags.classifiers}
	}
	if f.Changed("parallel") {
		cfg.Parallel = rootFlags.parallel
	}
	if f.Changed("log-level") {
		cfg.Log.Level = rootFlags.logLevel
	}
	if f.Changed("log-format") {
		cfg.Log.Format = rootFlags.logFormat
	}
	if f.Changed("report-file") {
		cfg.Output.ReportFile = rootFlags.reportFile
	}
	if f.Changed("ledger") {
		cfg.Output.LedgerPath = rootFlags.ledgerPath
	}
	if f.Changed("webhook") {
		cfg.Output.WebhookURL = rootFlags.webhookURL
	}
	if f.Changed("style") {
		cfg.Output.Style = rootFlags.style
	}
	if f.Changed("verbosity") {
		cfg.Output.Verbosity = rootFlags.verbosity
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, cmd.ErrOrStderr())
	return cfg, nil
}

// buildBackends constructs the selected backends in merged-table order.
func buildBackends(cfg config.Config) ([]backend.Backend, error) {
	names, err := cfg.Backends()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	slices.SortStableFunc(names, func(a, b string) int {
		return rank(a) - rank(b)
	})

	settings := cfg.Settings()
	backends := make([]backend.Backend, 0, len(names))
	for _, name := range names {
		ctor, err := backend.Get(name)
		if err != nil {
			return nil, err
		}
		b, err := ctor(settings)
		if err != nil {
			return nil, fmt.Errorf("create backend %s: %w", name, err)
		}
		backends = append(backends, b)
	}
	return backends, nil
}

func rank(name string) int {
	if i := slices.Index(blockOrder, name); i >= 0 {
		return i
	}
	return len(blockOrder)
}

func methods(backends []backend.Backend) []string {
	out := make([]string, len(backends))
	for i, b := range backends {
		out[i] = b.Method()
	}
	return out
}

// openOutputs assembles the evaluation sinks named by cfg. The ledger, when
// configured, records run first.
func openOutputs(ctx context.Context, cmd *cobra.Command, cfg config.Config, run ledger.Run) (output.Output, error) {
	verbosity := output.ParseVerbosity(cfg.Output.Verbosity)
	style := stdout.Table
	if cfg.Output.Style == "json" {
		style = stdout.JSON
	}
	outs := []output.Output{stdout.New(style, verbosity, stdout.WithWriter(cmd.OutOrStdout()))}

	closeAll := func() {
		for _, o := range outs {
			o.Close()
		}
	}

	if cfg.Output.ReportFile != "" {
		f, err := file.New(cfg.Output.ReportFile, verbosity)
		if err != nil {
			closeAll()
			return nil, err
		}
		outs = append(outs, f)
	}

	if cfg.Output.LedgerPath != "" {
		l, err := ledger.Open(cfg.Output.LedgerPath)
		if err != nil {
			closeAll()
			return nil, err
		}
		if err := l.BeginRun(ctx, run); err != nil {
			l.Close()
			closeAll()
			return nil, err
		}
		outs = append(outs, l)
	}

	if cfg.Output.WebhookURL != "" {
		log := logging.New("cli")
		hook := webhook.New(cfg.Output.WebhookURL, verbosity)
		outs = append(outs, async.New(hook,
			async.WithDrainTimeout(10*time.Second),
			async.WithOnError(func(err error) {
				log.Warn("webhook delivery failed", "error", err)
			}),
		))
	}

	return multi.New(outs...), nil
}

func newRun(id, mode string, cfg config.Config, backends []backend.Backend) ledger.Run {
	return ledger.Run{
		ID:        id,
		Mode:      mode,
		Levels:    cfg.Levels,
		Backends:  methods(backends),
		ModelDir:  cfg.ModelDir,
		StartedAt: time.Now().UTC(),
	}
}

func logRun(log *slog.Logger, msg string, cfg config.Config, backends []backend.Backend, runID string) {
	log.Info(msg,
		logging.KeyRunID, runID,
		"levels", strings.Join(cfg.Levels, ","),
		"backends", strings.Join(methods(backends), ","),
		"data_dir", cfg.DataDir,
		"model_dir", cfg.ModelDir,
	)
}
