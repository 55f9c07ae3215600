package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/argval/internal/config"
	"github.com/crimson-sun/argval/internal/format"
	"github.com/crimson-sun/argval/internal/ledger"
	"github.com/crimson-sun/argval/internal/model"
)

var historyFlags struct {
	level     string
	method    string
	partition string
	limit     int
	best      bool
	markdown  bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded evaluations from the ledger",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.level, "level", "", "Only this taxonomy level")
	f.StringVar(&historyFlags.method, "method", "", "Only this method (Bert, SVM, 1-Baseline)")
	f.StringVar(&historyFlags.partition, "partition", "", "Only this partition (validation, test)")
	f.IntVar(&historyFlags.limit, "limit", 20, "Maximum rows")
	f.BoolVar(&historyFlags.best, "best", false, "Show only the highest macro F1 for --level and --method")
	f.BoolVar(&historyFlags.markdown, "markdown", false, "Render a Markdown table")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Output.LedgerPath == "" {
		return fmt.Errorf("%w: history needs --ledger or ARGVAL_LEDGER", config.ErrInvalid)
	}
	part := model.Usage(historyFlags.partition)
	if part != "" && !part.Valid() {
		return fmt.Errorf("%w: unknown partition %q", config.ErrInvalid, historyFlags.partition)
	}

	l, err := ledger.Open(cfg.Output.LedgerPath)
	if err != nil {
		return err
	}
	defer l.Close()

	ctx := cmd.Context()
	var evals []model.Evaluation
	if historyFlags.best {
		if historyFlags.level == "" || historyFlags.method == "" {
			return fmt.Errorf("%w: --best needs --level and --method", config.ErrInvalid)
		}
		ev, err := l.Best(ctx, historyFlags.level, historyFlags.method)
		if err != nil {
			return err
		}
		if ev == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "no evaluations recorded")
			return nil
		}
		evals = append(evals, *ev)
	} else {
		evals, err = l.History(ctx, ledger.Filter{
			Level:     historyFlags.level,
			Method:    historyFlags.method,
			Partition: part,
			Limit:     historyFlags.limit,
		})
		if err != nil {
			return err
		}
	}

	mode := format.ASCII
	if historyFlags.markdown {
		mode = format.Markdown
	}
	fmt.Fprint(cmd.OutOrStdout(), renderHistory(evals, mode))
	return nil
}

func renderHistory(evals []model.Evaluation, mode format.Mode) string {
	tbl := format.NewTable(mode)
	tbl.Header("Run", "Level", "Method", "Partition", "Macro F1", "Accuracy", "At")
	tbl.Columns(
		format.Column{Number: 1, MaxWidth: 8},
		format.Column{Number: 5, Align: format.AlignRight},
		format.Column{Number: 6, Align: format.AlignRight},
	)
	for _, ev := range evals {
		tbl.Row(
			format.Truncate(ev.RunID, 8),
			ev.Level,
			ev.Method,
			string(ev.Partition),
			format.Score(ev.AvgF1),
			format.Score(ev.Accuracy),
			ev.At.UTC().Format("2006-01-02 15:04:05"),
		)
	}
	return tbl.String() + "\n"
}
