package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath  string
	dataDir     string
	modelDir    string
	levels      []string
	classifiers string
	parallel    int
	logLevel    string
	logFormat   string
	reportFile  string
	ledgerPath  string
	webhookURL  string
	style       string
	verbosity   string
}

var rootCmd = &cobra.Command{
	Use:   "argval",
	Short: "Multi-level human value classification of arguments",
	Long: "argval trains one multi-label classifier per taxonomy level on an annotated\n" +
		"argument corpus and writes merged per-argument value predictions.",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configPath, "config", "", "YAML configuration file")
	f.StringVarP(&rootFlags.dataDir, "data-dir", "d", "", "Directory with arguments.tsv, values.json and labels-level<L>.tsv")
	f.StringVarP(&rootFlags.modelDir, "model-dir", "m", "", "Directory holding trained models")
	f.StringSliceVarP(&rootFlags.levels, "levels", "l", nil, "Comma-separated taxonomy levels (default 1,2,3,4a,4b)")
	f.StringVarP(&rootFlags.classifiers, "classifier", "c", "", "Classifier letters: b=Bert, s=SVM, o=1-Baseline (default b)")
	f.IntVar(&rootFlags.parallel, "parallel", 1, "Number of levels processed concurrently")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text or json")
	f.StringVar(&rootFlags.reportFile, "report-file", "", "Append evaluations as JSON lines to this file")
	f.StringVar(&rootFlags.ledgerPath, "ledger", "", "Record runs and evaluations in this SQLite database")
	f.StringVar(&rootFlags.webhookURL, "webhook", "", "POST evaluations to this URL")
	f.StringVar(&rootFlags.style, "style", "", "Evaluation report style on stdout: table or json")
	f.StringVar(&rootFlags.verbosity, "verbosity", "", "Evaluation detail: summary or detailed")

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.Version = version
}
