package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/crimson-sun/argval/internal/logging"
	"github.com/crimson-sun/argval/internal/model"
	"github.com/crimson-sun/argval/internal/pipeline"
)

var predictFlags struct {
	outputDir string
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict values for the test arguments and write predictions.tsv",
	Args:  cobra.NoArgs,
	RunE:  runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringVarP(&predictFlags.outputDir, "output-dir", "o", "", "Directory for predictions.tsv")
}

func runPredict(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("output-dir") {
		cfg.OutputDir = predictFlags.outputDir
	}

	backends, err := buildBackends(cfg)
	if err != nil {
		return err
	}
	src, err := pipeline.LoadSource(cfg.DataDir, cfg.Levels, model.UsageTest, false)
	if errors.Is(err, pipeline.ErrNoArguments) {
		return noArguments(cmd)
	}
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	runID := uuid.NewString()
	out, err := openOutputs(ctx, cmd, cfg, newRun(runID, "predict", cfg, backends))
	if err != nil {
		return err
	}
	p := pipeline.New(backends, out, pipeline.WithParallel(cfg.Parallel))
	defer p.Close()

	log := logging.New("cli")
	logRun(log, "predicting", cfg, backends, runID)
	outPath := filepath.Join(cfg.OutputDir, pipeline.PredictionsFile)
	res, err := p.Predict(ctx, pipeline.PredictInput{
		RunID:      runID,
		Arguments:  src.Arguments,
		Levels:     src.Levels,
		Labels:     src.Labels,
		ModelDir:   cfg.ModelDir,
		OutputPath: outPath,
	})
	if errors.Is(err, pipeline.ErrNoArguments) {
		return noArguments(cmd)
	}
	if err != nil {
		return err
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s level %s: %s\n", s.Method, s.Level, s.Reason)
	}
	log.Info("prediction finished", logging.KeyRunID, runID, logging.KeyRows, len(res.Merged.Rows), logging.KeyPath, outPath)
	return nil
}

// noArguments ends a prediction run that has nothing to predict. It is not
// a failure.
func noArguments(cmd *cobra.Command) error {
	fmt.Fprintln(cmd.ErrOrStderr(), "There are no arguments listed for prediction.")
	return nil
}
