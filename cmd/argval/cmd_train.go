package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/crimson-sun/argval/internal/config"
	"github.com/crimson-sun/argval/internal/logging"
	"github.com/crimson-sun/argval/internal/model"
	"github.com/crimson-sun/argval/internal/pipeline"
)

var trainFlags struct {
	validate bool
	force    bool
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the selected classifiers on every requested level",
	Args:  cobra.NoArgs,
	RunE:  runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.BoolVarP(&trainFlags.validate, "validate", "v", false, "Score each model on the validation partition")
	f.BoolVar(&trainFlags.force, "force", false, "Train even if the model directory is not empty")
}

func runTrain(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("validate") {
		cfg.RunValidation = trainFlags.validate
	}
	if !trainFlags.force {
		if err := checkModelDirEmpty(cfg.ModelDir); err != nil {
			return err
		}
	}

	backends, err := buildBackends(cfg)
	if err != nil {
		return err
	}
	src, err := pipeline.LoadSource(cfg.DataDir, cfg.Levels, model.UsageTrain, true)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	runID := uuid.NewString()
	out, err := openOutputs(ctx, cmd, cfg, newRun(runID, "train", cfg, backends))
	if err != nil {
		return err
	}
	p := pipeline.New(backends, out, pipeline.WithParallel(cfg.Parallel))
	defer p.Close()

	log := logging.New("cli")
	logRun(log, "training", cfg, backends, runID)
	res, err := p.Train(ctx, pipeline.TrainInput{
		RunID:     runID,
		Arguments: src.Arguments,
		Levels:    src.Levels,
		Labels:    src.Labels,
		ModelDir:  cfg.ModelDir,
		Validate:  cfg.RunValidation,
	})
	if err != nil {
		return err
	}
	log.Info("training finished", logging.KeyRunID, runID, "models", len(res.Trained), logging.KeyPath, cfg.ModelDir)
	return nil
}

// checkModelDirEmpty refuses to train into a directory that already holds
// files, so existing models are never overwritten by accident.
func checkModelDirEmpty(dir string) error {
	f, err := os.Open(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Readdirnames(1); errors.Is(err, io.EOF) {
		return nil
	} else if err != nil {
		return fmt.Errorf("%w: model directory %s: %v", config.ErrInvalid, dir, err)
	}
	return fmt.Errorf("%w: model directory %s is not empty (use --force to train anyway)", config.ErrInvalid, dir)
}
