package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/seedbot/internal/model"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <image> [image...]",
	Short: "Classify image files locally and print the bot's reply for each",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateModel(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		log := newLogger()
		if _, err := ensureModel(cmd.Context(), cfg, log); err != nil {
			return err
		}

		cls, pre, err := loadModel(cfg, log)
		if err != nil {
			return err
		}
		defer cls.Close()

		labels := model.Labels(cfg.Model.Labels)
		failed := 0
		for _, path := range args {
			text, err := classifyFile(path, pre, cls, labels)
			if err != nil {
				failed++
				log.Error("classify failed", slog.String("file", path), slog.Any("error", err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", path, text)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d images failed", failed, len(args))
		}
		return nil
	},
}

type preprocessor interface {
	Preprocess(data []byte) (model.Tensor, error)
}

type predictor interface {
	Predict(t model.Tensor) (model.PredictionVector, error)
}

func classifyFile(path string, pre preprocessor, cls predictor, labels model.Labels) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	tensor, err := pre.Preprocess(data)
	if err != nil {
		return "", err
	}
	pred, err := cls.Predict(tensor)
	if err != nil {
		return "", err
	}
	return model.Format(pred, labels)
}
