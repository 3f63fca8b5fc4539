package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/Brownie44l1/seedbot/internal/config"
	"github.com/Brownie44l1/seedbot/internal/imageproc"
	"github.com/Brownie44l1/seedbot/internal/model"
	"github.com/Brownie44l1/seedbot/internal/modelstore"
)

// ensureModel downloads the model on first start, giving up after
// model.download_timeout.
func ensureModel(ctx context.Context, cfg config.Config, log *slog.Logger) (bool, error) {
	client := &http.Client{Timeout: cfg.Model.DownloadTimeoutDuration()}
	return modelstore.Ensure(ctx, cfg.Model.Path, cfg.Model.URL, client, log)
}

// loadModel builds the preprocessor and the classifier and checks that they
// agree on the input tensor shape.
func loadModel(cfg config.Config, log *slog.Logger) (*model.Classifier, *imageproc.Preprocessor, error) {
	layout := model.Layout(strings.ToLower(cfg.Model.Layout))
	pre, err := imageproc.New(cfg.Model.ImageWidth, cfg.Model.ImageHeight, layout)
	if err != nil {
		return nil, nil, err
	}

	cls, err := model.NewClassifier(model.Options{
		ModelPath:   cfg.Model.Path,
		LibraryPath: cfg.Model.LibraryPath,
		InputName:   cfg.Model.InputName,
		OutputName:  cfg.Model.OutputName,
		InputShape:  pre.Shape(),
	}, log)
	if err != nil {
		return nil, nil, err
	}

	if !slices.Equal(cls.Metadata.InputShape, pre.Shape()) {
		cls.Close()
		return nil, nil, fmt.Errorf("model input %v does not match %s image tensor %v; check model.layout and image size",
			cls.Metadata.InputShape, layout, pre.Shape())
	}
	if n := cls.Metadata.NumClasses(); n != len(cfg.Model.Labels) {
		log.Warn("model class count differs from label count",
			slog.Int("classes", n),
			slog.Int("labels", len(cfg.Model.Labels)),
		)
	}
	if blank := cfg.Model.BlankLabels(); len(blank) > 0 {
		log.Warn("some labels are empty", slog.Any("indexes", blank))
	}
	return cls, pre, nil
}
