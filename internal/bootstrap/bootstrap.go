// Package bootstrap wires configuration into a ready classifier for the
// numclass binaries.
package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/numclass/classifier"
	"github.com/YuminosukeSato/numclass/dataset/numbers"
	"github.com/YuminosukeSato/numclass/pkg/config"
	"github.com/YuminosukeSato/numclass/pkg/errors"
	"github.com/YuminosukeSato/numclass/pkg/log"
	"github.com/YuminosukeSato/numclass/pkg/store"
)

// NewClassifier creates an empty classifier with the configured strategy.
// extra options are applied after the configured ones.
func NewClassifier(cfg *config.Config, extra ...classifier.Option) (*classifier.Classifier, error) {
	strategy, err := classifier.ParseStrategy(cfg.Models.Strategy)
	if err != nil {
		return nil, err
	}
	opts := append([]classifier.Option{classifier.WithStrategy(strategy)}, extra...)
	return classifier.New(opts...), nil
}

// OpenStore opens the training log when store.path is set, and returns nil otherwise.
func OpenStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Store.Path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.NewPersistenceError("mkdir", dir, err)
		}
	}
	return store.Open(cfg.Store.Path)
}

// Train builds c from the configured ranges, saves it when
// models.save_after_build is set, and records the evaluations in st when
// st is not nil.
func Train(ctx context.Context, cfg *config.Config, c *classifier.Classifier, st *store.Store) error {
	logger := log.GetLoggerWithName("bootstrap")

	ds, err := numbers.Load(cfg.Dataset.Train, cfg.Dataset.Test)
	if err != nil {
		return err
	}
	if err := c.BuildContext(ctx, ds); err != nil {
		return err
	}

	if cfg.Models.SaveAfterBuild {
		if err := c.Save(cfg.Models.Dir); err != nil {
			return err
		}
	}

	if st != nil {
		runID := store.NewRunID()
		if err := st.Record(ctx, runID, c.Evaluations(), len(ds.TrainFeatures), len(ds.TestFeatures)); err != nil {
			return err
		}
		logger.Info("Training run recorded", log.RunIDKey, runID)
	}
	return nil
}

// Prepare fills c according to models.mode: load from models.dir, train
// from the dataset, or in auto mode load when saved models exist and train
// otherwise.
func Prepare(ctx context.Context, cfg *config.Config, c *classifier.Classifier, st *store.Store) error {
	logger := log.GetLoggerWithName("bootstrap")

	mode := cfg.Models.Mode
	if mode == config.ModeAuto {
		mode = config.ModeTrain
		if HasSavedModels(cfg.Models.Dir) {
			mode = config.ModeLoad
		}
	}
	logger.Info("Preparing classifier", "mode", mode, "dir", cfg.Models.Dir)

	switch mode {
	case config.ModeLoad:
		if err := c.Load(cfg.Models.Dir); err != nil {
			return err
		}
		if len(c.Models()) == 0 {
			return errors.Wrapf(errors.ErrNoModels, "no saved models in %s", cfg.Models.Dir)
		}
		return nil
	case config.ModeTrain:
		return Train(ctx, cfg, c, st)
	default:
		return errors.NewValidationError("models.mode", "unknown mode", cfg.Models.Mode)
	}
}

// HasSavedModels reports whether dir holds at least one file named after a
// registered kind.
func HasSavedModels(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != classifier.FileExt {
			continue
		}
		if _, err := classifier.ParseKind(strings.TrimSuffix(name, classifier.FileExt)); err == nil {
			return true
		}
	}
	return false
}
