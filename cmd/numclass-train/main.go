// Command numclass-train builds the ensemble from the configured ranges,
// saves it and records the evaluations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/numclass/internal/bootstrap"
	"github.com/YuminosukeSato/numclass/pkg/config"
	"github.com/YuminosukeSato/numclass/pkg/log"
	"github.com/YuminosukeSato/numclass/report"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (defaults are used when empty)")
	plotPath := flag.String("plot", "", "write a CV score chart to this .png or .svg file")
	flag.Parse()

	if err := run(*configPath, *plotPath); err != nil {
		fmt.Fprintf(os.Stderr, "numclass-train: %+v\n", err)
		os.Exit(1)
	}
}

func run(configPath, plotPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// 学習は必ず保存まで行う
	cfg.Models.SaveAfterBuild = true

	closer, err := log.SetupLogger(cfg.LogOptions())
	if err != nil {
		return err
	}
	defer closer.Close()
	logger := log.GetLoggerWithName("train")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := bootstrap.OpenStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	c, err := bootstrap.NewClassifier(cfg)
	if err != nil {
		return err
	}
	if err := bootstrap.Train(ctx, cfg, c, st); err != nil {
		return err
	}

	for _, ev := range c.Evaluations() {
		fmt.Printf("%-20s cv=%.4f selected=%t\n", ev.Kind, ev.Score, ev.Selected)
	}

	if plotPath != "" {
		if err := report.PlotScores(c.Evaluations(), plotPath); err != nil {
			return err
		}
		logger.Info("Score chart written", "path", plotPath)
	}

	logger.Info("Training finished", "dir", cfg.Models.Dir, "models", len(c.Models()))
	return nil
}
