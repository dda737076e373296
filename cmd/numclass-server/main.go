// Command numclass-server loads or trains the ensemble and serves the
// number-classifier API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YuminosukeSato/numclass/internal/bootstrap"
	"github.com/YuminosukeSato/numclass/pkg/config"
	"github.com/YuminosukeSato/numclass/pkg/log"
	"github.com/YuminosukeSato/numclass/server"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (defaults are used when empty)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "numclass-server: %+v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	closer, err := log.SetupLogger(cfg.LogOptions())
	if err != nil {
		return err
	}
	defer closer.Close()
	logger := log.GetLoggerWithName("main")

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
	if err := bootstrap.Prepare(ctx, cfg, c, st); err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Port:      cfg.HTTP.Port,
		Timeout:   cfg.HTTP.Timeout,
		CacheSize: cfg.HTTP.CacheSize,
	}, c, server.WithStore(st))
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Signal received, shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
