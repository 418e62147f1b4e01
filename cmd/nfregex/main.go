package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/xid"
	"go.aporeto.io/nfregex/controller"
	"go.aporeto.io/nfregex/controller/pkg/env"
	"go.uber.org/zap"
)

func main() {

	params, err := env.GetParameters()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %s\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(params.LogLevel, params.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to create logger: %s\n", err)
		os.Exit(1)
	}
	// tag every line with the run id
	logger = logger.With(zap.String("instance", xid.New().String()))
	zap.ReplaceGlobals(logger)

	for _, w := range params.Warnings {
		zap.L().Warn("Ignoring environment value", zap.Error(w))
	}

	err = run(params)
	logger.Sync() // nolint: errcheck

	if err != nil {
		zap.L().Error("nfregex stopped", zap.Error(err))
		os.Exit(1)
	}
}

// run binds the queues and applies the rules read on stdin until the feed
// is closed or a signal is received.
func run(params *env.Parameters) error {

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := append(controller.OptionsFromParameters(params), controller.OptionDiagnostics(os.Stdout))
	c := controller.New(opts...)

	if err := c.Start(ctx); err != nil {
		return err
	}

	defer func() {
		if err := c.Stop(); err != nil {
			zap.L().Warn("Unable to release queues", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Run(ctx, os.Stdin)
	}()

	select {
	case err := <-errCh:
		if err == nil {
			zap.L().Info("Config feed closed, exiting")
		}
		return err
	case <-ctx.Done():
		zap.L().Info("Signal received, exiting")
		return nil
	}
}
