package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/nodes"
	"github.com/meikuraledutech/flow/server"
)

type serveOptions struct {
	initSchema bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the flow editing API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.initSchema, "init-schema", false, "create the store tables before serving")

	return cmd
}

func runServe(ctx context.Context, rootOpts *RootOptions, opts *serveOptions) error {
	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}
	logger := cfg.Log.NewLogger(os.Stderr)
	logger = logger.With("component", "flowd")

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := nodes.Default()
	store, closeStore, err := openStore(ctx, cfg.Store, reg)
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.initSchema {
		if err := store.CreateSchema(ctx); err != nil {
			return err
		}
	}

	srv := server.New(reg, store,
		server.WithLogger(logger),
		server.WithEditorOptions(flow.WithDuplicateOffset(cfg.Editor.DuplicateOffset)),
	)
	app := srv.App()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.Listen, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	logger.Info("listening", "addr", cfg.Listen, "store", cfg.Store.Driver)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
