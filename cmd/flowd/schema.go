package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/nodes"
)

// NewSchemaCommand creates the schema command and its create and drop
// subcommands.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the flow store tables",
	}
	cmd.AddCommand(newSchemaActionCommand(rootOpts, "create", "Create the flow tables", "schema created",
		func(ctx context.Context, s flow.Store) error { return s.CreateSchema(ctx) }))
	cmd.AddCommand(newSchemaActionCommand(rootOpts, "drop", "Drop the flow tables", "schema dropped",
		func(ctx context.Context, s flow.Store) error { return s.DropSchema(ctx) }))
	return cmd
}

func newSchemaActionCommand(rootOpts *RootOptions, use, short, done string, action func(context.Context, flow.Store) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, closeStore, err := openStore(ctx, cfg.Store, nodes.Default())
			if err != nil {
				return err
			}
			defer closeStore()

			if err := action(ctx, store); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), done)
			return nil
		},
	}
}
