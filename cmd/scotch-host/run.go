package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scotch-wasm/scotch"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <plugin.wasm>",
		Short: "Instantiate a guest module and report whether it satisfies the bridge contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd.Context(), args[0])
		},
	}
}

func runLoad(ctx context.Context, path string) error {
	runtime, err := scotch.NewRuntime(ctx)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer runtime.Close(ctx)

	plugin, err := scotch.NewBuilder[struct{}](runtime).
		WithState(struct{}{}).
		WithModuleFile(path).
		WithExports().
		Finish(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	defer plugin.Close(ctx)

	slog.Info("module satisfies the host/guest contract", "path", path, "instance", plugin.InstanceID())
	fmt.Printf("ok: %s exports __scotch_alloc, __scotch_free, and memory\n", path)
	return nil
}
