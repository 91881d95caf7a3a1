// Package main provides scotch-bench, a throughput smoke test that
// instantiates N separate instances of the same compiled module
// concurrently and reports how long they took to come up. Only one
// call may be in-flight against a given instance at a time, so
// concurrency is achieved by running multiple instances rather than by
// racing calls into one.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/scotch-wasm/scotch"
	"golang.org/x/sync/errgroup"
)

func main() {
	path := flag.String("plugin", "", "path to a compiled .wasm module")
	instances := flag.Int("instances", 8, "number of concurrent instances to create")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: scotch-bench -plugin <path.wasm> [-instances N]")
		os.Exit(2)
	}

	if err := run(context.Background(), *path, *instances); err != nil {
		fmt.Fprintf(os.Stderr, "scotch-bench: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string, n int) error {
	runtime, err := scotch.NewRuntime(ctx)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer runtime.Close(ctx)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	module, err := runtime.CompileModule(ctx, data)
	if err != nil {
		return fmt.Errorf("compile %s: %w", path, err)
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	plugins := make([]*scotch.Plugin, n)
	for i := range n {
		g.Go(func() error {
			plugin, err := scotch.NewBuilder[struct{}](runtime).
				WithState(struct{}{}).
				WithCompiledModule(module, data).
				WithExports().
				Finish(gctx)
			if err != nil {
				return fmt.Errorf("instance %d: %w", i, err)
			}
			plugins[i] = plugin
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	for _, p := range plugins {
		if p != nil {
			_ = p.Close(ctx)
		}
	}

	slog.Info("instantiated concurrent instances", "count", n, "elapsed", elapsed)
	fmt.Printf("%d instances in %s (%.2f/s)\n", n, elapsed, float64(n)/elapsed.Seconds())
	return nil
}
