// Command labelmesh meshes the labeled objects of a synthetic volume and
// prints a JSON summary per object.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/chazu/labelmesh/internal/config"
	"github.com/chazu/labelmesh/internal/logger"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := NewApp(cfg, logger.Named("labelmesh"))
	if err != nil {
		logger.Error("setup failed", zap.Error(err))
		return 2
	}
	logger.Info("meshing",
		zap.String("kernel", cfg.Extraction.Kernel),
		zap.Stringer("bounds", cfg.Phantom.Bounds()),
		zap.Int64s("block_size", cfg.Extraction.BlockSize[:]))

	result := app.Run(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.Error("writing result", zap.Error(err))
		return 1
	}
	if len(result.Errors) > 0 {
		return 1
	}
	return 0
}
