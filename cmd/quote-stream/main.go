package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YaganovValera/quote-stream/internal/config"
	"github.com/YaganovValera/quote-stream/pkg/logger"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "quote-stream",
		Short:         "Market data feed decoder and websocket bridge",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (YAML); env QUOTESTREAM_* overrides")

	root.AddCommand(
		newServeCmd(opts),
		newStreamCmd(opts),
		newDecodeCmd(opts),
	)
	return root
}

// load reads the config and builds the logger shared by every command.
func (o *rootOptions) load(extra ...config.LoadOption) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(o.configPath, extra...)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("logger init: %w", err)
	}
	return cfg, log, nil
}
