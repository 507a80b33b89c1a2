// cmd/quote-relay/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/YaganovValera/quote-relay/internal/app"
	"github.com/YaganovValera/quote-relay/internal/config"
	"github.com/YaganovValera/quote-relay/pkg/configloader"
	"github.com/YaganovValera/quote-relay/pkg/logger"
)

type flags struct {
	configPath  string
	logLevel    string
	printConfig bool
}

func (f *flags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "config/config.yaml", "path to config file (empty → defaults + env only)")
	fs.StringVar(&f.logLevel, "log-level", "", "override logging.level")
	fs.BoolVar(&f.printConfig, "print-config", false, "print resolved config and exit")
}

func main() {
	var f flags

	root := &cobra.Command{
		Use:           "quote-relay",
		Short:         "Real-time market quote relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}
	f.bind(root.Flags())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "quote-relay: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.printConfig {
		configloader.PrintConfig(os.Stdout, cfg)
		return nil
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logger init error: %w", err)
	}
	defer log.Sync()

	log.Info("starting quote-relay",
		zap.String("service.name", cfg.ServiceName),
		zap.String("service.version", cfg.ServiceVersion),
		zap.String("config.path", f.configPath),
	)

	if err := app.Run(ctx, cfg, log); err != nil {
		log.Error("quote-relay exited with error", zap.Error(err))
		return err
	}
	log.Info("quote-relay shut down cleanly")
	return nil
}
