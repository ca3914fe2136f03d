package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/argo-live-trader/internal/config"
	"github.com/rxtech-lab/argo-live-trader/internal/engine"
	"github.com/rxtech-lab/argo-live-trader/internal/logger"
	"github.com/rxtech-lab/argo-live-trader/internal/version"
)

// runAction loads the configuration, builds the engine, and runs it until a
// termination signal arrives.
func runAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var (
		cfg *config.Config
		err error
	)

	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
	} else {
		log.Println("no config file given, using the simulation defaults")

		cfg = config.DefaultConfig()
	}

	appLogger, err := logger.NewLoggerWithLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	trader, err := engine.New(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to build trading engine: %w", err)
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := trader.Start(runCtx); err != nil {
		return fmt.Errorf("failed to start trading engine: %w", err)
	}

	<-runCtx.Done()
	log.Println("shutdown signal received, stopping...")

	if err := trader.Stop(); err != nil {
		return fmt.Errorf("failed to stop trading engine: %w", err)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "livetrader",
		Usage:   "Run the live crypto trading engine",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
			},
		},
		Action: runAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
