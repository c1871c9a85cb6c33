package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/gcsproxy/app"
	"github.com/kilianp07/gcsproxy/config"
	"github.com/kilianp07/gcsproxy/infra/logger"
)

var (
	cfgPath string
	// version is set at build time with -ldflags "-X .../cmd.version=...".
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:          "gcsproxy",
	Short:        "Ground station proxy for a fleet of unmanned vehicles",
	SilenceUsage: true,
	Version:      version,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New("main")
	svc, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Errorf("service close: %v", err)
		}
	}()

	fields := cfg.Summary()
	fields["version"] = version
	fields["config"] = cfgPath
	log.Infow("gcsproxy starting", fields)
	if err := svc.Run(ctx); err != nil {
		return err
	}
	log.Infow("gcsproxy stopped", nil)
	return nil
}
