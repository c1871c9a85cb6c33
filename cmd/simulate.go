package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/gcsproxy/config"
	"github.com/kilianp07/gcsproxy/infra/mqtt"
	"github.com/kilianp07/gcsproxy/simulator"
)

var (
	simOpts   simulator.FleetConfig
	simBroker string
	simPrefix string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run simulated vehicles against the configured MQTT broker",
	Args:  cobra.NoArgs,
	RunE:  runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simBroker, "broker", "", "MQTT broker URL; the config file is not read when set")
	f.StringVar(&simPrefix, "topic-prefix", "gcs", "MQTT topic prefix used with --broker")
	f.IntVar(&simOpts.Size, "count", 1, "number of vehicles")
	f.IntVar(&simOpts.FirstID, "first-id", 1, "system id of the first vehicle")
	f.DurationVar(&simOpts.Interval, "interval", time.Second, "telemetry publish interval")
	f.IntVar(&simOpts.Cells, "cells", 3, "battery cell count")
	f.Float64Var(&simOpts.CapacityWh, "capacity", 60, "battery capacity in Wh")
	f.Float64Var(&simOpts.DropRate, "drop-rate", 0, "telemetry frame drop probability")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := simOpts
	if simBroker != "" {
		opts.MQTT = mqtt.Config{Broker: simBroker, TopicPrefix: simPrefix}
		opts.MQTT.SetDefaults()
	} else {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("simulate requires mqtt.broker or --broker")
		}
		opts.MQTT = cfg.MQTT
	}
	return simulator.RunFleet(ctx, simulator.GenerateFleet(opts))
}
