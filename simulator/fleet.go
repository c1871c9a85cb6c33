package simulator

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/gcsproxy/infra/mqtt"
)

// FleetConfig holds parameters for bulk fleet generation.
type FleetConfig struct {
	Size       int
	FirstID    int
	Interval   time.Duration
	Cells      int
	CapacityWh float64
	DropRate   float64
	MQTT       mqtt.Config
}

// GenerateFleet creates Size vehicles with consecutive system ids starting
// at FirstID.
func GenerateFleet(cfg FleetConfig) []*Vehicle {
	if cfg.Size <= 0 {
		return nil
	}
	if cfg.FirstID <= 0 {
		cfg.FirstID = 1
	}
	vs := make([]*Vehicle, cfg.Size)
	for i := range vs {
		v := NewVehicle(cfg.FirstID+i, cfg.MQTT)
		if cfg.Interval > 0 {
			v.Interval = cfg.Interval
		}
		if cfg.Cells > 0 || cfg.CapacityWh > 0 {
			cells, capacity := 3, 60.0
			if cfg.Cells > 0 {
				cells = cfg.Cells
			}
			if cfg.CapacityWh > 0 {
				capacity = cfg.CapacityWh
			}
			v.Battery = NewLiPoBattery(cells, capacity)
		}
		if cfg.DropRate > 0 {
			v.Quality = &LossyLink{DropRate: cfg.DropRate}
		}
		vs[i] = v
	}
	return vs
}

// RunFleet runs every vehicle until ctx is done. The first connection error
// cancels the others.
func RunFleet(ctx context.Context, vehicles []*Vehicle) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, v := range vehicles {
		g.Go(func() error { return v.Run(ctx) })
	}
	return g.Wait()
}
