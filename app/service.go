// Package app wires the links, the fleet and the outer surfaces into one
// runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/gcsproxy/api/vehicles"
	"github.com/kilianp07/gcsproxy/config"
	"github.com/kilianp07/gcsproxy/core/events"
	"github.com/kilianp07/gcsproxy/core/fleet"
	coremetrics "github.com/kilianp07/gcsproxy/core/metrics"
	"github.com/kilianp07/gcsproxy/core/monitoring"
	"github.com/kilianp07/gcsproxy/infra/codec"
	"github.com/kilianp07/gcsproxy/infra/logger"
	"github.com/kilianp07/gcsproxy/infra/metrics"
	inframon "github.com/kilianp07/gcsproxy/infra/monitoring"
	"github.com/kilianp07/gcsproxy/infra/mqtt"
	"github.com/kilianp07/gcsproxy/infra/udp"
	"github.com/kilianp07/gcsproxy/internal/eventbus"
)

// Service owns the fleet and every transport feeding it.
type Service struct {
	Fleet *fleet.Manager
	Bus   *eventbus.TypedBus[events.Event]

	cfg  *config.Config
	log  logger.Logger
	sink coremetrics.MetricsSink
	mqtt *mqtt.Link
	udp  *udp.Link
}

// New creates a Service from the configuration. Links are opened here so
// that connection errors surface before Run.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.Configure(cfg.Logging.Options()); err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	logg := logger.New("service")

	mon, err := inframon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, err
	}
	monitoring.Init(mon)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	bus := eventbus.NewTyped[events.Event](eventbus.WithBuffer(256))
	c := codec.New()
	mgr := fleet.NewManager(cfg.Fleet, cfg.Vehicle, nil, bus, c, logger.New("fleet"))

	svc := &Service{Fleet: mgr, Bus: bus, cfg: cfg, log: logg, sink: sink}
	if cfg.MQTT.Broker != "" {
		l, err := mqtt.NewLink(cfg.MQTT, c, mgr.Arena(), mgr.HandleMessage)
		if err != nil {
			return nil, fmt.Errorf("mqtt link: %w", err)
		}
		svc.mqtt = l
	}
	if cfg.UDP.Enabled {
		l, err := udp.Listen(cfg.UDP, c, mgr.Arena(), mgr.HandleMessage)
		if err != nil {
			svc.closeLinks()
			return nil, fmt.Errorf("udp link: %w", err)
		}
		svc.udp = l
	}
	return svc, nil
}

// Run starts every component and blocks until ctx is canceled or one of them
// fails.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	metrics.StartEventCollector(ctx, s.Bus, s.sink)
	g.Go(func() error { return s.Fleet.Run(ctx) })

	if s.udp != nil {
		g.Go(func() error { return s.udp.Serve(ctx) })
	}
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		g.Go(func() error { return metrics.StartPromServer(ctx, addr, nil) })
	}
	if s.cfg.API.Enabled {
		g.Go(func() error { return s.serveAPI(ctx) })
	}
	s.log.Infof("gcs proxy running")
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Service) serveAPI(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.API.Addr,
		Handler:           vehicles.NewHandler(s.Fleet, s.cfg.API.Token),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Infof("api listening on %s", s.cfg.API.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func (s *Service) closeLinks() {
	if s.mqtt != nil {
		_ = s.mqtt.Close()
	}
	if s.udp != nil {
		_ = s.udp.Close()
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.closeLinks()
	s.Bus.Close()
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	monitoring.Flush(2 * time.Second)
	return nil
}
