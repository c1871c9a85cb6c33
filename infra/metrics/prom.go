package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/gcsproxy/core/metrics"
)

// PromSink exposes vehicle telemetry as Prometheus metrics.
type PromSink struct {
	telemetry *prometheus.GaugeVec
	commands  *prometheus.CounterVec
	status    *prometheus.GaugeVec
	fleet     prometheus.Gauge
}

var commStatuses = []string{"disconnected", "connecting", "connected", "degraded"}

// NewPromSink registers the vehicle metrics on the default Prometheus
// registerer. The HTTP endpoint is served separately by StartPromServer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	s, err := NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// that are already registered are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	telemetry := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "uas_telemetry_value",
		Help: "Last telemetry value reported per vehicle and field",
	}, []string{"vehicle_id", "field", "name"})
	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uas_commands_total",
		Help: "Commands sent to vehicles",
	}, []string{"vehicle_id", "kind", "failed"})
	status := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "uas_comm_status",
		Help: "Communication status per vehicle, 1 for the current status",
	}, []string{"vehicle_id", "status"})
	fleet := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "uas_fleet_vehicles",
		Help: "Number of vehicles tracked by the proxy",
	})

	var err error
	if telemetry, err = register(reg, telemetry); err != nil {
		return nil, err
	}
	if commands, err = register(reg, commands); err != nil {
		return nil, err
	}
	if status, err = register(reg, status); err != nil {
		return nil, err
	}
	if fleet, err = register(reg, fleet); err != nil {
		return nil, err
	}
	return &PromSink{telemetry: telemetry, commands: commands, status: status, fleet: fleet}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordTelemetry sets the gauge for the sample.
func (s *PromSink) RecordTelemetry(ts coremetrics.TelemetrySample) error {
	s.telemetry.WithLabelValues(strconv.Itoa(ts.VehicleID), ts.Field, ts.Name).Set(ts.Value)
	return nil
}

// RecordCommand counts the command.
func (s *PromSink) RecordCommand(ev coremetrics.CommandEvent) error {
	s.commands.WithLabelValues(strconv.Itoa(ev.VehicleID), ev.Kind, strconv.FormatBool(ev.Failed)).Inc()
	return nil
}

// RecordCommStatus flags the current status and clears the others.
func (s *PromSink) RecordCommStatus(ev coremetrics.CommStatusEvent) error {
	id := strconv.Itoa(ev.VehicleID)
	for _, st := range commStatuses {
		v := 0.0
		if st == ev.Status {
			v = 1
		}
		s.status.WithLabelValues(id, st).Set(v)
	}
	return nil
}

// RecordFleetSize sets the fleet gauge.
func (s *PromSink) RecordFleetSize(size int) error {
	s.fleet.Set(float64(size))
	return nil
}
