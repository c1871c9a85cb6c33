package metrics

import (
	"context"

	"github.com/kilianp07/gcsproxy/core/events"
	coremetrics "github.com/kilianp07/gcsproxy/core/metrics"
	"github.com/kilianp07/gcsproxy/infra/logger"
)

var telemetryFields = map[events.Field]bool{
	events.FieldVoltage:         true,
	events.FieldChargeLevel:     true,
	events.FieldLoad:            true,
	events.FieldDropRate:        true,
	events.FieldActuator:        true,
	events.FieldMotor:           true,
	events.FieldAttitude:        true,
	events.FieldMode:            true,
	events.FieldStatus:          true,
	events.FieldWaypointCurrent: true,
}

// StartEventCollector subscribes to the event bus and records metrics for
// vehicle events. It stops when the context is canceled or the bus closes.
func StartEventCollector(ctx context.Context, bus events.Bus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	log := logger.New("metrics_collector")
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Warnf("record %s for vehicle %d: %v", ev.Field, ev.VehicleID, err)
				}
			}
		}
	}()
}

func record(sink coremetrics.MetricsSink, ev events.Event) error {
	switch {
	case telemetryFields[ev.Field]:
		return sink.RecordTelemetry(coremetrics.TelemetrySample{
			VehicleID: ev.VehicleID,
			Field:     string(ev.Field),
			Name:      ev.Name,
			Value:     ev.Value,
			Time:      ev.Time,
		})
	case ev.Field == events.FieldCommStatus:
		if r, ok := sink.(coremetrics.CommStatusRecorder); ok {
			return r.RecordCommStatus(coremetrics.CommStatusEvent{
				VehicleID:  ev.VehicleID,
				Status:     ev.Text,
				Transition: ev.Name,
				Time:       ev.Time,
			})
		}
	case ev.Field == events.FieldCommand:
		if r, ok := sink.(coremetrics.CommandRecorder); ok {
			return r.RecordCommand(coremetrics.CommandEvent{
				VehicleID: ev.VehicleID,
				Kind:      ev.Name,
				Sent:      int(ev.Value),
				Time:      ev.Time,
			})
		}
	case ev.Field == events.FieldDispatchFailure:
		if r, ok := sink.(coremetrics.CommandRecorder); ok {
			return r.RecordCommand(coremetrics.CommandEvent{
				VehicleID: ev.VehicleID,
				Kind:      ev.Name,
				Failed:    true,
				Error:     ev.Text,
				Time:      ev.Time,
			})
		}
	case ev.Field == events.FieldVehicleAdded, ev.Field == events.FieldVehicleRemoved:
		if r, ok := sink.(coremetrics.FleetSizeRecorder); ok {
			return r.RecordFleetSize(int(ev.Value))
		}
	}
	return nil
}
