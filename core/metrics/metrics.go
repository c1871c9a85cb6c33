package metrics

import "time"

// TelemetrySample is one numeric vehicle property observed at Time.
type TelemetrySample struct {
	VehicleID int
	Field     string
	// Name identifies the channel for multi-valued fields (actuator, motor,
	// attitude axis, drop rate direction).
	Name  string
	Value float64
	Time  time.Time
}

// MetricsSink records vehicle telemetry.
type MetricsSink interface {
	RecordTelemetry(s TelemetrySample) error
}

// CommandEvent describes the outcome of one outbound command.
type CommandEvent struct {
	VehicleID int
	Kind      string
	// Sent is the number of links the command was written to.
	Sent   int
	Failed bool
	Error  string
	Time   time.Time
}

// CommandRecorder records command outcomes.
type CommandRecorder interface {
	RecordCommand(ev CommandEvent) error
}

// CommStatusEvent is a communication status transition.
type CommStatusEvent struct {
	VehicleID int
	Status    string
	// Transition is the event that caused the change (timeout, recover...).
	Transition string
	Time       time.Time
}

// CommStatusRecorder records communication status transitions.
type CommStatusRecorder interface {
	RecordCommStatus(ev CommStatusEvent) error
}

// FleetSizeRecorder records the number of tracked vehicles.
type FleetSizeRecorder interface {
	RecordFleetSize(size int) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordTelemetry(TelemetrySample) error  { return nil }
func (NopSink) RecordCommand(CommandEvent) error       { return nil }
func (NopSink) RecordCommStatus(CommStatusEvent) error { return nil }
func (NopSink) RecordFleetSize(int) error              { return nil }
