package metrics

// MultiSink fans records out to several sinks. Sinks that do not implement an
// optional recorder are skipped for that record.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTelemetry forwards the sample to all sinks, returning the first error.
func (m *MultiSink) RecordTelemetry(s TelemetrySample) error {
	for _, sink := range m.Sinks {
		if err := sink.RecordTelemetry(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordCommand forwards command outcomes.
func (m *MultiSink) RecordCommand(ev CommandEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(CommandRecorder); ok {
			if err := rec.RecordCommand(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordCommStatus forwards status transitions.
func (m *MultiSink) RecordCommStatus(ev CommStatusEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(CommStatusRecorder); ok {
			if err := rec.RecordCommStatus(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordFleetSize forwards the fleet size when supported by the sink.
func (m *MultiSink) RecordFleetSize(size int) error {
	for _, s := range m.Sinks {
		if fr, ok := s.(FleetSizeRecorder); ok {
			if err := fr.RecordFleetSize(size); err != nil {
				return err
			}
		}
	}
	return nil
}
