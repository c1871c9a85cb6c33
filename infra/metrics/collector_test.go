package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/gcsproxy/core/events"
	coremetrics "github.com/kilianp07/gcsproxy/core/metrics"
	"github.com/kilianp07/gcsproxy/internal/eventbus"
)

type captureSink struct {
	mu       sync.Mutex
	samples  []coremetrics.TelemetrySample
	commands []coremetrics.CommandEvent
	status   []coremetrics.CommStatusEvent
	size     int
}

func (c *captureSink) RecordTelemetry(s coremetrics.TelemetrySample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, s)
	return nil
}

func (c *captureSink) RecordCommand(ev coremetrics.CommandEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, ev)
	return nil
}

func (c *captureSink) RecordCommStatus(ev coremetrics.CommStatusEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = append(c.status, ev)
	return nil
}

func (c *captureSink) RecordFleetSize(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.size = n
	return nil
}

func (c *captureSink) counts() (int, int, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples), len(c.commands), len(c.status), c.size
}

func TestEventCollector(t *testing.T) {
	bus := eventbus.NewTyped[events.Event]()
	sink := &captureSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartEventCollector(ctx, bus, sink)
	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	bus.Publish(events.Event{VehicleID: 1, Field: events.FieldVoltage, Value: 12})
	bus.Publish(events.Event{VehicleID: 1, Field: events.FieldCommStatus, Name: "link_established", Text: "connected"})
	bus.Publish(events.Event{VehicleID: 1, Field: events.FieldCommand, Name: "action", Value: 2})
	bus.Publish(events.Event{VehicleID: 1, Field: events.FieldDispatchFailure, Name: "action", Text: "boom"})
	bus.Publish(events.Event{VehicleID: 1, Field: events.FieldVehicleAdded, Value: 5})
	bus.Publish(events.Event{VehicleID: 1, Field: events.FieldUnknownMessage, Value: 99})

	require.Eventually(t, func() bool {
		s, c, st, size := sink.counts()
		return s == 1 && c == 2 && st == 1 && size == 5
	}, time.Second, 10*time.Millisecond)

	sink.mu.Lock()
	assert.Equal(t, "connected", sink.status[0].Status)
	assert.Equal(t, "link_established", sink.status[0].Transition)
	assert.Equal(t, 2, sink.commands[0].Sent)
	assert.True(t, sink.commands[1].Failed)
	assert.Equal(t, "boom", sink.commands[1].Error)
	sink.mu.Unlock()

	cancel()
	require.Eventually(t, func() bool { return bus.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestEventCollectorTelemetryOnlySink(t *testing.T) {
	type onlyTelemetry struct{ coremetrics.MetricsSink }
	var n int
	var mu sync.Mutex
	sink := onlyTelemetry{MetricsSink: telemetryFunc(func(coremetrics.TelemetrySample) error {
		mu.Lock()
		n++
		mu.Unlock()
		return nil
	})}
	assert.NoError(t, record(sink, events.Event{Field: events.FieldCommand}))
	assert.NoError(t, record(sink, events.Event{Field: events.FieldLoad, Value: 0.4}))
	mu.Lock()
	assert.Equal(t, 1, n)
	mu.Unlock()
}

type telemetryFunc func(coremetrics.TelemetrySample) error

func (f telemetryFunc) RecordTelemetry(s coremetrics.TelemetrySample) error { return f(s) }
