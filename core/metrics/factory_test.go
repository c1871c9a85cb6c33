package metrics_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/gcsproxy/core/factory"
	metrics "github.com/kilianp07/gcsproxy/core/metrics"
	_ "github.com/kilianp07/gcsproxy/infra/metrics"
)

func TestSinkTypesListsBuiltins(t *testing.T) {
	assert.Subset(t, metrics.SinkTypes(), []string{"influx", "nop", "prometheus"})
}

func TestNewMetricsSinkSelection(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	require.NoError(t, err)
	m, ok := s.(*metrics.MultiSink)
	require.True(t, ok, "expected MultiSink, got %T", s)
	assert.Len(t, m.Sinks, 2)
}

func TestNewMetricsSinkErrors(t *testing.T) {
	_, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "statsd"}})
	assert.True(t, errors.Is(err, factory.ErrUnknownType))

	_, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "influx", Conf: map[string]any{"org": "gcs"}}})
	assert.Error(t, err, "influx without url and bucket")
}

func TestRegisterMetricsSinkDuplicate(t *testing.T) {
	err := metrics.RegisterMetricsSink("nop", func(map[string]any) (metrics.MetricsSink, error) {
		return metrics.NopSink{}, nil
	})
	assert.Error(t, err)
}
