package metrics

import (
	"fmt"

	"github.com/kilianp07/gcsproxy/core/factory"
	coremetrics "github.com/kilianp07/gcsproxy/core/metrics"
)

var builtins = map[string]factory.Factory[coremetrics.MetricsSink]{
	"nop": func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	},
	"prometheus": func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSink()
	},
	"influx": func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, fmt.Errorf("influx sink: %w", err)
		}
		if c.URL == "" || c.Bucket == "" {
			return nil, fmt.Errorf("influx sink: url and bucket are required")
		}
		return NewInfluxSinkWithFallback(c), nil
	},
}

func init() {
	for name, f := range builtins {
		if err := coremetrics.RegisterMetricsSink(name, f); err != nil {
			panic(err)
		}
	}
}
