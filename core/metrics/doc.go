// Package metrics defines the sinks vehicle telemetry and command outcomes are
// recorded to. A sink implements MetricsSink and any of the optional recorder
// interfaces; callers type-assert before recording. Several sinks are combined
// with NewMultiSink, which NewMetricsSink does automatically when more than
// one sink is configured.
package metrics
