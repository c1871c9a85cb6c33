package metrics_test

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"

	metrics "github.com/kilianp07/gcsproxy/core/metrics"
)

func TestMetricsConfigYAML(t *testing.T) {
	data := `
prometheus_addr: ":9464"
sinks:
  - type: prometheus
  - type: influx
    conf:
      url: http://influx:8086
      bucket: uas
`
	var cfg metrics.Config
	if err := yaml.Unmarshal([]byte(data), &cfg); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	if cfg.PrometheusAddr != ":9464" {
		t.Fatalf("unexpected prometheus addr %q", cfg.PrometheusAddr)
	}
	if len(cfg.Sinks) != 2 || cfg.Sinks[1].Type != "influx" {
		t.Fatalf("unexpected sinks %+v", cfg.Sinks)
	}
	if cfg.Sinks[1].Conf["bucket"] != "uas" {
		t.Fatalf("influx conf not decoded: %+v", cfg.Sinks[1].Conf)
	}
}

func TestMetricsConfigJSON(t *testing.T) {
	data := `{"sinks":[{"type":"nop"}]}`
	var cfg metrics.Config
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0].Type != "nop" || cfg.PrometheusAddr != "" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
