package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/gcsproxy/core/fleet"
	"github.com/kilianp07/gcsproxy/core/metrics"
	"github.com/kilianp07/gcsproxy/core/uas"
	"github.com/kilianp07/gcsproxy/infra/mqtt"
	"github.com/kilianp07/gcsproxy/infra/udp"
)

// Config is the root configuration of the proxy: the links vehicles reach
// it over, per vehicle tuning, fleet policy and the outer surfaces.
type Config struct {
	// MQTT is enabled when a broker is configured.
	MQTT    mqtt.Config    `json:"mqtt"`
	UDP     udp.Config     `json:"udp"`
	Vehicle uas.Config     `json:"vehicle"`
	Fleet   fleet.Config   `json:"fleet"`
	Metrics metrics.Config `json:"metrics"`
	API     APIConfig      `json:"api"`
	Logging LoggingConfig  `json:"logging"`
	Sentry  SentryConfig   `json:"sentry"`
}

// Load reads a YAML or JSON file, applies GCS_ prefixed environment
// overrides, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides: GCS_MQTT__BROKER -> mqtt.broker
	if err := k.Load(env.Provider("GCS_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "gcs_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	if c.MQTT.Broker != "" {
		c.MQTT.SetDefaults()
	}
	c.UDP.SetDefaults()
	c.Vehicle.SetDefaults()
	c.Fleet.SetDefaults()
	c.API.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks the sections and that at least one link is configured.
func (c Config) Validate() error {
	if c.MQTT.Broker == "" && !c.UDP.Enabled {
		return errors.New("no link configured: set mqtt.broker or udp.enabled")
	}
	if c.MQTT.Broker != "" {
		if err := c.MQTT.Validate(); err != nil {
			return err
		}
	}
	if err := c.Vehicle.Validate(); err != nil {
		return fmt.Errorf("vehicle: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.Vehicle.GCSSystemID <= 0 || c.Vehicle.GCSSystemID > 255 {
		return fmt.Errorf("vehicle: gcs_system_id must be in 1..255, got %d", c.Vehicle.GCSSystemID)
	}
	return nil
}

// Summary lists the enabled surfaces as log fields. Credentials are left
// out.
func (c Config) Summary() map[string]any {
	out := map[string]any{
		"auto_create": c.Fleet.AutoCreate,
	}
	if c.MQTT.Broker != "" {
		out["mqtt_broker"] = c.MQTT.Broker
		out["mqtt_topic_prefix"] = c.MQTT.TopicPrefix
	}
	if c.UDP.Enabled {
		out["udp_listen"] = c.UDP.Listen
	}
	if c.API.Enabled {
		out["api_addr"] = c.API.Addr
		out["api_auth"] = c.API.Token != ""
	}
	if c.Metrics.PrometheusAddr != "" {
		out["prometheus_addr"] = c.Metrics.PrometheusAddr
	}
	sinks := make([]string, 0, len(c.Metrics.Sinks))
	for _, s := range c.Metrics.Sinks {
		sinks = append(sinks, s.Type)
	}
	out["metrics_sinks"] = strings.Join(sinks, ",")
	return out
}
