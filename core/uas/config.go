package uas

import (
	"fmt"
	"time"

	"github.com/kilianp07/gcsproxy/core/model"
	"github.com/kilianp07/gcsproxy/core/protocol"
)

// ButtonToggleMode switches between auto and manual mode.
const ButtonToggleMode = "toggle_mode"

// Config holds the per vehicle thresholds. Durations are expressed in
// milliseconds to keep the YAML/JSON surface flat.
type Config struct {
	// HeartbeatIntervalMS is the expected heartbeat period.
	HeartbeatIntervalMS int `json:"heartbeat_interval_ms"`
	// ConnectHeartbeats is the number of on-cadence heartbeats needed to
	// move from connecting to connected.
	ConnectHeartbeats int `json:"connect_heartbeats"`
	// TimeoutMultiple of the heartbeat interval without any message after
	// which the vehicle is considered disconnected.
	TimeoutMultiple int `json:"timeout_multiple"`
	// DegradedDropRate is the drop rate percentage above which the link is
	// degraded.
	DegradedDropRate float64 `json:"degraded_drop_rate"`
	// VoltageFilterAlpha is the low-pass smoothing constant in (0,1).
	VoltageFilterAlpha float64 `json:"voltage_filter_alpha"`
	// MinEstimateElapsedMS is the minimum observation window before a time
	// remaining estimate is produced.
	MinEstimateElapsedMS int `json:"min_estimate_elapsed_ms"`
	// ManualControlRateHz caps outgoing manual set-point messages.
	ManualControlRateHz float64 `json:"manual_control_rate_hz"`
	GCSSystemID         int     `json:"gcs_system_id"`
	GCSComponentID      int     `json:"gcs_component_id"`
	BatteryType         string  `json:"battery_type"`
	BatteryCells        int     `json:"battery_cells"`
	// Buttons maps a button index to toggle_mode or an action name.
	// Empty entries are unmapped.
	Buttons []string `json:"buttons"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.HeartbeatIntervalMS <= 0 {
		c.HeartbeatIntervalMS = 1000
	}
	if c.ConnectHeartbeats <= 0 {
		c.ConnectHeartbeats = 3
	}
	if c.TimeoutMultiple <= 0 {
		c.TimeoutMultiple = 5
	}
	if c.DegradedDropRate <= 0 {
		c.DegradedDropRate = 20
	}
	if c.VoltageFilterAlpha <= 0 {
		c.VoltageFilterAlpha = 0.3
	}
	if c.MinEstimateElapsedMS <= 0 {
		c.MinEstimateElapsedMS = 30000
	}
	if c.ManualControlRateHz <= 0 {
		c.ManualControlRateHz = 20
	}
	if c.GCSSystemID <= 0 {
		c.GCSSystemID = 255
	}
	if c.BatteryType == "" {
		c.BatteryType = "lipo"
	}
	if c.BatteryCells <= 0 {
		c.BatteryCells = 3
	}
	if c.Buttons == nil {
		c.Buttons = []string{
			ButtonToggleMode,
			protocol.ActionHalt.String(),
			protocol.ActionContinue.String(),
			protocol.ActionReturnHome.String(),
			protocol.ActionEmergencyLand.String(),
		}
	}
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	if c.VoltageFilterAlpha <= 0 || c.VoltageFilterAlpha >= 1 {
		return fmt.Errorf("voltage_filter_alpha must be in (0,1), got %v", c.VoltageFilterAlpha)
	}
	if c.DegradedDropRate > 100 {
		return fmt.Errorf("degraded_drop_rate must be <= 100, got %v", c.DegradedDropRate)
	}
	if c.TimeoutMultiple < 2 {
		return fmt.Errorf("timeout_multiple must be >= 2, got %d", c.TimeoutMultiple)
	}
	if _, err := c.Battery(); err != nil {
		return err
	}
	for i, b := range c.Buttons {
		if b == "" || b == ButtonToggleMode {
			continue
		}
		if _, ok := protocol.ParseAction(b); !ok {
			return fmt.Errorf("button %d: unknown action %q", i, b)
		}
	}
	return nil
}

// Battery builds the configured pack.
func (c Config) Battery() (model.Battery, error) {
	t, err := model.ParseBatteryType(c.BatteryType)
	if err != nil {
		return model.Battery{}, err
	}
	return model.NewBattery(t, c.BatteryCells)
}

func (c Config) heartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
}

func (c Config) overdueAfter() time.Duration { return 2 * c.heartbeatInterval() }

func (c Config) timeout() time.Duration {
	return time.Duration(c.TimeoutMultiple) * c.heartbeatInterval()
}

func (c Config) minEstimateElapsed() time.Duration {
	return time.Duration(c.MinEstimateElapsedMS) * time.Millisecond
}
