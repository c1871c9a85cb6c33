package fleet

import "time"

// Config controls vehicle discovery and the liveness ticker.
type Config struct {
	// AutoCreate adds a vehicle the first time its system id is seen.
	AutoCreate bool `json:"auto_create"`
	// TickMS is the period at which comm status timeouts are evaluated.
	TickMS int `json:"tick_ms"`
	// MaxVehicles caps automatic creation. Zero means unlimited.
	MaxVehicles int `json:"max_vehicles"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TickMS <= 0 {
		c.TickMS = 250
	}
}

func (c Config) tick() time.Duration { return time.Duration(c.TickMS) * time.Millisecond }
