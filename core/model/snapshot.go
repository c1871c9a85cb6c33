package model

import "time"

// OutputValue is one actuator or motor channel.
type OutputValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Attitude in radians.
type Attitude struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// BatteryState is the power part of a snapshot.
type BatteryState struct {
	Type            string  `json:"type"`
	Cells           int     `json:"cells"`
	FullVoltage     float64 `json:"full_voltage"`
	EmptyVoltage    float64 `json:"empty_voltage"`
	CurrentVoltage  float64 `json:"current_voltage"`
	FilteredVoltage float64 `json:"filtered_voltage"`
	StartVoltage    float64 `json:"start_voltage"`
	ChargeLevel     float64 `json:"charge_level"`
	// TimeRemaining is nil while no estimate is available.
	TimeRemaining *time.Duration `json:"time_remaining,omitempty"`
}

// Snapshot is a consistent copy of a vehicle's state taken under its lock.
type Snapshot struct {
	ID              int           `json:"id"`
	Name            string        `json:"name"`
	Type            int           `json:"type"`
	StartTime       time.Time     `json:"start_time"`
	Uptime          time.Duration `json:"uptime"`
	CommStatus      string        `json:"comm_status"`
	Mode            int           `json:"mode"`
	RequestedMode   *int          `json:"requested_mode,omitempty"`
	Status          int           `json:"status"`
	StatusState     string        `json:"status_state"`
	StatusText      string        `json:"status_text"`
	Load            float64       `json:"load"`
	Battery         BatteryState  `json:"battery"`
	ManualControl   ManualControl `json:"manual_control"`
	Attitude        Attitude      `json:"attitude"`
	Actuators       []OutputValue `json:"actuators"`
	Motors          []OutputValue `json:"motors"`
	UnknownKinds    []uint32      `json:"unknown_kinds"`
	Malformed       int           `json:"malformed"`
	ReceiveDropRate float64       `json:"receive_drop_rate"`
	SendDropRate    float64       `json:"send_drop_rate"`
	ClockOffset     time.Duration `json:"clock_offset"`
	CurrentWaypoint int           `json:"current_waypoint"`
	LastWaypointAck int           `json:"last_waypoint_ack"`
	Links           []string      `json:"links"`
	LastMessage     time.Time     `json:"last_message"`
	LastHeartbeat   time.Time     `json:"last_heartbeat"`
	Selected        bool          `json:"selected"`
}
