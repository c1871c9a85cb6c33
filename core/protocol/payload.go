package protocol

import "encoding/json"

// Mode is the vehicle operating mode code. Values are defined by the
// vehicle firmware; the named constants cover the ones the ground station
// requests itself.
type Mode int

const (
	ModeUnknown Mode = 0
	ModeLocked  Mode = 1
	ModeManual  Mode = 2
	ModeGuided  Mode = 3
	ModeAuto    Mode = 4
	ModeTest    Mode = 5
	ModeReady   Mode = 6
)

// Heartbeat is sent periodically by every vehicle.
type Heartbeat struct {
	Type   int  `json:"type"`
	Mode   Mode `json:"mode"`
	Status int  `json:"status"`
}

// SysStatus reports onboard load, main voltage and link quality. Drop rates
// are computed by the vehicle side link layer from sequence gaps.
type SysStatus struct {
	Mode            Mode    `json:"mode"`
	Status          int     `json:"status"`
	Load            float64 `json:"load"`
	VoltageMV       int     `json:"voltage_mv"`
	ReceiveDropRate float64 `json:"receive_drop_rate"`
	SendDropRate    float64 `json:"send_drop_rate"`
}

// BatteryStatus carries the pack voltage in volts.
type BatteryStatus struct {
	Voltage float64 `json:"voltage"`
}

// Attitude in radians.
type Attitude struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// ManualControl is the vehicle echo of the manual inputs it currently applies.
type ManualControl struct {
	Roll         float64 `json:"roll"`
	Pitch        float64 `json:"pitch"`
	Yaw          float64 `json:"yaw"`
	Thrust       float64 `json:"thrust"`
	RollManual   bool    `json:"roll_manual"`
	PitchManual  bool    `json:"pitch_manual"`
	YawManual    bool    `json:"yaw_manual"`
	ThrustManual bool    `json:"thrust_manual"`
}

// Output is one named actuator or motor channel.
type Output struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// OutputStatus lists actuator or motor channels in declaration order.
type OutputStatus struct {
	Outputs []Output `json:"outputs"`
}

// WaypointAck acknowledges a waypoint transaction.
type WaypointAck struct {
	Type int `json:"type"`
}

// WaypointCurrent announces the waypoint the vehicle is heading to.
type WaypointCurrent struct {
	Seq int `json:"seq"`
}

// SystemTime is the onboard clock in microseconds since the Unix epoch.
type SystemTime struct {
	UnixUsec uint64 `json:"unix_usec"`
}

// Unknown keeps the raw payload of a kind the codec does not know.
type Unknown struct {
	Raw json.RawMessage `json:"raw,omitempty"`
}
