// Package protocol defines the decoded message records exchanged with
// vehicles. The wire layout is owned by a codec; the types here only carry the
// discriminant and the kind specific payload fields the proxy inspects.
package protocol

import (
	"fmt"
	"time"
)

// MsgID identifies the kind of a message.
type MsgID uint32

// Telemetry kinds sent by vehicles.
const (
	MsgHeartbeat       MsgID = 0
	MsgSysStatus       MsgID = 1
	MsgSystemTime      MsgID = 2
	MsgAttitude        MsgID = 30
	MsgActuatorStatus  MsgID = 36
	MsgMotorStatus     MsgID = 37
	MsgWaypointCurrent MsgID = 42
	MsgWaypointAck     MsgID = 47
	MsgManualControl   MsgID = 69
	MsgBatteryStatus   MsgID = 147
)

// Command kinds sent by the ground station.
const (
	MsgAction             MsgID = 10
	MsgSetMode            MsgID = 11
	MsgWaypointSet        MsgID = 39
	MsgWaypointRequestAll MsgID = 43
	MsgWaypointSetCurrent MsgID = 41
	MsgWaypointClearAll   MsgID = 45
	MsgManualSetpoint     MsgID = 70
)

var msgNames = map[MsgID]string{
	MsgHeartbeat:          "heartbeat",
	MsgSysStatus:          "sys_status",
	MsgSystemTime:         "system_time",
	MsgAttitude:           "attitude",
	MsgActuatorStatus:     "actuator_status",
	MsgMotorStatus:        "motor_status",
	MsgWaypointCurrent:    "waypoint_current",
	MsgWaypointAck:        "waypoint_ack",
	MsgManualControl:      "manual_control",
	MsgBatteryStatus:      "battery_status",
	MsgAction:             "action",
	MsgSetMode:            "set_mode",
	MsgWaypointSet:        "waypoint_set",
	MsgWaypointRequestAll: "waypoint_request_list",
	MsgWaypointSetCurrent: "waypoint_set_current",
	MsgWaypointClearAll:   "waypoint_clear_all",
	MsgManualSetpoint:     "manual_setpoint",
}

func (m MsgID) String() string {
	if n, ok := msgNames[m]; ok {
		return n
	}
	return fmt.Sprintf("msg_%d", uint32(m))
}

// Message is one decoded protocol record.
type Message struct {
	SystemID    int
	ComponentID int
	Seq         uint8
	Kind        MsgID
	Payload     any
	// Received is set by the transport on arrival. Zero for outbound messages.
	Received time.Time
}

// Encoder turns a message into its raw wire representation.
type Encoder interface {
	Encode(Message) ([]byte, error)
}

// Decoder parses a raw frame into a message. Unknown kinds must decode
// successfully with an Unknown payload.
type Decoder interface {
	Decode([]byte) (Message, error)
}

// Codec combines both directions.
type Codec interface {
	Encoder
	Decoder
}
