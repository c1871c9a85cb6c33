// Package codec implements the JSON wire format used on the MQTT and UDP
// links.
//
// Every frame is an envelope:
//
//	{"sysid":1,"compid":1,"seq":42,"kind":0,"payload":{...}}
//
// Payloads of kinds the codec does not know are kept raw.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/kilianp07/gcsproxy/core/protocol"
)

// ErrMalformed is returned for frames that are not a valid envelope.
var ErrMalformed = errors.New("malformed frame")

type envelope struct {
	SystemID    int             `json:"sysid"`
	ComponentID int             `json:"compid"`
	Seq         uint8           `json:"seq"`
	Kind        protocol.MsgID  `json:"kind"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

var payloadTypes = map[protocol.MsgID]reflect.Type{
	protocol.MsgHeartbeat:          reflect.TypeOf(protocol.Heartbeat{}),
	protocol.MsgSysStatus:          reflect.TypeOf(protocol.SysStatus{}),
	protocol.MsgSystemTime:         reflect.TypeOf(protocol.SystemTime{}),
	protocol.MsgAttitude:           reflect.TypeOf(protocol.Attitude{}),
	protocol.MsgActuatorStatus:     reflect.TypeOf(protocol.OutputStatus{}),
	protocol.MsgMotorStatus:        reflect.TypeOf(protocol.OutputStatus{}),
	protocol.MsgWaypointCurrent:    reflect.TypeOf(protocol.WaypointCurrent{}),
	protocol.MsgWaypointAck:        reflect.TypeOf(protocol.WaypointAck{}),
	protocol.MsgManualControl:      reflect.TypeOf(protocol.ManualControl{}),
	protocol.MsgBatteryStatus:      reflect.TypeOf(protocol.BatteryStatus{}),
	protocol.MsgAction:             reflect.TypeOf(protocol.ActionCommand{}),
	protocol.MsgSetMode:            reflect.TypeOf(protocol.SetModeCommand{}),
	protocol.MsgWaypointSet:        reflect.TypeOf(protocol.WaypointSetCommand{}),
	protocol.MsgWaypointRequestAll: reflect.TypeOf(protocol.WaypointRequestListCommand{}),
	protocol.MsgWaypointSetCurrent: reflect.TypeOf(protocol.WaypointSetCurrentCommand{}),
	protocol.MsgWaypointClearAll:   reflect.TypeOf(protocol.WaypointClearAllCommand{}),
	protocol.MsgManualSetpoint:     reflect.TypeOf(protocol.ManualSetpoint{}),
}

// JSON is the envelope codec. The zero value is ready to use.
type JSON struct{}

// New returns a JSON codec.
func New() JSON { return JSON{} }

// Encode implements protocol.Encoder.
func (JSON) Encode(m protocol.Message) ([]byte, error) {
	env := envelope{SystemID: m.SystemID, ComponentID: m.ComponentID, Seq: m.Seq, Kind: m.Kind}
	switch p := m.Payload.(type) {
	case nil:
	case protocol.Unknown:
		env.Payload = p.Raw
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", m.Kind, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode implements protocol.Decoder.
func (JSON) Decode(data []byte) (protocol.Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return protocol.Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.SystemID <= 0 {
		return protocol.Message{}, fmt.Errorf("%w: missing sysid", ErrMalformed)
	}
	msg := protocol.Message{SystemID: env.SystemID, ComponentID: env.ComponentID, Seq: env.Seq, Kind: env.Kind}
	t, ok := payloadTypes[env.Kind]
	if !ok {
		msg.Payload = protocol.Unknown{Raw: env.Payload}
		return msg, nil
	}
	ptr := reflect.New(t)
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, ptr.Interface()); err != nil {
			return protocol.Message{}, fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Kind, err)
		}
	}
	msg.Payload = ptr.Elem().Interface()
	return msg, nil
}

var _ protocol.Codec = JSON{}
