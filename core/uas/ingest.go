package uas

import (
	"time"

	"github.com/kilianp07/gcsproxy/core/events"
	"github.com/kilianp07/gcsproxy/core/link"
	"github.com/kilianp07/gcsproxy/core/model"
	"github.com/kilianp07/gcsproxy/core/protocol"
)

// ReceiveMessage is the entry point for inbound telemetry. Messages from
// another system id are ignored. The link the message arrived on is added to
// the vehicle's links.
func (v *Vehicle) ReceiveMessage(l link.Link, msg protocol.Message) {
	if msg.SystemID != v.id {
		return
	}
	v.AddLink(l)

	now := msg.Received
	if now.IsZero() {
		now = v.now()
	}

	v.mu.Lock()
	defer v.unlock()

	v.observeMessage(now)
	switch {
	case !handledKinds[msg.Kind]:
		v.recordUnknownLocked(msg.Kind)
	case !v.dispatchLocked(msg, now):
		v.recordMalformedLocked(msg.Kind)
	}
	v.checkDropRate()
}

var handledKinds = map[protocol.MsgID]bool{
	protocol.MsgHeartbeat:       true,
	protocol.MsgSysStatus:       true,
	protocol.MsgBatteryStatus:   true,
	protocol.MsgAttitude:        true,
	protocol.MsgManualControl:   true,
	protocol.MsgActuatorStatus:  true,
	protocol.MsgMotorStatus:     true,
	protocol.MsgWaypointAck:     true,
	protocol.MsgWaypointCurrent: true,
	protocol.MsgSystemTime:      true,
}

// dispatchLocked applies a message of a handled kind and reports whether its
// payload had the expected type.
func (v *Vehicle) dispatchLocked(msg protocol.Message, now time.Time) bool {
	switch msg.Kind {
	case protocol.MsgHeartbeat:
		p, ok := msg.Payload.(protocol.Heartbeat)
		if ok {
			v.onHeartbeat(p, now)
		}
		return ok
	case protocol.MsgSysStatus:
		p, ok := msg.Payload.(protocol.SysStatus)
		if ok {
			v.onSysStatus(p, now)
		}
		return ok
	case protocol.MsgBatteryStatus:
		p, ok := msg.Payload.(protocol.BatteryStatus)
		if ok {
			v.onVoltageSample(p.Voltage, now)
		}
		return ok
	case protocol.MsgAttitude:
		p, ok := msg.Payload.(protocol.Attitude)
		if ok {
			v.onAttitude(p, now)
		}
		return ok
	case protocol.MsgManualControl:
		p, ok := msg.Payload.(protocol.ManualControl)
		if ok {
			v.onManualEcho(p, now)
		}
		return ok
	case protocol.MsgActuatorStatus:
		p, ok := msg.Payload.(protocol.OutputStatus)
		if ok {
			v.actuators = v.updateOutputs(v.actuators, p.Outputs, events.FieldActuator, now)
		}
		return ok
	case protocol.MsgMotorStatus:
		p, ok := msg.Payload.(protocol.OutputStatus)
		if ok {
			v.motors = v.updateOutputs(v.motors, p.Outputs, events.FieldMotor, now)
		}
		return ok
	case protocol.MsgWaypointAck:
		p, ok := msg.Payload.(protocol.WaypointAck)
		if ok {
			v.lastWaypointAck = p.Type
			v.emit(events.Event{Field: events.FieldWaypointAck, Value: float64(p.Type), Time: now})
		}
		return ok
	case protocol.MsgWaypointCurrent:
		p, ok := msg.Payload.(protocol.WaypointCurrent)
		if ok && p.Seq != v.currentWaypoint {
			v.currentWaypoint = p.Seq
			v.emit(events.Event{Field: events.FieldWaypointCurrent, Value: float64(p.Seq), Time: now})
		}
		return ok
	case protocol.MsgSystemTime:
		p, ok := msg.Payload.(protocol.SystemTime)
		if ok && p.UnixUsec > 0 {
			v.clockOffset = now.Sub(time.UnixMicro(int64(p.UnixUsec)))
		}
		return ok
	}
	return false
}

func (v *Vehicle) recordUnknownLocked(kind protocol.MsgID) {
	if _, seen := v.unknownKinds[kind]; seen {
		return
	}
	v.unknownKinds[kind] = struct{}{}
	v.unknownOrder = append(v.unknownOrder, kind)
	v.log.Debugw("unknown message kind", map[string]any{"vehicle_id": v.id, "kind": uint32(kind)})
	v.emit(events.Event{Field: events.FieldUnknownMessage, Name: kind.String(), Value: float64(kind)})
}

func (v *Vehicle) recordMalformedLocked(kind protocol.MsgID) {
	v.malformed++
	v.log.Debugw("malformed payload", map[string]any{"vehicle_id": v.id, "kind": kind.String()})
	v.emit(events.Event{Field: events.FieldMalformed, Name: kind.String(), Value: float64(v.malformed)})
}

func (v *Vehicle) onHeartbeat(p protocol.Heartbeat, now time.Time) {
	v.vehicleType = p.Type
	v.applyMode(p.Mode, now)
	v.applyStatus(p.Status, now)
	v.emit(events.Event{Field: events.FieldHeartbeat, Value: float64(p.Type), Time: now})
	v.observeHeartbeat(now)
}

func (v *Vehicle) onSysStatus(p protocol.SysStatus, now time.Time) {
	v.applyMode(p.Mode, now)
	v.applyStatus(p.Status, now)
	if p.Load != v.load {
		v.load = p.Load
		v.emit(events.Event{Field: events.FieldLoad, Value: p.Load, Time: now})
	}
	if p.VoltageMV > 0 {
		v.onVoltageSample(float64(p.VoltageMV)/1000, now)
	}
	if rx := clampPercent(p.ReceiveDropRate); rx != v.receiveDropRate {
		v.receiveDropRate = rx
		v.emit(events.Event{Field: events.FieldDropRate, Name: "receive", Value: rx, Time: now})
	}
	if tx := clampPercent(p.SendDropRate); tx != v.sendDropRate {
		v.sendDropRate = tx
		v.emit(events.Event{Field: events.FieldDropRate, Name: "send", Value: tx, Time: now})
	}
}

// applyMode mirrors the mode reported by the vehicle. An outstanding mode
// request is confirmed once the vehicle reports it.
func (v *Vehicle) applyMode(m protocol.Mode, now time.Time) {
	if m != v.mode {
		v.mode = m
		v.emit(events.Event{Field: events.FieldMode, Value: float64(m), Time: now})
	}
	if v.requestedMode != nil && *v.requestedMode == m {
		v.requestedMode = nil
		v.emit(events.Event{Field: events.FieldMode, Name: "confirmed", Value: float64(m), Text: "confirmed", Time: now})
	}
}

func (v *Vehicle) applyStatus(s int, now time.Time) {
	if s != v.status {
		v.status = s
		v.emit(events.Event{Field: events.FieldStatus, Value: float64(s), Time: now})
	}
}

func (v *Vehicle) onAttitude(p protocol.Attitude, now time.Time) {
	a := model.Attitude{Roll: p.Roll, Pitch: p.Pitch, Yaw: p.Yaw}
	if a == v.attitude {
		return
	}
	v.attitude = a
	for _, ax := range []struct {
		name string
		val  float64
	}{{"roll", a.Roll}, {"pitch", a.Pitch}, {"yaw", a.Yaw}} {
		v.emit(events.Event{Field: events.FieldAttitude, Name: ax.name, Value: ax.val, Time: now})
	}
}

func (v *Vehicle) onManualEcho(p protocol.ManualControl, now time.Time) {
	mc := model.ManualControl{
		RollManual: p.RollManual, PitchManual: p.PitchManual,
		YawManual: p.YawManual, ThrustManual: p.ThrustManual,
		Roll: p.Roll, Pitch: p.Pitch, Yaw: p.Yaw, Thrust: p.Thrust,
	}
	if mc == v.manual {
		return
	}
	v.manual = mc
	v.emitManualLocked(now)
}

// updateOutputs upserts channels by name, keeping first-seen order.
func (v *Vehicle) updateOutputs(cur []model.OutputValue, in []protocol.Output, field events.Field, now time.Time) []model.OutputValue {
	for _, o := range in {
		next := model.OutputValue{Name: o.Name, Value: o.Value, Min: o.Min, Max: o.Max}
		idx := -1
		for i := range cur {
			if cur[i].Name == o.Name {
				idx = i
				break
			}
		}
		switch {
		case idx < 0:
			cur = append(cur, next)
		case cur[idx] == next:
			continue
		default:
			cur[idx] = next
		}
		v.emit(events.Event{Field: field, Name: o.Name, Value: o.Value, Min: o.Min, Max: o.Max, Time: now})
	}
	return cur
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
