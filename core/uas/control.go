package uas

import (
	"fmt"
	"time"

	"github.com/kilianp07/gcsproxy/core/events"
	"github.com/kilianp07/gcsproxy/core/protocol"
)

// SetManualControlCommands puts all four axes under manual control with the
// given set-points in one step and forwards them to the vehicle. Forwarding
// is rate limited: a call above the configured rate updates the state and
// schedules one trailing send that carries the latest set-points.
func (v *Vehicle) SetManualControlCommands(roll, pitch, yaw, thrust float64) error {
	v.mu.Lock()
	v.manual.Roll, v.manual.Pitch, v.manual.Yaw, v.manual.Thrust = roll, pitch, yaw, thrust
	v.manual.RollManual, v.manual.PitchManual, v.manual.YawManual, v.manual.ThrustManual = true, true, true, true
	v.emitManualLocked(v.now())
	if !v.limiter.Allow() {
		v.scheduleManualLocked()
		v.unlock()
		return nil
	}
	msg := v.newMessageLocked(protocol.MsgManualSetpoint, v.setpointLocked())
	v.unlock()
	return v.SendMessage(msg)
}

// scheduleManualLocked arms at most one timer that sends the set-points
// current when it fires.
func (v *Vehicle) scheduleManualLocked() {
	if v.manualPending {
		return
	}
	v.manualPending = true
	time.AfterFunc(v.limiter.Reserve().Delay(), v.flushManual)
}

func (v *Vehicle) flushManual() {
	v.mu.Lock()
	v.manualPending = false
	if v.manual.IsAuto() {
		// the release was sent without throttling
		v.mu.Unlock()
		return
	}
	msg := v.newMessageLocked(protocol.MsgManualSetpoint, v.setpointLocked())
	v.mu.Unlock()
	if err := v.SendMessage(msg); err != nil {
		v.log.Warnf("uas %d: trailing manual set-point: %v", v.id, err)
	}
}

// ReleaseManualControl hands every axis back to the autopilot. The release is
// never rate limited.
func (v *Vehicle) ReleaseManualControl() error {
	v.mu.Lock()
	v.manual.RollManual, v.manual.PitchManual, v.manual.YawManual, v.manual.ThrustManual = false, false, false, false
	v.emitManualLocked(v.now())
	msg := v.newMessageLocked(protocol.MsgManualSetpoint, v.setpointLocked())
	v.unlock()
	return v.SendMessage(msg)
}

// IsAuto reports whether no axis is under manual control.
func (v *Vehicle) IsAuto() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.manual.IsAuto()
}

// SetMode asks the vehicle to switch mode. The local mode only follows once
// the vehicle reports the new mode. A request that reached no link is not
// kept as outstanding.
func (v *Vehicle) SetMode(m protocol.Mode) error {
	v.mu.Lock()
	req := &m
	v.requestedMode = req
	msg := v.newMessageLocked(protocol.MsgSetMode, protocol.SetModeCommand{Target: v.id, Mode: m})
	v.mu.Unlock()
	v.log.Infof("uas %d: mode %d requested", v.id, m)

	err := v.SendMessage(msg)
	if !Delivered(err) {
		v.mu.Lock()
		if v.requestedMode == req {
			v.requestedMode = nil
		}
		v.mu.Unlock()
	}
	return err
}

// ReceiveButton triggers the command mapped to a joystick or panel button.
func (v *Vehicle) ReceiveButton(index int) error {
	if index < 0 || index >= len(v.cfg.Buttons) || v.cfg.Buttons[index] == "" {
		return fmt.Errorf("%w: %d", ErrUnmappedButton, index)
	}
	name := v.cfg.Buttons[index]
	if name == ButtonToggleMode {
		next := protocol.ModeAuto
		if v.Mode() == protocol.ModeAuto {
			next = protocol.ModeManual
		}
		return v.SetMode(next)
	}
	a, ok := protocol.ParseAction(name)
	if !ok {
		return fmt.Errorf("%w: %d (%s)", ErrUnmappedButton, index, name)
	}
	return v.sendAction(a)
}

func (v *Vehicle) setpointLocked() protocol.ManualSetpoint {
	m := v.manual
	return protocol.ManualSetpoint{
		Target:       v.id,
		Roll:         m.Roll,
		Pitch:        m.Pitch,
		Yaw:          m.Yaw,
		Thrust:       m.Thrust,
		RollManual:   m.RollManual,
		PitchManual:  m.PitchManual,
		YawManual:    m.YawManual,
		ThrustManual: m.ThrustManual,
	}
}

func (v *Vehicle) emitManualLocked(now time.Time) {
	m := v.manual
	text := "manual"
	if m.IsAuto() {
		text = "auto"
	}
	for _, ax := range []struct {
		name string
		val  float64
	}{{"roll", m.Roll}, {"pitch", m.Pitch}, {"yaw", m.Yaw}, {"thrust", m.Thrust}} {
		v.emit(events.Event{Field: events.FieldManualControl, Name: ax.name, Value: ax.val, Text: text, Time: now})
	}
}
