package uas

import (
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/gcsproxy/core/events"
	"github.com/kilianp07/gcsproxy/core/monitoring"
	"github.com/kilianp07/gcsproxy/core/protocol"
)

// newMessage builds an outbound message stamped with the ground station ids
// and the next sequence number.
func (v *Vehicle) newMessage(kind protocol.MsgID, payload any) protocol.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.newMessageLocked(kind, payload)
}

func (v *Vehicle) newMessageLocked(kind protocol.MsgID, payload any) protocol.Message {
	msg := protocol.Message{
		SystemID:    v.cfg.GCSSystemID,
		ComponentID: v.cfg.GCSComponentID,
		Seq:         v.seq,
		Kind:        kind,
		Payload:     payload,
	}
	v.seq++
	return msg
}

func (v *Vehicle) encode(msg protocol.Message) ([]byte, error) {
	if v.encoder == nil {
		return nil, ErrNoEncoder
	}
	raw, err := v.encoder.Encode(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Kind, err)
	}
	return raw, nil
}

// SendMessageOn sends msg on exactly one link. The link must belong to the
// vehicle and still be registered with its transport.
func (v *Vehicle) SendMessageOn(linkID string, msg protocol.Message) error {
	raw, err := v.encode(msg)
	if err != nil {
		return err
	}
	v.mu.Lock()
	known := v.hasLinkLocked(linkID)
	v.mu.Unlock()
	if !known {
		err = LinkError{LinkID: linkID, Err: ErrLinkNotRegistered}
	} else {
		err = v.sendRaw(linkID, raw)
	}
	if err != nil {
		v.reportFailure(msg.Kind, linkID, err)
		return err
	}
	v.publish(events.Event{Field: events.FieldCommand, Name: msg.Kind.String(), Value: 1, Text: linkID})
	return nil
}

// SendMessage broadcasts msg on every link of the vehicle, one attempt per
// link. Failures on some links do not prevent delivery on the others and are
// returned together as a *DispatchError.
func (v *Vehicle) SendMessage(msg protocol.Message) error {
	ids := v.Links()
	if len(ids) == 0 {
		err := fmt.Errorf("%s: %w", msg.Kind, ErrNoLinks)
		v.publish(events.Event{Field: events.FieldDispatchFailure, Name: msg.Kind.String(), Text: err.Error()})
		return err
	}
	raw, err := v.encode(msg)
	if err != nil {
		return err
	}

	errs := make([]error, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			errs[i] = v.sendRaw(id, raw)
			return errs[i]
		})
	}
	_ = g.Wait()

	derr := &DispatchError{Kind: msg.Kind, Attempted: len(ids)}
	for i, e := range errs {
		if e == nil {
			continue
		}
		var le LinkError
		if !errors.As(e, &le) {
			le = LinkError{LinkID: ids[i], Err: e}
		}
		derr.Failures = append(derr.Failures, le)
		v.reportFailure(msg.Kind, ids[i], le)
	}
	sent := len(ids) - len(derr.Failures)
	if sent > 0 {
		v.publish(events.Event{Field: events.FieldCommand, Name: msg.Kind.String(), Value: float64(sent)})
	}
	if len(derr.Failures) > 0 {
		return derr
	}
	return nil
}

func (v *Vehicle) sendRaw(linkID string, raw []byte) error {
	l, err := v.arena.Lookup(linkID)
	if err != nil {
		return LinkError{LinkID: linkID, Err: err}
	}
	if err := l.Send(raw); err != nil {
		return LinkError{LinkID: linkID, Err: err}
	}
	return nil
}

func (v *Vehicle) reportFailure(kind protocol.MsgID, linkID string, err error) {
	v.log.Warnf("uas %d: send %s on %s failed: %v", v.id, kind, linkID, err)
	monitoring.CaptureException(err, map[string]string{
		"module":     "uas",
		"vehicle_id": strconv.Itoa(v.id),
		"link_id":    linkID,
		"kind":       kind.String(),
	})
	v.publish(events.Event{Field: events.FieldDispatchFailure, Name: kind.String(), Text: err.Error()})
}

// publish sends an event immediately. Callers must not hold v.mu.
func (v *Vehicle) publish(e events.Event) {
	if v.bus == nil {
		return
	}
	e.VehicleID = v.id
	if e.Time.IsZero() {
		e.Time = v.now()
	}
	v.bus.Publish(e)
}

func (v *Vehicle) sendAction(a protocol.Action) error {
	return v.SendMessage(v.newMessage(protocol.MsgAction, protocol.ActionCommand{Target: v.id, Action: a}))
}

// Launch starts the vehicle.
func (v *Vehicle) Launch() error { return v.sendAction(protocol.ActionLaunch) }

// Home sends the vehicle back to its home position.
func (v *Vehicle) Home() error { return v.sendAction(protocol.ActionReturnHome) }

// Halt holds the current position.
func (v *Vehicle) Halt() error { return v.sendAction(protocol.ActionHalt) }

// Go resumes the mission after a halt.
func (v *Vehicle) Go() error { return v.sendAction(protocol.ActionContinue) }

// EmergencySTOP commands a controlled emergency landing.
func (v *Vehicle) EmergencySTOP() error { return v.sendAction(protocol.ActionEmergencyLand) }

// EmergencyKILL cuts power immediately.
func (v *Vehicle) EmergencyKILL() error { return v.sendAction(protocol.ActionEmergencyKill) }

// Shutdown powers the onboard systems off.
func (v *Vehicle) Shutdown() error { return v.sendAction(protocol.ActionShutdown) }

// EnableMotors arms the motors.
func (v *Vehicle) EnableMotors() error { return v.sendAction(protocol.ActionMotorsStart) }

// DisableMotors disarms the motors.
func (v *Vehicle) DisableMotors() error { return v.sendAction(protocol.ActionMotorsStop) }

// Do sends an action by value, as used by button mappings and the API.
func (v *Vehicle) Do(a protocol.Action) error {
	if _, ok := protocol.ParseAction(a.String()); !ok {
		return fmt.Errorf("unknown action %d", int(a))
	}
	return v.sendAction(a)
}

// RequestWaypoints asks the vehicle to transmit its waypoint list.
func (v *Vehicle) RequestWaypoints() error {
	return v.SendMessage(v.newMessage(protocol.MsgWaypointRequestAll, protocol.WaypointRequestListCommand{Target: v.id}))
}

// ClearWaypointList clears the onboard waypoint list.
func (v *Vehicle) ClearWaypointList() error {
	return v.SendMessage(v.newMessage(protocol.MsgWaypointClearAll, protocol.WaypointClearAllCommand{Target: v.id}))
}

// SetWaypoint uploads a single waypoint.
func (v *Vehicle) SetWaypoint(wp protocol.Waypoint) error {
	return v.SendMessage(v.newMessage(protocol.MsgWaypointSet, protocol.WaypointSetCommand{Target: v.id, Waypoint: wp}))
}

// SetWaypointActive selects the waypoint the vehicle should head to.
func (v *Vehicle) SetWaypointActive(seq int) error {
	return v.SendMessage(v.newMessage(protocol.MsgWaypointSetCurrent, protocol.WaypointSetCurrentCommand{Target: v.id, Seq: seq}))
}
