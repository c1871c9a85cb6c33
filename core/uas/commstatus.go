package uas

import (
	"context"
	"errors"
	"time"

	"github.com/looplab/fsm"

	"github.com/kilianp07/gcsproxy/core/events"
	"github.com/kilianp07/gcsproxy/core/model"
)

const (
	// EventMessageReceived fires on the first message after a disconnect.
	EventMessageReceived = "message_received"
	// EventLinkEstablished fires after enough on-cadence heartbeats.
	EventLinkEstablished = "link_established"
	// EventDegrade fires on a high drop rate or an overdue heartbeat.
	EventDegrade = "degrade"
	// EventRecover fires when the link is healthy again.
	EventRecover = "recover"
	// EventTimeout fires when nothing was received for the timeout period.
	EventTimeout = "timeout"
	// EventLinksLost fires when the vehicle has no live link left.
	EventLinksLost = "links_lost"
)

var (
	stDisconnected = model.CommDisconnected.String()
	stConnecting   = model.CommConnecting.String()
	stConnected    = model.CommConnected.String()
	stDegraded     = model.CommDegraded.String()
)

type commFSM struct {
	*fsm.FSM
}

func newCommFSM(onEnter func(ctx context.Context, e *fsm.Event)) *commFSM {
	live := []string{stConnecting, stConnected, stDegraded}
	evs := fsm.Events{
		{Name: EventMessageReceived, Src: []string{stDisconnected}, Dst: stConnecting},
		{Name: EventLinkEstablished, Src: []string{stConnecting}, Dst: stConnected},
		{Name: EventDegrade, Src: []string{stConnected}, Dst: stDegraded},
		{Name: EventRecover, Src: []string{stDegraded}, Dst: stConnected},
		{Name: EventTimeout, Src: live, Dst: stDisconnected},
		{Name: EventLinksLost, Src: live, Dst: stDisconnected},
	}
	return &commFSM{FSM: fsm.NewFSM(stDisconnected, evs, fsm.Callbacks{
		"enter_state": onEnter,
	})}
}

// fire triggers a transition if it is valid from the current state. Callers
// hold v.mu.
func (v *Vehicle) fire(event string) {
	if !v.comm.Can(event) {
		return
	}
	if err := v.comm.Event(context.Background(), event); err != nil {
		var noTransition fsm.NoTransitionError
		if !errors.As(err, &noTransition) {
			v.log.Warnf("uas %d: comm status %s: %v", v.id, event, err)
		}
	}
}

// onCommStatus runs inside fire while v.mu is held.
func (v *Vehicle) onCommStatus(_ context.Context, e *fsm.Event) {
	if e.Dst == stDisconnected {
		v.heartbeats = 0
		v.lastHeartbeat = time.Time{}
	}
	v.log.Infow("comm status changed", map[string]any{
		"vehicle_id": v.id, "from": e.Src, "to": e.Dst, "event": e.Event,
	})
	st, _ := model.ParseCommStatus(e.Dst)
	v.emit(events.Event{Field: events.FieldCommStatus, Name: e.Event, Value: float64(st), Text: e.Dst})
}

// CommStatus returns the current communication health.
func (v *Vehicle) CommStatus() model.CommStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	st, _ := model.ParseCommStatus(v.comm.Current())
	return st
}

func (v *Vehicle) maxDropRate() float64 {
	if v.receiveDropRate > v.sendDropRate {
		return v.receiveDropRate
	}
	return v.sendDropRate
}

// observeMessage updates liveness for any inbound message. A silence longer
// than the timeout that no Tick caught yet is applied first, so the vehicle
// goes through disconnected before reconnecting.
func (v *Vehicle) observeMessage(now time.Time) {
	if v.comm.Current() != stDisconnected && !v.lastMessage.IsZero() &&
		now.Sub(v.lastMessage) > v.cfg.timeout() {
		v.fire(EventTimeout)
	}
	v.lastMessage = now
	v.fire(EventMessageReceived)
}

// observeHeartbeat updates the heartbeat cadence and drives the
// connecting/connected/degraded transitions.
func (v *Vehicle) observeHeartbeat(now time.Time) {
	onCadence := v.lastHeartbeat.IsZero() || now.Sub(v.lastHeartbeat) <= v.cfg.overdueAfter()
	if onCadence {
		v.heartbeats++
	} else {
		v.heartbeats = 1
	}
	v.lastHeartbeat = now

	switch v.comm.Current() {
	case stConnecting:
		if v.heartbeats >= v.cfg.ConnectHeartbeats {
			v.fire(EventLinkEstablished)
		}
	case stDegraded:
		if onCadence && v.maxDropRate() <= v.cfg.DegradedDropRate {
			v.fire(EventRecover)
		}
	}
}

// checkDropRate degrades a connected vehicle whose links lose too much.
func (v *Vehicle) checkDropRate() {
	if v.comm.Current() == stConnected && v.maxDropRate() > v.cfg.DegradedDropRate {
		v.fire(EventDegrade)
	}
}

// Tick evaluates the time based transitions: message timeout, overdue
// heartbeat and vanished links. The fleet manager calls it periodically.
func (v *Vehicle) Tick(now time.Time) {
	v.mu.Lock()
	defer v.unlock()

	v.pruneLinksLocked()
	if v.comm.Current() == stDisconnected {
		return
	}
	switch {
	case len(v.links) == 0:
		v.fire(EventLinksLost)
	case now.Sub(v.lastMessage) > v.cfg.timeout():
		v.fire(EventTimeout)
	case v.comm.Current() == stConnected && !v.lastHeartbeat.IsZero() &&
		now.Sub(v.lastHeartbeat) > v.cfg.overdueAfter():
		v.fire(EventDegrade)
	}
}
