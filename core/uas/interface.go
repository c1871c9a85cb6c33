package uas

import (
	"context"
	"time"

	"github.com/kilianp07/gcsproxy/core/events"
	"github.com/kilianp07/gcsproxy/core/link"
	"github.com/kilianp07/gcsproxy/core/model"
	"github.com/kilianp07/gcsproxy/core/protocol"
)

// Identity is the identity query part of a vehicle.
type Identity interface {
	ID() int
	Name() string
}

// Observer exposes read access to the vehicle state.
type Observer interface {
	Snapshot() model.Snapshot
	CommStatus() model.CommStatus
	ChargeLevel() float64
	TimeRemaining() (time.Duration, bool)
	IsAuto() bool
	Links() []string
}

// Commander issues commands to the vehicle.
type Commander interface {
	SendMessage(protocol.Message) error
	SendMessageOn(linkID string, msg protocol.Message) error
	Launch() error
	Home() error
	Halt() error
	Go() error
	EmergencySTOP() error
	EmergencyKILL() error
	Shutdown() error
	EnableMotors() error
	DisableMotors() error
	Do(protocol.Action) error
	RequestWaypoints() error
	ClearWaypointList() error
	SetWaypoint(protocol.Waypoint) error
	SetWaypointActive(seq int) error
	SetMode(protocol.Mode) error
	SetManualControlCommands(roll, pitch, yaw, thrust float64) error
	ReleaseManualControl() error
	ReceiveButton(index int) error
}

// Interface is the full capability set observers and operators use.
type Interface interface {
	Identity
	Observer
	Commander
	ReceiveMessage(link.Link, protocol.Message)
	Subscribe(ctx context.Context) <-chan events.Event
}

var _ Interface = (*Vehicle)(nil)
