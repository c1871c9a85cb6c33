// Package uas implements the ground side proxy of a single vehicle.
//
// A Vehicle ingests decoded telemetry from any number of links, keeps the
// derived state (power, communication health, mode, manual control) and
// sends operator commands back over its links. All state is guarded by one
// mutex; events are collected while the lock is held and published once it
// is released.
package uas

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kilianp07/gcsproxy/core/events"
	"github.com/kilianp07/gcsproxy/core/link"
	"github.com/kilianp07/gcsproxy/core/logger"
	"github.com/kilianp07/gcsproxy/core/model"
	"github.com/kilianp07/gcsproxy/core/protocol"
)

// Vehicle is the proxy of one remote unit.
type Vehicle struct {
	id int

	cfg     Config
	now     func() time.Time
	bus     events.Publisher
	arena   *link.Registry
	encoder protocol.Encoder
	log     logger.Logger
	limiter *rate.Limiter

	mu        sync.Mutex
	pending   []events.Event
	name      string
	startTime time.Time
	selected  bool
	seq       uint8

	comm          *commFSM
	lastMessage   time.Time
	lastHeartbeat time.Time
	heartbeats    int

	vehicleType   int
	mode          protocol.Mode
	requestedMode *protocol.Mode
	status        int
	load          float64
	attitude      model.Attitude

	battery         model.Battery
	currentVoltage  float64
	filteredVoltage float64
	filterSeeded    bool
	startVoltage    float64
	startVoltageAt  time.Time

	manual        model.ManualControl
	manualPending bool

	actuators []model.OutputValue
	motors    []model.OutputValue

	unknownKinds map[protocol.MsgID]struct{}
	unknownOrder []protocol.MsgID
	malformed    int

	receiveDropRate float64
	sendDropRate    float64
	clockOffset     time.Duration

	currentWaypoint int
	lastWaypointAck int

	links []string
}

// Option configures a Vehicle.
type Option func(*Vehicle)

// WithName sets the initial label.
func WithName(name string) Option { return func(v *Vehicle) { v.name = name } }

// WithConfig overrides the default thresholds.
func WithConfig(cfg Config) Option { return func(v *Vehicle) { v.cfg = cfg } }

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Vehicle) {
		if now != nil {
			v.now = now
		}
	}
}

// WithBus sets the event publisher.
func WithBus(p events.Publisher) Option { return func(v *Vehicle) { v.bus = p } }

// WithArena shares a link registry with the transports.
func WithArena(r *link.Registry) Option { return func(v *Vehicle) { v.arena = r } }

// WithEncoder sets the codec used for outgoing messages.
func WithEncoder(e protocol.Encoder) Option { return func(v *Vehicle) { v.encoder = e } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(v *Vehicle) {
		if l != nil {
			v.log = l
		}
	}
}

// New creates the proxy for vehicle id.
func New(id int, opts ...Option) (*Vehicle, error) {
	v := &Vehicle{
		id:           id,
		cfg:          DefaultConfig(),
		now:          time.Now,
		log:          logger.NopLogger{},
		unknownKinds: make(map[protocol.MsgID]struct{}),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.cfg.SetDefaults()
	if err := v.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("uas %d: %w", id, err)
	}
	b, err := v.cfg.Battery()
	if err != nil {
		return nil, fmt.Errorf("uas %d: %w", id, err)
	}
	v.battery = b
	if v.arena == nil {
		v.arena = link.NewRegistry()
	}
	if v.name == "" {
		v.name = fmt.Sprintf("UAS%d", id)
	}
	v.limiter = rate.NewLimiter(rate.Limit(v.cfg.ManualControlRateHz), 1)
	v.startTime = v.now()
	v.comm = newCommFSM(v.onCommStatus)
	return v, nil
}

// ID returns the immutable vehicle identifier.
func (v *Vehicle) ID() int { return v.id }

// Name returns the human label.
func (v *Vehicle) Name() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.name
}

// SetName changes the human label.
func (v *Vehicle) SetName(name string) {
	v.mu.Lock()
	v.name = name
	v.mu.Unlock()
}

// Uptime is the time since the proxy was created.
func (v *Vehicle) Uptime() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now().Sub(v.startTime)
}

// SetSelected flags the vehicle as the operator focus.
func (v *Vehicle) SetSelected(selected bool) {
	v.mu.Lock()
	v.selected = selected
	v.mu.Unlock()
}

// Mode returns the last mode confirmed by the vehicle.
func (v *Vehicle) Mode() protocol.Mode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

// GroundTime translates an onboard timestamp to ground time.
func (v *Vehicle) GroundTime(onboard time.Time) time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return onboard.Add(v.clockOffset)
}

// UnknownMessageKinds returns the unrecognised kinds in first-seen order.
func (v *Vehicle) UnknownMessageKinds() []protocol.MsgID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]protocol.MsgID(nil), v.unknownOrder...)
}

// Snapshot returns a consistent copy of the vehicle state.
func (v *Vehicle) Snapshot() model.Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.now()
	s := model.Snapshot{
		ID:              v.id,
		Name:            v.name,
		Type:            v.vehicleType,
		StartTime:       v.startTime,
		Uptime:          now.Sub(v.startTime),
		CommStatus:      v.comm.Current(),
		Mode:            int(v.mode),
		Status:          v.status,
		Load:            v.load,
		ManualControl:   v.manual,
		Attitude:        v.attitude,
		Actuators:       append([]model.OutputValue(nil), v.actuators...),
		Motors:          append([]model.OutputValue(nil), v.motors...),
		Malformed:       v.malformed,
		ReceiveDropRate: v.receiveDropRate,
		SendDropRate:    v.sendDropRate,
		ClockOffset:     v.clockOffset,
		CurrentWaypoint: v.currentWaypoint,
		LastWaypointAck: v.lastWaypointAck,
		Links:           v.liveLinksLocked(),
		LastMessage:     v.lastMessage,
		LastHeartbeat:   v.lastHeartbeat,
		Selected:        v.selected,
		Battery: model.BatteryState{
			Type:            v.battery.Type.String(),
			Cells:           v.battery.Cells,
			FullVoltage:     v.battery.FullVoltage(),
			EmptyVoltage:    v.battery.EmptyVoltage(),
			CurrentVoltage:  v.currentVoltage,
			FilteredVoltage: v.filteredVoltage,
			StartVoltage:    v.startVoltage,
			ChargeLevel:     v.battery.ChargeLevel(v.filteredVoltage),
		},
	}
	s.StatusState, s.StatusText = protocol.StatusInfo(v.status)
	if v.requestedMode != nil {
		m := int(*v.requestedMode)
		s.RequestedMode = &m
	}
	if d, ok := v.timeRemainingLocked(now); ok {
		s.Battery.TimeRemaining = &d
	}
	s.UnknownKinds = make([]uint32, len(v.unknownOrder))
	for i, k := range v.unknownOrder {
		s.UnknownKinds[i] = uint32(k)
	}
	return s
}
