// Package fleet routes inbound messages to the vehicle proxies and owns their
// lifecycle.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/gcsproxy/core/events"
	"github.com/kilianp07/gcsproxy/core/link"
	"github.com/kilianp07/gcsproxy/core/logger"
	"github.com/kilianp07/gcsproxy/core/model"
	"github.com/kilianp07/gcsproxy/core/monitoring"
	"github.com/kilianp07/gcsproxy/core/protocol"
	"github.com/kilianp07/gcsproxy/core/uas"
)

var (
	// ErrVehicleExists is returned when adding a known id.
	ErrVehicleExists = errors.New("vehicle already exists")
	// ErrVehicleNotFound is returned for unknown ids.
	ErrVehicleNotFound = errors.New("vehicle not found")
	// ErrFleetFull is returned when MaxVehicles is reached.
	ErrFleetFull = errors.New("fleet is full")
)

// Manager keeps one proxy per vehicle id.
type Manager struct {
	cfg      Config
	vehicle  uas.Config
	arena    *link.Registry
	bus      events.Publisher
	encoder  protocol.Encoder
	log      logger.Logger
	now      func() time.Time
	vehicles map[int]*uas.Vehicle
	mu       sync.RWMutex
}

// NewManager creates a fleet manager. vehicleCfg is applied to every vehicle
// it creates.
func NewManager(cfg Config, vehicleCfg uas.Config, arena *link.Registry, bus events.Publisher, enc protocol.Encoder, log logger.Logger) *Manager {
	cfg.SetDefaults()
	vehicleCfg.SetDefaults()
	if arena == nil {
		arena = link.NewRegistry()
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Manager{
		cfg:      cfg,
		vehicle:  vehicleCfg,
		arena:    arena,
		bus:      bus,
		encoder:  enc,
		log:      log,
		now:      time.Now,
		vehicles: make(map[int]*uas.Vehicle),
	}
}

// Arena returns the link registry shared with the transports.
func (m *Manager) Arena() *link.Registry { return m.arena }

// HandleMessage routes msg to its vehicle, creating the vehicle on first
// sight when auto creation is enabled. Messages echoing the ground station id
// are dropped.
func (m *Manager) HandleMessage(l link.Link, msg protocol.Message) {
	if msg.SystemID == m.vehicle.GCSSystemID {
		return
	}
	v, err := m.Get(msg.SystemID)
	if err != nil {
		if !m.cfg.AutoCreate {
			m.log.Debugf("fleet: dropping message from unknown system %d", msg.SystemID)
			return
		}
		v, err = m.Add(msg.SystemID, "")
		if err != nil && !errors.Is(err, ErrVehicleExists) {
			m.log.Warnf("fleet: cannot add vehicle %d: %v", msg.SystemID, err)
			return
		}
		if v == nil {
			if v, err = m.Get(msg.SystemID); err != nil {
				return
			}
		}
	}
	v.ReceiveMessage(l, msg)
}

// Add registers a new vehicle. An empty name gets the default label.
func (m *Manager) Add(id int, name string) (*uas.Vehicle, error) {
	m.mu.Lock()
	if _, ok := m.vehicles[id]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrVehicleExists, id)
	}
	if m.cfg.MaxVehicles > 0 && len(m.vehicles) >= m.cfg.MaxVehicles {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %d vehicles", ErrFleetFull, m.cfg.MaxVehicles)
	}
	v, err := uas.New(id,
		uas.WithName(name),
		uas.WithConfig(m.vehicle),
		uas.WithClock(m.now),
		uas.WithArena(m.arena),
		uas.WithBus(m.bus),
		uas.WithEncoder(m.encoder),
		uas.WithLogger(m.log),
	)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.vehicles[id] = v
	n := len(m.vehicles)
	m.mu.Unlock()

	m.log.Infow("vehicle added", map[string]any{"vehicle_id": id, "name": v.Name(), "fleet_size": n})
	m.publish(events.Event{VehicleID: id, Field: events.FieldVehicleAdded, Value: float64(n), Text: v.Name()})
	return v, nil
}

// Get returns the vehicle with the given id.
func (m *Manager) Get(id int) (*uas.Vehicle, error) {
	m.mu.RLock()
	v, ok := m.vehicles[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrVehicleNotFound, id)
	}
	return v, nil
}

// Remove drops the vehicle. Its links stay registered with their transport.
func (m *Manager) Remove(id int) error {
	m.mu.Lock()
	if _, ok := m.vehicles[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrVehicleNotFound, id)
	}
	delete(m.vehicles, id)
	n := len(m.vehicles)
	m.mu.Unlock()

	m.log.Infow("vehicle removed", map[string]any{"vehicle_id": id, "fleet_size": n})
	m.publish(events.Event{VehicleID: id, Field: events.FieldVehicleRemoved, Value: float64(n)})
	return nil
}

// Vehicles returns the proxies sorted by id.
func (m *Manager) Vehicles() []*uas.Vehicle {
	m.mu.RLock()
	out := make([]*uas.Vehicle, 0, len(m.vehicles))
	for _, v := range m.vehicles {
		out = append(out, v)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// List returns a snapshot of every vehicle sorted by id.
func (m *Manager) List() []model.Snapshot {
	vs := m.Vehicles()
	out := make([]model.Snapshot, len(vs))
	for i, v := range vs {
		out[i] = v.Snapshot()
	}
	return out
}

// Len returns the number of vehicles.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vehicles)
}

// Select marks id as the operator focus and clears the flag on the others.
func (m *Manager) Select(id int) error {
	if _, err := m.Get(id); err != nil {
		return err
	}
	for _, v := range m.Vehicles() {
		v.SetSelected(v.ID() == id)
	}
	return nil
}

// Tick evaluates liveness on every vehicle.
func (m *Manager) Tick(now time.Time) {
	for _, v := range m.Vehicles() {
		v.Tick(now)
	}
}

// Run ticks the fleet until ctx is canceled.
func (m *Manager) Run(ctx context.Context) error {
	defer monitoring.Recover()
	t := time.NewTicker(m.cfg.tick())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			m.Tick(now)
		}
	}
}

func (m *Manager) publish(e events.Event) {
	if m.bus == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = m.now()
	}
	m.bus.Publish(e)
}
