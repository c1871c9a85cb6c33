package uas

import (
	"context"

	"github.com/kilianp07/gcsproxy/core/events"
)

// emit queues an event. Callers hold v.mu.
func (v *Vehicle) emit(e events.Event) {
	e.VehicleID = v.id
	if e.Time.IsZero() {
		e.Time = v.now()
	}
	v.pending = append(v.pending, e)
}

// unlock releases v.mu and publishes the queued events.
func (v *Vehicle) unlock() {
	evs := v.pending
	v.pending = nil
	v.mu.Unlock()
	if v.bus == nil {
		return
	}
	for _, e := range evs {
		v.bus.Publish(e)
	}
}

// Subscribe streams the events of this vehicle until ctx is done. It returns
// nil when the vehicle was built without a subscribable bus.
func (v *Vehicle) Subscribe(ctx context.Context) <-chan events.Event {
	bus, ok := v.bus.(events.Bus)
	if !ok {
		return nil
	}
	src := bus.Subscribe()
	out := make(chan events.Event, cap(src))
	go func() {
		defer close(out)
		defer bus.Unsubscribe(src)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-src:
				if !ok {
					return
				}
				if e.VehicleID != v.id {
					continue
				}
				select {
				case out <- e:
				default:
				}
			}
		}
	}()
	return out
}
