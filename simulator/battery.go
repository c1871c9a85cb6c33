package simulator

import (
	"sync"
	"time"
)

// Battery models a pack discharging linearly between its empty and full
// per cell voltages.
type Battery struct {
	CapacityWh          float64 // usable energy
	Charge              float64 // state of charge [0,1]
	MaxDrawW            float64 // maximum discharge power
	Cells               int
	FullVoltagePerCell  float64
	EmptyVoltagePerCell float64
	mu                  sync.Mutex
}

// NewLiPoBattery returns a full lithium polymer pack.
func NewLiPoBattery(cells int, capacityWh float64) *Battery {
	return &Battery{
		CapacityWh:          capacityWh,
		Charge:              1,
		MaxDrawW:            capacityWh * 4,
		Cells:               cells,
		FullVoltagePerCell:  4.2,
		EmptyVoltagePerCell: 3.5,
	}
}

// Draw removes the energy used by powerW over dt and returns the power
// actually delivered after enforcing the draw limit and remaining charge.
func (b *Battery) Draw(powerW float64, dt time.Duration) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	hours := dt.Hours()
	if hours <= 0 || powerW <= 0 || b.CapacityWh <= 0 {
		return 0
	}
	actual := powerW
	if b.MaxDrawW > 0 && actual > b.MaxDrawW {
		actual = b.MaxDrawW
	}
	available := b.Charge * b.CapacityWh
	needed := actual * hours
	if needed > available {
		needed = available
		actual = needed / hours
	}
	b.Charge -= needed / b.CapacityWh
	if b.Charge < 0 {
		b.Charge = 0
	}
	return actual
}

// Level returns the state of charge in [0,1].
func (b *Battery) Level() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Charge
}

// Voltage returns the pack voltage for the current charge.
func (b *Battery) Voltage() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	perCell := b.EmptyVoltagePerCell + (b.FullVoltagePerCell-b.EmptyVoltagePerCell)*b.Charge
	return perCell * float64(b.Cells)
}
