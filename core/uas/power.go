package uas

import (
	"time"

	"github.com/kilianp07/gcsproxy/core/events"
	"github.com/kilianp07/gcsproxy/core/model"
)

// FilterVoltage feeds a pack voltage sample through the low-pass filter and
// returns the filtered value. The first sample seeds the filter.
func (v *Vehicle) FilterVoltage(sample float64) float64 {
	v.mu.Lock()
	defer v.unlock()
	v.onVoltageSample(sample, v.now())
	return v.filteredVoltage
}

// FilteredVoltage returns the filtered pack voltage without adding a sample.
func (v *Vehicle) FilteredVoltage() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filteredVoltage
}

// ChargeLevel returns the estimated state of charge in percent.
func (v *Vehicle) ChargeLevel() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.battery.ChargeLevel(v.filteredVoltage)
}

// TimeRemaining projects the voltage drop observed since the first sample to
// the empty threshold. ok is false while the observation window is shorter
// than the configured minimum or the voltage is not dropping.
func (v *Vehicle) TimeRemaining() (remaining time.Duration, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.timeRemainingLocked(v.now())
}

// Battery returns the configured pack.
func (v *Vehicle) Battery() model.Battery {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.battery
}

// SetBattery configures the chemistry and cell count. On error the previous
// configuration is kept.
func (v *Vehicle) SetBattery(t model.BatteryType, cells int) error {
	b, err := model.NewBattery(t, cells)
	if err != nil {
		return err
	}
	return v.ConfigureBattery(b)
}

// ConfigureBattery replaces the whole pack description in one step. An
// invalid pack is rejected and the previous configuration is kept.
func (v *Vehicle) ConfigureBattery(b model.Battery) error {
	if err := b.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	v.battery = b
	v.mu.Unlock()
	return nil
}

// SetBatteryVoltages overrides the per cell thresholds of the current pack.
func (v *Vehicle) SetBatteryVoltages(full, empty float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	b := v.battery
	b.FullVoltagePerCell, b.EmptyVoltagePerCell = full, empty
	if err := b.Validate(); err != nil {
		return err
	}
	v.battery = b
	return nil
}

func (v *Vehicle) onVoltageSample(sample float64, now time.Time) {
	if sample <= 0 {
		return
	}
	v.currentVoltage = sample
	prev := v.filteredVoltage
	if !v.filterSeeded {
		v.filteredVoltage = sample
		v.filterSeeded = true
		v.startVoltage = sample
		v.startVoltageAt = now
	} else {
		a := v.cfg.VoltageFilterAlpha
		v.filteredVoltage = v.filteredVoltage*(1-a) + sample*a
	}
	if v.filteredVoltage == prev {
		return
	}
	v.emit(events.Event{Field: events.FieldVoltage, Value: v.filteredVoltage, Min: v.battery.EmptyVoltage(), Max: v.battery.FullVoltage(), Time: now})
	oldLevel, newLevel := v.battery.ChargeLevel(prev), v.battery.ChargeLevel(v.filteredVoltage)
	if oldLevel != newLevel {
		v.emit(events.Event{Field: events.FieldChargeLevel, Value: newLevel, Min: 0, Max: 100, Time: now})
	}
}

func (v *Vehicle) timeRemainingLocked(now time.Time) (time.Duration, bool) {
	if !v.filterSeeded {
		return 0, false
	}
	elapsed := now.Sub(v.startVoltageAt)
	if elapsed < v.cfg.minEstimateElapsed() {
		return 0, false
	}
	drop := v.startVoltage - v.filteredVoltage
	if drop <= 0 {
		return 0, false
	}
	left := v.filteredVoltage - v.battery.EmptyVoltage()
	if left <= 0 {
		return 0, true
	}
	perVolt := float64(elapsed) / drop
	return time.Duration(left * perVolt), true
}
