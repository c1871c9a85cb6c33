package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidCellCount is returned for battery packs with fewer than one cell.
	ErrInvalidCellCount = errors.New("cell count must be at least 1")
	// ErrInvalidVoltageRange is returned unless full > empty > 0.
	ErrInvalidVoltageRange = errors.New("full cell voltage must exceed empty cell voltage")
	// ErrUnknownBatteryType is returned when parsing an unsupported chemistry.
	ErrUnknownBatteryType = errors.New("unknown battery type")
)

// BatteryType identifies the cell chemistry of a pack.
type BatteryType int

const (
	NiCd BatteryType = iota
	NiMH
	LiIon
	LiPoly
	LiFe
	AgZn
)

type chemistry struct {
	name  string
	full  float64
	empty float64
}

// Per cell voltages in volts.
var chemistries = map[BatteryType]chemistry{
	NiCd:   {"nicd", 1.4, 1.0},
	NiMH:   {"nimh", 1.4, 1.0},
	LiIon:  {"liion", 4.2, 3.0},
	LiPoly: {"lipo", 4.2, 3.5},
	LiFe:   {"life", 3.6, 2.8},
	AgZn:   {"agzn", 1.86, 1.3},
}

// String returns the short chemistry name.
func (t BatteryType) String() string {
	if c, ok := chemistries[t]; ok {
		return c.name
	}
	return "unknown"
}

// CellVoltages returns the full and empty voltage of a single cell.
func (t BatteryType) CellVoltages() (full, empty float64, ok bool) {
	c, ok := chemistries[t]
	return c.full, c.empty, ok
}

// ParseBatteryType resolves a chemistry name such as "lipo" or "Li-poly".
func ParseBatteryType(s string) (BatteryType, error) {
	norm := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(s))
	switch norm {
	case "lipoly":
		return LiPoly, nil
	case "lifepo4":
		return LiFe, nil
	}
	for t, c := range chemistries {
		if c.name == norm {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBatteryType, s)
}

// Battery describes the pack fitted to a vehicle.
type Battery struct {
	Type                BatteryType
	Cells               int
	FullVoltagePerCell  float64
	EmptyVoltagePerCell float64
}

// NewBattery returns a pack with the chemistry's nominal cell voltages.
func NewBattery(t BatteryType, cells int) (Battery, error) {
	full, empty, ok := t.CellVoltages()
	if !ok {
		return Battery{}, fmt.Errorf("%w: %d", ErrUnknownBatteryType, int(t))
	}
	b := Battery{Type: t, Cells: cells, FullVoltagePerCell: full, EmptyVoltagePerCell: empty}
	return b, b.Validate()
}

// Validate checks the pack invariants.
func (b Battery) Validate() error {
	if b.Cells < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidCellCount, b.Cells)
	}
	if b.EmptyVoltagePerCell <= 0 || b.FullVoltagePerCell <= b.EmptyVoltagePerCell {
		return fmt.Errorf("%w: full=%.3f empty=%.3f", ErrInvalidVoltageRange, b.FullVoltagePerCell, b.EmptyVoltagePerCell)
	}
	return nil
}

// FullVoltage is the pack voltage at 100 %.
func (b Battery) FullVoltage() float64 { return float64(b.Cells) * b.FullVoltagePerCell }

// EmptyVoltage is the pack voltage at 0 %.
func (b Battery) EmptyVoltage() float64 { return float64(b.Cells) * b.EmptyVoltagePerCell }

// ChargeLevel linearly maps a pack voltage to a percentage in [0,100].
func (b Battery) ChargeLevel(voltage float64) float64 {
	full, empty := b.FullVoltage(), b.EmptyVoltage()
	if full <= empty {
		return 0
	}
	pct := (voltage - empty) / (full - empty) * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}
