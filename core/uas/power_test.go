package uas

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/gcsproxy/core/events"
	"github.com/kilianp07/gcsproxy/core/model"
)

func TestFilterVoltageConverges(t *testing.T) {
	f := newFixture(t)
	f.v.FilterVoltage(10)
	var n int
	for n = 1; n < 100; n++ {
		if math.Abs(f.v.FilterVoltage(12)-12) < 1e-6 {
			break
		}
	}
	assert.Less(t, n, 60, "expected convergence within 60 samples")

	converged := f.v.FilteredVoltage()
	for i := 0; i < 20; i++ {
		f.v.FilterVoltage(12)
	}
	assert.InDelta(t, converged, f.v.FilteredVoltage(), 1e-6)
}

func TestFilterVoltageIsConvexCombination(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 11.0, f.v.FilterVoltage(11), "first sample seeds the filter")
	got := f.v.FilterVoltage(12)
	assert.InDelta(t, 11*0.7+12*0.3, got, 1e-12)
	assert.Equal(t, got, f.v.FilteredVoltage())
	assert.Equal(t, 12.0, f.v.Snapshot().Battery.CurrentVoltage)
}

func TestChargeLevelScenario(t *testing.T) {
	cases := []struct {
		sample, want float64
	}{
		{12.3, 85.714},
		{10.8, 14.286},
		{10.5, 0},
	}
	for _, c := range cases {
		f := newFixture(t)
		require.NoError(t, f.v.SetBattery(model.LiPoly, 3))
		f.v.FilterVoltage(c.sample)
		assert.InDelta(t, c.want, f.v.ChargeLevel(), 0.01, "sample %.1f", c.sample)
	}
}

func TestChargeLevelEventOnChange(t *testing.T) {
	f := newFixture(t, WithConfig(Config{VoltageFilterAlpha: 0.5}))
	f.v.FilterVoltage(12)
	f.v.FilterVoltage(12)
	assert.Len(t, f.rec.byField(events.FieldVoltage), 1)
	assert.Len(t, f.rec.byField(events.FieldChargeLevel), 1)
}

func TestSetBatteryRejectsInvalidConfig(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.v.SetBattery(model.LiIon, 4))

	err := f.v.SetBattery(model.LiPoly, 0)
	assert.True(t, errors.Is(err, ErrInvalidCellCount))
	b := f.v.Battery()
	assert.Equal(t, model.LiIon, b.Type)
	assert.Equal(t, 4, b.Cells)

	err = f.v.SetBatteryVoltages(3.0, 3.2)
	assert.ErrorIs(t, err, ErrInvalidVoltageRange)
	assert.Equal(t, 4.2, f.v.Battery().FullVoltagePerCell)

	require.NoError(t, f.v.SetBatteryVoltages(4.35, 3.3))
	assert.InDelta(t, 17.4, f.v.Battery().FullVoltage(), 1e-9)
}

func TestConfigureBatteryIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.v.SetBattery(model.LiPoly, 3))
	before := f.v.Battery()

	err := f.v.ConfigureBattery(model.Battery{Type: model.LiPoly, Cells: 6, FullVoltagePerCell: 3.0, EmptyVoltagePerCell: 3.5})
	assert.ErrorIs(t, err, ErrInvalidVoltageRange)
	assert.Equal(t, before, f.v.Battery())

	want := model.Battery{Type: model.LiIon, Cells: 6, FullVoltagePerCell: 4.1, EmptyVoltagePerCell: 3.0}
	require.NoError(t, f.v.ConfigureBattery(want))
	assert.Equal(t, want, f.v.Battery())
}

func TestTimeRemaining(t *testing.T) {
	f := newFixture(t)
	_, ok := f.v.TimeRemaining()
	assert.False(t, ok, "no samples")

	f.v.FilterVoltage(12.0)
	f.clk.Advance(10 * time.Second)
	f.v.FilterVoltage(11.9)
	_, ok = f.v.TimeRemaining()
	assert.False(t, ok, "window too short")

	f.clk.Advance(50 * time.Second)
	for i := 0; i < 80; i++ {
		f.v.FilterVoltage(11.5)
	}
	d, ok := f.v.TimeRemaining()
	require.True(t, ok)
	// 0.5 V in 60 s, 1 V left above 10.5 V
	assert.InDelta(t, (120 * time.Second).Seconds(), d.Seconds(), 0.5)
	assert.NotNil(t, f.v.Snapshot().Battery.TimeRemaining)
}

func TestTimeRemainingUnknownWhenNotDropping(t *testing.T) {
	f := newFixture(t)
	f.v.FilterVoltage(12.0)
	f.clk.Advance(2 * time.Minute)
	f.v.FilterVoltage(12.2)
	_, ok := f.v.TimeRemaining()
	assert.False(t, ok)
}

func TestTimeRemainingDepleted(t *testing.T) {
	f := newFixture(t)
	f.v.FilterVoltage(11.0)
	f.clk.Advance(time.Minute)
	for i := 0; i < 80; i++ {
		f.v.FilterVoltage(10.0)
	}
	d, ok := f.v.TimeRemaining()
	assert.True(t, ok)
	assert.Zero(t, d)
}
