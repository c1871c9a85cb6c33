package simulator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/gcsproxy/core/protocol"
	"github.com/kilianp07/gcsproxy/infra/codec"
	"github.com/kilianp07/gcsproxy/infra/mqtt"
)

func newTestVehicle(t *testing.T) (*Vehicle, *mockClient) {
	t.Helper()
	mc := &mockClient{}
	cfg := mqtt.Config{Broker: "tcp://localhost:1883"}
	cfg.SetDefaults()
	v := NewVehicle(5, cfg)
	v.cli = mc
	return v, mc
}

func decodeAll(t *testing.T, ps []published) []protocol.Message {
	t.Helper()
	out := make([]protocol.Message, len(ps))
	for i, p := range ps {
		m, err := codec.New().Decode(p.payload)
		require.NoError(t, err)
		out[i] = m
	}
	return out
}

func TestTickPublishesTelemetry(t *testing.T) {
	v, mc := newTestVehicle(t)
	v.Tick(time.Second)

	msgs := decodeAll(t, mc.all())
	kinds := make([]protocol.MsgID, len(msgs))
	for i, m := range msgs {
		kinds[i] = m.Kind
		assert.Equal(t, 5, m.SystemID)
		assert.Equal(t, uint8(i+1), m.Seq)
	}
	assert.Equal(t, []protocol.MsgID{
		protocol.MsgHeartbeat,
		protocol.MsgSysStatus,
		protocol.MsgBatteryStatus,
		protocol.MsgAttitude,
		protocol.MsgSystemTime,
	}, kinds)
	assert.Equal(t, "gcs/5/telemetry", mc.all()[0].topic)

	st := msgs[1].Payload.(protocol.SysStatus)
	assert.InDelta(t, 12600, st.VoltageMV, 5)
	assert.Equal(t, StatusStandby, st.Status)
}

func TestCommandsChangeState(t *testing.T) {
	v, mc := newTestVehicle(t)

	v.Handle(protocol.Message{SystemID: 255, Kind: protocol.MsgSetMode, Payload: protocol.SetModeCommand{Target: 5, Mode: protocol.ModeAuto}})
	assert.Equal(t, protocol.ModeAuto, v.Mode())

	v.Handle(protocol.Message{SystemID: 255, Kind: protocol.MsgSetMode, Payload: protocol.SetModeCommand{Target: 6, Mode: protocol.ModeManual}})
	assert.Equal(t, protocol.ModeAuto, v.Mode(), "command for another vehicle applied")

	v.Handle(protocol.Message{SystemID: 255, Kind: protocol.MsgAction, Payload: protocol.ActionCommand{Target: 5, Action: protocol.ActionLaunch}})
	assert.True(t, v.Motors())

	v.Handle(protocol.Message{SystemID: 255, Kind: protocol.MsgWaypointSetCurrent, Payload: protocol.WaypointSetCurrentCommand{Target: 5, Seq: 3}})
	msgs := decodeAll(t, mc.all())
	require.Len(t, msgs, 1)
	assert.Equal(t, protocol.MsgWaypointCurrent, msgs[0].Kind)
	assert.Equal(t, 3, msgs[0].Payload.(protocol.WaypointCurrent).Seq)

	v.Handle(protocol.Message{SystemID: 255, Kind: protocol.MsgManualSetpoint, Payload: protocol.ManualSetpoint{Target: 5, Thrust: 0.4, ThrustManual: true}})
	before := mc.count()
	v.Tick(time.Second)
	msgs = decodeAll(t, mc.all()[before:])
	last := msgs[len(msgs)-1]
	assert.Equal(t, protocol.MsgManualControl, last.Kind)
	assert.Equal(t, 0.4, last.Payload.(protocol.ManualControl).Thrust)

	v.Handle(protocol.Message{SystemID: 255, Kind: protocol.MsgAction, Payload: protocol.ActionCommand{Target: 5, Action: protocol.ActionEmergencyKill}})
	assert.True(t, v.Stopped())
	assert.False(t, v.Motors())
	before = mc.count()
	v.Tick(time.Second)
	assert.Equal(t, before, mc.count(), "stopped vehicle kept publishing")
}

func TestDroppedFramesReported(t *testing.T) {
	v, mc := newTestVehicle(t)
	v.Quality = &LossyLink{DropRate: 1}
	v.Tick(time.Second)
	assert.Zero(t, mc.count())

	v.Quality = PerfectLink{}
	v.Tick(time.Second)
	msgs := decodeAll(t, mc.all())
	require.NotEmpty(t, msgs)
	st := msgs[1].Payload.(protocol.SysStatus)
	assert.InDelta(t, 100, st.SendDropRate, 0.001)
}

func TestRunSubscribesAndStopsOnShutdown(t *testing.T) {
	mc := &mockClient{}
	defer installMock(mc)()

	v := NewVehicle(9, mqtt.Config{Broker: "tcp://localhost:1883", TopicPrefix: "fleet"})
	v.Interval = 10 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- v.Run(context.Background()) }()

	require.Eventually(t, func() bool { return mc.handler("fleet/command") != nil }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return mc.count() > 0 }, time.Second, 5*time.Millisecond)

	raw, err := codec.New().Encode(protocol.Message{SystemID: 255, Kind: protocol.MsgAction, Payload: protocol.ActionCommand{Target: 9, Action: protocol.ActionShutdown}})
	require.NoError(t, err)
	mc.handler("fleet/command")(nil, mockMessage{topic: "fleet/command", p: raw})

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("vehicle did not stop after shutdown")
	}
}

func TestRunConnectError(t *testing.T) {
	mc := &mockClient{connectErr: errors.New("refused")}
	defer installMock(mc)()
	v := NewVehicle(1, mqtt.Config{Broker: "tcp://localhost:1883"})
	assert.Error(t, v.Run(context.Background()))
}

func TestGenerateFleet(t *testing.T) {
	vs := GenerateFleet(FleetConfig{Size: 3, FirstID: 10, Interval: time.Minute, Cells: 4, DropRate: 0.1})
	require.Len(t, vs, 3)
	assert.Equal(t, 10, vs[0].SystemID)
	assert.Equal(t, 12, vs[2].SystemID)
	assert.Equal(t, time.Minute, vs[1].Interval)
	assert.Equal(t, 4, vs[1].Battery.Cells)
	assert.IsType(t, &LossyLink{}, vs[2].Quality)
	assert.Nil(t, GenerateFleet(FleetConfig{}))
}

func TestRunFleetStopsOnCancel(t *testing.T) {
	mc := &mockClient{}
	defer installMock(mc)()
	vs := GenerateFleet(FleetConfig{Size: 2, Interval: 10 * time.Millisecond, MQTT: mqtt.Config{Broker: "tcp://localhost:1883"}})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, RunFleet(ctx, vs))
}
