// Package simulator runs simulated vehicles that talk to the proxy over MQTT.
// Each vehicle publishes heartbeat, status, battery and attitude telemetry at
// a fixed interval and reacts to the commands addressed to its system id.
package simulator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/gcsproxy/core/protocol"
	"github.com/kilianp07/gcsproxy/infra/codec"
	"github.com/kilianp07/gcsproxy/infra/logger"
	"github.com/kilianp07/gcsproxy/infra/mqtt"
)

// Vehicle states reported in the heartbeat status field.
const (
	StatusStandby  = 3
	StatusActive   = 4
	StatusPowerOff = 8
)

const (
	idlePowerW  = 5
	hoverPowerW = 180
)

type pahoClient interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Vehicle is one simulated aircraft.
type Vehicle struct {
	SystemID int
	Type     int
	Interval time.Duration
	Battery  *Battery
	Quality  LinkQuality
	MQTT     mqtt.Config

	codec codec.JSON
	log   logger.Logger
	cli   pahoClient

	mu        sync.Mutex
	mode      protocol.Mode
	status    int
	motors    bool
	stopped   bool
	seq       uint8
	sent      int
	dropped   int
	elapsed   time.Duration
	manual    *protocol.ManualControl
	waypoints map[int]protocol.Waypoint
	current   int
}

// NewVehicle returns a vehicle in standby with a full 3 cell pack.
func NewVehicle(sysID int, cfg mqtt.Config) *Vehicle {
	return &Vehicle{
		SystemID:  sysID,
		Type:      2,
		Interval:  time.Second,
		Battery:   NewLiPoBattery(3, 60),
		Quality:   PerfectLink{},
		MQTT:      cfg,
		log:       logger.New(fmt.Sprintf("sim-%d", sysID)),
		mode:      protocol.ModeLocked,
		status:    StatusStandby,
		waypoints: make(map[int]protocol.Waypoint),
	}
}

// Mode returns the current flight mode.
func (v *Vehicle) Mode() protocol.Mode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

// Stopped reports whether the vehicle was killed or shut down.
func (v *Vehicle) Stopped() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stopped
}

// Motors reports whether the motors are armed.
func (v *Vehicle) Motors() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.motors
}

// Run connects to the broker and publishes telemetry until ctx is done or
// the vehicle is shut down.
func (v *Vehicle) Run(ctx context.Context) error {
	cfg := v.MQTT
	cfg.ClientID = fmt.Sprintf("sim-%d", v.SystemID)
	cfg.SetDefaults()
	v.MQTT = cfg
	opts, err := mqtt.NewClientOptions(cfg)
	if err != nil {
		return err
	}
	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("sim %d connect: %w", v.SystemID, token.Error())
	}
	v.cli = cli
	defer cli.Disconnect(250)
	if token := cli.Subscribe(cfg.CommandTopic(), 0, v.onCommand); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	v.log.Infof("simulated vehicle %d online", v.SystemID)

	t := time.NewTicker(v.Interval)
	defer t.Stop()
	for {
		v.Tick(v.Interval)
		if v.Stopped() {
			v.log.Infof("simulated vehicle %d powered off", v.SystemID)
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// Tick advances the simulation by dt and publishes one telemetry burst.
func (v *Vehicle) Tick(dt time.Duration) {
	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		return
	}
	v.elapsed += dt
	power := float64(idlePowerW)
	if v.motors {
		power = hoverPowerW
	}
	v.mu.Unlock()

	v.Battery.Draw(power, dt)
	if v.Battery.Level() == 0 {
		v.mu.Lock()
		v.motors = false
		v.mu.Unlock()
	}

	v.mu.Lock()
	var dropRate float64
	if v.sent > 0 {
		dropRate = 100 * float64(v.dropped) / float64(v.sent)
	}
	t := v.elapsed.Seconds()
	frames := []protocol.Message{
		v.frameLocked(protocol.MsgHeartbeat, protocol.Heartbeat{Type: v.Type, Mode: v.mode, Status: v.status}),
		v.frameLocked(protocol.MsgSysStatus, protocol.SysStatus{
			Mode:         v.mode,
			Status:       v.status,
			Load:         power / hoverPowerW,
			VoltageMV:    int(v.Battery.Voltage() * 1000),
			SendDropRate: dropRate,
		}),
		v.frameLocked(protocol.MsgBatteryStatus, protocol.BatteryStatus{Voltage: v.Battery.Voltage()}),
		v.frameLocked(protocol.MsgAttitude, protocol.Attitude{
			Roll:  0.05 * math.Sin(t),
			Pitch: 0.05 * math.Cos(t),
			Yaw:   math.Mod(0.1*t, 2*math.Pi),
		}),
	}
	if v.manual != nil {
		frames = append(frames, v.frameLocked(protocol.MsgManualControl, *v.manual))
	}
	if v.sent == 0 {
		frames = append(frames, v.frameLocked(protocol.MsgSystemTime, protocol.SystemTime{UnixUsec: uint64(time.Now().UnixMicro())}))
	}
	v.mu.Unlock()

	for _, f := range frames {
		v.publish(f)
	}
}

func (v *Vehicle) frameLocked(kind protocol.MsgID, payload any) protocol.Message {
	v.seq++
	return protocol.Message{SystemID: v.SystemID, ComponentID: 1, Seq: v.seq, Kind: kind, Payload: payload}
}

func (v *Vehicle) publish(msg protocol.Message) {
	v.mu.Lock()
	v.sent++
	deliver := v.Quality == nil || v.Quality.Deliver()
	if !deliver {
		v.dropped++
	}
	v.mu.Unlock()
	if !deliver || v.cli == nil {
		return
	}
	raw, err := v.codec.Encode(msg)
	if err != nil {
		v.log.Errorf("encode %s: %v", msg.Kind, err)
		return
	}
	token := v.cli.Publish(v.MQTT.VehicleTelemetryTopic(v.SystemID), 0, false, raw)
	if !token.WaitTimeout(5 * time.Second) {
		v.log.Warnf("publish timeout for %s", msg.Kind)
		return
	}
	if err := token.Error(); err != nil {
		v.log.Warnf("publish %s: %v", msg.Kind, err)
	}
}

func (v *Vehicle) onCommand(_ paho.Client, m paho.Message) {
	msg, err := v.codec.Decode(m.Payload())
	if err != nil {
		v.log.Warnf("decode command: %v", err)
		return
	}
	v.Handle(msg)
}

// Handle applies a decoded command. Commands for other vehicles are ignored.
func (v *Vehicle) Handle(msg protocol.Message) {
	var reply []protocol.Message
	v.mu.Lock()
	switch p := msg.Payload.(type) {
	case protocol.ActionCommand:
		if p.Target != v.SystemID {
			break
		}
		v.applyActionLocked(p.Action)
	case protocol.SetModeCommand:
		if p.Target != v.SystemID {
			break
		}
		v.mode = p.Mode
	case protocol.ManualSetpoint:
		if p.Target != v.SystemID {
			break
		}
		v.manual = &protocol.ManualControl{
			Roll:         p.Roll,
			Pitch:        p.Pitch,
			Yaw:          p.Yaw,
			Thrust:       p.Thrust,
			RollManual:   p.RollManual,
			PitchManual:  p.PitchManual,
			YawManual:    p.YawManual,
			ThrustManual: p.ThrustManual,
		}
	case protocol.WaypointSetCommand:
		if p.Target != v.SystemID {
			break
		}
		v.waypoints[p.Waypoint.Seq] = p.Waypoint
		reply = append(reply, v.frameLocked(protocol.MsgWaypointAck, protocol.WaypointAck{}))
	case protocol.WaypointClearAllCommand:
		if p.Target != v.SystemID {
			break
		}
		v.waypoints = make(map[int]protocol.Waypoint)
		reply = append(reply, v.frameLocked(protocol.MsgWaypointAck, protocol.WaypointAck{}))
	case protocol.WaypointSetCurrentCommand:
		if p.Target != v.SystemID {
			break
		}
		v.current = p.Seq
		reply = append(reply, v.frameLocked(protocol.MsgWaypointCurrent, protocol.WaypointCurrent{Seq: p.Seq}))
	case protocol.WaypointRequestListCommand:
		if p.Target != v.SystemID {
			break
		}
		reply = append(reply, v.frameLocked(protocol.MsgWaypointCurrent, protocol.WaypointCurrent{Seq: v.current}))
	}
	v.mu.Unlock()
	for _, r := range reply {
		v.publish(r)
	}
}

func (v *Vehicle) applyActionLocked(a protocol.Action) {
	switch a {
	case protocol.ActionLaunch, protocol.ActionMotorsStart:
		v.motors = true
		v.status = StatusActive
	case protocol.ActionMotorsStop, protocol.ActionEmergencyLand:
		v.motors = false
		v.status = StatusStandby
	case protocol.ActionEmergencyKill, protocol.ActionShutdown:
		v.motors = false
		v.stopped = true
		v.status = StatusPowerOff
	case protocol.ActionReturnHome, protocol.ActionHalt, protocol.ActionContinue:
		v.mode = protocol.ModeGuided
	}
	v.log.Infof("action %s", a)
}
