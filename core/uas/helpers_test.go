package uas

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/gcsproxy/core/events"
	"github.com/kilianp07/gcsproxy/core/link"
	"github.com/kilianp07/gcsproxy/core/protocol"
)

type fakeLink struct {
	id string

	mu     sync.Mutex
	sent   [][]byte
	fail   error
	closed bool
}

func newFakeLink(id string) *fakeLink { return &fakeLink{id: id} }

func (l *fakeLink) ID() string { return l.id }

func (l *fakeLink) Send(raw []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return l.fail
	}
	l.sent = append(l.sent, raw)
	return nil
}

func (l *fakeLink) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *fakeLink) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

func (l *fakeLink) sends() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sent)
}

func (l *fakeLink) last(t *testing.T) protocol.Message {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.sent) == 0 {
		t.Fatalf("link %s: nothing sent", l.id)
	}
	var m testEnvelope
	if err := json.Unmarshal(l.sent[len(l.sent)-1], &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return protocol.Message{SystemID: m.SystemID, ComponentID: m.ComponentID, Seq: m.Seq, Kind: m.Kind}
}

func lastSetpoint(t *testing.T, l *fakeLink) protocol.ManualSetpoint {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.sent) == 0 {
		t.Fatalf("link %s: nothing sent", l.id)
	}
	var env testEnvelope
	if err := json.Unmarshal(l.sent[len(l.sent)-1], &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Kind != protocol.MsgManualSetpoint {
		t.Fatalf("last message is %s", env.Kind)
	}
	var sp protocol.ManualSetpoint
	if err := json.Unmarshal(env.Payload, &sp); err != nil {
		t.Fatalf("decode set-point: %v", err)
	}
	return sp
}

type testEnvelope struct {
	SystemID    int             `json:"sysid"`
	ComponentID int             `json:"compid"`
	Seq         uint8           `json:"seq"`
	Kind        protocol.MsgID  `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
}

// jsonEncoder is a minimal encoder so the package tests do not depend on the
// transport codec.
type jsonEncoder struct{}

func (jsonEncoder) Encode(m protocol.Message) ([]byte, error) {
	p, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(testEnvelope{SystemID: m.SystemID, ComponentID: m.ComponentID, Seq: m.Seq, Kind: m.Kind, Payload: p})
}

type failingEncoder struct{}

func (failingEncoder) Encode(protocol.Message) ([]byte, error) {
	return nil, errors.New("boom")
}

type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	r.evs = append(r.evs, e)
	r.mu.Unlock()
}

func (r *recorder) byField(f events.Field) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.evs {
		if e.Field == f {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.evs = nil
	r.mu.Unlock()
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return c.t
}

type fixture struct {
	v     *Vehicle
	clk   *clock
	rec   *recorder
	arena *link.Registry
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	f := fixture{clk: newClock(), rec: &recorder{}, arena: link.NewRegistry()}
	base := []Option{
		WithClock(f.clk.Now),
		WithBus(f.rec),
		WithArena(f.arena),
		WithEncoder(jsonEncoder{}),
	}
	v, err := New(7, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new vehicle: %v", err)
	}
	f.v = v
	return f
}

func msg(kind protocol.MsgID, payload any) protocol.Message {
	return protocol.Message{SystemID: 7, ComponentID: 1, Kind: kind, Payload: payload}
}

func (f fixture) heartbeat(l link.Link, mode protocol.Mode) {
	m := msg(protocol.MsgHeartbeat, protocol.Heartbeat{Type: 2, Mode: mode})
	m.Received = f.clk.Now()
	f.v.ReceiveMessage(l, m)
}

// link returns a fake transport registered in the fixture arena, the way
// the MQTT and UDP links register themselves on connect.
func (f fixture) link(id string) *fakeLink {
	l := newFakeLink(id)
	f.arena.Register(l)
	return l
}
