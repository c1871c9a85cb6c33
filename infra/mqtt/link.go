package mqtt

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/gcsproxy/core/link"
	"github.com/kilianp07/gcsproxy/core/monitoring"
	"github.com/kilianp07/gcsproxy/core/protocol"
	"github.com/kilianp07/gcsproxy/infra/logger"
)

// ErrPublishTimeout is returned when the broker did not acknowledge a
// command frame in time.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

// Handler receives every decoded inbound message.
type Handler func(l link.Link, msg protocol.Message)

// Link is a broker connection shared by every vehicle reachable through it.
type Link struct {
	id      string
	cfg     Config
	cli     pahoClient
	dec     protocol.Decoder
	arena   *link.Registry
	handler Handler
	logger  logger.Logger
	backoff time.Duration
	timeout time.Duration

	closed    atomic.Bool
	malformed atomic.Uint64
}

// NewLink connects to the broker and subscribes to the telemetry topic. The
// link registers itself in arena whenever the connection is up.
func NewLink(cfg Config, dec protocol.Decoder, arena *link.Registry, h Handler) (*Link, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if arena == nil {
		arena = link.NewRegistry()
	}
	l := &Link{
		id:      "mqtt:" + cfg.ClientID,
		cfg:     cfg,
		dec:     dec,
		arena:   arena,
		handler: h,
		logger:  logger.New("mqtt_link"),
		backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
		timeout: time.Duration(cfg.PublishTimeoutMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		l.logger.Infof("MQTT connected to %s", cfg.Broker)
		if token := c.Subscribe(cfg.TelemetryTopic(), cfg.qos("telemetry"), l.onMessage); token.Wait() && token.Error() != nil {
			l.logger.Errorf("subscribe error: %v", token.Error())
			return
		}
		if !l.closed.Load() {
			l.arena.Register(l)
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		l.logger.Errorf("connection lost: %v", err)
		l.arena.Unregister(l.id)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		l.logger.Warnf("reconnecting to MQTT broker")
	}
	l.cli = newMQTTClient(opts)
	if token := l.cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	return l, nil
}

// ID implements link.Link.
func (l *Link) ID() string { return l.id }

// Closed implements link.Closer.
func (l *Link) Closed() bool { return l.closed.Load() }

// Malformed returns the number of frames that could not be decoded.
func (l *Link) Malformed() uint64 { return l.malformed.Load() }

// Send publishes a command frame, retrying with exponential backoff. Each
// attempt waits at most PublishTimeoutMS for the broker.
func (l *Link) Send(raw []byte) error {
	if l.closed.Load() {
		return link.ErrClosed
	}
	topic := l.cfg.CommandTopic()
	qos := l.cfg.qos("command")
	var publishErr error
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		token := l.cli.Publish(topic, qos, false, raw)
		if token.WaitTimeout(l.timeout) {
			publishErr = token.Error()
		} else {
			publishErr = ErrPublishTimeout
		}
		if publishErr == nil {
			l.logger.Debugf("published %d bytes to %s", len(raw), topic)
			return nil
		}
		l.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < l.cfg.MaxRetries {
			time.Sleep(l.backoff * time.Duration(1<<attempt))
		}
	}
	monitoring.CaptureException(publishErr, map[string]string{"module": "mqtt", "link_id": l.id, "topic": topic})
	return fmt.Errorf("mqtt publish %s: %w", topic, publishErr)
}

func (l *Link) onMessage(_ paho.Client, m paho.Message) {
	msg, err := l.dec.Decode(m.Payload())
	if err != nil {
		l.malformed.Add(1)
		l.logger.Warnf("dropping frame on %s: %v", m.Topic(), err)
		return
	}
	msg.Received = time.Now()
	if l.handler != nil {
		l.handler(l, msg)
	}
}

// Close unregisters the link and disconnects from the broker.
func (l *Link) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	l.arena.Unregister(l.id)
	if l.cli != nil && l.cli.IsConnected() {
		l.cli.Disconnect(250)
	}
	return nil
}

var _ link.Link = (*Link)(nil)
