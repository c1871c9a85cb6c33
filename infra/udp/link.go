// Package udp implements a datagram vehicle link. Every peer that sent a
// datagram is remembered and receives the commands written to the link.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/gcsproxy/core/link"
	"github.com/kilianp07/gcsproxy/core/monitoring"
	"github.com/kilianp07/gcsproxy/core/protocol"
	"github.com/kilianp07/gcsproxy/infra/logger"
)

const maxDatagram = 64 * 1024

// Config defines the listen address and peer expiry.
type Config struct {
	Enabled bool   `json:"enabled"`
	Listen  string `json:"listen"`
	// PeerTimeoutMS drops peers that were silent for that long.
	PeerTimeoutMS int `json:"peer_timeout_ms"`
	// Peers are static destinations, for vehicles that only listen.
	Peers []string `json:"peers"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Listen == "" {
		c.Listen = ":14550"
	}
	if c.PeerTimeoutMS <= 0 {
		c.PeerTimeoutMS = 30000
	}
}

// Handler receives every decoded inbound message.
type Handler func(l link.Link, msg protocol.Message)

// Link is a UDP socket shared by every vehicle sending to it.
type Link struct {
	id      string
	conn    net.PacketConn
	dec     protocol.Decoder
	arena   *link.Registry
	handler Handler
	logger  logger.Logger
	timeout time.Duration

	mu     sync.Mutex
	peers  map[string]peer
	closed atomic.Bool
}

type peer struct {
	addr     net.Addr
	lastSeen time.Time
	static   bool
}

// Listen opens the socket and registers the link in arena.
func Listen(cfg Config, dec protocol.Decoder, arena *link.Registry, h Handler) (*Link, error) {
	cfg.SetDefaults()
	conn, err := net.ListenPacket("udp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("udp listen %s: %w", cfg.Listen, err)
	}
	if arena == nil {
		arena = link.NewRegistry()
	}
	l := &Link{
		id:      "udp:" + uuid.NewString()[:8],
		conn:    conn,
		dec:     dec,
		arena:   arena,
		handler: h,
		logger:  logger.New("udp_link"),
		timeout: time.Duration(cfg.PeerTimeoutMS) * time.Millisecond,
		peers:   make(map[string]peer),
	}
	for _, p := range cfg.Peers {
		addr, err := net.ResolveUDPAddr("udp", p)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("udp peer %s: %w", p, err)
		}
		l.peers[addr.String()] = peer{addr: addr, static: true}
	}
	arena.Register(l)
	return l, nil
}

// ID implements link.Link.
func (l *Link) ID() string { return l.id }

// Addr returns the local socket address.
func (l *Link) Addr() net.Addr { return l.conn.LocalAddr() }

// Closed implements link.Closer.
func (l *Link) Closed() bool { return l.closed.Load() }

// Peers returns the addresses currently receiving commands.
func (l *Link) Peers() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.peers))
	for k := range l.peers {
		out = append(out, k)
	}
	return out
}

// Send writes raw to every known peer. It fails only when no peer could be
// reached.
func (l *Link) Send(raw []byte) error {
	if l.closed.Load() {
		return link.ErrClosed
	}
	now := time.Now()
	l.mu.Lock()
	targets := make([]net.Addr, 0, len(l.peers))
	for k, p := range l.peers {
		if !p.static && now.Sub(p.lastSeen) > l.timeout {
			delete(l.peers, k)
			continue
		}
		targets = append(targets, p.addr)
	}
	l.mu.Unlock()
	if len(targets) == 0 {
		return errors.New("udp: no peers")
	}
	var errs []error
	for _, addr := range targets {
		if _, err := l.conn.WriteTo(raw, addr); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", addr, err))
		}
	}
	if len(errs) == len(targets) {
		err := errors.Join(errs...)
		monitoring.CaptureException(err, map[string]string{"module": "udp", "link_id": l.id})
		return err
	}
	return nil
}

// Serve reads datagrams until ctx is canceled or the link is closed.
func (l *Link) Serve(ctx context.Context) error {
	defer monitoring.Recover()
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()
	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := l.conn.ReadFrom(buf)
		if err != nil {
			if l.closed.Load() {
				return nil
			}
			return fmt.Errorf("udp read: %w", err)
		}
		l.mu.Lock()
		prev := l.peers[addr.String()]
		l.peers[addr.String()] = peer{addr: addr, lastSeen: time.Now(), static: prev.static}
		l.mu.Unlock()

		msg, err := l.dec.Decode(buf[:n])
		if err != nil {
			l.logger.Warnf("dropping datagram from %s: %v", addr, err)
			continue
		}
		msg.Received = time.Now()
		if l.handler != nil {
			l.handler(l, msg)
		}
	}
}

// Close unregisters the link and closes the socket.
func (l *Link) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	l.arena.Unregister(l.id)
	return l.conn.Close()
}

var _ link.Link = (*Link)(nil)
