package udp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/gcsproxy/core/link"
	"github.com/kilianp07/gcsproxy/core/protocol"
	"github.com/kilianp07/gcsproxy/infra/codec"
)

func TestLinkRoundTrip(t *testing.T) {
	arena := link.NewRegistry()
	got := make(chan protocol.Message, 1)
	l, err := Listen(Config{Listen: "127.0.0.1:0"}, codec.New(), arena, func(_ link.Link, m protocol.Message) {
		got <- m
	})
	require.NoError(t, err)
	require.True(t, arena.Has(l.ID()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx) }()

	vehicle, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer vehicle.Close()

	_, err = vehicle.WriteTo([]byte(`{"sysid":5,"kind":0,"payload":{"mode":4}}`), l.Addr())
	require.NoError(t, err)

	select {
	case m := <-got:
		assert.Equal(t, 5, m.SystemID)
		assert.Equal(t, protocol.MsgHeartbeat, m.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	require.NoError(t, l.Send([]byte("cmd")))
	buf := make([]byte, 16)
	require.NoError(t, vehicle.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := vehicle.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "cmd", string(buf[:n]))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop")
	}
	assert.False(t, arena.Has(l.ID()))
	assert.ErrorIs(t, l.Send([]byte("x")), link.ErrClosed)
}

func TestSendWithoutPeersFails(t *testing.T) {
	l, err := Listen(Config{Listen: "127.0.0.1:0"}, codec.New(), nil, nil)
	require.NoError(t, err)
	defer l.Close()
	assert.Error(t, l.Send([]byte("x")))
}

func TestStaticPeers(t *testing.T) {
	l, err := Listen(Config{Listen: "127.0.0.1:0", Peers: []string{"127.0.0.1:14555"}}, codec.New(), nil, nil)
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, []string{"127.0.0.1:14555"}, l.Peers())

	_, err = Listen(Config{Listen: "127.0.0.1:0", Peers: []string{"not a host:xx"}}, codec.New(), nil, nil)
	assert.Error(t, err)
}
