// Package util holds helpers for the container backed integration tests.
package util

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	mosquittoImage = "eclipse-mosquitto:2.0"
	mosquittoConf  = "listener 1883\nallow_anonymous true\npersistence false\nlog_dest stdout\n"

	brokerReadyTimeout = 10 * time.Second
	pollInterval       = 50 * time.Millisecond
)

// Mosquitto starts a throwaway broker and returns its tcp:// URL. The test is
// skipped when no container runtime is reachable. The container is removed
// when the test ends.
func Mosquitto(t testing.TB) string {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "mosquitto.conf")
	if err := os.WriteFile(path, []byte(mosquittoConf), 0o644); err != nil {
		t.Fatalf("write broker config: %v", err)
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        mosquittoImage,
			ExposedPorts: []string{"1883/tcp"},
			WaitingFor:   wait.ForListeningPort("1883/tcp"),
			Files: []tc.ContainerFile{{
				HostFilePath:      path,
				ContainerFilePath: "/mosquitto/config/mosquitto.conf",
				FileMode:          0o644,
			}},
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("container runtime unavailable: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })

	endpoint, err := cont.PortEndpoint(ctx, "1883/tcp", "tcp")
	if err != nil {
		t.Fatalf("broker endpoint: %v", err)
	}
	readyCtx, cancel := context.WithTimeout(ctx, brokerReadyTimeout)
	defer cancel()
	if err := WaitFor(readyCtx, "broker ready", func() bool { return canConnect(endpoint) }); err != nil {
		t.Fatal(err)
	}
	return endpoint
}

func canConnect(broker string) bool {
	cli := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("probe"))
	tok := cli.Connect()
	if !tok.WaitTimeout(time.Second) || tok.Error() != nil {
		return false
	}
	cli.Disconnect(100)
	return true
}

// FreeAddr returns a loopback address with a port that was free a moment ago.
func FreeAddr(t testing.TB) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

// WaitFor polls cond until it returns true or ctx is done.
func WaitFor(ctx context.Context, what string, cond func() bool) error {
	for {
		if cond() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", what, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// WaitForMetric polls a Prometheus endpoint until its body contains substr.
func WaitForMetric(ctx context.Context, url, substr string) error {
	return WaitFor(ctx, fmt.Sprintf("metric %q", substr), func() bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		return err == nil && strings.Contains(string(body), substr)
	})
}
