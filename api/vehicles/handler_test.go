package vehicles

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/gcsproxy/core/fleet"
	"github.com/kilianp07/gcsproxy/core/model"
	"github.com/kilianp07/gcsproxy/core/protocol"
	"github.com/kilianp07/gcsproxy/core/uas"
	"github.com/kilianp07/gcsproxy/infra/codec"
)

type recLink struct {
	id   string
	fail bool
	mu   sync.Mutex
	sent [][]byte
}

func (l *recLink) ID() string { return l.id }

func (l *recLink) Send(raw []byte) error {
	if l.fail {
		return errors.New("write failed")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = append(l.sent, raw)
	return nil
}

func (l *recLink) lastKind(t *testing.T) protocol.MsgID {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	require.NotEmpty(t, l.sent)
	msg, err := codec.New().Decode(l.sent[len(l.sent)-1])
	require.NoError(t, err)
	return msg.Kind
}

func setup(t *testing.T, token string, links ...*recLink) (*fleet.Manager, http.Handler) {
	t.Helper()
	m := fleet.NewManager(fleet.Config{AutoCreate: true}, uas.Config{}, nil, nil, codec.New(), nil)
	for _, l := range links {
		m.Arena().Register(l)
		m.HandleMessage(l, protocol.Message{SystemID: 4, Kind: protocol.MsgHeartbeat, Payload: protocol.Heartbeat{Mode: protocol.ModeManual}})
	}
	return m, NewHandler(m, token)
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	h.ServeHTTP(rr, req)
	return rr
}

func TestListAndGet(t *testing.T) {
	_, h := setup(t, "", &recLink{id: "udp"})

	rr := do(h, http.MethodGet, "/api/vehicles", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []model.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 4, list[0].ID)

	rr = do(h, http.MethodGet, "/api/vehicles/4", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var snap model.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, "UAS4", snap.Name)
	assert.Equal(t, []string{"udp"}, snap.Links)
	assert.Equal(t, "UNINIT", snap.StatusState)
	assert.Contains(t, rr.Body.String(), `"status_text":"Uninitialized, booting up."`)

	rr = do(h, http.MethodGet, "/api/vehicles/9", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAuth(t *testing.T) {
	_, h := setup(t, "secret")
	rr := do(h, http.MethodGet, "/api/vehicles", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestActionSendsCommand(t *testing.T) {
	l := &recLink{id: "udp"}
	_, h := setup(t, "", l)

	rr := do(h, http.MethodPost, "/api/vehicles/4/actions/launch", "")
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, protocol.MsgAction, l.lastKind(t))

	rr = do(h, http.MethodPost, "/api/vehicles/4/actions/barrel_roll", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestModeManualAndRelease(t *testing.T) {
	l := &recLink{id: "udp"}
	_, h := setup(t, "", l)

	rr := do(h, http.MethodPost, "/api/vehicles/4/mode", `{"mode":4}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, protocol.MsgSetMode, l.lastKind(t))

	rr = do(h, http.MethodPost, "/api/vehicles/4/manual", `{"roll":0.1,"pitch":0,"yaw":0,"thrust":0.5}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, protocol.MsgManualSetpoint, l.lastKind(t))

	rr = do(h, http.MethodPost, "/api/vehicles/4/manual/release", "")
	assert.Equal(t, http.StatusAccepted, rr.Code)

	rr = do(h, http.MethodPost, "/api/vehicles/4/mode", `not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWaypoints(t *testing.T) {
	l := &recLink{id: "udp"}
	_, h := setup(t, "", l)

	assert.Equal(t, http.StatusAccepted, do(h, http.MethodPost, "/api/vehicles/4/waypoints/request", "").Code)
	assert.Equal(t, protocol.MsgWaypointRequestAll, l.lastKind(t))

	assert.Equal(t, http.StatusAccepted, do(h, http.MethodPut, "/api/vehicles/4/waypoints/2", `{"x":1,"y":2,"z":3}`).Code)
	assert.Equal(t, protocol.MsgWaypointSet, l.lastKind(t))

	assert.Equal(t, http.StatusAccepted, do(h, http.MethodPost, "/api/vehicles/4/waypoints/2/activate", "").Code)
	assert.Equal(t, protocol.MsgWaypointSetCurrent, l.lastKind(t))

	assert.Equal(t, http.StatusAccepted, do(h, http.MethodDelete, "/api/vehicles/4/waypoints", "").Code)
	assert.Equal(t, protocol.MsgWaypointClearAll, l.lastKind(t))
}

func TestButtons(t *testing.T) {
	l := &recLink{id: "udp"}
	_, h := setup(t, "", l)
	assert.Equal(t, http.StatusAccepted, do(h, http.MethodPost, "/api/vehicles/4/buttons/0", "").Code)
	assert.Equal(t, protocol.MsgSetMode, l.lastKind(t))
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/api/vehicles/4/buttons/42", "").Code)
}

func TestBattery(t *testing.T) {
	_, h := setup(t, "", &recLink{id: "udp"})

	rr := do(h, http.MethodPut, "/api/vehicles/4/battery", `{"type":"life","cells":4}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var bs model.BatteryState
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &bs))
	assert.Equal(t, "life", bs.Type)
	assert.Equal(t, 4, bs.Cells)

	rr = do(h, http.MethodPut, "/api/vehicles/4/battery", `{"cells":-1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(h, http.MethodPut, "/api/vehicles/4/battery", `{"full_voltage":10,"empty_voltage":12}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(h, http.MethodPut, "/api/vehicles/4/battery", `{"type":"plutonium"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBatteryRejectedUpdateKeepsPack(t *testing.T) {
	m, h := setup(t, "", &recLink{id: "udp"})
	v, err := m.Get(4)
	require.NoError(t, err)
	before := v.Battery()

	rr := do(h, http.MethodPut, "/api/vehicles/4/battery", `{"cells":6,"full_voltage":3.0,"empty_voltage":3.5}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, before, v.Battery())

	rr = do(h, http.MethodPut, "/api/vehicles/4/battery", `{"cells":6,"full_voltage":4.35}`)
	require.Equal(t, http.StatusOK, rr.Code)
	after := v.Battery()
	assert.Equal(t, 6, after.Cells)
	assert.Equal(t, 4.35, after.FullVoltagePerCell)
	assert.Equal(t, before.EmptyVoltagePerCell, after.EmptyVoltagePerCell)
}

func TestNoLinksConflict(t *testing.T) {
	m, h := setup(t, "")
	_, err := m.Add(8, "")
	require.NoError(t, err)
	rr := do(h, http.MethodPost, "/api/vehicles/8/actions/halt", "")
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestPartialBroadcast(t *testing.T) {
	good := &recLink{id: "a"}
	bad := &recLink{id: "b", fail: true}
	_, h := setup(t, "", good, bad)

	rr := do(h, http.MethodPost, "/api/vehicles/4/actions/halt", "")
	require.Equal(t, http.StatusAccepted, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, []any{"b"}, body["failed_links"])

	good.fail = true
	rr = do(h, http.MethodPost, "/api/vehicles/4/actions/halt", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestRenameSelectRemove(t *testing.T) {
	m, h := setup(t, "", &recLink{id: "udp"})

	rr := do(h, http.MethodPut, "/api/vehicles/4/name", `{"name":"scout"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	v, err := m.Get(4)
	require.NoError(t, err)
	assert.Equal(t, "scout", v.Name())

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPut, "/api/vehicles/4/name", `{"name":""}`).Code)

	assert.Equal(t, http.StatusNoContent, do(h, http.MethodPost, "/api/vehicles/4/select", "").Code)
	assert.True(t, v.Snapshot().Selected)

	assert.Equal(t, http.StatusNoContent, do(h, http.MethodDelete, "/api/vehicles/4", "").Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodDelete, "/api/vehicles/4", "").Code)
}
