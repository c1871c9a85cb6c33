// Package vehicles exposes the fleet over HTTP.
package vehicles

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/kilianp07/gcsproxy/core/fleet"
	"github.com/kilianp07/gcsproxy/core/model"
	"github.com/kilianp07/gcsproxy/core/protocol"
	"github.com/kilianp07/gcsproxy/core/uas"
)

// Handler serves the /api/vehicles routes.
type Handler struct {
	fleet *fleet.Manager
	token string
}

// NewHandler returns a router exposing the fleet. Requests must include an
// Authorization header with "Bearer <token>" when token is non-empty.
func NewHandler(m *fleet.Manager, token string) http.Handler {
	h := &Handler{fleet: m, token: token}
	r := mux.NewRouter()
	r.Use(h.auth)
	api := r.PathPrefix("/api/vehicles").Subrouter()
	api.HandleFunc("", h.list).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}", h.get).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}", h.remove).Methods(http.MethodDelete)
	api.HandleFunc("/{id:[0-9]+}/select", h.selectVehicle).Methods(http.MethodPost)
	api.HandleFunc("/{id:[0-9]+}/name", h.rename).Methods(http.MethodPut)
	api.HandleFunc("/{id:[0-9]+}/actions/{action}", h.action).Methods(http.MethodPost)
	api.HandleFunc("/{id:[0-9]+}/mode", h.mode).Methods(http.MethodPost)
	api.HandleFunc("/{id:[0-9]+}/manual", h.manual).Methods(http.MethodPost)
	api.HandleFunc("/{id:[0-9]+}/manual/release", h.release).Methods(http.MethodPost)
	api.HandleFunc("/{id:[0-9]+}/buttons/{index:[0-9]+}", h.button).Methods(http.MethodPost)
	api.HandleFunc("/{id:[0-9]+}/battery", h.battery).Methods(http.MethodPut)
	api.HandleFunc("/{id:[0-9]+}/waypoints", h.clearWaypoints).Methods(http.MethodDelete)
	api.HandleFunc("/{id:[0-9]+}/waypoints/request", h.requestWaypoints).Methods(http.MethodPost)
	api.HandleFunc("/{id:[0-9]+}/waypoints/{seq:[0-9]+}", h.setWaypoint).Methods(http.MethodPut)
	api.HandleFunc("/{id:[0-9]+}/waypoints/{seq:[0-9]+}/activate", h.activateWaypoint).Methods(http.MethodPost)
	return r
}

func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token != "" && r.Header.Get("Authorization") != "Bearer "+h.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) list(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.fleet.List())
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vehicle(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	if err := h.fleet.Remove(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) selectVehicle(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	if err := h.fleet.Select(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vehicle(w, r)
	if !ok {
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	v.SetName(body.Name)
	writeJSON(w, http.StatusOK, v.Snapshot())
}

func (h *Handler) action(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vehicle(w, r)
	if !ok {
		return
	}
	a, found := protocol.ParseAction(mux.Vars(r)["action"])
	if !found {
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	h.respond(w, v.Do(a))
}

func (h *Handler) mode(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vehicle(w, r)
	if !ok {
		return
	}
	var body struct {
		Mode protocol.Mode `json:"mode"`
	}
	if !decode(w, r, &body) {
		return
	}
	h.respond(w, v.SetMode(body.Mode))
}

func (h *Handler) manual(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vehicle(w, r)
	if !ok {
		return
	}
	var body struct {
		Roll   float64 `json:"roll"`
		Pitch  float64 `json:"pitch"`
		Yaw    float64 `json:"yaw"`
		Thrust float64 `json:"thrust"`
	}
	if !decode(w, r, &body) {
		return
	}
	h.respond(w, v.SetManualControlCommands(body.Roll, body.Pitch, body.Yaw, body.Thrust))
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vehicle(w, r)
	if !ok {
		return
	}
	h.respond(w, v.ReleaseManualControl())
}

func (h *Handler) button(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vehicle(w, r)
	if !ok {
		return
	}
	idx, _ := strconv.Atoi(mux.Vars(r)["index"])
	h.respond(w, v.ReceiveButton(idx))
}

func (h *Handler) battery(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vehicle(w, r)
	if !ok {
		return
	}
	var body struct {
		Type         string  `json:"type"`
		Cells        int     `json:"cells"`
		FullVoltage  float64 `json:"full_voltage"`
		EmptyVoltage float64 `json:"empty_voltage"`
	}
	if !decode(w, r, &body) {
		return
	}
	target := v.Battery()
	if body.Type != "" || body.Cells != 0 {
		bt, cells := target.Type, target.Cells
		if body.Type != "" {
			parsed, err := model.ParseBatteryType(body.Type)
			if err != nil {
				writeError(w, err)
				return
			}
			bt = parsed
		}
		if body.Cells != 0 {
			cells = body.Cells
		}
		b, err := model.NewBattery(bt, cells)
		if err != nil {
			writeError(w, err)
			return
		}
		target = b
	}
	if body.FullVoltage != 0 {
		target.FullVoltagePerCell = body.FullVoltage
	}
	if body.EmptyVoltage != 0 {
		target.EmptyVoltagePerCell = body.EmptyVoltage
	}
	if err := v.ConfigureBattery(target); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v.Snapshot().Battery)
}

func (h *Handler) requestWaypoints(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vehicle(w, r)
	if !ok {
		return
	}
	h.respond(w, v.RequestWaypoints())
}

func (h *Handler) clearWaypoints(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vehicle(w, r)
	if !ok {
		return
	}
	h.respond(w, v.ClearWaypointList())
}

func (h *Handler) setWaypoint(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vehicle(w, r)
	if !ok {
		return
	}
	var wp protocol.Waypoint
	if !decode(w, r, &wp) {
		return
	}
	wp.Seq, _ = strconv.Atoi(mux.Vars(r)["seq"])
	h.respond(w, v.SetWaypoint(wp))
}

func (h *Handler) activateWaypoint(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vehicle(w, r)
	if !ok {
		return
	}
	seq, _ := strconv.Atoi(mux.Vars(r)["seq"])
	h.respond(w, v.SetWaypointActive(seq))
}

func (h *Handler) vehicle(w http.ResponseWriter, r *http.Request) (*uas.Vehicle, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid vehicle id", http.StatusBadRequest)
		return nil, false
	}
	v, err := h.fleet.Get(id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return v, true
}

// respond reports the outcome of a command. Partial broadcasts still answer
// 202 with the failed links listed.
func (h *Handler) respond(w http.ResponseWriter, err error) {
	if err == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	var derr *uas.DispatchError
	if uas.Delivered(err) && errors.As(err, &derr) {
		failed := make([]string, len(derr.Failures))
		for i, f := range derr.Failures {
			failed[i] = f.LinkID
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"failed_links": failed, "error": err.Error()})
		return
	}
	writeError(w, err)
}

func statusFor(err error) int {
	var derr *uas.DispatchError
	switch {
	case errors.Is(err, fleet.ErrVehicleNotFound):
		return http.StatusNotFound
	case errors.Is(err, uas.ErrNoLinks):
		return http.StatusConflict
	case errors.Is(err, uas.ErrUnmappedButton),
		errors.Is(err, model.ErrInvalidCellCount),
		errors.Is(err, model.ErrInvalidVoltageRange),
		errors.Is(err, model.ErrUnknownBatteryType):
		return http.StatusBadRequest
	case errors.As(err, &derr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
