package protocol

// System state codes reported in heartbeat and sys_status frames.
const (
	StateUninit      = 0
	StateBoot        = 1
	StateCalibrating = 2
	StateStandby     = 3
	StateActive      = 4
	StateCritical    = 5
	StateEmergency   = 6
	StatePowerOff    = 7
)

type statusText struct {
	state       string
	description string
}

var statusTexts = map[int]statusText{
	StateUninit:      {"UNINIT", "Uninitialized, booting up."},
	StateBoot:        {"BOOT", "Booting system, please wait."},
	StateCalibrating: {"CALIBRATING", "Calibrating sensors, please wait."},
	StateStandby:     {"STANDBY", "Standby mode, ready for launch."},
	StateActive:      {"ACTIVE", "Active, normal operation."},
	StateCritical:    {"CRITICAL", "FAILURE: Continuing operation."},
	StateEmergency:   {"EMERGENCY", "EMERGENCY: Land immediately!"},
	StatePowerOff:    {"SHUTDOWN", "Powering off system."},
}

// StatusInfo returns the short state name and the operator facing
// description for a system state code. Unlisted codes map to UNKNOWN.
func StatusInfo(code int) (state, description string) {
	if t, ok := statusTexts[code]; ok {
		return t.state, t.description
	}
	return "UNKNOWN", "Unknown system state."
}
