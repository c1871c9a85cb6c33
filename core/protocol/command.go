package protocol

// Action is a discrete vehicle command.
type Action int

const (
	ActionLaunch Action = iota + 1
	ActionReturnHome
	ActionHalt
	ActionContinue
	ActionEmergencyLand
	ActionEmergencyKill
	ActionShutdown
	ActionMotorsStart
	ActionMotorsStop
)

var actionNames = map[Action]string{
	ActionLaunch:        "launch",
	ActionReturnHome:    "home",
	ActionHalt:          "halt",
	ActionContinue:      "go",
	ActionEmergencyLand: "emergency_stop",
	ActionEmergencyKill: "emergency_kill",
	ActionShutdown:      "shutdown",
	ActionMotorsStart:   "enable_motors",
	ActionMotorsStop:    "disable_motors",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "unknown"
}

// ParseAction resolves an action name as produced by String.
func ParseAction(name string) (Action, bool) {
	for a, n := range actionNames {
		if n == name {
			return a, true
		}
	}
	return 0, false
}

// ActionCommand asks the target vehicle to perform an action.
type ActionCommand struct {
	Target int    `json:"target"`
	Action Action `json:"action"`
}

// SetModeCommand requests a mode change.
type SetModeCommand struct {
	Target int  `json:"target"`
	Mode   Mode `json:"mode"`
}

// ManualSetpoint carries operator axis set-points.
type ManualSetpoint struct {
	Target       int     `json:"target"`
	Roll         float64 `json:"roll"`
	Pitch        float64 `json:"pitch"`
	Yaw          float64 `json:"yaw"`
	Thrust       float64 `json:"thrust"`
	RollManual   bool    `json:"roll_manual"`
	PitchManual  bool    `json:"pitch_manual"`
	YawManual    bool    `json:"yaw_manual"`
	ThrustManual bool    `json:"thrust_manual"`
}

// Waypoint is a single mission item as relayed to the vehicle.
type Waypoint struct {
	Seq          int     `json:"seq"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Z            float64 `json:"z"`
	Yaw          float64 `json:"yaw"`
	Autocontinue bool    `json:"autocontinue"`
	Current      bool    `json:"current"`
	OrbitRadius  float64 `json:"orbit"`
	HoldTimeMS   int     `json:"hold_time_ms"`
}

// WaypointSetCommand uploads one waypoint.
type WaypointSetCommand struct {
	Target   int      `json:"target"`
	Waypoint Waypoint `json:"waypoint"`
}

// WaypointSetCurrentCommand selects the active waypoint.
type WaypointSetCurrentCommand struct {
	Target int `json:"target"`
	Seq    int `json:"seq"`
}

// WaypointRequestListCommand asks the vehicle to transmit its waypoint list.
type WaypointRequestListCommand struct {
	Target int `json:"target"`
}

// WaypointClearAllCommand clears the onboard waypoint list.
type WaypointClearAllCommand struct {
	Target int `json:"target"`
}
