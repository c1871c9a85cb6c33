package model

// ManualControl holds the per axis arbitration state. An axis flagged manual
// follows the operator set-point, otherwise the vehicle autopilot.
type ManualControl struct {
	RollManual   bool    `json:"roll_manual"`
	PitchManual  bool    `json:"pitch_manual"`
	YawManual    bool    `json:"yaw_manual"`
	ThrustManual bool    `json:"thrust_manual"`
	Roll         float64 `json:"roll"`
	Pitch        float64 `json:"pitch"`
	Yaw          float64 `json:"yaw"`
	Thrust       float64 `json:"thrust"`
}

// IsAuto reports whether no axis is under manual control.
func (m ManualControl) IsAuto() bool {
	return !m.RollManual && !m.PitchManual && !m.YawManual && !m.ThrustManual
}
