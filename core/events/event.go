package events

import "time"

// Field names the vehicle property an event refers to.
type Field string

const (
	FieldVoltage         Field = "voltage"
	FieldChargeLevel     Field = "charge_level"
	FieldLoad            Field = "load"
	FieldDropRate        Field = "drop_rate"
	FieldActuator        Field = "actuator"
	FieldMotor           Field = "motor"
	FieldHeartbeat       Field = "heartbeat"
	FieldMode            Field = "mode"
	FieldStatus          Field = "status"
	FieldCommStatus      Field = "comm_status"
	FieldAttitude        Field = "attitude"
	FieldManualControl   Field = "manual_control"
	FieldWaypointAck     Field = "waypoint_ack"
	FieldWaypointCurrent Field = "waypoint_current"
	FieldUnknownMessage  Field = "unknown_message"
	FieldMalformed       Field = "malformed_message"
	FieldCommand         Field = "command"
	FieldDispatchFailure Field = "dispatch_failure"
	FieldVehicleAdded    Field = "vehicle_added"
	FieldVehicleRemoved  Field = "vehicle_removed"
)

// Event is a single state change notification.
type Event struct {
	VehicleID int
	Field     Field
	Name      string
	Value     float64
	Min       float64
	Max       float64
	Text      string
	Time      time.Time
}

// Publisher accepts events for fan-out. Implementations must not block.
type Publisher interface {
	Publish(Event)
}

// Bus is a Publisher that also hands out subscriptions.
type Bus interface {
	Publisher
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
}
