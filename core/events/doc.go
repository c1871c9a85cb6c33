// Package events defines the notifications vehicles publish on the event bus.
//
// Every event carries the vehicle identity and the changed field. Value holds
// numeric changes, Name identifies a channel (actuator, motor or link) and
// Text carries symbolic values such as the comm status or an error message.
//
// Available fields:
//   - voltage, load, drop_rate, charge_level
//   - actuator, motor (with Min/Max)
//   - heartbeat, mode, status, comm_status
//   - attitude, manual_control
//   - waypoint_ack, waypoint_current
//   - unknown_message
//   - command, dispatch_failure
//   - vehicle_added, vehicle_removed
package events
