// Package bridge connects Core's device and action events to MQTT and
// InfluxDB, and turns MQTT device commands into pin changes.
//
// Outbound:
//   - every device state change is published retained on
//     dewhome/state/device/{id} and written as a device_state point
//   - every action execution is published on dewhome/event/action/{id}
//     and written as an action_execution point
//
// Inbound:
//   - dewhome/command/device/{id} with {"action":"high|low|toggle"} is
//     applied through the device controller with source "mqtt"
//
// Publishing happens on a single background worker so observers never
// block the caller, and retained states reach the broker in order.
package bridge
