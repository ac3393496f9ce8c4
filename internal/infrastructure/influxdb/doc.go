// Package influxdb records DEWHOME telemetry in InfluxDB v2.
//
// Two measurements are written:
//
//	device_state       tag device_id             fields state (0|1), pin
//	action_execution   tags action_id, status    fields duration_ms, steps_failed
//
// Writes are batched according to influxdb.batch_size and
// influxdb.flush_interval and never block the caller. Telemetry is
// optional; Core runs normally with influxdb.enabled set to false.
package influxdb
