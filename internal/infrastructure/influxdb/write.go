package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementDeviceState     = "device_state"
	MeasurementActionExecution = "action_execution"
)

// WriteDeviceState records a device output level.
//
//	device_state,device_id=3 state=1i,pin=17i
func (c *Client) WriteDeviceState(deviceID int64, high bool, pin int, at time.Time) {
	state := 0
	if high {
		state = 1
	}
	c.writePoint(write.NewPoint(
		MeasurementDeviceState,
		map[string]string{"device_id": strconv.FormatInt(deviceID, 10)},
		map[string]interface{}{
			"state": state,
			"pin":   pin,
		},
		at,
	))
}

// WriteActionExecution records the outcome of one action run.
func (c *Client) WriteActionExecution(actionID int64, status string, durationMS int64, stepsFailed int, at time.Time) {
	c.writePoint(write.NewPoint(
		MeasurementActionExecution,
		map[string]string{
			"action_id": strconv.FormatInt(actionID, 10),
			"status":    status,
		},
		map[string]interface{}{
			"duration_ms":  durationMS,
			"steps_failed": stepsFailed,
		},
		at,
	))
}

func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}
