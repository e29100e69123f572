package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSensorReading records one sensor sample.
//
// The write is non-blocking; points are batched and sent
// asynchronously. Failed reads should not be written here (there is no
// value to plot); they surface through logs and the status API.
//
// Parameters:
//   - sensorID: sensor identifier (e.g. "temp_1")
//   - sensorType: sensor type tag (e.g. "temperature")
//   - unit: unit tag (e.g. "celsius")
//   - value: the sampled value
//   - at: sample timestamp
func (c *Client) WriteSensorReading(sensorID, sensorType, unit string, value float64, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sensor_readings",
		map[string]string{
			"sensor_id": sensorID,
			"type":      sensorType,
			"unit":      unit,
		},
		map[string]interface{}{
			"value": value,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WriteRelayState records a relay state transition.
//
// Parameters:
//   - channel: relay channel identifier
//   - active: the new state
func (c *Client) WriteRelayState(channel int, active bool) {
	if !c.IsConnected() {
		return
	}

	state := 0
	if active {
		state = 1
	}

	point := write.NewPoint(
		"relay_state",
		map[string]string{
			"channel": strconv.Itoa(channel),
		},
		map[string]interface{}{
			"active": state,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteActionMetric records one action execution outcome.
//
// Parameters:
//   - kind: action kind (e.g. "spray_pesticide")
//   - status: execution status ("completed" or "failed")
//   - elapsed: how long the execution took
func (c *Client) WriteActionMetric(kind, status string, elapsed time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"action_executions",
		map[string]string{
			"kind":   kind,
			"status": status,
		},
		map[string]interface{}{
			"elapsed_ms": elapsed.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point for measurements the helpers don't
// cover. Tags should stay low-cardinality.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
