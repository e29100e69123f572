// Package influxdb stores the rig's time-series telemetry.
//
// It wraps the official influxdb-client-go v2 library with helpers for
// the three measurements the rig produces:
//   - sensor_readings: per-sensor sampled values
//   - relay_state: relay activation transitions
//   - action_executions: per-action outcome and elapsed time
//
// Writes are non-blocking and batched per the batch_size and
// flush_interval config settings; async write failures surface through
// the SetOnError callback. All methods are safe for concurrent use.
package influxdb
