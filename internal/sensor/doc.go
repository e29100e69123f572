// Package sensor polls the rig's environmental probes.
//
// A Hub runs one goroutine per configured sensor, sampling at each
// sensor's own interval and retaining the latest reading. Failed reads
// are recorded with an error status instead of halting the poll loop.
// Without hardware attached the hub samples a deterministic simulator.
package sensor
