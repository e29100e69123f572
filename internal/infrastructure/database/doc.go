// Package database manages the rig's local SQLite store: connection
// lifecycle, pragmas, health checks and embedded schema migrations.
//
// The operation history (action executions, pest detections) lives
// here; high-rate telemetry goes to InfluxDB instead.
package database
