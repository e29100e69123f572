package sensor

import "errors"

var (
	// ErrUnknownSensor is returned when a snapshot names an unconfigured sensor.
	ErrUnknownSensor = errors.New("sensor: unknown sensor")

	// ErrAlreadyRunning is returned when StartAll is called on a running hub.
	ErrAlreadyRunning = errors.New("sensor: hub already running")

	// ErrNotRunning is returned when StopAll is called on a stopped hub.
	ErrNotRunning = errors.New("sensor: hub not running")
)
