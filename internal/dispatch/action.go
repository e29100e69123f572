package dispatch

import (
	"fmt"
	"time"
)

// Action kinds as they appear in logs, history and the API.
const (
	KindSprayPesticide    = "spray_pesticide"
	KindActivateTrap      = "activate_trap"
	KindAdjustCamera      = "adjust_camera"
	KindEmergencyShutdown = "emergency_shutdown"
)

// Action is one unit of work for the dispatcher. Implementations are
// immutable value types; the dispatcher switches on the concrete type.
type Action interface {
	// Kind returns the stable identifier for this action variant.
	Kind() string

	// Describe returns a human-readable summary for logs and history.
	Describe() string
}

// SprayPesticide runs the pesticide pump for a fixed window.
type SprayPesticide struct {
	Duration time.Duration
}

func (SprayPesticide) Kind() string { return KindSprayPesticide }

func (a SprayPesticide) Describe() string {
	return fmt.Sprintf("spray pesticide for %s", a.Duration)
}

// ActivateTrap energises the trap mechanism for a fixed window.
type ActivateTrap struct {
	Duration time.Duration
}

func (ActivateTrap) Kind() string { return KindActivateTrap }

func (a ActivateTrap) Describe() string {
	return fmt.Sprintf("activate trap for %s", a.Duration)
}

// AdjustCamera repositions the camera servo.
type AdjustCamera struct {
	Angle int
}

func (AdjustCamera) Kind() string { return KindAdjustCamera }

func (a AdjustCamera) Describe() string {
	return fmt.Sprintf("adjust camera to %d degrees", a.Angle)
}

// EmergencyShutdown deactivates every relay and halts the dispatcher.
// It executes like any other action, so actions queued ahead of it
// complete first.
type EmergencyShutdown struct{}

func (EmergencyShutdown) Kind() string { return KindEmergencyShutdown }

func (EmergencyShutdown) Describe() string { return "emergency shutdown" }
