package motion

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger is the minimal logging interface the motion package needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Servo holds the configuration for a single positioning servo.
type Servo struct {
	ID          string
	SettleDelay time.Duration
}

// Controller drives the rig's motion hardware: one stepper motor for
// the dispersal arm and any number of positioning servos (camera mount,
// nozzle aim).
//
// Stepper moves are blocking and simulated step by step; only one move
// may be in flight at a time. Servo moves validate the angle, wait the
// configured settle delay and record the new position.
//
// Thread Safety: all methods are safe for concurrent use.
type Controller struct {
	mu        sync.Mutex
	moving    bool
	position  int // stepper position in steps from origin
	stepDelay time.Duration
	servos    map[string]Servo
	angles    map[string]int
	logger    Logger
}

// NewController initialises a motion controller.
//
// Parameters:
//   - stepDelay: pause between simulated stepper steps.
//   - servos: the configured servos. An empty slice is valid for rigs
//     without positioning hardware.
func NewController(stepDelay time.Duration, servos []Servo) *Controller {
	byID := make(map[string]Servo, len(servos))
	angles := make(map[string]int, len(servos))
	for _, s := range servos {
		byID[s.ID] = s
		angles[s.ID] = 90 // centre on startup
	}

	return &Controller{
		stepDelay: stepDelay,
		servos:    byID,
		angles:    angles,
		logger:    noopLogger{},
	}
}

// SetLogger attaches a logger. Must be called before concurrent use.
func (c *Controller) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// MoveStepper advances the stepper by the given number of steps.
// Negative steps reverse direction. The call blocks for the duration
// of the simulated move and honours context cancellation between
// steps, leaving the position at the last completed step.
//
// Returns ErrBusy if another move is already in progress.
func (c *Controller) MoveStepper(ctx context.Context, steps int) error {
	c.mu.Lock()
	if c.moving {
		c.mu.Unlock()
		return ErrBusy
	}
	c.moving = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.moving = false
		c.mu.Unlock()
	}()

	direction := 1
	if steps < 0 {
		direction = -1
		steps = -steps
	}

	c.logger.Debug("stepper move started", "steps", steps, "direction", direction)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			c.logger.Warn("stepper move cancelled", "completed", i, "requested", steps)
			return ctx.Err()
		case <-time.After(c.stepDelay):
		}

		c.mu.Lock()
		c.position += direction
		c.mu.Unlock()
	}

	c.logger.Info("stepper move complete", "steps", steps, "direction", direction, "position", c.Position())
	return nil
}

// IsMoving reports whether a stepper move is in progress.
func (c *Controller) IsMoving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moving
}

// Position returns the stepper position in steps from origin.
func (c *Controller) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// MoveServo commands a servo to the given angle in degrees.
//
// The call blocks for the servo's settle delay so callers can sequence
// a capture or spray after the mount has stopped oscillating.
//
// Returns:
//   - ErrUnknownServo if the id is not configured.
//   - ErrAngleOutOfRange if the angle falls outside 0-180.
func (c *Controller) MoveServo(id string, angle int) error {
	c.mu.Lock()
	servo, ok := c.servos[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownServo, id)
	}
	if angle < 0 || angle > 180 {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrAngleOutOfRange, angle)
	}
	c.angles[id] = angle
	c.mu.Unlock()

	if servo.SettleDelay > 0 {
		time.Sleep(servo.SettleDelay)
	}

	c.logger.Info("servo positioned", "servo", id, "angle", angle)
	return nil
}

// ServoAngle returns the last commanded angle for a servo.
func (c *Controller) ServoAngle(id string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	angle, ok := c.angles[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownServo, id)
	}
	return angle, nil
}

// ServoIDs returns the configured servo identifiers.
func (c *Controller) ServoIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.servos))
	for id := range c.servos {
		ids = append(ids, id)
	}
	return ids
}
