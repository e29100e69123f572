package motion

import "errors"

var (
	// ErrAngleOutOfRange is returned when a servo command falls outside 0-180 degrees.
	ErrAngleOutOfRange = errors.New("motion: servo angle out of range")

	// ErrUnknownServo is returned when a command names an unconfigured servo.
	ErrUnknownServo = errors.New("motion: unknown servo")

	// ErrBusy is returned when a stepper move is requested while one is in progress.
	ErrBusy = errors.New("motion: stepper already moving")
)
