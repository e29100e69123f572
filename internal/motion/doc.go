// Package motion drives the rig's stepper motor and positioning servos.
package motion
