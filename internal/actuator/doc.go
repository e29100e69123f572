// Package actuator controls the relay bank that drives the rig's
// physical outputs (pesticide pump, trap mechanism, spares).
//
// A Bank owns a fixed set of relay channels behind a Pins driver.
// Activation can carry a duration, in which case an auto-off timer
// switches the relay back off. The bank tracks logical state, notifies
// an optional observer on every transition, and refuses all commands
// after ShutdownAll.
package actuator
