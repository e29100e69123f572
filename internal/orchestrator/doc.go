// Package orchestrator assembles the rig: relay bank, motion
// controller, sensor hub, action dispatcher and risk policy, plus the
// optional history store, telemetry writer, MQTT broker and websocket
// broadcaster.
//
// The System is the single entry point for the API and the broker:
// detections come in, get classified, and the resulting action bundle
// is queued for the dispatcher. Component state changes fan out to
// every attached observer.
package orchestrator
