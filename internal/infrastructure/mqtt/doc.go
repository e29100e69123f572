// Package mqtt wraps the Eclipse Paho client for the rig's messaging.
//
// Inbound, the broker carries pest detection events on
// pestguard/detection. Outbound, the rig publishes retained system
// status, per-sensor state and per-relay state, plus non-retained
// action execution events.
//
// The client restores subscriptions after reconnects and announces
// offline status through a Last Will when it disconnects unexpectedly.
package mqtt
