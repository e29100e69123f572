package mqtt

import "fmt"

// topicPrefix is the root of every topic the rig publishes or consumes.
const topicPrefix = "pestguard"

// Topics builds the MQTT topic strings used across the system.
//
// Layout:
//
//	pestguard/detection              inbound pest detection events
//	pestguard/system/status          retained online/offline status
//	pestguard/sensor/{id}/state      retained latest reading per sensor
//	pestguard/actuator/{ch}/state    retained relay state per channel
//	pestguard/action/executed        action execution outcomes
type Topics struct{}

// Detection is the inbound topic for pest detection events.
func (Topics) Detection() string {
	return topicPrefix + "/detection"
}

// SystemStatus is the retained topic carrying online/offline status.
func (Topics) SystemStatus() string {
	return topicPrefix + "/system/status"
}

// SensorState is the retained topic for one sensor's latest reading.
func (Topics) SensorState(sensorID string) string {
	return fmt.Sprintf("%s/sensor/%s/state", topicPrefix, sensorID)
}

// AllSensorStates is the wildcard pattern matching every sensor state topic.
func (Topics) AllSensorStates() string {
	return topicPrefix + "/sensor/+/state"
}

// ActuatorState is the retained topic for one relay channel's state.
func (Topics) ActuatorState(channel int) string {
	return fmt.Sprintf("%s/actuator/%d/state", topicPrefix, channel)
}

// ActionExecuted is the topic carrying action execution outcomes.
func (Topics) ActionExecuted() string {
	return topicPrefix + "/action/executed"
}
