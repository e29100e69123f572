package sensor

import (
	"math"
	"time"
)

// simulateRead produces a deterministic reading for a sensor type from
// the current wall clock, so development rigs without probes attached
// still publish plausible values.
func simulateRead(sensorType string, now time.Time) (float64, error) {
	t := float64(now.Unix())

	var value float64
	switch sensorType {
	case "temperature":
		value = 20 + math.Mod(t, 10)
	case "humidity":
		value = 40 + math.Mod(t, 40)
	case "soil_moisture":
		value = math.Mod(t, 100)
	case "light":
		value = math.Mod(t, 1000)
	default:
		value = math.Mod(t, 1024)
	}

	return math.Round(value*10) / 10, nil
}
