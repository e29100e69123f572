package sensor

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func testSensors() []Sensor {
	return []Sensor{
		{ID: "temp_1", Type: "temperature", Unit: "celsius", Interval: 10 * time.Millisecond},
		{ID: "hum_1", Type: "humidity", Unit: "percent", Interval: 10 * time.Millisecond},
	}
}

func waitForReadings(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(hub.SnapshotAll()) >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d readings, got %d", want, len(hub.SnapshotAll()))
}

func TestHub_StartAndSnapshot(t *testing.T) {
	hub := NewHub(testSensors())

	if err := hub.StartAll(); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	defer hub.StopAll(time.Second)

	waitForReadings(t, hub, 2)

	reading, ok, err := hub.Snapshot("temp_1")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if !ok {
		t.Fatal("no reading for temp_1")
	}
	if reading.Status != StatusOK {
		t.Errorf("expected status ok, got %q", reading.Status)
	}
	if reading.Value == nil {
		t.Fatal("nil value on ok reading")
	}
	if *reading.Value < 20 || *reading.Value > 30 {
		t.Errorf("temperature %f outside simulated range", *reading.Value)
	}
	if reading.Unit != "celsius" {
		t.Errorf("expected unit celsius, got %q", reading.Unit)
	}
}

func TestHub_UnknownSensor(t *testing.T) {
	hub := NewHub(testSensors())

	if _, _, err := hub.Snapshot("nope"); !errors.Is(err, ErrUnknownSensor) {
		t.Errorf("expected ErrUnknownSensor, got %v", err)
	}
}

func TestHub_StartStopGuards(t *testing.T) {
	hub := NewHub(testSensors())

	if err := hub.StopAll(time.Second); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}

	if err := hub.StartAll(); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if err := hub.StartAll(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}

	if err := hub.StopAll(time.Second); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
}

func TestHub_ReadFailureRecorded(t *testing.T) {
	hub := NewHub([]Sensor{
		{ID: "temp_1", Type: "temperature", Unit: "celsius", Interval: 10 * time.Millisecond},
	})
	hub.SetReadFunc(func(string, time.Time) (float64, error) {
		return 0, errors.New("probe disconnected")
	})

	if err := hub.StartAll(); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	defer hub.StopAll(time.Second)

	waitForReadings(t, hub, 1)

	reading, ok, err := hub.Snapshot("temp_1")
	if err != nil || !ok {
		t.Fatalf("Snapshot failed: ok=%v err=%v", ok, err)
	}
	if reading.Status != StatusError {
		t.Errorf("expected status error, got %q", reading.Status)
	}
	if reading.Value != nil {
		t.Error("expected nil value on failed read")
	}
	if reading.ErrorDetail != "probe disconnected" {
		t.Errorf("expected error detail, got %q", reading.ErrorDetail)
	}
}

func TestHub_FailureDoesNotStopPolling(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	hub := NewHub([]Sensor{
		{ID: "temp_1", Type: "temperature", Unit: "celsius", Interval: 5 * time.Millisecond},
	})
	hub.SetReadFunc(func(string, time.Time) (float64, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls%2 == 1 {
			return 0, errors.New("intermittent")
		}
		return 21.5, nil
	})

	if err := hub.StartAll(); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	defer hub.StopAll(time.Second)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n >= 4 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("polling stopped after failures")
}

func TestHub_RestartAfterStopTimeout(t *testing.T) {
	release := make(chan struct{})
	hub := NewHub([]Sensor{
		{ID: "temp_1", Type: "temperature", Unit: "celsius", Interval: 5 * time.Millisecond},
	})
	hub.SetReadFunc(func(string, time.Time) (float64, error) {
		<-release
		return 21.5, nil
	})

	if err := hub.StartAll(); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}

	// The poller is wedged inside its read, so the stop deadline hits
	// and the goroutine is abandoned.
	if err := hub.StopAll(10 * time.Millisecond); err == nil {
		t.Fatal("expected StopAll to time out with a blocked poller")
	}

	// A fresh generation must start cleanly while the abandoned poller
	// is still draining.
	hub.SetReadFunc(simulateRead)
	if err := hub.StartAll(); err != nil {
		t.Fatalf("StartAll after timed-out stop failed: %v", err)
	}
	waitForReadings(t, hub, 1)

	close(release)
	if err := hub.StopAll(time.Second); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
}

func TestHub_OnReading(t *testing.T) {
	hub := NewHub([]Sensor{
		{ID: "hum_1", Type: "humidity", Unit: "percent", Interval: 10 * time.Millisecond},
	})

	readings := make(chan Reading, 16)
	hub.SetOnReading(func(r Reading) {
		select {
		case readings <- r:
		default:
		}
	})

	if err := hub.StartAll(); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	defer hub.StopAll(time.Second)

	select {
	case r := <-readings:
		if r.SensorID != "hum_1" {
			t.Errorf("expected hum_1, got %q", r.SensorID)
		}
	case <-time.After(time.Second):
		t.Fatal("no reading observed")
	}
}

func TestSimulateRead_Ranges(t *testing.T) {
	now := time.Now()

	tests := []struct {
		sensorType string
		min, max   float64
	}{
		{"temperature", 20, 30},
		{"humidity", 40, 80},
		{"soil_moisture", 0, 100},
		{"light", 0, 1000},
		{"unknown", 0, 1024},
	}

	for _, tt := range tests {
		t.Run(tt.sensorType, func(t *testing.T) {
			value, err := simulateRead(tt.sensorType, now)
			if err != nil {
				t.Fatalf("simulateRead failed: %v", err)
			}
			if value < tt.min || value > tt.max {
				t.Errorf("value %f outside [%f, %f]", value, tt.min, tt.max)
			}
		})
	}
}
