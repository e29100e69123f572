package sensor

import (
	"fmt"
	"sync"
	"time"
)

// Reading statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// errorBackoffFactor stretches a sensor's poll interval after a failed
// read, so a disconnected probe is not hammered at full rate.
const errorBackoffFactor = 5

// Logger is the minimal logging interface the sensor package needs.
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

// Sensor describes one configured probe.
type Sensor struct {
	ID       string
	Type     string
	Unit     string
	Interval time.Duration
}

// Reading is one sampled value from a probe. Value is nil when the
// read failed; Status and ErrorDetail carry the failure.
type Reading struct {
	SensorID    string    `json:"sensor_id"`
	Type        string    `json:"type"`
	Value       *float64  `json:"value"`
	Unit        string    `json:"unit"`
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
	ErrorDetail string    `json:"error_detail,omitempty"`
}

// ReadFunc samples a sensor of the given type. The hub defaults to the
// built-in simulator; hardware builds and tests inject their own.
type ReadFunc func(sensorType string, now time.Time) (float64, error)

// ReadingFunc observes every completed reading, failures included.
// Called from the sensor's polling goroutine; implementations must not
// block for long or they delay that sensor's next poll.
type ReadingFunc func(Reading)

// Hub polls a fixed set of sensors, each on its own goroutine at its
// configured interval, and retains the latest reading per sensor.
//
// A failed read is recorded as a Reading with StatusError rather than
// stopping the poll loop, so one flaky probe never takes down the hub.
//
// Thread Safety: all methods are safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	sensors map[string]Sensor
	latest  map[string]Reading
	running bool
	stop    chan struct{}

	// wg is replaced on every StartAll so abandoned pollers from a
	// timed-out StopAll cannot race a fresh generation's Add/Wait.
	wg *sync.WaitGroup
	readFn    ReadFunc
	onReading ReadingFunc
	logger    Logger
}

// NewHub initialises a hub over the given sensors.
func NewHub(sensors []Sensor) *Hub {
	byID := make(map[string]Sensor, len(sensors))
	for _, s := range sensors {
		byID[s.ID] = s
	}

	return &Hub{
		sensors: byID,
		latest:  make(map[string]Reading, len(sensors)),
		readFn:  simulateRead,
		logger:  noopLogger{},
	}
}

// SetLogger attaches a logger. Must be called before StartAll.
func (h *Hub) SetLogger(logger Logger) {
	if logger != nil {
		h.logger = logger
	}
}

// SetReadFunc replaces the sampling function. Safe to call between
// generations; pollers pick up the function at each sample.
func (h *Hub) SetReadFunc(fn ReadFunc) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.readFn = fn
	h.mu.Unlock()
}

// SetOnReading registers an observer for every completed reading.
// Must be called before StartAll.
func (h *Hub) SetOnReading(fn ReadingFunc) {
	h.onReading = fn
}

// StartAll launches one polling goroutine per configured sensor.
// Each sensor samples immediately, then at its configured interval.
func (h *Hub) StartAll() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrAlreadyRunning
	}
	h.running = true
	h.stop = make(chan struct{})
	h.wg = &sync.WaitGroup{}

	for _, s := range h.sensors {
		h.wg.Add(1)
		go h.poll(s, h.stop, h.wg)
	}

	h.logger.Info("sensor hub started", "sensors", len(h.sensors))
	return nil
}

// StopAll signals every polling goroutine to exit and waits up to
// timeout for them to finish. Goroutines still running at the deadline
// are abandoned with a warning; they exit on their next tick.
func (h *Hub) StopAll(timeout time.Duration) error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrNotRunning
	}
	h.running = false
	close(h.stop)
	wg := h.wg
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("sensor hub stopped")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("sensor hub stop timed out, abandoning pollers", "timeout", timeout)
		return fmt.Errorf("sensor: stop timed out after %s", timeout)
	}
}

// Snapshot returns the latest reading for a sensor.
//
// Returns ErrUnknownSensor for unconfigured ids. A configured sensor
// with no completed poll yet yields a zero Reading and ok=false.
func (h *Hub) Snapshot(id string) (Reading, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, configured := h.sensors[id]; !configured {
		return Reading{}, false, fmt.Errorf("%w: %q", ErrUnknownSensor, id)
	}

	reading, ok := h.latest[id]
	return reading, ok, nil
}

// SnapshotAll returns the latest reading for every sensor that has
// completed at least one poll.
func (h *Hub) SnapshotAll() map[string]Reading {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snapshot := make(map[string]Reading, len(h.latest))
	for id, r := range h.latest {
		snapshot[id] = r
	}
	return snapshot
}

// Sensors returns the configured sensor set.
func (h *Hub) Sensors() []Sensor {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sensors := make([]Sensor, 0, len(h.sensors))
	for _, s := range h.sensors {
		sensors = append(sensors, s)
	}
	return sensors
}

func (h *Hub) poll(s Sensor, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	h.reschedule(ticker, s, h.sample(s))

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.reschedule(ticker, s, h.sample(s))
		}
	}
}

// reschedule applies the error backoff after a failed read and
// restores the normal interval after a successful one.
func (h *Hub) reschedule(ticker *time.Ticker, s Sensor, ok bool) {
	if ok {
		ticker.Reset(s.Interval)
		return
	}
	ticker.Reset(s.Interval * errorBackoffFactor)
}

func (h *Hub) sample(s Sensor) bool {
	now := time.Now().UTC()

	reading := Reading{
		SensorID:  s.ID,
		Type:      s.Type,
		Unit:      s.Unit,
		Timestamp: now,
		Status:    StatusOK,
	}

	h.mu.RLock()
	readFn := h.readFn
	h.mu.RUnlock()

	value, err := readFn(s.Type, now)
	if err != nil {
		reading.Status = StatusError
		reading.ErrorDetail = err.Error()
		h.logger.Warn("sensor read failed", "sensor", s.ID, "error", err)
	} else {
		reading.Value = &value
	}

	h.mu.Lock()
	h.latest[s.ID] = reading
	h.mu.Unlock()

	if h.onReading != nil {
		h.onReading(reading)
	}

	return reading.Status == StatusOK
}
