package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verdantlabs/pestguard-core/internal/actuator"
	"github.com/verdantlabs/pestguard-core/internal/dispatch"
	"github.com/verdantlabs/pestguard-core/internal/history"
	"github.com/verdantlabs/pestguard-core/internal/infrastructure/config"
	"github.com/verdantlabs/pestguard-core/internal/infrastructure/influxdb"
	"github.com/verdantlabs/pestguard-core/internal/infrastructure/mqtt"
	"github.com/verdantlabs/pestguard-core/internal/motion"
	"github.com/verdantlabs/pestguard-core/internal/risk"
	"github.com/verdantlabs/pestguard-core/internal/sensor"
)

// stopTimeout bounds each component's shutdown wait.
const stopTimeout = 5 * time.Second

// cameraServoID names the rig's single positioning servo.
const cameraServoID = "camera"

// Logger is the minimal logging interface the orchestrator needs.
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

// Detection is an inbound pest detection event, from MQTT or the API.
// Location is accepted and logged but does not alter the action set;
// the camera is positioned manually through the action API.
type Detection struct {
	PestType   string    `json:"pest_type"`
	Confidence float64   `json:"confidence"`
	Location   []float64 `json:"location,omitempty"`
	Source     string    `json:"source,omitempty"`
}

// Response summarises what a detection triggered.
type Response struct {
	DetectionID string    `json:"detection_id"`
	Tier        risk.Tier `json:"tier"`
	Queued      int       `json:"queued"`
	Dropped     int       `json:"dropped"`
}

// Status is a point-in-time snapshot of the whole rig.
type Status struct {
	SiteID        string                    `json:"site_id"`
	Running       bool                      `json:"running"`
	Relays        map[int]bool              `json:"relays"`
	QueueDepth    int                       `json:"queue_depth"`
	Sensors       map[string]sensor.Reading `json:"sensors"`
	StepperMoving bool                      `json:"stepper_moving"`
	Position      int                       `json:"stepper_position"`
	Timestamp     time.Time                 `json:"timestamp"`
}

// Event is pushed to websocket subscribers on every state change.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// BroadcastFunc fans an event out to connected clients.
type BroadcastFunc func(Event)

// System owns the rig's components and wires their observers together:
// relay transitions, sensor readings and action outcomes flow to the
// history store, the telemetry store, the broker and the websocket
// broadcaster, whichever of those are configured.
//
// Thread Safety: all methods are safe for concurrent use.
type System struct {
	cfg    *config.Config
	logger Logger

	bank       *actuator.Bank
	motion     *motion.Controller
	hub        *sensor.Hub
	queue      *dispatch.Queue
	dispatcher *dispatch.Dispatcher
	policy     *risk.Policy

	// Optional collaborators, set before Start.
	repo      history.Repository
	telemetry *influxdb.Client
	broker    *mqtt.Client
	broadcast BroadcastFunc

	mu      sync.RWMutex
	running bool
}

// New builds a system from configuration. The returned system is
// stopped; call Start to bring the rig up.
func New(cfg *config.Config, logger Logger) (*System, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	bank, err := actuator.NewBank(cfg.Actuators.Channels, actuator.NewSimulatedPins())
	if err != nil {
		return nil, fmt.Errorf("initialising relay bank: %w", err)
	}
	bank.SetLogger(logger)

	mc := motion.NewController(cfg.Motors.Stepper.StepDelay(), []motion.Servo{
		{ID: cameraServoID, SettleDelay: cfg.Motors.Servo.SettleDelay()},
	})
	mc.SetLogger(logger)

	var sensors []sensor.Sensor
	for _, s := range cfg.Sensors {
		sensors = append(sensors, sensor.Sensor{
			ID:       s.ID,
			Type:     s.Type,
			Unit:     s.Unit,
			Interval: s.Interval(),
		})
	}
	hub := sensor.NewHub(sensors)
	hub.SetLogger(logger)

	policy, err := risk.NewPolicy(cfg.Risk.HighRisk, cfg.Risk.MediumRisk, cfg.Risk.LowRisk)
	if err != nil {
		return nil, fmt.Errorf("initialising risk policy: %w", err)
	}

	queue := dispatch.NewQueue(0)
	dispatcher := dispatch.NewDispatcher(queue, bank, mc,
		dispatch.Roles{Pump: cfg.Actuators.Roles.Pump, Trap: cfg.Actuators.Roles.Trap},
		cameraServoID,
	)
	dispatcher.SetLogger(logger)

	return &System{
		cfg:        cfg,
		logger:     logger,
		bank:       bank,
		motion:     mc,
		hub:        hub,
		queue:      queue,
		dispatcher: dispatcher,
		policy:     policy,
	}, nil
}

// SetHistory attaches the history repository. Must be called before Start.
func (s *System) SetHistory(repo history.Repository) {
	s.repo = repo
}

// SetTelemetry attaches the InfluxDB client. Must be called before Start.
func (s *System) SetTelemetry(client *influxdb.Client) {
	s.telemetry = client
}

// SetBroker attaches the MQTT client. Must be called before Start.
func (s *System) SetBroker(client *mqtt.Client) {
	s.broker = client
}

// SetBroadcast attaches the websocket broadcaster. Must be called before Start.
func (s *System) SetBroadcast(fn BroadcastFunc) {
	s.broadcast = fn
}

// Start wires the component observers, launches the sensor pollers and
// the dispatcher worker, and subscribes to inbound detections on the
// broker if one is attached.
func (s *System) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("orchestrator: already running")
	}
	s.running = true
	s.mu.Unlock()

	s.wireObservers()

	if err := s.hub.StartAll(); err != nil {
		return fmt.Errorf("starting sensor hub: %w", err)
	}
	if err := s.dispatcher.Start(); err != nil {
		return fmt.Errorf("starting dispatcher: %w", err)
	}

	if s.broker != nil {
		if err := s.broker.Subscribe(mqtt.Topics{}.Detection(), byte(s.cfg.MQTT.QoS), s.handleDetectionMessage); err != nil {
			s.logger.Warn("detection subscription failed", "error", err)
		}
	}

	s.logger.Info("system started",
		"site", s.cfg.Site.ID,
		"relays", len(s.cfg.Actuators.Channels),
		"sensors", len(s.cfg.Sensors),
	)
	return nil
}

// Stop shuts the rig down: dispatcher first so no action is mid-flight,
// then the sensor pollers, then the relay bank. Safe to call twice.
func (s *System) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	var firstErr error

	if err := s.dispatcher.Stop(stopTimeout); err != nil && !errors.Is(err, dispatch.ErrStopped) {
		firstErr = err
	}
	if err := s.hub.StopAll(stopTimeout); err != nil && !errors.Is(err, sensor.ErrNotRunning) {
		if firstErr == nil {
			firstErr = err
		}
	}
	if err := s.bank.DeactivateAll(); err != nil && !errors.Is(err, actuator.ErrBankClosed) {
		if firstErr == nil {
			firstErr = err
		}
	}

	s.logger.Info("system stopped")
	return firstErr
}

// Close stops the rig and releases the relay pin driver. Unlike Stop,
// the system cannot be started again afterwards.
func (s *System) Close() error {
	err := s.Stop()

	if shutErr := s.bank.ShutdownAll(); shutErr != nil && !errors.Is(shutErr, actuator.ErrBankClosed) {
		if err == nil {
			err = shutErr
		}
	}
	return err
}

// TriggerResponse classifies a detection, records it and queues the
// tier's action bundle. Low is the catch-all tier, so every accepted
// detection queues at least the trap.
func (s *System) TriggerResponse(ctx context.Context, det Detection) (*Response, error) {
	if det.Confidence < 0 || det.Confidence > 1 {
		return nil, fmt.Errorf("orchestrator: confidence %v outside [0, 1]", det.Confidence)
	}
	if det.PestType == "" {
		det.PestType = "unknown"
	}
	if det.Source == "" {
		det.Source = "api"
	}

	tier, actions := s.policy.Respond(det.Confidence)

	record := &history.Detection{
		ID:         "det-" + uuid.NewString()[:8],
		PestType:   det.PestType,
		Confidence: det.Confidence,
		Tier:       string(tier),
		Source:     det.Source,
	}
	if s.repo != nil {
		if err := s.repo.RecordDetection(ctx, record); err != nil {
			s.logger.Error("recording detection failed", "error", err)
		}
	}

	resp := &Response{DetectionID: record.ID, Tier: tier}
	for _, action := range actions {
		if err := s.dispatcher.Submit(action); err != nil {
			resp.Dropped++
			s.logger.Warn("response action dropped", "kind", action.Kind(), "error", err)
			continue
		}
		resp.Queued++
	}

	s.logger.Info("detection handled",
		"pest", det.PestType,
		"confidence", det.Confidence,
		"location", det.Location,
		"tier", tier,
		"queued", resp.Queued,
	)
	s.emit(Event{Type: "detection", Data: record})

	return resp, nil
}

// SubmitAction queues a single action directly, bypassing the risk
// policy. Used by the manual action API.
func (s *System) SubmitAction(action dispatch.Action) error {
	return s.dispatcher.Submit(action)
}

// EmergencyStop queues an emergency shutdown. Actions already queued
// execute first; the shutdown then deactivates every relay and halts
// the dispatcher.
func (s *System) EmergencyStop() error {
	return s.dispatcher.Submit(dispatch.EmergencyShutdown{})
}

// MoveStepper forwards to the motion controller.
func (s *System) MoveStepper(ctx context.Context, steps int) error {
	return s.motion.MoveStepper(ctx, steps)
}

// Status returns a snapshot of the rig.
func (s *System) Status() Status {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()

	return Status{
		SiteID:        s.cfg.Site.ID,
		Running:       running,
		Relays:        s.bank.AllStates(),
		QueueDepth:    s.queue.Len(),
		Sensors:       s.hub.SnapshotAll(),
		StepperMoving: s.motion.IsMoving(),
		Position:      s.motion.Position(),
		Timestamp:     time.Now().UTC(),
	}
}

// Running reports whether the system is up.
func (s *System) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Sensors exposes the sensor hub for the API layer.
func (s *System) Sensors() *sensor.Hub {
	return s.hub
}

// wireObservers connects component callbacks to the history store,
// telemetry, broker and broadcaster.
func (s *System) wireObservers() {
	s.bank.SetOnChange(func(channel int, active bool) {
		if s.telemetry != nil {
			s.telemetry.WriteRelayState(channel, active)
		}
		if s.broker != nil {
			payload, _ := json.Marshal(map[string]any{
				"channel":   channel,
				"active":    active,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			if err := s.broker.PublishRetained(mqtt.Topics{}.ActuatorState(channel), payload); err != nil {
				s.logger.Warn("actuator state publish failed", "channel", channel, "error", err)
			}
		}
		s.emit(Event{Type: "relay", Data: map[string]any{"channel": channel, "active": active}})
	})

	s.hub.SetOnReading(func(r sensor.Reading) {
		if s.telemetry != nil && r.Status == sensor.StatusOK && r.Value != nil {
			s.telemetry.WriteSensorReading(r.SensorID, r.Type, r.Unit, *r.Value, r.Timestamp)
		}
		if s.broker != nil {
			payload, _ := json.Marshal(r)
			if err := s.broker.PublishRetained(mqtt.Topics{}.SensorState(r.SensorID), payload); err != nil {
				s.logger.Warn("sensor state publish failed", "sensor", r.SensorID, "error", err)
			}
		}
		s.emit(Event{Type: "reading", Data: r})
	})

	s.dispatcher.SetOnExecuted(func(rec dispatch.ExecutionRecord) {
		if s.repo != nil {
			exec := &history.Execution{
				ID:         rec.ID,
				Kind:       rec.Kind,
				Detail:     rec.Detail,
				Status:     rec.Status,
				Error:      rec.Error,
				ExecutedAt: rec.ExecutedAt,
				Elapsed:    rec.Elapsed,
			}
			ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			if err := s.repo.RecordExecution(ctx, exec); err != nil {
				s.logger.Error("recording execution failed", "id", rec.ID, "error", err)
			}
			cancel()
		}
		if s.telemetry != nil {
			s.telemetry.WriteActionMetric(rec.Kind, rec.Status, rec.Elapsed)
		}
		if s.broker != nil {
			payload, _ := json.Marshal(rec)
			if err := s.broker.PublishEvent(mqtt.Topics{}.ActionExecuted(), payload); err != nil {
				s.logger.Warn("action event publish failed", "id", rec.ID, "error", err)
			}
		}
		s.emit(Event{Type: "action", Data: rec})
	})

	s.dispatcher.SetOnHalt(s.haltFromEmergency)
}

// haltFromEmergency runs after the dispatcher worker has deactivated
// the relays and exited. It stops the rest of the rig without touching
// the dispatcher, which is already down.
func (s *System) haltFromEmergency() {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if !running {
		return
	}

	if err := s.hub.StopAll(stopTimeout); err != nil && !errors.Is(err, sensor.ErrNotRunning) {
		s.logger.Warn("sensor hub stop after emergency", "error", err)
	}

	// Flip the flag only once the hub is down, so a Start() issued
	// right after observing the halt finds every component stopped.
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Warn("system halted by emergency shutdown")
	s.emit(Event{Type: "emergency", Data: map[string]any{"halted": true}})
}

// handleDetectionMessage parses an inbound MQTT detection and triggers
// the response pipeline.
func (s *System) handleDetectionMessage(topic string, payload []byte) error {
	var det Detection
	if err := json.Unmarshal(payload, &det); err != nil {
		return fmt.Errorf("parsing detection payload: %w", err)
	}
	if det.Source == "" {
		det.Source = "mqtt"
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	_, err := s.TriggerResponse(ctx, det)
	return err
}

func (s *System) emit(event Event) {
	if s.broadcast != nil {
		s.broadcast(event)
	}
}
