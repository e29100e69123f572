package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Execution statuses recorded per action.
const (
	ExecCompleted = "completed"
	ExecFailed    = "failed"
)

// Logger is the minimal logging interface the dispatch package needs.
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

// Relays is the slice of the relay bank the dispatcher drives.
type Relays interface {
	Activate(channel int, duration time.Duration) error
	DeactivateAll() error
}

// Mover is the slice of the motion controller the dispatcher drives.
type Mover interface {
	MoveServo(id string, angle int) error
}

// Roles maps action kinds to relay channels.
type Roles struct {
	Pump int
	Trap int
}

// ExecutionRecord captures the outcome of one dispatched action.
type ExecutionRecord struct {
	ID         string        `json:"id"`
	Kind       string        `json:"kind"`
	Detail     string        `json:"detail"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	ExecutedAt time.Time     `json:"executed_at"`
	Elapsed    time.Duration `json:"elapsed"`
}

// ExecutedFunc observes every execution outcome. Called from the
// worker goroutine; implementations must return promptly.
type ExecutedFunc func(ExecutionRecord)

// HaltFunc is invoked on its own goroutine after an emergency shutdown
// has deactivated the relays and the worker has exited, so the owner
// can stop the rest of the system without deadlocking the worker.
type HaltFunc func()

// Dispatcher drains the action queue on a single worker goroutine, so
// physical actions never overlap. Failures are contained per action:
// a relay or servo error is logged and recorded, and the worker moves
// on to the next action.
//
// Thread Safety: all methods are safe for concurrent use.
type Dispatcher struct {
	queue       *Queue
	relays      Relays
	mover       Mover
	roles       Roles
	cameraServo string

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	logger     Logger
	onExecuted ExecutedFunc
	onHalt     HaltFunc
}

// NewDispatcher initialises a dispatcher over the given hardware slices.
//
// Parameters:
//   - queue: the shared action queue.
//   - relays: the relay bank.
//   - mover: the motion controller. May be nil on rigs without servos;
//     camera actions then fail and are recorded as such.
//   - roles: relay channel assignments for the pump and trap.
//   - cameraServo: servo id targeted by camera actions.
func NewDispatcher(queue *Queue, relays Relays, mover Mover, roles Roles, cameraServo string) *Dispatcher {
	return &Dispatcher{
		queue:       queue,
		relays:      relays,
		mover:       mover,
		roles:       roles,
		cameraServo: cameraServo,
		logger:      noopLogger{},
	}
}

// SetLogger attaches a logger. Must be called before Start.
func (d *Dispatcher) SetLogger(logger Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// SetOnExecuted registers an observer for execution outcomes.
// Must be called before Start.
func (d *Dispatcher) SetOnExecuted(fn ExecutedFunc) {
	d.onExecuted = fn
}

// SetOnHalt registers the emergency halt callback.
// Must be called before Start.
func (d *Dispatcher) SetOnHalt(fn HaltFunc) {
	d.onHalt = fn
}

// Start launches the worker goroutine.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("dispatch: already running")
	}
	d.running = true
	d.stop = make(chan struct{})
	d.done = make(chan struct{})

	go d.work(d.stop, d.done)

	d.logger.Info("dispatcher started", "queue_capacity", cap(d.queue.items))
	return nil
}

// Submit enqueues an action for execution.
//
// Returns ErrStopped after shutdown and ErrQueueFull when the backlog
// is at capacity. Never blocks.
func (d *Dispatcher) Submit(action Action) error {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()

	if !running {
		return ErrStopped
	}

	if err := d.queue.Enqueue(action); err != nil {
		d.logger.Warn("action dropped", "kind", action.Kind(), "error", err)
		return err
	}

	d.logger.Debug("action queued", "kind", action.Kind(), "pending", d.queue.Len())
	return nil
}

// Pending returns the number of queued actions.
func (d *Dispatcher) Pending() int {
	return d.queue.Len()
}

// Running reports whether the worker is accepting actions.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Stop signals the worker to exit and waits up to timeout for the
// action in flight to finish. Queued actions are discarded.
func (d *Dispatcher) Stop(timeout time.Duration) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return ErrStopped
	}
	d.running = false
	close(d.stop)
	done := d.done
	d.mu.Unlock()

	select {
	case <-done:
		d.logger.Info("dispatcher stopped", "discarded", d.queue.Len())
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("dispatch: stop timed out after %s", timeout)
	}
}

func (d *Dispatcher) work(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		case action := <-d.queue.Wait():
			halt := d.execute(action)
			if halt {
				d.mu.Lock()
				d.running = false
				d.mu.Unlock()

				if d.onHalt != nil {
					go d.onHalt()
				}
				return
			}
		}
	}
}

// execute runs one action and reports whether the worker must halt.
func (d *Dispatcher) execute(action Action) bool {
	start := time.Now().UTC()

	record := ExecutionRecord{
		ID:         "act-" + uuid.NewString()[:8],
		Kind:       action.Kind(),
		Detail:     action.Describe(),
		Status:     ExecCompleted,
		ExecutedAt: start,
	}

	var (
		err  error
		halt bool
	)

	switch a := action.(type) {
	case SprayPesticide:
		err = d.relays.Activate(d.roles.Pump, a.Duration)
	case ActivateTrap:
		err = d.relays.Activate(d.roles.Trap, a.Duration)
	case AdjustCamera:
		if d.mover == nil {
			err = fmt.Errorf("dispatch: no motion controller configured")
		} else {
			err = d.mover.MoveServo(d.cameraServo, a.Angle)
		}
	case EmergencyShutdown:
		err = d.relays.DeactivateAll()
		halt = true
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownActionKind, action)
	}

	record.Elapsed = time.Since(start)
	if err != nil {
		record.Status = ExecFailed
		record.Error = err.Error()
		d.logger.Error("action failed", "id", record.ID, "kind", record.Kind, "error", err)
	} else {
		d.logger.Info("action executed", "id", record.ID, "kind", record.Kind, "detail", record.Detail)
	}

	if d.onExecuted != nil {
		d.onExecuted(record)
	}

	return halt
}
