package actuator

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger is the minimal logging interface the actuator package needs.
// The infrastructure logger satisfies it; tests can inject their own.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ChangeFunc is invoked after a relay state transition commits.
// Called outside the bank's lock, so under rapid concurrent
// transitions of one channel notifications may arrive out of order
// relative to the committed states. Consumers that need the current
// state must read it back via State rather than trust the callback
// arguments; the rig's observers treat notifications as hints and the
// retained MQTT state is eventually consistent. Implementations must
// not call back into the bank synchronously from the same goroutine
// if they need consistency with the notified state.
type ChangeFunc func(channel int, active bool)

// Bank manages a fixed set of relay channels.
//
// Each channel is either active or inactive. Activation may carry a
// duration, in which case an auto-off timer deactivates the channel
// when it expires. Timers are not cancelled by a later activation of
// the same channel: re-activating channel 3 for 60s while a 10s timer
// is pending still switches the relay off when the 10s timer fires.
// Callers that need precise windows must sequence their own commands.
//
// Thread Safety: all methods are safe for concurrent use.
type Bank struct {
	mu       sync.RWMutex
	states   map[int]bool
	pins     Pins
	closed   bool
	logger   Logger
	onChange ChangeFunc
}

// NewBank initialises a relay bank over the given channels.
//
// Parameters:
//   - channels: the relay channel identifiers to manage. Must be non-empty.
//   - pins: the pin driver. Pass NewSimulatedPins() when no hardware is attached.
//
// Returns:
//   - *Bank: the initialised bank with every channel inactive.
//   - error: ErrSetupFailed if the pin driver rejects the channel set.
func NewBank(channels []int, pins Pins) (*Bank, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("%w: no channels configured", ErrSetupFailed)
	}

	if err := pins.Setup(channels); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSetupFailed, err)
	}

	states := make(map[int]bool, len(channels))
	for _, ch := range channels {
		states[ch] = false
	}

	return &Bank{
		states: states,
		pins:   pins,
		logger: noopLogger{},
	}, nil
}

// SetLogger attaches a logger. Must be called before concurrent use.
func (b *Bank) SetLogger(logger Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// SetOnChange registers an observer for relay state transitions.
// Must be called before concurrent use.
func (b *Bank) SetOnChange(fn ChangeFunc) {
	b.onChange = fn
}

// Activate switches a relay on.
//
// A positive duration schedules an auto-off timer that deactivates the
// channel after the duration elapses. A zero duration leaves the relay
// on until an explicit Deactivate. Activating an already-active channel
// is permitted and schedules an additional timer if a duration is given.
//
// Returns ErrInvalidChannel for unknown channels and ErrBankClosed
// after ShutdownAll.
func (b *Bank) Activate(channel int, duration time.Duration) error {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return ErrBankClosed
	}
	if _, ok := b.states[channel]; !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}

	if err := b.pins.Set(channel, true); err != nil {
		b.mu.Unlock()
		return fmt.Errorf("actuator: activate channel %d: %w", channel, err)
	}
	b.states[channel] = true
	b.mu.Unlock()

	b.logger.Info("relay activated", "channel", channel, "duration_ms", duration.Milliseconds())
	b.notify(channel, true)

	if duration > 0 {
		time.AfterFunc(duration, func() {
			if err := b.Deactivate(channel); err != nil {
				b.logger.Warn("auto-off failed", "channel", channel, "error", err)
			} else {
				b.logger.Debug("auto-off fired", "channel", channel)
			}
		})
	}

	return nil
}

// Deactivate switches a relay off.
//
// Deactivating an inactive channel is a no-op and returns nil, so
// auto-off timers and explicit commands can race harmlessly.
//
// Returns ErrInvalidChannel for unknown channels and ErrBankClosed
// after ShutdownAll.
func (b *Bank) Deactivate(channel int) error {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return ErrBankClosed
	}
	if _, ok := b.states[channel]; !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}
	if !b.states[channel] {
		b.mu.Unlock()
		return nil
	}

	if err := b.pins.Set(channel, false); err != nil {
		b.mu.Unlock()
		return fmt.Errorf("actuator: deactivate channel %d: %w", channel, err)
	}
	b.states[channel] = false
	b.mu.Unlock()

	b.logger.Info("relay deactivated", "channel", channel)
	b.notify(channel, false)

	return nil
}

// State reports whether a channel is active.
func (b *Bank) State(channel int) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	active, ok := b.states[channel]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}
	return active, nil
}

// AllStates returns a snapshot of every channel's state.
func (b *Bank) AllStates() map[int]bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snapshot := make(map[int]bool, len(b.states))
	for ch, active := range b.states {
		snapshot[ch] = active
	}
	return snapshot
}

// Channels returns the managed channel identifiers in ascending order.
func (b *Bank) Channels() []int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	channels := make([]int, 0, len(b.states))
	for ch := range b.states {
		channels = append(channels, ch)
	}
	sort.Ints(channels)
	return channels
}

// DeactivateAll switches every channel off without closing the bank,
// so the rig can be started again afterwards. Used by the emergency
// shutdown path and by system stop.
func (b *Bank) DeactivateAll() error {
	b.mu.RLock()
	channels := make([]int, 0, len(b.states))
	for ch := range b.states {
		channels = append(channels, ch)
	}
	b.mu.RUnlock()
	sort.Ints(channels)

	var firstErr error
	for _, ch := range channels {
		if err := b.Deactivate(ch); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ShutdownAll deactivates every channel and releases the pin driver.
//
// After shutdown the bank rejects all commands with ErrBankClosed.
// Pending auto-off timers may still fire; their Deactivate calls
// return ErrBankClosed and are logged at warn level.
func (b *Bank) ShutdownAll() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBankClosed
	}
	b.closed = true

	var firstErr error
	for ch, active := range b.states {
		if !active {
			continue
		}
		if err := b.pins.Set(ch, false); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("actuator: shutdown channel %d: %w", ch, err)
			}
			continue
		}
		b.states[ch] = false
	}

	if err := b.pins.Release(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("actuator: release pins: %w", err)
	}

	b.logger.Info("relay bank shut down", "channels", len(b.states))
	return firstErr
}

func (b *Bank) notify(channel int, active bool) {
	if b.onChange != nil {
		b.onChange(channel, active)
	}
}
