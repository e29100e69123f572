package actuator

import (
	"fmt"
	"sync"
)

// Pins abstracts the relay pin driver.
//
// Real GPIO control is out of scope for the core; the production build
// would supply a hardware-backed implementation here. The simulated
// driver below is the default and is also what the tests exercise.
type Pins interface {
	// Setup prepares every listed channel for output.
	Setup(channels []int) error

	// Set drives a channel. Relay boards are active-low, so an
	// implementation maps active=true to a low pin level.
	Set(channel int, active bool) error

	// Release frees the underlying pin resources. Set fails afterwards.
	Release() error
}

// SimulatedPins is an in-memory Pins implementation.
//
// It tracks pin levels so tests and development rigs can observe the
// exact sequence of driver calls without hardware attached.
type SimulatedPins struct {
	mu       sync.Mutex
	levels   map[int]bool // channel -> active
	released bool
}

// NewSimulatedPins creates a simulated pin driver.
func NewSimulatedPins() *SimulatedPins {
	return &SimulatedPins{}
}

// Setup implements Pins.
func (p *SimulatedPins) Setup(channels []int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return fmt.Errorf("simulated pins: already released")
	}

	p.levels = make(map[int]bool, len(channels))
	for _, ch := range channels {
		p.levels[ch] = false
	}
	return nil
}

// Set implements Pins.
func (p *SimulatedPins) Set(channel int, active bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return fmt.Errorf("simulated pins: released")
	}
	if _, ok := p.levels[channel]; !ok {
		return fmt.Errorf("simulated pins: channel %d not set up", channel)
	}

	p.levels[channel] = active
	return nil
}

// Release implements Pins.
func (p *SimulatedPins) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.released = true
	p.levels = nil
	return nil
}

// Level reports the current driven level for a channel.
// Returns false for unknown channels. Intended for tests.
func (p *SimulatedPins) Level(channel int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.levels[channel]
}
