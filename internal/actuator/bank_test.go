package actuator

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// failingPins rejects Set calls after setup, to exercise driver errors.
type failingPins struct {
	failSetup bool
	failSet   bool
}

func (p *failingPins) Setup([]int) error {
	if p.failSetup {
		return errors.New("setup boom")
	}
	return nil
}

func (p *failingPins) Set(int, bool) error {
	if p.failSet {
		return errors.New("set boom")
	}
	return nil
}

func (p *failingPins) Release() error { return nil }

func newTestBank(t *testing.T, channels ...int) *Bank {
	t.Helper()
	if len(channels) == 0 {
		channels = []int{0, 1, 2, 3}
	}
	bank, err := NewBank(channels, NewSimulatedPins())
	if err != nil {
		t.Fatalf("NewBank failed: %v", err)
	}
	return bank
}

// ─── Construction ───────────────────────────────────────────────────────────

func TestNewBank_EmptyChannels(t *testing.T) {
	_, err := NewBank(nil, NewSimulatedPins())
	if !errors.Is(err, ErrSetupFailed) {
		t.Errorf("expected ErrSetupFailed, got %v", err)
	}
}

func TestNewBank_SetupFailure(t *testing.T) {
	_, err := NewBank([]int{0}, &failingPins{failSetup: true})
	if !errors.Is(err, ErrSetupFailed) {
		t.Errorf("expected ErrSetupFailed, got %v", err)
	}
}

func TestNewBank_AllChannelsInactive(t *testing.T) {
	bank := newTestBank(t)
	for ch, active := range bank.AllStates() {
		if active {
			t.Errorf("channel %d active after init", ch)
		}
	}
}

// ─── Activate / Deactivate ──────────────────────────────────────────────────

func TestBank_ActivateDeactivate(t *testing.T) {
	bank := newTestBank(t)

	if err := bank.Activate(2, 0); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if active, _ := bank.State(2); !active {
		t.Error("channel 2 not active after Activate")
	}

	if err := bank.Deactivate(2); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}
	if active, _ := bank.State(2); active {
		t.Error("channel 2 still active after Deactivate")
	}
}

func TestBank_InvalidChannel(t *testing.T) {
	bank := newTestBank(t)

	if err := bank.Activate(99, 0); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("Activate: expected ErrInvalidChannel, got %v", err)
	}
	if err := bank.Deactivate(99); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("Deactivate: expected ErrInvalidChannel, got %v", err)
	}
	if _, err := bank.State(99); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("State: expected ErrInvalidChannel, got %v", err)
	}
}

func TestBank_DeactivateIdempotent(t *testing.T) {
	bank := newTestBank(t)

	if err := bank.Deactivate(0); err != nil {
		t.Errorf("deactivating inactive channel: %v", err)
	}
	if err := bank.Deactivate(0); err != nil {
		t.Errorf("second deactivate: %v", err)
	}
}

func TestBank_ActivateSetFailure(t *testing.T) {
	pins := &failingPins{}
	bank, err := NewBank([]int{0}, pins)
	if err != nil {
		t.Fatalf("NewBank failed: %v", err)
	}

	pins.failSet = true
	if err := bank.Activate(0, 0); err == nil {
		t.Error("expected error when pin driver fails")
	}
	if active, _ := bank.State(0); active {
		t.Error("state flipped despite driver failure")
	}
}

// ─── Auto-off timers ────────────────────────────────────────────────────────

func TestBank_AutoOff(t *testing.T) {
	bank := newTestBank(t)

	if err := bank.Activate(1, 30*time.Millisecond); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if active, _ := bank.State(1); !active {
		t.Fatal("channel 1 not active")
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		if active, _ := bank.State(1); !active {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("auto-off never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBank_ReactivationDoesNotCancelTimer(t *testing.T) {
	bank := newTestBank(t)

	if err := bank.Activate(1, 20*time.Millisecond); err != nil {
		t.Fatalf("first Activate failed: %v", err)
	}
	// Re-activate with a much longer window; the first timer still fires.
	if err := bank.Activate(1, time.Hour); err != nil {
		t.Fatalf("second Activate failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if active, _ := bank.State(1); active {
		t.Error("first auto-off timer should have deactivated the channel")
	}
}

// ─── Shutdown ───────────────────────────────────────────────────────────────

func TestBank_DeactivateAll(t *testing.T) {
	bank := newTestBank(t)

	if err := bank.Activate(0, 0); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if err := bank.Activate(2, 0); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	if err := bank.DeactivateAll(); err != nil {
		t.Fatalf("DeactivateAll failed: %v", err)
	}
	for ch, active := range bank.AllStates() {
		if active {
			t.Errorf("channel %d active after DeactivateAll", ch)
		}
	}

	// Unlike ShutdownAll, the bank stays usable.
	if err := bank.Activate(0, 0); err != nil {
		t.Errorf("Activate after DeactivateAll failed: %v", err)
	}
}

func TestBank_ShutdownAll(t *testing.T) {
	bank := newTestBank(t)

	if err := bank.Activate(0, 0); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if err := bank.Activate(3, 0); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	if err := bank.ShutdownAll(); err != nil {
		t.Fatalf("ShutdownAll failed: %v", err)
	}
	for ch, active := range bank.AllStates() {
		if active {
			t.Errorf("channel %d active after shutdown", ch)
		}
	}

	if err := bank.Activate(0, 0); !errors.Is(err, ErrBankClosed) {
		t.Errorf("Activate after shutdown: expected ErrBankClosed, got %v", err)
	}
	if err := bank.ShutdownAll(); !errors.Is(err, ErrBankClosed) {
		t.Errorf("second ShutdownAll: expected ErrBankClosed, got %v", err)
	}
}

// ─── Observers and snapshots ────────────────────────────────────────────────

func TestBank_OnChange(t *testing.T) {
	bank := newTestBank(t)

	var (
		mu     sync.Mutex
		events []bool
	)
	bank.SetOnChange(func(channel int, active bool) {
		mu.Lock()
		defer mu.Unlock()
		if channel == 2 {
			events = append(events, active)
		}
	})

	if err := bank.Activate(2, 0); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if err := bank.Deactivate(2); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || !events[0] || events[1] {
		t.Errorf("expected [true false] transitions, got %v", events)
	}
}

func TestBank_Channels(t *testing.T) {
	bank := newTestBank(t, 3, 0, 2, 1)

	got := bank.Channels()
	want := []int{0, 1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
			break
		}
	}
}

func TestBank_AllStatesIsSnapshot(t *testing.T) {
	bank := newTestBank(t)

	snapshot := bank.AllStates()
	snapshot[0] = true

	if active, _ := bank.State(0); active {
		t.Error("mutating the snapshot leaked into the bank")
	}
}
