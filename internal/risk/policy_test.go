package risk

import (
	"testing"
	"time"

	"github.com/verdantlabs/pestguard-core/internal/dispatch"
)

func newTestPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := NewPolicy(0.8, 0.5, 0.3)
	if err != nil {
		t.Fatalf("NewPolicy failed: %v", err)
	}
	return p
}

func TestNewPolicy_Validation(t *testing.T) {
	tests := []struct {
		name              string
		high, medium, low float64
		wantErr           bool
	}{
		{"default thresholds", 0.8, 0.5, 0.3, false},
		{"equal thresholds", 0.5, 0.5, 0.5, false},
		{"medium above high", 0.4, 0.5, 0.3, true},
		{"low above medium", 0.8, 0.3, 0.5, true},
		{"above one", 1.2, 0.5, 0.3, true},
		{"negative", 0.8, 0.5, -0.1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPolicy(tt.high, tt.medium, tt.low)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewPolicy(%v, %v, %v) error = %v, wantErr %v",
					tt.high, tt.medium, tt.low, err, tt.wantErr)
			}
		})
	}
}

func TestPolicy_Classify(t *testing.T) {
	p := newTestPolicy(t)

	tests := []struct {
		confidence float64
		want       Tier
	}{
		{1.0, TierHigh},
		{0.8, TierHigh}, // inclusive boundary
		{0.79, TierMedium},
		{0.5, TierMedium},
		{0.49, TierLow},
		{0.3, TierLow},
		{0.29, TierLow}, // below every threshold is still low
		{0.0, TierLow},
	}

	for _, tt := range tests {
		if got := p.Classify(tt.confidence); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.confidence, got, tt.want)
		}
	}
}

func TestPolicy_ClassifyMonotonic(t *testing.T) {
	p := newTestPolicy(t)

	rank := map[Tier]int{TierLow: 1, TierMedium: 2, TierHigh: 3}

	prev := TierLow
	for c := 0.0; c <= 1.0; c += 0.01 {
		tier := p.Classify(c)
		if rank[tier] < rank[prev] {
			t.Fatalf("tier regressed from %v to %v at confidence %v", prev, tier, c)
		}
		prev = tier
	}
}

func TestPolicy_ActionsFor(t *testing.T) {
	p := newTestPolicy(t)

	high := p.ActionsFor(TierHigh)
	if len(high) != 2 {
		t.Fatalf("expected 2 high-tier actions, got %d", len(high))
	}
	if spray, ok := high[0].(dispatch.SprayPesticide); !ok || spray.Duration != 10*time.Second {
		t.Errorf("unexpected first high action: %+v", high[0])
	}
	if trap, ok := high[1].(dispatch.ActivateTrap); !ok || trap.Duration != 60*time.Second {
		t.Errorf("unexpected second high action: %+v", high[1])
	}

	medium := p.ActionsFor(TierMedium)
	if len(medium) != 2 {
		t.Fatalf("expected 2 medium-tier actions, got %d", len(medium))
	}
	if spray, ok := medium[0].(dispatch.SprayPesticide); !ok || spray.Duration != 5*time.Second {
		t.Errorf("unexpected first medium action: %+v", medium[0])
	}
	if trap, ok := medium[1].(dispatch.ActivateTrap); !ok || trap.Duration != 30*time.Second {
		t.Errorf("unexpected second medium action: %+v", medium[1])
	}

	low := p.ActionsFor(TierLow)
	if len(low) != 1 {
		t.Fatalf("expected 1 low-tier action, got %d", len(low))
	}
	if trap, ok := low[0].(dispatch.ActivateTrap); !ok || trap.Duration != 15*time.Second {
		t.Errorf("unexpected low action: %+v", low[0])
	}

	if unknown := p.ActionsFor(Tier("critical")); unknown != nil {
		t.Errorf("expected no actions for an unrecognised tier, got %v", unknown)
	}
}

func TestPolicy_Respond(t *testing.T) {
	p := newTestPolicy(t)

	tier, actions := p.Respond(0.95)
	if tier != TierHigh || len(actions) != 2 {
		t.Errorf("Respond(0.95) = (%v, %d actions)", tier, len(actions))
	}

	// Any confidence below the medium threshold still queues the
	// low-tier bundle.
	tier, actions = p.Respond(0.2)
	if tier != TierLow {
		t.Fatalf("Respond(0.2) tier = %v, want %v", tier, TierLow)
	}
	if len(actions) != 1 {
		t.Fatalf("Respond(0.2) queued %d actions, want 1", len(actions))
	}
	if trap, ok := actions[0].(dispatch.ActivateTrap); !ok || trap.Duration != 15*time.Second {
		t.Errorf("Respond(0.2) action = %+v, want activate trap for 15s", actions[0])
	}
}
