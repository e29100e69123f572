package risk

import (
	"fmt"
	"time"

	"github.com/verdantlabs/pestguard-core/internal/dispatch"
)

// Tier is the classified severity of a detection.
type Tier string

// Tiers in descending severity. Low is the catch-all: every detection
// gets at least the low-tier response.
const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Policy maps detection confidence to a response tier and each tier to
// a fixed action bundle. Thresholds are inclusive lower bounds and must
// satisfy high >= medium >= low; configuration validation enforces it.
// The low threshold orders the configuration but does not gate the
// response: low is the catch-all tier.
type Policy struct {
	high   float64
	medium float64
	low    float64
}

// NewPolicy creates a policy with the given confidence thresholds.
func NewPolicy(high, medium, low float64) (*Policy, error) {
	if high < medium || medium < low {
		return nil, fmt.Errorf("risk: thresholds must be ordered high >= medium >= low, got %.2f/%.2f/%.2f", high, medium, low)
	}
	for _, v := range []float64{high, medium, low} {
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("risk: threshold %.2f outside [0, 1]", v)
		}
	}
	return &Policy{high: high, medium: medium, low: low}, nil
}

// Classify maps a detection confidence to a tier. Higher confidence
// never yields a less severe tier; anything below the medium threshold
// is low.
func (p *Policy) Classify(confidence float64) Tier {
	switch {
	case confidence >= p.high:
		return TierHigh
	case confidence >= p.medium:
		return TierMedium
	default:
		return TierLow
	}
}

// ActionsFor returns the response bundle for a tier, in execution
// order. An unrecognised tier yields no actions.
func (p *Policy) ActionsFor(tier Tier) []dispatch.Action {
	switch tier {
	case TierHigh:
		return []dispatch.Action{
			dispatch.SprayPesticide{Duration: 10 * time.Second},
			dispatch.ActivateTrap{Duration: 60 * time.Second},
		}
	case TierMedium:
		return []dispatch.Action{
			dispatch.SprayPesticide{Duration: 5 * time.Second},
			dispatch.ActivateTrap{Duration: 30 * time.Second},
		}
	case TierLow:
		return []dispatch.Action{
			dispatch.ActivateTrap{Duration: 15 * time.Second},
		}
	default:
		return nil
	}
}

// Respond classifies a confidence and returns the tier with its bundle.
func (p *Policy) Respond(confidence float64) (Tier, []dispatch.Action) {
	tier := p.Classify(confidence)
	return tier, p.ActionsFor(tier)
}
