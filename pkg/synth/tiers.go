package synth

import (
	"fmt"

	"github.com/zen-systems/drrepo/pkg/workflow"
)

// Band maps scores at or above Min to Tier.
type Band struct {
	Min  int
	Tier workflow.Tier
}

// Tiers is a descending band table ending at 0.
type Tiers []Band

// DefaultTiers returns Excellent (80+), Good (60+), Needs Improvement (40+)
// and Poor.
func DefaultTiers() Tiers {
	return Tiers{
		{80, workflow.TierExcellent},
		{60, workflow.TierGood},
		{40, workflow.TierNeedsImprovement},
		{0, workflow.TierPoor},
	}
}

func (t Tiers) validate() error {
	if len(t) == 0 {
		return fmt.Errorf("tier table is empty")
	}
	if t[0].Min > 100 {
		return fmt.Errorf("highest tier starts above 100")
	}
	for i := 1; i < len(t); i++ {
		if t[i].Min >= t[i-1].Min {
			return fmt.Errorf("tier %q must start below %q", t[i].Tier, t[i-1].Tier)
		}
	}
	if t[len(t)-1].Min != 0 {
		return fmt.Errorf("lowest tier must start at 0")
	}
	return nil
}

// Lookup returns the band for score. Scores are clamped to [0, 100] first,
// so a validated table covers every input.
func (t Tiers) Lookup(score int) workflow.Tier {
	score = clamp(score, 0, 100)
	for _, b := range t {
		if score >= b.Min {
			return b.Tier
		}
	}
	return t[len(t)-1].Tier
}
