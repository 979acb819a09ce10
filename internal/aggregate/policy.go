package aggregate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NormalizationMinMax rescales durations into [0,1] across the entry set
// before they enter the composite score.
const NormalizationMinMax = "minmax"

// Policy controls how the composite leaderboard score weighs quality
// against speed:
//
//	composite = quality_weight*passrate + speed_weight*(1 - norm(duration))
//
// Both components live in [0,1], so the composite does too as long as the
// weights sum to 1.
type Policy struct {
	QualityWeight float64 `yaml:"quality_weight"`
	SpeedWeight   float64 `yaml:"speed_weight"`
	Normalization string  `yaml:"normalization"`
}

func DefaultPolicy() Policy {
	return Policy{
		QualityWeight: 0.7,
		SpeedWeight:   0.3,
		Normalization: NormalizationMinMax,
	}
}

// LoadPolicy reads a YAML policy file. Fields left unset fall back to the
// defaults, so a file naming only quality_weight is rejected rather than
// silently unbalanced.
func LoadPolicy(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	policy := DefaultPolicy()
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return Policy{}, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if err := policy.Validate(); err != nil {
		return Policy{}, fmt.Errorf("policy file %s: %w", path, err)
	}
	return policy, nil
}

func (p Policy) Validate() error {
	if p.QualityWeight < 0 || p.SpeedWeight < 0 {
		return fmt.Errorf("weights must be non-negative, got quality=%v speed=%v", p.QualityWeight, p.SpeedWeight)
	}
	sum := p.QualityWeight + p.SpeedWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("weights must sum to 1, got %v", sum)
	}
	if p.Normalization != NormalizationMinMax {
		return fmt.Errorf("unknown normalization %q", p.Normalization)
	}
	return nil
}
