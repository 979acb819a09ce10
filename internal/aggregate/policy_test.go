package aggregate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	return path
}

func TestLoadPolicy(t *testing.T) {
	path := writePolicy(t, "quality_weight: 0.6\nspeed_weight: 0.4\nnormalization: minmax\n")
	policy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if policy.QualityWeight != 0.6 || policy.SpeedWeight != 0.4 {
		t.Fatalf("policy = %+v", policy)
	}
}

func TestLoadPolicyRejectsUnbalancedWeights(t *testing.T) {
	path := writePolicy(t, "quality_weight: 0.9\n")
	if _, err := LoadPolicy(path); err == nil || !strings.Contains(err.Error(), "sum to 1") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadPolicyRejectsUnknownNormalization(t *testing.T) {
	path := writePolicy(t, "quality_weight: 0.7\nspeed_weight: 0.3\nnormalization: zscore\n")
	if _, err := LoadPolicy(path); err == nil || !strings.Contains(err.Error(), "normalization") {
		t.Fatalf("err = %v", err)
	}
}

func TestDefaultPolicyIsValid(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestPolicyRejectsNegativeWeight(t *testing.T) {
	p := Policy{QualityWeight: -0.2, SpeedWeight: 1.2, Normalization: NormalizationMinMax}
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for negative weight")
	}
}
