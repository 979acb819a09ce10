package result

import (
	"testing"
	"time"
)

func ptrFloat64(v float64) *float64 { return &v }

func TestPassrate_Explicit(t *testing.T) {
	rec := Record{
		ResultData: ResultData{
			Implementations: Implementations{
				API: &APIImplementation{
					Acceptance: Acceptance{PassCount: 1, FailCount: 9, Passrate: ptrFloat64(0.9)},
				},
			},
		},
	}
	got, ok := rec.Passrate()
	if !ok {
		t.Fatalf("Passrate() not derivable")
	}
	if got != 0.9 {
		t.Fatalf("Passrate()=%v, want 0.9 (explicit rate wins over counts)", got)
	}
}

func TestPassrate_FallbackFromCounts(t *testing.T) {
	rec := Record{
		ResultData: ResultData{
			Implementations: Implementations{
				API: &APIImplementation{
					Acceptance: Acceptance{PassCount: 3, FailCount: 1},
				},
			},
		},
	}
	got, ok := rec.Passrate()
	if !ok {
		t.Fatalf("Passrate() not derivable")
	}
	if got != 0.75 {
		t.Fatalf("Passrate()=%v, want 0.75", got)
	}
}

func TestPassrate_NoAPIImplementation(t *testing.T) {
	rec := Record{}
	if _, ok := rec.Passrate(); ok {
		t.Fatalf("Passrate() should not derive without api implementation")
	}
}

func TestParseTimestamp(t *testing.T) {
	got, err := ParseTimestamp("2025-01-15T10:30:00.000Z")
	if err != nil {
		t.Fatalf("ParseTimestamp() err=%v", err)
	}
	want := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("ParseTimestamp()=%v, want %v", got, want)
	}

	got, err = ParseTimestamp("2025-01-15T10:30:00Z")
	if err != nil {
		t.Fatalf("ParseTimestamp() without millis err=%v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("ParseTimestamp()=%v, want %v", got, want)
	}

	if _, err := ParseTimestamp("2025-01-15 10:30:00"); err == nil {
		t.Fatalf("ParseTimestamp() expected error for non-ISO input")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rec := &Record{
		SchemaVersion: SchemaVersionCurrent,
		ResultData: ResultData{
			RunIdentity: RunIdentity{
				ToolName:       "codegen",
				ToolVersion:    "1.2.0",
				RunID:          "codegen-a-rest-run1",
				RunNumber:      1,
				TargetModel:    "A",
				APIStyle:       "REST",
				SpecReference:  "spec-v1",
				WorkspacePath:  "/work",
				RunEnvironment: "container",
			},
			Implementations: Implementations{
				API: &APIImplementation{
					GenerationMetrics: GenerationMetrics{
						LLMModel:        "model-x",
						StartTimestamp:  "2025-01-15T10:00:00Z",
						EndTimestamp:    "2025-01-15T10:42:00Z",
						DurationMinutes: 42,
					},
					Acceptance: Acceptance{PassCount: 9, FailCount: 1, Passrate: ptrFloat64(0.9)},
				},
			},
			Submission: Submission{
				SubmittedTimestamp: "2025-01-15T11:00:00.000Z",
				SubmittedBy:        "alice",
				SubmissionMethod:   "automated",
			},
		},
	}

	raw, err := rec.Encode()
	if err != nil {
		t.Fatalf("Encode() err=%v", err)
	}
	back, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() err=%v", err)
	}
	if back.RunID() != "codegen-a-rest-run1" {
		t.Fatalf("RunID()=%q", back.RunID())
	}
	if back.ResultData.Implementations.UI != nil {
		t.Fatalf("UI should stay absent")
	}
	pr, ok := back.Passrate()
	if !ok || pr != 0.9 {
		t.Fatalf("Passrate()=%v ok=%v", pr, ok)
	}
}
