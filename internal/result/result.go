// Package result defines the benchmark result document model shared by the
// validation, storage, and aggregation stages.
package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	SchemaVersionCurrent     = "3.0"
	SchemaVersionPredecessor = "2.0"
)

// Record is the envelope of one submitted benchmark result.
type Record struct {
	SchemaVersion string     `json:"schema_version"`
	ResultData    ResultData `json:"result_data"`
}

type ResultData struct {
	RunIdentity     RunIdentity     `json:"run_identity"`
	Implementations Implementations `json:"implementations"`
	Submission      Submission      `json:"submission"`

	// Pipeline-appended blocks. Absent on freshly submitted documents.
	Processing          *Processing          `json:"processing,omitempty"`
	StorageMetadata     *StorageMetadata     `json:"storage_metadata,omitempty"`
	ValidationMetadata  *ValidationMetadata  `json:"validation_metadata,omitempty"`
	AggregationMetadata *AggregationMetadata `json:"aggregation_metadata,omitempty"`
}

type RunIdentity struct {
	ToolName       string `json:"tool_name"`
	ToolVersion    string `json:"tool_version"`
	RunID          string `json:"run_id"`
	RunNumber      int    `json:"run_number"`
	TargetModel    string `json:"target_model"`
	APIStyle       string `json:"api_style"`
	SpecReference  string `json:"spec_reference"`
	WorkspacePath  string `json:"workspace_path"`
	RunEnvironment string `json:"run_environment"`
}

type Implementations struct {
	API *APIImplementation `json:"api,omitempty"`
	UI  *UIImplementation  `json:"ui,omitempty"`
}

type APIImplementation struct {
	GenerationMetrics GenerationMetrics `json:"generation_metrics"`
	Acceptance        Acceptance        `json:"acceptance"`
	Artifacts         APIArtifacts      `json:"artifacts"`
	QualityMetrics    *QualityMetrics   `json:"quality_metrics,omitempty"`
	Scores            *Scores           `json:"scores,omitempty"`
}

type UIImplementation struct {
	GenerationMetrics GenerationMetrics `json:"generation_metrics"`
	BuildSuccess      *bool             `json:"build_success,omitempty"`
	Artifacts         UIArtifacts       `json:"artifacts"`
}

type GenerationMetrics struct {
	LLMModel            string    `json:"llm_model"`
	StartTimestamp      string    `json:"start_timestamp"`
	EndTimestamp        string    `json:"end_timestamp"`
	DurationMinutes     float64   `json:"duration_minutes"`
	ClarificationsCount int       `json:"clarifications_count"`
	InterventionsCount  int       `json:"interventions_count"`
	RerunsCount         int       `json:"reruns_count"`
	TestIterationsCount *int      `json:"test_iterations_count,omitempty"`
	TestRuns            []TestRun `json:"test_runs,omitempty"`
	LLMUsage            *LLMUsage `json:"llm_usage,omitempty"`

	// UI generations only.
	BackendChangesRequired *bool `json:"backend_changes_required,omitempty"`
}

type TestRun struct {
	StartTimestamp string   `json:"start_timestamp,omitempty"`
	EndTimestamp   string   `json:"end_timestamp,omitempty"`
	TotalTests     int      `json:"total_tests"`
	Passed         int      `json:"passed"`
	Failed         int      `json:"failed"`
	PassRate       *float64 `json:"pass_rate,omitempty"`
}

type LLMUsage struct {
	InputTokens      *int64   `json:"input_tokens,omitempty"`
	OutputTokens     *int64   `json:"output_tokens,omitempty"`
	TotalTokens      *int64   `json:"total_tokens,omitempty"`
	RequestsCount    *int64   `json:"requests_count,omitempty"`
	EstimatedCostUSD *float64 `json:"estimated_cost_usd,omitempty"`
	UsageSource      string   `json:"usage_source,omitempty"`
}

type Acceptance struct {
	PassCount   int      `json:"pass_count"`
	FailCount   int      `json:"fail_count"`
	NotRunCount int      `json:"not_run_count"`
	Passrate    *float64 `json:"passrate,omitempty"`
}

type APIArtifacts struct {
	ContractArtifactPath string `json:"contract_artifact_path"`
	RunInstructionsPath  string `json:"run_instructions_path"`
}

type UIArtifacts struct {
	UISourcePath     string `json:"ui_source_path"`
	UIRunSummaryPath string `json:"ui_run_summary_path"`
}

type QualityMetrics struct {
	DeterminismCompliance         string   `json:"determinism_compliance,omitempty"`
	OverreachIncidentsCount       *int     `json:"overreach_incidents_count,omitempty"`
	ContractCompletenessPassrate  *float64 `json:"contract_completeness_passrate,omitempty"`
	InstructionsQualityRating     *int     `json:"instructions_quality_rating,omitempty"`
	ReproducibilityRating         string   `json:"reproducibility_rating,omitempty"`
}

type Scores struct {
	CorrectnessC       *float64 `json:"correctness_C,omitempty"`
	ReproducibilityR   *float64 `json:"reproducibility_R,omitempty"`
	DeterminismD       *float64 `json:"determinism_D,omitempty"`
	EffortE            *float64 `json:"effort_E,omitempty"`
	SpeedS             *float64 `json:"speed_S,omitempty"`
	ContractDocsK      *float64 `json:"contract_docs_K,omitempty"`
	PenaltyOverreachPO *float64 `json:"penalty_overreach_PO,omitempty"`
	OverallScore       *float64 `json:"overall_score,omitempty"`
}

type Submission struct {
	SubmittedTimestamp string       `json:"submitted_timestamp"`
	SubmittedBy        string       `json:"submitted_by"`
	SubmissionMethod   string       `json:"submission_method"`
	GitHubIssue        *GitHubIssue `json:"github_issue,omitempty"`
}

type GitHubIssue struct {
	IssueNumber    int    `json:"issue_number,omitempty"`
	IssueURL       string `json:"issue_url,omitempty"`
	IssueCreatedAt string `json:"issue_created_at,omitempty"`
	IssueClosedAt  string `json:"issue_closed_at,omitempty"`
}

type Processing struct {
	SubmissionID       string `json:"submission_id,omitempty"`
	IngestedTimestamp  string `json:"ingested_timestamp,omitempty"`
	ProcessedTimestamp string `json:"processed_timestamp,omitempty"`
	ValidationStatus   string `json:"validation_status,omitempty"`
	StorageStatus      string `json:"storage_status,omitempty"`
}

type StorageMetadata struct {
	StoredAt       string `json:"stored_at,omitempty"`
	PartitionYear  int    `json:"partition_year,omitempty"`
	PartitionMonth int    `json:"partition_month,omitempty"`
	StoragePath    string `json:"storage_path,omitempty"`
	ContentSHA256  string `json:"content_sha256,omitempty"`
}

type ValidationMetadata struct {
	ValidatedAt      string `json:"validated_at,omitempty"`
	ValidatorVersion string `json:"validator_version,omitempty"`
	ErrorCount       int    `json:"error_count"`
}

type AggregationMetadata struct {
	LastAggregatedAt   string `json:"last_aggregated_at,omitempty"`
	CSVExportTimestamp string `json:"csv_export_timestamp,omitempty"`
}

// Decode parses a submitted document into a Record. It does not validate
// beyond JSON well-formedness; schema checks belong to the validator.
func Decode(raw []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &rec, nil
}

// Encode renders the record as indented JSON, the stored file format.
func (r *Record) Encode() ([]byte, error) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return append(out, '\n'), nil
}

func (r *Record) RunID() string {
	return strings.TrimSpace(r.ResultData.RunIdentity.RunID)
}

// SubmittedAt parses the canonical submission timestamp used for
// partitioning.
func (r *Record) SubmittedAt() (time.Time, error) {
	return ParseTimestamp(r.ResultData.Submission.SubmittedTimestamp)
}

// Passrate returns the API acceptance pass rate, falling back to
// pass/(pass+fail) when the explicit rate is absent. The second return is
// false when no rate can be derived.
func (r *Record) Passrate() (float64, bool) {
	api := r.ResultData.Implementations.API
	if api == nil {
		return 0, false
	}
	if api.Acceptance.Passrate != nil {
		return *api.Acceptance.Passrate, true
	}
	total := api.Acceptance.PassCount + api.Acceptance.FailCount
	if total <= 0 {
		return 0, false
	}
	return float64(api.Acceptance.PassCount) / float64(total), true
}

// APIDurationMinutes returns the API generation duration.
func (r *Record) APIDurationMinutes() (float64, bool) {
	api := r.ResultData.Implementations.API
	if api == nil {
		return 0, false
	}
	return api.GenerationMetrics.DurationMinutes, true
}

// UIDurationMinutes returns the UI generation duration, tracked separately
// from the API duration and never merged with it.
func (r *Record) UIDurationMinutes() (float64, bool) {
	ui := r.ResultData.Implementations.UI
	if ui == nil {
		return 0, false
	}
	return ui.GenerationMetrics.DurationMinutes, true
}

// ParseTimestamp parses the ISO-8601 UTC timestamps used throughout result
// documents, with or without millisecond precision.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	for _, layout := range []string{"2006-01-02T15:04:05.000Z", "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}
