// Package schema validates submitted result documents against versioned,
// declarative field rules. New schema versions are added by declaring a new
// rule table, not by writing new check code.
package schema

import "regexp"

type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// timestampPattern is the ISO-8601 UTC format required for every
// *_timestamp field, with optional millisecond precision.
var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{3})?Z$`)

// Rule is one declarative field check. Path is a dot path from the document
// root; a segment ending in "[]" fans out over array elements. Required is
// enforced only when the enclosing container is present, so optional
// sections carry their own required sub-structure.
type Rule struct {
	Path        string
	Kind        Kind
	Required    bool
	Enum        []any
	Pattern     *regexp.Regexp
	PatternCode string
	Min         *float64
	Max         *float64
}

// Definition is the full rule table for one schema version.
type Definition struct {
	Version string
	Rules   []Rule

	// RequireOneOf groups demand at least one member path present. The
	// error is attached to the shared parent path.
	RequireOneOf []OneOfGroup
}

type OneOfGroup struct {
	ParentPath string
	Keys       []string
	Code       string
	Message    string
}

func fptr(v float64) *float64 { return &v }

func ts(path string, required bool) Rule {
	return Rule{
		Path:        path,
		Kind:        KindString,
		Required:    required,
		Pattern:     timestampPattern,
		PatternCode: "INVALID_TIMESTAMP_FORMAT",
	}
}

// generationMetricsRules declares the metrics block shared by the api and ui
// implementations.
func generationMetricsRules(prefix string) []Rule {
	return []Rule{
		{Path: prefix, Kind: KindObject, Required: true},
		{Path: prefix + ".llm_model", Kind: KindString, Required: true},
		ts(prefix+".start_timestamp", true),
		ts(prefix+".end_timestamp", true),
		{Path: prefix + ".duration_minutes", Kind: KindNumber, Required: true, Min: fptr(0)},
		{Path: prefix + ".clarifications_count", Kind: KindInteger, Required: true, Min: fptr(0)},
		{Path: prefix + ".interventions_count", Kind: KindInteger, Required: true, Min: fptr(0)},
		{Path: prefix + ".reruns_count", Kind: KindInteger, Required: true, Min: fptr(0)},
	}
}

func coreRules() []Rule {
	rules := []Rule{
		{Path: "schema_version", Kind: KindString, Required: true},
		{Path: "result_data", Kind: KindObject, Required: true},

		{Path: "result_data.run_identity", Kind: KindObject, Required: true},
		{Path: "result_data.run_identity.tool_name", Kind: KindString, Required: true},
		{Path: "result_data.run_identity.tool_version", Kind: KindString, Required: true},
		{Path: "result_data.run_identity.run_id", Kind: KindString, Required: true},
		{Path: "result_data.run_identity.run_number", Kind: KindInteger, Required: true, Enum: []any{1, 2}},
		{Path: "result_data.run_identity.target_model", Kind: KindString, Required: true, Enum: []any{"A", "B"}},
		{Path: "result_data.run_identity.api_style", Kind: KindString, Required: true, Enum: []any{"REST", "GraphQL"}},
		{Path: "result_data.run_identity.spec_reference", Kind: KindString, Required: true},
		{Path: "result_data.run_identity.workspace_path", Kind: KindString, Required: true},
		{Path: "result_data.run_identity.run_environment", Kind: KindString, Required: true},

		{Path: "result_data.implementations", Kind: KindObject, Required: true},
		{Path: "result_data.implementations.api", Kind: KindObject},
	}

	rules = append(rules, generationMetricsRules("result_data.implementations.api.generation_metrics")...)
	rules = append(rules,
		Rule{Path: "result_data.implementations.api.generation_metrics.test_iterations_count", Kind: KindInteger, Min: fptr(1)},
		Rule{Path: "result_data.implementations.api.generation_metrics.test_runs", Kind: KindArray},
		ts("result_data.implementations.api.generation_metrics.test_runs[].start_timestamp", false),
		ts("result_data.implementations.api.generation_metrics.test_runs[].end_timestamp", false),
		Rule{Path: "result_data.implementations.api.generation_metrics.test_runs[].total_tests", Kind: KindInteger, Min: fptr(0)},
		Rule{Path: "result_data.implementations.api.generation_metrics.test_runs[].passed", Kind: KindInteger, Min: fptr(0)},
		Rule{Path: "result_data.implementations.api.generation_metrics.test_runs[].failed", Kind: KindInteger, Min: fptr(0)},
		Rule{Path: "result_data.implementations.api.generation_metrics.test_runs[].pass_rate", Kind: KindNumber, Min: fptr(0), Max: fptr(1)},
		Rule{Path: "result_data.implementations.api.generation_metrics.llm_usage", Kind: KindObject},
		Rule{Path: "result_data.implementations.api.generation_metrics.llm_usage.input_tokens", Kind: KindInteger, Min: fptr(0)},
		Rule{Path: "result_data.implementations.api.generation_metrics.llm_usage.output_tokens", Kind: KindInteger, Min: fptr(0)},
		Rule{Path: "result_data.implementations.api.generation_metrics.llm_usage.total_tokens", Kind: KindInteger, Min: fptr(0)},
		Rule{Path: "result_data.implementations.api.generation_metrics.llm_usage.requests_count", Kind: KindInteger, Min: fptr(0)},
		Rule{Path: "result_data.implementations.api.generation_metrics.llm_usage.estimated_cost_usd", Kind: KindNumber, Min: fptr(0)},
		Rule{Path: "result_data.implementations.api.generation_metrics.llm_usage.usage_source", Kind: KindString, Enum: []any{"tool_reported", "operator_estimated", "unknown"}},

		Rule{Path: "result_data.implementations.api.acceptance", Kind: KindObject, Required: true},
		Rule{Path: "result_data.implementations.api.acceptance.pass_count", Kind: KindInteger, Required: true, Min: fptr(0)},
		Rule{Path: "result_data.implementations.api.acceptance.fail_count", Kind: KindInteger, Required: true, Min: fptr(0)},
		Rule{Path: "result_data.implementations.api.acceptance.not_run_count", Kind: KindInteger, Required: true, Min: fptr(0)},
		Rule{Path: "result_data.implementations.api.acceptance.passrate", Kind: KindNumber, Required: true, Min: fptr(0), Max: fptr(1)},

		Rule{Path: "result_data.implementations.api.artifacts", Kind: KindObject, Required: true},
		Rule{Path: "result_data.implementations.api.artifacts.contract_artifact_path", Kind: KindString, Required: true},
		Rule{Path: "result_data.implementations.api.artifacts.run_instructions_path", Kind: KindString, Required: true},

		Rule{Path: "result_data.implementations.api.quality_metrics", Kind: KindObject},
		Rule{Path: "result_data.implementations.api.quality_metrics.determinism_compliance", Kind: KindString, Enum: []any{"Pass", "Fail", "Unknown"}},
		Rule{Path: "result_data.implementations.api.quality_metrics.overreach_incidents_count", Kind: KindInteger, Min: fptr(0)},
		Rule{Path: "result_data.implementations.api.quality_metrics.contract_completeness_passrate", Kind: KindNumber, Min: fptr(0), Max: fptr(1)},
		Rule{Path: "result_data.implementations.api.quality_metrics.instructions_quality_rating", Kind: KindInteger, Enum: []any{100, 70, 40, 0}},
		Rule{Path: "result_data.implementations.api.quality_metrics.reproducibility_rating", Kind: KindString, Enum: []any{"None", "Minor", "Major", "Unknown"}},

		Rule{Path: "result_data.implementations.api.scores", Kind: KindObject},
		Rule{Path: "result_data.implementations.api.scores.correctness_C", Kind: KindNumber, Min: fptr(0), Max: fptr(100)},
		Rule{Path: "result_data.implementations.api.scores.reproducibility_R", Kind: KindNumber, Min: fptr(0), Max: fptr(100)},
		Rule{Path: "result_data.implementations.api.scores.determinism_D", Kind: KindNumber, Min: fptr(0), Max: fptr(100)},
		Rule{Path: "result_data.implementations.api.scores.effort_E", Kind: KindNumber, Min: fptr(0), Max: fptr(100)},
		Rule{Path: "result_data.implementations.api.scores.speed_S", Kind: KindNumber, Min: fptr(0), Max: fptr(100)},
		Rule{Path: "result_data.implementations.api.scores.contract_docs_K", Kind: KindNumber, Min: fptr(0), Max: fptr(100)},
		Rule{Path: "result_data.implementations.api.scores.penalty_overreach_PO", Kind: KindNumber, Min: fptr(0), Max: fptr(40)},
		Rule{Path: "result_data.implementations.api.scores.overall_score", Kind: KindNumber, Min: fptr(0), Max: fptr(100)},

		Rule{Path: "result_data.implementations.ui", Kind: KindObject},
	)

	rules = append(rules, generationMetricsRules("result_data.implementations.ui.generation_metrics")...)
	rules = append(rules,
		Rule{Path: "result_data.implementations.ui.generation_metrics.backend_changes_required", Kind: KindBoolean},
		Rule{Path: "result_data.implementations.ui.build_success", Kind: KindBoolean, Required: true},
		Rule{Path: "result_data.implementations.ui.artifacts", Kind: KindObject, Required: true},
		Rule{Path: "result_data.implementations.ui.artifacts.ui_source_path", Kind: KindString, Required: true},
		Rule{Path: "result_data.implementations.ui.artifacts.ui_run_summary_path", Kind: KindString, Required: true},

		Rule{Path: "result_data.submission", Kind: KindObject, Required: true},
		ts("result_data.submission.submitted_timestamp", true),
		Rule{Path: "result_data.submission.submitted_by", Kind: KindString, Required: true},
		Rule{Path: "result_data.submission.submission_method", Kind: KindString, Required: true, Enum: []any{"automated", "manual"}},
		Rule{Path: "result_data.submission.github_issue", Kind: KindObject},
		Rule{Path: "result_data.submission.github_issue.issue_number", Kind: KindInteger, Min: fptr(1)},
		Rule{Path: "result_data.submission.github_issue.issue_url", Kind: KindString},
		ts("result_data.submission.github_issue.issue_created_at", false),
		ts("result_data.submission.github_issue.issue_closed_at", false),
	)

	return rules
}

// pipelineMetadataRules covers the blocks the pipeline appends after
// validation. They only exist in schema 3.0 and are always optional, which
// is what keeps 2.0 documents valid under 3.0.
func pipelineMetadataRules() []Rule {
	return []Rule{
		{Path: "result_data.processing", Kind: KindObject},
		{Path: "result_data.processing.submission_id", Kind: KindString},
		ts("result_data.processing.ingested_timestamp", false),
		ts("result_data.processing.processed_timestamp", false),
		{Path: "result_data.processing.validation_status", Kind: KindString, Enum: []any{"pending", "valid", "invalid", "error"}},
		{Path: "result_data.processing.storage_status", Kind: KindString, Enum: []any{"pending", "stored", "failed", "duplicate_replaced"}},

		{Path: "result_data.storage_metadata", Kind: KindObject},
		ts("result_data.storage_metadata.stored_at", false),
		{Path: "result_data.storage_metadata.partition_year", Kind: KindInteger},
		{Path: "result_data.storage_metadata.partition_month", Kind: KindInteger, Min: fptr(1), Max: fptr(12)},
		{Path: "result_data.storage_metadata.storage_path", Kind: KindString},
		{Path: "result_data.storage_metadata.content_sha256", Kind: KindString},

		{Path: "result_data.validation_metadata", Kind: KindObject},
		ts("result_data.validation_metadata.validated_at", false),
		{Path: "result_data.validation_metadata.validator_version", Kind: KindString},
		{Path: "result_data.validation_metadata.error_count", Kind: KindInteger, Min: fptr(0)},

		{Path: "result_data.aggregation_metadata", Kind: KindObject},
		ts("result_data.aggregation_metadata.last_aggregated_at", false),
		ts("result_data.aggregation_metadata.csv_export_timestamp", false),
	}
}

var implementationsOneOf = OneOfGroup{
	ParentPath: "result_data.implementations",
	Keys:       []string{"api", "ui"},
	Code:       "REQUIRED_IMPLEMENTATION_MISSING",
	Message:    "at least one of 'api' or 'ui' must be present",
}

var definitions = map[string]Definition{
	"2.0": {
		Version:      "2.0",
		Rules:        coreRules(),
		RequireOneOf: []OneOfGroup{implementationsOneOf},
	},
	"3.0": {
		Version:      "3.0",
		Rules:        append(coreRules(), pipelineMetadataRules()...),
		RequireOneOf: []OneOfGroup{implementationsOneOf},
	},
}

// Versions lists the schema versions this validator understands.
func Versions() []string { return []string{"2.0", "3.0"} }

func definitionFor(version string) (Definition, bool) {
	def, ok := definitions[version]
	return def, ok
}
