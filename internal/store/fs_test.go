package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/pawmate-labs/benchboard/internal/result"
)

func testRecord(runID, submitted string) *result.Record {
	rate := 0.9
	return &result.Record{
		SchemaVersion: result.SchemaVersionCurrent,
		ResultData: result.ResultData{
			RunIdentity: result.RunIdentity{
				ToolName:       "acme-codegen",
				ToolVersion:    "1.0.0",
				RunID:          runID,
				RunNumber:      1,
				TargetModel:    "A",
				APIStyle:       "REST",
				SpecReference:  "specs/petstore-v2.yaml",
				WorkspacePath:  "runs/" + runID,
				RunEnvironment: "ci",
			},
			Implementations: result.Implementations{
				API: &result.APIImplementation{
					GenerationMetrics: result.GenerationMetrics{
						LLMModel:        "gpt-5-codex",
						StartTimestamp:  "2026-03-14T09:00:00Z",
						EndTimestamp:    "2026-03-14T09:42:00Z",
						DurationMinutes: 42,
					},
					Acceptance: result.Acceptance{PassCount: 9, FailCount: 1, Passrate: &rate},
					Artifacts: result.APIArtifacts{
						ContractArtifactPath: "artifacts/openapi.yaml",
						RunInstructionsPath:  "artifacts/RUN.md",
					},
				},
			},
			Submission: result.Submission{
				SubmittedTimestamp: submitted,
				SubmittedBy:        "acme-ci",
				SubmissionMethod:   "automated",
			},
		},
	}
}

func TestFSPutPartitionsBySubmissionTimestamp(t *testing.T) {
	fs := NewFS(t.TempDir())
	ctx := context.Background()

	out, err := fs.Put(ctx, testRecord("run-a", "2026-03-14T10:00:00Z"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if out.Status != StatusStored {
		t.Fatalf("status = %q", out.Status)
	}
	if out.Path != "submissions/2026/03/run-a.json" {
		t.Fatalf("path = %q", out.Path)
	}

	got, err := fs.Get(ctx, "run-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.RunID() != "run-a" {
		t.Fatalf("run id = %q", got.RunID())
	}
}

func TestFSPutReplacesDuplicateAcrossPartitions(t *testing.T) {
	root := t.TempDir()
	fs := NewFS(root)
	ctx := context.Background()

	if _, err := fs.Put(ctx, testRecord("run-a", "2026-03-14T10:00:00Z")); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	out, err := fs.Put(ctx, testRecord("run-a", "2026-05-02T08:00:00Z"))
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if out.Status != StatusDuplicateReplaced {
		t.Fatalf("status = %q", out.Status)
	}
	if out.Path != "submissions/2026/05/run-a.json" {
		t.Fatalf("path = %q", out.Path)
	}
	if out.ReplacedPath != "submissions/2026/03/run-a.json" {
		t.Fatalf("replaced path = %q", out.ReplacedPath)
	}

	if _, err := os.Stat(filepath.Join(root, "submissions", "2026", "03", "run-a.json")); !os.IsNotExist(err) {
		t.Fatalf("superseded file still present: %v", err)
	}

	got, err := fs.Get(ctx, "run-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ResultData.Submission.SubmittedTimestamp != "2026-05-02T08:00:00Z" {
		t.Fatalf("got older document: %q", got.ResultData.Submission.SubmittedTimestamp)
	}
}

func TestFSPutSucceedsWhenSupersededRemovalFails(t *testing.T) {
	root := t.TempDir()
	fs := NewFSWithLogger(root, slog.New(slog.DiscardHandler))
	fs.remove = func(string) error { return errors.New("operation not permitted") }
	ctx := context.Background()

	if _, err := fs.Put(ctx, testRecord("run-a", "2026-03-14T10:00:00Z")); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	out, err := fs.Put(ctx, testRecord("run-a", "2026-05-02T08:00:00Z"))
	if err != nil {
		t.Fatalf("Put after commit must not fail on cleanup: %v", err)
	}
	if out.Status != StatusDuplicateReplaced {
		t.Fatalf("status = %q, want %q", out.Status, StatusDuplicateReplaced)
	}
	if out.Path != "submissions/2026/05/run-a.json" {
		t.Fatalf("path = %q", out.Path)
	}

	// the new document is committed even though the old one lingers
	if _, err := os.Stat(filepath.Join(root, "submissions", "2026", "05", "run-a.json")); err != nil {
		t.Fatalf("new document missing: %v", err)
	}
}

func TestFSPutSamePartitionOverwrite(t *testing.T) {
	fs := NewFS(t.TempDir())
	ctx := context.Background()

	if _, err := fs.Put(ctx, testRecord("run-a", "2026-03-14T10:00:00Z")); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	out, err := fs.Put(ctx, testRecord("run-a", "2026-03-20T10:00:00Z"))
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if out.Status != StatusDuplicateReplaced {
		t.Fatalf("status = %q", out.Status)
	}
}

func TestFSGetMissing(t *testing.T) {
	fs := NewFS(t.TempDir())
	if _, err := fs.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFSListIsRestartable(t *testing.T) {
	fs := NewFS(t.TempDir())
	ctx := context.Background()

	for _, spec := range []struct{ id, ts string }{
		{"run-a", "2026-01-05T00:00:00Z"},
		{"run-b", "2026-02-05T00:00:00Z"},
		{"run-c", "2026-02-06T00:00:00Z"},
	} {
		if _, err := fs.Put(ctx, testRecord(spec.id, spec.ts)); err != nil {
			t.Fatalf("Put %s: %v", spec.id, err)
		}
	}

	seq := fs.List(ctx)
	for round := 0; round < 2; round++ {
		var ids []string
		for rec, err := range seq {
			if err != nil {
				t.Fatalf("round %d: %v", round, err)
			}
			ids = append(ids, rec.RunID())
		}
		if len(ids) != 3 || ids[0] != "run-a" || ids[1] != "run-b" || ids[2] != "run-c" {
			t.Fatalf("round %d ids = %v", round, ids)
		}
	}
}

func TestFSListSkipsTempFiles(t *testing.T) {
	root := t.TempDir()
	fs := NewFS(root)
	ctx := context.Background()

	if _, err := fs.Put(ctx, testRecord("run-a", "2026-03-14T10:00:00Z")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	stray := filepath.Join(root, "submissions", "2026", "03", ".put-12345")
	if err := os.WriteFile(stray, []byte("{"), 0o644); err != nil {
		t.Fatalf("write stray temp file: %v", err)
	}

	count := 0
	for _, err := range fs.List(ctx) {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		count++
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestFSListSurfacesCorruptDocuments(t *testing.T) {
	root := t.TempDir()
	fs := NewFS(root)
	ctx := context.Background()

	if _, err := fs.Put(ctx, testRecord("run-a", "2026-03-14T10:00:00Z")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	corrupt := filepath.Join(root, "submissions", "2026", "03", "broken.json")
	if err := os.WriteFile(corrupt, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	var (
		good int
		bad  int
	)
	for rec, err := range fs.List(ctx) {
		if err != nil {
			bad++
			continue
		}
		if rec.RunID() == "run-a" {
			good++
		}
	}
	if good != 1 || bad != 1 {
		t.Fatalf("good = %d, bad = %d", good, bad)
	}
}

func TestPartitionPathRejectsSeparators(t *testing.T) {
	rec := testRecord("../escape", "2026-03-14T10:00:00Z")
	if _, err := PartitionPath(rec); err == nil {
		t.Fatal("expected error for run id with path separators")
	}
}
