// Package pipeline drives a submission from raw bytes to an aggregated
// leaderboard: parse, validate, enrich with processing metadata, store,
// rebuild.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pawmate-labs/benchboard/internal/aggregate"
	"github.com/pawmate-labs/benchboard/internal/platform/auditlog"
	"github.com/pawmate-labs/benchboard/internal/result"
	"github.com/pawmate-labs/benchboard/internal/schema"
	"github.com/pawmate-labs/benchboard/internal/store"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

// Outcome reports how far a submission got and what each stage produced.
type Outcome struct {
	SubmissionID string
	RunID        string
	State        State
	Report       *schema.Report
	Storage      store.Outcome
	Leaderboard  *aggregate.Document
	Warnings     []string
}

// Pipeline wires the validator, a store backend, and the aggregation
// engine together.
type Pipeline struct {
	store    store.Store
	engine   *aggregate.Engine
	notifier Notifier
	logger   *slog.Logger

	// auditPath is the JSONL audit trail; empty disables auditing.
	auditPath string
	actor     string

	now   func() time.Time
	newID func() string
}

type Option func(*Pipeline)

func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) {
		if n != nil {
			p.notifier = n
		}
	}
}

func WithAuditLog(path, actor string) Option {
	return func(p *Pipeline) {
		p.auditPath = path
		p.actor = actor
	}
}

func New(st store.Store, engine *aggregate.Engine, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("aggregation engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		store:    st,
		engine:   engine,
		notifier: NopNotifier{},
		logger:   logger,
		actor:    "benchboard",
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Process runs one submission through the full pipeline. A terminal
// failure state comes back with a nil error and the failure described in
// the Outcome; the error return is reserved for the pipeline itself being
// unable to proceed (context cancellation, aggregation failure).
func (p *Pipeline) Process(ctx context.Context, raw []byte) (*Outcome, error) {
	out := &Outcome{
		SubmissionID: p.newID(),
		State:        StateReceived,
	}
	ingested := p.now().UTC()
	logger := p.logger.With("submission_id", out.SubmissionID)

	report, err := schema.Validate(raw)
	if err != nil {
		var parseErr *schema.ParseError
		if errors.As(err, &parseErr) {
			p.finish(ctx, out, StateParseFailed, Notification{
				SubmissionID: out.SubmissionID,
				State:        StateParseFailed,
				Reason:       parseErr.Error(),
			})
			logger.Warn("submission rejected", "state", out.State, "error", parseErr)
			return out, nil
		}
		var versionErr *schema.UnsupportedVersionError
		if errors.As(err, &versionErr) {
			out.State = StateParsed
			out.Report = &schema.Report{
				SchemaVersion: versionErr.Version,
				Errors: []schema.FieldError{{
					FieldPath: "schema_version",
					Message:   versionErr.Error(),
					Code:      "UNSUPPORTED_SCHEMA_VERSION",
				}},
			}
			p.finish(ctx, out, StateInvalid, Notification{
				SubmissionID: out.SubmissionID,
				State:        StateInvalid,
				Errors:       out.Report.Errors,
				Reason:       versionErr.Error(),
			})
			logger.Warn("submission rejected", "state", out.State, "error", versionErr)
			return out, nil
		}
		return nil, err
	}

	out.State = StateParsed
	out.Report = report

	rec, err := result.Decode(raw)
	if err != nil {
		// the validator already parsed this payload, so only a shape the
		// typed model cannot hold lands here
		out.Report.Passed = false
		out.Report.Errors = append(out.Report.Errors, schema.FieldError{
			FieldPath: "result_data",
			Message:   err.Error(),
			Code:      "TYPE_MISMATCH",
		})
		p.finish(ctx, out, StateInvalid, Notification{
			SubmissionID: out.SubmissionID,
			State:        StateInvalid,
			Errors:       out.Report.Errors,
		})
		logger.Warn("submission rejected", "state", out.State, "error", err)
		return out, nil
	}
	out.RunID = rec.RunID()
	logger = logger.With("run_id", out.RunID)

	if !report.Passed {
		p.finish(ctx, out, StateInvalid, Notification{
			SubmissionID: out.SubmissionID,
			RunID:        out.RunID,
			State:        StateInvalid,
			Errors:       report.Errors,
		})
		logger.Warn("submission invalid", "errors", len(report.Errors))
		return out, nil
	}
	p.advance(out, StateValidated)

	p.enrich(rec, out, raw, ingested)

	storageOut, err := p.store.Put(ctx, rec)
	if err != nil {
		p.finish(ctx, out, StateStorageFailed, Notification{
			SubmissionID: out.SubmissionID,
			RunID:        out.RunID,
			State:        StateStorageFailed,
			Reason:       err.Error(),
		})
		logger.Error("storage failed", "error", err)
		return out, nil
	}
	out.Storage = storageOut
	p.advance(out, StateStored)
	p.audit(out, "result_stored", map[string]any{
		"path":   storageOut.Path,
		"status": string(storageOut.Status),
	})
	logger.Info("result stored", "path", storageOut.Path, "status", storageOut.Status)

	doc, warnings, err := p.engine.Rebuild(ctx)
	if err != nil {
		return out, fmt.Errorf("rebuild leaderboard: %w", err)
	}
	out.Leaderboard = doc
	out.Warnings = warnings
	p.advance(out, StateAggregated)
	p.audit(out, "leaderboard_rebuilt", map[string]any{
		"entries":  doc.TotalResults,
		"warnings": len(warnings),
	})
	p.notifier.Notify(ctx, Notification{
		SubmissionID: out.SubmissionID,
		RunID:        out.RunID,
		State:        StateAggregated,
	})
	return out, nil
}

// enrich stamps the processing, validation and storage metadata blocks a
// stored 3.0 document carries.
func (p *Pipeline) enrich(rec *result.Record, out *Outcome, raw []byte, ingested time.Time) {
	now := p.now().UTC()
	rec.SchemaVersion = result.SchemaVersionCurrent
	rec.ResultData.Processing = &result.Processing{
		SubmissionID:       out.SubmissionID,
		IngestedTimestamp:  ingested.Format(timestampLayout),
		ProcessedTimestamp: now.Format(timestampLayout),
		ValidationStatus:   "valid",
		StorageStatus:      "stored",
	}
	rec.ResultData.ValidationMetadata = &result.ValidationMetadata{
		ValidatedAt:      now.Format(timestampLayout),
		ValidatorVersion: schema.ValidatorVersion,
		ErrorCount:       0,
	}
	if path, err := store.PartitionPath(rec); err == nil {
		submitted, _ := rec.SubmittedAt()
		submitted = submitted.UTC()
		rec.ResultData.StorageMetadata = &result.StorageMetadata{
			StoredAt:       now.Format(timestampLayout),
			PartitionYear:  submitted.Year(),
			PartitionMonth: int(submitted.Month()),
			StoragePath:    path,
			ContentSHA256:  store.ContentSHA256(raw),
		}
	}
}

func (p *Pipeline) advance(out *Outcome, to State) {
	if !CanTransition(out.State, to) {
		// transition table and pipeline flow disagree; loud log beats a
		// silently wrong state
		p.logger.Error("illegal state transition", "from", out.State, "to", to)
	}
	out.State = to
}

func (p *Pipeline) finish(ctx context.Context, out *Outcome, to State, n Notification) {
	p.advance(out, to)
	p.audit(out, "submission_"+string(to), map[string]any{"reason": n.Reason})
	p.notifier.Notify(ctx, n)
}

// audit is best-effort; a failing audit trail never fails the pipeline.
func (p *Pipeline) audit(out *Outcome, action string, payload map[string]any) {
	if p.auditPath == "" {
		return
	}
	runID := out.RunID
	if runID == "" {
		runID = "unknown"
	}
	err := auditlog.Append(p.auditPath, auditlog.Event{
		OccurredAt:   p.now().UTC(),
		Actor:        p.actor,
		Action:       action,
		RunID:        runID,
		SubmissionID: out.SubmissionID,
		Payload:      payload,
	})
	if err != nil {
		p.logger.Warn("audit append failed", "action", action, "error", err)
	}
}
