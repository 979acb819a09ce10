// Package aggregate rebuilds the leaderboard from every stored result
// document. Rebuilds are always full: derived state is cheap to recompute
// and never merged incrementally.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/pawmate-labs/benchboard/internal/result"
	"github.com/pawmate-labs/benchboard/internal/store"
)

// Entry is one leaderboard row, derived from the api implementation of a
// stored document.
type Entry struct {
	ToolName           string  `json:"tool_name"`
	ToolVersion        string  `json:"tool_version"`
	RunID              string  `json:"run_id"`
	TargetModel        string  `json:"target_model"`
	APIStyle           string  `json:"api_style"`
	SpecReference      string  `json:"spec_reference"`
	RunNumber          int     `json:"run_number"`
	PassRate           float64 `json:"pass_rate"`
	DurationMinutes    float64 `json:"duration_minutes"`
	UIDurationMinutes  float64 `json:"ui_duration_minutes,omitempty"`
	LLMModel           string  `json:"llm_model"`
	SubmittedTimestamp string  `json:"submitted_timestamp"`
	SubmittedBy        string  `json:"submitted_by"`
	CompositeScore     float64 `json:"composite_score"`
}

type SortOption struct {
	Field       string `json:"field"`
	Direction   string `json:"direction"`
	Description string `json:"description"`
}

// Group collects the entries sharing one exact (spec_reference,
// target_model, api_style) tuple, the unit comparison reports render.
type Group struct {
	SpecReference string  `json:"spec_reference"`
	TargetModel   string  `json:"target_model"`
	APIStyle      string  `json:"api_style"`
	Entries       []Entry `json:"entries"`
}

// Document is the complete rebuilt leaderboard. The flat field names are
// the published leaderboard.json contract; renderers address
// sorted_by_quality and friends at the top level.
type Document struct {
	GeneratedAt       string                `json:"generated_at"`
	TotalResults      int                   `json:"total_results"`
	SortOptions       map[string]SortOption `json:"sort_options"`
	Results           []Entry               `json:"results"`
	SortedByQuality   []Entry               `json:"sorted_by_quality"`
	SortedBySpeed     []Entry               `json:"sorted_by_speed"`
	SortedByComposite []Entry               `json:"sorted_by_composite"`
	Groups            []Group               `json:"groups"`
}

// Engine derives leaderboard documents from a result store.
type Engine struct {
	store  store.Store
	policy Policy
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(st store.Store, policy Policy, logger *slog.Logger) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: st, policy: policy, logger: logger, now: time.Now}, nil
}

// Rebuild lists every stored document and derives the full leaderboard.
// Unreadable documents and documents that cannot produce a leaderboard row
// become warnings, never failures: one bad record must not take down the
// board. Output is deterministic apart from generated_at.
func (e *Engine) Rebuild(ctx context.Context) (*Document, []string, error) {
	var (
		entries  []Entry
		warnings []string
	)

	for rec, err := range e.store.List(ctx) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping unreadable document: %v", err))
			e.logger.Warn("skipping unreadable document", "error", err)
			continue
		}
		entry, reason := deriveEntry(rec)
		if reason != "" {
			warnings = append(warnings, fmt.Sprintf("skipping %s: %s", rec.RunID(), reason))
			e.logger.Warn("skipping document", "run_id", rec.RunID(), "reason", reason)
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].RunID < entries[j].RunID })
	applyComposite(entries, e.policy)

	byQuality, bySpeed, byComposite := sortedViews(entries)
	doc := &Document{
		GeneratedAt:       e.now().UTC().Format("2006-01-02T15:04:05.000Z"),
		TotalResults:      len(entries),
		SortOptions:       sortOptions(),
		Results:           entries,
		SortedByQuality:   byQuality,
		SortedBySpeed:     bySpeed,
		SortedByComposite: byComposite,
		Groups:            groupEntries(entries),
	}

	e.logger.Info("leaderboard rebuilt", "entries", len(entries), "warnings", len(warnings))
	return doc, warnings, nil
}

// deriveEntry turns a stored document into a leaderboard row, or explains
// why it cannot.
func deriveEntry(rec *result.Record) (Entry, string) {
	identity := rec.ResultData.RunIdentity
	if rec.ResultData.Implementations.API == nil {
		return Entry{}, "no api implementation"
	}
	passRate, ok := rec.Passrate()
	if !ok {
		return Entry{}, "passrate not derivable"
	}
	duration, ok := rec.APIDurationMinutes()
	if !ok {
		return Entry{}, "missing api duration"
	}

	entry := Entry{
		ToolName:           identity.ToolName,
		ToolVersion:        identity.ToolVersion,
		RunID:              identity.RunID,
		TargetModel:        identity.TargetModel,
		APIStyle:           identity.APIStyle,
		SpecReference:      identity.SpecReference,
		RunNumber:          identity.RunNumber,
		PassRate:           passRate,
		DurationMinutes:    duration,
		LLMModel:           rec.ResultData.Implementations.API.GenerationMetrics.LLMModel,
		SubmittedTimestamp: rec.ResultData.Submission.SubmittedTimestamp,
		SubmittedBy:        rec.ResultData.Submission.SubmittedBy,
	}
	if uiDuration, ok := rec.UIDurationMinutes(); ok {
		entry.UIDurationMinutes = uiDuration
	}
	return entry, ""
}

// applyComposite scores every entry under the policy. Duration is min-max
// normalized across the set; a zero-span set normalizes to 0, which makes
// every duration "best" rather than dividing by zero.
func applyComposite(entries []Entry, policy Policy) {
	if len(entries) == 0 {
		return
	}
	minDur, maxDur := entries[0].DurationMinutes, entries[0].DurationMinutes
	for _, e := range entries[1:] {
		if e.DurationMinutes < minDur {
			minDur = e.DurationMinutes
		}
		if e.DurationMinutes > maxDur {
			maxDur = e.DurationMinutes
		}
	}
	span := maxDur - minDur
	for i := range entries {
		norm := 0.0
		if span > 0 {
			norm = (entries[i].DurationMinutes - minDur) / span
		}
		entries[i].CompositeScore = policy.QualityWeight*entries[i].PassRate + policy.SpeedWeight*(1-norm)
	}
}

// The views are total orders: every comparison chain ends at run_id, so
// equal metrics still produce one canonical ranking.
func sortedViews(entries []Entry) (byQuality, bySpeed, byComposite []Entry) {
	byQuality = append([]Entry(nil), entries...)
	sort.Slice(byQuality, func(i, j int) bool {
		a, b := byQuality[i], byQuality[j]
		if a.PassRate != b.PassRate {
			return a.PassRate > b.PassRate
		}
		if a.DurationMinutes != b.DurationMinutes {
			return a.DurationMinutes < b.DurationMinutes
		}
		return a.RunID < b.RunID
	})

	bySpeed = append([]Entry(nil), entries...)
	sort.Slice(bySpeed, func(i, j int) bool {
		a, b := bySpeed[i], bySpeed[j]
		if a.DurationMinutes != b.DurationMinutes {
			return a.DurationMinutes < b.DurationMinutes
		}
		if a.PassRate != b.PassRate {
			return a.PassRate > b.PassRate
		}
		return a.RunID < b.RunID
	})

	byComposite = append([]Entry(nil), entries...)
	sort.Slice(byComposite, func(i, j int) bool {
		a, b := byComposite[i], byComposite[j]
		if a.CompositeScore != b.CompositeScore {
			return a.CompositeScore > b.CompositeScore
		}
		return a.RunID < b.RunID
	})

	return byQuality, bySpeed, byComposite
}

func sortOptions() map[string]SortOption {
	return map[string]SortOption{
		"by_quality": {
			Field:       "pass_rate",
			Direction:   "descending",
			Description: "Sorted by acceptance test pass rate (quality)",
		},
		"by_speed": {
			Field:       "duration_minutes",
			Direction:   "ascending",
			Description: "Sorted by generation duration (speed)",
		},
		"by_composite": {
			Field:       "composite_score",
			Direction:   "descending",
			Description: "Sorted by weighted quality and speed score",
		},
	}
}

// groupEntries buckets rows by exact configuration tuple for comparison
// reports. Byte equality only; no case folding or trimming.
func groupEntries(entries []Entry) []Group {
	index := map[string]int{}
	var groups []Group
	for _, e := range entries {
		k := e.SpecReference + "\x00" + e.TargetModel + "\x00" + e.APIStyle
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{
				SpecReference: e.SpecReference,
				TargetModel:   e.TargetModel,
				APIStyle:      e.APIStyle,
			})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.SpecReference != b.SpecReference {
			return a.SpecReference < b.SpecReference
		}
		if a.TargetModel != b.TargetModel {
			return a.TargetModel < b.TargetModel
		}
		return a.APIStyle < b.APIStyle
	})
	return groups
}
