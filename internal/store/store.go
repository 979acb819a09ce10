// Package store persists validated result documents under a time-partitioned
// layout keyed by run id. Resubmitting a run id replaces the earlier
// document no matter which partition it landed in.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"iter"
	"path"
	"strings"

	"github.com/pawmate-labs/benchboard/internal/result"
)

// Status reports what a Put did.
type Status string

const (
	StatusStored            Status = "stored"
	StatusDuplicateReplaced Status = "duplicate_replaced"
)

// Outcome describes a completed Put.
type Outcome struct {
	Status Status
	// Path is the partitioned location the document now lives at,
	// relative to the backend root.
	Path string
	// ReplacedPath is the prior location of the same run id, set only
	// when Status is StatusDuplicateReplaced.
	ReplacedPath string
}

// ErrNotFound is returned by Get when no document carries the run id.
var ErrNotFound = errors.New("result not found")

// Store is the persistence contract shared by the filesystem, object-store
// and Postgres backends. List yields documents lazily; a decode failure for
// one document is surfaced through the error slot without ending the
// sequence.
type Store interface {
	Put(ctx context.Context, rec *result.Record) (Outcome, error)
	Get(ctx context.Context, runID string) (*result.Record, error)
	List(ctx context.Context) iter.Seq2[*result.Record, error]
}

const submissionsPrefix = "submissions"

// PartitionPath derives the canonical storage location for a record:
// submissions/YYYY/MM/<run_id>.json, partitioned by the submission
// timestamp inside the document (never by arrival time).
func PartitionPath(rec *result.Record) (string, error) {
	runID := rec.RunID()
	if runID == "" {
		return "", fmt.Errorf("document has no run id")
	}
	if strings.ContainsAny(runID, "/\\") {
		return "", fmt.Errorf("run id %q contains path separators", runID)
	}
	submitted, err := rec.SubmittedAt()
	if err != nil {
		return "", fmt.Errorf("derive partition for %s: %w", runID, err)
	}
	submitted = submitted.UTC()
	return path.Join(
		submissionsPrefix,
		fmt.Sprintf("%04d", submitted.Year()),
		fmt.Sprintf("%02d", int(submitted.Month())),
		runID+".json",
	), nil
}

// ContentSHA256 is the integrity digest stored alongside each document.
func ContentSHA256(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
