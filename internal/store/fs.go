package store

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pawmate-labs/benchboard/internal/result"
)

// FS stores documents as files under root, mirroring the partition layout
// on disk. Writes go through a temp file in the destination directory and a
// rename, so readers never observe a partial document. A process-level
// mutex serializes writers; cross-process locking is out of scope.
type FS struct {
	root   string
	logger *slog.Logger
	mu     sync.Mutex

	// remove is swapped out in tests to exercise cleanup failures.
	remove func(string) error
}

func NewFS(root string) *FS {
	return &FS{root: root, logger: slog.Default(), remove: os.Remove}
}

func NewFSWithLogger(root string, logger *slog.Logger) *FS {
	f := NewFS(root)
	if logger != nil {
		f.logger = logger
	}
	return f
}

func (f *FS) Put(ctx context.Context, rec *result.Record) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	target, err := PartitionPath(rec)
	if err != nil {
		return Outcome{}, err
	}
	raw, err := rec.Encode()
	if err != nil {
		return Outcome{}, fmt.Errorf("encode %s: %w", rec.RunID(), err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	existing, err := f.find(rec.RunID())
	if err != nil {
		return Outcome{}, err
	}

	abs := filepath.Join(f.root, filepath.FromSlash(target))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return Outcome{}, fmt.Errorf("create partition dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(abs), ".put-*")
	if err != nil {
		return Outcome{}, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return Outcome{}, fmt.Errorf("write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return Outcome{}, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), abs); err != nil {
		os.Remove(tmp.Name())
		return Outcome{}, fmt.Errorf("commit %s: %w", target, err)
	}

	out := Outcome{Status: StatusStored, Path: target}
	if existing != "" {
		out.Status = StatusDuplicateReplaced
		out.ReplacedPath = existing
	}
	if existing != "" && existing != target {
		// The new document is already committed; a failed cleanup must
		// not turn the write into an error.
		if err := f.remove(filepath.Join(f.root, filepath.FromSlash(existing))); err != nil {
			f.logger.Warn("superseded document left behind",
				slog.String("run_id", rec.RunID()),
				slog.String("path", existing),
				slog.String("error", err.Error()))
		}
	}
	return out, nil
}

func (f *FS) Get(ctx context.Context, runID string) (*result.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	rel, err := f.find(runID)
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if rel == "" {
		return nil, ErrNotFound
	}
	raw, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	rec, err := result.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", rel, err)
	}
	return rec, nil
}

// List walks the partition tree in path order. The sequence is restartable:
// every range over it re-reads the tree.
func (f *FS) List(ctx context.Context) iter.Seq2[*result.Record, error] {
	return func(yield func(*result.Record, error) bool) {
		root := filepath.Join(f.root, submissionsPrefix)
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if d.IsDir() || !isDocumentName(d.Name()) {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			raw, err := os.ReadFile(p)
			if err != nil {
				if !yield(nil, fmt.Errorf("read %s: %w", p, err)) {
					return fs.SkipAll
				}
				return nil
			}
			rec, err := result.Decode(raw)
			if err != nil {
				if !yield(nil, fmt.Errorf("decode %s: %w", p, err)) {
					return fs.SkipAll
				}
				return nil
			}
			if !yield(rec, nil) {
				return fs.SkipAll
			}
			return nil
		})
		if err != nil {
			yield(nil, err)
		}
	}
}

// find scans every partition for <runID>.json and returns its relative
// path, or "" when absent. The scan is what makes dedup global instead of
// per-month.
func (f *FS) find(runID string) (string, error) {
	want := runID + ".json"
	root := filepath.Join(f.root, submissionsPrefix)
	var found string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || d.Name() != want {
			return nil
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		found = filepath.ToSlash(rel)
		return fs.SkipAll
	})
	if err != nil {
		return "", fmt.Errorf("scan partitions: %w", err)
	}
	return found, nil
}

func isDocumentName(name string) bool {
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}
