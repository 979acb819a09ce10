package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"github.com/pawmate-labs/benchboard/internal/result"
)

// DB is the subset of *sql.DB the Postgres backend needs, kept narrow so
// tests and transactions can stand in.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const createResultsTableQuery = `CREATE TABLE IF NOT EXISTS benchmark_results (
	run_id           TEXT PRIMARY KEY,
	submitted_at     TIMESTAMPTZ NOT NULL,
	partition_year   INT NOT NULL,
	partition_month  INT NOT NULL,
	storage_path     TEXT NOT NULL,
	content_sha256   TEXT NOT NULL,
	document         JSONB NOT NULL,
	stored_at        TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// The upsert is what enforces global run_id uniqueness: the primary key
// conflict replaces the earlier row regardless of partition, and the
// xmax check distinguishes a fresh insert from a replacement.
const upsertResultQuery = `INSERT INTO benchmark_results (
	run_id,
	submitted_at,
	partition_year,
	partition_month,
	storage_path,
	content_sha256,
	document,
	stored_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,now())
ON CONFLICT (run_id) DO UPDATE SET
	submitted_at = EXCLUDED.submitted_at,
	partition_year = EXCLUDED.partition_year,
	partition_month = EXCLUDED.partition_month,
	storage_path = EXCLUDED.storage_path,
	content_sha256 = EXCLUDED.content_sha256,
	document = EXCLUDED.document,
	stored_at = now()
RETURNING (xmax = 0) AS inserted`

const selectResultQuery = `SELECT document
FROM benchmark_results
WHERE run_id = $1`

const listResultsQuery = `SELECT document
FROM benchmark_results
ORDER BY partition_year, partition_month, run_id`

// Postgres keeps each document as a jsonb row keyed by run id. The
// partition columns mirror the path layout of the other backends so the
// storage_path recorded in documents stays backend-independent.
type Postgres struct {
	db DB
}

func NewPostgres(db DB) *Postgres {
	if db == nil {
		return nil
	}
	return &Postgres{db: db}
}

// EnsureSchema creates the results table when missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store not initialized")
	}
	if _, err := s.db.ExecContext(ctx, createResultsTableQuery); err != nil {
		return fmt.Errorf("create benchmark_results table: %w", err)
	}
	return nil
}

func (s *Postgres) Put(ctx context.Context, rec *result.Record) (Outcome, error) {
	if s == nil || s.db == nil {
		return Outcome{}, fmt.Errorf("postgres store not initialized")
	}
	target, err := PartitionPath(rec)
	if err != nil {
		return Outcome{}, err
	}
	raw, err := rec.Encode()
	if err != nil {
		return Outcome{}, fmt.Errorf("encode %s: %w", rec.RunID(), err)
	}
	submitted, err := rec.SubmittedAt()
	if err != nil {
		return Outcome{}, err
	}
	submitted = submitted.UTC()

	var inserted bool
	row := s.db.QueryRowContext(ctx, upsertResultQuery,
		rec.RunID(),
		submitted,
		submitted.Year(),
		int(submitted.Month()),
		target,
		ContentSHA256(raw),
		raw,
	)
	if err := row.Scan(&inserted); err != nil {
		return Outcome{}, fmt.Errorf("upsert %s: %w", rec.RunID(), err)
	}

	out := Outcome{Status: StatusStored, Path: target}
	if !inserted {
		out.Status = StatusDuplicateReplaced
	}
	return out, nil
}

func (s *Postgres) Get(ctx context.Context, runID string) (*result.Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("postgres store not initialized")
	}
	var raw []byte
	row := s.db.QueryRowContext(ctx, selectResultQuery, runID)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select %s: %w", runID, err)
	}
	rec, err := result.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", runID, err)
	}
	return rec, nil
}

func (s *Postgres) List(ctx context.Context) iter.Seq2[*result.Record, error] {
	return func(yield func(*result.Record, error) bool) {
		if s == nil || s.db == nil {
			yield(nil, fmt.Errorf("postgres store not initialized"))
			return
		}
		rows, err := s.db.QueryContext(ctx, listResultsQuery)
		if err != nil {
			yield(nil, fmt.Errorf("list results: %w", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			var raw []byte
			if err := rows.Scan(&raw); err != nil {
				yield(nil, fmt.Errorf("scan result row: %w", err))
				return
			}
			rec, err := result.Decode(raw)
			if !yield(rec, err) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterate results: %w", err))
		}
	}
}
