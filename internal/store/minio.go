package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"

	"github.com/pawmate-labs/benchboard/internal/platform/objectstore"
	"github.com/pawmate-labs/benchboard/internal/result"
)

// Minio keeps documents in an S3-compatible bucket under the same
// partitioned key layout the filesystem backend uses. Object puts are
// atomic on the server side, so no temp-and-rename dance is needed; the
// process-level mutex only serializes the find-then-replace window.
type Minio struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
	mu     sync.Mutex
}

func NewMinio(cfg objectstore.Config) (*Minio, error) {
	client, err := objectstore.NewMinIOClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewMinioWithClient(client, cfg.BucketSubmissions)
}

func NewMinioWithClient(client *minio.Client, bucket string) (*Minio, error) {
	if client == nil {
		return nil, fmt.Errorf("minio client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &Minio{client: client, bucket: bucket, logger: slog.Default()}, nil
}

// SetLogger replaces the logger used for non-fatal storage warnings.
func (s *Minio) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func (s *Minio) Put(ctx context.Context, rec *result.Record) (Outcome, error) {
	if s == nil || s.client == nil {
		return Outcome{}, fmt.Errorf("minio store not initialized")
	}
	target, err := PartitionPath(rec)
	if err != nil {
		return Outcome{}, err
	}
	raw, err := rec.Encode()
	if err != nil {
		return Outcome{}, fmt.Errorf("encode %s: %w", rec.RunID(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.find(ctx, rec.RunID())
	if err != nil {
		return Outcome{}, err
	}

	_, err = s.client.PutObject(ctx, s.bucket, target, bytes.NewReader(raw), int64(len(raw)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return Outcome{}, fmt.Errorf("put %s: %w", target, err)
	}

	out := Outcome{Status: StatusStored, Path: target}
	if existing != "" {
		out.Status = StatusDuplicateReplaced
		out.ReplacedPath = existing
	}
	if existing != "" && existing != target {
		// The new object is already committed; a failed cleanup must
		// not turn the write into an error.
		if err := s.client.RemoveObject(ctx, s.bucket, existing, minio.RemoveObjectOptions{}); err != nil {
			s.logger.Warn("superseded document left behind",
				slog.String("run_id", rec.RunID()),
				slog.String("key", existing),
				slog.String("error", err.Error()))
		}
	}
	return out, nil
}

func (s *Minio) Get(ctx context.Context, runID string) (*result.Record, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("minio store not initialized")
	}
	key, err := s.find(ctx, runID)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrNotFound
	}
	return s.fetch(ctx, key)
}

func (s *Minio) List(ctx context.Context) iter.Seq2[*result.Record, error] {
	return func(yield func(*result.Record, error) bool) {
		if s == nil || s.client == nil {
			yield(nil, fmt.Errorf("minio store not initialized"))
			return
		}
		opts := minio.ListObjectsOptions{Prefix: submissionsPrefix + "/", Recursive: true}
		for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
			if obj.Err != nil {
				if !yield(nil, fmt.Errorf("list %s: %w", s.bucket, obj.Err)) {
					return
				}
				continue
			}
			if !isDocumentKey(obj.Key) {
				continue
			}
			rec, err := s.fetch(ctx, obj.Key)
			if !yield(rec, err) {
				return
			}
		}
	}
}

func (s *Minio) fetch(ctx context.Context, key string) (*result.Record, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()
	raw, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	rec, err := result.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return rec, nil
}

// find lists every partition for <runID>.json so dedup works across
// months, same as the filesystem backend.
func (s *Minio) find(ctx context.Context, runID string) (string, error) {
	want := "/" + runID + ".json"
	opts := minio.ListObjectsOptions{Prefix: submissionsPrefix + "/", Recursive: true}
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return "", fmt.Errorf("list %s: %w", s.bucket, obj.Err)
		}
		if strings.HasSuffix(obj.Key, want) {
			return obj.Key, nil
		}
	}
	return "", nil
}

func isDocumentKey(key string) bool {
	base := key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		base = key[i+1:]
	}
	return isDocumentName(base)
}
