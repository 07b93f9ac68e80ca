package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"moodle-sync/core/reconcile"
	"moodle-sync/core/storage"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Entry describes one archived report.
type Entry struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Archive stores run reports as JSON objects in a bucket.
type Archive struct {
	client    storage.Client
	bucket    string
	prefix    string
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time

	once      sync.Once
	bucketErr error
}

// NewArchive creates an archive on cfg.Bucket.
func NewArchive(client storage.Client, cfg storage.Config, logger *zap.Logger) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archive{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		logger:    logger,
		now:       time.Now,
	}
}

// Key returns the object name of a report: <prefix>/<kind>/<yyyy>/<mm>/<dd>/<started>-<run id>.json.
func (a *Archive) Key(r *reconcile.Report) string {
	started := r.StartedAt.UTC()
	name := fmt.Sprintf("%s-%s.json", started.Format("20060102T150405Z"), r.RunID)
	return path.Join(a.prefix, string(r.Kind), started.Format("2006/01/02"), name)
}

func (a *Archive) kindPrefix(kind reconcile.Kind) string {
	if kind == "" {
		if a.prefix == "" {
			return ""
		}
		return a.prefix + "/"
	}
	return path.Join(a.prefix, string(kind)) + "/"
}

// ensureBucket creates the bucket on first use.
func (a *Archive) ensureBucket(ctx context.Context) error {
	a.once.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucket)
		if err != nil {
			a.bucketErr = fmt.Errorf("check bucket %s: %w", a.bucket, err)
			return
		}
		if exists {
			return
		}
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			a.bucketErr = fmt.Errorf("create bucket %s: %w", a.bucket, err)
			return
		}
		a.logger.Info("Created report bucket", zap.String("bucket", a.bucket))
	})
	return a.bucketErr
}

// Publish uploads the report and prunes expired ones.
func (a *Archive) Publish(ctx context.Context, r *reconcile.Report) error {
	if err := a.ensureBucket(ctx); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	key := a.Key(r)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"kind":    string(r.Kind),
			"run-id":  r.RunID,
			"dry-run": fmt.Sprintf("%t", r.DryRun),
		},
	})
	if err != nil {
		return fmt.Errorf("upload report %s: %w", key, err)
	}
	a.logger.Debug("Report archived", zap.String("bucket", a.bucket), zap.String("key", key))

	if a.retention > 0 {
		if _, err := a.Prune(ctx); err != nil {
			a.logger.Warn("Report pruning failed", zap.Error(err))
		}
	}
	return nil
}

// List returns the archived reports of kind, newest first. An empty kind lists every report.
func (a *Archive) List(ctx context.Context, kind reconcile.Kind) ([]Entry, error) {
	var out []Entry
	for obj := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{Prefix: a.kindPrefix(kind), Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list reports: %w", obj.Err)
		}
		if !strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		out = append(out, Entry{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}

// Get downloads one report.
func (a *Archive) Get(ctx context.Context, key string) (*reconcile.Report, error) {
	if !strings.HasPrefix(key, a.kindPrefix("")) || strings.Contains(key, "..") {
		return nil, fmt.Errorf("invalid report key %q", key)
	}
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("download report %s: %w", key, err)
	}
	defer obj.Close()

	var r reconcile.Report
	if err := json.NewDecoder(obj).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", key, err)
	}
	return &r, nil
}

// Prune removes reports older than the retention period and returns how many were removed.
func (a *Archive) Prune(ctx context.Context) (int, error) {
	if a.retention <= 0 {
		return 0, nil
	}
	cutoff := a.now().Add(-a.retention)

	var expired []minio.ObjectInfo
	for obj := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{Prefix: a.kindPrefix(""), Recursive: true}) {
		if obj.Err != nil {
			return 0, fmt.Errorf("list reports: %w", obj.Err)
		}
		if obj.LastModified.Before(cutoff) {
			expired = append(expired, obj)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}

	objects := make(chan minio.ObjectInfo, len(expired))
	for _, obj := range expired {
		objects <- obj
	}
	close(objects)

	var firstErr error
	failed := 0
	for e := range a.client.RemoveObjects(ctx, a.bucket, objects, minio.RemoveObjectsOptions{}) {
		failed++
		if firstErr == nil {
			firstErr = fmt.Errorf("remove report %s: %w", e.ObjectName, e.Err)
		}
	}
	removed := len(expired) - failed
	if removed > 0 {
		a.logger.Info("Pruned expired reports", zap.Int("count", removed))
	}
	return removed, firstErr
}
