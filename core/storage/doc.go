// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind a small interface used by the run report archive.
// Both AWS S3 and self-hosted MinIO instances are supported.
//
// # Client Interface
//
// The Client interface abstracts the underlying storage provider, making it easier
// to mock storage interactions for unit testing (as seen in core/storage/mocks).
//
// # Operations
//
//   - BucketExists: Verifies access to the target bucket.
//   - MakeBucket: Creates a new bucket if needed.
//   - PutObject: Uploads a report.
//   - GetObject: Retrieves a report as a stream.
//   - ListObjects: Lists reports under a prefix.
//   - RemoveObjects: Prunes expired reports.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	exists, err := client.BucketExists(ctx, cfg.Storage.Bucket)
package storage
