// Package storage provides the object storage client used by the package index.
//
// It wraps the MinIO Go client behind a small interface so the installer can
// list and download package archives from AWS S3 or a self-hosted MinIO
// bucket, and so tests can swap in core/storage/mocks.
//
// # Operations
//
//   - BucketExists: Verifies access to the index bucket.
//   - ListObjects: Lists archive objects under a package prefix.
//   - GetObject: Streams an archive.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	exists, err := client.BucketExists(ctx, cfg.Storage.Bucket)
package storage
