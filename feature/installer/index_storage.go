package installer

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"app-bootstrap/core/storage"

	"github.com/minio/minio-go/v7"
)

const archiveExt = ".tar.gz"

// StorageIndex serves packages from an S3/MinIO bucket laid out as
// <prefix><name>/<version>.tar.gz.
type StorageIndex struct {
	client  storage.Client
	bucket  string
	prefix  string
	checked bool
}

// NewStorageIndex creates an index over bucket.
func NewStorageIndex(client storage.Client, bucket, prefix string) *StorageIndex {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &StorageIndex{client: client, bucket: bucket, prefix: prefix}
}

func (s *StorageIndex) ensureBucket(ctx context.Context) error {
	if s.checked {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	s.checked = true
	return nil
}

// Versions lists the archives stored under the package prefix.
func (s *StorageIndex) Versions(ctx context.Context, name string) ([]string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}

	dir := s.prefix + name + "/"
	var versions []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: dir}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, obj.Err)
		}
		file := strings.TrimPrefix(obj.Key, dir)
		if strings.Contains(file, "/") || !strings.HasSuffix(file, archiveExt) {
			continue
		}
		versions = append(versions, strings.TrimSuffix(file, archiveExt))
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrPackageNotFound)
	}
	return versions, nil
}

// Fetch streams the archive object.
func (s *StorageIndex) Fetch(ctx context.Context, name, version string) (io.ReadCloser, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	key := path.Join(s.prefix, name, version+archiveExt)
	return s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
}
