// Package fs implements the object storage boundary on the local
// filesystem. It is used for local runs and tests; keys map to file
// paths under a base directory.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/quocbaobui/finance-download/internal/observability"
	"github.com/quocbaobui/finance-download/internal/storage"
)

// metaDir holds metadata sidecar files inside each bucket directory.
const metaDir = ".meta"

// Storage implements ObjectStorage using the local filesystem
type Storage struct {
	basePath string
	logger   observability.Logger
	metrics  observability.Metrics
}

// New creates a new filesystem-based object storage rooted at basePath
func New(basePath string, logger observability.Logger, metrics observability.Metrics) (*Storage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		logger.Error("Failed to create base path", "path", basePath, "error", err)
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	logger.Info("Filesystem storage initialized", "base_path", basePath)

	return &Storage{
		basePath: basePath,
		logger:   logger.WithFields(map[string]interface{}{"component": "filesystem_storage"}),
		metrics:  metrics.WithTags(map[string]string{"storage": "filesystem"}),
	}, nil
}

// Put stores an object
func (s *Storage) Put(ctx context.Context, bucket, key string, reader io.Reader, metadata storage.ObjectMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	objectPath := s.objectPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(objectPath), 0o755); err != nil {
		s.metrics.IncrementCounter("storage.put.errors", map[string]string{"error": "mkdir"})
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	file, err := os.Create(objectPath)
	if err != nil {
		s.metrics.IncrementCounter("storage.put.errors", map[string]string{"error": "create"})
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	bytesWritten, err := io.Copy(file, reader)
	if err != nil {
		s.metrics.IncrementCounter("storage.put.errors", map[string]string{"error": "write"})
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := s.saveMetadata(bucket, key, metadata); err != nil {
		s.metrics.IncrementCounter("storage.put.errors", map[string]string{"error": "metadata"})
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	s.logger.Info("Object stored", "bucket", bucket, "key", key, "bytes", bytesWritten)
	s.metrics.IncrementCounter("storage.put.success", nil)
	s.metrics.RecordHistogram("storage.put.bytes", float64(bytesWritten), nil)

	return nil
}

// Get retrieves an object
func (s *Storage) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(s.objectPath(bucket, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return file, nil
}

// Exists checks if an object exists
func (s *Storage) Exists(ctx context.Context, bucket, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(s.objectPath(bucket, key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}

// List returns the objects in the bucket under the given prefix
func (s *Storage) List(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bucketPath := filepath.Join(s.basePath, bucket)
	var objects []storage.ObjectInfo

	err := filepath.WalkDir(bucketPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == metaDir {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(bucketPath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, storage.ObjectInfo{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	return objects, nil
}

// Delete removes an object and its metadata sidecar
func (s *Storage) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(s.objectPath(bucket, key)); err != nil {
		if os.IsNotExist(err) {
			return storage.ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	_ = os.Remove(s.metadataPath(bucket, key))
	return nil
}

func (s *Storage) objectPath(bucket, key string) string {
	return filepath.Join(s.basePath, bucket, filepath.FromSlash(key))
}

func (s *Storage) metadataPath(bucket, key string) string {
	return filepath.Join(s.basePath, bucket, metaDir, filepath.FromSlash(key)+".json")
}

func (s *Storage) saveMetadata(bucket, key string, metadata storage.ObjectMetadata) error {
	metaPath := s.metadataPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(metaPath), 0o755); err != nil {
		return err
	}

	data, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	return os.WriteFile(metaPath, data, 0o644)
}

// Metadata reads back the metadata stored alongside an object.
func (s *Storage) Metadata(bucket, key string) (*storage.ObjectMetadata, error) {
	data, err := os.ReadFile(s.metadataPath(bucket, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrObjectNotFound
		}
		return nil, err
	}

	var metadata storage.ObjectMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, err
	}
	return &metadata, nil
}
