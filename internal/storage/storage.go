// Package storage defines the object storage boundary the pipeline
// publishes extracted archive members to.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned when an object is not found in storage.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage abstracts the durable object store. Re-running a unit
// overwrites objects at the same key; Put is an overwrite, not an
// append.
type ObjectStorage interface {
	// Put stores an object in the specified bucket under the given key.
	Put(ctx context.Context, bucket, key string, reader io.Reader, metadata ObjectMetadata) error

	// Get retrieves an object from the specified bucket by key.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// Exists checks if an object exists in the specified bucket.
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// List returns the objects in the bucket under the given prefix.
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)

	// Delete removes an object from the specified bucket.
	Delete(ctx context.Context, bucket, key string) error
}

// ObjectMetadata represents metadata associated with stored objects.
type ObjectMetadata struct {
	ContentType   string
	ContentLength int64
	LastModified  time.Time
	UserMetadata  map[string]string
}

// ObjectInfo represents information about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}
