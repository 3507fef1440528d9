package publish

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quocbaobui/finance-download/internal/observability"
	"github.com/quocbaobui/finance-download/internal/storage"
	"github.com/quocbaobui/finance-download/internal/storage/adapters/fs"
	storagemocks "github.com/quocbaobui/finance-download/internal/storage/mocks"
)

const testBucket = "sgx-test"

func testObservability(t *testing.T) (observability.Logger, observability.Metrics) {
	t.Helper()
	logger := observability.NewStdoutLogger(observability.LoggerOptions{Output: io.Discard})
	metrics := observability.NewPrometheusMetrics("test", prometheus.NewRegistry())
	return logger, metrics
}

func newFSStorage(t *testing.T) *fs.Storage {
	t.Helper()
	logger, metrics := testObservability(t)
	store, err := fs.New(t.TempDir(), logger, metrics)
	require.NoError(t, err)
	return store
}

// writeZip builds a zip fixture at a fresh path with the given
// member name to content mapping.
func writeZip(t *testing.T, members map[string]string) string {
	t.Helper()

	archivePath := filepath.Join(t.TempDir(), "fixture.zip")
	file, err := os.Create(archivePath)
	require.NoError(t, err)

	zw := zip.NewWriter(file)
	for name, content := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, file.Close())

	return archivePath
}

func readObject(t *testing.T, store storage.ObjectStorage, key string) string {
	t.Helper()

	reader, err := store.Get(context.Background(), testBucket, key)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	return string(data)
}

func TestExtractAndPublish_RoundTrip(t *testing.T) {
	store := newFSStorage(t)
	logger, metrics := testObservability(t)
	publisher := New(store, testBucket, "sgx-data/", logger, metrics)

	archivePath := writeZip(t, map[string]string{
		"a.csv":     "Comm,Price\nAU,101.5\n",
		"sub/b.csv": "Comm,Price\nNK,202.0\n",
	})

	require.NoError(t, publisher.ExtractAndPublish(context.Background(), archivePath))

	// Exactly the extracted member set, under the destination prefix,
	// with matching content.
	objects, err := store.List(context.Background(), testBucket, "sgx-data/")
	require.NoError(t, err)
	require.Len(t, objects, 2)

	assert.Equal(t, "Comm,Price\nAU,101.5\n", readObject(t, store, "sgx-data/a.csv"))
	assert.Equal(t, "Comm,Price\nNK,202.0\n", readObject(t, store, "sgx-data/sub/b.csv"))

	// The source archive is gone.
	_, statErr := os.Stat(archivePath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractAndPublish_EmptyPrefix(t *testing.T) {
	store := newFSStorage(t)
	logger, metrics := testObservability(t)
	publisher := New(store, testBucket, "", logger, metrics)

	archivePath := writeZip(t, map[string]string{"tick.csv": "data"})
	require.NoError(t, publisher.ExtractAndPublish(context.Background(), archivePath))

	assert.Equal(t, "data", readObject(t, store, "tick.csv"))
}

func TestExtractAndPublish_Idempotent(t *testing.T) {
	store := newFSStorage(t)
	logger, metrics := testObservability(t)
	publisher := New(store, testBucket, "sgx-data/", logger, metrics)

	members := map[string]string{"a.csv": "first"}
	require.NoError(t, publisher.ExtractAndPublish(context.Background(), writeZip(t, members)))

	// Re-running the same unit overwrites, it does not duplicate.
	members["a.csv"] = "second"
	require.NoError(t, publisher.ExtractAndPublish(context.Background(), writeZip(t, members)))

	objects, err := store.List(context.Background(), testBucket, "sgx-data/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "second", readObject(t, store, "sgx-data/a.csv"))
}

func TestExtractAndPublish_MalformedArchive(t *testing.T) {
	store := newFSStorage(t)
	logger, metrics := testObservability(t)
	publisher := New(store, testBucket, "sgx-data/", logger, metrics)

	archivePath := filepath.Join(t.TempDir(), "broken.zip")
	require.NoError(t, os.WriteFile(archivePath, []byte("this is not a zip"), 0o644))

	err := publisher.ExtractAndPublish(context.Background(), archivePath)
	assert.ErrorIs(t, err, ErrBadArchive)

	// Nothing published, archive still removed.
	objects, listErr := store.List(context.Background(), testBucket, "")
	require.NoError(t, listErr)
	assert.Empty(t, objects)

	_, statErr := os.Stat(archivePath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractAndPublish_ZipSlipMember(t *testing.T) {
	store := newFSStorage(t)
	logger, metrics := testObservability(t)
	publisher := New(store, testBucket, "sgx-data/", logger, metrics)

	archivePath := writeZip(t, map[string]string{"../escape.csv": "nope"})

	err := publisher.ExtractAndPublish(context.Background(), archivePath)
	assert.ErrorIs(t, err, ErrBadArchive)
}

func TestExtractAndPublish_UploadFailureKeepsSiblings(t *testing.T) {
	logger, metrics := testObservability(t)

	store := &storagemocks.MockObjectStorage{}
	store.On("Put", mock.Anything, testBucket, "sgx-data/a.csv", mock.Anything, mock.Anything).
		Return(nil)
	store.On("Put", mock.Anything, testBucket, "sgx-data/sub/b.csv", mock.Anything, mock.Anything).
		Return(errors.New("backend unavailable"))

	publisher := New(store, testBucket, "sgx-data/", logger, metrics)

	archivePath := writeZip(t, map[string]string{
		"a.csv":     "kept",
		"sub/b.csv": "failed",
	})

	err := publisher.ExtractAndPublish(context.Background(), archivePath)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBadArchive)

	// The first member was uploaded and never deleted afterward.
	store.AssertCalled(t, "Put", mock.Anything, testBucket, "sgx-data/a.csv", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)

	// Extraction succeeded, so the archive is removed even though an
	// upload failed.
	_, statErr := os.Stat(archivePath)
	assert.True(t, os.IsNotExist(statErr))
}
