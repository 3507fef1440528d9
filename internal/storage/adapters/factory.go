// Package adapters selects and constructs the configured object
// storage implementation.
package adapters

import (
	"fmt"

	"github.com/quocbaobui/finance-download/internal/config"
	"github.com/quocbaobui/finance-download/internal/observability"
	"github.com/quocbaobui/finance-download/internal/storage"
	"github.com/quocbaobui/finance-download/internal/storage/adapters/fs"
	"github.com/quocbaobui/finance-download/internal/storage/adapters/s3"
)

// NewStorage builds the ObjectStorage adapter named by the
// configuration. An unreachable backend surfaces here as an error,
// which the caller treats as fatal.
func NewStorage(cfg *config.Config, logger observability.Logger, metrics observability.Metrics) (storage.ObjectStorage, error) {
	switch cfg.Storage.Provider {
	case "s3":
		logger.Info("Creating S3 storage adapter",
			"bucket", cfg.Storage.Bucket,
			"region", cfg.Storage.S3.Region)
		return s3.New(&cfg.Storage, logger, metrics)

	case "filesystem":
		logger.Info("Creating filesystem storage adapter",
			"path", cfg.Storage.FS.BasePath)
		return fs.New(cfg.Storage.FS.BasePath, logger, metrics)

	default:
		return nil, fmt.Errorf("unsupported storage adapter: %s", cfg.Storage.Provider)
	}
}
