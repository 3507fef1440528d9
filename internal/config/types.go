package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/quocbaobui/finance-download/internal/calendar"
)

// Config holds all application configuration
type Config struct {
	// Core settings
	Environment string
	ServiceName string
	LogLevel    string
	LogJSON     bool

	// Component configurations
	HTTP     HTTPConfig
	Storage  StorageConfig
	Download DownloadConfig
}

// HTTPConfig holds HTTP client configuration
type HTTPConfig struct {
	Timeout   time.Duration
	UserAgent string
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Provider   string // "s3" or "filesystem"
	Bucket     string
	Timeout    time.Duration
	MaxRetries int
	S3         S3Config
	FS         FSConfig
}

// S3Config holds S3-specific configuration
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // custom endpoint for LocalStack/MinIO
}

// FSConfig holds filesystem adapter configuration
type FSConfig struct {
	BasePath string
}

// DownloadConfig holds the download pipeline configuration
type DownloadConfig struct {
	// BaseURL is the archive host endpoint; the resource identifier and
	// file type are appended as path segments.
	BaseURL string

	// AnchorDate and AnchorIdentifier form the fixed reference pair the
	// identifier sequence is counted from. AnchorDate must be a
	// business day.
	AnchorDate       time.Time
	AnchorIdentifier int

	// FileTypes is the ordered list of archive family templates fetched
	// per business day, e.g. "WEBPXTICK_DT.zip".
	FileTypes []string

	// DestinationPath is the object key prefix extracted members are
	// published under.
	DestinationPath string

	// MissedFilesPath is the append-only log of unreachable resources.
	MissedFilesPath string

	// Workers bounds concurrent (date, file type) units. 1 preserves
	// strictly sequential processing.
	Workers int
}

// Anchor returns the configured reference pair as a calendar anchor.
func (c *DownloadConfig) Anchor() calendar.Anchor {
	return calendar.Anchor{Date: c.AnchorDate, Identifier: c.AnchorIdentifier}
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	var errs []string

	if c.ServiceName == "" {
		errs = append(errs, "SERVICE_NAME is required")
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, "HTTP_TIMEOUT must be positive")
	}

	switch c.Storage.Provider {
	case "s3":
		if c.Storage.Bucket == "" {
			errs = append(errs, "S3_BUCKET is required when STORAGE_PROVIDER is s3")
		}
	case "filesystem":
		if c.Storage.FS.BasePath == "" {
			errs = append(errs, "FS_BASE_PATH is required when STORAGE_PROVIDER is filesystem")
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported STORAGE_PROVIDER: %s", c.Storage.Provider))
	}
	if c.Storage.Timeout <= 0 {
		errs = append(errs, "STORAGE_TIMEOUT must be positive")
	}
	if c.Storage.MaxRetries < 0 {
		errs = append(errs, "STORAGE_MAX_RETRIES cannot be negative")
	}

	if c.Download.BaseURL == "" {
		errs = append(errs, "SGX_BASE_URL is required")
	}
	if c.Download.AnchorDate.IsZero() {
		errs = append(errs, "ANCHOR_DATE must be a valid YYYY-MM-DD date")
	} else if !calendar.IsBusinessDay(c.Download.AnchorDate) {
		errs = append(errs, "ANCHOR_DATE must fall on a business day")
	}
	if c.Download.AnchorIdentifier < 0 {
		errs = append(errs, "ANCHOR_IDENTIFIER cannot be negative")
	}
	if len(c.Download.FileTypes) == 0 {
		errs = append(errs, "FILE_TYPES must list at least one file type")
	}
	for _, ft := range c.Download.FileTypes {
		if !strings.Contains(ft, ".") {
			errs = append(errs, fmt.Sprintf("file type %q has no extension", ft))
		}
	}
	if c.Download.MissedFilesPath == "" {
		errs = append(errs, "MISSED_FILES_PATH is required")
	}
	if c.Download.Workers < 1 {
		errs = append(errs, "DOWNLOAD_WORKERS must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// applyDefaults normalizes values that depend on other settings
func (c *Config) applyDefaults() {
	// Keys are joined as {prefix}{relative path}; a trailing separator
	// keeps the prefix a directory-like namespace.
	if c.Download.DestinationPath != "" && !strings.HasSuffix(c.Download.DestinationPath, "/") {
		c.Download.DestinationPath += "/"
	}
}

// Environment detection helpers
func (c *Config) IsLocal() bool {
	env := strings.ToLower(c.Environment)
	return env == "local" || env == "development" || env == "dev"
}

func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "production" || env == "prod"
}
