// Package config loads the application configuration from environment
// variables and optional .env files.
package config

import "fmt"

// Load reads configuration from .env files and the environment,
// applies defaults and validates the result. A validation failure is a
// setup error; the caller aborts the run rather than attempting a
// partial batch.
func Load() (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	cfg := parse()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// parse reads configuration from environment variables
func parse() *Config {
	return &Config{
		// Core
		Environment: getEnv("ENVIRONMENT", "local"),
		ServiceName: getEnv("SERVICE_NAME", "sgx-download"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogJSON:     getBool("LOG_JSON", false),

		// HTTP Configuration
		HTTP: HTTPConfig{
			Timeout:   getDuration("HTTP_TIMEOUT", "10s"),
			UserAgent: getEnv("HTTP_USER_AGENT", "sgx-download/1.0"),
		},

		// Storage Configuration
		Storage: StorageConfig{
			Provider:   getEnv("STORAGE_PROVIDER", "s3"),
			Bucket:     getEnv("S3_BUCKET", ""),
			Timeout:    getDuration("STORAGE_TIMEOUT", "30s"),
			MaxRetries: getInt("STORAGE_MAX_RETRIES", 3),
			S3: S3Config{
				Region:          getEnv("AWS_REGION", "us-east-1"),
				AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
				Endpoint:        getEnv("S3_ENDPOINT", ""),
			},
			FS: FSConfig{
				BasePath: getEnv("FS_BASE_PATH", "./data"),
			},
		},

		// Download Configuration
		Download: DownloadConfig{
			BaseURL:          getEnv("SGX_BASE_URL", "https://links.sgx.com/1.0.0/derivatives-historical"),
			AnchorDate:       getDate("ANCHOR_DATE", "2025-03-14"),
			AnchorIdentifier: getInt("ANCHOR_IDENTIFIER", 5898),
			FileTypes:        getList("FILE_TYPES", "WEBPXTICK_DT.zip"),
			DestinationPath:  getEnv("DESTINATION_PATH", "sgx-data/"),
			MissedFilesPath:  getEnv("MISSED_FILES_PATH", "missed_files.txt"),
			Workers:          getInt("DOWNLOAD_WORKERS", 1),
		},
	}
}
