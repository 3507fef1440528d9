package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quocbaobui/finance-download/internal/calendar"
	"github.com/quocbaobui/finance-download/internal/config"
	"github.com/quocbaobui/finance-download/internal/observability"
)

// Fetcher downloads one remote archive per (date, file type) pair. A
// failed fetch is recorded in the missed-files log and reported as an
// error; it is never retried here.
type Fetcher struct {
	client    *http.Client
	baseURL   string
	userAgent string
	anchor    calendar.Anchor
	missed    *MissedLog
	tmpDir    string
	logger    observability.Logger
	metrics   observability.Metrics
}

// New creates a Fetcher from the application configuration.
func New(cfg *config.Config, missed *MissedLog, logger observability.Logger, metrics observability.Metrics) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: cfg.HTTP.Timeout},
		baseURL:   strings.TrimSuffix(cfg.Download.BaseURL, "/"),
		userAgent: cfg.HTTP.UserAgent,
		anchor:    cfg.Download.Anchor(),
		missed:    missed,
		tmpDir:    os.TempDir(),
		logger:    logger,
		metrics:   metrics,
	}
}

// URL builds the remote resource URL for the given date and file type
// by resolving the date to its sequential identifier.
func (f *Fetcher) URL(date time.Time, fileType FileType) string {
	id := f.anchor.ResolveIdentifier(date)
	return fmt.Sprintf("%s/%d/%s", f.baseURL, id, fileType)
}

// Fetch downloads the archive for (date, fileType) into a uniquely
// named transient file and returns its path. Ownership of the file
// passes to the caller. On any network failure, timeout or non-2xx
// status the URL is appended to the missed-files log and an error is
// returned; the caller treats this as a failed unit, not a fatal
// condition.
func (f *Fetcher) Fetch(ctx context.Context, date time.Time, fileType FileType) (string, error) {
	url := f.URL(date, fileType)
	start := time.Now()

	f.logger.Info("Starting download",
		"url", url,
		"date", date.Format("2006-01-02"),
		"file_type", string(fileType))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errRequestCreation(err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.recordMiss(url, err)
		return "", errHTTPRequest(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := errUnexpectedStatus(url, resp.StatusCode)
		f.recordMiss(url, err)
		return "", err
	}

	archivePath, err := f.writeArchive(resp.Body, date, fileType)
	if err != nil {
		f.recordMiss(url, err)
		return "", err
	}

	duration := time.Since(start)
	f.logger.Info("Downloaded archive",
		"url", url,
		"path", archivePath,
		"duration_ms", duration.Milliseconds())

	f.metrics.IncrementCounter("fetch.success", map[string]string{"file_type": string(fileType)})
	f.metrics.RecordHistogram("fetch.duration_ms", float64(duration.Milliseconds()), nil)

	return archivePath, nil
}

// writeArchive streams the response body to a uniquely named file so
// concurrent units never collide.
func (f *Fetcher) writeArchive(body io.Reader, date time.Time, fileType FileType) (string, error) {
	name := fmt.Sprintf("%s_%s", uuid.New().String(), fileType.Filename(date))
	archivePath := filepath.Join(f.tmpDir, name)

	file, err := os.Create(archivePath)
	if err != nil {
		return "", errWriteArchive(err)
	}

	size, err := io.Copy(file, body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(archivePath)
		return "", errWriteArchive(err)
	}

	f.metrics.RecordHistogram("fetch.size_bytes", float64(size), map[string]string{"file_type": string(fileType)})
	return archivePath, nil
}

func (f *Fetcher) recordMiss(url string, cause error) {
	f.logger.Error("Download failed", "url", url, "error", cause)
	f.metrics.IncrementCounter("fetch.errors", nil)

	if err := f.missed.Record(url); err != nil {
		f.logger.Error("Failed to record missed file", "url", url, "error", err)
	}
}
