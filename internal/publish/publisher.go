// Package publish extracts a downloaded archive into an ephemeral
// working area and uploads every extracted member to object storage
// under a destination prefix, preserving in-archive paths.
package publish

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/quocbaobui/finance-download/internal/observability"
	"github.com/quocbaobui/finance-download/internal/storage"
)

// ErrBadArchive marks a corrupt or non-zip archive.
var ErrBadArchive = errors.New("malformed archive")

// contentType applied to every published member; file contents are
// treated as opaque binary.
const contentType = "application/octet-stream"

// Publisher owns the extract-and-upload half of a unit. It takes
// ownership of the archive file handed to it and removes it on every
// path once extraction has been attempted.
type Publisher struct {
	store   storage.ObjectStorage
	bucket  string
	prefix  string
	logger  observability.Logger
	metrics observability.Metrics
}

// New creates a Publisher uploading to the given bucket under prefix.
func New(store storage.ObjectStorage, bucket, prefix string, logger observability.Logger, metrics observability.Metrics) *Publisher {
	return &Publisher{
		store:   store,
		bucket:  bucket,
		prefix:  prefix,
		logger:  logger,
		metrics: metrics,
	}
}

// ExtractAndPublish extracts archivePath into a fresh temporary
// directory, uploads each member to {prefix}{relative path}, and
// removes both the working directory and the archive itself.
//
// A malformed archive fails the call but the archive file is still
// removed. An upload failure fails the call without rolling back
// members uploaded before it; re-running the unit overwrites them at
// the same keys.
func (p *Publisher) ExtractAndPublish(ctx context.Context, archivePath string) error {
	// The archive must not be reprocessed once extraction has been
	// attempted, so removal is unconditional.
	defer os.Remove(archivePath)

	workDir, err := os.MkdirTemp("", "sgx-extract-")
	if err != nil {
		return fmt.Errorf("failed to create extraction dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	p.logger.Info("Extracting archive", "archive", archivePath, "work_dir", workDir)

	memberCount, err := extractArchive(archivePath, workDir)
	if err != nil {
		p.logger.Error("Extraction failed", "archive", archivePath, "error", err)
		p.metrics.IncrementCounter("publish.extract.errors", nil)
		return err
	}

	uploaded, err := p.uploadDir(ctx, workDir)
	if err != nil {
		p.logger.Error("Upload failed", "archive", archivePath, "uploaded", uploaded, "error", err)
		p.metrics.IncrementCounter("publish.upload.errors", nil)
		return err
	}

	// Every extracted member must surface as a published object.
	if uploaded != memberCount {
		p.metrics.IncrementCounter("publish.upload.errors", nil)
		return fmt.Errorf("extracted %d members but uploaded %d", memberCount, uploaded)
	}

	p.logger.Info("Archive published", "archive", archivePath, "members", uploaded)
	p.metrics.IncrementCounter("publish.success", nil)
	p.metrics.RecordHistogram("publish.members", float64(uploaded), nil)

	return nil
}

// extractArchive extracts all members of the zip at archivePath into
// destDir and returns the number of file members.
func extractArchive(archivePath, destDir string) (int, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}
	defer reader.Close()

	count := 0
	for _, member := range reader.File {
		if member.FileInfo().IsDir() {
			continue
		}
		if err := extractMember(member, destDir); err != nil {
			return 0, err
		}
		count++
	}
	return count, nil
}

func extractMember(member *zip.File, destDir string) error {
	rel := filepath.FromSlash(member.Name)
	target := filepath.Join(destDir, rel)

	// Reject members that would escape the extraction root.
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("%w: illegal member path %q", ErrBadArchive, member.Name)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create member directory: %w", err)
	}

	src, err := member.Open()
	if err != nil {
		return fmt.Errorf("%w: cannot open member %q: %v", ErrBadArchive, member.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create member file: %w", err)
	}

	_, err = io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to extract member %q: %w", member.Name, err)
	}
	return nil
}

// uploadDir walks the extraction root and uploads each file, keyed by
// its path relative to the root joined onto the destination prefix.
// It stops at the first failure; earlier uploads stay published.
func (p *Publisher) uploadDir(ctx context.Context, root string) (int, error) {
	uploaded := 0

	err := filepath.WalkDir(root, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, filePath)
		if err != nil {
			return err
		}
		key := p.destinationKey(filepath.ToSlash(rel))

		if err := p.uploadFile(ctx, filePath, key); err != nil {
			return err
		}
		uploaded++
		return nil
	})

	return uploaded, err
}

func (p *Publisher) uploadFile(ctx context.Context, filePath, key string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open extracted member: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat extracted member: %w", err)
	}

	p.logger.Info("Uploading member", "key", key, "size_bytes", info.Size())

	err = p.store.Put(ctx, p.bucket, key, file, storage.ObjectMetadata{
		ContentType:   contentType,
		ContentLength: info.Size(),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// destinationKey joins the destination prefix with a member's relative
// path, preserving any directory structure from the archive.
func (p *Publisher) destinationKey(rel string) string {
	if p.prefix == "" {
		return rel
	}
	return path.Join(strings.TrimSuffix(p.prefix, "/"), rel)
}
