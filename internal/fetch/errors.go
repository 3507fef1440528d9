package fetch

import (
	"errors"
	"fmt"
)

// ErrUnexpectedStatus marks a non-2xx response from the archive host.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// Error wrapping functions with context
func errRequestCreation(err error) error {
	return fmt.Errorf("failed to create HTTP request: %w", err)
}

func errHTTPRequest(url string, err error) error {
	return fmt.Errorf("request to %s failed: %w", url, err)
}

func errUnexpectedStatus(url string, statusCode int) error {
	return fmt.Errorf("%w %d from %s", ErrUnexpectedStatus, statusCode, url)
}

func errWriteArchive(err error) error {
	return fmt.Errorf("failed to write archive to temp file: %w", err)
}
