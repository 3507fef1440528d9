package fetch

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// MissedLog is the append-only record of unreachable remote resources,
// one line per failure: "YYYY-MM-DD - <url>". Appends are serialized so
// concurrent units never interleave lines.
type MissedLog struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewMissedLog creates a missed-files log backed by the file at path.
// The file is created on first append.
func NewMissedLog(path string) *MissedLog {
	return &MissedLog{
		path: path,
		now:  time.Now,
	}
}

// Record appends one failure line for url.
func (l *MissedLog) Record(url string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open missed-files log: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s - %s\n", l.now().Format("2006-01-02"), url); err != nil {
		return fmt.Errorf("failed to append to missed-files log: %w", err)
	}
	return nil
}
