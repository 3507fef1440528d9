package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quocbaobui/finance-download/internal/calendar"
	"github.com/quocbaobui/finance-download/internal/fetch"
	"github.com/quocbaobui/finance-download/internal/observability"
	obsmocks "github.com/quocbaobui/finance-download/internal/observability/mocks"
)

var testAnchor = calendar.Anchor{Date: calendar.Date(2025, time.March, 14), Identifier: 5898}

// stubFetcher materializes an empty archive file per call and can be
// told to fail for specific dates, simulating a host outage.
type stubFetcher struct {
	dir       string
	failDates map[string]bool

	mu    sync.Mutex
	calls []string
}

func (f *stubFetcher) Fetch(ctx context.Context, date time.Time, fileType fetch.FileType) (string, error) {
	day := date.Format("2006-01-02")

	f.mu.Lock()
	f.calls = append(f.calls, day+" "+string(fileType))
	f.mu.Unlock()

	if f.failDates[day] {
		return "", errors.New("host unreachable")
	}

	path := filepath.Join(f.dir, uuid.New().String())
	if err := os.WriteFile(path, []byte("archive"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// stubPublisher consumes archives, optionally failing every call.
type stubPublisher struct {
	fail bool

	mu        sync.Mutex
	published []string
}

func (p *stubPublisher) ExtractAndPublish(ctx context.Context, archivePath string) error {
	defer os.Remove(archivePath)

	if p.fail {
		return errors.New("upload failed")
	}

	p.mu.Lock()
	p.published = append(p.published, archivePath)
	p.mu.Unlock()
	return nil
}

func newTestOrchestrator(t *testing.T, fetcher Fetcher, publisher Publisher, fileTypes []fetch.FileType, workers int) *Orchestrator {
	t.Helper()
	logger := observability.NewStdoutLogger(observability.LoggerOptions{Output: io.Discard})
	metrics := observability.NewPrometheusMetrics("test", prometheus.NewRegistry())
	return New(fetcher, publisher, fileTypes, testAnchor, workers, logger, metrics)
}

func TestRunDate_BusinessDay(t *testing.T) {
	fetcher := &stubFetcher{dir: t.TempDir()}
	publisher := &stubPublisher{}
	orch := newTestOrchestrator(t, fetcher, publisher, []fetch.FileType{"WEBPXTICK_DT.zip", "TC.txt"}, 1)

	summary := orch.RunDate(context.Background(), calendar.Date(2025, time.March, 17))

	assert.Equal(t, 2, summary.Units)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.True(t, summary.OK())
	assert.Equal(t, []string{"2025-03-17 WEBPXTICK_DT.zip", "2025-03-17 TC.txt"}, fetcher.calls)
}

func TestRunDate_Weekend(t *testing.T) {
	fetcher := &stubFetcher{dir: t.TempDir()}
	orch := newTestOrchestrator(t, fetcher, &stubPublisher{}, []fetch.FileType{"WEBPXTICK_DT.zip"}, 1)

	summary := orch.RunDate(context.Background(), calendar.Date(2025, time.March, 16))

	assert.Equal(t, 0, summary.Units)
	assert.Equal(t, 1, summary.SkippedDays)
	assert.True(t, summary.OK())
	assert.Zero(t, fetcher.callCount())
}

func TestRunRange_WeekendOnly(t *testing.T) {
	// Saturday through Sunday: zero units dispatched, zero fetch calls.
	fetcher := &stubFetcher{dir: t.TempDir()}
	orch := newTestOrchestrator(t, fetcher, &stubPublisher{}, []fetch.FileType{"WEBPXTICK_DT.zip"}, 1)

	summary := orch.RunRange(context.Background(),
		calendar.Date(2025, time.March, 15),
		calendar.Date(2025, time.March, 16))

	assert.Equal(t, 0, summary.Units)
	assert.Equal(t, 2, summary.SkippedDays)
	assert.True(t, summary.OK())
	assert.Zero(t, fetcher.callCount())
}

func TestRunRange_ContinuesPastOutage(t *testing.T) {
	// One date's host outage fails that unit only; the rest of the
	// range completes.
	fetcher := &stubFetcher{
		dir:       t.TempDir(),
		failDates: map[string]bool{"2025-03-18": true},
	}
	publisher := &stubPublisher{}
	orch := newTestOrchestrator(t, fetcher, publisher, []fetch.FileType{"WEBPXTICK_DT.zip"}, 1)

	summary := orch.RunRange(context.Background(),
		calendar.Date(2025, time.March, 17),
		calendar.Date(2025, time.March, 19))

	assert.Equal(t, 3, summary.Units)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, summary.OK())
	assert.Len(t, publisher.published, 2)
}

func TestRunRange_PublishFailureDoesNotAbort(t *testing.T) {
	fetcher := &stubFetcher{dir: t.TempDir()}
	publisher := &stubPublisher{fail: true}
	orch := newTestOrchestrator(t, fetcher, publisher, []fetch.FileType{"WEBPXTICK_DT.zip"}, 1)

	summary := orch.RunRange(context.Background(),
		calendar.Date(2025, time.March, 17),
		calendar.Date(2025, time.March, 18))

	assert.Equal(t, 2, summary.Units)
	assert.Equal(t, 0, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 2, fetcher.callCount(), "every unit is still attempted")
}

func TestRunRange_SkipsWeekendInsideSpan(t *testing.T) {
	fetcher := &stubFetcher{dir: t.TempDir()}
	orch := newTestOrchestrator(t, fetcher, &stubPublisher{}, []fetch.FileType{"WEBPXTICK_DT.zip"}, 1)

	// Friday through Monday: two business days, two weekend days.
	summary := orch.RunRange(context.Background(),
		calendar.Date(2025, time.March, 14),
		calendar.Date(2025, time.March, 17))

	assert.Equal(t, 2, summary.Units)
	assert.Equal(t, 2, summary.SkippedDays)
}

func TestRunAuto(t *testing.T) {
	tests := []struct {
		name          string
		now           time.Time
		expectedUnits int
	}{
		{
			name: "tuesday covers anchor friday and monday",
			now:  calendar.Date(2025, time.March, 18),
			// end = Monday 17th; business days in [14th, 17th] are the
			// 14th and the 17th.
			expectedUnits: 2,
		},
		{
			name:          "saturday after anchor covers the anchor day only",
			now:           calendar.Date(2025, time.March, 15),
			expectedUnits: 1,
		},
		{
			name: "anchor day itself has nothing new to fetch",
			now:  calendar.Date(2025, time.March, 14),
			// previous business day (the 13th) precedes the anchor.
			expectedUnits: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &stubFetcher{dir: t.TempDir()}
			orch := newTestOrchestrator(t, fetcher, &stubPublisher{}, []fetch.FileType{"WEBPXTICK_DT.zip"}, 1)

			summary := orch.RunAuto(context.Background(), tt.now)

			assert.Equal(t, tt.expectedUnits, summary.Units)
			assert.Equal(t, tt.expectedUnits, fetcher.callCount())
			assert.True(t, summary.OK())
		})
	}
}

func TestProcess_BoundedWorkers(t *testing.T) {
	fetcher := &stubFetcher{dir: t.TempDir()}
	publisher := &stubPublisher{}
	orch := newTestOrchestrator(t, fetcher, publisher,
		[]fetch.FileType{"WEBPXTICK_DT.zip", "TC.txt"}, 4)

	// Two work weeks, ten business days, twenty units.
	summary := orch.RunRange(context.Background(),
		calendar.Date(2025, time.March, 10),
		calendar.Date(2025, time.March, 21))

	assert.Equal(t, 20, summary.Units)
	assert.Equal(t, 20, summary.Succeeded)
	assert.Equal(t, 2, summary.SkippedDays)
	assert.True(t, summary.OK())
	assert.Len(t, publisher.published, 20)
}

func TestProcess_CancelledContext(t *testing.T) {
	fetcher := &stubFetcher{dir: t.TempDir()}
	orch := newTestOrchestrator(t, fetcher, &stubPublisher{}, []fetch.FileType{"WEBPXTICK_DT.zip"}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := orch.RunRange(ctx,
		calendar.Date(2025, time.March, 17),
		calendar.Date(2025, time.March, 21))

	assert.Zero(t, summary.Units)
	assert.Zero(t, fetcher.callCount())
}

func TestProcessUnit_LogsFetchFailure(t *testing.T) {
	fetcher := &stubFetcher{
		dir:       t.TempDir(),
		failDates: map[string]bool{"2025-03-17": true},
	}

	logger := &obsmocks.MockLogger{}
	logger.On("Info", mock.Anything, mock.Anything).Return()
	logger.On("Error", mock.Anything, mock.Anything).Return()
	metrics := observability.NewPrometheusMetrics("test", prometheus.NewRegistry())

	orch := New(fetcher, &stubPublisher{}, []fetch.FileType{"WEBPXTICK_DT.zip"}, testAnchor, 1, logger, metrics)

	summary := orch.RunDate(context.Background(), calendar.Date(2025, time.March, 17))
	require.Equal(t, 1, summary.Failed)

	logger.AssertCalled(t, "Error", "Unit failed during fetch", mock.Anything)
}
