// Package pipeline drives per-date and date-range downloads: it maps
// the requested span onto business days, dispatches one
// fetch-extract-publish unit per (date, file type) pair, and
// aggregates success and failure without aborting the batch.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/quocbaobui/finance-download/internal/calendar"
	"github.com/quocbaobui/finance-download/internal/fetch"
	"github.com/quocbaobui/finance-download/internal/observability"
)

// Fetcher downloads one archive and returns the transient file path.
type Fetcher interface {
	Fetch(ctx context.Context, date time.Time, fileType fetch.FileType) (string, error)
}

// Publisher consumes a downloaded archive, uploading its members.
type Publisher interface {
	ExtractAndPublish(ctx context.Context, archivePath string) error
}

// Orchestrator coordinates units across one of three entry modes:
// single date, explicit range, or auto (anchor date up to the last
// business day before an injected "now").
type Orchestrator struct {
	fetcher   Fetcher
	publisher Publisher
	fileTypes []fetch.FileType
	anchor    calendar.Anchor
	workers   int
	logger    observability.Logger
	metrics   observability.Metrics
}

// New creates an Orchestrator. workers bounds concurrent in-flight
// units; 1 preserves strictly sequential processing.
func New(
	fetcher Fetcher,
	publisher Publisher,
	fileTypes []fetch.FileType,
	anchor calendar.Anchor,
	workers int,
	logger observability.Logger,
	metrics observability.Metrics,
) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		fetcher:   fetcher,
		publisher: publisher,
		fileTypes: fileTypes,
		anchor:    anchor,
		workers:   workers,
		logger:    logger,
		metrics:   metrics,
	}
}

// unit is one (date, file type) fetch-extract-publish operation, the
// smallest failure granularity.
type unit struct {
	date     time.Time
	fileType fetch.FileType
}

// Summary aggregates per-unit outcomes for one run.
type Summary struct {
	// Units is the number of dispatched (date, file type) units.
	Units int
	// Succeeded counts units that fetched and published fully.
	Succeeded int
	// Failed counts units that failed at any stage.
	Failed int
	// SkippedDays counts non-business days encountered in the span.
	SkippedDays int
}

// OK reports whether every dispatched unit succeeded.
func (s Summary) OK() bool {
	return s.Failed == 0
}

func (s *Summary) add(other Summary) {
	s.Units += other.Units
	s.Succeeded += other.Succeeded
	s.Failed += other.Failed
	s.SkippedDays += other.SkippedDays
}

// RunDate processes a single date. A non-business day dispatches
// nothing and is reported as skipped.
func (o *Orchestrator) RunDate(ctx context.Context, date time.Time) Summary {
	date = calendar.Midnight(date)

	if !calendar.IsBusinessDay(date) {
		o.logger.Info("No files for this date",
			"date", date.Format("2006-01-02"),
			"reason", "weekend")
		return Summary{SkippedDays: 1}
	}

	units := make([]unit, 0, len(o.fileTypes))
	for _, ft := range o.fileTypes {
		units = append(units, unit{date: date, fileType: ft})
	}
	return o.process(ctx, units)
}

// RunRange processes every calendar day from start to end inclusive.
// Business days dispatch all configured file types; other days are
// logged and skipped. A failed unit never stops subsequent units.
func (o *Orchestrator) RunRange(ctx context.Context, start, end time.Time) Summary {
	start = calendar.Midnight(start)
	end = calendar.Midnight(end)

	var units []unit
	summary := Summary{}

	for current := start; !current.After(end); current = current.AddDate(0, 0, 1) {
		if !calendar.IsBusinessDay(current) {
			o.logger.Info("Skipping non-business day", "date", current.Format("2006-01-02"))
			summary.SkippedDays++
			continue
		}
		for _, ft := range o.fileTypes {
			units = append(units, unit{date: current, fileType: ft})
		}
	}

	summary.add(o.process(ctx, units))
	return summary
}

// RunAuto processes the span from the anchor date up to the last
// business day before now. now is injected by the caller so the run is
// deterministic under test.
func (o *Orchestrator) RunAuto(ctx context.Context, now time.Time) Summary {
	end := calendar.PreviousBusinessDay(now)
	anchorDate := calendar.Midnight(o.anchor.Date)

	if end.Before(anchorDate) {
		o.logger.Info("Nothing to download: last business day is before the anchor date",
			"anchor_date", anchorDate.Format("2006-01-02"),
			"last_business_day", end.Format("2006-01-02"))
		return Summary{}
	}

	o.logger.Info("Auto downloading",
		"from", anchorDate.Format("2006-01-02"),
		"to", end.Format("2006-01-02"))

	return o.RunRange(ctx, anchorDate, end)
}

// process dispatches units sequentially or through a bounded worker
// pool. Unit boundaries are the only cancellation checkpoints; a
// mid-unit interruption may leave transient files behind.
func (o *Orchestrator) process(ctx context.Context, units []unit) Summary {
	if len(units) == 0 {
		return Summary{}
	}

	if o.workers == 1 {
		summary := Summary{}
		for _, u := range units {
			if ctx.Err() != nil {
				o.logger.Warn("Batch interrupted", "units_remaining", len(units)-summary.Units)
				break
			}
			o.tally(&summary, o.processUnit(ctx, u))
		}
		return summary
	}

	jobs := make(chan unit)
	var wg sync.WaitGroup
	var mu sync.Mutex
	summary := Summary{}

	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range jobs {
				err := o.processUnit(ctx, u)
				mu.Lock()
				o.tally(&summary, err)
				mu.Unlock()
			}
		}()
	}

	for _, u := range units {
		if ctx.Err() != nil {
			break
		}
		jobs <- u
	}
	close(jobs)
	wg.Wait()

	return summary
}

// processUnit runs one fetch-extract-publish unit. Its error is
// consumed here; failures surface only through logs, metrics and the
// missed-files record.
func (o *Orchestrator) processUnit(ctx context.Context, u unit) error {
	archivePath, err := o.fetcher.Fetch(ctx, u.date, u.fileType)
	if err != nil {
		o.logger.Error("Unit failed during fetch",
			"date", u.date.Format("2006-01-02"),
			"file_type", string(u.fileType),
			"error", err)
		return err
	}

	if err := o.publisher.ExtractAndPublish(ctx, archivePath); err != nil {
		o.logger.Error("Unit failed during publish",
			"date", u.date.Format("2006-01-02"),
			"file_type", string(u.fileType),
			"error", err)
		return err
	}

	return nil
}

func (o *Orchestrator) tally(summary *Summary, err error) {
	summary.Units++
	if err != nil {
		summary.Failed++
		o.metrics.IncrementCounter("pipeline.units.failed", nil)
		return
	}
	summary.Succeeded++
	o.metrics.IncrementCounter("pipeline.units.succeeded", nil)
}
