// Command sgx-download fetches daily derivatives archives from the SGX
// publication endpoint and stages their extracted contents into object
// storage. It supports a single date, an explicit date range, the most
// recent business day, or an automatic run from the configured anchor
// date.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quocbaobui/finance-download/internal/calendar"
	"github.com/quocbaobui/finance-download/internal/config"
	"github.com/quocbaobui/finance-download/internal/fetch"
	"github.com/quocbaobui/finance-download/internal/observability"
	"github.com/quocbaobui/finance-download/internal/pipeline"
	"github.com/quocbaobui/finance-download/internal/publish"
	"github.com/quocbaobui/finance-download/internal/storage/adapters"
)

func main() {
	os.Exit(run(os.Args[1:], time.Now()))
}

// run wires the application and dispatches the requested mode. It is
// the only place that decides the process exit code: setup failures
// and batches with any failed unit both exit non-zero.
func run(args []string, now time.Time) int {
	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	logger := observability.NewStdoutLogger(observability.LoggerOptions{
		Level: observability.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	metrics := observability.NewPrometheusMetrics(cfg.ServiceName, nil)

	logger.Info("Starting",
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
		"storage_provider", cfg.Storage.Provider)

	store, err := adapters.NewStorage(cfg, logger, metrics)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		return 1
	}

	missed := fetch.NewMissedLog(cfg.Download.MissedFilesPath)
	fetcher := fetch.New(cfg, missed,
		logger.WithFields(map[string]interface{}{"component": "fetcher"}), metrics)
	publisher := publish.New(store, cfg.Storage.Bucket, cfg.Download.DestinationPath,
		logger.WithFields(map[string]interface{}{"component": "publisher"}), metrics)
	orchestrator := pipeline.New(fetcher, publisher,
		fetch.FileTypes(cfg.Download.FileTypes),
		cfg.Download.Anchor(),
		cfg.Download.Workers,
		logger.WithFields(map[string]interface{}{"component": "pipeline"}), metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := dispatch(ctx, orchestrator, opts, now, logger)
	if err != nil {
		logger.Error("Run aborted", "error", err)
		return 1
	}

	logger.Info("Run complete",
		"units", summary.Units,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped_days", summary.SkippedDays)

	if !summary.OK() {
		return 1
	}
	return 0
}

// options captures the selected entry mode and its arguments.
type options struct {
	mode  string
	date  time.Time
	start time.Time
	end   time.Time
}

func parseArgs(args []string) (*options, error) {
	fs := flag.NewFlagSet("sgx-download", flag.ContinueOnError)
	dateFlag := fs.String("date", "", "download files for a specific date (YYYY-MM-DD)")
	rangeFlag := fs.Bool("range", false, "download files for a date range; pass START END (YYYY-MM-DD) as arguments")
	todayFlag := fs.Bool("today", false, "download files for the most recent business day")
	autoFlag := fs.Bool("auto", false, "download everything from the anchor date to the most recent business day (default)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts := &options{}
	switch {
	case *dateFlag != "":
		date, err := time.Parse("2006-01-02", *dateFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid date format: %w", err)
		}
		opts.mode = "date"
		opts.date = date

	case *rangeFlag:
		if fs.NArg() != 2 {
			return nil, fmt.Errorf("-range requires START and END dates")
		}
		start, err := time.Parse("2006-01-02", fs.Arg(0))
		if err != nil {
			return nil, fmt.Errorf("invalid start date: %w", err)
		}
		end, err := time.Parse("2006-01-02", fs.Arg(1))
		if err != nil {
			return nil, fmt.Errorf("invalid end date: %w", err)
		}
		opts.mode = "range"
		opts.start = start
		opts.end = end

	case *todayFlag:
		opts.mode = "today"

	case *autoFlag:
		opts.mode = "auto"

	default:
		// auto is also the default when no flag is given
		opts.mode = "auto"
	}

	return opts, nil
}

// dispatch steers one of the orchestrator's entry modes. The most
// recent business day before now bounds what can exist remotely:
// later single dates are skipped and range ends are clamped to it.
func dispatch(ctx context.Context, orch *pipeline.Orchestrator, opts *options, now time.Time, logger observability.Logger) (pipeline.Summary, error) {
	lastBusinessDay := calendar.PreviousBusinessDay(now)

	switch opts.mode {
	case "date":
		if calendar.Midnight(opts.date).After(lastBusinessDay) {
			logger.Info("Date is today or in the future, skipping",
				"date", opts.date.Format("2006-01-02"))
			return pipeline.Summary{}, nil
		}
		return orch.RunDate(ctx, opts.date), nil

	case "range":
		if opts.start.After(opts.end) {
			return pipeline.Summary{}, fmt.Errorf("start date must not be after end date")
		}
		end := opts.end
		if calendar.Midnight(end).After(lastBusinessDay) {
			logger.Info("End date adjusted to last business day",
				"from", end.Format("2006-01-02"),
				"to", lastBusinessDay.Format("2006-01-02"))
			end = lastBusinessDay
		}
		return orch.RunRange(ctx, opts.start, end), nil

	case "today":
		logger.Info("Downloading files for last business day",
			"date", lastBusinessDay.Format("2006-01-02"))
		return orch.RunDate(ctx, lastBusinessDay), nil

	default:
		return orch.RunAuto(ctx, now), nil
	}
}
