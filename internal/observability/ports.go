// Package observability provides the logging and metrics interfaces the
// downloader components depend on, plus the stdout and Prometheus
// implementations wired in at startup.
package observability

// Logger defines the interface for structured logging.
// Fields are passed as alternating key/value pairs.
type Logger interface {
	// Debug logs fine-grained diagnostic detail.
	Debug(msg string, fields ...interface{})

	// Info logs normal operations: state changes, completed steps.
	Info(msg string, fields ...interface{})

	// Warn logs conditions that do not fail the current operation.
	Warn(msg string, fields ...interface{})

	// Error logs failures. Pass the error under the "error" key.
	Error(msg string, fields ...interface{})

	// WithFields returns a new Logger with the given fields attached to
	// every subsequent entry. Useful for component or per-unit context.
	WithFields(fields map[string]interface{}) Logger
}

// Metrics defines the interface for recording application metrics.
type Metrics interface {
	// IncrementCounter increments a counter metric by 1.
	IncrementCounter(name string, tags map[string]string)

	// RecordHistogram records a value in a histogram distribution.
	// Use for latencies and sizes.
	RecordHistogram(name string, value float64, tags map[string]string)

	// RecordGauge records a point-in-time measurement.
	RecordGauge(name string, value float64, tags map[string]string)

	// WithTags returns a new Metrics instance with additional default tags.
	WithTags(tags map[string]string) Metrics
}
