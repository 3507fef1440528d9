package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"
)

// LogLevel represents the severity of a log entry.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLevel converts a level string to a LogLevel. Unrecognized
// values default to InfoLevel.
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// StdoutLogger implements Logger by writing formatted lines to a
// single output writer. Output format and level filtering are per
// instance, not process globals, so runs and tests stay isolated.
type StdoutLogger struct {
	fields map[string]interface{}
	logger *log.Logger
	level  LogLevel
	json   bool
}

// LoggerOptions configures a StdoutLogger.
type LoggerOptions struct {
	// Output defaults to os.Stdout.
	Output io.Writer
	// Level is the minimum level to emit.
	Level LogLevel
	// JSON switches from text lines to one JSON object per entry.
	JSON bool
}

// NewStdoutLogger creates a logger writing to opts.Output.
func NewStdoutLogger(opts LoggerOptions) *StdoutLogger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	return &StdoutLogger{
		fields: make(map[string]interface{}),
		logger: log.New(out, "", 0),
		level:  opts.Level,
		json:   opts.JSON,
	}
}

func (l *StdoutLogger) Debug(msg string, fields ...interface{}) {
	l.log(DebugLevel, "DEBUG", msg, fields...)
}

func (l *StdoutLogger) Info(msg string, fields ...interface{}) {
	l.log(InfoLevel, "INFO", msg, fields...)
}

func (l *StdoutLogger) Warn(msg string, fields ...interface{}) {
	l.log(WarnLevel, "WARN", msg, fields...)
}

func (l *StdoutLogger) Error(msg string, fields ...interface{}) {
	l.log(ErrorLevel, "ERROR", msg, fields...)
}

// WithFields returns a new Logger with additional persistent fields.
func (l *StdoutLogger) WithFields(fields map[string]interface{}) Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	return &StdoutLogger{
		fields: newFields,
		logger: l.logger,
		level:  l.level,
		json:   l.json,
	}
}

func (l *StdoutLogger) log(level LogLevel, label string, msg string, fields ...interface{}) {
	if level < l.level {
		return
	}

	entry := l.createLogEntry(label, msg, fields...)
	if l.json {
		l.logJSON(entry)
	} else {
		l.logText(entry)
	}
}

func (l *StdoutLogger) createLogEntry(level string, msg string, fields ...interface{}) map[string]interface{} {
	entry := make(map[string]interface{})
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	entry["level"] = level
	entry["message"] = msg

	for k, v := range l.fields {
		entry[k] = v
	}

	// Variadic fields come as key1, value1, key2, value2, ...
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		if err, ok := fields[i+1].(error); ok && err != nil {
			entry[key] = err.Error()
			continue
		}
		entry[key] = fields[i+1]
	}

	return entry
}

func (l *StdoutLogger) logJSON(entry map[string]interface{}) {
	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("failed to marshal log entry: %v", err)
		return
	}
	l.logger.Println(string(jsonBytes))
}

func (l *StdoutLogger) logText(entry map[string]interface{}) {
	timestamp := entry["timestamp"]
	level := entry["level"]
	message := entry["message"]
	delete(entry, "timestamp")
	delete(entry, "level")
	delete(entry, "message")

	keys := make([]string, 0, len(entry))
	for k := range entry {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fieldStrs := make([]string, 0, len(keys))
	for _, k := range keys {
		fieldStrs = append(fieldStrs, fmt.Sprintf("%s=%v", k, entry[k]))
	}

	logLine := fmt.Sprintf("%s [%s] %s", timestamp, level, message)
	if len(fieldStrs) > 0 {
		logLine += " | " + strings.Join(fieldStrs, " ")
	}

	l.logger.Println(logLine)
}
