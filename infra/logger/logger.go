// Package logger provides the structured system logger used across the
// service: leveled console output plus an optional asynchronous sink for an
// external log store.
package logger

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"time"
)

// Level is the severity of a log entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

var levelOrder = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
	LevelFatal: 4,
}

// Entry is one structured log record.
type Entry struct {
	Timestamp   time.Time      `json:"timestamp"`
	Level       Level          `json:"level"`
	Message     string         `json:"message"`
	Component   string         `json:"component"`
	OrderID     string         `json:"order_id,omitempty"`
	Operation   string         `json:"operation,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
	Error       string         `json:"error,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
	Environment string         `json:"environment"`
	Service     string         `json:"service"`
}

// LogContext carries the per-call fields attached to an entry.
type LogContext struct {
	OrderID   string
	Operation string
	RequestID string
	Fields    map[string]any
}

// EventSink receives entries for external storage. Delivery is asynchronous
// and best-effort; a failing sink never blocks request handling.
type EventSink interface {
	LogSystemEvent(ctx context.Context, entry any) error
}

// SystemLogger writes leveled entries to the console and to an optional sink.
type SystemLogger struct {
	sink        EventSink
	minLevel    Level
	service     string
	environment string
}

// Config configures a SystemLogger.
type Config struct {
	MinLevel    Level
	Service     string
	Environment string
}

// New builds a system logger. sink may be nil for console-only logging.
func New(sink EventSink, cfg Config) *SystemLogger {
	if cfg.MinLevel == "" {
		cfg.MinLevel = LevelInfo
	}
	return &SystemLogger{
		sink:        sink,
		minLevel:    cfg.MinLevel,
		service:     cfg.Service,
		environment: cfg.Environment,
	}
}

func (l *SystemLogger) Debug(message string, ctx ...LogContext) { l.log(LevelDebug, message, nil, ctx) }
func (l *SystemLogger) Info(message string, ctx ...LogContext)  { l.log(LevelInfo, message, nil, ctx) }
func (l *SystemLogger) Warn(message string, ctx ...LogContext)  { l.log(LevelWarn, message, nil, ctx) }

func (l *SystemLogger) Error(message string, err error, ctx ...LogContext) {
	l.log(LevelError, message, err, ctx)
}

// Fatal logs the message and exits.
func (l *SystemLogger) Fatal(message string, err error, ctx ...LogContext) {
	l.log(LevelFatal, message, err, ctx)
	os.Exit(1)
}

func (l *SystemLogger) log(level Level, message string, err error, ctxs []LogContext) {
	if levelOrder[level] < levelOrder[l.minLevel] {
		return
	}

	entry := Entry{
		Timestamp:   time.Now().UTC(),
		Level:       level,
		Message:     message,
		Component:   callerComponent(),
		Environment: l.environment,
		Service:     l.service,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if len(ctxs) > 0 {
		ctx := ctxs[0]
		entry.OrderID = ctx.OrderID
		entry.Operation = ctx.Operation
		entry.RequestID = ctx.RequestID
		entry.Fields = ctx.Fields
	}

	l.console(entry)
	if l.sink != nil {
		go l.dispatch(entry)
	}
}

// callerComponent derives "package" or "package/subpackage" from the file
// that produced the entry.
func callerComponent() string {
	_, file, _, ok := runtime.Caller(3)
	if !ok {
		return "unknown"
	}
	parts := strings.Split(file, "/")
	for i, part := range parts {
		if part == "cyberpay" && i+2 < len(parts) {
			return strings.Join(parts[i+1:len(parts)-1], "/")
		}
	}
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return "unknown"
}

func (l *SystemLogger) console(entry Entry) {
	var ctx []string
	if entry.OrderID != "" {
		ctx = append(ctx, "order="+entry.OrderID)
	}
	if entry.Operation != "" {
		ctx = append(ctx, "op="+entry.Operation)
	}
	if entry.RequestID != "" {
		ctx = append(ctx, "req="+entry.RequestID)
	}
	line := fmt.Sprintf("[%s] [%s] [%s]",
		entry.Timestamp.Format("2006-01-02 15:04:05"),
		strings.ToUpper(string(entry.Level)),
		entry.Component,
	)
	if len(ctx) > 0 {
		line += " [" + strings.Join(ctx, " ") + "]"
	}
	line += " " + entry.Message
	if entry.Error != "" {
		line += " - error: " + entry.Error
	}
	fmt.Println(line)
	for key, value := range entry.Fields {
		fmt.Printf("  %s: %v\n", key, value)
	}
}

func (l *SystemLogger) dispatch(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.sink.LogSystemEvent(ctx, entry); err != nil {
		log.Printf("failed to ship log entry: %v", err)
	}
}
