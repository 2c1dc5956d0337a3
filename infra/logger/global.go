package logger

import "sync"

var (
	global *SystemLogger
	once   sync.Once
)

// Init installs the global logger. Safe to call once during startup.
func Init(sink EventSink, cfg Config) {
	once.Do(func() {
		global = New(sink, cfg)
	})
}

// get falls back to a console-only logger when Init was never called, which
// keeps package-level logging usable in tests.
func get() *SystemLogger {
	if global == nil {
		global = New(nil, Config{
			MinLevel:    LevelInfo,
			Service:     "cyberpay",
			Environment: "development",
		})
	}
	return global
}

// Debug logs a debug message on the global logger.
func Debug(message string, ctx ...LogContext) { get().Debug(message, ctx...) }

// Info logs an info message on the global logger.
func Info(message string, ctx ...LogContext) { get().Info(message, ctx...) }

// Warn logs a warning on the global logger.
func Warn(message string, ctx ...LogContext) { get().Warn(message, ctx...) }

// Error logs an error on the global logger.
func Error(message string, err error, ctx ...LogContext) { get().Error(message, err, ctx...) }

// Fatal logs on the global logger and exits.
func Fatal(message string, err error, ctx ...LogContext) { get().Fatal(message, err, ctx...) }
