package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// LogLevelDebug represents debug log level
	LogLevelDebug = "debug"
	// LogLevelInfo represents info log level
	LogLevelInfo = "info"
	// LogLevelWarn represents warn log level
	LogLevelWarn = "warn"
	// LogLevelError represents error log level
	LogLevelError = "error"
	// LogLevelFatal represents fatal log level
	LogLevelFatal = "fatal"
)

// Config represents logger configuration
type Config struct {
	Level       string // debug, info, warn, error, fatal
	Environment string // development, production, test
	LogFile     string // optional file path for logs
}

// Init initializes the global logger with the given configuration
func Init(cfg Config) error {
	// Configure time format
	zerolog.TimeFieldFormat = time.RFC3339

	// Parse log level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set up output writers
	var writers []io.Writer
	writers = append(writers, os.Stdout)

	// Add file output if specified
	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			log.Error().Err(err).Str("file", cfg.LogFile).Msg("Failed to open log file")
		} else {
			writers = append(writers, file)
		}
	}

	// Create multi-writer
	multiWriter := zerolog.MultiLevelWriter(writers...)

	if cfg.Environment == "development" || cfg.Environment == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(multiWriter).
			With().
			Timestamp().
			Caller().
			Logger()
	}

	return nil
}

// FromContext returns the logger from context or the global logger
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctxLogger := ctx.Value(ContextKey); ctxLogger != nil {
		if logger, ok := ctxLogger.(*zerolog.Logger); ok {
			return logger
		}
	}
	return &log.Logger
}

// WithContext returns a context with the logger attached
func WithContext(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, ContextKey, logger)
}

// ContextKey is the key used to store logger in context
type contextKey string

const (
	ContextKey   contextKey = "logger"
	requestIDKey contextKey = "request_id"
)

// WithRequestID stores the request id and a request-scoped logger in ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	l := FromContext(ctx).With().Str("request_id", requestID).Logger()
	return WithContext(ctx, &l)
}

// RequestID returns the request id stored by WithRequestID.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return "unknown"
}

func addFields(event *zerolog.Event, fields []interface{}) *zerolog.Event {
	for i := 0; i < len(fields)-1; i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		event = event.Interface(key, fields[i+1])
	}
	return event
}

// LogError logs an error with context
func LogError(ctx context.Context, err error, msg string, fields ...interface{}) {
	addFields(FromContext(ctx).Error().Err(err), fields).Msg(msg)
}

// LogInfo logs an info message with context
func LogInfo(ctx context.Context, msg string, fields ...interface{}) {
	addFields(FromContext(ctx).Info(), fields).Msg(msg)
}

// LogWarn logs a warning message with context
func LogWarn(ctx context.Context, msg string, fields ...interface{}) {
	addFields(FromContext(ctx).Warn(), fields).Msg(msg)
}

// LogDebug logs a debug message with context
func LogDebug(ctx context.Context, msg string, fields ...interface{}) {
	addFields(FromContext(ctx).Debug(), fields).Msg(msg)
}
