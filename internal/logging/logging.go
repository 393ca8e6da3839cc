// Package logging builds the process's structured zap logger and the
// named-field helpers spec.md §7 requires on every logged request:
// request_id, source, route, forward_result, http_status, duration_ms,
// error_type, error_status, sanitized_payload.
package logging

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alertbridge/relay/internal/sanitize"
)

// New builds a named logger the way call sites throughout the relay
// acquire one: one zap.Logger per component, tagged with its name so
// log lines can be filtered by subsystem.
func New(name string) *zap.Logger {
	return Base().Named(name)
}

var base *zap.Logger

// Base returns the process-wide root logger, building it once on first
// use. Production builds use JSON encoding; set ALERTBRIDGE_LOG_DEV=1
// for human-readable console output during local development.
func Base() *zap.Logger {
	if base != nil {
		return base
	}
	cfg := zap.NewProductionConfig()
	if os.Getenv("ALERTBRIDGE_LOG_DEV") == "1" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	base = logger
	return base
}

// RequestFields builds the standard field set for one webhook request's
// terminal log line.
func RequestFields(requestID, source, route, forwardResult string, httpStatus int, duration time.Duration) []zap.Field {
	return []zap.Field{
		zap.String("request_id", requestID),
		zap.String("source", source),
		zap.String("route", route),
		zap.String("forward_result", forwardResult),
		zap.Int("http_status", httpStatus),
		zap.Int64("duration_ms", duration.Milliseconds()),
	}
}

// ErrorFields appends the error-specific fields used when a request
// fails, sanitizing payload before it's attached to the log line
// (spec.md §4.2, §7).
func ErrorFields(errType string, errStatus int, payload any) []zap.Field {
	fields := []zap.Field{
		zap.String("error_type", errType),
		zap.Int("error_status", errStatus),
	}
	if payload != nil {
		fields = append(fields, zap.Any("sanitized_payload", sanitize.Doc(payload)))
	}
	return fields
}
