// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Field represents a structured logging field with a key-value pair.
type Field struct {
	Key   string
	Value interface{}
}

// Logger defines the interface for structured logging throughout the library.
// The session logs every handshake step and wire message at Debug, milestones
// at Info and fatal conditions at Error.
type Logger interface {
	// Debug logs debug-level messages with optional structured fields.
	Debug(msg string, fields ...Field)

	// Info logs info-level messages with optional structured fields.
	Info(msg string, fields ...Field)

	// Warn logs warning-level messages with optional structured fields.
	Warn(msg string, fields ...Field)

	// Error logs error-level messages with optional structured fields.
	Error(msg string, fields ...Field)

	// With creates a new logger instance with the provided fields pre-populated.
	With(fields ...Field) Logger
}

// NoOpLogger is a Logger implementation that discards all log messages.
// It is the default when no logger is configured.
type NoOpLogger struct{}

// Debug discards debug-level log messages.
func (l *NoOpLogger) Debug(msg string, fields ...Field) {}

// Info discards info-level log messages.
func (l *NoOpLogger) Info(msg string, fields ...Field) {}

// Warn discards warning-level log messages.
func (l *NoOpLogger) Warn(msg string, fields ...Field) {}

// Error discards error-level log messages.
func (l *NoOpLogger) Error(msg string, fields ...Field) {}

// With returns a new NoOpLogger instance (ignores fields).
func (l *NoOpLogger) With(fields ...Field) Logger {
	return &NoOpLogger{}
}

// LogLevel controls which messages a StandardLogger emits.
type LogLevel int

// Log levels in increasing severity.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// StandardLogger wraps Go's standard log package to implement the Logger
// interface. Messages below MinLevel are dropped. The zero value logs
// everything to stderr.
type StandardLogger struct {
	// Logger is the underlying standard library logger.
	Logger *log.Logger

	// MinLevel is the minimum level that will be emitted.
	MinLevel LogLevel

	// contextFields holds fields included in all messages from this instance.
	contextFields []Field
}

// ensureLogger initializes the logger if it's nil.
func (l *StandardLogger) ensureLogger() *log.Logger {
	if l.Logger == nil {
		l.Logger = log.New(os.Stderr, "rfb: ", log.LstdFlags)
	}
	return l.Logger
}

// emit formats and prints a message if the level passes the filter.
func (l *StandardLogger) emit(level LogLevel, tag, msg string, fields []Field) {
	if level < l.MinLevel {
		return
	}

	var b strings.Builder
	b.WriteString(tag)
	b.WriteByte(' ')
	b.WriteString(msg)

	for _, f := range l.contextFields {
		b.WriteByte(' ')
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(formatFieldValue(f.Value))
	}
	for _, f := range fields {
		b.WriteByte(' ')
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(formatFieldValue(f.Value))
	}

	l.ensureLogger().Print(b.String())
}

// formatFieldValue converts a field value to a string for logging. Strings
// containing whitespace and errors are quoted; other values use default
// formatting.
func formatFieldValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		if strings.ContainsAny(v, " \t\n\r") {
			return `"` + v + `"`
		}
		return v
	case error:
		return `"` + v.Error() + `"`
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Debug logs a debug-level message with structured fields.
func (l *StandardLogger) Debug(msg string, fields ...Field) {
	l.emit(LevelDebug, "[DEBUG]", msg, fields)
}

// Info logs an info-level message with structured fields.
func (l *StandardLogger) Info(msg string, fields ...Field) {
	l.emit(LevelInfo, "[INFO]", msg, fields)
}

// Warn logs a warning-level message with structured fields.
func (l *StandardLogger) Warn(msg string, fields ...Field) {
	l.emit(LevelWarn, "[WARN]", msg, fields)
}

// Error logs an error-level message with structured fields.
func (l *StandardLogger) Error(msg string, fields ...Field) {
	l.emit(LevelError, "[ERROR]", msg, fields)
}

// With creates a new StandardLogger instance with additional context fields.
// The returned logger includes the provided fields in all subsequent messages.
func (l *StandardLogger) With(fields ...Field) Logger {
	ctx := make([]Field, 0, len(l.contextFields)+len(fields))
	ctx = append(ctx, l.contextFields...)
	ctx = append(ctx, fields...)

	return &StandardLogger{
		Logger:        l.Logger,
		MinLevel:      l.MinLevel,
		contextFields: ctx,
	}
}
