// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferedLogger(min LogLevel) (*StandardLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &StandardLogger{
		Logger:   log.New(&buf, "", 0),
		MinLevel: min,
	}, &buf
}

func TestStandardLoggerLevelFiltering(t *testing.T) {
	logger, buf := newBufferedLogger(LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	assert.Empty(t, buf.String())

	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	assert.Contains(t, out, "[WARN] warn message")
	assert.Contains(t, out, "[ERROR] error message")
	assert.NotContains(t, out, "info message")
}

func TestStandardLoggerFields(t *testing.T) {
	logger, buf := newBufferedLogger(LevelDebug)

	logger.Info("connected",
		Field{Key: "width", Value: uint16(800)},
		Field{Key: "name", Value: "my desk"},
		Field{Key: "err", Value: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, "width=800")
	assert.Contains(t, out, `name="my desk"`)
	assert.Contains(t, out, `err="boom"`)
}

func TestStandardLoggerWith(t *testing.T) {
	logger, buf := newBufferedLogger(LevelDebug)

	child := logger.With(Field{Key: "session", Value: "abc"})
	child.Info("event", Field{Key: "n", Value: 1})

	out := buf.String()
	assert.Contains(t, out, "session=abc")
	assert.Contains(t, out, "n=1")

	// The parent is unaffected.
	buf.Reset()
	logger.Info("plain")
	assert.NotContains(t, buf.String(), "session=abc")
}

func TestNoOpLogger(t *testing.T) {
	logger := &NoOpLogger{}
	logger.Debug("x")
	logger.Info("x")
	logger.Warn("x")
	logger.Error("x")
	assert.NotNil(t, logger.With(Field{Key: "k", Value: "v"}))
}
