// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogHandler(t *testing.T) {
	var buf bytes.Buffer
	h := newLogHandler(&buf, "warn", "json")

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))

	slog.New(h).Warn("signup_disabled", "user_id", 7)
	assert.Contains(t, buf.String(), `"msg":"signup_disabled"`)
	assert.Contains(t, buf.String(), `"user_id":7`)
}

func TestNewLogHandler_Text(t *testing.T) {
	var buf bytes.Buffer
	h := newLogHandler(&buf, "debug", "text")

	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
	slog.New(h).Info("persona_bind")
	assert.Contains(t, buf.String(), "persona_bind")
}
