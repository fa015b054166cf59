package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerWritesAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelInfo, false))

	log.With("component", "scorer").WithGroup("req").Info("scored", "attempt", 7, slog.Group("score", "final", 4))

	line := buf.String()
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Contains(t, line, "INFO: scored")
	assert.Contains(t, line, " component=scorer")
	assert.Contains(t, line, " req.attempt=7")
	assert.Contains(t, line, " req.score.final=4")
}

func TestHandlerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", false)

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "WARN: shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
