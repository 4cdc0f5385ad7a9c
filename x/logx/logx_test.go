package logx

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKeyIsRenamed(t *testing.T) {
	var buf bytes.Buffer
	l := NewTo(&buf, slog.LevelInfo, FormatText)
	l.Info("claim failed", "error", errors.New("port_busy"))
	assert.Contains(t, buf.String(), "err=port_busy")
}

func TestComponentAttr(t *testing.T) {
	var buf bytes.Buffer
	l := Component(NewTo(&buf, slog.LevelDebug, FormatJSON), "guard")
	l.Debug("hello")
	assert.Contains(t, buf.String(), `"component":"guard"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
