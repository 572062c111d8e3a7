package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatText, ParseFormat("TINT"))
	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, FormatAuto, ParseFormat("xml"))
}

func TestNewHandlerJSONForNonTTY(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, FormatAuto, slog.LevelInfo))
	log.Debug("hidden")
	log.Info("captured", "id", "abc")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"captured"`)
	assert.Contains(t, buf.String(), `"id":"abc"`)
}

func TestSetupToFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "logs", "clipstash.log")
	c, err := Setup(Options{Format: FormatJSON, Level: "warn", File: path})
	require.NoError(t, err)

	slog.Info("quiet")
	slog.Warn("loud")
	require.NoError(t, c.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "quiet")
	assert.Contains(t, string(b), "loud")
}

func TestSetupRejectsLevel(t *testing.T) {
	_, err := Setup(Options{Level: "loudest"})
	assert.Error(t, err)
}
