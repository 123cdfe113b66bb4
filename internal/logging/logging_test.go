package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreStandardLogger(t *testing.T) {
	t.Helper()
	std := log.StandardLogger()
	level, formatter := std.GetLevel(), std.Formatter
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(level)
		log.SetFormatter(formatter)
	})
}

func TestSetup_JSON(t *testing.T) {
	restoreStandardLogger(t)

	var buf bytes.Buffer
	Setup(&buf, "debug", "json")

	assert.Equal(t, log.DebugLevel, log.GetLevel())
	log.WithField("source", "fallback").Debug("Using default coordinates")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Using default coordinates", entry["msg"])
	assert.Equal(t, "fallback", entry["source"])
	assert.Equal(t, "debug", entry["level"])
}

func TestSetup_Defaults(t *testing.T) {
	restoreStandardLogger(t)

	var buf bytes.Buffer
	Setup(&buf, "loud", "")

	assert.Equal(t, log.InfoLevel, log.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)

	log.Debug("hidden")
	assert.Empty(t, buf.String())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}
