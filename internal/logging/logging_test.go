package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("info", "json", &buf)

	logger.Debug().Msg("hidden")
	logger.Info().Str("docs", "/tmp/docs").Int("chunks", 3).Msg("index built")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "index built", entry["message"])
	assert.Equal(t, "/tmp/docs", entry["docs"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewWithWriter_ConsoleLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("WARN", "console", &buf)

	assert.Equal(t, log.WarnLevel, logger.Level)
	logger.Info().Msg("quiet")
	assert.Empty(t, buf.String())

	logger.Warn().Msg("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := Nop()
	assert.Same(t, l, OrNop(l))
}
