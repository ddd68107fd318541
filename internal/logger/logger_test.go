package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	logger := log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prev)
		log.Logger = logger
	})
}

func TestInitWithWriter_JSON(t *testing.T) {
	restoreLevel(t)
	var buf bytes.Buffer

	InitWithWriter(&buf, "warn", false)
	log.Info().Msg("hidden")
	log.Warn().Str("room", "ABC123").Msg("[Test] visible")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "ABC123", entry["room"])
	assert.Equal(t, "[Test] visible", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestInitWithWriter_Pretty(t *testing.T) {
	restoreLevel(t)
	var buf bytes.Buffer

	InitWithWriter(&buf, "debug", true)
	log.Debug().Msg("pretty line")

	assert.Contains(t, buf.String(), "pretty line")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestInitWithWriter_UnknownLevelFallsBackToInfo(t *testing.T) {
	restoreLevel(t)

	InitWithWriter(&bytes.Buffer{}, "loud", false)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	InitWithWriter(&bytes.Buffer{}, "", false)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
