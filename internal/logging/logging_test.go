package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "error")

	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Error().Msg("visible")
	assert.Contains(t, buf.String(), `"visible"`)
}

func TestNew_EmitsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")

	log.Info().Str("account", "A1").Msg("reconciled")
	out := buf.String()
	assert.Contains(t, out, `"account":"A1"`)
	assert.Contains(t, out, `"time"`)
}

func TestParseLevel_FallsBackToInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel("nonsense"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
}
