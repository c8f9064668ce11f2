package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)
	log.Debug().Msg("hidden")
	log.Warn().Str("device", "sda").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "device=sda")
}

func TestNewDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true)
	log.Debug().Msg("trace")
	assert.Contains(t, buf.String(), "trace")
}
