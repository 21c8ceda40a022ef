package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "warn", true)
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Str("file", "imatrace.log").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "file=imatrace.log")
	assert.Contains(t, out, "run=")
}

func TestNew_DefaultsAndErrors(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "", true)
	require.NoError(t, err)
	logger.Debug().Msg("debug line")
	logger.Info().Msg("info line")
	assert.NotContains(t, buf.String(), "debug line")
	assert.Contains(t, buf.String(), "info line")

	_, err = New(&buf, "loud", true)
	assert.Error(t, err)
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.Len(t, a, 8)
	assert.NotEqual(t, a, b)
}
