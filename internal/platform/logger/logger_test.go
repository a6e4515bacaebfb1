package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "json", "info")
	log.Debug("hidden")
	log.Info("visible", "key", "value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "visible", entry["msg"])
	assert.Equal(t, "eligo", entry["service"])
	assert.Equal(t, "value", entry["key"])
}

func TestNewWithWriter_TextDebug(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "text", "debug").Debug("shown")
	assert.Contains(t, buf.String(), "msg=shown")
}
