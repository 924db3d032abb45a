package logging

import (
	"bytes"
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("writes json with service and filters by level", func(t *testing.T) {
		// Prepare
		var buf bytes.Buffer
		logger := New(Config{Level: LevelWarn, Format: FormatJSON, Service: "node-1", Output: &buf})

		// Execute
		logger.Info("hidden")
		logger.Warn("shown", "database", "db")

		// Check
		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record), "single json record")
		assert.Equal(t, "shown", record["msg"], "message")
		assert.Equal(t, "node-1", record["service"], "service")
		assert.Equal(t, "db", record["database"], "attribute")
	})

	t.Run("writes text by default", func(t *testing.T) {
		// Prepare
		var buf bytes.Buffer
		logger := New(Config{Output: &buf})

		// Execute
		logger.Debug("hidden")
		logger.Info("shown")

		// Check
		assert.Contains(t, buf.String(), "msg=shown", "text record")
		assert.NotContains(t, buf.String(), "hidden", "debug filtered")
	})
}

func TestParseLevel(t *testing.T) {
	t.Run("parses names", func(t *testing.T) {
		for name, want := range map[string]Level{"debug": LevelDebug, "INFO": LevelInfo, "": LevelInfo, "warning": LevelWarn, "error": LevelError} {
			got, err := ParseLevel(name)
			assert.NoError(t, err, "parses %q", name)
			assert.Equal(t, want, got, "level for %q", name)
		}
	})

	t.Run("rejects unknown names", func(t *testing.T) {
		_, err := ParseLevel("loud")
		assert.Error(t, err, "unknown level")
	})
}
