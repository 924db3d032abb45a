package config

import (
	"errors"
	"github.com/gostonefire/exthashdb/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	t.Run("keeps defaults for missing sections", func(t *testing.T) {
		// Execute
		config, err := Parse([]byte("index:\n  hash: mix\n"))

		// Check
		require.NoError(t, err, "parses")
		assert.Equal(t, HashMix, config.Index.Hash, "hash set")
		assert.Equal(t, 4, config.Index.BucketCapacity, "default capacity")
		assert.Equal(t, time.Second, config.Cluster.TimeoutInterval, "default timeout interval")
		assert.True(t, config.OpLog.InMemory, "default in memory log")
	})

	t.Run("accepts an empty document", func(t *testing.T) {
		config, err := Parse(nil)
		assert.NoError(t, err, "parses")
		assert.Equal(t, Default(), config, "defaults")
	})

	t.Run("reads durations and lists", func(t *testing.T) {
		// Prepare
		data := []byte(`
log:
  level: debug
  format: json
cluster:
  database: orders
  members: [a, b, c, d, e]
  timeout_interval: 250ms
  drain_timeout: 10s
oplog:
  in_memory: false
  dir: /tmp/oplog
`)

		// Execute
		config, err := Parse(data)

		// Check
		require.NoError(t, err, "parses")
		assert.Equal(t, "orders", config.Cluster.Database, "database")
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, config.Cluster.Members, "members")
		assert.Equal(t, 250*time.Millisecond, config.Cluster.TimeoutInterval, "timeout interval")
		assert.Equal(t, 10*time.Second, config.Cluster.DrainTimeout, "drain timeout")
		assert.Equal(t, logging.Config{Level: logging.LevelDebug, Format: logging.FormatJSON, Service: "cli"}, config.Logging("cli"), "logging")
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		_, err := Parse([]byte("index:\n  bucket_size: 3\n"))
		assert.Error(t, err, "unknown field")
		assert.False(t, errors.Is(err, ErrInvalid), "decoding error")
	})

	t.Run("rejects bad values naming the field", func(t *testing.T) {
		for data, field := range map[string]string{
			"index:\n  max_level_depth: 9\n":   "Config.Index.MaxLevelDepth",
			"index:\n  bucket_capacity: 0\n":   "Config.Index.BucketCapacity",
			"index:\n  hash: crc\n":            "Config.Index.Hash",
			"log:\n  level: loud\n":            "Config.Log.Level",
			"log:\n  format: xml\n":            "Config.Log.Format",
			"cluster:\n  members: []\n":        "Config.Cluster.Members",
			"cluster:\n  members: [a, \"\"]\n": "Config.Cluster.Members[1]",
			"cluster:\n  database: \"\"\n":     "Config.Cluster.Database",
			"cluster:\n  drain_timeout: 0s\n":  "Config.Cluster.DrainTimeout",
			"oplog:\n  in_memory: false\n":     "Config.OpLog.Dir",
		} {
			_, err := Parse([]byte(data))
			require.Error(t, err, "rejects %q", data)
			assert.True(t, errors.Is(err, ErrInvalid), "invalid value in %q", data)
			assert.Contains(t, err.Error(), field, "names the field of %q", data)
		}
	})

	t.Run("reports every failing field at once", func(t *testing.T) {
		// Execute
		_, err := Parse([]byte("index:\n  hash: crc\n  bucket_capacity: 0\n"))

		// Check
		require.Error(t, err, "rejects")
		assert.Contains(t, err.Error(), "Config.Index.Hash", "hash reported")
		assert.Contains(t, err.Error(), "Config.Index.BucketCapacity", "capacity reported")
	})
}

func TestLoad(t *testing.T) {
	t.Run("loads a file", func(t *testing.T) {
		// Prepare
		path := filepath.Join(t.TempDir(), "exthashdb.yaml")
		require.NoError(t, os.WriteFile(path, []byte("index:\n  name: orders\n"), 0644), "writes file")

		// Execute
		config, err := Load(path)

		// Check
		assert.NoError(t, err, "loads")
		assert.Equal(t, "orders", config.Index.Name, "name")
	})

	t.Run("fails on missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err, "missing file")
	})
}
