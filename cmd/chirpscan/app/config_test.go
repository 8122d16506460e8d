package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/radar-pulse/internal/capture"
	"github.com/roman-kulish/radar-pulse/internal/dfs/chirp"
)

func replayFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fcc5.csv")
	require.NoError(t, os.WriteFile(path, []byte("# empty\n"), 0o644))
	return path
}

func TestParseConfig(t *testing.T) {
	path := replayFile(t)

	c, err := ParseConfig([]byte(fmt.Sprintf(`
settings:
  logLevel: debug
sources:
  - name: lab
    type: replay
    enabled: true
    file: %s
  - name: phy0
    type: command
    enabled: false
detector:
  maxDiff: 3
storage:
  dataDirectory: /var/lib/chirpscan
  maxBatchSize: 500
`, path)))
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, c.LogLevel())
	require.Len(t, c.Sources, 2)
	assert.Equal(t, "lab", c.Sources[0].Name)
	assert.Equal(t, capture.KindReplay, c.Sources[0].Type)
	assert.Equal(t, path, c.Sources[0].File)
	assert.False(t, c.Sources[1].Enabled)

	// untouched values keep their defaults
	want := chirp.DefaultThresholds()
	want.MaxDiff = 3
	assert.Equal(t, want, c.Detector.Thresholds())
	assert.Equal(t, 20, c.Detector.MinPulseWidth)
	assert.Equal(t, 110, c.Detector.MaxPulseWidth)

	assert.Equal(t, "/var/lib/chirpscan", c.Storage.DataDirectory)
	assert.Equal(t, 500, c.Storage.MaxBatchSize)
	assert.Equal(t, defaultBufferCapacity, c.Storage.BufferCapacity)
	assert.Equal(t, defaultFlushCount, c.Storage.FlushCount)
}

func TestConfig_Validate(t *testing.T) {
	path := replayFile(t)

	valid := func() *Config {
		c := NewConfig()
		c.Sources = []*SourceConfig{{
			Name:    "lab",
			Type:    capture.KindReplay,
			Enabled: true,
			Config:  capture.Config{File: path},
		}}
		return c
	}

	testCases := []struct {
		name   string
		modify func(c *Config)
	}{
		{"bad log level", func(c *Config) { c.Settings.LogLevel = "loud" }},
		{"no sources", func(c *Config) { c.Sources = nil }},
		{"no enabled sources", func(c *Config) { c.Sources[0].Enabled = false }},
		{"missing name", func(c *Config) { c.Sources[0].Name = "" }},
		{"duplicate name", func(c *Config) { c.Sources = append(c.Sources, c.Sources[0]) }},
		{"unknown type", func(c *Config) { c.Sources[0].Type = "sdr" }},
		{"missing replay file", func(c *Config) { c.Sources[0].File = filepath.Join(t.TempDir(), "nope.csv") }},
		{"command without command", func(c *Config) { c.Sources[0].Type = capture.KindCommand }},
		{"inverted width gate", func(c *Config) { c.Detector.MinPulseWidth, c.Detector.MaxPulseWidth = 110, 20 }},
		{"too few samples", func(c *Config) { c.Detector.NumSamples = 1 }},
		{"inverted bin deltas", func(c *Config) { c.Detector.BinDeltaMin, c.Detector.BinDeltaMax = 10, 1 }},
		{"zero batch size", func(c *Config) { c.Storage.MaxBatchSize = 0 }},
		{"batch size above limit", func(c *Config) { c.Storage.MaxBatchSize = maxBatchSizeLimit + 1 }},
		{"flush count above capacity", func(c *Config) { c.Storage.FlushCount = c.Storage.BufferCapacity + 1 }},
	}

	require.NoError(t, valid().Validate())

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.modify(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseConfig_Malformed(t *testing.T) {
	_, err := ParseConfig([]byte("sources: [\n"))
	assert.Error(t, err)
}
