package app

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/radar-pulse/internal/capture"
	"github.com/roman-kulish/radar-pulse/internal/dfs"
	"github.com/roman-kulish/radar-pulse/internal/dfs/chirp"
)

const (
	defaultDataDirectory  = "data"
	defaultMaxBatchSize   = 100
	defaultBufferCapacity = 64
	defaultFlushCount     = 32

	// maxBatchSizeLimit keeps multi-row inserts below the Sqlite variable limit
	maxBatchSizeLimit = 2000
)

// Config represents the main application configuration
type Config struct {
	Settings Settings        `yaml:"settings"`
	Sources  []*SourceConfig `yaml:"sources"`
	Detector DetectorConfig  `yaml:"detector"`
	Storage  StorageConfig   `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// SourceConfig represents a single capture source configuration
type SourceConfig struct {
	Name                 string `yaml:"name" json:"name"`
	Type                 string `yaml:"type" json:"type"`
	Enabled              bool   `yaml:"enabled" json:"enabled"`
	ParseErrorsThreshold uint8  `yaml:"parseErrorsThreshold" json:"parseErrorsThreshold,omitempty"`

	capture.Config `yaml:",inline" json:",inline"`
}

// DetectorConfig represents pulse width gate and chirp detection bounds
type DetectorConfig struct {
	MinPulseWidth int `yaml:"minPulseWidth"` // µs, exclusive
	MaxPulseWidth int `yaml:"maxPulseWidth"` // µs, exclusive
	NumSamples    int `yaml:"numSamples"`
	BinDeltaMin   int `yaml:"binDeltaMin"`
	BinDeltaMax   int `yaml:"binDeltaMax"`
	MaxDiff       int `yaml:"maxDiff"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory  string `yaml:"dataDirectory"`
	MaxBatchSize   int    `yaml:"maxBatchSize"`
	BufferCapacity int    `yaml:"bufferCapacity"`
	FlushCount     int    `yaml:"flushCount"`
}

// NewConfig returns a configuration populated with defaults
func NewConfig() *Config {
	th := chirp.DefaultThresholds()

	return &Config{
		Settings: Settings{
			LogLevel: slog.LevelInfo.String(),
		},
		Detector: DetectorConfig{
			MinPulseWidth: dfs.MinChirpPulseWidth,
			MaxPulseWidth: dfs.MaxChirpPulseWidth,
			NumSamples:    th.NumSamples,
			BinDeltaMin:   th.BinDeltaMin,
			BinDeltaMax:   th.BinDeltaMax,
			MaxDiff:       th.MaxDiff,
		},
		Storage: StorageConfig{
			DataDirectory:  defaultDataDirectory,
			MaxBatchSize:   defaultMaxBatchSize,
			BufferCapacity: defaultBufferCapacity,
			FlushCount:     defaultFlushCount,
		},
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults and
// validates it
func LoadConfig(path string) (*Config, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return ParseConfig(p)
}

// ParseConfig decodes a YAML configuration on top of the defaults and validates it
func ParseConfig(p []byte) (*Config, error) {
	c := NewConfig()
	if err := yaml.Unmarshal(p, c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks every configuration section
func (c *Config) Validate() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Settings.LogLevel)); err != nil {
		return capture.NewConfigError("settings: invalid log level '%s'", c.Settings.LogLevel)
	}

	names := make(map[string]struct{}, len(c.Sources))
	var enabled int
	for i, src := range c.Sources {
		if src.Name == "" {
			return capture.NewConfigError("sources[%d]: name is required", i)
		}
		if _, ok := names[src.Name]; ok {
			return capture.NewConfigError("sources[%d]: duplicate name '%s'", i, src.Name)
		}
		names[src.Name] = struct{}{}

		if !src.Enabled {
			continue
		}
		enabled++

		if err := src.Config.Validate(src.Type); err != nil {
			return fmt.Errorf("sources[%d] '%s': %w", i, src.Name, err)
		}
	}
	if enabled == 0 {
		return capture.NewConfigError("sources: no enabled sources configured")
	}

	if err := c.Detector.Validate(); err != nil {
		return err
	}
	return c.Storage.Validate()
}

// LogLevel returns the configured log level
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	_ = level.UnmarshalText([]byte(c.Settings.LogLevel))
	return level
}

// Thresholds returns the chirp detection bounds
func (c *DetectorConfig) Thresholds() chirp.Thresholds {
	return chirp.Thresholds{
		NumSamples:  c.NumSamples,
		BinDeltaMin: c.BinDeltaMin,
		BinDeltaMax: c.BinDeltaMax,
		MaxDiff:     c.MaxDiff,
	}
}

func (c *DetectorConfig) Validate() error {
	if c.MinPulseWidth < 0 || c.MaxPulseWidth <= c.MinPulseWidth {
		return capture.NewConfigError("detector: invalid pulse width gate (%d, %d)", c.MinPulseWidth, c.MaxPulseWidth)
	}

	if err := c.Thresholds().Validate(); err != nil {
		return capture.NewConfigError("detector: %s", err.Error())
	}
	return nil
}

func (c *StorageConfig) Validate() error {
	switch {
	case c.MaxBatchSize <= 0 || c.MaxBatchSize > maxBatchSizeLimit:
		return capture.NewConfigError("storage: max batch size must be between 1 and %d: %d given", maxBatchSizeLimit, c.MaxBatchSize)
	case c.BufferCapacity <= 0:
		return capture.NewConfigError("storage: buffer capacity must be positive: %d given", c.BufferCapacity)
	case c.FlushCount <= 0 || c.FlushCount > c.BufferCapacity:
		return capture.NewConfigError("storage: flush count must be between 1 and %d: %d given", c.BufferCapacity, c.FlushCount)
	}
	return nil
}
