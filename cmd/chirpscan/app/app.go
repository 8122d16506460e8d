package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roman-kulish/radar-pulse/internal/dfs"
	"github.com/roman-kulish/radar-pulse/internal/dfs/chirp"
	"github.com/roman-kulish/radar-pulse/internal/storage"
)

// Run captures pulses from all enabled sources into a new session database
// until the sources run dry or ctx is cancelled.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	dbPath, err := sessionPath(&config.Storage, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}

	store := storage.NewSqliteStore(dbPath)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing storage: %s", err.Error()))
		}
	}()

	logger.Info("storing pulses", slog.String("path", dbPath))

	detector := chirp.NewDetector(
		chirp.WithLogger(logger),
		chirp.WithThresholds(config.Detector.Thresholds()),
	)
	processor := dfs.NewProcessor(
		dfs.WithLogger(logger),
		dfs.WithDetector(detector),
		dfs.WithWidthGate(config.Detector.MinPulseWidth, config.Detector.MaxPulseWidth),
	)

	o := NewOrchestrator(store, processor, logger,
		WithMaxBatchSize(config.Storage.MaxBatchSize),
		WithEventBuffer(config.Storage.BufferCapacity, config.Storage.FlushCount),
	)

	for _, src := range config.Sources {
		if err = o.CreateSource(src); err != nil {
			return fmt.Errorf("failed to create sources: %w", err)
		}
	}

	return o.Run(ctx)
}

// sessionPath resolves the data directory and returns the path of a new
// timestamped session database inside it.
func sessionPath(config *StorageConfig, now time.Time) (string, error) {
	dir := config.DataDirectory
	if dir == "" {
		dir = defaultDataDirectory
	}

	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current working directory: %w", err)
		}
		dir = filepath.Join(wd, dir)
	}

	stat, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("storage directory '%s' does not exist: %w", dir, err)
		}
		return "", fmt.Errorf("storage directory '%s': %w", dir, err)
	}
	if !stat.IsDir() {
		return "", fmt.Errorf("invalid storage directory '%s'", dir)
	}

	return filepath.Join(dir, fmt.Sprintf("dfs_session_%s.sqlite", now.UTC().Format("20060102_150405"))), nil
}
