package app

import (
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/radar-pulse/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	trace, err := readTrace(ctx, store, config, logger)
	if err != nil {
		return err
	}

	renderer := NewTraceRenderer(RenderConfig{
		Location:      config.TimeZone,
		ColorTheme:    config.Theme,
		NoAnnotations: config.NoAnnotations,
	})

	size := renderer.Size(trace)
	logger.Info("rendering trace",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", size.X),
			slog.Int("height", size.Y),
		))

	img, err := renderer.Render(trace)
	if err != nil {
		return fmt.Errorf("rendering trace: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	if err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}

	return out.Close()
}

func readTrace(ctx context.Context, store storage.Store, config *Config, logger *slog.Logger) (*TraceData, error) {
	var opts []storage.ReaderOption
	var filters []any

	if config.MinFrequency != nil || config.MaxFrequency != nil {
		minFreq, maxFreq := 0, math.MaxInt
		if config.MinFrequency != nil {
			minFreq = *config.MinFrequency
			filters = append(filters, slog.String("minFreq", fmt.Sprintf("%dMHz", minFreq)))
		}
		if config.MaxFrequency != nil {
			maxFreq = *config.MaxFrequency
			filters = append(filters, slog.String("maxFreq", fmt.Sprintf("%dMHz", maxFreq)))
		}
		opts = append(opts, storage.WithFreqRange(minFreq, maxFreq))
	}
	if config.ChirpOnly {
		opts = append(opts, storage.WithChirpOnly())
		filters = append(filters, slog.Bool("chirpOnly", true))
	}

	logger.Info("reader configuration", filters...)

	iter, err := store.ReadPulses(ctx, config.SessionID, opts...)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	trace := NewTraceData()
	for iter.Next(ctx) {
		if trace.Height() >= config.MaxRows {
			logger.Warn(fmt.Sprintf("row limit reached, rendering the first %s pulses", humanize.Comma(int64(config.MaxRows))))
			break
		}
		trace.Update(iter.Current())
	}
	if err = iter.Error(); err != nil {
		return nil, err
	}

	stats, err := store.Stats(ctx, config.SessionID)
	switch {
	case errors.Is(err, storage.ErrNoData):
		logger.Warn("session has no pulses")
	case err != nil:
		return nil, fmt.Errorf("reading session stats: %w", err)
	default:
		trace.Session = stats
		logger.Info("session totals",
			slog.String("pulses", humanize.Comma(stats.Pulses)),
			slog.String("checked", humanize.Comma(stats.Checked)),
			slog.String("chirps", humanize.Comma(stats.Chirps)))
	}

	if sess := iter.Session(); sess != nil {
		logger.Info("finished reading pulses",
			slog.Group("stats",
				slog.Int64("session", sess.ID),
				slog.String("source", sess.SourceID),
				slog.String("pulses", humanize.Comma(trace.Pulses)),
				slog.String("chirps", humanize.Comma(trace.Chirps)),
				slog.String("minTimestamp", trace.TimestampStart.In(config.TimeZone).Format(time.DateTime)),
				slog.String("maxTimestamp", trace.TimestampEnd.In(config.TimeZone).Format(time.DateTime)),
			))
	}

	return trace, nil
}
