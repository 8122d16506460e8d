package app

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/radar-pulse/internal/dfs"
	"github.com/roman-kulish/radar-pulse/internal/dfs/chirp"
	"github.com/roman-kulish/radar-pulse/internal/storage"
)

var base = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func testPulses() []*dfs.PulseEvent {
	return []*dfs.PulseEvent{
		{
			Timestamp: base,
			TSF:       1000,
			Frequency: 5500,
			Mode:      chirp.ChannelHT20,
			Width:     50,
			RSSI:      20,
			Primary:   true,
			Checked:   true,
			Chirp:     true,
			MaxBins:   []int{10, 13, 16, 19},
		},
		{
			Timestamp: base.Add(time.Second),
			TSF:       2000,
			Frequency: 5260,
			Mode:      chirp.ChannelHT40Plus,
			Width:     40,
			RSSI:      18,
			Primary:   true,
			Checked:   true,
			Reason:    chirp.ReasonUnevenGradient,
			MaxBins:   []int{70, 73, 90, 91},
		},
		{
			Timestamp: base.Add(2 * time.Second),
			TSF:       3000,
			Frequency: 5500,
			Mode:      chirp.ChannelHT20,
			Width:     5,
			RSSI:      12,
			Primary:   true,
		},
	}
}

func TestTraceData_Update(t *testing.T) {
	trace := NewTraceData()
	for _, pe := range testPulses() {
		trace.Update(pe)
	}

	assert.Equal(t, 3, trace.Height())
	assert.Equal(t, int64(3), trace.Pulses)
	assert.Equal(t, int64(2), trace.Checked)
	assert.Equal(t, int64(1), trace.Chirps)
	assert.Equal(t, 5260, trace.FrequencyMin)
	assert.Equal(t, 5500, trace.FrequencyMax)
	assert.Equal(t, base, trace.TimestampStart)
	assert.Equal(t, base.Add(2*time.Second), trace.TimestampEnd)
	assert.Equal(t, TraceRow{TSF: 2000, Width: 40, Checked: true, MaxBins: []int{70, 73, 90, 91}}, trace.Rows[1])
}

func TestTraceRenderer_Render(t *testing.T) {
	trace := NewTraceData()
	for _, pe := range testPulses() {
		trace.Update(pe)
	}

	t.Run("plain", func(t *testing.T) {
		r := NewTraceRenderer(RenderConfig{NoAnnotations: true, CellWidth: 2, RowHeight: 1})

		img, err := r.Render(trace)
		require.NoError(t, err)
		assert.Equal(t, image.Pt(defaultMarkerSize+BinColumns*2, 3), img.Bounds().Size())

		// verdict markers
		assert.Equal(t, rgba(chirpColor), img.RGBAAt(0, 0))
		assert.Equal(t, rgba(rejectedColor), img.RGBAAt(0, 1))
		assert.Equal(t, rgba(uncheckedColor), img.RGBAAt(0, 2))

		// first and last max bin of the chirp row
		cm := NewColorMapper(ClassicTheme, DefaultColorMapSize)
		assert.Equal(t, rgba(cm.SampleColor(0, 4)), img.RGBAAt(defaultMarkerSize+10*2, 0))
		assert.Equal(t, rgba(cm.SampleColor(3, 4)), img.RGBAAt(defaultMarkerSize+19*2+1, 0))

		// untouched cell
		assert.Equal(t, rgba(backgroundColor), img.RGBAAt(defaultMarkerSize+40*2, 0))
	})

	t.Run("annotated", func(t *testing.T) {
		r := NewTraceRenderer(RenderConfig{Location: time.UTC})

		img, err := r.Render(trace)
		require.NoError(t, err)

		want := image.Pt(
			defaultLeftBorder+defaultMarkerSize+BinColumns*defaultCellWidth+defaultRightBorder,
			defaultTopBorder+3*defaultRowHeight+defaultBottomBorder,
		)
		assert.Equal(t, want, img.Bounds().Size())
	})

	t.Run("empty", func(t *testing.T) {
		_, err := NewTraceRenderer(RenderConfig{}).Render(NewTraceData())
		assert.ErrorIs(t, err, ErrNothingToRender)
	})
}

func TestInfoLines(t *testing.T) {
	trace := NewTraceData()
	for range 1200 {
		trace.Update(testPulses()[0])
	}

	lines := infoLines(trace, time.UTC, time.DateTime)
	assert.Equal(t, []string{
		"Pulses: 1,200; checked: 1,200; chirps: 1,200",
		"Freq: 5500 MHz; Time: 2026-10-19 10:00:00 - 2026-10-19 10:00:00",
	}, lines)
}

func TestInfoLines_SessionTotals(t *testing.T) {
	trace := NewTraceData()
	trace.Update(testPulses()[0])
	trace.Session = &storage.SessionStats{Pulses: 15000, Checked: 9000, Chirps: 1}

	lines := infoLines(trace, time.UTC, time.DateTime)
	assert.Equal(t, "Pulses: 1; checked: 1; chirps: 1 (session: 15,000 pulses; 1 chirps)", lines[0])
}

func TestReadTrace_SessionTotals(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "session.sqlite")

	store := storage.NewSqliteStore(dbPath)
	defer store.Close()

	sessionID, err := store.CreateSession(ctx, "replay", "lab", nil)
	require.NoError(t, err)
	require.NoError(t, store.StorePulses(ctx, sessionID, testPulses()))

	config := NewConfig()
	config.SessionID = sessionID
	config.ChirpOnly = true

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	trace, err := readTrace(ctx, store, config, logger)
	require.NoError(t, err)

	assert.Equal(t, int64(1), trace.Pulses)
	require.NotNil(t, trace.Session)
	assert.Equal(t, int64(3), trace.Session.Pulses)
	assert.Equal(t, int64(2), trace.Session.Checked)
	assert.Equal(t, int64(1), trace.Session.Chirps)

	t.Run("empty session", func(t *testing.T) {
		emptyID, err := store.CreateSession(ctx, "replay", "idle", nil)
		require.NoError(t, err)

		config := NewConfig()
		config.SessionID = emptyID

		trace, err := readTrace(ctx, store, config, logger)
		require.NoError(t, err)
		assert.Nil(t, trace.Session)
		assert.Zero(t, trace.Height())
	})
}

func TestColorMapper(t *testing.T) {
	for theme := range validThemes {
		cm := NewColorMapper(theme, 16)
		assert.Len(t, cm.colorMap, 16, theme)
		assert.Equal(t, cm.colorMap[0], cm.GetColor(-1), theme)
		assert.Equal(t, cm.colorMap[15], cm.GetColor(2), theme)
		assert.NotEqual(t, rgba(cm.GetColor(0)), rgba(cm.GetColor(1)), theme)
	}

	cm := NewColorMapper(ThermalTheme, 0)
	assert.Len(t, cm.colorMap, DefaultColorMapSize)
	assert.Equal(t, cm.GetColor(1), cm.SampleColor(0, 1))

	_, err := ParseColorTheme("rainbow")
	assert.Error(t, err)
}

func TestNewConfigFromArgs(t *testing.T) {
	c, err := NewConfigFromArgs("chirpmap", []string{
		"-db", "session.sqlite", "-s", "2", "-o", "out", "-f", "JPEG",
		"-theme", "marine", "-tz", "UTC", "-min-freq", "5250", "-chirp-only",
	})
	require.NoError(t, err)

	assert.Equal(t, "session.sqlite", c.DBPath)
	assert.Equal(t, int64(2), c.SessionID)
	assert.Equal(t, "out.jpeg", c.OutputFile)
	assert.Equal(t, ImageJPEG, c.Format)
	assert.Equal(t, MarineTheme, c.Theme)
	assert.Equal(t, time.UTC, c.TimeZone)
	require.NotNil(t, c.MinFrequency)
	assert.Equal(t, 5250, *c.MinFrequency)
	assert.Nil(t, c.MaxFrequency)
	assert.True(t, c.ChirpOnly)
	assert.Equal(t, defaultMaxRows, c.MaxRows)

	invalid := [][]string{
		{"-s", "1", "-o", "out"},
		{"-db", "x", "-s", "0", "-o", "out"},
		{"-db", "x"},
		{"-db", "x", "-o", "out", "-f", "gif"},
		{"-db", "x", "-o", "out", "-theme", "rainbow"},
		{"-db", "x", "-o", "out", "-tz", "Mars/Olympus"},
		{"-db", "x", "-o", "out", "-min-freq", "6000", "-max-freq", "5000"},
		{"-db", "x", "-o", "out", "-max-rows", "0"},
	}
	for _, args := range invalid {
		_, err := NewConfigFromArgs("chirpmap", args)
		assert.Error(t, err, args)
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "session.sqlite")

	store := storage.NewSqliteStore(dbPath)
	sessionID, err := store.CreateSession(ctx, "replay", "lab", nil)
	require.NoError(t, err)
	require.NoError(t, store.StorePulses(ctx, sessionID, testPulses()))
	require.NoError(t, store.Close())

	config := NewConfig()
	config.DBPath = dbPath
	config.SessionID = sessionID
	config.OutputFile = filepath.Join(dir, "trace.png")
	config.TimeZone = time.UTC
	config.ChirpOnly = true

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, Run(ctx, config, logger))

	f, err := os.Open(config.OutputFile)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, defaultTopBorder+defaultRowHeight+defaultBottomBorder, img.Bounds().Dy())

	t.Run("missing database", func(t *testing.T) {
		config := NewConfig()
		config.DBPath = filepath.Join(dir, "missing.sqlite")
		config.OutputFile = filepath.Join(dir, "missing.png")
		assert.Error(t, Run(ctx, config, logger))
	})
}

func rgba(c color.Color) color.RGBA {
	return color.RGBAModel.Convert(c).(color.RGBA)
}
