package app

import (
	"math"
	"time"

	"github.com/roman-kulish/radar-pulse/internal/dfs"
	"github.com/roman-kulish/radar-pulse/internal/dfs/chirp"
	"github.com/roman-kulish/radar-pulse/internal/storage"
)

// BinColumns is the width of the unified bin index space: lower half bins
// 0..63, upper half bins 64..127.
const BinColumns = 2 * chirp.UpperBinOffset

// TraceRow is a single pulse drawn as one row of the image
type TraceRow struct {
	TSF     uint64
	Width   int
	Checked bool
	Chirp   bool
	MaxBins []int
}

// TraceData accumulates the pulses of a session for rendering
type TraceData struct {
	Rows []TraceRow

	Pulses, Checked, Chirps      int64
	FrequencyMin, FrequencyMax   int
	TimestampStart, TimestampEnd time.Time

	// Session holds the totals of the whole session, regardless of filters
	Session *storage.SessionStats
}

func NewTraceData() *TraceData {
	return &TraceData{
		FrequencyMin: math.MaxInt,
		Rows:         make([]TraceRow, 0),
	}
}

// Update adds a pulse to the trace
func (t *TraceData) Update(pe *dfs.PulseEvent) {
	t.Pulses++
	if pe.Checked {
		t.Checked++
	}
	if pe.Chirp {
		t.Chirps++
	}

	t.FrequencyMin = min(t.FrequencyMin, pe.Frequency)
	t.FrequencyMax = max(t.FrequencyMax, pe.Frequency)

	if t.TimestampStart.IsZero() || t.TimestampStart.After(pe.Timestamp) {
		t.TimestampStart = pe.Timestamp
	}
	if t.TimestampEnd.IsZero() || t.TimestampEnd.Before(pe.Timestamp) {
		t.TimestampEnd = pe.Timestamp
	}

	t.Rows = append(t.Rows, TraceRow{
		TSF:     pe.TSF,
		Width:   pe.Width,
		Checked: pe.Checked,
		Chirp:   pe.Chirp,
		MaxBins: pe.MaxBins,
	})
}

// Height returns the number of rows
func (t *TraceData) Height() int {
	return len(t.Rows)
}
