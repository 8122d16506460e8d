package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roman-kulish/radar-pulse/internal/dfs"
)

// ReaderOption configures a PulseReader with specific filtering criteria.
type ReaderOption func(*PulseReader)

// WithStartTime sets the start time filter for the pulse reader.
// Pulses with timestamps before this time will be excluded.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *PulseReader) {
		t = t.UTC()
		r.startTime = &t
	}
}

// WithEndTime sets the end time filter for the pulse reader.
// Pulses with timestamps after this time will be excluded.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *PulseReader) {
		t = t.UTC()
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *PulseReader) {
		WithStartTime(startTime)(r)
		WithEndTime(endTime)(r)
	}
}

// WithFreqRange limits the reader to channels between minFreq and maxFreq MHz, inclusive.
func WithFreqRange(minFreq, maxFreq int) ReaderOption {
	return func(r *PulseReader) {
		r.minFreq = &minFreq
		r.maxFreq = &maxFreq
	}
}

// WithChirpOnly limits the reader to pulses classified as chirps.
func WithChirpOnly() ReaderOption {
	return func(r *PulseReader) {
		r.chirpOnly = true
	}
}

// PulseReader iterates over the stored pulses of a session in TSF order.
// A reader instance should only be used from a single goroutine.
type PulseReader struct {
	db        *sql.DB
	sessionID int64
	session   *Session

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter
	minFreq   *int       // Optional minimum frequency filter
	maxFreq   *int       // Optional maximum frequency filter
	chirpOnly bool

	rows    *sql.Rows
	current *dfs.PulseEvent
	err     error
}

func newPulseReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*PulseReader, error) {
	r := &PulseReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return r, nil
}

func (r *PulseReader) init(ctx context.Context) error {
	if r.db == nil {
		return errors.New("database connection required")
	}
	if r.sessionID <= 0 {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: r.loadSession},
		{msg: "validating filters", fn: r.validateFilters},
		{msg: "initializing query", fn: r.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (r *PulseReader) loadSession(ctx context.Context) (err error) {
	r.session, err = loadSession(ctx, r.db, r.sessionID)
	return
}

func (r *PulseReader) validateFilters(context.Context) error {
	if r.startTime != nil && r.endTime != nil && r.startTime.After(*r.endTime) {
		return fmt.Errorf("start time %s is after end time %s", r.startTime, r.endTime)
	}
	if r.minFreq != nil && r.maxFreq != nil && *r.minFreq > *r.maxFreq {
		return fmt.Errorf("min frequency %d is greater than max frequency %d", *r.minFreq, *r.maxFreq)
	}
	return nil
}

func (r *PulseReader) initQuery(ctx context.Context) (err error) {
	var sb strings.Builder
	sb.WriteString(selectPulsesSQL)

	args := []any{r.sessionID}
	filter := func(clause string, arg any) {
		sb.WriteString("\n    AND ")
		sb.WriteString(clause)
		args = append(args, arg)
	}

	if r.startTime != nil {
		filter("timestamp >= ?", *r.startTime)
	}
	if r.endTime != nil {
		filter("timestamp <= ?", *r.endTime)
	}
	if r.minFreq != nil {
		filter("frequency >= ?", *r.minFreq)
	}
	if r.maxFreq != nil {
		filter("frequency <= ?", *r.maxFreq)
	}
	if r.chirpOnly {
		filter("chirp = ?", true)
	}
	sb.WriteString("\nORDER BY tsf, timestamp, id")

	r.rows, err = r.db.QueryContext(ctx, sb.String(), args...)
	return
}

// Session returns metadata about the capture session this reader is accessing.
func (r *PulseReader) Session() *Session {
	return r.session
}

// Next advances the iterator and returns true if there is another pulse
// to read, false when the iteration is complete or if an error occurred.
func (r *PulseReader) Next(ctx context.Context) bool {
	if r.err != nil || r.rows == nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		r.err = err
		return false
	}

	if !r.rows.Next() {
		r.err = r.rows.Err()
		r.current = nil
		return false
	}

	var d pulseData
	err := r.rows.Scan(
		&d.Timestamp,
		&d.TSF,
		&d.Frequency,
		&d.Mode,
		&d.Width,
		&d.RSSI,
		&d.PrimaryFound,
		&d.ExtensionFound,
		&d.Checked,
		&d.Chirp,
		&d.Reason,
		&d.MaxBins,
		&d.Data,
	)
	if err != nil {
		r.err = fmt.Errorf("scanning pulse: %w", err)
		return false
	}

	if r.current, err = fromPulseData(&d); err != nil {
		r.err = fmt.Errorf("converting pulse: %w", err)
		return false
	}
	return true
}

// Current returns the current pulse in the iteration.
func (r *PulseReader) Current() *dfs.PulseEvent {
	return r.current
}

// Error returns any error that occurred during iteration.
func (r *PulseReader) Error() error {
	return r.err
}

// Close releases the rows held by the reader.
func (r *PulseReader) Close() error {
	if r.rows == nil {
		return nil
	}
	err := r.rows.Close()
	r.rows = nil
	return err
}
