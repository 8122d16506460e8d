package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/radar-pulse/internal/dfs"
	"github.com/roman-kulish/radar-pulse/internal/dfs/chirp"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && cErr != sql.ErrTxDone && *err == nil {
		*err = cErr
	}
}

func toPulseData(sessionID int64, e *dfs.PulseEvent) (*pulseData, error) {
	var maxBins sql.NullString
	if e.MaxBins != nil {
		p, err := json.Marshal(e.MaxBins)
		if err != nil {
			return nil, fmt.Errorf("marshaling max bins: %w", err)
		}
		maxBins = sql.NullString{String: string(p), Valid: true}
	}

	return &pulseData{
		SessionID:      sessionID,
		Timestamp:      e.Timestamp.UTC(),
		TSF:            int64(e.TSF), // sqlite has no unsigned 64 bit integers
		Frequency:      e.Frequency,
		Mode:           e.Mode.String(),
		Width:          e.Width,
		RSSI:           e.RSSI,
		PrimaryFound:   e.Primary,
		ExtensionFound: e.Extension,
		Checked:        e.Checked,
		Chirp:          e.Chirp,
		Reason:         int(e.Reason),
		MaxBins:        maxBins,
		Data:           e.Data,
	}, nil
}

func fromPulseData(d *pulseData) (*dfs.PulseEvent, error) {
	mode, err := chirp.ParseChannelMode(d.Mode)
	if err != nil {
		return nil, err
	}

	e := dfs.PulseEvent{
		Timestamp: d.Timestamp.UTC(),
		TSF:       uint64(d.TSF),
		Frequency: d.Frequency,
		Mode:      mode,
		Width:     d.Width,
		RSSI:      d.RSSI,
		Primary:   d.PrimaryFound,
		Extension: d.ExtensionFound,
		Checked:   d.Checked,
		Chirp:     d.Chirp,
		Reason:    chirp.Reason(d.Reason),
		Data:      d.Data,
	}

	if d.MaxBins.Valid {
		if err = json.Unmarshal([]byte(d.MaxBins.String), &e.MaxBins); err != nil {
			return nil, fmt.Errorf("unmarshaling max bins: %w", err)
		}
	}
	return &e, nil
}

// sqliteDatetime scans timestamps returned by aggregate functions, which lose
// the column type and come back as plain text.
type sqliteDatetime struct {
	Datetime time.Time
	Valid    bool
}

func (t *sqliteDatetime) Scan(value any) error {
	var s string
	switch v := value.(type) {
	case nil:
		t.Datetime, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Datetime, t.Valid = v.UTC(), true
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("unsupported datetime type %T", value)
	}

	s = strings.TrimSuffix(s, "Z")
	for _, format := range sqlite3.SQLiteTimestampFormats {
		if ts, err := time.ParseInLocation(format, s, time.UTC); err == nil {
			t.Datetime, t.Valid = ts.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unrecognised datetime '%s'", s)
}
