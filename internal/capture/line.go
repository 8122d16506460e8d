package capture

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roman-kulish/radar-pulse/internal/dfs"
	"github.com/roman-kulish/radar-pulse/internal/dfs/chirp"
)

// Capture line format, one PHY-error report per line:
//
//	timestamp,tsf,frequency,mode,fastClock,rssi,extRSSI,data
//
//	2026-10-19T10:00:00.000001Z,123456789,5500,ht40+,0,24,3,0a0b...3f0001
//
// timestamp is RFC 3339 with optional fractional seconds, frequency is in MHz,
// mode is one of ht20, ht40+ or ht40-, fastClock is 0 or 1 and data is the hex
// encoded report (FFT samples followed by the 3 byte radar trailer). Empty
// lines and lines starting with '#' carry no report.
const numLineFields = 8

// ErrNoReport is returned by ParseLine for lines that carry no report
var ErrNoReport = errors.New("no report")

// ParseLine decodes a single capture line.
func ParseLine(line string) (*dfs.PhyError, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, ErrNoReport
	}

	fields := strings.Split(line, ",")
	if len(fields) != numLineFields {
		return nil, fmt.Errorf("invalid capture line: %d fields, expected %d", len(fields), numLineFields)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	var e dfs.PhyError
	var err error

	if e.Timestamp, err = time.Parse(time.RFC3339Nano, fields[0]); err != nil {
		return nil, &ParseError{"timestamp", fields[0], err}
	}

	if e.TSF, err = strconv.ParseUint(fields[1], 10, 64); err != nil {
		return nil, &ParseError{"tsf", fields[1], err}
	}

	if e.Frequency, err = strconv.Atoi(fields[2]); err != nil || e.Frequency <= 0 {
		return nil, &ParseError{"frequency", fields[2], err}
	}

	if e.Mode, err = chirp.ParseChannelMode(fields[3]); err != nil {
		return nil, &ParseError{"mode", fields[3], err}
	}

	switch fields[4] {
	case "0":
	case "1":
		e.FastClock = true
	default:
		return nil, &ParseError{"fast clock flag", fields[4], nil}
	}

	rssi, err := strconv.ParseInt(fields[5], 10, 8)
	if err != nil {
		return nil, &ParseError{"rssi", fields[5], err}
	}
	e.RSSI = uint8(rssi)

	extRSSI, err := strconv.ParseInt(fields[6], 10, 8)
	if err != nil {
		return nil, &ParseError{"ext rssi", fields[6], err}
	}
	e.ExtRSSI = uint8(extRSSI)

	if e.Data, err = hex.DecodeString(fields[7]); err != nil {
		return nil, &ParseError{"data", fields[7], err}
	}

	return &e, nil
}

// FormatLine encodes a report as a capture line, the inverse of ParseLine.
func FormatLine(e *dfs.PhyError) string {
	fastClock := "0"
	if e.FastClock {
		fastClock = "1"
	}

	return strings.Join([]string{
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		strconv.FormatUint(e.TSF, 10),
		strconv.Itoa(e.Frequency),
		e.Mode.String(),
		fastClock,
		strconv.Itoa(int(int8(e.RSSI))),
		strconv.Itoa(int(int8(e.ExtRSSI))),
		hex.EncodeToString(e.Data),
	}, ",")
}
