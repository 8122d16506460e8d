package storage

import (
	"database/sql"
	"time"
)

// Session represents a single capture session with a specific source.
type Session struct {
	ID         int64     `json:"ID"`                      // Unique identifier for the session
	StartTime  time.Time `json:"startTime"`               // When the capture session began
	SourceType string    `json:"sourceType"`              // Type of capture source (e.g., "command", "replay")
	SourceID   string    `json:"sourceID"`                // Configured name of the source
	Config     *string   `json:"config,string,omitempty"` // Optional source configuration in JSON format
}

// SessionStats summarises the pulses stored for a session
type SessionStats struct {
	Pulses    int64     // Number of stored pulses
	Checked   int64     // Pulses that passed the width gate
	Chirps    int64     // Pulses classified as chirps
	FirstSeen time.Time // Timestamp of the earliest pulse
	LastSeen  time.Time // Timestamp of the latest pulse
}

type pulseData struct {
	SessionID      int64
	Timestamp      time.Time
	TSF            int64
	Frequency      int
	Mode           string
	Width          int
	RSSI           int
	PrimaryFound   bool
	ExtensionFound bool
	Checked        bool
	Chirp          bool
	Reason         int
	MaxBins        sql.NullString
	Data           []byte
}
