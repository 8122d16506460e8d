package storage

import (
	_ "embed"
)

//go:embed schema.sql
var initSchemaSQL string

const (
	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_pulses_session_tsf ON pulses (session_id, tsf);
CREATE INDEX IF NOT EXISTS idx_pulses_session_timestamp ON pulses (session_id, timestamp);`

	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      source_type,
                      source_id,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    source_type,
    source_id,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    source_type,
    source_id,
    config
FROM sessions
ORDER BY start_time, id`

	insertPulseSQL = `
INSERT INTO pulses (
                    session_id,
                    timestamp,
                    tsf,
                    frequency,
                    mode,
                    width,
                    rssi,
                    primary_found,
                    extension_found,
                    checked,
                    chirp,
                    reason,
                    max_bins,
                    data)
VALUES `

	insertPulsePlaceholder = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

	selectPulsesSQL = `
SELECT
    timestamp,
    tsf,
    frequency,
    mode,
    width,
    rssi,
    primary_found,
    extension_found,
    checked,
    chirp,
    reason,
    max_bins,
    data
FROM pulses
WHERE
    session_id = ?`

	selectStatsSQL = `
SELECT
    COUNT(*),
    COALESCE(SUM(checked), 0),
    COALESCE(SUM(chirp), 0),
    MIN(timestamp),
    MAX(timestamp)
FROM pulses
WHERE
    session_id = ?`
)
