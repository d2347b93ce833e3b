package storage

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time  DATETIME NOT NULL,
    source_type TEXT NOT NULL,
    source_id   TEXT NOT NULL,
    config      TEXT
);

CREATE TABLE IF NOT EXISTS samples (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id    INTEGER NOT NULL REFERENCES sessions (id),
    timestamp_ms  INTEGER NOT NULL,
    frequency_hz  REAL NOT NULL,
    amplitude_dbm REAL NOT NULL
);`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_samples_session_time ON samples (session_id, timestamp_ms);`

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
ORDER BY start_time`

	insertSampleSQL = `
INSERT INTO samples (session_id,
                     timestamp_ms,
                     frequency_hz,
                     amplitude_dbm)
VALUES `
)
