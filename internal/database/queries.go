package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"speedgauge/internal/models"
)

// ErrNotFound is returned when no result has the requested test ID
var ErrNotFound = errors.New("result not found")

var _ models.ResultStore = (*DB)(nil)

// SaveResult stores a finished run. Saving the same test ID twice
// replaces the earlier row.
func (db *DB) SaveResult(result models.Result) error {
	if result.TestID == "" {
		return fmt.Errorf("result has no test id")
	}
	query := `
        INSERT OR REPLACE INTO results (test_id, timestamp, server, client_ip, dl_mbps, ul_mbps, ping_ms, jitter_ms, share_url)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := db.Exec(query,
		result.TestID,
		result.Timestamp.UTC(),
		result.Server,
		result.ClientIP,
		result.DownloadMbps,
		result.UploadMbps,
		result.PingMs,
		result.JitterMs,
		result.ShareURL,
	)
	return err
}

const resultColumns = `test_id, timestamp, server, client_ip, dl_mbps, ul_mbps, ping_ms, jitter_ms, share_url`

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (models.Result, error) {
	var r models.Result
	var clientIP, shareURL sql.NullString
	err := row.Scan(&r.TestID, &r.Timestamp, &r.Server, &clientIP,
		&r.DownloadMbps, &r.UploadMbps, &r.PingMs, &r.JitterMs, &shareURL)
	if err != nil {
		return models.Result{}, err
	}
	r.ClientIP = clientIP.String
	r.ShareURL = shareURL.String
	return r, nil
}

// GetResult retrieves one result by test ID
func (db *DB) GetResult(testID string) (models.Result, error) {
	row := db.QueryRow(`SELECT `+resultColumns+` FROM results WHERE test_id = ?`, testID)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Result{}, fmt.Errorf("test %q: %w", testID, ErrNotFound)
	}
	return r, err
}

// GetRecent retrieves the newest results first
func (db *DB) GetRecent(limit int) ([]models.Result, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + resultColumns + ` FROM results ORDER BY timestamp DESC LIMIT ?`

	rows, err := db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			continue
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

// GetStats aggregates results of the last days
func (db *DB) GetStats(days int) (models.Stats, error) {
	query := `
        SELECT
            COUNT(*) as runs,
            COALESCE(AVG(dl_mbps), 0) as avg_dl,
            COALESCE(MAX(dl_mbps), 0) as max_dl,
            COALESCE(AVG(ul_mbps), 0) as avg_ul,
            COALESCE(MAX(ul_mbps), 0) as max_ul,
            COALESCE(AVG(ping_ms), 0) as avg_ping,
            COALESCE(AVG(jitter_ms), 0) as avg_jitter
        FROM results
        WHERE timestamp > ?
    `

	var s models.Stats
	err := db.QueryRow(query, cutoff(days)).Scan(&s.Runs,
		&s.AvgDownloadMbps, &s.MaxDownloadMbps,
		&s.AvgUploadMbps, &s.MaxUploadMbps,
		&s.AvgPingMs, &s.AvgJitterMs)
	if err != nil {
		return models.Stats{}, err
	}
	return s, nil
}

func cutoff(days int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -days)
}
