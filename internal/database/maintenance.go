package database

import (
	"time"
)

// PruneOlderThan deletes results older than the given number of days and
// returns how many rows went away.
func (db *DB) PruneOlderThan(days int) (int64, error) {
	res, err := db.Exec(`DELETE FROM results WHERE timestamp < ?`, cutoff(days))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	// Vacuum to reclaim space (run occasionally)
	if n > 0 && time.Now().Day() == 1 {
		_, err := db.Exec("VACUUM")
		return n, err
	}

	return n, nil
}
