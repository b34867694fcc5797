package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kjstillabower/weatherdesk/internal/models"
)

// HistoryAdd appends a timestamped search row. Every call appends; the read
// path deduplicates.
func (s *Store) HistoryAdd(city, country string, lat, lon float64) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO search_history (city, country, lat, lon, searched_at)
			 VALUES (?, ?, ?, ?, ?)`,
			city, country, lat, lon, epochSeconds(time.Now()),
		)
		if err != nil {
			return fmt.Errorf("history add: %w", err)
		}
		return nil
	})
}

// HistoryGet returns at most limit distinct (city, country) pairs, each with
// its most recent search time, ordered most-recent first.
func (s *Store) HistoryGet(limit int) ([]models.HistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT city, country, lat, lon, MAX(searched_at) AS last_searched
		 FROM search_history
		 GROUP BY city, country
		 ORDER BY last_searched DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history get: %w", err)
	}
	defer rows.Close()

	out := make([]models.HistoryEntry, 0)
	for rows.Next() {
		var (
			e          models.HistoryEntry
			searchedAt float64
		)
		if err := rows.Scan(&e.City, &e.Country, &e.Lat, &e.Lon, &searchedAt); err != nil {
			return nil, fmt.Errorf("history get: %w", err)
		}
		e.SearchedAt = fromEpochSeconds(searchedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// HistoryClear deletes all history rows.
func (s *Store) HistoryClear() error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM search_history`); err != nil {
			return fmt.Errorf("history clear: %w", err)
		}
		return nil
	})
}
