package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kjstillabower/weatherdesk/internal/models"
)

// FavoriteAdd inserts a favorite, silently ignoring a duplicate (lat, lon)
// pair. Returns the row id: the new id on insert, the pre-existing id when
// the coordinates were already pinned. The add/no-add decision belongs to
// the caller via FavoriteExists.
func (s *Store) FavoriteAdd(fav models.FavoriteCity) (int64, error) {
	addedAt := fav.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now()
	}

	var id int64
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT OR IGNORE INTO favorites (name, country, lat, lon, added_at)
			 VALUES (?, ?, ?, ?, ?)`,
			fav.Name, fav.Country, fav.Lat, fav.Lon, epochSeconds(addedAt),
		)
		if err != nil {
			return fmt.Errorf("favorite add: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("favorite add: %w", err)
		}
		if affected > 0 {
			id, err = res.LastInsertId()
			if err != nil {
				return fmt.Errorf("favorite add: %w", err)
			}
			return nil
		}
		// Duplicate coordinates: report the existing row's id.
		err = tx.QueryRow(
			`SELECT id FROM favorites WHERE lat = ? AND lon = ?`, fav.Lat, fav.Lon,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("favorite add: resolve existing id: %w", err)
		}
		return nil
	})
	return id, err
}

// FavoriteExists reports whether a favorite is pinned at exactly (lat, lon).
func (s *Store) FavoriteExists(lat, lon float64) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM favorites WHERE lat = ? AND lon = ?`, lat, lon,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("favorite exists: %w", err)
	}
	return true, nil
}

// Favorites returns all favorites ordered by name.
func (s *Store) Favorites() ([]models.FavoriteCity, error) {
	rows, err := s.db.Query(
		`SELECT id, name, country, lat, lon, added_at FROM favorites ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("favorites: %w", err)
	}
	defer rows.Close()

	out := make([]models.FavoriteCity, 0)
	for rows.Next() {
		var (
			f       models.FavoriteCity
			addedAt float64
		)
		if err := rows.Scan(&f.ID, &f.Name, &f.Country, &f.Lat, &f.Lon, &addedAt); err != nil {
			return nil, fmt.Errorf("favorites: %w", err)
		}
		f.AddedAt = fromEpochSeconds(addedAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

// FavoriteRemove deletes a favorite by id. No-op when the id is absent.
func (s *Store) FavoriteRemove(id int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM favorites WHERE id = ?`, id); err != nil {
			return fmt.Errorf("favorite remove: %w", err)
		}
		return nil
	})
}
