package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CacheSet upserts a raw payload under key with the given TTL in effect from
// now. Same-key races resolve last-write-wins.
func (s *Store) CacheSet(key string, data []byte, ttl time.Duration) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT OR REPLACE INTO weather_cache (cache_key, data, cached_at, ttl)
			 VALUES (?, ?, ?, ?)`,
			key, string(data), epochSeconds(time.Now()), int64(ttl.Seconds()),
		)
		if err != nil {
			return fmt.Errorf("cache set %q: %w", key, err)
		}
		return nil
	})
}

// CacheGet returns the payload for key if present and unexpired. An entry
// older than its TTL is logically absent: it is deleted as a side effect of
// the read (lazy expiry) and (nil, false, nil) is returned. Two concurrent
// expired reads racing on the delete is benign.
func (s *Store) CacheGet(key string) ([]byte, bool, error) {
	var (
		data     string
		cachedAt float64
		ttl      int64
	)
	err := s.db.QueryRow(
		`SELECT data, cached_at, ttl FROM weather_cache WHERE cache_key = ?`, key,
	).Scan(&data, &cachedAt, &ttl)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %q: %w", key, err)
	}

	age := epochSeconds(time.Now()) - cachedAt
	if age > float64(ttl) {
		if err := s.CacheDelete(key); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	return []byte(data), true, nil
}

// CacheDelete removes a single entry. No-op when the key is absent.
func (s *Store) CacheDelete(key string) error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM weather_cache WHERE cache_key = ?`, key); err != nil {
			return fmt.Errorf("cache delete %q: %w", key, err)
		}
		return nil
	})
}

// CacheClearExpired sweeps all expired entries and returns the count
// removed. Maintenance operation; the hot path relies on lazy expiry.
func (s *Store) CacheClearExpired() (int64, error) {
	var removed int64
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`DELETE FROM weather_cache WHERE (? - cached_at) > ttl`,
			epochSeconds(time.Now()),
		)
		if err != nil {
			return fmt.Errorf("cache clear expired: %w", err)
		}
		removed, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("cache clear expired: %w", err)
		}
		return nil
	})
	return removed, err
}
