package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kjstillabower/weatherdesk/internal/client"
	"github.com/kjstillabower/weatherdesk/internal/models"
	"github.com/kjstillabower/weatherdesk/internal/observability"
)

// Datastore is the persistence surface the service depends on. *store.Store
// satisfies it; tests substitute their own.
type Datastore interface {
	CacheSet(key string, data []byte, ttl time.Duration) error
	CacheGet(key string) ([]byte, bool, error)
	CacheClearExpired() (int64, error)
	HistoryAdd(city, country string, lat, lon float64) error
	HistoryGet(limit int) ([]models.HistoryEntry, error)
	HistoryClear() error
	FavoriteAdd(fav models.FavoriteCity) (int64, error)
	FavoriteExists(lat, lon float64) (bool, error)
	Favorites() ([]models.FavoriteCity, error)
	FavoriteRemove(id int64) error
	Close() error
}

// WeatherService orchestrates the API client, the durable cache, and the
// history/favorites stores. It is the entire surface the UI layer may call;
// it holds no state between calls beyond its dependencies and the request
// sequence counter.
type WeatherService struct {
	client client.WeatherAPI
	store  Datastore
	ttl    time.Duration
	logger *zap.Logger
	reqSeq atomic.Uint64
}

// New creates a WeatherService. ttl is the default cache TTL applied to
// every stored payload.
func New(api client.WeatherAPI, store Datastore, ttl time.Duration, logger *zap.Logger) *WeatherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeatherService{
		client: api,
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// NextRequestID returns a monotonically increasing sequence number. The UI
// tags each async request with one and discards results whose sequence is
// older than the latest issued; in-flight work is never forcibly cancelled.
func (s *WeatherService) NextRequestID() uint64 {
	return s.reqSeq.Add(1)
}

// GetCurrentWeather fetches current conditions for a city using the
// cache-aside pattern. A cache hit parses the stored payload and does not
// record history; only an upstream fetch appends a history row.
func (s *WeatherService) GetCurrentWeather(ctx context.Context, city, unit string, useCache bool) (models.CurrentWeather, error) {
	unit = normalizeUnit(unit)
	key := fmt.Sprintf("current:%s:%s", normalizeCity(city), unit)

	if useCache {
		if raw, ok := s.cacheLookup(key, "current"); ok {
			return client.ParseCurrentWeather(raw, unit)
		}
	}

	s.logger.Info("fetching current weather", zap.String("city", normalizeCity(city)), zap.String("unit", unit))
	raw, err := s.client.CurrentWeather(ctx, city, unit)
	if err != nil {
		return models.CurrentWeather{}, err
	}
	return s.storeCurrent(key, raw, unit, true)
}

// GetCurrentWeatherByCoords fetches current conditions by coordinates.
// The cache key rounds coordinates to 4 decimal places.
func (s *WeatherService) GetCurrentWeatherByCoords(ctx context.Context, lat, lon float64, unit string, useCache bool) (models.CurrentWeather, error) {
	return s.currentByCoords(ctx, lat, lon, unit, useCache, true)
}

// currentByCoords is the coordinate fetch path; recordHistory is off for
// cache warming so refreshing pinned cities does not pollute search history.
func (s *WeatherService) currentByCoords(ctx context.Context, lat, lon float64, unit string, useCache, recordHistory bool) (models.CurrentWeather, error) {
	unit = normalizeUnit(unit)
	key := fmt.Sprintf("current_coords:%.4f:%.4f:%s", lat, lon, unit)

	if useCache {
		if raw, ok := s.cacheLookup(key, "current"); ok {
			return client.ParseCurrentWeather(raw, unit)
		}
	}

	raw, err := s.client.CurrentWeatherByCoords(ctx, lat, lon, unit)
	if err != nil {
		return models.CurrentWeather{}, err
	}
	return s.storeCurrent(key, raw, unit, recordHistory)
}

// storeCurrent caches the raw payload, parses it, and optionally records a
// history row. Persistence failures are not masked.
func (s *WeatherService) storeCurrent(key string, raw []byte, unit string, recordHistory bool) (models.CurrentWeather, error) {
	if err := s.cacheStore(key, raw); err != nil {
		return models.CurrentWeather{}, err
	}
	w, err := client.ParseCurrentWeather(raw, unit)
	if err != nil {
		return models.CurrentWeather{}, err
	}
	if recordHistory {
		if err := s.store.HistoryAdd(w.City, w.Country, w.Lat, w.Lon); err != nil {
			observability.StoreErrorsTotal.WithLabelValues("history_add").Inc()
			return models.CurrentWeather{}, err
		}
	}
	return w, nil
}

// GetForecast fetches the 5-day forecast for a city. Forecast lookups are
// not search events: they never write history.
func (s *WeatherService) GetForecast(ctx context.Context, city, unit string, useCache bool) (models.ForecastData, error) {
	unit = normalizeUnit(unit)
	key := fmt.Sprintf("forecast:%s:%s", normalizeCity(city), unit)

	if useCache {
		if raw, ok := s.cacheLookup(key, "forecast"); ok {
			return client.ParseForecast(raw, unit)
		}
	}

	s.logger.Info("fetching forecast", zap.String("city", normalizeCity(city)), zap.String("unit", unit))
	raw, err := s.client.Forecast(ctx, city, unit)
	if err != nil {
		return models.ForecastData{}, err
	}
	if err := s.cacheStore(key, raw); err != nil {
		return models.ForecastData{}, err
	}
	return client.ParseForecast(raw, unit)
}

// GetForecastByCoords fetches the 5-day forecast by coordinates.
func (s *WeatherService) GetForecastByCoords(ctx context.Context, lat, lon float64, unit string, useCache bool) (models.ForecastData, error) {
	unit = normalizeUnit(unit)
	key := fmt.Sprintf("forecast_coords:%.4f:%.4f:%s", lat, lon, unit)

	if useCache {
		if raw, ok := s.cacheLookup(key, "forecast"); ok {
			return client.ParseForecast(raw, unit)
		}
	}

	raw, err := s.client.ForecastByCoords(ctx, lat, lon, unit)
	if err != nil {
		return models.ForecastData{}, err
	}
	if err := s.cacheStore(key, raw); err != nil {
		return models.ForecastData{}, err
	}
	return client.ParseForecast(raw, unit)
}

// GetFullWeather fetches current conditions then the forecast. If either
// fails the whole call fails; there is no partial silent success.
func (s *WeatherService) GetFullWeather(ctx context.Context, city, unit string) (models.CurrentWeather, models.ForecastData, error) {
	current, err := s.GetCurrentWeather(ctx, city, unit, true)
	if err != nil {
		return models.CurrentWeather{}, models.ForecastData{}, err
	}
	forecast, err := s.GetForecast(ctx, city, unit, true)
	if err != nil {
		return models.CurrentWeather{}, models.ForecastData{}, err
	}
	return current, forecast, nil
}

// GetFullWeatherByCoords is GetFullWeather keyed by coordinates.
func (s *WeatherService) GetFullWeatherByCoords(ctx context.Context, lat, lon float64, unit string) (models.CurrentWeather, models.ForecastData, error) {
	current, err := s.GetCurrentWeatherByCoords(ctx, lat, lon, unit, true)
	if err != nil {
		return models.CurrentWeather{}, models.ForecastData{}, err
	}
	forecast, err := s.GetForecastByCoords(ctx, lat, lon, unit, true)
	if err != nil {
		return models.CurrentWeather{}, models.ForecastData{}, err
	}
	return current, forecast, nil
}

// SearchCities resolves a free-text place query. Queries shorter than two
// runes after trimming return an empty result with no network call; the UI
// calls this on debounced autocomplete input.
func (s *WeatherService) SearchCities(ctx context.Context, query string) ([]models.CitySearchResult, error) {
	if utf8.RuneCountInString(strings.TrimSpace(query)) < 2 {
		return []models.CitySearchResult{}, nil
	}
	raw, err := s.client.SearchCities(ctx, query, 5)
	if err != nil {
		return nil, err
	}
	return client.ParseCitySearch(raw)
}

// AddFavorite pins the weather record's location. Returns true when a new
// favorite was created, false when the coordinates were already pinned.
func (s *WeatherService) AddFavorite(weather models.CurrentWeather) (bool, error) {
	exists, err := s.store.FavoriteExists(weather.Lat, weather.Lon)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	_, err = s.store.FavoriteAdd(models.FavoriteCity{
		Name:    weather.City,
		Country: weather.Country,
		Lat:     weather.Lat,
		Lon:     weather.Lon,
	})
	if err != nil {
		observability.StoreErrorsTotal.WithLabelValues("favorite_add").Inc()
		return false, err
	}
	s.logger.Info("added favorite", zap.String("city", weather.City), zap.String("country", weather.Country))
	return true, nil
}

// RemoveFavorite unpins a favorite by id. No-op when absent.
func (s *WeatherService) RemoveFavorite(id int64) error {
	return s.store.FavoriteRemove(id)
}

// Favorites returns all pinned locations ordered by name.
func (s *WeatherService) Favorites() ([]models.FavoriteCity, error) {
	return s.store.Favorites()
}

// IsFavorite reports whether the coordinates are pinned.
func (s *WeatherService) IsFavorite(lat, lon float64) (bool, error) {
	return s.store.FavoriteExists(lat, lon)
}

// SearchHistory returns the most recent distinct searches, newest first.
func (s *WeatherService) SearchHistory(limit int) ([]models.HistoryEntry, error) {
	return s.store.HistoryGet(limit)
}

// ClearHistory deletes all search history.
func (s *WeatherService) ClearHistory() error {
	return s.store.HistoryClear()
}

// ClearExpiredCache sweeps expired cache rows and returns the count removed.
// Maintenance operation; the read path already expires lazily.
func (s *WeatherService) ClearExpiredCache() (int64, error) {
	return s.store.CacheClearExpired()
}

// WarmFavorites refreshes current conditions for every pinned location into
// the cache. Failures on individual cities are logged and skipped; the warm
// stops early only when ctx is cancelled. History is not recorded.
func (s *WeatherService) WarmFavorites(ctx context.Context, unit string) error {
	favs, err := s.store.Favorites()
	if err != nil {
		return err
	}
	for _, f := range favs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.currentByCoords(ctx, f.Lat, f.Lon, unit, true, false); err != nil {
			s.logger.Warn("favorite warm failed",
				zap.String("city", f.Name),
				zap.String("category", string(client.CategorizeError(err))),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Shutdown releases the HTTP client's connections and closes the store.
// In-flight calls finish or fail cleanly; nothing is forcibly killed.
func (s *WeatherService) Shutdown() error {
	s.client.Close()
	err := s.store.Close()
	s.logger.Info("weather service shutdown complete")
	return err
}

// cacheLookup reads the cache, recording hit/miss metrics. Read errors are
// logged and treated as misses so a damaged cache never blocks a fetch.
func (s *WeatherService) cacheLookup(key, kind string) ([]byte, bool) {
	raw, ok, err := s.store.CacheGet(key)
	if err != nil {
		observability.StoreErrorsTotal.WithLabelValues("cache_get").Inc()
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		observability.CacheMissesTotal.WithLabelValues(kind).Inc()
		return nil, false
	}
	observability.CacheHitsTotal.WithLabelValues(kind).Inc()
	s.logger.Debug("cache hit", zap.String("key", key))
	return raw, true
}

// cacheStore writes a fetched payload with the configured TTL. Write
// failures propagate: callers must not assume a set silently succeeded.
func (s *WeatherService) cacheStore(key string, raw []byte) error {
	if err := s.store.CacheSet(key, raw, s.ttl); err != nil {
		observability.StoreErrorsTotal.WithLabelValues("cache_set").Inc()
		return fmt.Errorf("cache weather payload: %w", err)
	}
	return nil
}

// normalizeCity normalizes city names for cache keys: trimmed, lower-cased.
func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

func normalizeUnit(unit string) string {
	if unit == "imperial" {
		return "imperial"
	}
	return "metric"
}
