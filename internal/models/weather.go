package models

import (
	"strings"
	"time"
)

// WeatherCondition describes the sky state reported by the upstream API.
type WeatherCondition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// WindData holds wind measurements. Deg and Gust may be absent upstream;
// HasDeg distinguishes a missing bearing from a true north reading.
type WindData struct {
	Speed  float64 `json:"speed"`
	Deg    float64 `json:"deg,omitempty"`
	HasDeg bool    `json:"hasDeg,omitempty"`
	Gust   float64 `json:"gust,omitempty"`
}

var compassPoints = []string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// Direction returns the 16-point compass label for the wind bearing,
// or "N/A" when no bearing was reported.
func (w WindData) Direction() string {
	if !w.HasDeg {
		return "N/A"
	}
	idx := int(w.Deg/22.5+0.5) % 16
	if idx < 0 {
		idx += 16
	}
	return compassPoints[idx]
}

// CurrentWeather is the parsed current-conditions record for one location.
type CurrentWeather struct {
	City       string           `json:"city"`
	Country    string           `json:"country"`
	Lat        float64          `json:"lat"`
	Lon        float64          `json:"lon"`
	Timestamp  time.Time        `json:"timestamp"`
	Temp       float64          `json:"temp"`
	FeelsLike  float64          `json:"feelsLike"`
	TempMin    float64          `json:"tempMin"`
	TempMax    float64          `json:"tempMax"`
	Humidity   int              `json:"humidity"`
	Pressure   int              `json:"pressure"`
	Visibility int              `json:"visibility,omitempty"`
	Wind       WindData         `json:"wind"`
	Condition  WeatherCondition `json:"condition"`
	Sunrise    time.Time        `json:"sunrise,omitzero"`
	Sunset     time.Time        `json:"sunset,omitzero"`
	Unit       string           `json:"unit"`
}

// HourlyForecast is one 3-hour forecast interval.
type HourlyForecast struct {
	Timestamp time.Time        `json:"timestamp"`
	Temp      float64          `json:"temp"`
	FeelsLike float64          `json:"feelsLike"`
	Humidity  int              `json:"humidity"`
	Wind      WindData         `json:"wind"`
	Condition WeatherCondition `json:"condition"`
	Pop       float64          `json:"pop"`
}

// DailyForecast aggregates the hourly intervals of one calendar date.
// Wind and Condition come from the middle interval of the day; Pop is the
// maximum across the day.
type DailyForecast struct {
	Date      time.Time        `json:"date"`
	TempMin   float64          `json:"tempMin"`
	TempMax   float64          `json:"tempMax"`
	Humidity  int              `json:"humidity"`
	Wind      WindData         `json:"wind"`
	Condition WeatherCondition `json:"condition"`
	Pop       float64          `json:"pop"`
	Hourly    []HourlyForecast `json:"hourly"`
}

// ForecastData is the parsed 5-day/3-hour forecast for one location.
type ForecastData struct {
	City    string           `json:"city"`
	Country string           `json:"country"`
	Lat     float64          `json:"lat"`
	Lon     float64          `json:"lon"`
	Daily   []DailyForecast  `json:"daily"`
	Hourly  []HourlyForecast `json:"hourly"`
	Unit    string           `json:"unit"`
}

// CitySearchResult is one geocoding match for a free-text place query.
type CitySearchResult struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   string  `json:"state,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// DisplayName renders "Name, State, Country", omitting an empty state.
func (c CitySearchResult) DisplayName() string {
	parts := []string{c.Name}
	if c.State != "" {
		parts = append(parts, c.State)
	}
	parts = append(parts, c.Country)
	return strings.Join(parts, ", ")
}

// FavoriteCity is a pinned location. ID is assigned by the store on insert.
type FavoriteCity struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	Country string    `json:"country"`
	Lat     float64   `json:"lat"`
	Lon     float64   `json:"lon"`
	AddedAt time.Time `json:"addedAt"`
}

// HistoryEntry is one deduplicated search-history row as returned by reads.
type HistoryEntry struct {
	City       string    `json:"city"`
	Country    string    `json:"country"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	SearchedAt time.Time `json:"searchedAt"`
}
