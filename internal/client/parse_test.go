package client

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"
)

const currentWeatherPayload = `{
	"coord": {"lon": -0.1257, "lat": 51.5085},
	"weather": [{"id": 800, "main": "Clear", "description": "clear sky", "icon": "01d"}],
	"main": {"temp": 18.5, "feels_like": 17.2, "temp_min": 16.0, "temp_max": 21.0, "humidity": 60, "pressure": 1015},
	"visibility": 10000,
	"wind": {"speed": 4.1, "deg": 270, "gust": 6.2},
	"dt": 1700000000,
	"sys": {"country": "GB", "sunrise": 1699999000, "sunset": 1700020000},
	"name": "London"
}`

// forecastPayloadJSON builds a 40-interval payload starting at a fixed epoch
// with temperatures 18+i and pop cycling 0, 0.1, 0.2.
func forecastPayloadJSON() string {
	var items []string
	for i := 0; i < 40; i++ {
		items = append(items, fmt.Sprintf(`{
			"dt": %d,
			"main": {"temp": %g, "feels_like": 17.0, "humidity": 60, "pressure": 1015},
			"weather": [{"id": 800, "main": "Clear", "description": "clear sky", "icon": "01d"}],
			"wind": {"speed": 3.5, "deg": 200},
			"pop": %g
		}`, 1700000000+int64(i)*10800, 18.0+float64(i), 0.1*float64(i%3)))
	}
	return fmt.Sprintf(`{
		"city": {"name": "London", "country": "GB", "coord": {"lat": 51.5, "lon": -0.12}},
		"list": [%s]
	}`, strings.Join(items, ","))
}

const citySearchPayloadJSON = `[
	{"name": "London", "country": "GB", "state": "England", "lat": 51.5085, "lon": -0.1257},
	{"name": "London", "country": "CA", "state": "Ontario", "lat": 42.9834, "lon": -81.2333}
]`

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestParseCurrentWeather verifies field mapping from the raw payload into
// the domain record.
func TestParseCurrentWeather(t *testing.T) {
	w, err := ParseCurrentWeather(json.RawMessage(currentWeatherPayload), "metric")
	if err != nil {
		t.Fatalf("ParseCurrentWeather() error = %v", err)
	}

	if w.City != "London" || w.Country != "GB" {
		t.Errorf("city/country = %q/%q, want London/GB", w.City, w.Country)
	}
	if !approx(w.Temp, 18.5) || !approx(w.FeelsLike, 17.2) {
		t.Errorf("temp/feels_like = %g/%g, want 18.5/17.2", w.Temp, w.FeelsLike)
	}
	if !approx(w.TempMin, 16.0) || !approx(w.TempMax, 21.0) {
		t.Errorf("temp_min/temp_max = %g/%g, want 16/21", w.TempMin, w.TempMax)
	}
	if !approx(w.Lat, 51.5085) || !approx(w.Lon, -0.1257) {
		t.Errorf("coords = %g,%g, want 51.5085,-0.1257", w.Lat, w.Lon)
	}
	if !approx(w.Wind.Speed, 4.1) || !w.Wind.HasDeg || !approx(w.Wind.Deg, 270) {
		t.Errorf("wind = %+v, want speed 4.1 deg 270", w.Wind)
	}
	if got := w.Wind.Direction(); got != "W" {
		t.Errorf("Direction() = %q, want W", got)
	}
	if w.Condition.Main != "Clear" {
		t.Errorf("condition main = %q, want Clear", w.Condition.Main)
	}
	if w.Condition.Description != "Clear sky" {
		t.Errorf("description = %q, want capitalized %q", w.Condition.Description, "Clear sky")
	}
	if w.Sunrise.IsZero() || w.Sunset.IsZero() {
		t.Error("sunrise/sunset should be set")
	}
	if !w.Timestamp.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("timestamp = %v, want epoch 1700000000", w.Timestamp)
	}
}

// TestParseCurrentWeather_OptionalDefaults verifies that absent optional
// fields (gust, visibility, sunrise/sunset, wind bearing, temp bounds)
// default instead of failing.
func TestParseCurrentWeather_OptionalDefaults(t *testing.T) {
	minimal := `{
		"coord": {"lon": 2.35, "lat": 48.85},
		"weather": [{"id": 500, "main": "Rain", "description": "light rain", "icon": "10d"}],
		"main": {"temp": 12.0, "feels_like": 11.0, "humidity": 80, "pressure": 1001},
		"wind": {"speed": 2.0},
		"dt": 1700000000,
		"sys": {"country": "FR"},
		"name": "Paris"
	}`

	w, err := ParseCurrentWeather(json.RawMessage(minimal), "metric")
	if err != nil {
		t.Fatalf("ParseCurrentWeather() error = %v", err)
	}
	if !approx(w.TempMin, 12.0) || !approx(w.TempMax, 12.0) {
		t.Errorf("temp bounds should default to temp, got %g/%g", w.TempMin, w.TempMax)
	}
	if w.Wind.HasDeg {
		t.Error("wind bearing should be absent")
	}
	if got := w.Wind.Direction(); got != "N/A" {
		t.Errorf("Direction() = %q, want N/A without bearing", got)
	}
	if !w.Sunrise.IsZero() || !w.Sunset.IsZero() {
		t.Error("sunrise/sunset should stay zero when absent")
	}
	if w.Visibility != 0 {
		t.Errorf("visibility = %d, want 0 default", w.Visibility)
	}
}

// TestParseCurrentWeather_MissingCondition verifies that a payload without a
// weather entry is rejected as a parse failure.
func TestParseCurrentWeather_MissingCondition(t *testing.T) {
	payload := `{"weather": [], "main": {"temp": 1}, "dt": 1700000000, "name": "X"}`
	if _, err := ParseCurrentWeather(json.RawMessage(payload), "metric"); err == nil {
		t.Error("ParseCurrentWeather() = nil error, want failure for missing condition")
	}
}

// TestParseForecast_Hourly verifies the flat interval list is parsed fully.
func TestParseForecast_Hourly(t *testing.T) {
	f, err := ParseForecast(json.RawMessage(forecastPayloadJSON()), "metric")
	if err != nil {
		t.Fatalf("ParseForecast() error = %v", err)
	}
	if len(f.Hourly) != 40 {
		t.Errorf("hourly count = %d, want 40", len(f.Hourly))
	}
	if f.City != "London" || f.Country != "GB" {
		t.Errorf("city/country = %q/%q, want London/GB", f.City, f.Country)
	}
}

// TestParseForecast_DailyAggregation verifies the hourly-to-daily grouping:
// at least one bucket per distinct date, min <= max in every bucket, daily
// pop is the max across the day, and dates appear in first-seen order.
func TestParseForecast_DailyAggregation(t *testing.T) {
	f, err := ParseForecast(json.RawMessage(forecastPayloadJSON()), "metric")
	if err != nil {
		t.Fatalf("ParseForecast() error = %v", err)
	}
	if len(f.Daily) < 1 {
		t.Fatal("daily buckets = 0, want at least 1")
	}

	hoursSeen := 0
	var prevDate time.Time
	for i, day := range f.Daily {
		if day.TempMin > day.TempMax {
			t.Errorf("day %d: temp_min %g > temp_max %g", i, day.TempMin, day.TempMax)
		}
		maxPop := 0.0
		for _, h := range day.Hourly {
			if h.Pop > maxPop {
				maxPop = h.Pop
			}
		}
		if !approx(day.Pop, maxPop) {
			t.Errorf("day %d: pop = %g, want max of hours %g", i, day.Pop, maxPop)
		}
		if i > 0 && !day.Date.After(prevDate) {
			t.Errorf("day %d: date %v not after previous %v", i, day.Date, prevDate)
		}
		prevDate = day.Date
		hoursSeen += len(day.Hourly)
	}
	if hoursSeen != 40 {
		t.Errorf("daily buckets cover %d hours, want all 40", hoursSeen)
	}
}

// TestParseForecast_MiddleElementRepresentative verifies that each daily
// bucket takes wind and condition from the middle interval (index len/2),
// not an average.
func TestParseForecast_MiddleElementRepresentative(t *testing.T) {
	f, err := ParseForecast(json.RawMessage(forecastPayloadJSON()), "metric")
	if err != nil {
		t.Fatalf("ParseForecast() error = %v", err)
	}
	for i, day := range f.Daily {
		mid := day.Hourly[len(day.Hourly)/2]
		if day.Wind != mid.Wind {
			t.Errorf("day %d: wind %+v, want middle element's %+v", i, day.Wind, mid.Wind)
		}
		if day.Condition != mid.Condition {
			t.Errorf("day %d: condition %+v, want middle element's %+v", i, day.Condition, mid.Condition)
		}
	}
}

// TestParseForecast_HumidityMean verifies the daily humidity is the rounded
// arithmetic mean of the bucket's hourly humidity values.
func TestParseForecast_HumidityMean(t *testing.T) {
	payload := `{
		"city": {"name": "X", "country": "YZ", "coord": {"lat": 0, "lon": 0}},
		"list": [
			{"dt": 1699963200, "main": {"temp": 10, "feels_like": 10, "humidity": 60, "pressure": 1000},
			 "weather": [{"id": 800, "main": "Clear", "description": "clear sky", "icon": "01d"}], "wind": {"speed": 1}, "pop": 0},
			{"dt": 1699966800, "main": {"temp": 11, "feels_like": 11, "humidity": 61, "pressure": 1000},
			 "weather": [{"id": 800, "main": "Clear", "description": "clear sky", "icon": "01d"}], "wind": {"speed": 1}, "pop": 0}
		]
	}`
	f, err := ParseForecast(json.RawMessage(payload), "metric")
	if err != nil {
		t.Fatalf("ParseForecast() error = %v", err)
	}
	if len(f.Daily) != 1 {
		t.Fatalf("daily buckets = %d, want 1", len(f.Daily))
	}
	// mean of 60 and 61 is 60.5, rounds to 61
	if got := f.Daily[0].Humidity; got != 61 {
		t.Errorf("daily humidity = %d, want 61", got)
	}
}

// TestParseCitySearch verifies geocoding results parse with display names.
func TestParseCitySearch(t *testing.T) {
	results, err := ParseCitySearch(json.RawMessage(citySearchPayloadJSON))
	if err != nil {
		t.Fatalf("ParseCitySearch() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	dn := results[0].DisplayName()
	if !strings.Contains(dn, "London") || !strings.Contains(dn, "England") || !strings.Contains(dn, "GB") {
		t.Errorf("DisplayName() = %q, want name, state and country", dn)
	}
}

// TestParseCitySearch_NoState verifies the display name omits an absent state.
func TestParseCitySearch_NoState(t *testing.T) {
	results, err := ParseCitySearch(json.RawMessage(`[{"name": "Paris", "country": "FR", "lat": 48.85, "lon": 2.35}]`))
	if err != nil {
		t.Fatalf("ParseCitySearch() error = %v", err)
	}
	if got := results[0].DisplayName(); got != "Paris, FR" {
		t.Errorf("DisplayName() = %q, want %q", got, "Paris, FR")
	}
}
