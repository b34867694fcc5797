package client

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/kjstillabower/weatherdesk/internal/models"
)

type conditionPayload struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type windPayload struct {
	Speed float64  `json:"speed"`
	Deg   *float64 `json:"deg"`
	Gust  *float64 `json:"gust"`
}

type mainPayload struct {
	Temp      float64  `json:"temp"`
	FeelsLike float64  `json:"feels_like"`
	TempMin   *float64 `json:"temp_min"`
	TempMax   *float64 `json:"temp_max"`
	Humidity  int      `json:"humidity"`
	Pressure  int      `json:"pressure"`
}

type currentPayload struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Weather    []conditionPayload `json:"weather"`
	Main       mainPayload        `json:"main"`
	Visibility int                `json:"visibility"`
	Wind       windPayload        `json:"wind"`
	Dt         int64              `json:"dt"`
	Sys        struct {
		Country string `json:"country"`
		Sunrise *int64 `json:"sunrise"`
		Sunset  *int64 `json:"sunset"`
	} `json:"sys"`
	Name string `json:"name"`
}

type forecastPayload struct {
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
		Coord   struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"coord"`
	} `json:"city"`
	List []struct {
		Dt      int64              `json:"dt"`
		Main    mainPayload        `json:"main"`
		Weather []conditionPayload `json:"weather"`
		Wind    windPayload        `json:"wind"`
		Pop     float64            `json:"pop"`
	} `json:"list"`
}

type citySearchPayload struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   string  `json:"state"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// ParseCurrentWeather transforms a raw current-weather payload into the
// domain record. Optional fields (gust, visibility, sunrise, sunset, wind
// bearing) default when absent.
func ParseCurrentWeather(raw json.RawMessage, unit string) (models.CurrentWeather, error) {
	var p currentPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.CurrentWeather{}, fmt.Errorf("parse current weather: %w", err)
	}
	if len(p.Weather) == 0 {
		return models.CurrentWeather{}, fmt.Errorf("parse current weather: missing condition")
	}

	w := models.CurrentWeather{
		City:       p.Name,
		Country:    p.Sys.Country,
		Lat:        p.Coord.Lat,
		Lon:        p.Coord.Lon,
		Timestamp:  time.Unix(p.Dt, 0),
		Temp:       p.Main.Temp,
		FeelsLike:  p.Main.FeelsLike,
		TempMin:    floatOr(p.Main.TempMin, p.Main.Temp),
		TempMax:    floatOr(p.Main.TempMax, p.Main.Temp),
		Humidity:   p.Main.Humidity,
		Pressure:   p.Main.Pressure,
		Visibility: p.Visibility,
		Wind:       mapWind(p.Wind),
		Condition:  mapCondition(p.Weather[0]),
		Unit:       normalizeUnit(unit),
	}
	if p.Sys.Sunrise != nil {
		w.Sunrise = time.Unix(*p.Sys.Sunrise, 0)
	}
	if p.Sys.Sunset != nil {
		w.Sunset = time.Unix(*p.Sys.Sunset, 0)
	}
	return w, nil
}

// ParseForecast transforms a raw 5-day/3-hour forecast payload. The flat
// interval list is grouped by calendar date (local time, first-seen order)
// into daily buckets: min/max temperature across the day, mean humidity
// rounded to the nearest integer, maximum precipitation probability, and
// wind/condition taken from the middle interval of the day. The middle-index
// policy is deliberate; replacing it with an average changes results.
func ParseForecast(raw json.RawMessage, unit string) (models.ForecastData, error) {
	var p forecastPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.ForecastData{}, fmt.Errorf("parse forecast: %w", err)
	}

	hourly := make([]models.HourlyForecast, 0, len(p.List))
	for _, item := range p.List {
		if len(item.Weather) == 0 {
			return models.ForecastData{}, fmt.Errorf("parse forecast: interval missing condition")
		}
		hourly = append(hourly, models.HourlyForecast{
			Timestamp: time.Unix(item.Dt, 0),
			Temp:      item.Main.Temp,
			FeelsLike: item.Main.FeelsLike,
			Humidity:  item.Main.Humidity,
			Wind:      mapWind(item.Wind),
			Condition: mapCondition(item.Weather[0]),
			Pop:       item.Pop,
		})
	}

	return models.ForecastData{
		City:    p.City.Name,
		Country: p.City.Country,
		Lat:     p.City.Coord.Lat,
		Lon:     p.City.Coord.Lon,
		Daily:   aggregateDaily(hourly),
		Hourly:  hourly,
		Unit:    normalizeUnit(unit),
	}, nil
}

// aggregateDaily groups hourly intervals by calendar date, preserving
// first-seen date order.
func aggregateDaily(hourly []models.HourlyForecast) []models.DailyForecast {
	groups := make(map[string][]models.HourlyForecast)
	var order []string
	for _, h := range hourly {
		key := h.Timestamp.Format("2006-01-02")
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], h)
	}

	daily := make([]models.DailyForecast, 0, len(order))
	for _, key := range order {
		hours := groups[key]
		date, _ := time.ParseInLocation("2006-01-02", key, time.Local)

		tempMin, tempMax := hours[0].Temp, hours[0].Temp
		humiditySum := 0
		pop := 0.0
		for _, h := range hours {
			if h.Temp < tempMin {
				tempMin = h.Temp
			}
			if h.Temp > tempMax {
				tempMax = h.Temp
			}
			humiditySum += h.Humidity
			if h.Pop > pop {
				pop = h.Pop
			}
		}
		mid := hours[len(hours)/2]

		daily = append(daily, models.DailyForecast{
			Date:      date,
			TempMin:   tempMin,
			TempMax:   tempMax,
			Humidity:  roundedMean(humiditySum, len(hours)),
			Wind:      mid.Wind,
			Condition: mid.Condition,
			Pop:       pop,
			Hourly:    hours,
		})
	}
	return daily
}

// ParseCitySearch transforms a raw geocoding response into search results.
func ParseCitySearch(raw json.RawMessage) ([]models.CitySearchResult, error) {
	var items []citySearchPayload
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse city search: %w", err)
	}
	results := make([]models.CitySearchResult, 0, len(items))
	for _, item := range items {
		results = append(results, models.CitySearchResult{
			Name:    item.Name,
			Country: item.Country,
			State:   item.State,
			Lat:     item.Lat,
			Lon:     item.Lon,
		})
	}
	return results, nil
}

func mapWind(w windPayload) models.WindData {
	out := models.WindData{Speed: w.Speed}
	if w.Deg != nil {
		out.Deg = *w.Deg
		out.HasDeg = true
	}
	if w.Gust != nil {
		out.Gust = *w.Gust
	}
	return out
}

func mapCondition(c conditionPayload) models.WeatherCondition {
	return models.WeatherCondition{
		ID:          c.ID,
		Main:        c.Main,
		Description: capitalize(c.Description),
		Icon:        c.Icon,
	}
}

func floatOr(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}

// roundedMean returns sum/n rounded to the nearest integer.
func roundedMean(sum, n int) int {
	if n == 0 {
		return 0
	}
	return (2*sum + n) / (2 * n)
}

// capitalize upper-cases the first rune and lower-cases the rest,
// e.g. "clear sky" -> "Clear sky".
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
