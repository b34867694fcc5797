package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration assembled from the optional
// YAML file, .env, and environment variables. A Config value is passed
// explicitly into constructors; there is no package-level singleton so tests
// can build isolated instances.
type Config struct {
	APIKey  string
	BaseURL string
	GeoURL  string

	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	RateLimitCalls  int
	RateLimitPeriod time.Duration

	CacheTTL time.Duration
	DBPath   string
}

type fileConfig struct {
	API struct {
		BaseURL string `yaml:"base_url"`
		GeoURL  string `yaml:"geo_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`

	Reliability struct {
		MaxRetries      int    `yaml:"max_retries"`
		RetryBaseDelay  string `yaml:"retry_base_delay"`
		RetryMaxDelay   string `yaml:"retry_max_delay"`
		RateLimitCalls  int    `yaml:"rate_limit_calls"`
		RateLimitPeriod string `yaml:"rate_limit_period"`
	} `yaml:"reliability"`

	Cache struct {
		TTL    string `yaml:"ttl"`
		DBPath string `yaml:"db_path"`
	} `yaml:"cache"`
}

// Load assembles configuration. Precedence: environment variables over the
// YAML file (WEATHERDESK_CONFIG or ./config/weatherdesk.yaml, optional) over
// built-in defaults. A .env file next to the working directory is loaded
// first if present. The API key (OWM_API_KEY) is mandatory; Load fails
// before any other component is constructed when it is absent.
func Load() (*Config, error) {
	_ = godotenv.Load() // best effort; absence of .env is normal

	var fc fileConfig
	path := os.Getenv("WEATHERDESK_CONFIG")
	if path == "" {
		path = filepath.Join("config", "weatherdesk.yaml")
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults only
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	cfg.APIKey = strings.TrimSpace(os.Getenv("OWM_API_KEY"))
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OWM_API_KEY required (set env or .env)")
	}

	cfg.BaseURL = firstNonEmpty(os.Getenv("OWM_BASE_URL"), fc.API.BaseURL, "https://api.openweathermap.org/data/2.5")
	cfg.GeoURL = firstNonEmpty(os.Getenv("OWM_GEO_URL"), fc.API.GeoURL, "https://api.openweathermap.org/geo/1.0")

	cfg.Timeout = parseDuration(firstNonEmpty(os.Getenv("OWM_TIMEOUT"), fc.API.Timeout), 10*time.Second)
	cfg.MaxRetries = parseInt(os.Getenv("OWM_MAX_RETRIES"), fc.Reliability.MaxRetries, 3)
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 500*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 8*time.Second)

	cfg.RateLimitCalls = parseInt(os.Getenv("OWM_RATE_LIMIT_CALLS"), fc.Reliability.RateLimitCalls, 60)
	cfg.RateLimitPeriod = parseDuration(fc.Reliability.RateLimitPeriod, 60*time.Second)

	cfg.CacheTTL = parseDuration(firstNonEmpty(os.Getenv("WEATHERDESK_CACHE_TTL"), fc.Cache.TTL), 10*time.Minute)

	cfg.DBPath = firstNonEmpty(os.Getenv("WEATHERDESK_DB"), fc.Cache.DBPath)
	if cfg.DBPath == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache dir: %w", err)
		}
		cfg.DBPath = filepath.Join(base, "weatherdesk", "weather_cache.db")
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string, falling back to defaultVal on an
// empty string, a parse error, or a non-positive result.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// parseInt returns the first positive value among the env string, the file
// value, and the default.
func parseInt(env string, fileVal, defaultVal int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(env)); err == nil && v > 0 {
		return v
	}
	if fileVal > 0 {
		return fileVal
	}
	return defaultVal
}

// validate rejects configurations the client and limiter cannot operate with.
func validate(cfg *Config) error {
	if !strings.HasPrefix(cfg.BaseURL, "https://") || !strings.HasPrefix(cfg.GeoURL, "https://") {
		return fmt.Errorf("API URLs must use https")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if cfg.RateLimitCalls <= 0 || cfg.RateLimitPeriod <= 0 {
		return fmt.Errorf("rate limit calls and period must be positive")
	}
	if cfg.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	return nil
}
