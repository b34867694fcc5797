package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/weatherdesk/internal/observability"
	"github.com/kjstillabower/weatherdesk/internal/ratelimit"
	"github.com/kjstillabower/weatherdesk/internal/validation"
)

// WeatherAPI is the outbound surface consumed by the service layer. Methods
// return the raw response body; the service caches raw payloads and parses
// them on the way out.
type WeatherAPI interface {
	CurrentWeather(ctx context.Context, city, unit string) (json.RawMessage, error)
	CurrentWeatherByCoords(ctx context.Context, lat, lon float64, unit string) (json.RawMessage, error)
	Forecast(ctx context.Context, city, unit string) (json.RawMessage, error)
	ForecastByCoords(ctx context.Context, lat, lon float64, unit string) (json.RawMessage, error)
	SearchCities(ctx context.Context, query string, limit int) (json.RawMessage, error)
	ValidateAPIKey(ctx context.Context) error
	Close()
}

// Client is a rate-limited, retrying OpenWeatherMap client. The rate limiter
// is consulted once per logical request, before the retry loop, so backoff
// never amplifies into rate-limit violations.
type Client struct {
	apiKey  string
	baseURL string
	geoURL  string

	timeout        time.Duration
	maxRetries     int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration

	limiter *ratelimit.Limiter
	client  *http.Client
	logger  *zap.Logger
}

// Options configures a Client.
type Options struct {
	APIKey         string
	BaseURL        string
	GeoURL         string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// New creates a Client. The API key is validated for presence only; whether
// it is accepted upstream is checked by ValidateAPIKey.
func New(opts Options, limiter *ratelimit.Limiter, logger *zap.Logger) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(opts.APIKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 500 * time.Millisecond
	}
	if opts.RetryMaxDelay <= 0 {
		opts.RetryMaxDelay = 8 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiKey:         opts.APIKey,
		baseURL:        opts.BaseURL,
		geoURL:         opts.GeoURL,
		timeout:        opts.Timeout,
		maxRetries:     opts.MaxRetries,
		retryBaseDelay: opts.RetryBaseDelay,
		retryMaxDelay:  opts.RetryMaxDelay,
		limiter:        limiter,
		logger:         logger,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
	}, nil
}

// CurrentWeather fetches current conditions by city name.
func (c *Client) CurrentWeather(ctx context.Context, city, unit string) (json.RawMessage, error) {
	city, err := sanitizeCity(city)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("q", city)
	params.Set("units", normalizeUnit(unit))
	return c.get(ctx, c.baseURL+"/weather", params)
}

// CurrentWeatherByCoords fetches current conditions by coordinates.
func (c *Client) CurrentWeatherByCoords(ctx context.Context, lat, lon float64, unit string) (json.RawMessage, error) {
	params := coordParams(lat, lon)
	params.Set("units", normalizeUnit(unit))
	return c.get(ctx, c.baseURL+"/weather", params)
}

// Forecast fetches the 5-day/3-hour forecast by city name.
func (c *Client) Forecast(ctx context.Context, city, unit string) (json.RawMessage, error) {
	city, err := sanitizeCity(city)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("q", city)
	params.Set("units", normalizeUnit(unit))
	params.Set("cnt", "40")
	return c.get(ctx, c.baseURL+"/forecast", params)
}

// ForecastByCoords fetches the 5-day/3-hour forecast by coordinates.
func (c *Client) ForecastByCoords(ctx context.Context, lat, lon float64, unit string) (json.RawMessage, error) {
	params := coordParams(lat, lon)
	params.Set("units", normalizeUnit(unit))
	params.Set("cnt", "40")
	return c.get(ctx, c.baseURL+"/forecast", params)
}

// SearchCities resolves a free-text place name via the geocoding endpoint.
// limit is capped at 10; non-positive limits fall back to 5.
func (c *Client) SearchCities(ctx context.Context, query string, limit int) (json.RawMessage, error) {
	query, err := sanitizeCity(query)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	if limit > 10 {
		limit = 10
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	return c.get(ctx, c.geoURL+"/direct", params)
}

// ValidateAPIKey probes the current-weather endpoint once to confirm the key
// is accepted upstream. Intended for startup, before any UI is shown.
func (c *Client) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	params := url.Values{}
	params.Set("q", "London")
	params.Set("units", "metric")
	_, err := c.get(ctx, c.baseURL+"/weather", params)
	if errors.Is(err, ErrInvalidAPIKey) {
		return err
	}
	// Transient upstream trouble at startup is not a key problem.
	if err != nil && !isRetryable(err) {
		return err
	}
	return nil
}

// Close releases idle connections. Call during shutdown.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

// get executes one logical rate-limited GET with bounded retries. The API
// key is attached to the parameter set only after the request has been
// logged, and never appears in returned errors.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	corrID := uuid.NewString()
	c.logger.Debug("GET",
		zap.String("endpoint", endpoint),
		zap.String("params", params.Encode()),
		zap.String("correlation_id", corrID),
	)
	params.Set("appid", c.apiKey)

	waitStart := time.Now()
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	if wait := time.Since(waitStart); wait > 0 {
		observability.RateLimitWaitSeconds.Observe(wait.Seconds())
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			observability.WeatherAPIRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := c.doOnce(ctx, endpoint, params, corrID)
		if err == nil {
			return body, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("exhausted retries: %w", lastErr)
}

// doOnce performs a single attempt with a per-attempt timeout and translates
// the outcome into the error taxonomy.
func (c *Client) doOnce(ctx context.Context, endpoint string, params url.Values, corrID string) (json.RawMessage, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, newAPIError(ErrRequest, 0, "invalid API URL", err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, newAPIError(ErrRequest, 0, "create request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Correlation-ID", corrID)

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(duration)
		return nil, c.classifyTransportError(err, u.Host)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(duration)

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newAPIError(ErrRequest, resp.StatusCode, "read response body", err)
	}
	return json.RawMessage(body), nil
}

// classifyTransportError maps connector-level failures onto the taxonomy.
// The raw *url.Error is never wrapped because its message embeds the full
// request URL, query string included.
func (c *Client) classifyTransportError(err error, host string) error {
	cause := err
	var uerr *url.Error
	if errors.As(err, &uerr) {
		cause = uerr.Err
	}

	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, context.Canceled) {
		return newAPIError(ErrTimeout, 0, "deadline exceeded for "+host, nil)
	}
	var nerr net.Error
	if errors.As(cause, &nerr) && nerr.Timeout() {
		return newAPIError(ErrTimeout, 0, "network timeout for "+host, nil)
	}
	var operr *net.OpError
	if errors.As(cause, &operr) {
		return newAPIError(ErrConnection, 0, fmt.Sprintf("%s to %s", operr.Op, host), nil)
	}
	var dnsErr *net.DNSError
	if errors.As(cause, &dnsErr) {
		return newAPIError(ErrConnection, 0, "DNS lookup failed for "+host, nil)
	}
	return newAPIError(ErrRequest, 0, fmt.Sprintf("transport failure for %s: %v", host, cause), nil)
}

// classifyStatus maps non-2xx status codes onto the taxonomy. 401 and 404
// fail immediately; 429 and the transient 5xx set are retryable.
func classifyStatus(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return newAPIError(ErrInvalidAPIKey, statusCode, "", nil)
	case http.StatusNotFound:
		return newAPIError(ErrNotFound, statusCode, "", nil)
	case http.StatusTooManyRequests:
		return newAPIError(ErrRateLimited, statusCode, "", nil)
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return newAPIError(ErrUpstream, statusCode, fmt.Sprintf("HTTP %d", statusCode), nil)
	}
	if statusCode < 200 || statusCode >= 300 {
		return newAPIError(ErrRequest, statusCode, fmt.Sprintf("HTTP %d", statusCode), nil)
	}
	return nil
}

// calculateBackoff returns the jittered exponential delay before the given
// retry attempt (attempt >= 1).
func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

// sanitizeCity applies input validation and surfaces failures as
// InvalidInput. No network call is made for rejected input.
func sanitizeCity(city string) (string, error) {
	s, err := validation.SanitizeCity(city)
	if err != nil {
		return "", newAPIError(ErrInvalidInput, 0, "", err)
	}
	return s, nil
}

func normalizeUnit(unit string) string {
	if unit == "imperial" {
		return "imperial"
	}
	return "metric"
}

func coordParams(lat, lon float64) url.Values {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	return params
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
