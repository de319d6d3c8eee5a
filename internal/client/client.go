package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kjstillabower/weather-collector-service/internal/models"
	"github.com/kjstillabower/weather-collector-service/internal/observability"
)

// DefaultTimeout bounds a single current-conditions request.
const DefaultTimeout = 10 * time.Second

// WeatherClient fetches current conditions by coordinates.
type WeatherClient interface {
	GetCurrentConditions(ctx context.Context, latitude, longitude float64) (models.CurrentConditions, error)
}

var (
	ErrMissingCredential   = errors.New("weather provider API key not configured")
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrProviderRejected    = errors.New("weather provider rejected request")

	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrRateLimited      = errors.New("rate limited")
)

type OpenWeatherClient struct {
	apiKey  string
	apiURL  string
	timeout time.Duration
	client  *http.Client
}

// NewOpenWeatherClient builds a client for the current-weather endpoint at apiURL.
// An empty apiKey is accepted; every call then fails with ErrMissingCredential
// without touching the network.
func NewOpenWeatherClient(apiKey, apiURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OpenWeatherClient{
		apiKey:  apiKey,
		apiURL:  apiURL,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type openWeatherResponse struct {
	Dt   *int64 `json:"dt"`
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
		Pressure *float64 `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		ID          *int   `json:"id"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind *struct {
		Speed *float64 `json:"speed"`
		Deg   *float64 `json:"deg"`
	} `json:"wind"`
}

func (r openWeatherResponse) empty() bool {
	return r.Dt == nil && r.Main == nil && r.Wind == nil && len(r.Weather) == 0
}

// GetCurrentConditions issues one request, in metric units, for the given
// coordinates. There are no retries.
func (c *OpenWeatherClient) GetCurrentConditions(ctx context.Context, latitude, longitude float64) (models.CurrentConditions, error) {
	if c.apiKey == "" {
		observability.WeatherAPICallsTotal.WithLabelValues("not_configured").Inc()
		return models.CurrentConditions{}, ErrMissingCredential
	}

	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, latitude, longitude)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return models.CurrentConditions{}, fmt.Errorf("build request: %w", err)
	}

	corrID := observability.CorrelationID(ctx)
	if corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.CurrentConditions{}, fmt.Errorf("%w: request timeout: %w", ErrProviderUnavailable, err)
		}
		return models.CurrentConditions{}, fmt.Errorf("%w: http request failed: %w", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(duration)

	if err := c.handleErrorResponse(resp); err != nil {
		return models.CurrentConditions{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.CurrentConditions{}, fmt.Errorf("%w: read response body: %w", ErrProviderUnavailable, err)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return models.CurrentConditions{}, fmt.Errorf("%w: empty payload", ErrProviderRejected)
	}

	var apiResp openWeatherResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.CurrentConditions{}, fmt.Errorf("%w: parse response: %w", ErrProviderRejected, err)
	}
	if apiResp.empty() {
		return models.CurrentConditions{}, fmt.Errorf("%w: payload has no weather fields", ErrProviderRejected)
	}

	return mapResponse(apiResp), nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, latitude, longitude float64) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(latitude, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(longitude, 'f', -1, 64))
	params.Set("units", "metric")
	params.Set("appid", c.apiKey)
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *OpenWeatherClient) handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ErrProviderRejected, ErrInvalidAPIKey)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrProviderRejected, ErrLocationNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrProviderRejected, ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrProviderRejected, resp.StatusCode)
	}

	return nil
}

func mapResponse(apiResp openWeatherResponse) models.CurrentConditions {
	var out models.CurrentConditions
	if apiResp.Dt != nil {
		out.ObservedAt = time.Unix(*apiResp.Dt, 0).UTC()
	}
	if apiResp.Main != nil {
		out.Temperature = apiResp.Main.Temp
		out.Humidity = apiResp.Main.Humidity
		out.Pressure = apiResp.Main.Pressure
	}
	if apiResp.Wind != nil {
		out.WindSpeed = apiResp.Wind.Speed
		out.WindDirection = apiResp.Wind.Deg
	}
	for _, w := range apiResp.Weather {
		out.Conditions = append(out.Conditions, models.Condition{Code: w.ID, Description: w.Description})
	}
	return out
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
