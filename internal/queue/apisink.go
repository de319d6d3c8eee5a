package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kjstillabower/weather-collector-service/internal/models"
)

// APISink forwards raw observations to a running service's POST /weather/logs.
type APISink struct {
	endpoint string
	client   *http.Client
}

// NewAPISink returns a sink posting to baseURL + "/weather/logs".
func NewAPISink(baseURL string, timeout time.Duration) *APISink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APISink{
		endpoint: strings.TrimRight(baseURL, "/") + "/weather/logs",
		client:   &http.Client{Timeout: timeout},
	}
}

// CreateRaw posts obs. 4xx responses wrap ErrPermanent; transport errors and
// 5xx are returned plain so the delivery is retried.
func (s *APISink) CreateRaw(ctx context.Context, obs models.WeatherObservation) (models.StoredObservation, error) {
	body, err := json.Marshal(obs)
	if err != nil {
		return models.StoredObservation{}, fmt.Errorf("%w: encode: %v", ErrPermanent, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.StoredObservation{}, fmt.Errorf("%w: build request: %v", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return models.StoredObservation{}, fmt.Errorf("post raw observation: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	switch {
	case resp.StatusCode >= 500:
		return models.StoredObservation{}, fmt.Errorf("post raw observation: status %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		return models.StoredObservation{}, fmt.Errorf("%w: status %d: %s", ErrPermanent, resp.StatusCode, bytes.TrimSpace(raw))
	}

	var rec models.StoredObservation
	if err := json.Unmarshal(raw, &rec); err != nil {
		// Stored upstream; an unreadable echo is not worth a redelivery.
		return models.StoredObservation{WeatherObservation: obs}, nil
	}
	return rec, nil
}
