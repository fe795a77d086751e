package deforestation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrInference wraps every failure of the inference service. The land's flag
// must be left as it was when this is returned.
var ErrInference = errors.New("deforestation inference failed")

// DefaultLookbackYears is used when a check does not name a period.
const DefaultLookbackYears = 5

// Checker decides whether a polygon is free of recent deforestation.
type Checker interface {
	Check(ctx context.Context, geoPolygon string, lookbackYears int) (bool, error)
}

// Config configures the inference client.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type checkRequest struct {
	GeoPolygon    string `json:"geo_polygon"`
	LookbackYears int    `json:"lookback_years"`
}

type checkResponse struct {
	IsDeforestationFree *bool  `json:"is_deforestation_free"`
	Error               string `json:"error,omitempty"`
}

// Client calls the remote inference service over HTTP.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new inference client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Check posts the polygon and returns the service's verdict.
func (c *Client) Check(ctx context.Context, geoPolygon string, lookbackYears int) (bool, error) {
	if c.url == "" {
		return false, fmt.Errorf("%w: service url not configured", ErrInference)
	}
	if lookbackYears <= 0 {
		lookbackYears = DefaultLookbackYears
	}

	payload, err := json.Marshal(checkRequest{GeoPolygon: geoPolygon, LookbackYears: lookbackYears})
	if err != nil {
		return false, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, fmt.Errorf("%w: reading response: %v", ErrInference, err)
	}

	var out checkResponse
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(body, &out) == nil && out.Error != "" {
			msg = out.Error
		}
		return false, fmt.Errorf("%w: status %d: %s", ErrInference, resp.StatusCode, msg)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return false, fmt.Errorf("%w: decoding response: %v", ErrInference, err)
	}
	if out.IsDeforestationFree == nil {
		return false, fmt.Errorf("%w: response missing is_deforestation_free", ErrInference)
	}

	c.logger.Info("Deforestation inference completed",
		zap.Bool("is_deforestation_free", *out.IsDeforestationFree),
		zap.Int("lookback_years", lookbackYears),
		zap.Duration("took", time.Since(start)),
	)
	return *out.IsDeforestationFree, nil
}
