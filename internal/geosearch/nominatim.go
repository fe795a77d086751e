package geosearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultNominatimURL is the public OpenStreetMap instance.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// NominatimOptions configures the Nominatim geocoder.
type NominatimOptions struct {
	BaseURL   string
	UserAgent string
	QPS       float64 // the public instance allows one request per second
	Limit     int
	Timeout   time.Duration
}

// NominatimGeocoder resolves places through a Nominatim HTTP endpoint.
type NominatimGeocoder struct {
	baseURL    string
	userAgent  string
	limit      int
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error,omitempty"`
}

// NewNominatimGeocoder creates a Nominatim-backed geocoder.
func NewNominatimGeocoder(opts NominatimOptions, logger *zap.Logger) *NominatimGeocoder {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultNominatimURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "agrotrace-portal/1.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NominatimGeocoder{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		limit:     resultLimit(opts.Limit),
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: newLimiter(opts.QPS),
		logger:  logger,
	}
}

// Search forward-geocodes a free-text query.
func (n *NominatimGeocoder) Search(ctx context.Context, query string) ([]Place, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(n.limit))

	var raw []nominatimPlace
	if err := n.get(ctx, "/search", params, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrLocationNotFound
	}

	places := make([]Place, 0, len(raw))
	for _, r := range raw {
		p, err := r.place()
		if err != nil {
			n.logger.Warn("Skipping unparsable nominatim result", zap.String("display_name", r.DisplayName), zap.Error(err))
			continue
		}
		places = append(places, p)
	}
	if len(places) == 0 {
		return nil, ErrLocationNotFound
	}
	return places, nil
}

// Reverse returns the display name of the place at a coordinate.
func (n *NominatimGeocoder) Reverse(ctx context.Context, lat, lng float64) (Place, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("format", "json")

	var raw nominatimPlace
	if err := n.get(ctx, "/reverse", params, &raw); err != nil {
		return Place{}, err
	}
	if raw.Error != "" || raw.DisplayName == "" {
		return Place{}, ErrLocationNotFound
	}
	return Place{Lat: lat, Lng: lng, DisplayName: raw.DisplayName}, nil
}

func (n *NominatimGeocoder) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("nominatim request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode nominatim response: %w", err)
	}
	return nil
}

func (r nominatimPlace) place() (Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return Place{}, err
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return Place{}, err
	}
	return Place{Lat: lat, Lng: lng, DisplayName: r.DisplayName}, nil
}
