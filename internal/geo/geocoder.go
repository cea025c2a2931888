package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"vicinity/internal/models"
)

// HTTPGeocoder resolves coordinates through a remote reverse-geocoding
// service returning the standard success envelope.
type HTTPGeocoder struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPGeocoder returns a geocoder for the service at endpoint.
func NewHTTPGeocoder(endpoint string, timeout time.Duration) *HTTPGeocoder {
	return &HTTPGeocoder{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type geocodeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    struct {
		Location string `json:"location"`
	} `json:"data"`
}

// ResolveLocationString looks up the human-readable location of the given
// coordinates.
func (g *HTTPGeocoder) ResolveLocationString(ctx context.Context, c models.Coordinates) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(c.Latitude, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(c.Longitude, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("reverse geocode: build request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reverse geocode: read response: %w", err)
	}

	var decoded geocodeResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("reverse geocode: decode response: %w", err)
	}
	if !decoded.Success {
		return "", fmt.Errorf("reverse geocode rejected: %s", decoded.Message)
	}
	return decoded.Data.Location, nil
}
