package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"places-bot/internal/domain"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// userAgent identifies the bot to the Nominatim usage policy.
const userAgent = "places-bot/1.0"

// reverseResponse is the minimal response shape of the reverse endpoint.
// Street may arrive as "road" or "street". Older response shapes carry
// the street fields at the top level instead of the address sub-object,
// so both locations are mapped.
type reverseResponse struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Road        string `json:"road"`
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
	Address     struct {
		Road        string `json:"road"`
		Street      string `json:"street"`
		HouseNumber string `json:"house_number"`
		Amenity     string `json:"amenity"`
		Building    string `json:"building"`
	} `json:"address"`
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("geocoder: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused Nominatim client for reverse geocoding.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new Client against the public Nominatim instance
// unless WithBaseURL overrides it.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// ResolveAddress reverse-geocodes the coordinates into a display
// address. It never fails: any upstream problem or empty result falls
// back to the coordinate literal.
func (c *Client) ResolveAddress(ctx context.Context, lat, lon float64) string {
	addr, err := c.Reverse(ctx, lat, lon)
	if err != nil || addr == "" {
		return domain.CoordinateLiteral(lat, lon)
	}
	return addr
}

// Reverse calls the reverse endpoint and renders "street, house number"
// when both are present. Without a street it tries the venue name, the
// amenity, the building and finally the full display name.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	reqURL := c.reverseURL(lat, lon)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("geocoder: create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	raw, err := c.doJSONRequest(req, reqURL)
	if err != nil {
		return "", fmt.Errorf("geocoder: request failed: %w", err)
	}

	var payload reverseResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return "", fmt.Errorf("geocoder: decode response: %w", decErr)
	}

	addr := formatAddress(payload)
	if addr == "" {
		return "", errors.New("geocoder: empty reverse result")
	}
	return addr, nil
}

func formatAddress(payload reverseResponse) string {
	// The nested address object wins; the top level is only consulted
	// for older response shapes that never had the sub-object.
	street, house := payload.Address.Road, payload.Address.HouseNumber
	if street == "" {
		street = payload.Address.Street
	}
	if street == "" {
		street, house = payload.Road, payload.HouseNumber
		if street == "" {
			street = payload.Street
		}
	}
	if street != "" {
		if house != "" {
			return street + ", " + house
		}
		return street
	}
	for _, s := range []string{payload.Name, payload.Address.Amenity, payload.Address.Building, payload.DisplayName} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (c *Client) reverseURL(lat, lon float64) string {
	base := strings.TrimRight(c.baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", domain.FormatCoordinate(lat))
	q.Set("lon", domain.FormatCoordinate(lon))
	return base + "/reverse?" + q.Encode()
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
