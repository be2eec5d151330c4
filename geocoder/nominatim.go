// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cartobase/addrharvest/spatial"
)

// Common errors returned by the client.
var (
	ErrBadOSMID = errors.New("malformed OSM id")
)

// Fields tried, in order, when extracting the city and street components
// from the service's structured address.
var (
	cityFields   = []string{"city", "town", "village", "municipality", "suburb", "district"}
	streetFields = []string{"road", "street", "pedestrian", "path", "footway"}
)

// NominatimOptions configures the Nominatim client.
type NominatimOptions struct {
	// BaseURL of the service, e.g. https://nominatim.openstreetmap.org
	BaseURL string

	// UserAgent identifies this client; the public instance requires one.
	UserAgent string

	// Timeout for a single HTTP request.
	Timeout time.Duration

	// MaxRetries caps attempts for a single query.
	MaxRetries int

	// RetryDelay is the base backoff; attempt n waits n×RetryDelay.
	RetryDelay time.Duration

	// Limiter serializes outbound requests. Required against the public
	// instance, which demands at least a second between requests.
	Limiter *IntervalLimiter
}

// Nominatim is a Geocoder backed by the Nominatim HTTP API.
type Nominatim struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *IntervalLimiter
	maxRetries int
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewNominatim creates a Nominatim client.
func NewNominatim(options NominatimOptions) *Nominatim {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}

	timeout := options.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	maxRetries := options.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	retryDelay := options.RetryDelay
	if retryDelay == 0 {
		retryDelay = 2 * time.Second
	}

	userAgent := options.UserAgent
	if userAgent == "" {
		userAgent = "addrharvest/unknown"
	}

	return &Nominatim{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    options.Limiter,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		sleep:      sleepContext,
	}
}

type nominatimPlace struct {
	OsmType     string            `json:"osm_type"`
	OsmID       int64             `json:"osm_id"`
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	DisplayName string            `json:"display_name"`
	PlaceRank   int               `json:"place_rank"`
	Address     map[string]string `json:"address"`
	BoundingBox []string          `json:"boundingbox"`
}

var osmTypeNames = map[byte]string{
	'N': "node",
	'W': "way",
	'R': "relation",
}

// Lookup resolves a typed OSM id like "N123". An id the service doesn't
// know yields (nil, nil).
func (n *Nominatim) Lookup(ctx context.Context, osmID string) (*Place, error) {
	osmID = strings.ToUpper(strings.TrimSpace(osmID))
	if len(osmID) < 2 {
		return nil, fmt.Errorf("%w: %q", ErrBadOSMID, osmID)
	}

	if _, ok := osmTypeNames[osmID[0]]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadOSMID, osmID)
	}

	if _, err := strconv.ParseInt(osmID[1:], 10, 64); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadOSMID, osmID)
	}

	params := url.Values{}
	params.Set("osm_ids", osmID)
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("extratags", "1")
	params.Set("accept-language", "en")

	results, err := n.get(ctx, n.baseURL+"/lookup?"+params.Encode())
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return nil, nil
	}

	place := toPlace(&results[0])
	place.OSMID = osmID

	return place, nil
}

// Search resolves a free-text query to its best match, or (nil, nil) when
// the service finds nothing.
func (n *Nominatim) Search(ctx context.Context, query string) (*Place, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("limit", "1")
	params.Set("accept-language", "en")

	results, err := n.get(ctx, n.baseURL+"/search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return nil, nil
	}

	place := toPlace(&results[0])
	if place.OSMID == "" && results[0].OsmType != "" {
		place.OSMID = typedID(results[0].OsmType, results[0].OsmID)
	}

	return place, nil
}

// get performs a rate-limited GET with bounded retries. Transient failures
// back off attempt×RetryDelay before trying again; exhaustion returns the
// last error.
func (n *Nominatim) get(ctx context.Context, reqURL string) ([]nominatimPlace, error) {
	var lastErr error

	for attempt := 1; attempt <= n.maxRetries; attempt++ {
		if err := n.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		results, err := n.doRequest(ctx, reqURL)
		if err == nil {
			return results, nil
		}

		lastErr = err

		if !IsRetryable(err) || attempt == n.maxRetries {
			break
		}

		delay := time.Duration(attempt) * n.retryDelay
		if IsRateLimitError(err) {
			// The service asked us to slow down; an ordinary backoff would
			// hit the same throttle again.
			delay *= 2
		}

		if err := n.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

func (n *Nominatim) doRequest(ctx context.Context, reqURL string) ([]nominatimPlace, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept-Language", "en")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: "geocoding request failed", Err: err}
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPStatus(resp.StatusCode)
	}

	var results []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return results, nil
}

func typedID(osmType string, id int64) string {
	switch osmType {
	case "node":
		return "N" + strconv.FormatInt(id, 10)
	case "way":
		return "W" + strconv.FormatInt(id, 10)
	case "relation":
		return "R" + strconv.FormatInt(id, 10)
	default:
		return ""
	}
}

func toPlace(p *nominatimPlace) *Place {
	place := &Place{
		DisplayName: p.DisplayName,
		PlaceRank:   p.PlaceRank,
		Country:     p.Address["country"],
	}

	for _, field := range cityFields {
		if v, ok := p.Address[field]; ok {
			place.City = v

			break
		}
	}

	for _, field := range streetFields {
		if v, ok := p.Address[field]; ok {
			place.Street = v

			break
		}
	}

	if lat, err := strconv.ParseFloat(p.Lat, 64); err == nil {
		if lon, err := strconv.ParseFloat(p.Lon, 64); err == nil {
			place.Centroid = spatial.Point{Lat: lat, Lng: lon}
		}
	}

	if len(p.BoundingBox) == 4 {
		if box, err := spatial.ParseBoundingBox(p.BoundingBox); err == nil {
			place.BoundingBox = box
			place.HasBox = true
		}
	}

	return place
}
