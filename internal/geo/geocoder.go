// Package geo converts client coordinates to human-readable locations via
// the Nominatim reverse-geocoding service, with a persistent local cache.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"
)

const nominatimURL = "https://nominatim.openstreetmap.org/reverse"

// LocationInfo describes a resolved location.
type LocationInfo struct {
	City        string  `json:"city,omitempty"`
	Region      string  `json:"region"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Coordinates string  `json:"coordinates"`
}

// Geocoder resolves coordinates to city names. Results, including misses,
// are cached keyed by coordinate so repeated lookups never re-hit the
// upstream API.
type Geocoder struct {
	endpoint   string
	userAgent  string
	cachePath  string
	httpClient *http.Client
	log        *slog.Logger

	mu    sync.Mutex
	cache map[string]string
}

// Option configures a Geocoder.
type Option func(*Geocoder)

// WithEndpoint overrides the Nominatim endpoint, for tests.
func WithEndpoint(endpoint string) Option {
	return func(g *Geocoder) { g.endpoint = endpoint }
}

// NewGeocoder creates a Geocoder persisting its cache at cachePath. An
// unreadable cache file starts empty.
func NewGeocoder(cachePath, userAgent string, log *slog.Logger, opts ...Option) *Geocoder {
	g := &Geocoder{
		endpoint:   nominatimURL,
		userAgent:  userAgent,
		cachePath:  cachePath,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        log,
		cache:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.loadCache()
	return g
}

func (g *Geocoder) loadCache() {
	data, err := os.ReadFile(g.cachePath)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &g.cache); err != nil {
		g.log.Warn("discarding unreadable geocode cache", "path", g.cachePath, "error", err)
		g.cache = make(map[string]string)
	}
}

func (g *Geocoder) saveCache() {
	data, err := json.Marshal(g.cache)
	if err != nil {
		return
	}
	if err := os.WriteFile(g.cachePath, data, 0o644); err != nil {
		g.log.Warn("saving geocode cache failed", "path", g.cachePath, "error", err)
	}
}

// City resolves coordinates to a city name, or "" if none was found.
func (g *Geocoder) City(ctx context.Context, latitude, longitude float64) string {
	key := fmt.Sprintf("%.6f,%.6f", latitude, longitude)

	g.mu.Lock()
	if city, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return city
	}
	g.mu.Unlock()

	city := g.reverseGeocode(ctx, latitude, longitude)

	g.mu.Lock()
	g.cache[key] = city
	g.saveCache()
	g.mu.Unlock()

	return city
}

type nominatimResponse struct {
	Address struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		County       string `json:"county"`
		State        string `json:"state"`
	} `json:"address"`
}

func (g *Geocoder) reverseGeocode(ctx context.Context, latitude, longitude float64) string {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", latitude))
	params.Set("lon", fmt.Sprintf("%f", longitude))
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("accept-language", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.log.Warn("reverse geocode failed", "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.log.Warn("reverse geocode failed", "status", resp.StatusCode)
		return ""
	}

	var out nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		g.log.Warn("decoding reverse geocode response failed", "error", err)
		return ""
	}

	a := out.Address
	for _, candidate := range []string{a.City, a.Town, a.Village, a.Municipality, a.County, a.State} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// Info resolves coordinates to a city plus a coarse region.
func (g *Geocoder) Info(ctx context.Context, latitude, longitude float64) LocationInfo {
	return LocationInfo{
		City:        g.City(ctx, latitude, longitude),
		Region:      Region(latitude, longitude),
		Latitude:    latitude,
		Longitude:   longitude,
		Coordinates: fmt.Sprintf("%.4f, %.4f", latitude, longitude),
	}
}

// Context renders a location for use in an answer prompt: "City, Region",
// falling back to the region and raw coordinates when no city resolved.
func (g *Geocoder) Context(ctx context.Context, latitude, longitude float64) string {
	info := g.Info(ctx, latitude, longitude)
	if info.City != "" {
		return fmt.Sprintf("%s, %s", info.City, info.Region)
	}
	return fmt.Sprintf("%s (%.4f, %.4f)", info.Region, latitude, longitude)
}

// Region maps coordinates to a coarse region name.
func Region(latitude, longitude float64) string {
	if latitude < 8.0 || latitude > 37.0 || longitude < 68.0 || longitude > 97.0 {
		return "International"
	}
	switch {
	case latitude >= 20.0 && latitude <= 30.0 && longitude >= 70.0 && longitude <= 80.0:
		return "Western India"
	case latitude >= 10.0 && latitude < 20.0 && longitude >= 70.0 && longitude <= 80.0:
		return "Southern India"
	case latitude >= 20.0 && latitude <= 30.0 && longitude > 80.0 && longitude <= 90.0:
		return "Central India"
	case latitude >= 20.0 && latitude <= 30.0 && longitude > 90.0:
		return "Eastern India"
	case latitude > 30.0 && longitude >= 70.0 && longitude <= 80.0:
		return "Northern India"
	default:
		return "India"
	}
}
