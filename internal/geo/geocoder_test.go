package geo

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeNominatim(t *testing.T, body string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestCityResolvesAndCaches(t *testing.T) {
	srv, hits := newFakeNominatim(t, `{"address":{"city":"Bengaluru","state":"Karnataka"}}`)
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	g := NewGeocoder(cachePath, "test-agent", slog.Default(), WithEndpoint(srv.URL))

	ctx := context.Background()
	assert.Equal(t, "Bengaluru", g.City(ctx, 12.9716, 77.5946))
	assert.Equal(t, "Bengaluru", g.City(ctx, 12.9716, 77.5946))
	assert.EqualValues(t, 1, hits.Load())

	// Cache survives a restart.
	g2 := NewGeocoder(cachePath, "test-agent", slog.Default(), WithEndpoint(srv.URL))
	assert.Equal(t, "Bengaluru", g2.City(ctx, 12.9716, 77.5946))
	assert.EqualValues(t, 1, hits.Load())
}

func TestCityFallbackChain(t *testing.T) {
	srv, _ := newFakeNominatim(t, `{"address":{"village":"Khandala","state":"Maharashtra"}}`)
	g := NewGeocoder(filepath.Join(t.TempDir(), "cache.json"), "test-agent", slog.Default(), WithEndpoint(srv.URL))

	assert.Equal(t, "Khandala", g.City(context.Background(), 18.75, 73.37))
}

func TestCityCachesMisses(t *testing.T) {
	srv, hits := newFakeNominatim(t, `{"address":{}}`)
	g := NewGeocoder(filepath.Join(t.TempDir(), "cache.json"), "test-agent", slog.Default(), WithEndpoint(srv.URL))

	ctx := context.Background()
	assert.Equal(t, "", g.City(ctx, 0, 0))
	assert.Equal(t, "", g.City(ctx, 0, 0))
	assert.EqualValues(t, 1, hits.Load())
}

func TestCityUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)
	g := NewGeocoder(filepath.Join(t.TempDir(), "cache.json"), "test-agent", slog.Default(), WithEndpoint(srv.URL))

	assert.Equal(t, "", g.City(context.Background(), 12.97, 77.59))
}

func TestContextFormat(t *testing.T) {
	srv, _ := newFakeNominatim(t, `{"address":{"city":"Pune"}}`)
	g := NewGeocoder(filepath.Join(t.TempDir(), "cache.json"), "test-agent", slog.Default(), WithEndpoint(srv.URL))

	got := g.Context(context.Background(), 18.52, 73.85)
	assert.Equal(t, "Pune, Southern India", got)
}

func TestContextWithoutCity(t *testing.T) {
	srv, _ := newFakeNominatim(t, `{"address":{}}`)
	g := NewGeocoder(filepath.Join(t.TempDir(), "cache.json"), "test-agent", slog.Default(), WithEndpoint(srv.URL))

	got := g.Context(context.Background(), 48.8566, 2.3522)
	assert.Equal(t, "International (48.8566, 2.3522)", got)
}

func TestRegion(t *testing.T) {
	cases := []struct {
		lat, lng float64
		want     string
	}{
		{19.0760, 72.8777, "Southern India"},
		{23.0225, 72.5714, "Western India"},
		{22.5726, 88.3639, "Central India"},
		{25.5788, 91.8933, "Eastern India"},
		{31.1048, 77.1734, "Northern India"},
		{48.8566, 2.3522, "International"},
		{15.0, 85.0, "India"},
	}
	for _, tc := range cases {
		got := Region(tc.lat, tc.lng)
		require.Equal(t, tc.want, got, "lat=%f lng=%f", tc.lat, tc.lng)
	}
}
