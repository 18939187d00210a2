//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/outage-equity-service/internal/observability"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return NewClient(token, 10*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

func TestSmoke_ForwardGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "Fresno County", "CA")
	require.NoError(t, err)

	assert.InDelta(t, 36.76, result.Lat, 0.5, "lat should be near Fresno County")
	assert.InDelta(t, -119.65, result.Lon, 0.5, "lon should be near Fresno County")
	assert.Contains(t, result.FormattedAddress, "Fresno")
	assert.Greater(t, result.Confidence, 0.5)
}

func TestSmoke_ReverseGeocode(t *testing.T) {
	c := smokeClient(t)

	// Downtown Sacramento.
	result, err := c.ReverseGeocode(context.Background(), 38.5816, -121.4944)
	require.NoError(t, err)

	assert.Contains(t, result.PlaceName, "Sacramento")
	assert.Greater(t, result.Confidence, 0.0)
}

func TestSmoke_CachedGeocoder(t *testing.T) {
	c := smokeClient(t)
	cached, err := NewCachedGeocoder(c, 10, observability.NewMetricsForTesting())
	require.NoError(t, err)

	r1, err := cached.ForwardGeocode(context.Background(), "Marin County", "CA")
	require.NoError(t, err)
	assert.Contains(t, r1.FormattedAddress, "Marin")

	r2, err := cached.ForwardGeocode(context.Background(), "Marin County", "CA")
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}
