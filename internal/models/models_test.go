package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPointUnmarshal covers the GeoJSON shapes returned by the geocoder.
func TestPointUnmarshal(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
		want      Coordinates
	}{
		{
			name:  "valid point",
			input: `{"type":"Point","coordinates":[139.7967,35.6544]}`,
			want:  Coordinates{Latitude: 35.6544, Longitude: 139.7967},
		},
		{
			name:  "missing type is accepted",
			input: `{"coordinates":[139.7,35.6,12.5]}`,
			want:  Coordinates{Latitude: 35.6, Longitude: 139.7},
		},
		{name: "wrong type", input: `{"type":"Polygon","coordinates":[1,2]}`, wantError: true},
		{name: "too few coordinates", input: `{"type":"Point","coordinates":[1]}`, wantError: true},
		{name: "invalid JSON", input: `{invalid}`, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Point
			err := json.Unmarshal([]byte(tt.input), &p)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.LatLng())
		})
	}
}

func TestPointMarshal(t *testing.T) {
	data, err := json.Marshal(Point{Coordinates: [2]float64{139.5, 35.5}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Point","coordinates":[139.5,35.5]}`, string(data))
}

func TestMarketPriceBracketUsable(t *testing.T) {
	assert.True(t, MarketPriceBracket{SampleCount: 20, AvgPrice: 1}.Usable(20))
	assert.True(t, MarketPriceBracket{SampleCount: 25, AvgPrice: 62_000_000}.Usable(20))
	assert.False(t, MarketPriceBracket{SampleCount: 19, AvgPrice: 62_000_000}.Usable(20))
	assert.False(t, MarketPriceBracket{SampleCount: 40, AvgPrice: 0}.Usable(20))
}

func TestListingStatus(t *testing.T) {
	assert.True(t, ListingActive.IsValid())
	assert.True(t, ListingInactive.IsValid())
	assert.False(t, ListingStatus("sold").IsValid())
}

func TestListingHasCoordinates(t *testing.T) {
	lat, lng := 35.0, 139.0
	assert.False(t, (&ListingRecord{}).HasCoordinates())
	assert.False(t, (&ListingRecord{Latitude: &lat}).HasCoordinates())
	assert.True(t, (&ListingRecord{Latitude: &lat, Longitude: &lng}).HasCoordinates())

	// callable on values returned from maps and lookups
	byID := map[string]ListingRecord{"suumo_1": {Latitude: &lat, Longitude: &lng}}
	assert.True(t, byID["suumo_1"].HasCoordinates())
	assert.False(t, byID["suumo_2"].HasCoordinates())
}
