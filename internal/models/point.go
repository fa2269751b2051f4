package models

import (
	"encoding/json"
	"fmt"
)

// Point is a GeoJSON Point geometry. Coordinates are [longitude, latitude]
// in WGS84, the order used on the wire by GeoJSON producers.
type Point struct {
	Coordinates [2]float64
}

// Coordinates is a resolved latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LatLng converts the GeoJSON pair to latitude/longitude order.
func (p Point) LatLng() Coordinates {
	return Coordinates{Latitude: p.Coordinates[1], Longitude: p.Coordinates[0]}
}

// MarshalJSON implements json.Marshaler.
func (p Point) MarshalJSON() ([]byte, error) {
	geom := struct {
		Type        string     `json:"type"`
		Coordinates [2]float64 `json:"coordinates"`
	}{
		Type:        "Point",
		Coordinates: p.Coordinates,
	}
	return json.Marshal(geom)
}

// UnmarshalJSON implements json.Unmarshaler. Anything other than a Point with
// at least two coordinates is rejected.
func (p *Point) UnmarshalJSON(data []byte) error {
	var geom struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(data, &geom); err != nil {
		return fmt.Errorf("failed to unmarshal point: %w", err)
	}
	if geom.Type != "" && geom.Type != "Point" {
		return fmt.Errorf("expected Point type, got %s", geom.Type)
	}
	if len(geom.Coordinates) < 2 {
		return fmt.Errorf("point needs 2 coordinates, got %d", len(geom.Coordinates))
	}

	p.Coordinates = [2]float64{geom.Coordinates[0], geom.Coordinates[1]}
	return nil
}
