// Package schemas defines the analysis request types carried across the task
// boundary as JSON and parses them strictly.
package schemas

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
)

// Point is a ground location observed by a constellation.
type Point struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name,omitempty"`
	Latitude     float64 `json:"latitude"`  // degrees
	Longitude    float64 `json:"longitude"` // degrees
	Altitude     float64 `json:"altitude"`  // meters above the WGS-84 ellipsoid
	MinElevation float64 `json:"min_elevation"`
}

type pointWire struct {
	ID           *int64   `json:"id"`
	Name         string   `json:"name"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Altitude     float64  `json:"altitude"`
	MinElevation float64  `json:"min_elevation"`
}

// ParsePoint decodes and validates a JSON point.
func ParsePoint(data string) (Point, error) {
	var w pointWire
	if err := decodeStrict(data, &w); err != nil {
		return Point{}, invalidf("point: %v", err)
	}

	switch {
	case w.ID == nil:
		return Point{}, invalidf("point: id is required")
	case w.Latitude == nil:
		return Point{}, invalidf("point: latitude is required")
	case w.Longitude == nil:
		return Point{}, invalidf("point: longitude is required")
	}

	p := Point{
		ID:           *w.ID,
		Name:         w.Name,
		Latitude:     *w.Latitude,
		Longitude:    *w.Longitude,
		Altitude:     w.Altitude,
		MinElevation: w.MinElevation,
	}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Validate checks coordinate and constraint ranges.
func (p Point) Validate() error {
	if p.Latitude < -90 || p.Latitude > 90 || math.IsNaN(p.Latitude) {
		return invalidf("point %d: latitude %v outside [-90, 90]", p.ID, p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 || math.IsNaN(p.Longitude) {
		return invalidf("point %d: longitude %v outside [-180, 180]", p.ID, p.Longitude)
	}
	if math.IsNaN(p.Altitude) || math.IsInf(p.Altitude, 0) {
		return invalidf("point %d: altitude must be finite", p.ID)
	}
	if p.MinElevation < 0 || p.MinElevation >= 90 || math.IsNaN(p.MinElevation) {
		return invalidf("point %d: min_elevation %v outside [0, 90)", p.ID, p.MinElevation)
	}
	return nil
}

// decodeStrict unmarshals a single JSON object, rejecting unknown fields and trailing data.
func decodeStrict(data string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errTrailing
	}
	return nil
}
