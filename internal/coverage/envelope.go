package coverage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/smukkama/coverage-server/internal/geoframe"
)

// Envelope is the grid coverage result. Both layers are embedded as GeoJSON
// objects, not as JSON strings:
//
//	{"points": {"type":"FeatureCollection",...}, "cells": {"type":"FeatureCollection",...}}
type Envelope struct {
	Points json.RawMessage `json:"points"`
	Cells  json.RawMessage `json:"cells"`
}

// Marshal serializes the envelope. Both layers must be set.
func (e *Envelope) Marshal() (string, error) {
	if len(e.Points) == 0 || len(e.Cells) == 0 {
		return "", fmt.Errorf("envelope needs both points and cells")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return string(data), nil
}

// ParseEnvelope reads an envelope, rejecting unknown members and missing
// layers.
func ParseEnvelope(s string) (*Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.DisallowUnknownFields()

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("failed to parse envelope: trailing data")
	}
	if isNull(env.Points) || isNull(env.Cells) {
		return nil, fmt.Errorf("envelope is missing points or cells")
	}
	return &env, nil
}

// PointsFrame decodes the ungridded point layer.
func (e *Envelope) PointsFrame() (*geoframe.Frame, error) {
	return geoframe.DecodeDurations(string(e.Points))
}

// CellsFrame decodes the gridded cell layer.
func (e *Envelope) CellsFrame() (*geoframe.Frame, error) {
	return geoframe.DecodeDurations(string(e.Cells))
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
