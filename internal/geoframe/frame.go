// Package geoframe converts geometry-bearing tables to and from GeoJSON
// FeatureCollections in EPSG:4326.
//
// A Frame holds property values in canonical Go types: string, bool, int64,
// float64, nil, nested []any / map[string]any of the same, and time.Duration
// for the duration columns. Durations travel on the wire as signed 64-bit
// nanosecond counts and nowhere else is a native duration accepted.
package geoframe

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// CRS is the only coordinate reference system frames are written in.
const CRS = "EPSG:4326"

// Duration-valued columns of observation tables.
const (
	ColumnAccess  = "access"
	ColumnRevisit = "revisit"
)

// DurationColumns lists the columns converted between time.Duration and int64 nanoseconds.
var DurationColumns = []string{ColumnAccess, ColumnRevisit}

// Row is one feature: a geometry and its properties.
type Row struct {
	Geometry   orb.Geometry
	Properties map[string]any
}

// Frame is an ordered table of rows sharing the EPSG:4326 reference system.
type Frame struct {
	Rows []Row
}

// New returns a frame holding rows.
func New(rows ...Row) *Frame {
	return &Frame{Rows: rows}
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// Append adds a row.
func (f *Frame) Append(geometry orb.Geometry, properties map[string]any) {
	f.Rows = append(f.Rows, Row{Geometry: geometry, Properties: properties})
}

// Duration returns a duration column value of row i.
func (f *Frame) Duration(i int, column string) (time.Duration, bool) {
	d, ok := f.Rows[i].Properties[column].(time.Duration)
	return d, ok
}

// Int returns an integer column value of row i.
func (f *Frame) Int(i int, column string) (int64, bool) {
	v, ok := f.Rows[i].Properties[column].(int64)
	return v, ok
}

// CheckGeometry reports the first row whose GeoJSON geometry type is not
// one of types, as a DecodingError.
func (f *Frame) CheckGeometry(types ...string) error {
	for i, row := range f.Rows {
		if row.Geometry == nil {
			return &DecodingError{Row: i, Err: ErrMissingGeometry}
		}
		if got := row.Geometry.GeoJSONType(); !slices.Contains(types, got) {
			return &DecodingError{Row: i, Err: fmt.Errorf("%w: got %s, want %s", ErrGeometryType, got, strings.Join(types, " or "))}
		}
	}
	return nil
}

// Clone returns a deep copy of the frame's rows and property maps.
// Geometries are shared; they are never mutated in place.
func (f *Frame) Clone() *Frame {
	out := &Frame{Rows: make([]Row, len(f.Rows))}
	for i, row := range f.Rows {
		var props map[string]any
		if row.Properties != nil {
			props = cloneValue(row.Properties).(map[string]any)
		}
		out.Rows[i] = Row{Geometry: row.Geometry, Properties: props}
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return t
	}
}
