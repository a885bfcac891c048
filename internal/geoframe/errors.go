package geoframe

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn indicates a required property is absent from a row.
	ErrMissingColumn = errors.New("missing required column")
	// ErrMissingGeometry indicates a row or feature has no geometry.
	ErrMissingGeometry = errors.New("missing geometry")
	// ErrInvalidGeometry indicates coordinates outside the EPSG:4326 domain.
	ErrInvalidGeometry = errors.New("geometry outside EPSG:4326 bounds")
	// ErrGeometryType indicates a layer row with a geometry of the wrong kind.
	ErrGeometryType = errors.New("unexpected geometry type")
	// ErrUnsupportedValue indicates a property value with no wire representation.
	ErrUnsupportedValue = errors.New("unsupported property value")
	// ErrNativeDuration indicates a native duration outside a duration column.
	ErrNativeDuration = errors.New("native duration value cannot be sent on the wire")
	// ErrCRS indicates an absent or non-EPSG:4326 coordinate reference system.
	ErrCRS = errors.New("coordinate reference system must be EPSG:4326")
	// ErrMalformed indicates the document is not a GeoJSON FeatureCollection.
	ErrMalformed = errors.New("malformed GeoJSON")
	// ErrNotInteger indicates a duration column holding something other than an int64 nanosecond count.
	ErrNotInteger = errors.New("duration column is not an int64 nanosecond count")
)

// EncodingError reports a Frame that cannot be written to GeoJSON.
// Row is -1 for frame-level failures.
type EncodingError struct {
	Row    int
	Column string
	Err    error
}

func (e *EncodingError) Error() string {
	return "encode: " + describe(e.Row, e.Column, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError reports a GeoJSON document that cannot be read into a Frame.
// Row is -1 for document-level failures.
type DecodingError struct {
	Row    int
	Column string
	Err    error
}

func (e *DecodingError) Error() string {
	return "decode: " + describe(e.Row, e.Column, e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }

func describe(row int, column string, err error) string {
	switch {
	case row < 0:
		return err.Error()
	case column == "":
		return fmt.Sprintf("row %d: %v", row, err)
	default:
		return fmt.Sprintf("row %d column %q: %v", row, column, err)
	}
}
