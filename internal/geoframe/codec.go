package geoframe

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type featureCollection struct {
	Type     string    `json:"type"`
	CRS      *crsName  `json:"crs,omitempty"`
	Features []feature `json:"features"`
}

type crsName struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

// feature deliberately has no id or bbox members.
type feature struct {
	Type       string            `json:"type"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties map[string]any    `json:"properties"`
}

// Names under which EPSG:4326 (lon/lat WGS-84) is accepted on decode.
var crsAliases = map[string]bool{
	"EPSG:4326":                     true,
	"urn:ogc:def:crs:EPSG::4326":    true,
	"urn:ogc:def:crs:OGC:1.3:CRS84": true,
	"OGC:CRS84":                     true,
}

// EncodeDurations writes a frame whose access and revisit columns hold
// time.Duration values, replacing them with int64 nanosecond counts.
func EncodeDurations(f *Frame) (string, error) {
	return encode(f, true)
}

// Encode writes a frame without duration columns, such as a cell layer.
func Encode(f *Frame) (string, error) {
	return encode(f, false)
}

// DecodeDurations parses a GeoJSON FeatureCollection and converts its access
// and revisit columns from int64 nanosecond counts to time.Duration.
func DecodeDurations(s string) (*Frame, error) {
	return decode(s, true)
}

// Decode parses a GeoJSON FeatureCollection without the duration transform.
func Decode(s string) (*Frame, error) {
	return decode(s, false)
}

func encode(f *Frame, durations bool) (string, error) {
	fc := featureCollection{
		Type:     "FeatureCollection",
		CRS:      newCRS(),
		Features: make([]feature, 0, f.Len()),
	}

	if f != nil {
		for i, row := range f.Rows {
			if row.Geometry == nil {
				return "", &EncodingError{Row: i, Err: ErrMissingGeometry}
			}
			if err := checkBounds(row.Geometry); err != nil {
				return "", &EncodingError{Row: i, Err: err}
			}

			props, err := encodeProperties(row.Properties, durations)
			if err != nil {
				if encErr, ok := err.(*EncodingError); ok {
					encErr.Row = i
					return "", encErr
				}
				return "", &EncodingError{Row: i, Err: err}
			}

			fc.Features = append(fc.Features, feature{
				Type:       "Feature",
				Geometry:   geojson.NewGeometry(row.Geometry),
				Properties: props,
			})
		}
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return "", &EncodingError{Row: -1, Err: err}
	}
	return string(data), nil
}

func encodeProperties(props map[string]any, durations bool) (map[string]any, error) {
	if durations {
		for _, column := range DurationColumns {
			if _, ok := props[column]; !ok {
				return nil, &EncodingError{Column: column, Err: ErrMissingColumn}
			}
		}
	}
	if props == nil {
		return nil, nil
	}

	out := make(map[string]any, len(props))
	for key, value := range props {
		if durations && isDurationColumn(key) {
			d, ok := value.(time.Duration)
			if !ok {
				return nil, &EncodingError{Column: key, Err: fmt.Errorf("%w: got %T", ErrUnsupportedValue, value)}
			}
			out[key] = json.Number(strconv.FormatInt(int64(d), 10))
			continue
		}
		wire, err := encodeValue(value)
		if err != nil {
			return nil, &EncodingError{Column: key, Err: err}
		}
		out[key] = wire
	}
	return out, nil
}

// encodeValue maps a canonical value to its wire form. Floats always carry a
// fraction or exponent so they decode as float64 rather than int64.
func encodeValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool:
		return t, nil
	case int:
		return json.Number(strconv.FormatInt(int64(t), 10)), nil
	case int32:
		return json.Number(strconv.FormatInt(int64(t), 10)), nil
	case int64:
		return json.Number(strconv.FormatInt(t, 10)), nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, fmt.Errorf("%w: non-finite float %v", ErrUnsupportedValue, t)
		}
		s := strconv.FormatFloat(t, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return json.Number(s), nil
	case time.Duration:
		return nil, ErrNativeDuration
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			wire, err := encodeValue(inner)
			if err != nil {
				return nil, err
			}
			out[i] = wire
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			wire, err := encodeValue(inner)
			if err != nil {
				return nil, err
			}
			out[k] = wire
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func decode(s string, durations bool) (*Frame, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var fc featureCollection
	if err := dec.Decode(&fc); err != nil {
		return nil, &DecodingError{Row: -1, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &DecodingError{Row: -1, Err: fmt.Errorf("%w: trailing data after document", ErrMalformed)}
	}
	if fc.Type != "FeatureCollection" {
		return nil, &DecodingError{Row: -1, Err: fmt.Errorf("%w: type %q is not FeatureCollection", ErrMalformed, fc.Type)}
	}
	if err := checkCRS(fc.CRS); err != nil {
		return nil, &DecodingError{Row: -1, Err: err}
	}

	frame := &Frame{Rows: make([]Row, 0, len(fc.Features))}
	for i, feat := range fc.Features {
		if feat.Type != "Feature" {
			return nil, &DecodingError{Row: i, Err: fmt.Errorf("%w: type %q is not Feature", ErrMalformed, feat.Type)}
		}
		if feat.Geometry == nil {
			return nil, &DecodingError{Row: i, Err: ErrMissingGeometry}
		}
		geometry := feat.Geometry.Geometry()
		if geometry == nil {
			return nil, &DecodingError{Row: i, Err: ErrMissingGeometry}
		}
		if err := checkBounds(geometry); err != nil {
			return nil, &DecodingError{Row: i, Err: err}
		}

		props, err := decodeProperties(feat.Properties, durations)
		if err != nil {
			if decErr, ok := err.(*DecodingError); ok {
				decErr.Row = i
				return nil, decErr
			}
			return nil, &DecodingError{Row: i, Err: err}
		}
		frame.Rows = append(frame.Rows, Row{Geometry: geometry, Properties: props})
	}
	return frame, nil
}

func decodeProperties(props map[string]any, durations bool) (map[string]any, error) {
	if durations {
		for _, column := range DurationColumns {
			if _, ok := props[column]; !ok {
				return nil, &DecodingError{Column: column, Err: ErrMissingColumn}
			}
		}
	}
	if props == nil {
		return nil, nil
	}

	out := make(map[string]any, len(props))
	for key, value := range props {
		if durations && isDurationColumn(key) {
			num, ok := value.(json.Number)
			if !ok {
				return nil, &DecodingError{Column: key, Err: fmt.Errorf("%w: got %T", ErrNotInteger, value)}
			}
			ns, err := strconv.ParseInt(num.String(), 10, 64)
			if err != nil {
				return nil, &DecodingError{Column: key, Err: fmt.Errorf("%w: %s", ErrNotInteger, num)}
			}
			out[key] = time.Duration(ns)
			continue
		}
		v, err := decodeValue(value)
		if err != nil {
			return nil, &DecodingError{Column: key, Err: err}
		}
		out[key] = v
	}
	return out, nil
}

// decodeValue maps a wire value to its canonical type. Numbers without a
// fraction or exponent that fit in int64 become int64, all others float64.
// Numbers beyond float64 range are rejected rather than rounded to infinity.
func decodeValue(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		s := t.String()
		if !strings.ContainsAny(s, ".eE") {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n, nil
			}
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, fmt.Errorf("%w: number %s out of range", ErrUnsupportedValue, s)
		}
		return f, nil
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			v, err := decodeValue(inner)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			v, err := decodeValue(inner)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	default:
		return t, nil
	}
}

func isDurationColumn(name string) bool {
	for _, column := range DurationColumns {
		if column == name {
			return true
		}
	}
	return false
}

func newCRS() *crsName {
	c := &crsName{Type: "name"}
	c.Properties.Name = CRS
	return c
}

func checkCRS(c *crsName) error {
	if c == nil {
		return fmt.Errorf("%w: crs member is absent", ErrCRS)
	}
	if c.Type != "name" || !crsAliases[c.Properties.Name] {
		return fmt.Errorf("%w: got %s %q", ErrCRS, c.Type, c.Properties.Name)
	}
	return nil
}

// checkBounds rejects coordinates that are not finite lon/lat degrees.
func checkBounds(g orb.Geometry) error {
	var bad bool
	visitPoints(g, func(p orb.Point) {
		lon, lat := p[0], p[1]
		if math.IsNaN(lon) || math.IsNaN(lat) || lon < -180 || lon > 180 || lat < -90 || lat > 90 {
			bad = true
		}
	})
	if bad {
		return ErrInvalidGeometry
	}
	return nil
}

func visitPoints(g orb.Geometry, fn func(orb.Point)) {
	switch t := g.(type) {
	case orb.Point:
		fn(t)
	case orb.MultiPoint:
		for _, p := range t {
			fn(p)
		}
	case orb.LineString:
		for _, p := range t {
			fn(p)
		}
	case orb.MultiLineString:
		for _, ls := range t {
			visitPoints(ls, fn)
		}
	case orb.Ring:
		for _, p := range t {
			fn(p)
		}
	case orb.Polygon:
		for _, r := range t {
			visitPoints(r, fn)
		}
	case orb.MultiPolygon:
		for _, p := range t {
			visitPoints(p, fn)
		}
	case orb.Collection:
		for _, inner := range t {
			visitPoints(inner, fn)
		}
	case orb.Bound:
		fn(t.Min)
		fn(t.Max)
	}
}

