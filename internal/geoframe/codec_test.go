package geoframe

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

func observationFrame() *Frame {
	return New(
		Row{
			Geometry: orb.Point{0, 0},
			Properties: map[string]any{
				"point_id":  int64(0),
				"satellite": "sat-1",
				"access":    1500 * time.Millisecond,
				"revisit":   90 * time.Minute,
				"samples":   int64(3),
			},
		},
		Row{
			Geometry: orb.Point{-122.4194, 37.7749},
			Properties: map[string]any{
				"point_id":  int64(1),
				"satellite": "sat-2",
				"access":    time.Duration(0),
				"revisit":   -time.Second,
				"samples":   int64(1),
			},
		},
	)
}

func TestEncodeDurations_NanosecondIntegers(t *testing.T) {
	out, err := EncodeDurations(observationFrame())
	require.NoError(t, err)

	var doc map[string]any
	dec := json.NewDecoder(strings.NewReader(out))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&doc))

	require.Equal(t, "FeatureCollection", doc["type"])
	crs := doc["crs"].(map[string]any)
	require.Equal(t, "EPSG:4326", crs["properties"].(map[string]any)["name"])

	features := doc["features"].([]any)
	require.Len(t, features, 2)
	first := features[0].(map[string]any)
	props := first["properties"].(map[string]any)
	require.Equal(t, json.Number("1500000000"), props["access"])
	require.Equal(t, json.Number("5400000000000"), props["revisit"])

	_, hasID := first["id"]
	_, hasBBox := first["bbox"]
	require.False(t, hasID)
	require.False(t, hasBBox)
	_, hasBBox = doc["bbox"]
	require.False(t, hasBBox)
}

func TestRoundTrip_Durations(t *testing.T) {
	in := observationFrame()
	out, err := EncodeDurations(in)
	require.NoError(t, err)

	back, err := DecodeDurations(out)
	require.NoError(t, err)
	require.Equal(t, in, back)
}

func TestRoundTrip_PlainCellLayer(t *testing.T) {
	cells := New(Row{
		Geometry: orb.Polygon{{{-180, -90}, {180, -90}, {180, 90}, {-180, 90}, {-180, -90}}},
		Properties: map[string]any{
			"name":   "globe",
			"weight": 2.0,
			"tags":   []any{"a", int64(1), 0.5, nil},
			"meta":   map[string]any{"level": int64(0), "ok": true},
		},
	})

	out, err := Encode(cells)
	require.NoError(t, err)
	require.Contains(t, out, `"weight":2.0`)

	back, err := Decode(out)
	require.NoError(t, err)
	require.Equal(t, cells, back)
}

func TestEncode_EmptyFrame(t *testing.T) {
	out, err := Encode(New())
	require.NoError(t, err)
	require.Contains(t, out, `"features":[]`)

	back, err := Decode(out)
	require.NoError(t, err)
	require.Equal(t, 0, back.Len())

	out, err = EncodeDurations(nil)
	require.NoError(t, err)
	back, err = DecodeDurations(out)
	require.NoError(t, err)
	require.Equal(t, 0, back.Len())
}

func TestEncode_Deterministic(t *testing.T) {
	first, err := EncodeDurations(observationFrame())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := EncodeDurations(observationFrame())
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestEncodeDurations_Errors(t *testing.T) {
	cases := []struct {
		name string
		row  Row
		want error
	}{
		{
			name: "missing access",
			row:  Row{Geometry: orb.Point{0, 0}, Properties: map[string]any{"revisit": time.Second}},
			want: ErrMissingColumn,
		},
		{
			name: "access already integer",
			row:  Row{Geometry: orb.Point{0, 0}, Properties: map[string]any{"access": int64(1), "revisit": time.Second}},
			want: ErrUnsupportedValue,
		},
		{
			name: "missing geometry",
			row:  Row{Properties: map[string]any{"access": time.Second, "revisit": time.Second}},
			want: ErrMissingGeometry,
		},
		{
			name: "latitude out of range",
			row:  Row{Geometry: orb.Point{0, 91}, Properties: map[string]any{"access": time.Second, "revisit": time.Second}},
			want: ErrInvalidGeometry,
		},
		{
			name: "stray duration column",
			row: Row{Geometry: orb.Point{0, 0}, Properties: map[string]any{
				"access": time.Second, "revisit": time.Second, "window": time.Hour,
			}},
			want: ErrNativeDuration,
		},
		{
			name: "non-finite float",
			row: Row{Geometry: orb.Point{0, 0}, Properties: map[string]any{
				"access": time.Second, "revisit": time.Second, "score": math.Inf(1),
			}},
			want: ErrUnsupportedValue,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := EncodeDurations(New(tc.row))
			require.ErrorIs(t, err, tc.want)

			var encErr *EncodingError
			require.True(t, errors.As(err, &encErr))
			require.Equal(t, 0, encErr.Row)
		})
	}
}

func TestEncode_RejectsNativeDuration(t *testing.T) {
	_, err := Encode(New(Row{Geometry: orb.Point{1, 1}, Properties: map[string]any{"access": time.Second}}))
	require.ErrorIs(t, err, ErrNativeDuration)
}

func TestDecodeDurations_Errors(t *testing.T) {
	const crs = `"crs":{"type":"name","properties":{"name":"EPSG:4326"}}`
	feature := func(props string) string {
		return `{"type":"FeatureCollection",` + crs + `,"features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":` + props + `}]}`
	}

	cases := []struct {
		name string
		doc  string
		want error
	}{
		{"malformed json", `{"type":`, ErrMalformed},
		{"not a collection", `{"type":"Feature",` + crs + `}`, ErrMalformed},
		{"absent crs", `{"type":"FeatureCollection","features":[]}`, ErrCRS},
		{"other crs", `{"type":"FeatureCollection","crs":{"type":"name","properties":{"name":"EPSG:3857"}},"features":[]}`, ErrCRS},
		{"null geometry", `{"type":"FeatureCollection",` + crs + `,"features":[{"type":"Feature","geometry":null,"properties":{"access":1,"revisit":1}}]}`, ErrMissingGeometry},
		{"fractional duration", feature(`{"access":1.5,"revisit":1}`), ErrNotInteger},
		{"string duration", feature(`{"access":"PT1S","revisit":1}`), ErrNotInteger},
		{"null duration", feature(`{"access":null,"revisit":1}`), ErrNotInteger},
		{"overflowing duration", feature(`{"access":9223372036854775808,"revisit":1}`), ErrNotInteger},
		{"missing revisit", feature(`{"access":1}`), ErrMissingColumn},
		{"trailing data", feature(`{"access":1,"revisit":1}`) + `{}`, ErrMalformed},
		{"number beyond float64", feature(`{"access":1,"revisit":1,"weight":1e400}`), ErrUnsupportedValue},
		{"nested number beyond float64", feature(`{"access":1,"revisit":1,"tags":[1,{"v":-1e999}]}`), ErrUnsupportedValue},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeDurations(tc.doc)
			require.ErrorIs(t, err, tc.want)

			var decErr *DecodingError
			require.True(t, errors.As(err, &decErr))
		})
	}
}

func TestDecode_CRSAliases(t *testing.T) {
	for _, name := range []string{"EPSG:4326", "urn:ogc:def:crs:EPSG::4326", "urn:ogc:def:crs:OGC:1.3:CRS84", "OGC:CRS84"} {
		doc := `{"type":"FeatureCollection","crs":{"type":"name","properties":{"name":"` + name + `"}},"features":[]}`
		_, err := Decode(doc)
		require.NoError(t, err, name)
	}
}

func TestDecode_IgnoresIncomingIDAndBBox(t *testing.T) {
	doc := `{"type":"FeatureCollection","crs":{"type":"name","properties":{"name":"EPSG:4326"}},` +
		`"features":[{"type":"Feature","id":7,"bbox":[0,0,1,1],"geometry":{"type":"Point","coordinates":[0.5,0.5]},"properties":{"n":1}}]}`

	frame, err := Decode(doc)
	require.NoError(t, err)
	require.Equal(t, 1, frame.Len())

	out, err := Encode(frame)
	require.NoError(t, err)
	require.NotContains(t, out, `"id"`)
	require.NotContains(t, out, `"bbox"`)
}

func TestFrame_CheckGeometry(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	frame := New(
		Row{Geometry: square},
		Row{Geometry: orb.MultiPolygon{square}},
		Row{Geometry: orb.LineString{{0, 0}, {1, 1}}},
	)

	require.NoError(t, New().CheckGeometry("Polygon"))
	require.NoError(t, New(frame.Rows[:2]...).CheckGeometry("Polygon", "MultiPolygon"))

	err := frame.CheckGeometry("Polygon", "MultiPolygon")
	require.ErrorIs(t, err, ErrGeometryType)
	var decErr *DecodingError
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, 2, decErr.Row)
	require.Contains(t, err.Error(), "LineString")

	require.ErrorIs(t, New(Row{}).CheckGeometry("Point"), ErrMissingGeometry)
}

func TestFrame_CloneIsIndependent(t *testing.T) {
	in := observationFrame()
	clone := in.Clone()
	clone.Rows[0].Properties["satellite"] = "changed"

	require.Equal(t, "sat-1", in.Rows[0].Properties["satellite"])
	d, ok := clone.Duration(0, ColumnAccess)
	require.True(t, ok)
	require.Equal(t, 1500*time.Millisecond, d)
}
