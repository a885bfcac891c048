package geoframe

import (
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/paulmach/orb"
)

// TestProperty_DurationRoundTrip checks that decoding an encoded observation
// table reproduces it row for row and value for value, for any duration that
// fits in int64 nanoseconds.
func TestProperty_DurationRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("DecodeDurations(EncodeDurations(f)) == f", prop.ForAll(
		func(lon, lat float64, access, revisit int64, samples int64, score float64, satellite string) bool {
			in := New(
				Row{
					Geometry: orb.Point{lon, lat},
					Properties: map[string]any{
						"point_id":  samples,
						"satellite": satellite,
						"access":    time.Duration(access),
						"revisit":   time.Duration(revisit),
						"samples":   samples,
						"score":     score,
					},
				},
				Row{
					Geometry: orb.Point{-lon, -lat},
					Properties: map[string]any{
						"satellite": satellite + "-b",
						"access":    time.Duration(revisit),
						"revisit":   time.Duration(access),
						"flag":      samples%2 == 0,
						"note":      nil,
					},
				},
			)

			out, err := EncodeDurations(in)
			if err != nil {
				return false
			}
			back, err := DecodeDurations(out)
			if err != nil {
				return false
			}
			return reflect.DeepEqual(in, back)
		},
		gen.Float64Range(-180, 180),
		gen.Float64Range(-90, 90),
		gen.Int64(),
		gen.Int64(),
		gen.Int64(),
		gen.Float64Range(-1e18, 1e18),
		gen.AlphaString(),
	))

	properties.Property("re-encoding a decoded table is byte-identical", prop.ForAll(
		func(access, revisit int64) bool {
			in := New(Row{
				Geometry:   orb.Point{0, 0},
				Properties: map[string]any{"access": time.Duration(access), "revisit": time.Duration(revisit)},
			})
			first, err := EncodeDurations(in)
			if err != nil {
				return false
			}
			back, err := DecodeDurations(first)
			if err != nil {
				return false
			}
			second, err := EncodeDurations(back)
			return err == nil && first == second
		},
		gen.Int64(),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
