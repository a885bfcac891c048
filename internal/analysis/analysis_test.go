package analysis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/coverage-server/internal/geoframe"
	"github.com/smukkama/coverage-server/internal/orbit"
	"github.com/smukkama/coverage-server/internal/schemas"
)

var (
	t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 = t0.Add(24 * time.Hour)
)

func testAnalyzer() *Analyzer {
	return New(orbit.AnalyticSun{}, 0, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func equatorial(name string, inst ...schemas.Instrument) schemas.Satellite {
	if len(inst) == 0 {
		inst = []schemas.Instrument{{Name: "default", FieldOfRegard: schemas.DefaultFieldOfRegard}}
	}
	return schemas.Satellite{
		Type:        "satellite",
		Name:        name,
		Orbit:       schemas.Orbit{Type: schemas.OrbitCircular, Altitude: 500e3, Epoch: t0},
		Instruments: inst,
	}
}

func TestCollect_EquatorialPasses(t *testing.T) {
	point := schemas.Point{ID: 0, Name: "origin"}
	windows, err := testAnalyzer().Collect(context.Background(), point, []schemas.Satellite{equatorial("eq-1")}, t0, t1)
	require.NoError(t, err)
	require.NotEmpty(t, windows)

	for i, w := range windows {
		require.Equal(t, "eq-1", w.Satellite)
		require.True(t, w.End.After(w.Start), "window %d is empty", i)
		require.False(t, w.Start.Before(t0))
		require.False(t, w.End.After(t1))
		require.Less(t, w.End.Sub(w.Start), 20*time.Minute)
		if i > 0 {
			require.False(t, w.Start.Before(windows[i-1].End), "windows %d and %d overlap", i-1, i)
		}
	}
}

func TestCollect_Deterministic(t *testing.T) {
	point := schemas.Point{ID: 1, Latitude: 5, Longitude: 20}
	sats := []schemas.Satellite{equatorial("a"), equatorial("b")}

	first, err := testAnalyzer().Collect(context.Background(), point, sats, t0, t1)
	require.NoError(t, err)
	second, err := testAnalyzer().Collect(context.Background(), point, sats, t0, t1)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestCollect_Constraints(t *testing.T) {
	a := testAnalyzer()
	point := schemas.Point{ID: 0}
	ctx := context.Background()

	all, err := a.Collect(ctx, point, []schemas.Satellite{equatorial("s")}, t0, t1)
	require.NoError(t, err)

	long, err := a.Collect(ctx, point, []schemas.Satellite{
		equatorial("s", schemas.Instrument{Name: "slow", FieldOfRegard: 180, MinAccessTime: time.Hour}),
	}, t0, t1)
	require.NoError(t, err)
	require.Empty(t, long)

	day := true
	sunlit, err := a.Collect(ctx, point, []schemas.Satellite{
		equatorial("s", schemas.Instrument{Name: "vis", FieldOfRegard: 180, ReqTargetSunlit: &day}),
	}, t0, t1)
	require.NoError(t, err)
	require.NotEmpty(t, sunlit)
	require.Less(t, len(sunlit), len(all))

	narrow, err := a.Collect(ctx, point, []schemas.Satellite{
		equatorial("s", schemas.Instrument{Name: "narrow", FieldOfRegard: 20}),
	}, t0, t1)
	require.NoError(t, err)
	var wide, tight time.Duration
	for _, w := range all {
		wide += w.End.Sub(w.Start)
	}
	for _, w := range narrow {
		tight += w.End.Sub(w.Start)
	}
	require.Less(t, tight, wide)

	high, err := a.Collect(ctx, schemas.Point{ID: 2, Latitude: 80}, []schemas.Satellite{equatorial("s")}, t0, t1)
	require.NoError(t, err)
	require.Empty(t, high)
}

func TestCollect_Errors(t *testing.T) {
	a := testAnalyzer()
	ctx := context.Background()

	_, err := a.Collect(ctx, schemas.Point{}, nil, t0, t1)
	require.ErrorIs(t, err, ErrEmptyConstellation)

	_, err = a.Collect(ctx, schemas.Point{}, []schemas.Satellite{equatorial("s")}, t0, t0)
	require.Error(t, err)

	bad := equatorial("low")
	bad.Orbit.Altitude = -7000e3
	_, err = a.Collect(ctx, schemas.Point{}, []schemas.Satellite{bad}, t0, t1)
	require.ErrorIs(t, err, orbit.ErrInvalidOrbit)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = a.Collect(cancelled, schemas.Point{}, []schemas.Satellite{equatorial("s")}, t0, t1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestAggregate_MergesAcrossInstruments(t *testing.T) {
	p := schemas.Point{ID: 7, Longitude: 1, Latitude: 2}
	at := func(m int) time.Time { return t0.Add(time.Duration(m) * time.Minute) }

	windows := []Window{
		{Point: p, Satellite: "b", Instrument: "x", Start: at(10), End: at(20)},
		{Point: p, Satellite: "a", Instrument: "x", Start: at(30), End: at(40)},
		{Point: p, Satellite: "a", Instrument: "y", Start: at(35), End: at(45)},
		{Point: p, Satellite: "a", Instrument: "x", Start: at(45), End: at(50)},
		{Point: p, Satellite: "a", Instrument: "x", Start: at(100), End: at(110)},
	}

	got := Aggregate(windows, t0)
	require.Len(t, got, 3)

	require.Equal(t, "a", got[0].Satellite)
	require.Equal(t, at(30), got[0].Start)
	require.Equal(t, at(50), got[0].End)
	require.Equal(t, 20*time.Minute, got[0].Access)
	require.Equal(t, 30*time.Minute, got[0].Revisit)

	require.Equal(t, "a", got[1].Satellite)
	require.Equal(t, 10*time.Minute, got[1].Access)
	require.Equal(t, 50*time.Minute, got[1].Revisit)

	require.Equal(t, "b", got[2].Satellite)
	require.Equal(t, 10*time.Minute, got[2].Revisit)

	require.Empty(t, Aggregate(nil, t0))
}

func TestReduce_MeansPerPair(t *testing.T) {
	p := schemas.Point{ID: 3, Name: "p", Longitude: 10, Latitude: -5}
	accesses := []Access{
		{Window: Window{Point: p, Satellite: "a"}, Access: 10 * time.Minute, Revisit: 60 * time.Minute},
		{Window: Window{Point: p, Satellite: "a"}, Access: 20 * time.Minute, Revisit: 90 * time.Minute},
		{Window: Window{Point: p, Satellite: "b"}, Access: 5 * time.Minute, Revisit: 0},
	}

	frame := Reduce(accesses)
	require.Equal(t, 2, frame.Len())
	require.Equal(t, orb.Point{10, -5}, frame.Rows[0].Geometry)
	require.Equal(t, map[string]any{
		ColumnPointID:          int64(3),
		ColumnPointName:        "p",
		ColumnSatellite:        "a",
		geoframe.ColumnAccess:  15 * time.Minute,
		geoframe.ColumnRevisit: 75 * time.Minute,
		ColumnSamples:          int64(2),
	}, frame.Rows[0].Properties)
	require.Equal(t, "b", frame.Rows[1].Properties[ColumnSatellite])

	empty := Reduce(nil)
	require.NotNil(t, empty)
	require.Equal(t, 0, empty.Len())
	_, err := geoframe.EncodeDurations(empty)
	require.NoError(t, err)
}

func square(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
}

func observation(lon, lat float64, access, revisit time.Duration, samples int64) geoframe.Row {
	return geoframe.Row{
		Geometry: orb.Point{lon, lat},
		Properties: map[string]any{
			geoframe.ColumnAccess:  access,
			geoframe.ColumnRevisit: revisit,
			ColumnSamples:          samples,
		},
	}
}

func TestGrid_WeightedMeans(t *testing.T) {
	points := geoframe.New(
		observation(1, 1, 10*time.Minute, 100*time.Minute, 1),
		observation(2, 2, 20*time.Minute, 40*time.Minute, 3),
		observation(-5, -5, time.Minute, time.Minute, 1),
	)
	cells := geoframe.New(
		geoframe.Row{Geometry: square(0, 0, 10, 10), Properties: map[string]any{"name": "ne"}},
		geoframe.Row{Geometry: square(20, 20, 30, 30), Properties: map[string]any{"name": "empty"}},
		geoframe.Row{Geometry: orb.MultiPolygon{square(-10, -10, -1, -1)}, Properties: map[string]any{ColumnCellID: "sw"}},
	)

	grid, err := Grid(points, cells)
	require.NoError(t, err)
	require.Equal(t, 2, grid.Len())

	ne := grid.Rows[0].Properties
	require.Equal(t, "ne", ne["name"])
	require.Equal(t, int64(0), ne[ColumnCellID])
	require.Equal(t, int64(4), ne[ColumnSamples])
	require.Equal(t, time.Duration(17.5*float64(time.Minute)), ne[geoframe.ColumnAccess])
	require.Equal(t, 55*time.Minute, ne[geoframe.ColumnRevisit])

	sw := grid.Rows[1].Properties
	require.Equal(t, "sw", sw[ColumnCellID])
	require.Equal(t, time.Minute, sw[geoframe.ColumnAccess])

	require.NotContains(t, cells.Rows[0].Properties, ColumnCellID, "cell layer must not be mutated")
}

func TestGrid_EmptyInputs(t *testing.T) {
	globe := geoframe.New(geoframe.Row{Geometry: square(-180, -90, 180, 90)})
	points := geoframe.New(observation(0, 0, time.Minute, time.Minute, 1))

	grid, err := Grid(geoframe.New(), globe)
	require.NoError(t, err)
	require.Equal(t, 0, grid.Len())

	grid, err = Grid(points, geoframe.New())
	require.NoError(t, err)
	require.Equal(t, 0, grid.Len())

	grid, err = Grid(points, globe)
	require.NoError(t, err)
	require.Equal(t, 1, grid.Len())
}

func TestGrid_Errors(t *testing.T) {
	points := geoframe.New(observation(0, 0, time.Minute, time.Minute, 1))

	_, err := Grid(points, geoframe.New(geoframe.Row{Geometry: orb.LineString{{0, 0}, {1, 1}}}))
	require.ErrorIs(t, err, ErrUnsupportedCell)

	bad := geoframe.New(geoframe.Row{Geometry: square(0, 0, 1, 1), Properties: map[string]any{}})
	_, err = Grid(bad, geoframe.New(geoframe.Row{Geometry: square(-1, -1, 2, 2)}))
	require.ErrorIs(t, err, ErrUnsupportedPoint)
}
