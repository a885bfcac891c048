package analysis

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/smukkama/coverage-server/internal/geoframe"
)

var (
	ErrUnsupportedCell  = errors.New("cell geometry must be a Polygon or MultiPolygon")
	ErrUnsupportedPoint = errors.New("observation geometry must be a Point")
)

// Grid joins reduced point statistics onto the cell layer. Each cell that
// contains at least one observation yields one row carrying the cell's own
// properties, a cell_id (the layer index unless the cell supplies one), the
// sample-weighted mean access and revisit, and the summed sample count.
// Cells without observations are omitted. Containment is planar in
// longitude/latitude; a point on a shared edge may join more than one cell.
func Grid(points, cells *geoframe.Frame) (*geoframe.Frame, error) {
	out := geoframe.New()
	if points.Len() == 0 || cells.Len() == 0 {
		return out, nil
	}

	for i, row := range points.Rows {
		if _, ok := row.Geometry.(orb.Point); !ok {
			return nil, fmt.Errorf("observation %d: %w, got %T", i, ErrUnsupportedPoint, row.Geometry)
		}
		if _, ok := points.Duration(i, geoframe.ColumnAccess); !ok {
			return nil, fmt.Errorf("observation %d: missing %s", i, geoframe.ColumnAccess)
		}
		if _, ok := points.Duration(i, geoframe.ColumnRevisit); !ok {
			return nil, fmt.Errorf("observation %d: missing %s", i, geoframe.ColumnRevisit)
		}
	}

	for c, cell := range cells.Rows {
		contains, err := containment(cell.Geometry)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", c, err)
		}
		bound := cell.Geometry.Bound()

		var (
			samples               int64
			sumAccess, sumRevisit float64
		)
		for i, row := range points.Rows {
			pt := row.Geometry.(orb.Point)
			if !bound.Contains(pt) || !contains(pt) {
				continue
			}
			w, ok := points.Int(i, ColumnSamples)
			if !ok || w <= 0 {
				w = 1
			}
			access, _ := points.Duration(i, geoframe.ColumnAccess)
			revisit, _ := points.Duration(i, geoframe.ColumnRevisit)

			samples += w
			sumAccess += float64(access) * float64(w)
			sumRevisit += float64(revisit) * float64(w)
		}
		if samples == 0 {
			continue
		}

		props := make(map[string]any, len(cell.Properties)+4)
		for k, v := range cell.Properties {
			props[k] = v
		}
		if _, ok := props[ColumnCellID]; !ok {
			props[ColumnCellID] = int64(c)
		}
		props[geoframe.ColumnAccess] = meanDuration(sumAccess, samples)
		props[geoframe.ColumnRevisit] = meanDuration(sumRevisit, samples)
		props[ColumnSamples] = samples

		out.Append(cell.Geometry, props)
	}
	return out, nil
}

func containment(g orb.Geometry) (func(orb.Point) bool, error) {
	switch poly := g.(type) {
	case orb.Polygon:
		return func(p orb.Point) bool { return planar.PolygonContains(poly, p) }, nil
	case orb.MultiPolygon:
		return func(p orb.Point) bool { return planar.MultiPolygonContains(poly, p) }, nil
	case orb.Bound:
		return poly.Contains, nil
	default:
		return nil, fmt.Errorf("%w, got %T", ErrUnsupportedCell, g)
	}
}

func meanDuration(sum float64, weights int64) time.Duration {
	return time.Duration(math.Round(sum / float64(weights)))
}

// Grid is the package-level Grid.
func (a *Analyzer) Grid(points, cells *geoframe.Frame) (*geoframe.Frame, error) {
	return Grid(points, cells)
}
