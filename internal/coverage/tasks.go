// Package coverage implements the two coverage tasks: point coverage of a
// ground point by a constellation, and gridding of a point coverage result
// onto a cell layer.
//
// Stage two takes stage one's output as an argument. The caller sequences
// the two; tasks never invoke each other.
package coverage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/smukkama/coverage-server/internal/analysis"
	"github.com/smukkama/coverage-server/internal/geoframe"
	"github.com/smukkama/coverage-server/internal/schemas"
)

// Primitives are the orbital analysis steps the tasks compose.
type Primitives interface {
	Collect(ctx context.Context, point schemas.Point, satellites []schemas.Satellite, start, end time.Time) ([]analysis.Window, error)
	Aggregate(windows []analysis.Window, analysisStart time.Time) []analysis.Access
	Reduce(accesses []analysis.Access) *geoframe.Frame
	Grid(points, cells *geoframe.Frame) (*geoframe.Frame, error)
}

// Tasks runs coverage tasks against one set of primitives. It holds no
// per-invocation state and is safe for concurrent use.
type Tasks struct {
	Analyzer Primitives
	Logger   *slog.Logger
}

// New returns Tasks backed by analyzer. A nil logger uses slog.Default.
func New(analyzer Primitives, logger *slog.Logger) *Tasks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tasks{Analyzer: analyzer, Logger: logger}
}

// RunPointCoverage computes per-satellite access and revisit statistics of
// one point over [start, end) and returns them as duration-encoded GeoJSON.
func (t *Tasks) RunPointCoverage(ctx context.Context, point string, satellites []string, start, end string) (string, error) {
	req, err := ParsePointRequest(point, satellites, start, end)
	if err != nil {
		return "", err
	}

	windows, err := t.Analyzer.Collect(ctx, req.Point, req.Satellites, req.Window.Start, req.Window.End)
	if err != nil {
		return "", analysisFailure(err)
	}
	accesses := t.Analyzer.Aggregate(windows, req.Window.Start)
	table := t.Analyzer.Reduce(accesses)

	out, err := geoframe.EncodeDurations(table)
	if err != nil {
		return "", err
	}

	t.Logger.Debug("point coverage computed",
		"point_id", req.Point.ID,
		"satellites", len(req.Satellites),
		"windows", len(windows),
		"accesses", len(accesses),
		"rows", table.Len(),
	)
	return out, nil
}

// RunGridCoverage grids a point coverage result onto cells and returns the
// envelope holding both layers.
func (t *Tasks) RunGridCoverage(ctx context.Context, coverageResult, cells string) (string, error) {
	points, err := geoframe.DecodeDurations(coverageResult)
	if err != nil {
		return "", &InvalidRequestError{Err: err}
	}
	layer, err := geoframe.Decode(cells)
	if err != nil {
		return "", &InvalidRequestError{Err: err}
	}
	if err := points.CheckGeometry(geojson.TypePoint); err != nil {
		return "", &InvalidRequestError{Err: fmt.Errorf("coverage result: %w", err)}
	}
	if err := layer.CheckGeometry(geojson.TypePolygon, geojson.TypeMultiPolygon); err != nil {
		return "", &InvalidRequestError{Err: fmt.Errorf("cells: %w", err)}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	gridded, err := t.Analyzer.Grid(points.Clone(), layer)
	if err != nil {
		return "", analysisFailure(err)
	}

	cellsOut, err := geoframe.EncodeDurations(gridded)
	if err != nil {
		return "", err
	}
	pointsOut, err := geoframe.EncodeDurations(points)
	if err != nil {
		return "", err
	}

	env := Envelope{Points: json.RawMessage(pointsOut), Cells: json.RawMessage(cellsOut)}
	out, err := env.Marshal()
	if err != nil {
		return "", err
	}

	t.Logger.Debug("grid coverage computed", "points", points.Len(), "cells", layer.Len(), "gridded", gridded.Len())
	return out, nil
}

// analysisFailure wraps primitive errors, passing cancellation through as is.
func analysisFailure(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &AnalysisError{Err: err}
}
