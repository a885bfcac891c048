// Package analysis computes access windows of a constellation over ground
// points and reduces them to coverage statistics.
//
// The pipeline is Collect -> Aggregate -> Reduce for one point, and Grid to
// join reduced point statistics onto a polygon layer. Every stage is a pure
// function of its inputs; the only shared input is the read-only Sun source.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smukkama/coverage-server/internal/orbit"
	"github.com/smukkama/coverage-server/internal/schemas"
)

const (
	DefaultCoarseStep = 30 * time.Second
	DefaultFineStep   = time.Second
)

var ErrEmptyConstellation = errors.New("constellation has no satellites")

// Window is one raw visibility interval [Start, End) of a point by a
// satellite instrument.
type Window struct {
	Point      schemas.Point
	Satellite  string
	Instrument string
	Start      time.Time
	End        time.Time
}

// Analyzer holds the scan resolution and the Sun source shared by all
// analyses. It has no mutable state.
type Analyzer struct {
	Sun        orbit.SunSource
	CoarseStep time.Duration
	FineStep   time.Duration
	Logger     *slog.Logger
}

// New returns an analyzer, substituting defaults for non-positive steps.
func New(sun orbit.SunSource, coarse, fine time.Duration, logger *slog.Logger) *Analyzer {
	if coarse <= 0 {
		coarse = DefaultCoarseStep
	}
	if fine <= 0 || fine > coarse {
		fine = DefaultFineStep
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{Sun: sun, CoarseStep: coarse, FineStep: fine, Logger: logger}
}

// Collect finds the visibility windows of point for every satellite
// instrument over [start, end). Windows shorter than an instrument's minimum
// access time are dropped. A visibility interval shorter than the coarse step
// may be missed.
func (a *Analyzer) Collect(ctx context.Context, point schemas.Point, satellites []schemas.Satellite, start, end time.Time) ([]Window, error) {
	if len(satellites) == 0 {
		return nil, ErrEmptyConstellation
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("analysis window %s..%s is empty", start, end)
	}

	obs := orbit.NewObserver(point.Latitude, point.Longitude, point.Altitude)
	var windows []Window

	for _, sat := range satellites {
		prop, err := orbit.New(sat.Orbit, a.Sun)
		if err != nil {
			return nil, fmt.Errorf("satellite %s: %w", sat.Name, err)
		}

		for _, inst := range sat.Instruments {
			vis := a.visibility(prop, obs, point, inst)
			spans, err := a.scan(ctx, vis, start, end)
			if err != nil {
				return nil, fmt.Errorf("satellite %s instrument %s: %w", sat.Name, inst.Name, err)
			}
			for _, s := range spans {
				if s.end.Sub(s.start) < inst.MinAccessTime {
					continue
				}
				windows = append(windows, Window{
					Point:      point,
					Satellite:  sat.Name,
					Instrument: inst.Name,
					Start:      s.start,
					End:        s.end,
				})
			}
		}
	}

	a.Logger.Debug("observations collected", "point_id", point.ID, "satellites", len(satellites), "windows", len(windows))
	return windows, nil
}

type visibilityFunc func(t time.Time) (bool, error)

// visibility builds the access predicate for one instrument over one point.
func (a *Analyzer) visibility(prop orbit.Propagator, obs orbit.Observer, point schemas.Point, inst schemas.Instrument) visibilityFunc {
	halfCone := inst.FieldOfRegard / 2

	return func(t time.Time) (bool, error) {
		eci, err := prop.PositionECI(t)
		if err != nil {
			return false, err
		}
		ecef := orbit.ECIToECEF(eci, t)

		if obs.Look(ecef).ElevationDeg < point.MinElevation {
			return false, nil
		}
		if orbit.OffNadir(ecef, obs.ECEF) > halfCone {
			return false, nil
		}
		if inst.ReqSelfSunlit == nil && inst.ReqTargetSunlit == nil {
			return true, nil
		}

		sun, err := a.Sun.SunECI(t)
		if err != nil {
			return false, err
		}
		if inst.ReqSelfSunlit != nil && orbit.Sunlit(eci, sun) != *inst.ReqSelfSunlit {
			return false, nil
		}
		if inst.ReqTargetSunlit != nil {
			target := orbit.ECEFToECI(obs.ECEF, t)
			if orbit.SunAbove(target, sun) != *inst.ReqTargetSunlit {
				return false, nil
			}
		}
		return true, nil
	}
}

type span struct {
	start, end time.Time
}

// scan steps through [start, end] at the coarse resolution and refines each
// visibility change at the fine resolution.
func (a *Analyzer) scan(ctx context.Context, vis visibilityFunc, start, end time.Time) ([]span, error) {
	var spans []span

	prevT := start
	prevVis, err := vis(start)
	if err != nil {
		return nil, err
	}
	rise := start

	for t := start.Add(a.CoarseStep); ; t = t.Add(a.CoarseStep) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t.After(end) {
			t = end
		}

		v, err := vis(t)
		if err != nil {
			return nil, err
		}
		if v != prevVis {
			edge, err := a.refine(vis, prevT, t, v)
			if err != nil {
				return nil, err
			}
			if v {
				rise = edge
			} else if edge.After(rise) {
				spans = append(spans, span{rise, edge})
			}
		}
		prevT, prevVis = t, v

		if !t.Before(end) {
			break
		}
	}

	if prevVis && end.After(rise) {
		spans = append(spans, span{rise, end})
	}
	return spans, nil
}

// refine returns the first fine step in (from, to] where visibility equals want.
func (a *Analyzer) refine(vis visibilityFunc, from, to time.Time, want bool) (time.Time, error) {
	for t := from.Add(a.FineStep); t.Before(to); t = t.Add(a.FineStep) {
		v, err := vis(t)
		if err != nil {
			return time.Time{}, err
		}
		if v == want {
			return t, nil
		}
	}
	return to, nil
}
