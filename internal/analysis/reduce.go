package analysis

import (
	"sort"
	"time"

	"github.com/paulmach/orb"

	"github.com/smukkama/coverage-server/internal/geoframe"
)

// Column names of reduced observation tables besides the duration columns.
const (
	ColumnPointID   = "point_id"
	ColumnPointName = "point_name"
	ColumnSatellite = "satellite"
	ColumnSamples   = "samples"
	ColumnCellID    = "cell_id"
)

// Access is one merged access interval of a point by a satellite.
type Access struct {
	Window
	Access  time.Duration
	Revisit time.Duration
}

type pairKey struct {
	pointID   int64
	satellite string
}

// Aggregate merges overlapping or touching windows of each (point,
// satellite) pair, across instruments, into discrete accesses. Revisit is
// the gap since the previous access ended, or since analysisStart for the
// first one. Output is ordered by point ID, satellite and start time.
func Aggregate(windows []Window, analysisStart time.Time) []Access {
	sorted := make([]Window, len(windows))
	copy(sorted, windows)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Point.ID != b.Point.ID {
			return a.Point.ID < b.Point.ID
		}
		if a.Satellite != b.Satellite {
			return a.Satellite < b.Satellite
		}
		return a.Start.Before(b.Start)
	})

	var merged []Window
	for _, w := range sorted {
		w.Instrument = ""
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if last.Point.ID == w.Point.ID && last.Satellite == w.Satellite && !w.Start.After(last.End) {
				if w.End.After(last.End) {
					last.End = w.End
				}
				continue
			}
		}
		merged = append(merged, w)
	}

	accesses := make([]Access, 0, len(merged))
	var prev pairKey
	var prevEnd time.Time
	for i, w := range merged {
		key := pairKey{w.Point.ID, w.Satellite}
		if i == 0 || key != prev {
			prevEnd = analysisStart
		}
		accesses = append(accesses, Access{
			Window:  w,
			Access:  w.End.Sub(w.Start),
			Revisit: w.Start.Sub(prevEnd),
		})
		prev, prevEnd = key, w.End
	}
	return accesses
}

// Reduce summarizes accesses into one row per (point, satellite) with the
// mean access and revisit durations and the number of accesses averaged.
// The input order from Aggregate yields rows ordered by point ID then
// satellite.
func Reduce(accesses []Access) *geoframe.Frame {
	frame := geoframe.New()

	for i := 0; i < len(accesses); {
		first := accesses[i]
		key := pairKey{first.Point.ID, first.Satellite}

		var sumAccess, sumRevisit time.Duration
		n := 0
		for ; i < len(accesses) && (pairKey{accesses[i].Point.ID, accesses[i].Satellite}) == key; i++ {
			sumAccess += accesses[i].Access
			sumRevisit += accesses[i].Revisit
			n++
		}

		frame.Append(orb.Point{first.Point.Longitude, first.Point.Latitude}, map[string]any{
			ColumnPointID:          first.Point.ID,
			ColumnPointName:        first.Point.Name,
			ColumnSatellite:        first.Satellite,
			geoframe.ColumnAccess:  sumAccess / time.Duration(n),
			geoframe.ColumnRevisit: sumRevisit / time.Duration(n),
			ColumnSamples:          int64(n),
		})
	}
	return frame
}

// Aggregate is the package-level Aggregate.
func (a *Analyzer) Aggregate(windows []Window, analysisStart time.Time) []Access {
	return Aggregate(windows, analysisStart)
}

// Reduce is the package-level Reduce.
func (a *Analyzer) Reduce(accesses []Access) *geoframe.Frame {
	return Reduce(accesses)
}
