// Package ephemeris provides the process-wide Sun position table.
//
// A Dataset is built or loaded once at worker start and never mutated
// afterwards, so any number of goroutines may read it without locking.
package ephemeris

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang/snappy"

	"github.com/smukkama/coverage-server/internal/orbit"
)

// DefaultStep is the tabulation interval used by LoadOrBuild.
const DefaultStep = 6 * time.Hour

var (
	ErrOutOfRange = errors.New("time outside ephemeris span")
	ErrCorrupt    = errors.New("corrupt ephemeris file")
)

// Dataset is an immutable table of Sun unit vectors in the inertial frame.
type Dataset struct {
	start time.Time
	step  time.Duration
	sun   []orbit.Vec3
}

// file is the on-disk layout, snappy-compressed JSON.
type file struct {
	Start  time.Time    `json:"start"`
	StepNS int64        `json:"step_ns"`
	Sun    []orbit.Vec3 `json:"sun"`
}

// Build tabulates the analytic solar model over [from, to] every step.
func Build(from, to time.Time, step time.Duration) (*Dataset, error) {
	if step <= 0 {
		return nil, fmt.Errorf("ephemeris step must be positive, got %s", step)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("ephemeris span %s..%s is empty", from, to)
	}

	n := int(to.Sub(from)/step) + 1
	if from.Add(time.Duration(n-1) * step).Before(to) {
		n++
	}
	sun := make([]orbit.Vec3, n)
	for i := range sun {
		sun[i] = orbit.SunDirection(from.Add(time.Duration(i) * step))
	}
	return &Dataset{start: from.UTC(), step: step, sun: sun}, nil
}

// BuildYears tabulates whole calendar years [startYear, endYear].
func BuildYears(startYear, endYear int, step time.Duration) (*Dataset, error) {
	from := time.Date(startYear, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(endYear+1, 1, 1, 0, 0, 0, 0, time.UTC)
	return Build(from, to, step)
}

// Load reads a table written by Save.
func Load(path string) (*Dataset, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ephemeris: %w", err)
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var f file
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if f.StepNS <= 0 || len(f.Sun) < 2 {
		return nil, fmt.Errorf("%w: need a positive step and at least two samples", ErrCorrupt)
	}
	return &Dataset{start: f.Start.UTC(), step: time.Duration(f.StepNS), sun: f.Sun}, nil
}

// LoadOrBuild loads path when set and builds the analytic table otherwise.
func LoadOrBuild(path string, startYear, endYear int, logger *slog.Logger) (*Dataset, error) {
	if path != "" {
		ds, err := Load(path)
		if err != nil {
			return nil, err
		}
		logger.Info("ephemeris loaded", "path", path, "start", ds.Start(), "end", ds.End(), "samples", len(ds.sun))
		return ds, nil
	}

	ds, err := BuildYears(startYear, endYear, DefaultStep)
	if err != nil {
		return nil, err
	}
	logger.Info("ephemeris built", "start", ds.Start(), "end", ds.End(), "samples", len(ds.sun))
	return ds, nil
}

// Save writes the table to path.
func (d *Dataset) Save(path string) error {
	raw, err := json.Marshal(file{Start: d.start, StepNS: int64(d.step), Sun: d.sun})
	if err != nil {
		return fmt.Errorf("failed to marshal ephemeris: %w", err)
	}
	if err := os.WriteFile(path, snappy.Encode(nil, raw), 0o644); err != nil {
		return fmt.Errorf("failed to write ephemeris: %w", err)
	}
	return nil
}

func (d *Dataset) Start() time.Time { return d.start }

func (d *Dataset) End() time.Time {
	return d.start.Add(time.Duration(len(d.sun)-1) * d.step)
}

// SunECI interpolates the Sun direction at t.
func (d *Dataset) SunECI(t time.Time) (orbit.Vec3, error) {
	if t.Before(d.start) || t.After(d.End()) {
		return orbit.Vec3{}, fmt.Errorf("%w: %s not in [%s, %s]", ErrOutOfRange,
			t.UTC().Format(time.RFC3339), d.start.Format(time.RFC3339), d.End().Format(time.RFC3339))
	}

	offset := t.Sub(d.start)
	i := int(offset / d.step)
	if i >= len(d.sun)-1 {
		return d.sun[len(d.sun)-1], nil
	}
	frac := float64(offset-time.Duration(i)*d.step) / float64(d.step)
	a, b := d.sun[i], d.sun[i+1]
	return a.Add(b.Sub(a).Scale(frac)).Unit(), nil
}
