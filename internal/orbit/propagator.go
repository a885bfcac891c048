// Package orbit propagates satellite orbits and provides the frame
// transformations and visibility geometry used by coverage analysis.
//
// Inertial vectors are in the TEME / equator-of-date frame; the rotation to
// Earth-fixed uses GMST only, which is adequate for access computation.
package orbit

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/smukkama/coverage-server/internal/schemas"
)

var (
	ErrInvalidOrbit = errors.New("invalid orbit")
	ErrPropagation  = errors.New("propagation failed")
)

// Propagator yields a satellite's inertial position over time.
type Propagator interface {
	PositionECI(t time.Time) (Vec3, error)
}

// New builds the propagator matching an orbit description.
func New(o schemas.Orbit, sun SunSource) (Propagator, error) {
	switch o.Type {
	case schemas.OrbitTLE:
		p, err := NewSGP4(o.TLE[0], o.TLE[1])
		if err != nil {
			return nil, err
		}
		return p, nil
	case schemas.OrbitCircular, schemas.OrbitKeplerian:
		p, err := NewKepler(EarthRadius+o.Altitude, o.Eccentricity, o.Inclination*deg, o.RAAN*deg,
			o.PerigeeArgument*deg, o.TrueAnomaly*deg, o.Epoch)
		if err != nil {
			return nil, err
		}
		return p, nil
	case schemas.OrbitSSO:
		p, err := NewSunSynchronous(o.Altitude, o.EquatorCrossingHours, o.EquatorCrossingAscending, o.Epoch, sun)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidOrbit, o.Type)
	}
}

// PositionECEF propagates and rotates into the Earth-fixed frame.
func PositionECEF(p Propagator, t time.Time) (Vec3, error) {
	eci, err := p.PositionECI(t)
	if err != nil {
		return Vec3{}, err
	}
	return ECIToECEF(eci, t), nil
}

// checkRadius rejects non-finite positions and radii no Earth orbit can have.
func checkRadius(r Vec3) error {
	if !r.Finite() {
		return fmt.Errorf("%w: position is NaN/Inf", ErrPropagation)
	}
	const minRadius, maxRadius = 6200e3, 500000e3
	if mag := r.Norm(); mag < minRadius || mag > maxRadius || math.IsNaN(mag) {
		return fmt.Errorf("%w: unreasonable radius %.1f km", ErrPropagation, mag/1000)
	}
	return nil
}
