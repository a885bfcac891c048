package orbit

import (
	"fmt"
	"math"
	"time"
)

// siderealYearRate is the mean motion of the Sun along the ecliptic, rad/s.
const siderealYearRate = 2 * math.Pi / (365.2421897 * 86400)

// Kepler is a two-body propagator with J2 secular drift of the node,
// perigee and mean anomaly.
type Kepler struct {
	epoch time.Time

	a, e, inc        float64
	raan0, argp0, m0 float64
	raanDot, argpDot float64
	meanMotion, mDot float64
}

// NewKepler builds a propagator from classical elements. Angles are radians,
// the semi-major axis is meters.
func NewKepler(a, e, inc, raan, argp, trueAnomaly float64, epoch time.Time) (*Kepler, error) {
	if a <= EarthRadius {
		return nil, fmt.Errorf("%w: semi-major axis %.0f m inside the Earth", ErrInvalidOrbit, a)
	}
	if e < 0 || e >= 1 {
		return nil, fmt.Errorf("%w: eccentricity %v outside [0, 1)", ErrInvalidOrbit, e)
	}
	if a*(1-e) <= EarthRadius {
		return nil, fmt.Errorf("%w: perigee below the surface", ErrInvalidOrbit)
	}

	n := math.Sqrt(EarthMu / (a * a * a))
	p := a * (1 - e*e)
	k := 0.75 * n * EarthJ2 * (EarthRadius / p) * (EarthRadius / p)
	cosI := math.Cos(inc)

	ecc := math.Atan2(math.Sqrt(1-e*e)*math.Sin(trueAnomaly), e+math.Cos(trueAnomaly))

	return &Kepler{
		epoch:      epoch.UTC(),
		a:          a,
		e:          e,
		inc:        inc,
		raan0:      raan,
		argp0:      argp,
		m0:         ecc - e*math.Sin(ecc),
		raanDot:    -2 * k * cosI,
		argpDot:    k * (5*cosI*cosI - 1),
		meanMotion: n,
		mDot:       n + k*math.Sqrt(1-e*e)*(3*cosI*cosI-1),
	}, nil
}

// NewSunSynchronous places a circular orbit at the inclination whose J2 node
// drift matches the Sun's apparent motion, with the node at the requested
// local solar time at epoch.
func NewSunSynchronous(altitude, crossingHours float64, ascending bool, epoch time.Time, sun SunSource) (*Kepler, error) {
	a := EarthRadius + altitude
	n := math.Sqrt(EarthMu / (a * a * a))
	cosI := -siderealYearRate / (1.5 * n * EarthJ2 * (EarthRadius / a) * (EarthRadius / a))
	if cosI < -1 || cosI > 1 {
		return nil, fmt.Errorf("%w: no sun-synchronous inclination at altitude %.0f m", ErrInvalidOrbit, altitude)
	}

	s, err := sun.SunECI(epoch)
	if err != nil {
		return nil, fmt.Errorf("sun position at epoch: %w", err)
	}

	ltan := crossingHours
	if !ascending {
		ltan = math.Mod(crossingHours+12, 24)
	}
	raan := math.Atan2(s[1], s[0]) + (ltan-12)*15*deg
	raan = math.Mod(raan+2*math.Pi, 2*math.Pi)

	return NewKepler(a, 0, math.Acos(cosI), raan, 0, 0, epoch)
}

// Inclination returns the orbit inclination in radians.
func (k *Kepler) Inclination() float64 { return k.inc }

// Period returns the unperturbed orbital period.
func (k *Kepler) Period() time.Duration {
	return time.Duration(2 * math.Pi / k.meanMotion * float64(time.Second))
}

// PositionECI returns the inertial position in meters.
func (k *Kepler) PositionECI(t time.Time) (Vec3, error) {
	dt := t.Sub(k.epoch).Seconds()

	m := math.Mod(k.m0+k.mDot*dt, 2*math.Pi)
	raan := k.raan0 + k.raanDot*dt
	argp := k.argp0 + k.argpDot*dt

	ecc := solveKepler(m, k.e)
	nu := math.Atan2(math.Sqrt(1-k.e*k.e)*math.Sin(ecc), math.Cos(ecc)-k.e)
	r := k.a * (1 - k.e*math.Cos(ecc))

	u := argp + nu
	sinU, cosU := math.Sin(u), math.Cos(u)
	sinO, cosO := math.Sin(raan), math.Cos(raan)
	sinI, cosI := math.Sin(k.inc), math.Cos(k.inc)

	pos := Vec3{
		r * (cosO*cosU - sinO*sinU*cosI),
		r * (sinO*cosU + cosO*sinU*cosI),
		r * sinU * sinI,
	}
	if err := checkRadius(pos); err != nil {
		return Vec3{}, err
	}
	return pos, nil
}

// solveKepler solves M = E - e sin E for E by Newton iteration.
func solveKepler(m, e float64) float64 {
	ecc := m
	if e > 0.8 {
		ecc = math.Pi
	}
	for i := 0; i < 30; i++ {
		delta := (ecc - e*math.Sin(ecc) - m) / (1 - e*math.Cos(ecc))
		ecc -= delta
		if math.Abs(delta) < 1e-12 {
			break
		}
	}
	return ecc
}
