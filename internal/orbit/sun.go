package orbit

import (
	"math"
	"time"
)

// SunDirection returns the unit vector toward the Sun in the equator-of-date
// inertial frame, using the low-precision Astronomical Almanac series
// (about 0.01 degree accuracy between 1950 and 2050).
func SunDirection(t time.Time) Vec3 {
	n := JulianDate(t) - j2000

	meanLon := math.Mod(280.460+0.9856474*n, 360)
	anomaly := math.Mod(357.528+0.9856003*n, 360) * deg
	eclLon := (meanLon + 1.915*math.Sin(anomaly) + 0.020*math.Sin(2*anomaly)) * deg
	obliquity := (23.439 - 0.0000004*n) * deg

	return Vec3{
		math.Cos(eclLon),
		math.Cos(obliquity) * math.Sin(eclLon),
		math.Sin(obliquity) * math.Sin(eclLon),
	}
}

// SunSource supplies the Sun direction at a time. The ephemeris dataset
// implements it.
type SunSource interface {
	SunECI(t time.Time) (Vec3, error)
}

// AnalyticSun evaluates SunDirection directly.
type AnalyticSun struct{}

func (AnalyticSun) SunECI(t time.Time) (Vec3, error) {
	return SunDirection(t), nil
}
