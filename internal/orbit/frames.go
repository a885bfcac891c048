package orbit

import (
	"math"
	"time"
)

// j2000 is the Julian Date of the J2000.0 epoch.
const j2000 = 2451545.0

// Earth constants (WGS-84 / EGM-96).
const (
	EarthRadius = 6378137.0            // equatorial radius, meters
	EarthMu     = 3.986004418e14       // gravitational parameter, m^3/s^2
	EarthJ2     = 1.08262668e-3        // second zonal harmonic
	OmegaEarth  = 7.292115146706979e-5 // rotation rate, rad/s

	wgs84F  = 1.0 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

const deg = math.Pi / 180

// JulianDate converts a UTC time to a Julian Date.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())
	h := float64(t.Hour())
	min := float64(t.Minute())
	s := float64(t.Second()) + float64(t.Nanosecond())/1e9

	if m <= 2 {
		y--
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	jd := math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5
	return jd + (h+min/60+s/3600)/24
}

// GMST returns Greenwich Mean Sidereal Time in radians (IAU-82, Vallado Eq 3-47).
func GMST(t time.Time) float64 {
	tUT1 := (JulianDate(t) - j2000) / 36525.0

	sec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	sec = math.Mod(sec, 86400.0)
	if sec < 0 {
		sec += 86400.0
	}
	return sec / 86400.0 * 2 * math.Pi
}

// ECIToECEF rotates an inertial (TEME / equator of date) vector into the
// Earth-fixed frame. Polar motion and the equation of the equinoxes are ignored.
func ECIToECEF(v Vec3, t time.Time) Vec3 {
	return rotateZ(v, GMST(t))
}

// ECEFToECI is the inverse of ECIToECEF.
func ECEFToECI(v Vec3, t time.Time) Vec3 {
	return rotateZ(v, -GMST(t))
}

// rotateZ applies the frame rotation R3(theta).
func rotateZ(v Vec3, theta float64) Vec3 {
	c, s := math.Cos(theta), math.Sin(theta)
	return Vec3{
		v[0]*c + v[1]*s,
		-v[0]*s + v[1]*c,
		v[2],
	}
}

// Observer is a ground location with its Earth-fixed position precomputed.
type Observer struct {
	LatRad, LonRad, AltM float64
	ECEF                 Vec3
}

// NewObserver converts geodetic degrees and meters above the WGS-84 ellipsoid.
func NewObserver(latDeg, lonDeg, altM float64) Observer {
	lat := latDeg * deg
	lon := lonDeg * deg
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)

	n := EarthRadius / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Observer{
		LatRad: lat,
		LonRad: lon,
		AltM:   altM,
		ECEF: Vec3{
			(n + altM) * cosLat * math.Cos(lon),
			(n + altM) * cosLat * math.Sin(lon),
			(n*(1-wgs84E2) + altM) * sinLat,
		},
	}
}

// LookAngles holds the topocentric direction from an observer to a satellite.
type LookAngles struct {
	AzimuthDeg   float64 // 0 = North, clockwise
	ElevationDeg float64
	RangeM       float64
}

// Look computes look angles to a satellite given in ECEF meters using the
// South-East-Zenith rotation (Vallado 4.4).
func (o Observer) Look(sat Vec3) LookAngles {
	r := sat.Sub(o.ECEF)

	sinLat, cosLat := math.Sin(o.LatRad), math.Cos(o.LatRad)
	sinLon, cosLon := math.Sin(o.LonRad), math.Cos(o.LonRad)

	south := sinLat*cosLon*r[0] + sinLat*sinLon*r[1] - cosLat*r[2]
	east := -sinLon*r[0] + cosLon*r[1]
	zenith := cosLat*cosLon*r[0] + cosLat*sinLon*r[1] + sinLat*r[2]

	rng := math.Sqrt(south*south + east*east + zenith*zenith)
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}
	return LookAngles{
		AzimuthDeg:   az / deg,
		ElevationDeg: math.Asin(zenith/rng) / deg,
		RangeM:       rng,
	}
}

// OffNadir returns the angle in degrees at the satellite between its nadir
// direction and the line of sight to target. Both vectors share a frame.
func OffNadir(sat, target Vec3) float64 {
	return angleBetween(sat.Scale(-1), target.Sub(sat)) / deg
}

// Sunlit reports whether an inertial position lies outside Earth's
// cylindrical shadow. sun is the unit vector toward the Sun.
func Sunlit(pos, sun Vec3) bool {
	along := pos.Dot(sun)
	if along >= 0 {
		return true
	}
	return pos.Sub(sun.Scale(along)).Norm() > EarthRadius
}

// SunAbove reports whether the Sun is above the local horizon of a surface
// point given in inertial coordinates.
func SunAbove(pos, sun Vec3) bool {
	return pos.Dot(sun) > 0
}
