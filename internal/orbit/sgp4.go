package orbit

import (
	"fmt"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// SGP4 propagates a two-line element set with go-satellite.
//
// go-satellite calls log.Fatal on malformed lines, so TLEs must be validated
// before reaching NewSGP4. schemas.ParseSatellite parses every numeric
// column the initializer reads.
type SGP4 struct {
	sat     satellite.Satellite
	catalog string
}

// NewSGP4 initializes the SGP4 model from two TLE lines.
func NewSGP4(line1, line2 string) (*SGP4, error) {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)
	if len(line1) != 69 || len(line2) != 69 || line1[0] != '1' || line2[0] != '2' {
		return nil, fmt.Errorf("%w: malformed TLE lines", ErrInvalidOrbit)
	}

	catalog := strings.TrimSpace(line1[2:7])
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("%w: sgp4 init failed for %s: code=%d %s", ErrInvalidOrbit, catalog, sat.Error, sat.ErrorStr)
	}
	return &SGP4{sat: sat, catalog: catalog}, nil
}

// PositionECI returns the TEME position in meters. Sub-second precision is
// truncated by the library interface.
func (p *SGP4) PositionECI(t time.Time) (Vec3, error) {
	t = t.UTC()
	pos, _ := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	r := Vec3{pos.X, pos.Y, pos.Z}.Scale(1000)
	if err := checkRadius(r); err != nil {
		return Vec3{}, fmt.Errorf("sgp4 %s at %s: %w", p.catalog, t.Format(time.RFC3339), err)
	}
	return r, nil
}
