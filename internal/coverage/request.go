package coverage

import (
	"github.com/smukkama/coverage-server/internal/schemas"
)

// PointRequest is the validated input of a point coverage analysis.
type PointRequest struct {
	Point      schemas.Point
	Satellites []schemas.Satellite
	Window     schemas.Window
}

// ParsePointRequest validates the raw task arguments. Any failure is an
// *InvalidRequestError and nothing is computed.
func ParsePointRequest(point string, satellites []string, start, end string) (*PointRequest, error) {
	p, err := schemas.ParsePoint(point)
	if err != nil {
		return nil, &InvalidRequestError{Err: err}
	}
	sats, err := schemas.ParseSatellites(satellites)
	if err != nil {
		return nil, &InvalidRequestError{Err: err}
	}
	window, err := schemas.ParseWindow(start, end)
	if err != nil {
		return nil, &InvalidRequestError{Err: err}
	}
	return &PointRequest{Point: p, Satellites: sats, Window: window}, nil
}
