package schemas

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// OrbitType selects how an orbit is described.
type OrbitType string

const (
	OrbitTLE       OrbitType = "tle"
	OrbitCircular  OrbitType = "circular"
	OrbitKeplerian OrbitType = "keplerian"
	OrbitSSO       OrbitType = "sso"
)

// Orbit is a tagged union over the supported orbit descriptions.
// Angles are degrees, altitude is meters above the equatorial radius.
type Orbit struct {
	Type OrbitType

	TLE [2]string

	Altitude        float64
	Inclination     float64
	RAAN            float64
	TrueAnomaly     float64
	Eccentricity    float64
	PerigeeArgument float64

	// EquatorCrossingHours is the local solar time of the node crossing (SSO only).
	EquatorCrossingHours     float64
	EquatorCrossingAscending bool

	Epoch time.Time
}

// Instrument is a payload sensor with an access geometry.
type Instrument struct {
	Name            string
	FieldOfRegard   float64 // full cone angle, degrees
	MinAccessTime   time.Duration
	ReqSelfSunlit   *bool
	ReqTargetSunlit *bool
}

// Satellite is one member of a constellation.
type Satellite struct {
	Type        string
	Name        string
	Orbit       Orbit
	Instruments []Instrument
}

// DefaultFieldOfRegard admits any point above the horizon.
const DefaultFieldOfRegard = 180.0

type satelliteWire struct {
	Type        *string          `json:"type"`
	Name        *string          `json:"name"`
	Orbit       *orbitWire       `json:"orbit"`
	Instruments []instrumentWire `json:"instruments"`
}

type orbitWire struct {
	Type                     *string  `json:"type"`
	TLE                      []string `json:"tle"`
	Altitude                 *float64 `json:"altitude"`
	Inclination              *float64 `json:"inclination"`
	RAAN                     *float64 `json:"right_ascension_ascending_node"`
	TrueAnomaly              *float64 `json:"true_anomaly"`
	Eccentricity             *float64 `json:"eccentricity"`
	PerigeeArgument          *float64 `json:"perigee_argument"`
	EquatorCrossingTime      *string  `json:"equator_crossing_time"`
	EquatorCrossingAscending *bool    `json:"equator_crossing_ascending"`
	Epoch                    *string  `json:"epoch"`
}

type instrumentWire struct {
	Name            *string         `json:"name"`
	FieldOfRegard   *float64        `json:"field_of_regard"`
	MinAccessTime   json.RawMessage `json:"min_access_time"`
	ReqSelfSunlit   *bool           `json:"req_self_sunlit"`
	ReqTargetSunlit *bool           `json:"req_target_sunlit"`
}

// ParseSatellite decodes and validates a JSON satellite.
func ParseSatellite(data string) (Satellite, error) {
	var w satelliteWire
	if err := decodeStrict(data, &w); err != nil {
		return Satellite{}, invalidf("satellite: %v", err)
	}
	if w.Type == nil || *w.Type != "satellite" {
		return Satellite{}, invalidf("satellite: type must be \"satellite\"")
	}
	if w.Name == nil || strings.TrimSpace(*w.Name) == "" {
		return Satellite{}, invalidf("satellite: name is required")
	}
	if w.Orbit == nil {
		return Satellite{}, invalidf("satellite %s: orbit is required", *w.Name)
	}

	orbit, err := parseOrbit(*w.Orbit)
	if err != nil {
		return Satellite{}, invalidf("satellite %s: %v", *w.Name, err)
	}

	sat := Satellite{Type: *w.Type, Name: *w.Name, Orbit: orbit}
	for i, iw := range w.Instruments {
		inst, err := parseInstrument(iw)
		if err != nil {
			return Satellite{}, invalidf("satellite %s: instrument %d: %v", *w.Name, i, err)
		}
		sat.Instruments = append(sat.Instruments, inst)
	}
	if len(sat.Instruments) == 0 {
		sat.Instruments = []Instrument{{Name: "default", FieldOfRegard: DefaultFieldOfRegard}}
	}
	return sat, nil
}

// ParseSatellites parses each element of a constellation.
func ParseSatellites(data []string) ([]Satellite, error) {
	sats := make([]Satellite, 0, len(data))
	for i, s := range data {
		sat, err := ParseSatellite(s)
		if err != nil {
			return nil, invalidf("satellites[%d]: %v", i, err)
		}
		sats = append(sats, sat)
	}
	return sats, nil
}

func parseOrbit(w orbitWire) (Orbit, error) {
	if w.Type == nil {
		return Orbit{}, invalidf("orbit type is required")
	}
	o := Orbit{Type: OrbitType(*w.Type)}

	if o.Type == OrbitTLE {
		if len(w.TLE) != 2 {
			return Orbit{}, invalidf("tle orbit needs exactly two lines, got %d", len(w.TLE))
		}
		if err := validateTLE(w.TLE[0], w.TLE[1]); err != nil {
			return Orbit{}, err
		}
		o.TLE = [2]string{w.TLE[0], w.TLE[1]}
		return o, nil
	}

	switch o.Type {
	case OrbitCircular, OrbitKeplerian, OrbitSSO:
	default:
		return Orbit{}, invalidf("unknown orbit type %q", o.Type)
	}

	if w.Altitude == nil {
		return Orbit{}, invalidf("%s orbit: altitude is required", o.Type)
	}
	if *w.Altitude <= 0 || math.IsNaN(*w.Altitude) || math.IsInf(*w.Altitude, 0) {
		return Orbit{}, invalidf("%s orbit: altitude must be positive", o.Type)
	}
	o.Altitude = *w.Altitude

	if w.Epoch == nil {
		return Orbit{}, invalidf("%s orbit: epoch is required", o.Type)
	}
	epoch, err := ParseTimestamp(*w.Epoch)
	if err != nil {
		return Orbit{}, err
	}
	o.Epoch = epoch

	if o.Type == OrbitSSO {
		if w.EquatorCrossingTime == nil {
			return Orbit{}, invalidf("sso orbit: equator_crossing_time is required")
		}
		hours, err := parseClock(*w.EquatorCrossingTime)
		if err != nil {
			return Orbit{}, err
		}
		o.EquatorCrossingHours = hours
		if w.EquatorCrossingAscending != nil {
			o.EquatorCrossingAscending = *w.EquatorCrossingAscending
		}
		return o, nil
	}

	o.Inclination = deref(w.Inclination)
	o.RAAN = deref(w.RAAN)
	o.TrueAnomaly = deref(w.TrueAnomaly)
	if o.Inclination < 0 || o.Inclination > 180 {
		return Orbit{}, invalidf("inclination %v outside [0, 180]", o.Inclination)
	}

	if o.Type == OrbitKeplerian {
		o.Eccentricity = deref(w.Eccentricity)
		o.PerigeeArgument = deref(w.PerigeeArgument)
		if o.Eccentricity < 0 || o.Eccentricity >= 1 {
			return Orbit{}, invalidf("eccentricity %v outside [0, 1)", o.Eccentricity)
		}
	}
	return o, nil
}

func parseInstrument(w instrumentWire) (Instrument, error) {
	inst := Instrument{
		FieldOfRegard:   DefaultFieldOfRegard,
		ReqSelfSunlit:   w.ReqSelfSunlit,
		ReqTargetSunlit: w.ReqTargetSunlit,
	}
	if w.Name == nil || *w.Name == "" {
		return Instrument{}, invalidf("name is required")
	}
	inst.Name = *w.Name

	if w.FieldOfRegard != nil {
		inst.FieldOfRegard = *w.FieldOfRegard
	}
	if inst.FieldOfRegard <= 0 || inst.FieldOfRegard > 360 {
		return Instrument{}, invalidf("field_of_regard %v outside (0, 360]", inst.FieldOfRegard)
	}

	if len(w.MinAccessTime) > 0 && string(w.MinAccessTime) != "null" {
		d, err := parseDurationValue(w.MinAccessTime)
		if err != nil {
			return Instrument{}, err
		}
		if d < 0 {
			return Instrument{}, invalidf("min_access_time must not be negative")
		}
		inst.MinAccessTime = d
	}
	return inst, nil
}

// parseDurationValue accepts seconds as a JSON number or an ISO-8601 duration string.
func parseDurationValue(raw json.RawMessage) (time.Duration, error) {
	var seconds float64
	if err := json.Unmarshal(raw, &seconds); err == nil {
		ns := seconds * float64(time.Second)
		if math.Abs(ns) >= math.MaxInt64 {
			return 0, invalidf("min_access_time %v seconds overflows", seconds)
		}
		return time.Duration(ns), nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, invalidf("min_access_time must be seconds or an ISO-8601 duration")
	}
	return ParseISODuration(text)
}

// parseClock parses "HH:MM" or "HH:MM:SS" into fractional hours.
func parseClock(s string) (float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, invalidf("equator_crossing_time %q is not HH:MM", s)
	}
	var fields [3]int
	limits := [3]int{24, 60, 60}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n >= limits[i] {
			return 0, invalidf("equator_crossing_time %q is not HH:MM", s)
		}
		fields[i] = n
	}
	return float64(fields[0]) + float64(fields[1])/60 + float64(fields[2])/3600, nil
}

func validateTLE(line1, line2 string) error {
	for i, line := range []string{line1, line2} {
		if len(line) != 69 {
			return invalidf("tle line %d has length %d, expected 69", i+1, len(line))
		}
		if line[0] != byte('1'+i) || line[1] != ' ' {
			return invalidf("tle line %d must start with %q", i+1, string(rune('1'+i))+" ")
		}
		if want := line[68] - '0'; tleChecksum(line[:68]) != int(want) {
			return invalidf("tle line %d checksum mismatch", i+1)
		}
	}
	if strings.TrimSpace(line1[2:7]) != strings.TrimSpace(line2[2:7]) {
		return invalidf("tle lines describe different catalog numbers")
	}
	return validateTLEFields(line1, line2)
}

// tleField is a fixed-width numeric column, sliced and joined the same way
// the SGP4 initializer reads it.
type tleField struct {
	name  string
	value func(line1, line2 string) string
	isInt bool
}

func squeeze(s string) string { return strings.Replace(s, " ", "", 2) }

var tleFields = []tleField{
	{"catalog number", func(l1, _ string) string { return strings.TrimSpace(l1[2:7]) }, true},
	{"epoch year", func(l1, _ string) string { return l1[18:20] }, true},
	{"epoch day", func(l1, _ string) string { return l1[20:32] }, false},
	{"mean motion derivative", func(l1, _ string) string { return squeeze(l1[33:43]) }, false},
	{"mean motion second derivative", func(l1, _ string) string { return squeeze(l1[44:45] + "." + l1[45:50] + "e" + l1[50:52]) }, false},
	{"bstar", func(l1, _ string) string { return squeeze(l1[53:54] + "." + l1[54:59] + "e" + l1[59:61]) }, false},
	{"inclination", func(_, l2 string) string { return squeeze(l2[8:16]) }, false},
	{"right ascension", func(_, l2 string) string { return squeeze(l2[17:25]) }, false},
	{"eccentricity", func(_, l2 string) string { return "." + l2[26:33] }, false},
	{"argument of perigee", func(_, l2 string) string { return squeeze(l2[34:42]) }, false},
	{"mean anomaly", func(_, l2 string) string { return squeeze(l2[43:51]) }, false},
	{"mean motion", func(_, l2 string) string { return squeeze(l2[52:63]) }, false},
}

// validateTLEFields parses every numeric column up front. The propagator
// exits the process on a column it cannot parse, and the checksum ignores
// letters.
func validateTLEFields(line1, line2 string) error {
	for _, f := range tleFields {
		raw := f.value(line1, line2)
		if f.isInt {
			if _, err := strconv.ParseInt(raw, 10, 0); err != nil {
				return invalidf("tle %s %q is not an integer", f.name, raw)
			}
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return invalidf("tle %s %q is not a number", f.name, raw)
		}
	}
	return nil
}

func tleChecksum(s string) int {
	sum := 0
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
