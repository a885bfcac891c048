package schemas

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Window is a half-open analysis interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
}

// ParseTimestamp parses an ISO-8601 timestamp. The offset (or Z) is required;
// the result is normalized to UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if _, err := time.Parse("2006-01-02T15:04:05.999999999", s); err == nil {
		return time.Time{}, invalidf("timestamp %q has no UTC offset", s)
	}
	return time.Time{}, invalidf("timestamp %q is not ISO-8601", s)
}

// ParseWindow parses both bounds and requires start < end.
func ParseWindow(start, end string) (Window, error) {
	s, err := ParseTimestamp(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseTimestamp(end)
	if err != nil {
		return Window{}, err
	}
	if !s.Before(e) {
		return Window{}, invalidf("window start %s is not before end %s", start, end)
	}
	return Window{Start: s, End: e}, nil
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+(?:\.\d+)?)D)?(?:T(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseISODuration parses the day/time subset of ISO-8601 durations
// ("P1D", "PT1H30M", "PT0.5S"). Years, months and weeks are rejected
// because their length is calendar dependent.
func ParseISODuration(s string) (time.Duration, error) {
	m := isoDuration.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil || s == "P" || strings.HasSuffix(strings.ToUpper(s), "T") {
		return 0, invalidf("duration %q is not an ISO-8601 day/time duration", s)
	}

	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var total float64
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return 0, invalidf("duration %q: %v", s, err)
		}
		total += v * float64(unit)
	}
	if total >= math.MaxInt64 {
		return 0, invalidf("duration %q overflows", s)
	}
	return time.Duration(total), nil
}
