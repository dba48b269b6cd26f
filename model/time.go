package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Time is a GTFS time of day in seconds since midnight (technically:
// since noon minus twelve hours). Hours may exceed 24 to place an event
// on the following service day, so values above 86400 are legal and
// must survive a load/write round trip.
type Time int

// TimeUnset marks an absent optional time field.
const TimeUnset Time = -1

// ParseTime parses "H:MM:SS" or "HH:MM:SS" with any number of hour
// digits. The empty string parses to TimeUnset.
func ParseTime(s string) (Time, error) {
	if s == "" {
		return TimeUnset, nil
	}

	split := strings.Split(s, ":")
	if len(split) != 3 {
		return TimeUnset, fmt.Errorf("found %d parts in '%s'", len(split), s)
	}

	hms := [3]int{}
	for i, str := range split {
		j, err := strconv.Atoi(strings.TrimSpace(str))
		if err != nil {
			return TimeUnset, fmt.Errorf("non-integer in '%s' pos %d", s, i)
		}
		hms[i] = j
	}

	if hms[0] < 0 {
		return TimeUnset, fmt.Errorf("negative hour in '%s'", s)
	}
	if hms[1] < 0 || hms[1] > 59 {
		return TimeUnset, fmt.Errorf("invalid minute in '%s'", s)
	}
	if hms[2] < 0 || hms[2] > 59 {
		return TimeUnset, fmt.Errorf("invalid second in '%s'", s)
	}

	return Time(hms[0]*3600 + hms[1]*60 + hms[2]), nil
}

func (t Time) IsSet() bool {
	return t >= 0
}

// Seconds returns the raw value, -1 when unset.
func (t Time) Seconds() int {
	return int(t)
}

// String formats the canonical "HH:MM:SS" form, retaining hour overflow
// ("25:30:00"). Unset times format as the empty string.
func (t Time) String() string {
	if !t.IsSet() {
		return ""
	}
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}

// UnmarshalCSV implements the gocsv field interface.
func (t *Time) UnmarshalCSV(s string) error {
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalCSV implements the gocsv field interface.
func (t Time) MarshalCSV() (string, error) {
	return t.String(), nil
}
