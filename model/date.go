package model

import (
	"fmt"
	"time"
)

// Date is a calendar day with no time-of-day or zone component. Service
// date inputs arrive in three shapes: "YYYY-MM-DD", "YYYYMMDD", and
// native time.Time. ParseDate and DateOf normalize all of them at the
// API boundary.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// InvalidDateError reports a date string that matched neither supported
// format.
type InvalidDateError struct {
	Input          string
	ExpectedFormat string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date '%s', expected %s", e.Input, e.ExpectedFormat)
}

// ParseDate accepts "YYYY-MM-DD" or "YYYYMMDD".
func ParseDate(s string) (Date, error) {
	for _, layout := range []string{"2006-01-02", "20060102"} {
		if len(s) != len(layout) {
			continue
		}
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, &InvalidDateError{Input: s, ExpectedFormat: "YYYY-MM-DD or YYYYMMDD"}
}

// MustParseDate is ParseDate for literals in tests and examples.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf truncates a native time to its calendar day.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// Time returns the date at UTC midnight.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// Compact formats YYYYMMDD, the GTFS file encoding.
func (d Date) Compact() string {
	return d.Time().Format("20060102")
}

func (d Date) String() string {
	return d.Time().Format("2006-01-02")
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Before reports whether d sorts ahead of other.
func (d Date) Before(other Date) bool {
	return d.Compact() < other.Compact()
}

func (d Date) After(other Date) bool {
	return d.Compact() > other.Compact()
}
