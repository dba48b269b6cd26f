package convert

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/transitgrid/transit/model"
	"github.com/transitgrid/transit/txc"
)

// dateException is one concrete calendar_dates row, pre-minting.
type dateException struct {
	date  model.Date
	added bool
}

// expandedProfile is an operating profile reduced to GTFS calendar
// terms. Identical expansions collapse to one service id at merge time,
// keyed by fingerprint.
type expandedProfile struct {
	weekday    int8
	start, end model.Date
	exceptions []dateException
}

func (p *expandedProfile) fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s|%s", p.weekday, p.start.Compact(), p.end.Compact())
	for _, ex := range p.exceptions {
		sign := "-"
		if ex.added {
			sign = "+"
		}
		b.WriteString("|")
		b.WriteString(sign)
		b.WriteString(ex.date.Compact())
	}
	return b.String()
}

// weekOfMonthMatches evaluates a PeriodicDayType week name ("first",
// "second", ..., "last") against a date.
func weekOfMonthMatches(d model.Date, weeks []string) bool {
	ordinal := (d.Day-1)/7 + 1
	daysInMonth := model.DateOf(time.Date(d.Year, d.Month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)).Day
	isLast := d.Day+7 > daysInMonth

	for _, w := range weeks {
		switch w {
		case "first":
			if ordinal == 1 {
				return true
			}
		case "second":
			if ordinal == 2 {
				return true
			}
		case "third":
			if ordinal == 3 {
				return true
			}
		case "fourth":
			if ordinal == 4 {
				return true
			}
		case "fifth":
			if ordinal == 5 {
				return true
			}
		case "last":
			if isLast {
				return true
			}
		}
	}
	return false
}

// expandProfile reduces one operating profile to weekday flags plus
// concrete date exceptions over [start, end].
//
// Precedence, lowest to highest: regular days, bank-holiday operation,
// bank-holiday non-operation, special-days operation, special-days
// non-operation. Exceptions that restate the base weekday behavior are
// dropped.
func expandProfile(profile *txc.OperatingProfile, start, end model.Date, region Region) (*expandedProfile, []string, error) {
	if start.IsZero() || end.IsZero() {
		return nil, nil, &CalendarError{Reason: "no operating period and no calendar override"}
	}
	if end.Before(start) {
		return nil, nil, &CalendarError{Reason: "operating period ends before it starts"}
	}

	warnings := []string{}

	var mask int8
	days := []time.Weekday{}
	holidaysOnly := false
	if profile != nil {
		days = profile.RegularDays.Days
		holidaysOnly = profile.RegularDays.HolidaysOnly
	}
	if len(days) == 0 && !holidaysOnly {
		// TXC defaults an absent or empty RegularDayType to
		// Monday through Friday.
		days = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	}
	for _, d := range days {
		mask |= 1 << d
	}

	exceptions := map[string]dateException{}
	setException := func(d model.Date, added bool) {
		if d.Before(start) || d.After(end) {
			return
		}
		exceptions[d.Compact()] = dateException{date: d, added: added}
	}

	if holidaysOnly {
		mask = 0
		for year := start.Year; year <= end.Year; year++ {
			for _, d := range regionHolidays(region, year) {
				setException(d, true)
			}
		}
	}

	if profile != nil && profile.PeriodicDays != nil && len(profile.PeriodicDays.Weeks) > 0 {
		// Periodic operation cannot be said with weekday flags
		// alone; enumerate the matching days and zero the mask.
		for d := start; !d.After(end); d = d.AddDays(1) {
			if mask&(1<<d.Weekday()) == 0 {
				continue
			}
			if weekOfMonthMatches(d, profile.PeriodicDays.Weeks) {
				setException(d, true)
			}
		}
		mask = 0
	}

	if profile != nil && profile.BankHolidays != nil {
		for _, name := range profile.BankHolidays.Operation {
			dates := resolveHoliday(name, region, start, end)
			if dates == nil {
				warnings = append(warnings, fmt.Sprintf("unknown bank holiday element '%s'", name))
				continue
			}
			for _, d := range dates {
				setException(d, true)
			}
		}
		for _, name := range profile.BankHolidays.NonOperation {
			dates := resolveHoliday(name, region, start, end)
			if dates == nil {
				warnings = append(warnings, fmt.Sprintf("unknown bank holiday element '%s'", name))
				continue
			}
			for _, d := range dates {
				setException(d, false)
			}
		}
	}

	if profile != nil && profile.SpecialDays != nil {
		enumerate := func(ranges []txc.DateRange, added bool) {
			for _, r := range ranges {
				from, err := model.ParseDate(r.StartDate)
				if err != nil {
					warnings = append(warnings, fmt.Sprintf("bad special days start date '%s'", r.StartDate))
					continue
				}
				to := from
				if r.EndDate != "" {
					to, err = model.ParseDate(r.EndDate)
					if err != nil {
						warnings = append(warnings, fmt.Sprintf("bad special days end date '%s'", r.EndDate))
						continue
					}
				}
				for d := from; !d.After(to); d = d.AddDays(1) {
					setException(d, added)
				}
			}
		}
		enumerate(profile.SpecialDays.Operation, true)
		enumerate(profile.SpecialDays.NonOperation, false)
	}

	expanded := &expandedProfile{weekday: mask, start: start, end: end}
	for _, ex := range exceptions {
		baseActive := mask&(1<<ex.date.Weekday()) != 0
		if ex.added == baseActive {
			continue
		}
		expanded.exceptions = append(expanded.exceptions, ex)
	}
	sort.Slice(expanded.exceptions, func(i, j int) bool {
		return expanded.exceptions[i].date.Before(expanded.exceptions[j].date)
	})

	return expanded, warnings, nil
}
