package schedule

import (
	"fmt"
	"strings"

	transit "github.com/transitgrid/transit"
	"github.com/transitgrid/transit/filter"
)

// Level selects which rules fire and how hard they hit.
type Level int

const (
	// Lenient runs the structural rules only.
	Lenient Level = iota
	// Standard runs everything; structural failures and missing
	// GTFS references are errors, tolerance breaches warnings.
	Standard
	// Strict makes every finding an error.
	Strict
)

// ParseLevel maps the compliance names used at configuration surfaces.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "lenient":
		return Lenient, nil
	case "", "standard":
		return Standard, nil
	case "strict":
		return Strict, nil
	}
	return Standard, fmt.Errorf("unknown compliance level '%s'", s)
}

// Config carries the rule thresholds. A zero MinLayoverSeconds,
// MaxDutyLengthSeconds or MaxContinuousDrivingSeconds disables its
// rule; a zero TimeToleranceSeconds demands an exact time match.
type Config struct {
	Compliance                  Level
	MinLayoverSeconds           int
	MaxDutyLengthSeconds        int
	MaxContinuousDrivingSeconds int
	MinBreakDurationSeconds     int
	TimeToleranceSeconds        int

	// DefaultDepot anchors inferred pull-outs and pull-ins when a
	// row carries no depot of its own.
	DefaultDepot string

	// ReferenceSpeedKMH is the straight-line speed assumed for
	// deadhead duration estimates.
	ReferenceSpeedKMH float64
}

// DefaultReferenceSpeedKMH is the assumed urban deadhead speed. The
// figure is configurable because it is an operational convention, not
// a measured quantity.
const DefaultReferenceSpeedKMH = 30.0

func (c Config) withDefaults() Config {
	if c.ReferenceSpeedKMH <= 0 {
		c.ReferenceSpeedKMH = DefaultReferenceSpeedKMH
	}
	return c
}

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Codes are stable rule identifiers
// (E001/W001 through E009/W009) suitable for suppression lists; the
// letter tracks severity under the active compliance level.
type Issue struct {
	Code     string
	Category string
	Severity Severity
	Message  string
	Context  map[string]string
}

// Report is the outcome of a validation pass.
type Report struct {
	Issues   []Issue
	Errors   int
	Warnings int

	// IsValid means no error-severity issues.
	IsValid bool
}

const (
	categoryStructural = "structural"
	categoryGTFS       = "gtfs"
)

type validator struct {
	sched  *Schedule
	filter *filter.Filter
	cfg    Config
	report *Report
}

func (v *validator) add(rule int, category string, severity Severity, message string, context map[string]string) {
	prefix := "E"
	if severity == SeverityWarning {
		prefix = "W"
	}
	v.report.Issues = append(v.report.Issues, Issue{
		Code:     fmt.Sprintf("%s%03d", prefix, rule),
		Category: category,
		Severity: severity,
		Message:  message,
		Context:  context,
	})
	if severity == SeverityError {
		v.report.Errors++
	} else {
		v.report.Warnings++
	}
}

// toleranceSeverity is the severity of a tolerance breach under the
// active level.
func (v *validator) toleranceSeverity() Severity {
	if v.cfg.Compliance == Strict {
		return SeverityError
	}
	return SeverityWarning
}

// Validate runs the rule set selected by cfg.Compliance over the
// schedule. The feed may be nil, in which case the GTFS-referential
// rules are skipped regardless of level.
func Validate(sched *Schedule, feed *transit.Feed, cfg Config) *Report {
	cfg = cfg.withDefaults()

	v := &validator{
		sched:  sched,
		cfg:    cfg,
		report: &Report{},
	}
	if feed != nil {
		v.filter = filter.New(feed)
	}

	v.checkTimeOrder()
	v.checkBlocks()
	v.checkDuties()

	if cfg.Compliance != Lenient && v.filter != nil {
		v.checkAgainstFeed()
	}

	v.report.IsValid = v.report.Errors == 0
	return v.report
}

// checkTimeOrder is rule 1: every row ends at or after it starts.
func (v *validator) checkTimeOrder() {
	for i, r := range v.sched.Rows {
		if r.EndTime < r.StartTime {
			v.add(1, categoryStructural, SeverityError,
				fmt.Sprintf("row %d ends before it starts", i+1),
				map[string]string{"block": r.Block, "row": fmt.Sprint(i + 1)})
		}
	}
}

// checkBlocks covers rules 2 and 5: spatial continuity with the
// layover floor, and temporal overlap within a block.
func (v *validator) checkBlocks() {
	blockOrder, byBlock := v.sched.blocks()
	for _, block := range blockOrder {
		idx := byBlock[block]
		for k := 1; k < len(idx); k++ {
			prev := v.sched.Rows[idx[k-1]]
			next := v.sched.Rows[idx[k]]

			if next.StartTime < prev.EndTime {
				v.add(5, categoryStructural, SeverityError,
					fmt.Sprintf("block '%s' rows overlap in time", block),
					map[string]string{"block": block})
			}

			if prev.EndPlace != "" && next.StartPlace != "" && prev.EndPlace != next.StartPlace {
				v.add(2, categoryStructural, SeverityError,
					fmt.Sprintf("block '%s' breaks continuity: row ends at '%s', next starts at '%s'", block, prev.EndPlace, next.StartPlace),
					map[string]string{"block": block, "end_place": prev.EndPlace, "start_place": next.StartPlace})
			}

			if v.cfg.MinLayoverSeconds > 0 && prev.Type == Revenue && next.Type == Revenue {
				gap := int(next.StartTime - prev.EndTime)
				if gap >= 0 && gap < v.cfg.MinLayoverSeconds {
					v.add(2, categoryStructural, SeverityError,
						fmt.Sprintf("block '%s' layover of %ds is below the %ds floor", block, gap, v.cfg.MinLayoverSeconds),
						map[string]string{"block": block})
				}
			}
		}
	}
}

// drivingRow reports whether a row counts toward continuous driving.
func drivingRow(t RowType) bool {
	switch t {
	case Revenue, Deadhead, PullOut, PullIn:
		return true
	}
	return false
}

// checkDuties covers rules 3 and 4: the duty-length ceiling and the
// continuous-driving cap.
func (v *validator) checkDuties() {
	dutyOrder, byDuty := v.sched.duties()
	for _, duty := range dutyOrder {
		idx := byDuty[duty]
		first := v.sched.Rows[idx[0]]
		last := v.sched.Rows[idx[len(idx)-1]]

		if v.cfg.MaxDutyLengthSeconds > 0 {
			span := int(last.EndTime - first.StartTime)
			if span > v.cfg.MaxDutyLengthSeconds {
				v.add(3, categoryStructural, SeverityError,
					fmt.Sprintf("duty '%s' spans %ds, over the %ds ceiling", duty, span, v.cfg.MaxDutyLengthSeconds),
					map[string]string{"duty": duty})
			}
		}

		if v.cfg.MaxContinuousDrivingSeconds > 0 {
			driving := 0
			reported := false
			for _, i := range idx {
				r := v.sched.Rows[i]
				if r.Type == Break && int(r.EndTime-r.StartTime) >= v.cfg.MinBreakDurationSeconds {
					driving = 0
					continue
				}
				if !drivingRow(r.Type) {
					continue
				}
				driving += int(r.EndTime - r.StartTime)
				if driving > v.cfg.MaxContinuousDrivingSeconds && !reported {
					v.add(4, categoryStructural, SeverityError,
						fmt.Sprintf("duty '%s' exceeds %ds of continuous driving without a %ds break", duty, v.cfg.MaxContinuousDrivingSeconds, v.cfg.MinBreakDurationSeconds),
						map[string]string{"duty": duty})
					reported = true
				}
			}
		}
	}
}

// checkAgainstFeed covers rules 6 through 9, cross-referencing revenue
// rows with the GTFS feed.
func (v *validator) checkAgainstFeed() {
	tolerance := v.cfg.TimeToleranceSeconds

	for i, r := range v.sched.Rows {
		if r.Type != Revenue || r.TripID == "" {
			continue
		}
		context := map[string]string{"block": r.Block, "trip_id": r.TripID, "row": fmt.Sprint(i + 1)}

		if _, found := v.filter.Trip(r.TripID); !found {
			v.add(6, categoryGTFS, SeverityError,
				fmt.Sprintf("trip '%s' not found in the GTFS feed", r.TripID), context)
			continue
		}

		sts := v.filter.TripStopTimes(r.TripID)
		if len(sts) == 0 {
			v.add(6, categoryGTFS, SeverityError,
				fmt.Sprintf("trip '%s' has no stop times in the GTFS feed", r.TripID), context)
			continue
		}
		first := sts[0]
		last := sts[len(sts)-1]

		if first.Departure.IsSet() && r.StartTime.IsSet() {
			diff := int(r.StartTime - first.Departure)
			if diff < 0 {
				diff = -diff
			}
			if diff > tolerance {
				v.add(7, categoryGTFS, v.toleranceSeverity(),
					fmt.Sprintf("schedule start deviates from GTFS: trip '%s' departs %s, schedule says %s", r.TripID, first.Departure, r.StartTime),
					context)
			}
		}

		if last.Arrival.IsSet() && r.EndTime.IsSet() {
			diff := int(r.EndTime - last.Arrival)
			if diff < 0 {
				diff = -diff
			}
			if diff > tolerance {
				v.add(8, categoryGTFS, v.toleranceSeverity(),
					fmt.Sprintf("schedule end deviates from GTFS: trip '%s' arrives %s, schedule says %s", r.TripID, last.Arrival, r.EndTime),
					context)
			}
		}

		v.checkEndpoint(9, r.StartPlace, r.StartLat, r.StartLon, first.StopID, context)
		v.checkEndpoint(9, r.EndPlace, r.EndLat, r.EndLon, last.StopID, context)
	}
}

// endpointToleranceMeters is how far apart a schedule place and the
// GTFS stop may sit when their ids differ.
const endpointToleranceMeters = 25.0

// checkEndpoint is rule 9: a revenue row's place matches the trip's
// terminal stop by id, or by coordinates when the ids differ.
func (v *validator) checkEndpoint(rule int, place string, lat, lon float64, stopID string, context map[string]string) {
	if place == "" || place == stopID {
		return
	}

	stop, found := v.filter.Stop(stopID)
	if found && (lat != 0 || lon != 0) {
		if distanceKM(lat, lon, stop.Lat, stop.Lon)*1000 <= endpointToleranceMeters {
			return
		}
	}
	// The place may itself name a stop whose coordinates match.
	if placeStop, found := v.filter.Stop(place); found {
		target, targetFound := v.filter.Stop(stopID)
		if targetFound && distanceKM(placeStop.Lat, placeStop.Lon, target.Lat, target.Lon)*1000 <= endpointToleranceMeters {
			return
		}
	}

	v.add(rule, categoryGTFS, v.toleranceSeverity(),
		fmt.Sprintf("place '%s' does not match GTFS stop '%s'", place, stopID),
		context)
}

// stopCoord resolves the best coordinates for a place: the GTFS stop
// when the feed knows it, otherwise the row-embedded pair.
func stopCoord(f *filter.Filter, place string, lat, lon float64) (float64, float64, bool) {
	if f != nil {
		if stop, found := f.Stop(place); found && (stop.Lat != 0 || stop.Lon != 0) {
			return stop.Lat, stop.Lon, true
		}
	}
	if lat != 0 || lon != 0 {
		return lat, lon, true
	}
	return 0, 0, false
}
