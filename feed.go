// Package transit is an in-memory GTFS store: it parses feeds from
// directories or ZIP archives, writes them back deterministically, and
// supports lazy per-table loading with streaming row counts. The
// filter subpackage builds query indexes over a loaded feed, txc
// parses TransXChange documents, convert maps them to GTFS, and
// schedule validates operational run-cuts against a feed.
package transit

import (
	"fmt"
	"sort"

	"github.com/transitgrid/transit/model"
	"github.com/transitgrid/transit/parse"
)

// Table names a GTFS file within a feed.
type Table string

const (
	TableAgency        Table = "agency.txt"
	TableStops         Table = "stops.txt"
	TableRoutes        Table = "routes.txt"
	TableTrips         Table = "trips.txt"
	TableStopTimes     Table = "stop_times.txt"
	TableCalendar      Table = "calendar.txt"
	TableCalendarDates Table = "calendar_dates.txt"
	TableShapes        Table = "shapes.txt"
)

// tableOrder is the canonical file order for writes.
var tableOrder = []Table{
	TableAgency,
	TableStops,
	TableRoutes,
	TableTrips,
	TableStopTimes,
	TableCalendar,
	TableCalendarDates,
	TableShapes,
}

var requiredTables = []Table{
	TableAgency,
	TableStops,
	TableRoutes,
	TableTrips,
	TableStopTimes,
}

// Feed exclusively owns the eight GTFS collections. Slice position
// preserves file order. A Feed is not synchronized: build or mutate it
// from one goroutine, share it freely for reads afterwards.
type Feed struct {
	Agencies      []model.Agency
	Stops         []model.Stop
	Routes        []model.Route
	Trips         []model.Trip
	StopTimes     []model.StopTime
	Calendars     []model.Calendar
	CalendarDates []model.CalendarDate
	Shapes        []model.Shape

	// Warnings collected during a lenient load, in table order.
	Warnings []parse.RowError

	// Per-table parse byproducts (verbatim headers, unknown
	// columns) kept for round-trip writes.
	tables map[Table]*parse.TableInfo
}

// Count returns the number of records loaded for a table. Shapes count
// distinct shape ids, not points.
func (f *Feed) Count(t Table) int {
	switch t {
	case TableAgency:
		return len(f.Agencies)
	case TableStops:
		return len(f.Stops)
	case TableRoutes:
		return len(f.Routes)
	case TableTrips:
		return len(f.Trips)
	case TableStopTimes:
		return len(f.StopTimes)
	case TableCalendar:
		return len(f.Calendars)
	case TableCalendarDates:
		return len(f.CalendarDates)
	case TableShapes:
		return len(f.Shapes)
	}
	return 0
}

func (f *Feed) tableInfo(t Table) *parse.TableInfo {
	if f.tables == nil {
		return nil
	}
	return f.tables[t]
}

func (f *Feed) setTableInfo(t Table, info *parse.TableInfo) {
	if f.tables == nil {
		f.tables = map[Table]*parse.TableInfo{}
	}
	f.tables[t] = info
}

// Validate checks the semantic invariants that row-level parsing cannot
// see: reference resolution across tables, stop_time ordering, and
// agency defaulting. Returns a *ValidationError when anything is found,
// nil otherwise.
func (f *Feed) Validate() error {
	var errs, warnings []string

	agencyIDs := map[string]bool{}
	blankAgencies := 0
	for _, a := range f.Agencies {
		if a.ID == "" {
			blankAgencies++
		}
		agencyIDs[a.ID] = true
	}
	if blankAgencies > 0 && len(f.Agencies) > 1 {
		errs = append(errs, "multiple agencies but no agency_id to tell them apart")
	}

	for _, r := range f.Routes {
		if r.AgencyID != "" && !agencyIDs[r.AgencyID] {
			errs = append(errs, fmt.Sprintf("route '%s' references unknown agency '%s'", r.ID, r.AgencyID))
		}
	}

	routeIDs := map[string]bool{}
	for _, r := range f.Routes {
		routeIDs[r.ID] = true
	}
	serviceIDs := map[string]bool{}
	for _, c := range f.Calendars {
		serviceIDs[c.ServiceID] = true
	}
	for _, cd := range f.CalendarDates {
		serviceIDs[cd.ServiceID] = true
	}

	tripIDs := map[string]bool{}
	for _, t := range f.Trips {
		tripIDs[t.ID] = true
		if !routeIDs[t.RouteID] {
			errs = append(errs, fmt.Sprintf("trip '%s' references unknown route '%s'", t.ID, t.RouteID))
		}
		if !serviceIDs[t.ServiceID] {
			errs = append(errs, fmt.Sprintf("trip '%s' references unknown service '%s'", t.ID, t.ServiceID))
		}
	}

	stopIDs := map[string]bool{}
	for _, s := range f.Stops {
		stopIDs[s.ID] = true
	}

	byTrip := map[string][]model.StopTime{}
	for _, st := range f.StopTimes {
		if !tripIDs[st.TripID] {
			errs = append(errs, fmt.Sprintf("stop_time references unknown trip '%s'", st.TripID))
			continue
		}
		if !stopIDs[st.StopID] {
			errs = append(errs, fmt.Sprintf("stop_time for trip '%s' references unknown stop '%s'", st.TripID, st.StopID))
		}
		byTrip[st.TripID] = append(byTrip[st.TripID], st)
	}

	for tripID, sts := range byTrip {
		if len(sts) < 2 {
			warnings = append(warnings, fmt.Sprintf("trip '%s' has fewer than two stop_times", tripID))
		}
		sort.SliceStable(sts, func(i, j int) bool {
			return sts[i].StopSequence < sts[j].StopSequence
		})
		prev := model.TimeUnset
		for _, st := range sts {
			for _, tm := range []model.Time{st.Arrival, st.Departure} {
				if !tm.IsSet() {
					continue
				}
				if prev.IsSet() && tm < prev {
					errs = append(errs, fmt.Sprintf("trip '%s' has non-monotone times at sequence %d", tripID, st.StopSequence))
				}
				prev = tm
			}
		}
	}

	for _, sh := range f.Shapes {
		for i := 1; i < len(sh.Points); i++ {
			if sh.Points[i].Sequence <= sh.Points[i-1].Sequence {
				warnings = append(warnings, fmt.Sprintf("shape '%s' has non-increasing point sequence", sh.ID))
				break
			}
		}
	}

	if len(errs) == 0 && len(warnings) == 0 {
		return nil
	}
	// Deterministic report order regardless of map iteration above.
	sort.Strings(errs)
	sort.Strings(warnings)
	return &ValidationError{Errors: errs, Warnings: warnings}
}

// Snapshot returns a columnar view of one table: a map from column name
// to the per-record values, in record order. This is the interop
// primitive external dataframe adapters consume; the feed itself is not
// copied column-wise until asked.
func (f *Feed) Snapshot(t Table) (map[string][]string, error) {
	cols, n, err := f.columnsFor(t)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(cols))
	for _, c := range cols {
		values := make([]string, n)
		for i := 0; i < n; i++ {
			values[i] = c.value(i)
		}
		out[c.name] = values
	}
	return out, nil
}
