// Package filter services by-id lookups and relational joins over a
// loaded feed. Indexes are built on first touch, each behind its own
// guard, so lookups are amortized O(1) and unrelated index families
// build in parallel.
package filter

import (
	"sort"
	"sync"

	transit "github.com/transitgrid/transit"
	"github.com/transitgrid/transit/model"
)

// Filter wraps a Feed for queries. It borrows entity identities via
// their string keys and positions only; it never retains
// cross-collection pointers into the owner, so the feed stays the sole
// owner of its records.
//
// A Filter is safe for concurrent readers. The wrapped feed must not be
// mutated while a Filter is in use.
type Filter struct {
	feed *transit.Feed

	idOnce        sync.Once
	agenciesByID  map[string]int
	stopsByID     map[string]int
	routesByID    map[string]int
	tripsByID     map[string]int
	calendarsByID map[string]int
	shapesByID    map[string]int

	routeOnce       sync.Once
	tripsByRoute    map[string][]string
	stopTimesByTrip map[string][]int

	stopOnce        sync.Once
	stopTimesByStop map[string][]int

	svcOnce            sync.Once
	tripsByService     map[string][]string
	calDatesByService  map[string][]int
	calDateServiceSeen []string

	agencyOnce     sync.Once
	routesByAgency map[string][]string
}

// New wraps feed. No indexes are built until first use.
func New(feed *transit.Feed) *Filter {
	return &Filter{feed: feed}
}

// Feed returns the wrapped feed.
func (f *Filter) Feed() *transit.Feed {
	return f.feed
}

func (f *Filter) buildID() {
	f.idOnce.Do(func() {
		f.agenciesByID = make(map[string]int, len(f.feed.Agencies))
		for i, a := range f.feed.Agencies {
			if _, found := f.agenciesByID[a.ID]; !found {
				f.agenciesByID[a.ID] = i
			}
		}
		f.stopsByID = make(map[string]int, len(f.feed.Stops))
		for i, s := range f.feed.Stops {
			if _, found := f.stopsByID[s.ID]; !found {
				f.stopsByID[s.ID] = i
			}
		}
		f.routesByID = make(map[string]int, len(f.feed.Routes))
		for i, r := range f.feed.Routes {
			if _, found := f.routesByID[r.ID]; !found {
				f.routesByID[r.ID] = i
			}
		}
		f.tripsByID = make(map[string]int, len(f.feed.Trips))
		for i, t := range f.feed.Trips {
			if _, found := f.tripsByID[t.ID]; !found {
				f.tripsByID[t.ID] = i
			}
		}
		f.calendarsByID = make(map[string]int, len(f.feed.Calendars))
		for i, c := range f.feed.Calendars {
			if _, found := f.calendarsByID[c.ServiceID]; !found {
				f.calendarsByID[c.ServiceID] = i
			}
		}
		f.shapesByID = make(map[string]int, len(f.feed.Shapes))
		for i, s := range f.feed.Shapes {
			if _, found := f.shapesByID[s.ID]; !found {
				f.shapesByID[s.ID] = i
			}
		}
	})
}

func (f *Filter) buildRoute() {
	f.routeOnce.Do(func() {
		f.tripsByRoute = map[string][]string{}
		for _, t := range f.feed.Trips {
			f.tripsByRoute[t.RouteID] = append(f.tripsByRoute[t.RouteID], t.ID)
		}

		f.stopTimesByTrip = map[string][]int{}
		for i, st := range f.feed.StopTimes {
			f.stopTimesByTrip[st.TripID] = append(f.stopTimesByTrip[st.TripID], i)
		}
		for _, idx := range f.stopTimesByTrip {
			idx := idx
			sort.SliceStable(idx, func(a, b int) bool {
				return f.feed.StopTimes[idx[a]].StopSequence < f.feed.StopTimes[idx[b]].StopSequence
			})
		}
	})
}

func (f *Filter) buildStop() {
	f.stopOnce.Do(func() {
		f.stopTimesByStop = map[string][]int{}
		for i, st := range f.feed.StopTimes {
			f.stopTimesByStop[st.StopID] = append(f.stopTimesByStop[st.StopID], i)
		}
	})
}

func (f *Filter) buildService() {
	f.svcOnce.Do(func() {
		f.tripsByService = map[string][]string{}
		for _, t := range f.feed.Trips {
			f.tripsByService[t.ServiceID] = append(f.tripsByService[t.ServiceID], t.ID)
		}
		f.calDatesByService = map[string][]int{}
		for i, cd := range f.feed.CalendarDates {
			if _, found := f.calDatesByService[cd.ServiceID]; !found {
				f.calDateServiceSeen = append(f.calDateServiceSeen, cd.ServiceID)
			}
			f.calDatesByService[cd.ServiceID] = append(f.calDatesByService[cd.ServiceID], i)
		}
	})
}

func (f *Filter) buildAgency() {
	f.agencyOnce.Do(func() {
		f.routesByAgency = map[string][]string{}
		for _, r := range f.feed.Routes {
			f.routesByAgency[r.AgencyID] = append(f.routesByAgency[r.AgencyID], r.ID)
		}
	})
}

// Stop looks up a stop by id.
func (f *Filter) Stop(id string) (model.Stop, bool) {
	f.buildID()
	i, found := f.stopsByID[id]
	if !found {
		return model.Stop{}, false
	}
	return f.feed.Stops[i], true
}

// Route looks up a route by id.
func (f *Filter) Route(id string) (model.Route, bool) {
	f.buildID()
	i, found := f.routesByID[id]
	if !found {
		return model.Route{}, false
	}
	return f.feed.Routes[i], true
}

// Trip looks up a trip by id.
func (f *Filter) Trip(id string) (model.Trip, bool) {
	f.buildID()
	i, found := f.tripsByID[id]
	if !found {
		return model.Trip{}, false
	}
	return f.feed.Trips[i], true
}

// Agency looks up an agency by id. The empty id resolves to the default
// agency when the feed has exactly one.
func (f *Filter) Agency(id string) (model.Agency, bool) {
	f.buildID()
	i, found := f.agenciesByID[id]
	if !found {
		if id == "" && len(f.feed.Agencies) == 1 {
			return f.feed.Agencies[0], true
		}
		return model.Agency{}, false
	}
	return f.feed.Agencies[i], true
}

// Calendar looks up a calendar row by service id.
func (f *Filter) Calendar(serviceID string) (model.Calendar, bool) {
	f.buildID()
	i, found := f.calendarsByID[serviceID]
	if !found {
		return model.Calendar{}, false
	}
	return f.feed.Calendars[i], true
}

// RouteTrips returns the trips of a route in feed order.
func (f *Filter) RouteTrips(routeID string) []model.Trip {
	f.buildID()
	f.buildRoute()
	trips := []model.Trip{}
	for _, tripID := range f.tripsByRoute[routeID] {
		trips = append(trips, f.feed.Trips[f.tripsByID[tripID]])
	}
	return trips
}

// TripStopTimes returns a trip's stop_times sorted by stop_sequence.
func (f *Filter) TripStopTimes(tripID string) []model.StopTime {
	f.buildRoute()
	sts := []model.StopTime{}
	for _, i := range f.stopTimesByTrip[tripID] {
		sts = append(sts, f.feed.StopTimes[i])
	}
	return sts
}

// TripStops returns a trip's stops in traversal order.
func (f *Filter) TripStops(tripID string) []model.Stop {
	f.buildID()
	f.buildRoute()
	stops := []model.Stop{}
	for _, i := range f.stopTimesByTrip[tripID] {
		if j, found := f.stopsByID[f.feed.StopTimes[i].StopID]; found {
			stops = append(stops, f.feed.Stops[j])
		}
	}
	return stops
}

// RouteStopTimes returns all stop_times of a route, trip by trip.
func (f *Filter) RouteStopTimes(routeID string) []model.StopTime {
	f.buildRoute()
	sts := []model.StopTime{}
	for _, tripID := range f.tripsByRoute[routeID] {
		for _, i := range f.stopTimesByTrip[tripID] {
			sts = append(sts, f.feed.StopTimes[i])
		}
	}
	return sts
}

// RouteStops returns the distinct stops served by a route, in
// first-seen order across its trips.
func (f *Filter) RouteStops(routeID string) []model.Stop {
	f.buildID()
	f.buildRoute()
	seen := map[string]bool{}
	stops := []model.Stop{}
	for _, tripID := range f.tripsByRoute[routeID] {
		for _, i := range f.stopTimesByTrip[tripID] {
			stopID := f.feed.StopTimes[i].StopID
			if seen[stopID] {
				continue
			}
			seen[stopID] = true
			if j, found := f.stopsByID[stopID]; found {
				stops = append(stops, f.feed.Stops[j])
			}
		}
	}
	return stops
}

// StopStopTimes returns all stop_times calling at a stop, in feed
// order.
func (f *Filter) StopStopTimes(stopID string) []model.StopTime {
	f.buildStop()
	sts := []model.StopTime{}
	for _, i := range f.stopTimesByStop[stopID] {
		sts = append(sts, f.feed.StopTimes[i])
	}
	return sts
}

// StopTrips returns the distinct trips calling at a stop, first-seen
// order preserved.
func (f *Filter) StopTrips(stopID string) []model.Trip {
	f.buildID()
	f.buildStop()
	seen := map[string]bool{}
	trips := []model.Trip{}
	for _, i := range f.stopTimesByStop[stopID] {
		tripID := f.feed.StopTimes[i].TripID
		if seen[tripID] {
			continue
		}
		seen[tripID] = true
		if j, found := f.tripsByID[tripID]; found {
			trips = append(trips, f.feed.Trips[j])
		}
	}
	return trips
}

// StopRoutes returns the distinct routes calling at a stop, first-seen
// order preserved.
func (f *Filter) StopRoutes(stopID string) []model.Route {
	f.buildID()
	seen := map[string]bool{}
	routes := []model.Route{}
	for _, t := range f.StopTrips(stopID) {
		if seen[t.RouteID] {
			continue
		}
		seen[t.RouteID] = true
		if j, found := f.routesByID[t.RouteID]; found {
			routes = append(routes, f.feed.Routes[j])
		}
	}
	return routes
}

// AgencyRoutes returns an agency's routes in feed order.
func (f *Filter) AgencyRoutes(agencyID string) []model.Route {
	f.buildID()
	f.buildAgency()
	routes := []model.Route{}
	for _, routeID := range f.routesByAgency[agencyID] {
		routes = append(routes, f.feed.Routes[f.routesByID[routeID]])
	}
	return routes
}

// AgencyTrips returns all trips operated by an agency, route by route.
func (f *Filter) AgencyTrips(agencyID string) []model.Trip {
	f.buildAgency()
	trips := []model.Trip{}
	for _, routeID := range f.routesByAgency[agencyID] {
		trips = append(trips, f.RouteTrips(routeID)...)
	}
	return trips
}

// ServiceTrips returns the trips running under a service id.
func (f *Filter) ServiceTrips(serviceID string) []model.Trip {
	f.buildID()
	f.buildService()
	trips := []model.Trip{}
	for _, tripID := range f.tripsByService[serviceID] {
		trips = append(trips, f.feed.Trips[f.tripsByID[tripID]])
	}
	return trips
}

// ActiveServicesOn evaluates the calendar plus calendar_dates
// exceptions for one date and returns the active services as their
// calendar rows. Services defined only through calendar_dates get a
// synthetic row with no weekdays and start=end=date.
func (f *Filter) ActiveServicesOn(date model.Date) []model.Calendar {
	f.buildID()
	f.buildService()

	day := date.Compact()
	weekday := date.Weekday()

	state := map[string]bool{}
	for _, c := range f.feed.Calendars {
		if c.Weekday&(1<<weekday) == 0 {
			continue
		}
		if c.StartDate > day || c.EndDate < day {
			continue
		}
		state[c.ServiceID] = true
	}

	for _, cd := range f.feed.CalendarDates {
		if cd.Date != day {
			continue
		}
		switch cd.ExceptionType {
		case model.ExceptionAdded:
			state[cd.ServiceID] = true
		case model.ExceptionRemoved:
			state[cd.ServiceID] = false
		}
	}

	active := []model.Calendar{}
	for _, c := range f.feed.Calendars {
		if state[c.ServiceID] {
			active = append(active, c)
		}
	}
	for _, serviceID := range f.calDateServiceSeen {
		if !state[serviceID] {
			continue
		}
		if _, hasCalendar := f.calendarsByID[serviceID]; hasCalendar {
			continue
		}
		active = append(active, model.Calendar{
			ServiceID: serviceID,
			StartDate: day,
			EndDate:   day,
		})
	}

	return active
}

// TripsOnDate returns the union of trips across services active on the
// date, in feed order.
func (f *Filter) TripsOnDate(date model.Date) []model.Trip {
	active := map[string]bool{}
	for _, c := range f.ActiveServicesOn(date) {
		active[c.ServiceID] = true
	}

	trips := []model.Trip{}
	for _, t := range f.feed.Trips {
		if active[t.ServiceID] {
			trips = append(trips, t)
		}
	}
	return trips
}

// ShapeForTrip resolves a trip's shape, when it has one.
func (f *Filter) ShapeForTrip(tripID string) (model.Shape, bool) {
	f.buildID()
	i, found := f.tripsByID[tripID]
	if !found {
		return model.Shape{}, false
	}
	shapeID := f.feed.Trips[i].ShapeID
	if shapeID == "" {
		return model.Shape{}, false
	}
	j, found := f.shapesByID[shapeID]
	if !found {
		return model.Shape{}, false
	}
	return f.feed.Shapes[j], true
}

// TripDuration returns the span in seconds from a trip's first
// departure to its last arrival. Trips crossing midnight report their
// true length, since times above 24:00:00 are kept as-is.
func (f *Filter) TripDuration(tripID string) (int, bool) {
	sts := f.TripStopTimes(tripID)
	if len(sts) == 0 {
		return 0, false
	}

	first := sts[0].Departure
	if !first.IsSet() {
		first = sts[0].Arrival
	}
	last := sts[len(sts)-1].Arrival
	if !last.IsSet() {
		last = sts[len(sts)-1].Departure
	}
	if !first.IsSet() || !last.IsSet() {
		return 0, false
	}
	return last.Seconds() - first.Seconds(), true
}

// RouteTripCount counts a route's trips without copying them.
func (f *Filter) RouteTripCount(routeID string) int {
	f.buildRoute()
	return len(f.tripsByRoute[routeID])
}

// RouteStopCount counts the distinct stops a route serves.
func (f *Filter) RouteStopCount(routeID string) int {
	f.buildRoute()
	seen := map[string]bool{}
	for _, tripID := range f.tripsByRoute[routeID] {
		for _, i := range f.stopTimesByTrip[tripID] {
			seen[f.feed.StopTimes[i].StopID] = true
		}
	}
	return len(seen)
}

// StopTripCount counts the distinct trips calling at a stop.
func (f *Filter) StopTripCount(stopID string) int {
	f.buildStop()
	seen := map[string]bool{}
	for _, i := range f.stopTimesByStop[stopID] {
		seen[f.feed.StopTimes[i].TripID] = true
	}
	return len(seen)
}
