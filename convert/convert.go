// Package convert materializes the normalized GTFS model from the
// denormalized TransXChange one: it resolves the document's textual
// references, computes absolute stop times from relative timing links,
// expands operating profiles into concrete calendars, and merges
// batches without identity collisions.
package convert

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	transit "github.com/transitgrid/transit"
	"github.com/transitgrid/transit/model"
	"github.com/transitgrid/transit/txc"
)

// Result carries the converted feed plus everything the caller may
// want to report.
type Result struct {
	Feed     *transit.Feed
	Stats    Stats
	Warnings []Warning
}

// mappedTrip is a trip whose service id has not been minted yet; the
// profile fingerprint stands in for it until merge.
type mappedTrip struct {
	trip      model.Trip
	profileFP string
}

// mapped is one document's pre-merge output. Trip and shape ids are
// unprefixed; the merge applies the batch discriminator.
type mapped struct {
	name      string
	agencies  []model.Agency
	stops     []model.Stop
	routes    []model.Route
	trips     []mappedTrip
	stopTimes []model.StopTime
	shapes    []model.Shape
	profiles  map[string]*expandedProfile
	warnings  []Warning
}

// Convert maps a single document. Identical input and options produce
// byte-identical output.
func Convert(doc *txc.Document, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	return mergeMapped([]*mapped{mapDocument(doc, opts)}, false), nil
}

// ConvertBatch maps documents in parallel worker tasks, then merges
// single-threadedly in input order so the result is deterministic.
// Trip and shape ids get a per-document discriminator to prevent
// collisions; agencies, routes, stops and stop points keep their
// natural keys across the batch. The context is observed at document
// boundaries.
func ConvertBatch(ctx context.Context, docs []*txc.Document, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	if err := ctx.Err(); err != nil {
		return nil, transit.Cancelled(err)
	}

	ms := make([]*mapped, len(docs))
	sem := make(chan struct{}, opts.Workers)
	var wg sync.WaitGroup
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, transit.Cancelled(err)
		}
		wg.Add(1)
		go func(i int, doc *txc.Document) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			ms[i] = mapDocument(doc, opts)
		}(i, doc)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, transit.Cancelled(err)
	}

	return mergeMapped(ms, len(docs) > 1), nil
}

// discriminator derives a stable per-document trip id prefix from the
// document name, falling back to the batch ordinal for anonymous
// documents.
func discriminator(name string, ordinal int) string {
	if name == "" {
		return fmt.Sprintf("d%d", ordinal+1)
	}
	h := fnv.New32a()
	h.Write([]byte(name))
	return fmt.Sprintf("%08x", h.Sum32())
}

func modeRouteType(mode string) model.RouteType {
	switch strings.ToLower(mode) {
	case "rail":
		return model.RouteTypeRail
	case "tram":
		return model.RouteTypeTram
	case "metro", "underground":
		return model.RouteTypeSubway
	case "ferry":
		return model.RouteTypeFerry
	case "trolleybus":
		return model.RouteTypeTrolleybus
	}
	// Mode defaults to bus; coach also maps here.
	return model.RouteTypeBus
}

// parseDepartureTime accepts the "HH:MM:SS" and "HH:MM" forms TXC
// writes for DepartureTime.
func parseDepartureTime(s string) (model.Time, error) {
	if strings.Count(s, ":") == 1 {
		s += ":00"
	}
	t, err := model.ParseTime(s)
	if err != nil {
		return model.TimeUnset, err
	}
	if !t.IsSet() {
		return model.TimeUnset, fmt.Errorf("empty departure time")
	}
	return t, nil
}

func mapDocument(doc *txc.Document, opts Options) *mapped {
	m := &mapped{name: doc.Name, profiles: map[string]*expandedProfile{}}

	warn := func(format string, args ...interface{}) {
		m.warnings = append(m.warnings, Warning{
			Document: doc.Name,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	// Operators become agencies. TXC operators carry neither URL
	// nor timezone; both come from options.
	agencyByOperatorID := map[string]string{}
	seenAgency := map[string]bool{}
	for _, op := range doc.Operators {
		id := op.Code
		if id == "" {
			id = op.NationalCode
		}
		if id == "" {
			id = op.ID
		}
		if id == "" {
			warn("%v", &MappingError{
				SourceType: "Operator", TargetType: "Agency",
				Field: "OperatorCode", Reason: "operator has no usable code",
			})
			continue
		}
		agencyByOperatorID[op.ID] = id
		if seenAgency[id] {
			continue
		}
		seenAgency[id] = true

		name := op.TradingName
		if name == "" {
			name = op.ShortName
		}
		if name == "" {
			name = id
		}
		m.agencies = append(m.agencies, model.Agency{
			ID:       id,
			Name:     name,
			URL:      opts.DefaultAgencyURL,
			Timezone: opts.DefaultTimezone,
		})
	}

	// Stop points become stops, keyed by ATCO code.
	seenStop := map[string]bool{}
	addStop := func(id, name string, loc *txc.Location) {
		if id == "" || seenStop[id] {
			return
		}
		seenStop[id] = true
		if name == "" {
			name = id
		}
		stop := model.Stop{ID: id, Name: name}
		if loc.IsSet() {
			stop.Lat = loc.Latitude
			stop.Lon = loc.Longitude
		}
		m.stops = append(m.stops, stop)
	}
	for _, sp := range doc.StopPoints {
		addStop(sp.Ref, sp.CommonName, sp.Location)
	}

	// Reference indexes.
	sections := map[string]*txc.RouteSection{}
	for i := range doc.RouteSections {
		sections[doc.RouteSections[i].ID] = &doc.RouteSections[i]
	}
	jpSections := map[string]*txc.JourneyPatternSection{}
	for i := range doc.JourneyPatternSections {
		jpSections[doc.JourneyPatternSections[i].ID] = &doc.JourneyPatternSections[i]
	}
	txcRoutes := map[string]*txc.Route{}
	for i := range doc.Routes {
		txcRoutes[doc.Routes[i].ID] = &doc.Routes[i]
	}

	type jpOwner struct {
		jp      *txc.JourneyPattern
		service *txc.Service
	}
	services := map[string]*txc.Service{}
	patterns := map[string]jpOwner{}
	for i := range doc.Services {
		svc := &doc.Services[i]
		services[svc.Code] = svc
		for j := range svc.StandardService.JourneyPatterns {
			jp := &svc.StandardService.JourneyPatterns[j]
			patterns[jp.ID] = jpOwner{jp: jp, service: svc}
		}
	}

	// One GTFS route per line within a service.
	seenRoute := map[string]bool{}
	for _, svc := range doc.Services {
		agencyID := agencyByOperatorID[svc.RegisteredOperatorRef]
		if agencyID == "" && len(m.agencies) > 0 {
			agencyID = m.agencies[0].ID
		}
		for _, line := range svc.Lines {
			routeID := svc.Code + ":" + line.ID
			if seenRoute[routeID] {
				continue
			}
			seenRoute[routeID] = true
			m.routes = append(m.routes, model.Route{
				ID:        routeID,
				AgencyID:  agencyID,
				ShortName: line.Name,
				LongName:  svc.Description,
				Type:      modeRouteType(svc.Mode),
			})
		}
	}

	// Service windows, possibly overridden from options.
	windowFor := func(svc *txc.Service) (model.Date, model.Date, error) {
		start := opts.CalendarStart
		end := opts.CalendarEnd
		if start.IsZero() && svc.OperatingPeriod.StartDate != "" {
			parsed, err := model.ParseDate(svc.OperatingPeriod.StartDate)
			if err != nil {
				return model.Date{}, model.Date{}, err
			}
			start = parsed
		}
		if end.IsZero() && svc.OperatingPeriod.EndDate != "" {
			parsed, err := model.ParseDate(svc.OperatingPeriod.EndDate)
			if err != nil {
				return model.Date{}, model.Date{}, err
			}
			end = parsed
		}
		if end.IsZero() && !start.IsZero() {
			// Open-ended registrations run a year out.
			end = start.AddDays(364)
		}
		return start, end, nil
	}

	// Shape per distinct journey pattern, built lazily from the
	// pattern's route geometry.
	shapeBuilt := map[string]string{}
	buildShape := func(jp *txc.JourneyPattern) string {
		if !opts.IncludeShapes {
			return ""
		}
		if id, done := shapeBuilt[jp.ID]; done {
			return id
		}
		shapeBuilt[jp.ID] = ""

		route := txcRoutes[jp.RouteRef]
		if route == nil {
			return ""
		}
		points := []model.ShapePoint{}
		for _, sref := range route.SectionRefs {
			sec := sections[sref]
			if sec == nil {
				continue
			}
			for _, link := range sec.Links {
				for _, loc := range link.Track {
					if !loc.IsSet() {
						continue
					}
					points = append(points, model.ShapePoint{
						Lat:      loc.Latitude,
						Lon:      loc.Longitude,
						Sequence: uint32(len(points) + 1),
					})
				}
			}
		}
		if len(points) < 2 {
			return ""
		}
		m.shapes = append(m.shapes, model.Shape{ID: jp.ID, Points: points})
		shapeBuilt[jp.ID] = jp.ID
		return jp.ID
	}

	// parseWait tolerates broken wait times, turning them into
	// zero-length dwells with a warning.
	parseWait := func(s, context string) int {
		if s == "" {
			return 0
		}
		secs, err := parseDuration(s)
		if err != nil {
			warn("bad wait time '%s' on %s", s, context)
			return 0
		}
		return secs
	}

	// Vehicle journeys become trips with expanded stop times.
	for i := range doc.VehicleJourneys {
		vj := &doc.VehicleJourneys[i]

		code := vj.EffectiveCode()
		if code == "" {
			code = vj.PrivateCode
		}
		if code == "" {
			code = fmt.Sprintf("vj_%d", i+1)
			warn("vehicle journey %d has no code, minted '%s'", i+1, code)
		}

		svc := services[vj.ServiceRef]
		if svc == nil && len(doc.Services) == 1 {
			svc = &doc.Services[0]
		}
		if svc == nil {
			warn("%v", &MappingError{
				SourceType: "VehicleJourney", TargetType: "Trip",
				Field: "ServiceRef", Reason: fmt.Sprintf("journey '%s' references unknown service '%s'", code, vj.ServiceRef),
			})
			continue
		}

		owner, found := patterns[vj.JourneyPatternRef]
		if !found {
			warn("%v", &MappingError{
				SourceType: "VehicleJourney", TargetType: "Trip",
				Field: "JourneyPatternRef", Reason: fmt.Sprintf("journey '%s' references unknown pattern '%s'", code, vj.JourneyPatternRef),
			})
			continue
		}
		jp := owner.jp

		lineID := vj.LineRef
		if lineID == "" && len(svc.Lines) > 0 {
			lineID = svc.Lines[0].ID
		}
		routeID := svc.Code + ":" + lineID
		if !seenRoute[routeID] {
			warn("%v", &MappingError{
				SourceType: "VehicleJourney", TargetType: "Trip",
				Field: "LineRef", Reason: fmt.Sprintf("journey '%s' references unknown line '%s'", code, lineID),
			})
			continue
		}

		start, end, err := windowFor(svc)
		if err != nil {
			warn("%v", &CalendarError{ServiceID: svc.Code, Reason: err.Error()})
			continue
		}
		profile := svc.OperatingProfile
		if vj.OperatingProfile != nil {
			// Journey-level profile overrides the service one
			// for this journey only.
			profile = vj.OperatingProfile
		}
		expanded, pwarns, err := expandProfile(profile, start, end, opts.Region)
		for _, pw := range pwarns {
			warn("journey '%s': %s", code, pw)
		}
		if err != nil {
			warn("%v", &CalendarError{ServiceID: svc.Code, Reason: err.Error()})
			continue
		}
		fp := expanded.fingerprint()
		m.profiles[fp] = expanded

		departure, err := parseDepartureTime(vj.DepartureTime)
		if err != nil {
			warn("journey '%s': bad departure time '%s'", code, vj.DepartureTime)
			continue
		}

		links := []txc.JourneyPatternTimingLink{}
		missingSection := false
		for _, sref := range jp.SectionRefs {
			sec := jpSections[sref]
			if sec == nil {
				warn("pattern '%s' references unknown section '%s'", jp.ID, sref)
				missingSection = true
				break
			}
			links = append(links, sec.TimingLinks...)
		}
		if missingSection || len(links) == 0 {
			if !missingSection {
				warn("pattern '%s' has no timing links, journey '%s' skipped", jp.ID, code)
			}
			continue
		}

		overrides := map[string]int{}
		for _, tl := range vj.TimingLinks {
			if tl.RunTime == "" {
				continue
			}
			secs, err := parseDuration(tl.RunTime)
			if err != nil {
				warn("journey '%s': bad run time override '%s'", code, tl.RunTime)
				continue
			}
			overrides[tl.JourneyPatternTimingLinkRef] = secs
		}

		// Walk the links, keeping the cursor on the departure
		// side so dwell time carries into the next run.
		seq := uint32(1)
		cursor := departure
		emit := func(stopID string, arrival, dep model.Time) {
			addStop(stopID, "", nil)
			m.stopTimes = append(m.stopTimes, model.StopTime{
				TripID:       code,
				StopID:       stopID,
				StopSequence: seq,
				Arrival:      arrival,
				Departure:    dep,
			})
			seq++
		}

		first := links[0]
		firstDep := cursor + model.Time(parseWait(first.From.WaitTime, "link '"+first.ID+"'"))
		emit(first.From.StopPointRef, cursor, firstDep)
		cursor = firstDep

		for li, link := range links {
			run := 0
			if secs, found := overrides[link.ID]; found {
				run = secs
			} else if link.RunTime == "" {
				warn("journey '%s': missing run time on link '%s'", code, link.ID)
			} else {
				secs, err := parseDuration(link.RunTime)
				if err != nil {
					warn("journey '%s': bad run time '%s' on link '%s'", code, link.RunTime, link.ID)
				} else {
					run = secs
				}
			}

			arrival := cursor + model.Time(run)
			dwell := parseWait(link.To.WaitTime, "link '"+link.ID+"'")
			if li+1 < len(links) {
				dwell += parseWait(links[li+1].From.WaitTime, "link '"+links[li+1].ID+"'")
			}
			dep := arrival + model.Time(dwell)
			emit(link.To.StopPointRef, arrival, dep)
			cursor = dep
		}

		headsign := jp.DestinationDisplay
		if headsign == "" {
			headsign = svc.StandardService.Destination
		}

		m.trips = append(m.trips, mappedTrip{
			trip: model.Trip{
				ID:       code,
				RouteID:  routeID,
				Headsign: headsign,
				ShapeID:  buildShape(jp),
			},
			profileFP: fp,
		})
	}

	return m
}

// mergeMapped combines pre-mapped documents in order. Service ids are
// minted here, one per distinct expanded profile across the whole
// batch, numbered in first-encounter order.
func mergeMapped(ms []*mapped, prefix bool) *Result {
	feed := &transit.Feed{}
	result := &Result{Feed: feed}

	seenAgency := map[string]bool{}
	seenStop := map[string]bool{}
	seenRoute := map[string]bool{}
	serviceByFP := map[string]string{}

	for idx, m := range ms {
		if m == nil {
			continue
		}
		disc := ""
		if prefix {
			disc = discriminator(m.name, idx) + ":"
		}

		for _, a := range m.agencies {
			if seenAgency[a.ID] {
				continue
			}
			seenAgency[a.ID] = true
			feed.Agencies = append(feed.Agencies, a)
		}
		for _, s := range m.stops {
			if seenStop[s.ID] {
				continue
			}
			seenStop[s.ID] = true
			feed.Stops = append(feed.Stops, s)
		}
		for _, r := range m.routes {
			if seenRoute[r.ID] {
				continue
			}
			seenRoute[r.ID] = true
			feed.Routes = append(feed.Routes, r)
		}

		for _, mt := range m.trips {
			sid, found := serviceByFP[mt.profileFP]
			if !found {
				sid = fmt.Sprintf("svc_%d", len(serviceByFP)+1)
				serviceByFP[mt.profileFP] = sid

				p := m.profiles[mt.profileFP]
				feed.Calendars = append(feed.Calendars, model.Calendar{
					ServiceID: sid,
					StartDate: p.start.Compact(),
					EndDate:   p.end.Compact(),
					Weekday:   p.weekday,
				})
				for _, ex := range p.exceptions {
					et := model.ExceptionRemoved
					if ex.added {
						et = model.ExceptionAdded
					}
					feed.CalendarDates = append(feed.CalendarDates, model.CalendarDate{
						ServiceID:     sid,
						Date:          ex.date.Compact(),
						ExceptionType: et,
					})
				}
			}

			trip := mt.trip
			trip.ID = disc + trip.ID
			trip.ServiceID = sid
			if trip.ShapeID != "" {
				trip.ShapeID = disc + trip.ShapeID
			}
			feed.Trips = append(feed.Trips, trip)
		}

		for _, st := range m.stopTimes {
			st.TripID = disc + st.TripID
			feed.StopTimes = append(feed.StopTimes, st)
		}
		for _, sh := range m.shapes {
			sh.ID = disc + sh.ID
			feed.Shapes = append(feed.Shapes, sh)
		}

		result.Warnings = append(result.Warnings, m.warnings...)
	}

	result.Stats = Stats{
		Agencies:           len(feed.Agencies),
		Routes:             len(feed.Routes),
		Stops:              len(feed.Stops),
		Trips:              len(feed.Trips),
		StopTimes:          len(feed.StopTimes),
		Calendars:          len(feed.Calendars),
		CalendarExceptions: len(feed.CalendarDates),
		ShapesGenerated:    len(feed.Shapes),
	}
	return result
}
