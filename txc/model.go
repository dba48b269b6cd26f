// Package txc parses TransXChange schedule documents (schema versions
// 2.4 and 2.5) into a typed model. Only the subtrees needed for
// conversion are materialized; everything else is skipped.
package txc

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// Document is the typed projection of one TransXChange file.
// Relationships between elements are by textual reference; resolution
// is the converter's job.
type Document struct {
	// Name identifies the document within a batch, typically the
	// source file's base name. Not read from the XML.
	Name string

	SchemaVersion string

	Operators              []Operator
	StopPoints             []StopPoint
	Routes                 []Route
	RouteSections          []RouteSection
	JourneyPatternSections []JourneyPatternSection
	Services               []Service
	VehicleJourneys        []VehicleJourney

	// Diagnostics distinguishes an empty-but-valid document from a
	// parse failure. Parsing never fails hard; broken input yields
	// a partial document plus entries here.
	Diagnostics []Diagnostic
}

// Empty reports whether nothing was materialized.
func (d *Document) Empty() bool {
	return len(d.Operators) == 0 && len(d.StopPoints) == 0 &&
		len(d.Routes) == 0 && len(d.RouteSections) == 0 &&
		len(d.JourneyPatternSections) == 0 && len(d.Services) == 0 &&
		len(d.VehicleJourneys) == 0
}

// Diagnostic records one recoverable parse problem.
type Diagnostic struct {
	Element string
	Line    int
	Reason  string
}

func (d Diagnostic) String() string {
	if d.Element != "" {
		return fmt.Sprintf("line %d, %s: %s", d.Line, d.Element, d.Reason)
	}
	return fmt.Sprintf("line %d: %s", d.Line, d.Reason)
}

// NotFoundError reports a document path that could not be read.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("transxchange document not found: %s", e.Path)
}

type Operator struct {
	ID            string `xml:"id,attr"`
	Code          string `xml:"OperatorCode"`
	NationalCode  string `xml:"NationalOperatorCode"`
	ShortName     string `xml:"OperatorShortName"`
	TradingName   string `xml:"TradingName"`
	LicenceNumber string `xml:"LicenceNumber"`
}

// Location is a WGS84 point. TXC writes coordinates either directly or
// under a Translation element; the parser flattens both.
type Location struct {
	Latitude  float64
	Longitude float64
	set       bool
}

func (l *Location) IsSet() bool {
	return l != nil && l.set
}

// locationXML matches the two coordinate layouts seen in the wild.
type locationXML struct {
	Latitude    *float64 `xml:"Latitude"`
	Longitude   *float64 `xml:"Longitude"`
	Translation *struct {
		Latitude  *float64 `xml:"Latitude"`
		Longitude *float64 `xml:"Longitude"`
	} `xml:"Translation"`
}

func (l *Location) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw locationXML
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	lat, lon := raw.Latitude, raw.Longitude
	if raw.Translation != nil {
		if raw.Translation.Latitude != nil {
			lat = raw.Translation.Latitude
		}
		if raw.Translation.Longitude != nil {
			lon = raw.Translation.Longitude
		}
	}
	if lat != nil && lon != nil {
		l.Latitude = *lat
		l.Longitude = *lon
		l.set = true
	}
	return nil
}

type StopPoint struct {
	Ref        string
	CommonName string
	Location   *Location
}

// annotatedStopPointXML is the AnnotatedStopPointRef form.
type annotatedStopPointXML struct {
	Ref        string    `xml:"StopPointRef"`
	CommonName string    `xml:"CommonName"`
	Location   *Location `xml:"Location"`
}

// fullStopPointXML is the full NaPTAN StopPoint form.
type fullStopPointXML struct {
	AtcoCode   string    `xml:"AtcoCode"`
	CommonName string    `xml:"Descriptor>CommonName"`
	Location   *Location `xml:"Place>Location"`
}

type Route struct {
	ID          string   `xml:"id,attr"`
	Description string   `xml:"Description"`
	SectionRefs []string `xml:"RouteSectionRef"`
}

type RouteSection struct {
	ID    string      `xml:"id,attr"`
	Links []RouteLink `xml:"RouteLink"`
}

type RouteLink struct {
	ID       string     `xml:"id,attr"`
	From     string     `xml:"From>StopPointRef"`
	To       string     `xml:"To>StopPointRef"`
	Distance float64    `xml:"Distance"`
	Track    []Location `xml:"Track>Mapping>Location"`
}

type JourneyPatternSection struct {
	ID          string                     `xml:"id,attr"`
	TimingLinks []JourneyPatternTimingLink `xml:"JourneyPatternTimingLink"`
}

type JourneyPatternTimingLink struct {
	ID           string        `xml:"id,attr"`
	From         TimingLinkEnd `xml:"From"`
	To           TimingLinkEnd `xml:"To"`
	RouteLinkRef string        `xml:"RouteLinkRef"`
	RunTime      string        `xml:"RunTime"`
}

type TimingLinkEnd struct {
	SequenceNumber int    `xml:"SequenceNumber,attr"`
	StopPointRef   string `xml:"StopPointRef"`
	WaitTime       string `xml:"WaitTime"`
	Activity       string `xml:"Activity"`
	TimingStatus   string `xml:"TimingStatus"`
}

type Service struct {
	Code                  string           `xml:"ServiceCode"`
	Lines                 []Line           `xml:"Lines>Line"`
	OperatingPeriod       OperatingPeriod  `xml:"OperatingPeriod"`
	OperatingProfile      *OperatingProfile `xml:"OperatingProfile"`
	RegisteredOperatorRef string           `xml:"RegisteredOperatorRef"`
	Mode                  string           `xml:"Mode"`
	Description           string           `xml:"Description"`
	StandardService       StandardService  `xml:"StandardService"`
}

type Line struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"LineName"`
}

type OperatingPeriod struct {
	StartDate string `xml:"StartDate"`
	EndDate   string `xml:"EndDate"`
}

type StandardService struct {
	Origin          string           `xml:"Origin"`
	Destination     string           `xml:"Destination"`
	JourneyPatterns []JourneyPattern `xml:"JourneyPattern"`
}

type JourneyPattern struct {
	ID                 string   `xml:"id,attr"`
	DestinationDisplay string   `xml:"DestinationDisplay"`
	Direction          string   `xml:"Direction"`
	RouteRef           string   `xml:"RouteRef"`
	SectionRefs        []string `xml:"JourneyPatternSectionRefs"`
}

type VehicleJourney struct {
	Code              string            `xml:"VehicleJourneyCode"`
	PrivateCode       string            `xml:"PrivateCode"`
	TicketMachineCode string            `xml:"Operational>TicketMachine>JourneyCode"`
	OperatorRef       string            `xml:"OperatorRef"`
	OperatingProfile  *OperatingProfile `xml:"OperatingProfile"`
	ServiceRef        string            `xml:"ServiceRef"`
	LineRef           string            `xml:"LineRef"`
	JourneyPatternRef string            `xml:"JourneyPatternRef"`
	DepartureTime     string            `xml:"DepartureTime"`

	// 2.4 documents may override link run times per journey.
	TimingLinks []VehicleJourneyTimingLink `xml:"VehicleJourneyTimingLink"`
}

type VehicleJourneyTimingLink struct {
	JourneyPatternTimingLinkRef string `xml:"JourneyPatternTimingLinkRef"`
	RunTime                     string `xml:"RunTime"`
}

// OperatingProfile expresses which days a service or journey runs.
type OperatingProfile struct {
	RegularDays  RegularDayType        `xml:"RegularDayType"`
	PeriodicDays *PeriodicDayType      `xml:"PeriodicDayType"`
	SpecialDays  *SpecialDaysOperation `xml:"SpecialDaysOperation"`
	BankHolidays *BankHolidayOperation `xml:"BankHolidayOperation"`
}

// RegularDayType holds the expanded weekday set. Grouped day names
// (MondayToFriday, Weekend, ...) are flattened at parse time.
type RegularDayType struct {
	Days         []time.Weekday
	HolidaysOnly bool
}

func (r *RegularDayType) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "DaysOfWeek":
				// handled via its children below
			case "HolidaysOnly":
				r.HolidaysOnly = true
				if err := d.Skip(); err != nil {
					return err
				}
			default:
				r.addDays(t.Name.Local)
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if t.Name == start.Name {
				return nil
			}
		}
	}
}

func (r *RegularDayType) addDays(name string) {
	add := func(days ...time.Weekday) {
		for _, day := range days {
			found := false
			for _, existing := range r.Days {
				if existing == day {
					found = true
				}
			}
			if !found {
				r.Days = append(r.Days, day)
			}
		}
	}

	switch name {
	case "Monday":
		add(time.Monday)
	case "Tuesday":
		add(time.Tuesday)
	case "Wednesday":
		add(time.Wednesday)
	case "Thursday":
		add(time.Thursday)
	case "Friday":
		add(time.Friday)
	case "Saturday":
		add(time.Saturday)
	case "Sunday":
		add(time.Sunday)
	case "MondayToFriday":
		add(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)
	case "MondayToSaturday":
		add(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday)
	case "MondayToSunday":
		add(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday)
	case "Weekend":
		add(time.Saturday, time.Sunday)
	case "NotSaturday":
		add(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Sunday)
	case "NotSunday":
		add(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday)
	}
}

// PeriodicDayType restricts operation to certain weeks of the month.
type PeriodicDayType struct {
	Weeks []string
}

func (p *PeriodicDayType) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "WeekOfMonth" {
				var wom struct {
					WhichWeek string `xml:"WhichWeek"`
				}
				if err := d.DecodeElement(&wom, &t); err != nil {
					return err
				}
				if wom.WhichWeek != "" {
					p.Weeks = append(p.Weeks, strings.ToLower(wom.WhichWeek))
				}
			} else if err := d.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			if t.Name == start.Name {
				return nil
			}
		}
	}
}

type SpecialDaysOperation struct {
	Operation    []DateRange `xml:"DaysOfOperation>DateRange"`
	NonOperation []DateRange `xml:"DaysOfNonOperation>DateRange"`
}

type DateRange struct {
	StartDate string `xml:"StartDate"`
	EndDate   string `xml:"EndDate"`
}

// BankHolidayOperation carries symbolic holiday names exactly as they
// appear as element names in the document; the converter resolves them
// against a regional holiday table.
type BankHolidayOperation struct {
	Operation    HolidayNames `xml:"DaysOfOperation"`
	NonOperation HolidayNames `xml:"DaysOfNonOperation"`
}

// HolidayNames collects the child element names of a bank-holiday
// operation list.
type HolidayNames []string

func (h *HolidayNames) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			*h = append(*h, t.Name.Local)
			if err := d.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			if t.Name == start.Name {
				return nil
			}
		}
	}
}

// EffectiveCode is the journey identifier used downstream. 2.5
// documents may carry it on the ticket machine block; earlier schema
// revisions only have VehicleJourneyCode.
func (vj *VehicleJourney) EffectiveCode() string {
	if vj.Code != "" {
		return vj.Code
	}
	return vj.TicketMachineCode
}
