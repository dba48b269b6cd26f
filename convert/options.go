package convert

import (
	"fmt"
	"runtime"

	"github.com/transitgrid/transit/model"
)

// Options configure a conversion. The zero value converts for England
// with shapes disabled and the document's own operating period.
type Options struct {
	// IncludeShapes emits one Shape per distinct journey pattern,
	// concatenated from the pattern's route-link geometry. Shape
	// ids are stable per pattern.
	IncludeShapes bool

	// CalendarStart and CalendarEnd override the service window.
	// When zero the document's OperatingPeriod applies.
	CalendarStart model.Date
	CalendarEnd   model.Date

	// Region picks the bank-holiday table for symbolic holiday
	// names.
	Region Region

	// DefaultTimezone applies when the operator carries none.
	DefaultTimezone string

	// DefaultAgencyURL applies when the operator carries none.
	DefaultAgencyURL string

	// Workers caps the parallel pre-mapping of batch documents.
	// Zero means GOMAXPROCS.
	Workers int
}

func (o Options) withDefaults() Options {
	if o.DefaultTimezone == "" {
		o.DefaultTimezone = "Europe/London"
	}
	if o.DefaultAgencyURL == "" {
		o.DefaultAgencyURL = "http://www.example.com"
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

// ParseRegion maps the region names accepted at the configuration
// surface.
func ParseRegion(s string) (Region, error) {
	switch s {
	case "", "england":
		return England, nil
	case "scotland":
		return Scotland, nil
	case "wales":
		return Wales, nil
	case "northern_ireland":
		return NorthernIreland, nil
	}
	return England, fmt.Errorf("unknown region '%s'", s)
}

// Stats counts what a conversion produced.
type Stats struct {
	Agencies           int
	Routes             int
	Stops              int
	Trips              int
	StopTimes          int
	Calendars          int
	CalendarExceptions int
	ShapesGenerated    int
}

// Warning is a non-fatal conversion finding. Warnings never abort a
// batch; they concatenate across documents in input order.
type Warning struct {
	Document string
	Message  string
}

func (w Warning) String() string {
	if w.Document != "" {
		return w.Document + ": " + w.Message
	}
	return w.Message
}

// MappingError explains why the converter refused to produce a record.
type MappingError struct {
	SourceType string
	TargetType string
	Field      string
	Reason     string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping %s to %s: %s: %s", e.SourceType, e.TargetType, e.Field, e.Reason)
}

// CalendarError explains a failed operating-profile expansion.
type CalendarError struct {
	ServiceID string
	Reason    string
}

func (e *CalendarError) Error() string {
	return fmt.Sprintf("calendar conversion for '%s': %s", e.ServiceID, e.Reason)
}
