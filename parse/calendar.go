package parse

import (
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/transitgrid/transit/model"
)

type CalendarCSV struct {
	ServiceID string `csv:"service_id"`
	Monday    string `csv:"monday"`
	Tuesday   string `csv:"tuesday"`
	Wednesday string `csv:"wednesday"`
	Thursday  string `csv:"thursday"`
	Friday    string `csv:"friday"`
	Saturday  string `csv:"saturday"`
	Sunday    string `csv:"sunday"`
	StartDate string `csv:"start_date"`
	EndDate   string `csv:"end_date"`
}

var calendarColumns = map[string]bool{
	"service_id": true,
	"monday":     true,
	"tuesday":    true,
	"wednesday":  true,
	"thursday":   true,
	"friday":     true,
	"saturday":   true,
	"sunday":     true,
	"start_date": true,
	"end_date":   true,
}

func Calendars(file string, data io.Reader, opts Options) ([]model.Calendar, *TableInfo, error) {
	tr := newTableReader(file, data, opts.RoundTrip)

	rows := []*CalendarCSV{}
	if err := gocsv.UnmarshalCSV(tr, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, tr.info(calendarColumns), nil
		}
		return nil, nil, errors.Wrapf(err, "unmarshaling %s", file)
	}

	calendars := make([]model.Calendar, 0, len(rows))
	seen := map[string]bool{}
	for i, c := range rows {
		if c.ServiceID == "" {
			if err := tr.reject(i, "service_id", "empty service_id", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		if seen[c.ServiceID] {
			if err := tr.reject(i, "service_id", "repeated service_id '"+c.ServiceID+"'", opts); err != nil {
				return nil, nil, err
			}
			continue
		}

		var weekday int8
		flags := []struct {
			column string
			value  string
			day    time.Weekday
		}{
			{"monday", c.Monday, time.Monday},
			{"tuesday", c.Tuesday, time.Tuesday},
			{"wednesday", c.Wednesday, time.Wednesday},
			{"thursday", c.Thursday, time.Thursday},
			{"friday", c.Friday, time.Friday},
			{"saturday", c.Saturday, time.Saturday},
			{"sunday", c.Sunday, time.Sunday},
		}
		bad := false
		for _, f := range flags {
			switch f.value {
			case "1":
				weekday |= 1 << f.day
			case "", "0":
			default:
				if err := tr.reject(i, f.column, "invalid "+f.column+" value '"+f.value+"'", opts); err != nil {
					return nil, nil, err
				}
				bad = true
			}
			if bad {
				break
			}
		}
		if bad {
			continue
		}

		if _, err := time.ParseInLocation("20060102", c.StartDate, time.UTC); err != nil {
			if err := tr.reject(i, "start_date", "malformed start_date '"+c.StartDate+"'", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		if _, err := time.ParseInLocation("20060102", c.EndDate, time.UTC); err != nil {
			if err := tr.reject(i, "end_date", "malformed end_date '"+c.EndDate+"'", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		if c.StartDate > c.EndDate {
			if err := tr.reject(i, "start_date", "start_date after end_date", opts); err != nil {
				return nil, nil, err
			}
			continue
		}

		seen[c.ServiceID] = true
		calendars = append(calendars, model.Calendar{
			ServiceID: c.ServiceID,
			StartDate: c.StartDate,
			EndDate:   c.EndDate,
			Weekday:   weekday,
			Extras:    tr.extras(i, calendarColumns),
		})
	}

	return calendars, tr.info(calendarColumns), nil
}
