package parse

import (
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/transitgrid/transit/model"
)

type CalendarDateCSV struct {
	ServiceID     string `csv:"service_id"`
	Date          string `csv:"date"`
	ExceptionType string `csv:"exception_type"`
}

var calendarDateColumns = map[string]bool{
	"service_id":     true,
	"date":           true,
	"exception_type": true,
}

func CalendarDates(file string, data io.Reader, opts Options) ([]model.CalendarDate, *TableInfo, error) {
	tr := newTableReader(file, data, opts.RoundTrip)

	rows := []*CalendarDateCSV{}
	if err := gocsv.UnmarshalCSV(tr, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, tr.info(calendarDateColumns), nil
		}
		return nil, nil, errors.Wrapf(err, "unmarshaling %s", file)
	}

	dates := make([]model.CalendarDate, 0, len(rows))
	seen := map[string]bool{}
	for i, cd := range rows {
		if cd.ServiceID == "" {
			if err := tr.reject(i, "service_id", "empty service_id", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		if _, err := time.ParseInLocation("20060102", cd.Date, time.UTC); err != nil {
			if err := tr.reject(i, "date", "malformed date '"+cd.Date+"'", opts); err != nil {
				return nil, nil, err
			}
			continue
		}

		key := cd.ServiceID + "-" + cd.Date
		if seen[key] {
			if err := tr.reject(i, "date", "duplicate service/date '"+key+"'", opts); err != nil {
				return nil, nil, err
			}
			continue
		}

		if cd.ExceptionType != "1" && cd.ExceptionType != "2" {
			if err := tr.reject(i, "exception_type", "illegal exception_type '"+cd.ExceptionType+"'", opts); err != nil {
				return nil, nil, err
			}
			continue
		}

		seen[key] = true
		et := model.ExceptionAdded
		if cd.ExceptionType == "2" {
			et = model.ExceptionRemoved
		}
		dates = append(dates, model.CalendarDate{
			ServiceID:     cd.ServiceID,
			Date:          cd.Date,
			ExceptionType: et,
			Extras:        tr.extras(i, calendarDateColumns),
		})
	}

	return dates, tr.info(calendarDateColumns), nil
}
