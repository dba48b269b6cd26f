package parse

import (
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/transitgrid/transit/model"
)

type AgencyCSV struct {
	ID       string `csv:"agency_id"`
	Name     string `csv:"agency_name"`
	URL      string `csv:"agency_url"`
	Timezone string `csv:"agency_timezone"`
	// Lang     string `csv:"agency_lang"`
	// Phone    string `csv:"agency_phone"`
}

var agencyColumns = map[string]bool{
	"agency_id":       true,
	"agency_name":     true,
	"agency_url":      true,
	"agency_timezone": true,
}

func Agencies(file string, data io.Reader, opts Options) ([]model.Agency, *TableInfo, error) {
	tr := newTableReader(file, data, opts.RoundTrip)

	rows := []*AgencyCSV{}
	if err := gocsv.UnmarshalCSV(tr, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, tr.info(agencyColumns), nil
		}
		return nil, nil, errors.Wrapf(err, "unmarshaling %s", file)
	}

	agencies := make([]model.Agency, 0, len(rows))
	for i, a := range rows {
		if a.Name == "" {
			if err := tr.reject(i, "agency_name", "missing agency_name", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		if a.URL == "" {
			if err := tr.reject(i, "agency_url", "missing agency_url", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		if a.Timezone == "" {
			if err := tr.reject(i, "agency_timezone", "missing agency_timezone", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		if _, err := time.LoadLocation(a.Timezone); err != nil {
			if err := tr.reject(i, "agency_timezone", "invalid timezone '"+a.Timezone+"'", opts); err != nil {
				return nil, nil, err
			}
			continue
		}

		agencies = append(agencies, model.Agency{
			ID:       a.ID,
			Name:     a.Name,
			URL:      a.URL,
			Timezone: a.Timezone,
			Extras:   tr.extras(i, agencyColumns),
		})
	}

	return agencies, tr.info(agencyColumns), nil
}
